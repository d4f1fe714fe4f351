package radio

import (
	"math"
	"sync"
	"time"

	"github.com/gr-butler/lorastation/packet"
)

// Simulator stands in for a radio in test mode. It transmits a balloon
// flight: pressure falls with a steady climb and the temperature follows the
// standard lapse rate. Every CorruptEvery-th frame gets a flipped payload
// byte so the invalid path is exercised too.
type Simulator struct {
	FlightNumber uint32
	Interval     time.Duration
	CorruptEvery int
	SeaLevelPa   float64
	ClimbRate    float64 // m/s

	lock   sync.Mutex
	next   time.Time
	count  uint32
	closed bool
	now    func() time.Time
	sleep  func(time.Duration)
}

func NewSimulator(flight uint32, interval time.Duration, seaLevelPa float64) *Simulator {
	return &Simulator{
		FlightNumber: flight,
		Interval:     interval,
		SeaLevelPa:   seaLevelPa,
		ClimbRate:    5,
		now:          time.Now,
		sleep:        time.Sleep,
	}
}

func (s *Simulator) Receive(timeout time.Duration) ([]byte, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	now := s.now()
	if s.next.IsZero() {
		s.next = now
	}
	if wait := s.next.Sub(now); wait > 0 {
		if wait > timeout {
			s.sleep(timeout)
			return nil, nil
		}
		s.sleep(wait)
	}
	s.next = s.next.Add(s.Interval)
	s.count += 1
	return s.frame(s.count), nil
}

func (s *Simulator) frame(n uint32) []byte {
	alt := s.ClimbRate * s.Interval.Seconds() * float64(n-1)
	tempC := 15 - 0.0065*alt
	// inverse of packet.Validator.Altitude
	pressure := s.SeaLevelPa / math.Pow(1+alt*0.0065/(tempC+273.15), 5.257)

	raw := packet.Seal(packet.Packet{
		Temperature:    tempC,
		Pressure:       pressure,
		BatteryVoltage: float32(4.2 - 0.0005*float64(n)),
		PacketNumber:   n,
		FlightNumber:   s.FlightNumber,
	})
	if s.CorruptEvery > 0 && n%uint32(s.CorruptEvery) == 0 {
		raw[int(n)%packet.ChecksumOffset] ^= 0x10
	}
	return raw
}

func (s *Simulator) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.closed = true
	return nil
}

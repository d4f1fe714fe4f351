package packet

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

/*
 * On-air layout, little endian, 32 bytes:
 *
 *   0  temperature      float64  C
 *   8  pressure         float64  Pa
 *  16  battery voltage  float32  V
 *  20  packet number    uint32
 *  24  flight number    uint32
 *  28  checksum         uint8    CRC-8 over bytes 0..27
 *  29  padding          3 bytes
 *
 * This has to match the transmitter byte for byte.
 */

const (
	FrameSize      = 32
	ChecksumOffset = 28
)

var (
	ErrMalformed      = errors.New("malformed frame")
	ErrLengthMismatch = fmt.Errorf("%w: length mismatch", ErrMalformed)
)

type wireFrame struct {
	Temperature    float64
	Pressure       float64
	BatteryVoltage float32
	PacketNumber   uint32
	FlightNumber   uint32
	Checksum       uint8
	_              [3]byte
}

// Packet is one decoded telemetry record. Valid and Altitude are derived and
// are not part of the frame.
type Packet struct {
	Temperature    float64
	Pressure       float64
	BatteryVoltage float32
	PacketNumber   uint32
	FlightNumber   uint32
	Checksum       uint8

	Valid      bool
	Altitude   float64
	ReceivedAt time.Time
}

// Decode unpacks a raw frame. It does not check the checksum.
func Decode(raw []byte) (Packet, error) {
	if len(raw) != FrameSize {
		return Packet{}, fmt.Errorf("%w: got %d bytes, want %d", ErrLengthMismatch, len(raw), FrameSize)
	}
	var w wireFrame
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, &w); err != nil {
		return Packet{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return Packet{
		Temperature:    w.Temperature,
		Pressure:       w.Pressure,
		BatteryVoltage: w.BatteryVoltage,
		PacketNumber:   w.PacketNumber,
		FlightNumber:   w.FlightNumber,
		Checksum:       w.Checksum,
	}, nil
}

// Encode packs p using the on-air layout. The checksum byte is written as
// given; use Seal to produce a frame with a correct checksum.
func Encode(p Packet) []byte {
	w := wireFrame{
		Temperature:    p.Temperature,
		Pressure:       p.Pressure,
		BatteryVoltage: p.BatteryVoltage,
		PacketNumber:   p.PacketNumber,
		FlightNumber:   p.FlightNumber,
		Checksum:       p.Checksum,
	}
	buf := bytes.NewBuffer(make([]byte, 0, FrameSize))
	// writes to a bytes.Buffer of fixed-size fields cannot fail
	_ = binary.Write(buf, binary.LittleEndian, &w)
	return buf.Bytes()
}

// Seal encodes p with the checksum computed over the payload, as a
// transmitter would.
func Seal(p Packet) []byte {
	raw := Encode(p)
	raw[ChecksumOffset] = Checksum(raw)
	return raw
}

func (p Packet) String() string {
	return fmt.Sprintf("%.1fm, %d, %s, %d, %.2fC, %.0f Pa, %.2fV, valid=%v",
		p.Altitude, p.FlightNumber, p.ReceivedAt.Format("15:04:05"), p.PacketNumber,
		p.Temperature, p.Pressure, p.BatteryVoltage, p.Valid)
}

type jsonPacket struct {
	FlightNumber   uint32   `json:"flight_number"`
	PacketNumber   uint32   `json:"packet_number"`
	ReceivedAt     string   `json:"received_at"`
	Pressure       *float64 `json:"pressure"`
	BatteryVoltage *float64 `json:"battery_voltage"`
	Altitude       *float64 `json:"altitude"`
	Temperature    *float64 `json:"temperature"`
	Valid          bool     `json:"valid"`
}

// MarshalJSON encodes non-finite values as null, encoding/json refuses NaN.
func (p Packet) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonPacket{
		FlightNumber:   p.FlightNumber,
		PacketNumber:   p.PacketNumber,
		ReceivedAt:     p.ReceivedAt.Format(time.RFC3339Nano),
		Pressure:       Finite(p.Pressure),
		BatteryVoltage: Finite(float64(p.BatteryVoltage)),
		Altitude:       Finite(p.Altitude),
		Temperature:    Finite(p.Temperature),
		Valid:          p.Valid,
	})
}

// Finite returns nil for NaN and infinities.
func Finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Hex is used when logging frames that failed to decode.
func Hex(raw []byte) string {
	return hex.EncodeToString(raw)
}

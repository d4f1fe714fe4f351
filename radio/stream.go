package radio

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"
	"github.com/tarm/serial"
)

// StreamLink cuts fixed size frames out of a byte stream, as produced by a
// LoRa modem on a serial port. The port must be opened with a read timeout;
// a read that returns nothing marks the gap between radio packets. Bytes
// left over at such a gap are flushed as a short frame so the decoder
// rejects them and framing starts again on the next packet.
type StreamLink struct {
	lock      sync.Mutex
	port      io.ReadCloser
	frameSize int
	pending   []byte
	scratch   []byte
}

func NewStreamLink(port io.ReadCloser, frameSize int) *StreamLink {
	return &StreamLink{
		port:      port,
		frameSize: frameSize,
		pending:   make([]byte, 0, frameSize),
		scratch:   make([]byte, frameSize),
	}
}

// OpenSerial opens a serial modem. readTimeout bounds each Receive call.
func OpenSerial(device string, baud int, readTimeout time.Duration, frameSize int) (*StreamLink, error) {
	logger.Infof("Opening serial link [%v] at [%v] baud", device, baud)
	p, err := serial.OpenPort(&serial.Config{
		Name:        device,
		Baud:        baud,
		ReadTimeout: readTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", device, err)
	}
	return NewStreamLink(p, frameSize), nil
}

func (l *StreamLink) Receive(timeout time.Duration) ([]byte, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	deadline := time.Now().Add(timeout)
	for {
		n, err := l.port.Read(l.scratch[:l.frameSize-len(l.pending)])
		if n > 0 {
			l.pending = append(l.pending, l.scratch[:n]...)
			if len(l.pending) == l.frameSize {
				return l.flush(), nil
			}
		}
		if err != nil && !errors.Is(err, io.EOF) {
			l.pending = l.pending[:0]
			return nil, fmt.Errorf("serial read: %w", err)
		}
		if n == 0 {
			// line went quiet
			if len(l.pending) > 0 {
				return l.flush(), nil
			}
			return nil, nil
		}
		if time.Now().After(deadline) {
			return nil, nil
		}
	}
}

func (l *StreamLink) flush() []byte {
	frame := make([]byte, len(l.pending))
	copy(frame, l.pending)
	l.pending = l.pending[:0]
	return frame
}

func (l *StreamLink) Close() error {
	return l.port.Close()
}

// Package radio provides the inbound side of the telemetry link. A Link
// hands out one raw frame per call; framing into packets is done elsewhere.
package radio

import (
	"errors"
	"time"
)

// ErrClosed is returned by Receive once the link has been closed.
var ErrClosed = errors.New("radio link closed")

// Link is polled by the receive loop. Receive waits at most roughly timeout
// and returns a nil frame with a nil error when nothing arrived, so the
// caller can check for shutdown between polls.
type Link interface {
	Receive(timeout time.Duration) ([]byte, error)
	Close() error
}

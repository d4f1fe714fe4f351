package radio

import (
	"errors"
	"fmt"
	"net"
	"time"

	logger "github.com/sirupsen/logrus"
)

const maxDatagram = 256

// UDPLink takes one frame per datagram, for gateways that forward raw LoRa
// payloads over the network.
type UDPLink struct {
	conn net.PacketConn
	buf  []byte
}

func ListenUDP(addr string) (*UDPLink, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen udp %s: %w", addr, err)
	}
	logger.Infof("Listening for frames on udp [%v]", conn.LocalAddr())
	return &UDPLink{conn: conn, buf: make([]byte, maxDatagram)}, nil
}

func (l *UDPLink) Addr() net.Addr {
	return l.conn.LocalAddr()
}

func (l *UDPLink) Receive(timeout time.Duration) ([]byte, error) {
	if err := l.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, fmt.Errorf("set read deadline: %w", err)
	}
	n, from, err := l.conn.ReadFrom(l.buf)
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil, nil
		}
		return nil, fmt.Errorf("udp read: %w", err)
	}
	logger.Debugf("Datagram of [%v] bytes from [%v]", n, from)
	frame := make([]byte, n)
	copy(frame, l.buf[:n])
	return frame, nil
}

func (l *UDPLink) Close() error {
	return l.conn.Close()
}

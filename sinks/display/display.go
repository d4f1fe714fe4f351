// Package display renders each packet as a small text panel, the console
// stand-in for the e-paper screen on the ground station.
package display

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/gr-butler/lorastation/packet"
)

// ANSI clear screen and home cursor, used when the panel owns a terminal.
const clearScreen = "\033[2J\033[H"

type Panel struct {
	w     io.Writer
	clear bool
}

// New renders to w. With clear set every frame starts on a fresh screen.
func New(w io.Writer, clear bool) *Panel {
	return &Panel{w: w, clear: clear}
}

func (d *Panel) Consume(_ context.Context, p packet.Packet) error {
	frame := Render(p)
	if d.clear {
		frame = clearScreen + frame
	}
	if _, err := io.WriteString(d.w, frame); err != nil {
		return fmt.Errorf("display write: %w", err)
	}
	return nil
}

// Render lays a packet out one value per line. A packet that failed the
// checksum is still shown, best effort, with a warning line.
func Render(p packet.Packet) string {
	rows := [][2]string{
		{"temp", fmt.Sprintf("%.1f C", p.Temperature)},
		{"pres", fmt.Sprintf("%.1f kPa", p.Pressure/1000.0)},
		{"alt", altitude(p.Altitude)},
		{"batt", fmt.Sprintf("%.2f V", p.BatteryVoltage)},
		{"flit", fmt.Sprint(p.FlightNumber)},
		{"pckt", fmt.Sprint(p.PacketNumber)},
	}
	var b strings.Builder
	if !p.ReceivedAt.IsZero() {
		fmt.Fprintf(&b, "%s\n", p.ReceivedAt.Format("15:04:05"))
	}
	for _, r := range rows {
		fmt.Fprintf(&b, "%-4s %s\n", r[0], r[1])
	}
	if !p.Valid {
		b.WriteString("!! checksum mismatch\n")
	}
	return b.String()
}

func altitude(a float64) string {
	if math.IsNaN(a) || math.IsInf(a, 0) {
		return "--- m"
	}
	return fmt.Sprintf("%.0f m", a)
}

// Package led drives the station LEDs. The activity LED gives a short flash
// for every good packet and a double flicker when the checksum fails; the
// health LED stays lit while the link is healthy.
package led

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gr-butler/lorastation/packet"
	logger "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

type LED struct {
	Name     string
	lock     sync.Mutex
	on       bool
	duration time.Duration
	gpioPin  gpio.PinIO
}

// Open initialises the host drivers and looks the pin up by name, eg GPIO19.
func Open(name string, pinName string, duration time.Duration) (*LED, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init host drivers: %w", err)
	}
	p := gpioreg.ByName(pinName)
	if p == nil {
		return nil, fmt.Errorf("no such pin %s", pinName)
	}
	logger.Infof("Creating new LED on pin [%v] called [%v]", pinName, name)
	return NewLED(name, p, duration), nil
}

func NewLED(name string, pin gpio.PinIO, duration time.Duration) *LED {
	l := &LED{
		Name:     name,
		duration: duration,
		gpioPin:  pin,
	}
	_ = l.gpioPin.Out(gpio.Low)
	return l
}

func (l *LED) On() {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.on = true
	_ = l.gpioPin.Out(gpio.High)
}

func (l *LED) Off() {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.on = false
	_ = l.gpioPin.Out(gpio.Low)
}

// Flash inverts the LED briefly. A flash already in progress swallows the
// request rather than queueing behind it.
func (l *LED) Flash() {
	if !l.lock.TryLock() {
		return
	}
	defer l.lock.Unlock()
	l.pulse()
}

func (l *LED) Flicker(pulses int) {
	if pulses < 1 || pulses > 100 {
		// reject daft or excessive requests
		return
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	for i := 0; i < pulses; i++ {
		l.pulse()
		time.Sleep(l.duration)
	}
}

func (l *LED) pulse() {
	if !l.on {
		_ = l.gpioPin.Out(gpio.High)
		time.Sleep(l.duration)
		_ = l.gpioPin.Out(gpio.Low)
	} else {
		// 'off' flash
		_ = l.gpioPin.Out(gpio.Low)
		time.Sleep(l.duration)
		_ = l.gpioPin.Out(gpio.High)
	}
}

func (l *LED) IsOn() bool {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.on
}

// Heartbeat shows link health: steady on with a short off blink per call
// while healthy, dark otherwise.
func (l *LED) Heartbeat(healthy bool) {
	if !healthy {
		l.Off()
		return
	}
	if !l.IsOn() {
		l.On()
	}
	l.Flash()
}

func (l *LED) Consume(_ context.Context, p packet.Packet) error {
	if p.Valid {
		l.Flash()
	} else {
		l.Flicker(2)
	}
	return nil
}

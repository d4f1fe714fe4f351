// Package receiver runs the radio poll loop: receive, decode, validate and
// publish. Nothing in here blocks on a consumer.
package receiver

import (
	"context"
	"sync"
	"time"

	"github.com/gr-butler/lorastation/data"
	"github.com/gr-butler/lorastation/packet"
	"github.com/gr-butler/lorastation/radio"
	logger "github.com/sirupsen/logrus"
)

// Publisher takes decoded packets; *dispatch.Dispatcher satisfies it.
type Publisher interface {
	Publish(p packet.Packet)
}

// Observer is told about every outcome of a poll. All methods are called from
// the receive goroutine and must not block.
type Observer interface {
	FrameReceived()
	FrameMalformed()
	PacketDecoded(p packet.Packet)
	LinkError()
	LinkQuality(invalidRatio float64, healthy bool)
}

type nopObserver struct{}

func (nopObserver) FrameReceived()              {}
func (nopObserver) FrameMalformed()             {}
func (nopObserver) PacketDecoded(packet.Packet) {}
func (nopObserver) LinkError()                  {}
func (nopObserver) LinkQuality(float64, bool)   {}

type Config struct {
	PollTimeout time.Duration
	// consecutive link errors before the receiver reports itself unhealthy
	MaxLinkErrors int
	// no frame for this long also counts as unhealthy, 0 disables the check
	SilenceTimeout time.Duration
	StatsWindow    int
}

func DefaultConfig() Config {
	return Config{
		PollTimeout:    100 * time.Millisecond,
		MaxLinkErrors:  10,
		SilenceTimeout: 0,
		StatsWindow:    100,
	}
}

type Receiver struct {
	cfg       Config
	link      radio.Link
	validator packet.Validator
	out       Publisher
	observer  Observer
	stats     *data.LinkStats
	now       func() time.Time

	lock       sync.Mutex
	linkErrors int
	started    time.Time
	lastPacket packet.Packet
	havePacket bool
}

func New(cfg Config, link radio.Link, v packet.Validator, out Publisher, obs Observer) *Receiver {
	def := DefaultConfig()
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = def.PollTimeout
	}
	if cfg.MaxLinkErrors <= 0 {
		cfg.MaxLinkErrors = def.MaxLinkErrors
	}
	if cfg.StatsWindow <= 0 {
		cfg.StatsWindow = def.StatsWindow
	}
	if obs == nil {
		obs = nopObserver{}
	}
	return &Receiver{
		cfg:       cfg,
		link:      link,
		validator: v,
		out:       out,
		observer:  obs,
		stats:     data.CreateLinkStats(cfg.StatsWindow),
		now:       time.Now,
	}
}

// Run polls the link until ctx is cancelled. It only returns ctx's error.
func (r *Receiver) Run(ctx context.Context) error {
	logger.Infof("Receive loop started, poll timeout [%v]", r.cfg.PollTimeout)
	r.lock.Lock()
	r.started = r.now()
	r.lock.Unlock()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Receive loop stopped")
			return ctx.Err()
		default:
		}
		r.Poll(ctx)
	}
}

// Poll performs one receive attempt and reports whether a packet was
// published. After a link error it backs off for one poll timeout, or until
// ctx is done.
func (r *Receiver) Poll(ctx context.Context) bool {
	raw, err := r.link.Receive(r.cfg.PollTimeout)
	if err != nil {
		r.lock.Lock()
		r.linkErrors += 1
		n := r.linkErrors
		r.lock.Unlock()
		logger.Warnf("Radio receive failed [%v] consecutive [%v]", err, n)
		r.observer.LinkError()
		r.report()
		// don't spin on a dead link
		t := time.NewTimer(r.cfg.PollTimeout)
		defer t.Stop()
		select {
		case <-ctx.Done():
		case <-t.C:
		}
		return false
	}

	r.lock.Lock()
	r.linkErrors = 0
	r.lock.Unlock()

	if raw == nil {
		return false
	}
	r.observer.FrameReceived()

	p, err := r.validator.Process(raw)
	if err != nil {
		logger.Warnf("Invalid packet [%v] raw [%v]", err, packet.Hex(raw))
		r.observer.FrameMalformed()
		return false
	}
	p.ReceivedAt = r.now()

	if !p.Valid {
		logger.Warnf("Checksum mismatch on packet [%v/%v], forwarding flagged", p.FlightNumber, p.PacketNumber)
	}
	logger.Info(p)

	r.stats.RecordFrame(p.Valid, p.ReceivedAt)
	r.lock.Lock()
	r.lastPacket = p
	r.havePacket = true
	r.lock.Unlock()

	r.observer.PacketDecoded(p)
	r.report()
	r.out.Publish(p)
	return true
}

func (r *Receiver) report() {
	r.observer.LinkQuality(r.stats.InvalidRatio(), r.Healthy())
}

// Healthy is the liveness signal for an external supervisor.
func (r *Receiver) Healthy() bool {
	r.lock.Lock()
	errs, started := r.linkErrors, r.started
	r.lock.Unlock()
	if errs >= r.cfg.MaxLinkErrors {
		return false
	}
	if r.cfg.SilenceTimeout > 0 {
		last := r.stats.LastSeen()
		if last.IsZero() {
			last = started
		}
		if !last.IsZero() && r.now().Sub(last) > r.cfg.SilenceTimeout {
			return false
		}
	}
	return true
}

// Latest returns the most recently decoded packet.
func (r *Receiver) Latest() (packet.Packet, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.lastPacket, r.havePacket
}

func (r *Receiver) Stats() *data.LinkStats {
	return r.stats
}

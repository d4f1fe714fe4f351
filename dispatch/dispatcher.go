// Package dispatch fans decoded packets out to independently paced consumers.
//
// Every consumer owns a bounded drop-oldest queue, so delivery is FIFO per
// consumer, at most once and best effort. Publish never waits for a
// consumer.
package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/gr-butler/lorastation/buffer"
	"github.com/gr-butler/lorastation/packet"
	logger "github.com/sirupsen/logrus"
)

const DefaultQueueSize = 64

// Consumer processes one packet at a time. A returned error is logged and
// the next packet is handed over as usual.
type Consumer interface {
	Consume(ctx context.Context, p packet.Packet) error
}

type ConsumerFunc func(ctx context.Context, p packet.Packet) error

func (f ConsumerFunc) Consume(ctx context.Context, p packet.Packet) error {
	return f(ctx, p)
}

// Handle is one registration in the dispatcher.
type Handle struct {
	id   uint64
	name string
	q    *buffer.Queue[packet.Packet]
}

func (h *Handle) Name() string {
	return h.name
}

// Next blocks until a packet is queued for this handle. ok is false after
// Unsubscribe or Close once the queue has drained, or when ctx is done.
func (h *Handle) Next(ctx context.Context) (p packet.Packet, ok bool) {
	return h.q.Pop(ctx)
}

func (h *Handle) Dropped() uint64 {
	return h.q.Dropped()
}

type Option func(*Dispatcher)

// WithQueueSize sets the queue length used when Subscribe is given size 0.
func WithQueueSize(size int) Option {
	return func(d *Dispatcher) {
		if size > 0 {
			d.queueSize = size
		}
	}
}

// WithDropHook is called, from Publish, each time a queued packet is
// discarded for the named consumer.
func WithDropHook(f func(name string)) Option {
	return func(d *Dispatcher) {
		d.onDrop = f
	}
}

// WithErrorHook is called from the consumer goroutine after Consume fails.
func WithErrorHook(f func(name string, err error)) Option {
	return func(d *Dispatcher) {
		d.onError = f
	}
}

type Dispatcher struct {
	lock      sync.RWMutex
	handles   map[uint64]*Handle
	nextID    uint64
	closed    bool
	queueSize int

	onDrop  func(name string)
	onError func(name string, err error)

	// ctx is handed to consumers, it is only cancelled if Wait gives up
	ctx     context.Context
	cancel  context.CancelFunc
	workers sync.WaitGroup
}

func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		handles:   make(map[uint64]*Handle),
		queueSize: DefaultQueueSize,
		onDrop:    func(string) {},
		onError:   func(string, error) {},
	}
	for _, opt := range opts {
		opt(d)
	}
	d.ctx, d.cancel = context.WithCancel(context.Background())
	return d
}

// Publish queues p for every registered handle and returns straight away.
func (d *Dispatcher) Publish(p packet.Packet) {
	d.lock.RLock()
	defer d.lock.RUnlock()
	if d.closed {
		return
	}
	for _, h := range d.handles {
		if h.q.Push(p) {
			d.onDrop(h.name)
		}
	}
}

// Subscribe registers a new handle. It sees only packets published after
// this call returns. A size of 0 uses the default queue size.
func (d *Dispatcher) Subscribe(name string, size int) *Handle {
	if size <= 0 {
		size = d.queueSize
	}
	h := &Handle{
		name: name,
		q:    buffer.NewQueue[packet.Packet](size),
	}

	d.lock.Lock()
	defer d.lock.Unlock()
	if d.closed {
		h.q.Close()
		return h
	}
	d.nextID += 1
	h.id = d.nextID
	d.handles[h.id] = h
	logger.Debugf("Subscribed [%v] id [%v], [%v] registered", name, h.id, len(d.handles))
	return h
}

// Unsubscribe removes h and wakes its reader. Unknown or already removed
// handles are ignored.
func (d *Dispatcher) Unsubscribe(h *Handle) {
	if h == nil {
		return
	}
	d.lock.Lock()
	_, ok := d.handles[h.id]
	delete(d.handles, h.id)
	n := len(d.handles)
	d.lock.Unlock()

	h.q.Close()
	if ok {
		logger.Debugf("Unsubscribed [%v] id [%v], [%v] registered", h.name, h.id, n)
	}
}

// Subscribers is the number of registered handles, static consumers included.
func (d *Dispatcher) Subscribers() int {
	d.lock.RLock()
	defer d.lock.RUnlock()
	return len(d.handles)
}

// Attach subscribes c and runs it on its own goroutine until the dispatcher
// is closed. Errors and panics inside c are logged and do not stop the loop.
func (d *Dispatcher) Attach(name string, c Consumer, size int) *Handle {
	h := d.Subscribe(name, size)
	d.workers.Add(1)
	go d.run(h, c)
	return h
}

func (d *Dispatcher) run(h *Handle, c Consumer) {
	defer d.workers.Done()
	logger.Infof("Consumer [%v] started", h.name)
	for {
		p, ok := h.Next(d.ctx)
		if !ok {
			logger.Infof("Consumer [%v] stopped", h.name)
			return
		}
		d.consume(h.name, c, p)
	}
}

func (d *Dispatcher) consume(name string, c Consumer, p packet.Packet) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			logger.Errorf("Consumer [%v] panicked on packet [%v/%v] [%v]", name, p.FlightNumber, p.PacketNumber, r)
			d.onError(name, err)
		}
	}()
	if err := c.Consume(d.ctx, p); err != nil {
		logger.Errorf("Consumer [%v] failed on packet [%v/%v] [%v]", name, p.FlightNumber, p.PacketNumber, err)
		d.onError(name, err)
	}
}

// Close stops accepting packets and closes every queue. Consumers finish
// what is already queued; use Wait to block until they have.
func (d *Dispatcher) Close() {
	d.lock.Lock()
	if d.closed {
		d.lock.Unlock()
		return
	}
	d.closed = true
	handles := make([]*Handle, 0, len(d.handles))
	for id, h := range d.handles {
		handles = append(handles, h)
		delete(d.handles, id)
	}
	d.lock.Unlock()

	for _, h := range handles {
		h.q.Close()
	}
}

// Wait blocks until every attached consumer has returned. If ctx ends first
// the consumers' context is cancelled so in-flight writes can abort, and Wait
// returns at once. A consumer that ignores its context is left behind.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		return ctx.Err()
	}
}

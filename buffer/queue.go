package buffer

import (
	"context"
	"sync"
)

// Queue is a bounded FIFO that never blocks the writer. When full the oldest
// item is discarded to make room, live data is worth more than a backlog.
// Readers block in Pop until an item arrives, the queue is closed or the
// context ends. Items queued before Close are still handed out.
type Queue[T any] struct {
	lock    sync.Mutex
	items   []T
	head    int
	count   int
	closed  bool
	notify  chan struct{}
	dropped uint64
}

func NewQueue[T any](size int) *Queue[T] {
	if size < 1 {
		size = 1
	}
	return &Queue[T]{
		items:  make([]T, size),
		notify: make(chan struct{}, 1),
	}
}

// Push appends v and reports whether an older item had to be dropped.
// Pushing to a closed queue is a no-op.
func (q *Queue[T]) Push(v T) (dropped bool) {
	q.lock.Lock()
	if q.closed {
		q.lock.Unlock()
		return false
	}
	size := len(q.items)
	if q.count == size {
		var zero T
		q.items[q.head] = zero
		q.head = (q.head + 1) % size
		q.count -= 1
		q.dropped += 1
		dropped = true
	}
	q.items[(q.head+q.count)%size] = v
	q.count += 1
	q.lock.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return dropped
}

// Pop returns the oldest item. ok is false once the queue is closed and
// drained, or when ctx is done.
func (q *Queue[T]) Pop(ctx context.Context) (v T, ok bool) {
	for {
		q.lock.Lock()
		if q.count > 0 {
			v = q.items[q.head]
			var zero T
			q.items[q.head] = zero
			q.head = (q.head + 1) % len(q.items)
			q.count -= 1
			q.lock.Unlock()
			return v, true
		}
		closed := q.closed
		q.lock.Unlock()
		if closed {
			return v, false
		}

		select {
		case <-q.notify:
		case <-ctx.Done():
			return v, false
		}
	}
}

// Close wakes any blocked reader. Safe to call more than once.
func (q *Queue[T]) Close() {
	q.lock.Lock()
	q.closed = true
	q.lock.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *Queue[T]) Len() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return q.count
}

func (q *Queue[T]) Dropped() uint64 {
	q.lock.Lock()
	defer q.lock.Unlock()
	return q.dropped
}

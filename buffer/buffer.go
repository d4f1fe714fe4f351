package buffer

import (
	"math"
	"sync"
)

type Average float64
type Minimum float64
type Maximum float64
type Sum float64

// SampleBuffer is a fixed size ring of the most recent samples. Unlike a
// plain ring it tracks how many slots hold real samples so statistics are
// correct before the first wrap.
type SampleBuffer struct {
	position int
	count    int
	size     int
	data     []float64
	lock     sync.Mutex
}

func NewBuffer(size int) *SampleBuffer {
	if size < 1 {
		size = 1
	}
	return &SampleBuffer{
		size: size,
		data: make([]float64, size),
	}
}

func (b *SampleBuffer) AddItem(val float64) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.data[b.position] = val
	b.position += 1
	if b.position == b.size {
		b.position = 0
	}
	if b.count < b.size {
		b.count += 1
	}
}

// GetAverageMinMaxSum covers every sample held. An empty buffer returns zeros.
func (b *SampleBuffer) GetAverageMinMaxSum() (Average, Minimum, Maximum, Sum) {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.lastNoLock(b.count)
}

// SumMinMaxLast covers the newest numberOfItems samples.
func (b *SampleBuffer) SumMinMaxLast(numberOfItems int) (Sum, Minimum, Maximum) {
	b.lock.Lock()
	defer b.lock.Unlock()
	_, mn, mx, s := b.lastNoLock(numberOfItems)
	return s, mn, mx
}

func (b *SampleBuffer) AverageLast(numberOfItems int) Average {
	b.lock.Lock()
	defer b.lock.Unlock()
	a, _, _, _ := b.lastNoLock(numberOfItems)
	return a
}

func (b *SampleBuffer) lastNoLock(numberOfItems int) (Average, Minimum, Maximum, Sum) {
	if numberOfItems > b.count {
		numberOfItems = b.count
	}
	if numberOfItems <= 0 {
		return 0, 0, 0, 0
	}
	index := b.position - numberOfItems
	if index < 0 {
		// reverse wrap
		index += b.size
	}
	min := math.MaxFloat64
	max := -math.MaxFloat64
	sum := 0.0
	for i := 0; i < numberOfItems; i++ {
		x := b.data[index]
		sum += x
		if x > max {
			max = x
		}
		if x < min {
			min = x
		}
		index += 1
		if index == b.size {
			index = 0
		}
	}
	return Average(sum / float64(numberOfItems)), Minimum(min), Maximum(max), Sum(sum)
}

func (b *SampleBuffer) GetLast() float64 {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.count == 0 {
		return 0
	}
	index := b.position - 1
	if index < 0 {
		index += b.size
	}
	return b.data[index]
}

func (b *SampleBuffer) Len() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.count
}

func (b *SampleBuffer) GetSize() int {
	return b.size
}

package data

import (
	"sync"
	"time"

	"github.com/gr-butler/lorastation/buffer"
)

// holder for the rolling link quality figures produced by the receive loop

const (
	Validity = "validity" // 1 for a good checksum, 0 for a bad one
	Interval = "interval" // seconds between decoded frames
)

type LinkStats struct {
	lock     sync.Mutex
	buffers  map[string]*buffer.SampleBuffer
	lastSeen time.Time
}

// CreateLinkStats keeps the last window frames.
func CreateLinkStats(window int) *LinkStats {
	ls := LinkStats{}

	ls.buffers = make(map[string]*buffer.SampleBuffer)
	ls.AddBuffer(Validity, buffer.NewBuffer(window))
	ls.AddBuffer(Interval, buffer.NewBuffer(window))

	return &ls
}

func (ls *LinkStats) AddBuffer(name string, b *buffer.SampleBuffer) {
	ls.lock.Lock()
	defer ls.lock.Unlock()
	ls.buffers[name] = b
}

func (ls *LinkStats) GetBuffer(name string) *buffer.SampleBuffer {
	ls.lock.Lock()
	defer ls.lock.Unlock()
	return ls.buffers[name]
}

// RecordFrame notes a decoded frame received at t.
func (ls *LinkStats) RecordFrame(valid bool, t time.Time) {
	v := 0.0
	if valid {
		v = 1.0
	}
	ls.GetBuffer(Validity).AddItem(v)

	ls.lock.Lock()
	last := ls.lastSeen
	ls.lastSeen = t
	ls.lock.Unlock()
	if !last.IsZero() {
		ls.GetBuffer(Interval).AddItem(t.Sub(last).Seconds())
	}
}

// InvalidRatio is the share of recent frames that failed the checksum.
func (ls *LinkStats) InvalidRatio() float64 {
	b := ls.GetBuffer(Validity)
	if b.Len() == 0 {
		return 0
	}
	avg, _, _, _ := b.GetAverageMinMaxSum()
	return 1 - float64(avg)
}

// MeanInterval is the average gap between recent frames.
func (ls *LinkStats) MeanInterval() time.Duration {
	avg, _, _, _ := ls.GetBuffer(Interval).GetAverageMinMaxSum()
	return seconds(float64(avg))
}

// RecentInvalidRatio covers only the newest n frames.
func (ls *LinkStats) RecentInvalidRatio(n int) float64 {
	b := ls.GetBuffer(Validity)
	if b.Len() == 0 {
		return 0
	}
	return 1 - float64(b.AverageLast(n))
}

// IntervalSpread is the shortest and longest gap among the newest n.
func (ls *LinkStats) IntervalSpread(n int) (time.Duration, time.Duration) {
	b := ls.GetBuffer(Interval)
	if b.Len() == 0 {
		return 0, 0
	}
	_, mn, mx := b.SumMinMaxLast(n)
	return seconds(float64(mn)), seconds(float64(mx))
}

func (ls *LinkStats) LastInterval() time.Duration {
	return seconds(ls.GetBuffer(Interval).GetLast())
}

// Window is the number of frames the long term figures cover.
func (ls *LinkStats) Window() int {
	return ls.GetBuffer(Validity).GetSize()
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func (ls *LinkStats) LastSeen() time.Time {
	ls.lock.Lock()
	defer ls.lock.Unlock()
	return ls.lastSeen
}

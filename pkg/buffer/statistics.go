package buffer

import (
	"sync/atomic"
	"time"
)

// Statistics tracks buffer activity. Counters are atomic so a monitoring
// goroutine may read them while the owner mutates the buffer.
type Statistics struct {
	adds      int64
	removes   int64
	takes     int64
	growths   int64
	clears    int64
	disposed  int64
	abandoned int64

	length    int64
	peak      int64
	capacity  int64
	elemSize  int64
	startTime time.Time
}

// NewStatistics creates a new statistics tracker.
func NewStatistics() *Statistics {
	return &Statistics{
		startTime: time.Now(),
	}
}

func (s *Statistics) add(length int) {
	atomic.AddInt64(&s.adds, 1)
	s.setLength(length)
}

func (s *Statistics) remove(length int) {
	atomic.AddInt64(&s.removes, 1)
	atomic.StoreInt64(&s.length, int64(length))
}

func (s *Statistics) take(length int) {
	atomic.AddInt64(&s.takes, 1)
	atomic.StoreInt64(&s.length, int64(length))
}

func (s *Statistics) grow(capacity int) {
	atomic.AddInt64(&s.growths, 1)
	atomic.StoreInt64(&s.capacity, int64(capacity))
}

func (s *Statistics) clear() {
	atomic.AddInt64(&s.clears, 1)
	atomic.StoreInt64(&s.length, 0)
}

func (s *Statistics) disposeElements(n int) {
	atomic.AddInt64(&s.disposed, int64(n))
}

func (s *Statistics) abandonElements(n int) {
	atomic.AddInt64(&s.abandoned, int64(n))
}

func (s *Statistics) setLength(length int) {
	l := int64(length)
	atomic.StoreInt64(&s.length, l)
	for {
		peak := atomic.LoadInt64(&s.peak)
		if l <= peak || atomic.CompareAndSwapInt64(&s.peak, peak, l) {
			return
		}
	}
}

// Adds returns the number of successful inserts at either end.
func (s *Statistics) Adds() int64 { return atomic.LoadInt64(&s.adds) }

// Removes returns the number of elements evicted by RemoveTail, RemoveHead.
func (s *Statistics) Removes() int64 { return atomic.LoadInt64(&s.removes) }

// Takes returns the number of elements transferred out by TakeTail, TakeHead.
func (s *Statistics) Takes() int64 { return atomic.LoadInt64(&s.takes) }

// Growths returns the number of reallocations.
func (s *Statistics) Growths() int64 { return atomic.LoadInt64(&s.growths) }

// Clears returns the number of Clear calls.
func (s *Statistics) Clears() int64 { return atomic.LoadInt64(&s.clears) }

// DisposedElements returns how many elements the buffer has disposed.
func (s *Statistics) DisposedElements() int64 { return atomic.LoadInt64(&s.disposed) }

// AbandonedElements returns how many elements deferred disposal released
// without disposing.
func (s *Statistics) AbandonedElements() int64 { return atomic.LoadInt64(&s.abandoned) }

// CurrentLength returns the last observed length.
func (s *Statistics) CurrentLength() int64 { return atomic.LoadInt64(&s.length) }

// PeakLength returns the largest length observed.
func (s *Statistics) PeakLength() int64 { return atomic.LoadInt64(&s.peak) }

// Capacity returns the last observed capacity.
func (s *Statistics) Capacity() int64 { return atomic.LoadInt64(&s.capacity) }

// MemoryUsage returns the backing store size in bytes.
func (s *Statistics) MemoryUsage() int64 {
	return atomic.LoadInt64(&s.capacity) * atomic.LoadInt64(&s.elemSize)
}

// Utilization returns length over capacity (0.0 to 1.0).
func (s *Statistics) Utilization() float64 {
	c := atomic.LoadInt64(&s.capacity)
	if c == 0 {
		return 0.0
	}
	return float64(atomic.LoadInt64(&s.length)) / float64(c)
}

// Uptime returns how long the buffer has existed.
func (s *Statistics) Uptime() time.Duration {
	return time.Since(s.startTime)
}

// StatsSummary returns a snapshot of all statistics.
type StatsSummary struct {
	Adds              int64         `json:"adds"`
	Removes           int64         `json:"removes"`
	Takes             int64         `json:"takes"`
	Growths           int64         `json:"growths"`
	Clears            int64         `json:"clears"`
	DisposedElements  int64         `json:"disposed_elements"`
	AbandonedElements int64         `json:"abandoned_elements"`
	CurrentLength     int64         `json:"current_length"`
	PeakLength        int64         `json:"peak_length"`
	Capacity          int64         `json:"capacity"`
	MemoryUsage       int64         `json:"memory_usage"`
	Utilization       float64       `json:"utilization"`
	Uptime            time.Duration `json:"uptime"`
}

// Summary returns a snapshot of all statistics.
func (s *Statistics) Summary() StatsSummary {
	return StatsSummary{
		Adds:              s.Adds(),
		Removes:           s.Removes(),
		Takes:             s.Takes(),
		Growths:           s.Growths(),
		Clears:            s.Clears(),
		DisposedElements:  s.DisposedElements(),
		AbandonedElements: s.AbandonedElements(),
		CurrentLength:     s.CurrentLength(),
		PeakLength:        s.PeakLength(),
		Capacity:          s.Capacity(),
		MemoryUsage:       s.MemoryUsage(),
		Utilization:       s.Utilization(),
		Uptime:            s.Uptime(),
	}
}

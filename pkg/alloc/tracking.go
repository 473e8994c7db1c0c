package alloc

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/framering/errors"
	"github.com/c360/framering/metric"
)

// TrackingAllocator wraps another allocator and accounts for every block it
// hands out. It is used for leak audits and to enforce a memory budget.
type TrackingAllocator struct {
	inner  Allocator
	limit  int64
	logger *slog.Logger

	mu        sync.Mutex
	live      map[Handle]int64
	allocs    int64
	frees     int64
	failures  int64
	liveBytes int64
	peakBytes int64

	metrics *trackingMetrics
}

// TrackingOption configures a TrackingAllocator.
type TrackingOption func(*TrackingAllocator)

// WithLimit caps the bytes that may be live at once. Requests beyond the cap
// fail with ErrAllocationFailed. Zero means no cap.
func WithLimit(bytes int64) TrackingOption {
	return func(t *TrackingAllocator) {
		t.limit = bytes
	}
}

// WithTrackingLogger sets the logger used by Report.
func WithTrackingLogger(logger *slog.Logger) TrackingOption {
	return func(t *TrackingAllocator) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewTrackingAllocator wraps inner. A nil inner wraps a fresh heap allocator.
func NewTrackingAllocator(inner Allocator, opts ...TrackingOption) *TrackingAllocator {
	if inner == nil {
		inner = NewHeapAllocator()
	}
	t := &TrackingAllocator{
		inner:  inner,
		logger: slog.Default(),
		live:   make(map[Handle]int64),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// Allocate forwards to the wrapped allocator and records the block.
func (t *TrackingAllocator) Allocate(size, align int) (Handle, error) {
	t.mu.Lock()
	if t.limit > 0 && t.liveBytes+int64(size) > t.limit {
		t.failures++
		live, m := t.liveBytes, t.metrics
		t.mu.Unlock()
		m.recordFailure()
		return 0, errors.WrapFatal(
			fmt.Errorf("%w: %d bytes requested, %d of %d in use",
				errors.ErrAllocationFailed, size, live, t.limit),
			"TrackingAllocator", "Allocate", "budget check")
	}
	t.mu.Unlock()

	h, err := t.inner.Allocate(size, align)
	if err != nil {
		t.mu.Lock()
		t.failures++
		m := t.metrics
		t.mu.Unlock()
		m.recordFailure()
		return 0, err
	}

	t.mu.Lock()
	t.live[h] = int64(size)
	t.allocs++
	t.liveBytes += int64(size)
	if t.liveBytes > t.peakBytes {
		t.peakBytes = t.liveBytes
	}
	blocks, bytes, m := len(t.live), t.liveBytes, t.metrics
	t.mu.Unlock()

	m.recordAllocate(blocks, bytes)
	return h, nil
}

// Free forwards to the wrapped allocator after checking the handle is live.
func (t *TrackingAllocator) Free(h Handle) {
	if h.IsNil() {
		return
	}

	t.mu.Lock()
	size, ok := t.live[h]
	if ok {
		delete(t.live, h)
		t.frees++
		t.liveBytes -= size
	}
	blocks, bytes, m := len(t.live), t.liveBytes, t.metrics
	t.mu.Unlock()

	if !ok {
		errors.Contract(errors.ErrUnknownHandle, "TrackingAllocator", "Free",
			fmt.Sprintf("release handle %#x", uintptr(h)))
	}

	t.inner.Free(h)
	m.recordFree(blocks, bytes)
}

// TrackingStats is a snapshot of allocator accounting.
type TrackingStats struct {
	Allocations int64 `json:"allocations"`
	Frees       int64 `json:"frees"`
	Failures    int64 `json:"failures"`
	LiveBlocks  int   `json:"live_blocks"`
	LiveBytes   int64 `json:"live_bytes"`
	PeakBytes   int64 `json:"peak_bytes"`
}

// Stats returns current accounting.
func (t *TrackingAllocator) Stats() TrackingStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return TrackingStats{
		Allocations: t.allocs,
		Frees:       t.frees,
		Failures:    t.failures,
		LiveBlocks:  len(t.live),
		LiveBytes:   t.liveBytes,
		PeakBytes:   t.peakBytes,
	}
}

// Leaks returns the handles still outstanding, in address order.
func (t *TrackingAllocator) Leaks() []Handle {
	t.mu.Lock()
	out := make([]Handle, 0, len(t.live))
	for h := range t.live {
		out = append(out, h)
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Report logs outstanding blocks at Warn and returns how many there were.
func (t *TrackingAllocator) Report() int {
	s := t.Stats()
	if s.LiveBlocks > 0 {
		t.logger.Warn("Allocator has outstanding blocks",
			"live_blocks", s.LiveBlocks,
			"live_bytes", s.LiveBytes,
			"allocations", s.Allocations,
			"frees", s.Frees)
	}
	return s.LiveBlocks
}

// RegisterMetrics exports the accounting as Prometheus metrics under prefix.
func (t *TrackingAllocator) RegisterMetrics(registrar metric.MetricsRegistrar, prefix string) error {
	m, err := newTrackingMetrics(registrar, prefix)
	if err != nil {
		return err
	}
	s := t.Stats()
	m.liveBlocks.Set(float64(s.LiveBlocks))
	m.liveBytes.Set(float64(s.LiveBytes))

	t.mu.Lock()
	t.metrics = m
	t.mu.Unlock()
	return nil
}

type trackingMetrics struct {
	allocations prometheus.Counter
	frees       prometheus.Counter
	failures    prometheus.Counter
	liveBlocks  prometheus.Gauge
	liveBytes   prometheus.Gauge
}

func newTrackingMetrics(registrar metric.MetricsRegistrar, prefix string) (*trackingMetrics, error) {
	labels := prometheus.Labels{"component": prefix}
	m := &trackingMetrics{
		allocations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "framering",
			Subsystem:   "alloc",
			Name:        "allocations_total",
			ConstLabels: labels,
			Help:        "Total number of blocks allocated",
		}),
		frees: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "framering",
			Subsystem:   "alloc",
			Name:        "frees_total",
			ConstLabels: labels,
			Help:        "Total number of blocks freed",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "framering",
			Subsystem:   "alloc",
			Name:        "failures_total",
			ConstLabels: labels,
			Help:        "Total number of failed allocation requests",
		}),
		liveBlocks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "framering",
			Subsystem:   "alloc",
			Name:        "live_blocks",
			ConstLabels: labels,
			Help:        "Blocks currently allocated",
		}),
		liveBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "framering",
			Subsystem:   "alloc",
			Name:        "live_bytes",
			ConstLabels: labels,
			Help:        "Bytes currently allocated",
		}),
	}

	if err := registrar.RegisterCounter(prefix, "alloc_allocations", m.allocations); err != nil {
		return nil, err
	}
	if err := registrar.RegisterCounter(prefix, "alloc_frees", m.frees); err != nil {
		return nil, err
	}
	if err := registrar.RegisterCounter(prefix, "alloc_failures", m.failures); err != nil {
		return nil, err
	}
	if err := registrar.RegisterGauge(prefix, "alloc_live_blocks", m.liveBlocks); err != nil {
		return nil, err
	}
	if err := registrar.RegisterGauge(prefix, "alloc_live_bytes", m.liveBytes); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *trackingMetrics) recordAllocate(blocks int, bytes int64) {
	if m == nil {
		return
	}
	m.allocations.Inc()
	m.liveBlocks.Set(float64(blocks))
	m.liveBytes.Set(float64(bytes))
}

func (m *trackingMetrics) recordFree(blocks int, bytes int64) {
	if m == nil {
		return
	}
	m.frees.Inc()
	m.liveBlocks.Set(float64(blocks))
	m.liveBytes.Set(float64(bytes))
}

func (m *trackingMetrics) recordFailure() {
	if m == nil {
		return
	}
	m.failures.Inc()
}

package buffer

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/framering/metric"
)

// bufferMetrics holds Prometheus metrics for one buffer instance.
type bufferMetrics struct {
	adds     prometheus.Counter
	removes  prometheus.Counter
	growths  prometheus.Counter
	disposed prometheus.Counter

	length   prometheus.Gauge
	capacity prometheus.Gauge
}

// newBufferMetrics creates and registers buffer metrics with the provided registry.
func newBufferMetrics(registry metric.MetricsRegistrar, prefix string) (*bufferMetrics, error) {
	labels := prometheus.Labels{"component": prefix}
	m := &bufferMetrics{
		adds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "framering",
			Subsystem:   "buffer",
			Name:        "adds_total",
			ConstLabels: labels,
			Help:        "Total number of elements inserted at either end",
		}),
		removes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "framering",
			Subsystem:   "buffer",
			Name:        "removes_total",
			ConstLabels: labels,
			Help:        "Total number of elements removed or taken from either end",
		}),
		growths: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "framering",
			Subsystem:   "buffer",
			Name:        "growths_total",
			ConstLabels: labels,
			Help:        "Total number of backing-store reallocations",
		}),
		disposed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "framering",
			Subsystem:   "buffer",
			Name:        "disposed_elements_total",
			ConstLabels: labels,
			Help:        "Total number of elements disposed by the buffer",
		}),
		length: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "framering",
			Subsystem:   "buffer",
			Name:        "length",
			ConstLabels: labels,
			Help:        "Current number of elements in the buffer",
		}),
		capacity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "framering",
			Subsystem:   "buffer",
			Name:        "capacity",
			ConstLabels: labels,
			Help:        "Current backing-store capacity in elements",
		}),
	}

	counters := []struct {
		name string
		c    prometheus.Counter
	}{
		{"buffer_adds", m.adds},
		{"buffer_removes", m.removes},
		{"buffer_growths", m.growths},
		{"buffer_disposed", m.disposed},
	}
	gauges := []struct {
		name string
		g    prometheus.Gauge
	}{
		{"buffer_length", m.length},
		{"buffer_capacity", m.capacity},
	}

	// Roll back on failure so an existing owner of prefix keeps its metrics.
	var registered []string
	rollback := func() {
		for _, name := range registered {
			registry.Unregister(prefix, name)
		}
	}
	for _, c := range counters {
		if err := registry.RegisterCounter(prefix, c.name, c.c); err != nil {
			rollback()
			return nil, err
		}
		registered = append(registered, c.name)
	}
	for _, g := range gauges {
		if err := registry.RegisterGauge(prefix, g.name, g.g); err != nil {
			rollback()
			return nil, err
		}
		registered = append(registered, g.name)
	}

	return m, nil
}

func (m *bufferMetrics) recordAdd(length int) {
	if m == nil {
		return
	}
	m.adds.Inc()
	m.length.Set(float64(length))
}

func (m *bufferMetrics) recordRemove(length int) {
	if m == nil {
		return
	}
	m.removes.Inc()
	m.length.Set(float64(length))
}

func (m *bufferMetrics) recordGrowth(capacity int) {
	if m == nil {
		return
	}
	m.growths.Inc()
	m.capacity.Set(float64(capacity))
}

func (m *bufferMetrics) recordDisposed(n int) {
	if m == nil || n == 0 {
		return
	}
	m.disposed.Add(float64(n))
}

func (m *bufferMetrics) updateLength(length int) {
	if m == nil {
		return
	}
	m.length.Set(float64(length))
}

package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains module-wide container metrics, aggregated across instances.
// Per-instance series are registered by each container under its own prefix.
type Metrics struct {
	ContainersLive    *prometheus.GaugeVec
	Growths           *prometheus.CounterVec
	Disposals         *prometheus.CounterVec
	AbandonedElements prometheus.Counter
	PoolExpansions    prometheus.Counter
	JobsExecuted      *prometheus.CounterVec
	JobDuration       prometheus.Histogram
}

// NewMetrics creates a new Metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		ContainersLive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "framering",
				Subsystem: "containers",
				Name:      "live",
				Help:      "Containers created and not yet disposed",
			},
			[]string{"kind"},
		),

		Growths: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "framering",
				Subsystem: "containers",
				Name:      "growths_total",
				Help:      "Total number of backing-store reallocations",
			},
			[]string{"kind"},
		),

		Disposals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "framering",
				Subsystem: "containers",
				Name:      "disposals_total",
				Help:      "Total number of container teardowns",
			},
			[]string{"kind", "mode"},
		),

		AbandonedElements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "framering",
			Subsystem: "containers",
			Name:      "abandoned_elements_total",
			Help:      "Disposable elements released by deferred disposal without being disposed",
		}),

		PoolExpansions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "framering",
			Subsystem: "mempool",
			Name:      "expansions_total",
			Help:      "Total number of memory pool expansions",
		}),

		JobsExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "framering",
				Subsystem: "jobs",
				Name:      "executed_total",
				Help:      "Total number of scheduled jobs executed",
			},
			[]string{"status"},
		),

		JobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "framering",
			Subsystem: "jobs",
			Name:      "duration_seconds",
			Help:      "Job execution duration in seconds",
			Buckets:   []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1},
		}),
	}
}

func (m *Metrics) register(reg prometheus.Registerer) {
	reg.MustRegister(
		m.ContainersLive,
		m.Growths,
		m.Disposals,
		m.AbandonedElements,
		m.PoolExpansions,
		m.JobsExecuted,
		m.JobDuration,
	)
}

// RecordCreated increments the live gauge for a container kind.
// All Record methods are safe on a nil receiver.
func (m *Metrics) RecordCreated(kind string) {
	if m == nil {
		return
	}
	m.ContainersLive.WithLabelValues(kind).Inc()
}

// RecordDisposed decrements the live gauge and counts the teardown mode
// ("immediate" or "deferred").
func (m *Metrics) RecordDisposed(kind, mode string) {
	if m == nil {
		return
	}
	m.ContainersLive.WithLabelValues(kind).Dec()
	m.Disposals.WithLabelValues(kind, mode).Inc()
}

// RecordGrowth counts one reallocation.
func (m *Metrics) RecordGrowth(kind string) {
	if m == nil {
		return
	}
	m.Growths.WithLabelValues(kind).Inc()
}

// RecordAbandoned counts elements left undisposed by deferred disposal.
func (m *Metrics) RecordAbandoned(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.AbandonedElements.Add(float64(n))
}

// RecordPoolExpansion counts one pool expansion.
func (m *Metrics) RecordPoolExpansion() {
	if m == nil {
		return
	}
	m.PoolExpansions.Inc()
}

// RecordJob counts one executed job and observes its duration.
func (m *Metrics) RecordJob(status string, seconds float64) {
	if m == nil {
		return
	}
	m.JobsExecuted.WithLabelValues(status).Inc()
	m.JobDuration.Observe(seconds)
}

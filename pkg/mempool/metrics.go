package mempool

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/framering/metric"
)

type poolMetrics struct {
	free        prometheus.Gauge
	outstanding prometheus.Gauge
	expansions  prometheus.Counter
}

func newPoolMetrics(registrar metric.MetricsRegistrar, prefix string) (*poolMetrics, error) {
	labels := prometheus.Labels{"component": prefix}
	m := &poolMetrics{
		free: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "framering",
			Subsystem:   "mempool",
			Name:        "free_blocks",
			ConstLabels: labels,
			Help:        "Blocks on the free list",
		}),
		outstanding: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "framering",
			Subsystem:   "mempool",
			Name:        "outstanding_blocks",
			ConstLabels: labels,
			Help:        "Blocks handed out and not yet released",
		}),
		expansions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "framering",
			Subsystem:   "mempool",
			Name:        "pool_expansions_total",
			ConstLabels: labels,
			Help:        "Free-list expansions of this pool",
		}),
	}

	if err := registrar.RegisterGauge(prefix, "mempool_free", m.free); err != nil {
		return nil, err
	}
	if err := registrar.RegisterGauge(prefix, "mempool_outstanding", m.outstanding); err != nil {
		registrar.Unregister(prefix, "mempool_free")
		return nil, err
	}
	if err := registrar.RegisterCounter(prefix, "mempool_expansions", m.expansions); err != nil {
		registrar.Unregister(prefix, "mempool_free")
		registrar.Unregister(prefix, "mempool_outstanding")
		return nil, err
	}
	return m, nil
}

func (m *poolMetrics) update(free, outstanding int) {
	if m == nil {
		return
	}
	m.free.Set(float64(free))
	m.outstanding.Set(float64(outstanding))
}

func (m *poolMetrics) recordExpansion() {
	if m == nil {
		return
	}
	m.expansions.Inc()
}

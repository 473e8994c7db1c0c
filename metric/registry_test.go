package metric

import (
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/framering/errors"
)

func gatheredNames(t *testing.T, registry *MetricsRegistry) map[string]bool {
	t.Helper()
	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	return names
}

func TestNewMetricsRegistry(t *testing.T) {
	registry := NewMetricsRegistry()

	assert.NotNil(t, registry)
	assert.NotNil(t, registry.PrometheusRegistry())
	assert.Same(t, registry.Metrics, registry.CoreMetrics())
}

func TestMetricsRegistry_RegisterKinds(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_counter", Help: "A test counter"})
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_gauge", Help: "A test gauge"})
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "test_histogram", Help: "A test histogram", Buckets: prometheus.DefBuckets,
	})
	counterVec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "test_counter_vec", Help: "A test counter vec",
	}, []string{"kind"})
	gaugeVec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "test_gauge_vec", Help: "A test gauge vec",
	}, []string{"kind"})

	require.NoError(t, registry.RegisterCounter("trail", "test_counter", counter))
	require.NoError(t, registry.RegisterGauge("trail", "test_gauge", gauge))
	require.NoError(t, registry.RegisterHistogram("trail", "test_histogram", histogram))
	require.NoError(t, registry.RegisterCounterVec("trail", "test_counter_vec", counterVec))
	require.NoError(t, registry.RegisterGaugeVec("trail", "test_gauge_vec", gaugeVec))

	counter.Inc()
	gauge.Set(42)
	histogram.Observe(1.5)
	counterVec.WithLabelValues("a").Inc()
	gaugeVec.WithLabelValues("a").Set(1)

	names := gatheredNames(t, registry)
	for _, name := range []string{"test_counter", "test_gauge", "test_histogram", "test_counter_vec", "test_gauge_vec"} {
		assert.True(t, names[name], "%s should be registered", name)
	}
	assert.Equal(t, 42.0, testutil.ToFloat64(gauge))
}

func TestMetricsRegistry_PreventDuplicateRegistration(t *testing.T) {
	registry := NewMetricsRegistry()

	counter1 := prometheus.NewCounter(prometheus.CounterOpts{Name: "duplicate_counter", Help: "Counter"})
	counter2 := prometheus.NewCounter(prometheus.CounterOpts{Name: "duplicate_counter", Help: "Counter"})

	require.NoError(t, registry.RegisterCounter("trail", "duplicate_counter", counter1))

	err := registry.RegisterCounter("trail", "duplicate_counter", counter2)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
	assert.Contains(t, err.Error(), "duplicate metric registration")

	// Same collector name under a different component still conflicts in prometheus.
	err = registry.RegisterCounter("other", "duplicate_counter", counter2)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
	assert.Contains(t, err.Error(), "prometheus conflict")
}

func TestMetricsRegistry_Unregister(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "unregister_counter", Help: "Counter"})
	require.NoError(t, registry.RegisterCounter("trail", "unregister_counter", counter))

	assert.True(t, registry.Unregister("trail", "unregister_counter"))
	assert.False(t, registry.Unregister("trail", "unregister_counter"))
	assert.False(t, gatheredNames(t, registry)["unregister_counter"])

	// The key is free again.
	require.NoError(t, registry.RegisterCounter("trail", "unregister_counter", counter))
}

func TestMetricsRegistry_UnregisterComponent(t *testing.T) {
	registry := NewMetricsRegistry()

	for i := 0; i < 3; i++ {
		g := prometheus.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("component_gauge_%d", i),
			Help: "Gauge",
		})
		require.NoError(t, registry.RegisterGauge("trail", fmt.Sprintf("g%d", i), g))
	}
	keep := prometheus.NewGauge(prometheus.GaugeOpts{Name: "kept_gauge", Help: "Gauge"})
	require.NoError(t, registry.RegisterGauge("trail2", "g0", keep))

	assert.Equal(t, 3, registry.UnregisterComponent("trail"))
	assert.Equal(t, 0, registry.UnregisterComponent("trail"))

	keep.Set(1)
	names := gatheredNames(t, registry)
	assert.False(t, names["component_gauge_0"])
	assert.True(t, names["kept_gauge"])
}

func TestMetricsRegistry_ThreadSafety(t *testing.T) {
	registry := NewMetricsRegistry()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			counter := prometheus.NewCounter(prometheus.CounterOpts{
				Name: fmt.Sprintf("concurrent_counter_%d", id),
				Help: "Concurrent counter",
			})
			errs <- registry.RegisterCounter(fmt.Sprintf("component-%d", id), "counter", counter)
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestMetricsRegistrar_Interface(t *testing.T) {
	var _ MetricsRegistrar = NewMetricsRegistry()
}

func TestCoreMetrics_RecordMethods(t *testing.T) {
	registry := NewMetricsRegistry()
	m := registry.CoreMetrics()

	m.RecordCreated("circular")
	m.RecordCreated("circular")
	m.RecordDisposed("circular", "deferred")
	m.RecordGrowth("circular")
	m.RecordAbandoned(3)
	m.RecordAbandoned(0)
	m.RecordPoolExpansion()
	m.RecordJob("ok", 0.001)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ContainersLive.WithLabelValues("circular")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Disposals.WithLabelValues("circular", "deferred")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Growths.WithLabelValues("circular")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.AbandonedElements))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PoolExpansions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsExecuted.WithLabelValues("ok")))

	names := gatheredNames(t, registry)
	assert.True(t, names["framering_containers_live"])
	assert.True(t, names["framering_jobs_duration_seconds"])
	assert.True(t, names["go_goroutines"], "runtime collectors should be registered")
}

func TestCoreMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordCreated("circular")
		m.RecordDisposed("circular", "immediate")
		m.RecordGrowth("circular")
		m.RecordAbandoned(1)
		m.RecordPoolExpansion()
		m.RecordJob("error", 0)
	})
}

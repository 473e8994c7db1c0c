// Package metric provides Prometheus-based metrics collection and an HTTP server
// for framering containers, pools, allocators and the job scheduler.
//
// The package offers a centralized registry holding module-wide container
// metrics (live containers, growths, disposals, job outcomes) together with
// per-instance metrics that each container registers under its own prefix.
//
// # Architecture
//
//  1. Core Metrics: module-wide aggregates, registered automatically (Metrics type)
//  2. Component Registry: duplicate-safe registration of per-instance collectors (MetricsRegistrar)
//  3. HTTP Server: /metrics and /health endpoints (Server type)
//
// # Basic Usage
//
//	registry := metric.NewMetricsRegistry()
//	server := metric.NewServer(9090, "/metrics", registry)
//
//	errCh, err := server.Start()
//	if err != nil {
//	    return err
//	}
//	defer server.Stop()
//
//	buf, err := buffer.NewCircularBuffer[Point](16, alloc.Default(),
//	    buffer.WithMetrics[Point](registry, "trail_points"))
//
// # Core Metrics
//
//	framering_containers_live{kind}
//	framering_containers_growths_total{kind}
//	framering_containers_disposals_total{kind,mode}
//	framering_containers_abandoned_elements_total
//	framering_mempool_expansions_total
//	framering_jobs_executed_total{status}
//	framering_jobs_duration_seconds
//
// All Record methods accept a nil *Metrics, so components can record
// unconditionally whether or not a registry was configured.
//
// # Component Metrics
//
// Components register collectors through MetricsRegistrar using a
// "component.metric" key. Registering the same key twice returns an
// Invalid-class error. UnregisterComponent drops every collector under a
// component name; containers call it when they are disposed. Component series
// carry a component label and must not reuse a core series name; a pool's own
// counter is framering_mempool_pool_expansions_total.
//
// # Thread Safety
//
// MetricsRegistry and Server are safe for concurrent use. Prometheus collectors
// are themselves goroutine-safe.
package metric

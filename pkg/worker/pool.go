// Package worker provides a generic worker pool for concurrent task processing
package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/framering/errors"
	"github.com/c360/framering/metric"
)

// Pool represents a generic worker pool that can process any work type T
type Pool[T any] struct {
	// Configuration
	workers   int
	queueSize int
	processor func(context.Context, T) error

	// Runtime state
	workChan chan T
	metrics  *Metrics
	wg       *sync.WaitGroup
	runCtx   context.Context
	quit     chan struct{}

	// Lifecycle management. Submitters hold the read lock so Stop cannot
	// close the channel under a blocked SubmitWait.
	lifecycleMu sync.RWMutex
	started     bool
	stopped     bool

	// Statistics (atomic)
	submitted int64
	processed int64
	failed    int64
	panicked  int64
	dropped   int64
	busy      int64

	// Metrics configuration
	metricsRegistry metric.MetricsRegistrar
	metricsPrefix   string
}

// Metrics holds Prometheus metrics for worker pool monitoring
type Metrics struct {
	queueDepth     prometheus.Gauge
	utilization    prometheus.Gauge
	submitted      prometheus.Counter
	processed      prometheus.Counter
	failed         prometheus.Counter
	dropped        prometheus.Counter
	processingTime *prometheus.HistogramVec
}

// Option represents a configuration option for the worker pool
type Option[T any] func(*Pool[T])

// WithMetricsRegistry configures the pool to register metrics with the registry
func WithMetricsRegistry[T any](registry metric.MetricsRegistrar, prefix string) Option[T] {
	return func(p *Pool[T]) {
		p.metricsRegistry = registry
		p.metricsPrefix = prefix
	}
}

// NewPool creates a new generic worker pool with optional configuration.
// Metric registration failures are returned; the pool is still usable without metrics.
func NewPool[T any](workers, queueSize int, processor func(context.Context, T) error,
	opts ...Option[T]) (*Pool[T], error) {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	if processor == nil {
		panic(ErrNilProcessor)
	}

	pool := &Pool[T]{
		workers:   workers,
		queueSize: queueSize,
		processor: processor,
		workChan:  make(chan T, queueSize),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(pool)
		}
	}

	if pool.metricsRegistry != nil && pool.metricsPrefix != "" {
		m, err := newMetrics(pool.metricsRegistry, pool.metricsPrefix)
		if err != nil {
			return pool, err
		}
		pool.metrics = m
	}

	return pool, nil
}

func newMetrics(registry metric.MetricsRegistrar, prefix string) (*Metrics, error) {
	labels := prometheus.Labels{"component": prefix}
	m := &Metrics{
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "framering", Subsystem: "worker", Name: "queue_depth",
			ConstLabels: labels, Help: "Current worker pool queue depth",
		}),
		utilization: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "framering", Subsystem: "worker", Name: "utilization",
			ConstLabels: labels, Help: "Fraction of workers busy (0-1)",
		}),
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "framering", Subsystem: "worker", Name: "submitted_total",
			ConstLabels: labels, Help: "Total work items submitted",
		}),
		processed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "framering", Subsystem: "worker", Name: "processed_total",
			ConstLabels: labels, Help: "Total work items processed",
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "framering", Subsystem: "worker", Name: "failed_total",
			ConstLabels: labels, Help: "Total work items that failed processing",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "framering", Subsystem: "worker", Name: "dropped_total",
			ConstLabels: labels, Help: "Total work items rejected due to full queue",
		}),
		processingTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "framering", Subsystem: "worker", Name: "processing_duration_seconds",
			ConstLabels: labels, Help: "Time spent processing work items",
			Buckets: []float64{0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}, []string{"status"}),
	}

	if err := registry.RegisterGauge(prefix, "worker_queue_depth", m.queueDepth); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(prefix, "worker_utilization", m.utilization); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(prefix, "worker_submitted", m.submitted); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(prefix, "worker_processed", m.processed); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(prefix, "worker_failed", m.failed); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(prefix, "worker_dropped", m.dropped); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogramVec(prefix, "worker_processing_duration", m.processingTime); err != nil {
		return nil, err
	}
	return m, nil
}

// Submit submits work to the pool without blocking. Returns ErrQueueFull if
// the queue is at capacity.
func (p *Pool[T]) Submit(work T) error {
	p.lifecycleMu.RLock()
	defer p.lifecycleMu.RUnlock()

	if err := p.acceptingLocked(); err != nil {
		return err
	}

	select {
	case p.workChan <- work:
		p.recordSubmit()
		return nil
	default:
		atomic.AddInt64(&p.dropped, 1)
		if p.metrics != nil {
			p.metrics.dropped.Inc()
		}
		return ErrQueueFull
	}
}

// SubmitWait submits work, blocking until there is room in the queue, ctx is
// done, or the pool's run context ends.
func (p *Pool[T]) SubmitWait(ctx context.Context, work T) error {
	p.lifecycleMu.RLock()
	defer p.lifecycleMu.RUnlock()

	if err := p.acceptingLocked(); err != nil {
		return err
	}

	select {
	case p.workChan <- work:
		p.recordSubmit()
		return nil
	case <-ctx.Done():
		return errors.WrapTransient(ctx.Err(), "Pool", "SubmitWait", "wait for queue space")
	case <-p.runCtx.Done():
		return ErrPoolStopped
	}
}

func (p *Pool[T]) acceptingLocked() error {
	if !p.started {
		return ErrPoolNotStarted
	}
	if p.stopped || p.runCtx.Err() != nil {
		return ErrPoolStopped
	}
	return nil
}

func (p *Pool[T]) recordSubmit() {
	atomic.AddInt64(&p.submitted, 1)
	if p.metrics != nil {
		p.metrics.submitted.Inc()
		p.metrics.queueDepth.Set(float64(len(p.workChan)))
	}
}

// Start starts the worker pool
func (p *Pool[T]) Start(ctx context.Context) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.started {
		return ErrPoolAlreadyStarted
	}

	p.wg = &sync.WaitGroup{}
	p.runCtx = ctx
	p.quit = make(chan struct{})

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}

	if p.metrics != nil {
		p.wg.Add(1)
		go p.metricsUpdater(ctx)
	}

	p.started = true
	return nil
}

// Stop closes the queue and waits for workers to drain it. Work already
// queued is processed unless the run context is cancelled first.
func (p *Pool[T]) Stop(timeout time.Duration) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if !p.started || p.stopped {
		return nil
	}

	p.stopped = true
	close(p.quit)
	close(p.workChan)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		return ErrStopTimeout
	}
}

// Stats returns current pool statistics
func (p *Pool[T]) Stats() PoolStats {
	return PoolStats{
		Workers:    p.workers,
		QueueSize:  p.queueSize,
		QueueDepth: len(p.workChan),
		Busy:       int(atomic.LoadInt64(&p.busy)),
		Submitted:  atomic.LoadInt64(&p.submitted),
		Processed:  atomic.LoadInt64(&p.processed),
		Failed:     atomic.LoadInt64(&p.failed),
		Panicked:   atomic.LoadInt64(&p.panicked),
		Dropped:    atomic.LoadInt64(&p.dropped),
	}
}

// PoolStats represents worker pool statistics
type PoolStats struct {
	Workers    int   `json:"workers"`
	QueueSize  int   `json:"queue_size"`
	QueueDepth int   `json:"queue_depth"`
	Busy       int   `json:"busy"`
	Submitted  int64 `json:"submitted"`
	Processed  int64 `json:"processed"`
	Failed     int64 `json:"failed"`
	Panicked   int64 `json:"panicked"`
	Dropped    int64 `json:"dropped"`
}

func (p *Pool[T]) worker(ctx context.Context, _ int) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case work, ok := <-p.workChan:
			if !ok {
				return
			}
			p.process(ctx, work)
		}
	}
}

func (p *Pool[T]) process(ctx context.Context, work T) {
	atomic.AddInt64(&p.busy, 1)
	start := time.Now()
	err := p.safeProcess(ctx, work)
	duration := time.Since(start)
	atomic.AddInt64(&p.busy, -1)

	atomic.AddInt64(&p.processed, 1)
	if err != nil {
		atomic.AddInt64(&p.failed, 1)
	}

	if p.metrics != nil {
		p.metrics.processed.Inc()
		status := "success"
		if err != nil {
			p.metrics.failed.Inc()
			status = "error"
		}
		p.metrics.processingTime.WithLabelValues(status).Observe(duration.Seconds())
	}
}

// safeProcess turns a processor panic into an error so one bad item cannot
// take a worker down.
func (p *Pool[T]) safeProcess(ctx context.Context, work T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&p.panicked, 1)
			if ce := errors.Recovered(r); ce != nil {
				err = ce
				return
			}
			err = errors.WrapFatal(fmt.Errorf("%w: %v", ErrProcessorPanic, r), "Pool", "process", "run processor")
		}
	}()
	return p.processor(ctx, work)
}

func (p *Pool[T]) metricsUpdater(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.quit:
			return
		case <-ticker.C:
			p.metrics.queueDepth.Set(float64(len(p.workChan)))
			p.metrics.utilization.Set(float64(atomic.LoadInt64(&p.busy)) / float64(p.workers))
		}
	}
}

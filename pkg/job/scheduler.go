package job

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"

	"github.com/c360/framering/errors"
	"github.com/c360/framering/metric"
	"github.com/c360/framering/pkg/worker"
)

// Sentinel errors for scheduler operations
var (
	// ErrSchedulerStopped indicates Schedule was called after Stop
	ErrSchedulerStopped = stderrors.New("scheduler stopped")

	// ErrNilJob indicates a nil job was scheduled
	ErrNilJob = stderrors.New("job cannot be nil")

	// ErrJobsStranded indicates Stop left scheduled jobs that will never run
	ErrJobsStranded = stderrors.New("jobs stranded")
)

// task is one scheduled job and the completion it resolves.
type task struct {
	job       Job
	c         *completion
	scheduled time.Time
}

// Scheduler runs jobs on a worker pool once their dependencies complete.
//
// Ready jobs go to an unbounded FIFO that a dispatcher drains into the pool
// with a blocking submit, so no job is ever dropped for lack of queue space.
// Jobs whose dependency is still pending are parked until it completes.
type Scheduler struct {
	pool    *worker.Pool[*task]
	logger  *slog.Logger
	metrics *metric.Metrics

	workers   int
	queueSize int
	registry  metric.MetricsRegistrar
	prefix    string

	mu      sync.Mutex
	ready   *queue.Queue
	started bool
	stopped bool

	signal      chan struct{}
	quit        chan struct{}
	outstanding sync.WaitGroup
	dispatcher  sync.WaitGroup

	scheduled int64
	completed int64
	failed    int64
	parked    int64
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithWorkers sets the number of worker goroutines.
func WithWorkers(n int) Option {
	return func(s *Scheduler) {
		s.workers = n
	}
}

// WithQueueSize sets the worker pool's bounded queue size.
func WithQueueSize(n int) Option {
	return func(s *Scheduler) {
		s.queueSize = n
	}
}

// WithLogger sets the scheduler's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records job outcomes in the registry's core metrics and
// exports the worker pool's metrics under prefix.
func WithMetrics(registry *metric.MetricsRegistry, prefix string) Option {
	return func(s *Scheduler) {
		if registry != nil {
			s.registry = registry
			s.prefix = prefix
			s.metrics = registry.CoreMetrics()
		}
	}
}

// New creates a scheduler. Call Start before jobs can run; jobs scheduled
// earlier wait in the ready queue.
func New(opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		logger:    slog.Default(),
		workers:   4,
		queueSize: 256,
		ready:     queue.New(),
		signal:    make(chan struct{}, 1),
		quit:      make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	var poolOpts []worker.Option[*task]
	if s.registry != nil && s.prefix != "" {
		poolOpts = append(poolOpts, worker.WithMetricsRegistry[*task](s.registry, s.prefix))
	}
	pool, err := worker.NewPool(s.workers, s.queueSize, s.run, poolOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "Scheduler", "New", "create worker pool")
	}
	s.pool = pool
	return s, nil
}

// Start launches the workers and the dispatcher.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Scheduler", "Start", "start scheduler")
	}
	if s.stopped {
		return errors.WrapInvalid(ErrSchedulerStopped, "Scheduler", "Start", "start scheduler")
	}
	if err := s.pool.Start(ctx); err != nil {
		return errors.WrapFatal(err, "Scheduler", "Start", "start worker pool")
	}

	s.started = true
	s.dispatcher.Add(1)
	go s.dispatch(ctx)
	s.wake()

	s.logger.Debug("Scheduler started", "workers", s.workers, "queue_size", s.queueSize)
	return nil
}

// Schedule queues j to run after dependency completes and returns a handle
// that completes when j has run. The zero Handle means no dependency.
func (s *Scheduler) Schedule(j Job, dependency Handle) (Handle, error) {
	if j == nil {
		return Handle{}, errors.WrapInvalid(ErrNilJob, "Scheduler", "Schedule", "accept job")
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return Handle{}, errors.WrapInvalid(ErrSchedulerStopped, "Scheduler", "Schedule", "accept job")
	}
	t := &task{job: j, c: newCompletion(), scheduled: time.Now()}
	s.outstanding.Add(1)
	atomic.AddInt64(&s.scheduled, 1)

	if dependency.IsCompleted() {
		s.ready.Add(t)
		s.mu.Unlock()
		s.wake()
		return Handle{c: t.c}, nil
	}
	s.mu.Unlock()

	atomic.AddInt64(&s.parked, 1)
	go s.park(t, dependency)
	return Handle{c: t.c}, nil
}

// park waits for dependency and then moves t to the ready queue.
func (s *Scheduler) park(t *task, dependency Handle) {
	select {
	case <-dependency.Done():
	case <-s.quit:
		atomic.AddInt64(&s.parked, -1)
		return
	}
	atomic.AddInt64(&s.parked, -1)

	s.mu.Lock()
	s.ready.Add(t)
	s.mu.Unlock()
	s.wake()
}

func (s *Scheduler) wake() {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *Scheduler) dispatch(ctx context.Context) {
	defer s.dispatcher.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.quit:
			return
		case <-s.signal:
		}

		for {
			s.mu.Lock()
			if s.ready.Length() == 0 {
				s.mu.Unlock()
				break
			}
			t := s.ready.Remove().(*task)
			s.mu.Unlock()

			if err := s.pool.SubmitWait(ctx, t); err != nil {
				// Only reachable once the run context is gone.
				s.logger.Warn("Job dropped at shutdown", "job_id", t.c.id, "error", err)
				return
			}
		}
	}
}

// run is the worker pool processor. It always resolves the task's
// completion, even when the job panics.
func (s *Scheduler) run(_ context.Context, t *task) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			if ce := errors.Recovered(r); ce != nil {
				err = ce
			} else {
				err = errors.WrapFatal(fmt.Errorf("job panicked: %v", r), "Scheduler", "run", "execute job")
			}
		}
		s.finish(t, err, start)
	}()
	return t.job.Execute()
}

func (s *Scheduler) finish(t *task, err error, started time.Time) {
	elapsed := time.Since(started)
	status := "ok"
	atomic.AddInt64(&s.completed, 1)
	if err != nil {
		status = "error"
		atomic.AddInt64(&s.failed, 1)
		s.logger.Error("Job failed",
			"job_id", t.c.id,
			"error", err,
			"class", errors.Classify(err).String(),
			"queued_for", started.Sub(t.scheduled))
	}
	s.metrics.RecordJob(status, elapsed.Seconds())

	t.c.complete(err)
	s.outstanding.Done()
}

// Stop stops accepting jobs and waits up to timeout for every scheduled job,
// parked ones included, to run. Jobs still pending at the deadline never run
// and their handles never complete. A scheduler that was never started runs
// nothing; if jobs were queued Stop reports them with ErrJobsStranded.
func (s *Scheduler) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	started := s.started
	s.mu.Unlock()

	var stopErr error
	if !started {
		if pending := atomic.LoadInt64(&s.scheduled) - atomic.LoadInt64(&s.completed); pending > 0 {
			s.logger.Warn("Scheduler stopped before start with queued jobs", "stranded", pending)
			stopErr = errors.WrapTransient(fmt.Errorf("%w: %d never ran", ErrJobsStranded, pending),
				"Scheduler", "Stop", "drain jobs")
		}
	} else {
		done := make(chan struct{})
		go func() {
			s.outstanding.Wait()
			close(done)
		}()

		timer := time.NewTimer(timeout)
		defer timer.Stop()

		select {
		case <-done:
		case <-timer.C:
			stats := s.Stats()
			s.logger.Warn("Scheduler stopped with pending jobs",
				"pending", stats.Scheduled-stats.Completed,
				"parked", stats.Parked)
			stopErr = errors.WrapTransient(worker.ErrStopTimeout, "Scheduler", "Stop", "drain jobs")
		}
	}

	close(s.quit)
	s.dispatcher.Wait()
	if err := s.pool.Stop(timeout); err != nil && stopErr == nil {
		stopErr = errors.WrapTransient(err, "Scheduler", "Stop", "stop worker pool")
	}
	return stopErr
}

// Stats is a snapshot of scheduler activity.
type Stats struct {
	Scheduled int64            `json:"scheduled"`
	Completed int64            `json:"completed"`
	Failed    int64            `json:"failed"`
	Parked    int64            `json:"parked"`
	Ready     int              `json:"ready"`
	Pool      worker.PoolStats `json:"pool"`
}

// Stats returns current counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	ready := s.ready.Length()
	s.mu.Unlock()

	return Stats{
		Scheduled: atomic.LoadInt64(&s.scheduled),
		Completed: atomic.LoadInt64(&s.completed),
		Failed:    atomic.LoadInt64(&s.failed),
		Parked:    atomic.LoadInt64(&s.parked),
		Ready:     ready,
		Pool:      s.pool.Stats(),
	}
}

// Package worker provides a generic, thread-safe worker pool for concurrent task processing.
//
// # Overview
//
// A Pool runs a fixed number of goroutines that take work items of type T
// from a bounded channel and hand them to a processor function. The job
// scheduler uses it to execute dispose jobs and other deferred work.
//
//   - Generic work type, no type assertions
//   - Bounded queue with two submit modes: Submit (non-blocking) and SubmitWait (blocking)
//   - Context-aware cancellation and graceful shutdown
//   - Always-on statistics plus optional Prometheus metrics
//   - Processor panics are recovered and counted as failures
//
// # Submit Modes
//
// Submit never blocks. When the queue is full it returns ErrQueueFull and the
// item is counted as dropped. Use it where shedding load is acceptable.
//
// SubmitWait blocks until the queue has room, the caller's context is done,
// or the pool's run context ends. Use it where work must not be lost, such
// as releasing memory.
//
// # Shutdown
//
// Stop(timeout) closes the queue, lets workers drain what is already queued,
// and waits up to timeout. It returns ErrStopTimeout if workers are still
// busy. Cancelling the context passed to Start stops workers without draining.
//
// # Usage
//
//	pool, err := worker.NewPool[DisposeTask](4, 256,
//	    func(ctx context.Context, t DisposeTask) error {
//	        return t.Run()
//	    },
//	    worker.WithMetricsRegistry[DisposeTask](registry, "dispose"),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := pool.Start(ctx); err != nil {
//	    return err
//	}
//	defer pool.Stop(5 * time.Second)
//
//	if err := pool.SubmitWait(ctx, task); err != nil {
//	    return err
//	}
//
// # Metrics
//
// With a registry, the pool exports under the framering_worker subsystem,
// labelled by component prefix: queue_depth, utilization (busy workers over
// worker count), submitted_total, processed_total, failed_total,
// dropped_total and processing_duration_seconds{status}.
//
// # Thread Safety
//
// All public methods are safe for concurrent use.
package worker

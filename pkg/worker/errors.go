package worker

import (
	"errors"
	"fmt"

	fwerrors "github.com/c360/framering/errors"
)

// Sentinel errors for worker pool operations
var (
	// ErrPoolNotStarted indicates the pool hasn't been started yet
	ErrPoolNotStarted = errors.New("worker pool not started")

	// ErrPoolStopped indicates the pool has been stopped
	ErrPoolStopped = errors.New("worker pool stopped")

	// ErrPoolAlreadyStarted indicates Start() was called on an already-started pool
	ErrPoolAlreadyStarted = errors.New("worker pool already started")

	// ErrQueueFull indicates the work queue is at capacity. It wraps the
	// module-wide transient ErrQueueFull.
	ErrQueueFull = fmt.Errorf("worker pool: %w", fwerrors.ErrQueueFull)

	// ErrNilProcessor indicates a nil processor function was provided
	ErrNilProcessor = errors.New("processor function cannot be nil")

	// ErrStopTimeout indicates the pool didn't stop within the timeout
	ErrStopTimeout = errors.New("timeout waiting for workers to stop")

	// ErrProcessorPanic indicates the processor panicked on a work item
	ErrProcessorPanic = errors.New("processor panicked")
)

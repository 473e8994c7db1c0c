// Package job schedules deferred work with completion handles and dependencies.
//
// A Job runs exactly once on the Scheduler's worker pool. Scheduling returns
// a Handle that completes when the job has run; passing that Handle as the
// dependency of another job orders the two. Containers use this to release
// their memory only after every job reading them has finished.
package job

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Job is a unit of deferred work.
type Job interface {
	Execute() error
}

// Func adapts a function to Job.
type Func func() error

// Execute calls f.
func (f Func) Execute() error {
	return f()
}

// completion is the shared state behind a Handle.
type completion struct {
	id   uuid.UUID
	done chan struct{}
	once sync.Once
	err  error
}

func newCompletion() *completion {
	return &completion{
		id:   uuid.New(),
		done: make(chan struct{}),
	}
}

func (c *completion) complete(err error) {
	c.once.Do(func() {
		c.err = err
		close(c.done)
	})
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Handle tracks completion of a scheduled job. The zero Handle is already
// complete, so it can be passed as "no dependency".
type Handle struct {
	c *completion
}

// Manual returns an incomplete handle and the function that completes it.
// It lets work outside the scheduler, such as a frame update loop, act as a
// dependency.
func Manual() (Handle, func()) {
	c := newCompletion()
	return Handle{c: c}, func() { c.complete(nil) }
}

// ID returns the handle's identifier, or uuid.Nil for the zero handle.
func (h Handle) ID() uuid.UUID {
	if h.c == nil {
		return uuid.Nil
	}
	return h.c.id
}

// Done returns a channel closed when the job has run.
func (h Handle) Done() <-chan struct{} {
	if h.c == nil {
		return closedChan
	}
	return h.c.done
}

// IsCompleted reports whether the job has run.
func (h Handle) IsCompleted() bool {
	select {
	case <-h.Done():
		return true
	default:
		return false
	}
}

// Complete blocks until the job has run.
func (h Handle) Complete() {
	<-h.Done()
}

// Wait blocks until the job has run or ctx is done.
func (h Handle) Wait(ctx context.Context) error {
	select {
	case <-h.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the error the job returned, or nil if it succeeded or has not
// run yet.
func (h Handle) Err() error {
	if h.c == nil || !h.IsCompleted() {
		return nil
	}
	return h.c.err
}

// CombineDependencies returns a handle that completes once every input has
// completed. Already-complete inputs are ignored.
func CombineDependencies(handles ...Handle) Handle {
	pending := make([]Handle, 0, len(handles))
	for _, h := range handles {
		if !h.IsCompleted() {
			pending = append(pending, h)
		}
	}

	switch len(pending) {
	case 0:
		return Handle{}
	case 1:
		return pending[0]
	}

	c := newCompletion()
	go func() {
		for _, h := range pending {
			<-h.Done()
		}
		c.complete(nil)
	}()
	return Handle{c: c}
}

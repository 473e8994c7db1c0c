package testutil

import (
	"errors"
	"sync"

	"github.com/c360/framering/pkg/job"
)

// Common mock errors
var (
	ErrMockFailed = errors.New("mock operation failed")
)

// ScheduledJob is one job recorded by MockScheduler.
type ScheduledJob struct {
	Job        job.Job
	Dependency job.Handle
	Handle     job.Handle

	complete func()
	ran      bool
	err      error
}

// MockScheduler records jobs instead of running them. Jobs run only when
// RunAll or RunNext is called, ignoring dependencies.
type MockScheduler struct {
	mu sync.Mutex

	// ScheduleFunc, when set, is consulted before recording a job; a non-nil
	// error is returned to the caller and nothing is recorded.
	ScheduleFunc func(j job.Job, dependency job.Handle) error

	jobs          []*ScheduledJob
	ScheduleCalls int
}

// NewMockScheduler creates an empty mock scheduler.
func NewMockScheduler() *MockScheduler {
	return &MockScheduler{}
}

// Schedule records j and returns a handle that completes when it runs.
func (m *MockScheduler) Schedule(j job.Job, dependency job.Handle) (job.Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ScheduleCalls++
	if m.ScheduleFunc != nil {
		if err := m.ScheduleFunc(j, dependency); err != nil {
			return job.Handle{}, err
		}
	}

	h, done := job.Manual()
	m.jobs = append(m.jobs, &ScheduledJob{Job: j, Dependency: dependency, Handle: h, complete: done})
	return h, nil
}

// Jobs returns the recorded jobs in scheduling order.
func (m *MockScheduler) Jobs() []*ScheduledJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*ScheduledJob, len(m.jobs))
	copy(out, m.jobs)
	return out
}

// Pending returns the number of recorded jobs that have not run.
func (m *MockScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, sj := range m.jobs {
		if !sj.ran {
			n++
		}
	}
	return n
}

// RunNext runs the oldest job that has not run. It reports false if none remain.
func (m *MockScheduler) RunNext() (bool, error) {
	m.mu.Lock()
	var next *ScheduledJob
	for _, sj := range m.jobs {
		if !sj.ran {
			next = sj
			next.ran = true
			break
		}
	}
	m.mu.Unlock()

	if next == nil {
		return false, nil
	}
	next.err = next.Job.Execute()
	next.complete()
	return true, next.err
}

// RunAll runs every pending job and returns the first error.
func (m *MockScheduler) RunAll() error {
	var first error
	for {
		ok, err := m.RunNext()
		if !ok {
			return first
		}
		if err != nil && first == nil {
			first = err
		}
	}
}

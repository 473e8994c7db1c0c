package buffer

import (
	stderrors "errors"
	"iter"

	"github.com/c360/framering/pkg/job"
)

// Buffer is the surface shared by CircularBuffer and DisposableCircularBuffer.
// Implementations are single-owner and perform no internal locking.
type Buffer[T any] interface {
	// Len returns the number of occupied slots.
	Len() int

	// Capacity returns the number of slots in the backing store.
	Capacity() int

	// SetCapacity grows the backing store to hold at least n elements.
	SetCapacity(n int)

	IsEmpty() bool
	IsFull() bool
	IsCreated() bool

	// Get and Set address logical index i, 0 <= i < Len.
	Get(i int) T
	Set(i int, v T)

	// ElementAt returns a pointer into the backing store, valid until the
	// next growth, Clear or Dispose.
	ElementAt(i int) *T

	Add(v T)
	AddHead(v T)
	RemoveTail()
	RemoveHead()
	TakeTail() (T, bool)
	TakeHead() (T, bool)
	Head() (T, bool)
	Tail() (T, bool)
	Clear()

	Enumerator() *Enumerator[T]
	All() iter.Seq2[int, T]
	ToSlice() []T

	// Stats returns buffer statistics (always available for observability).
	Stats() *Statistics

	Dispose()
	DisposeAfter(s Scheduler, dependency job.Handle) (job.Handle, error)
}

// Scheduler runs a job once its dependency completes. *job.Scheduler
// satisfies it.
type Scheduler interface {
	Schedule(j job.Job, dependency job.Handle) (job.Handle, error)
}

// ErrNilScheduler is returned by DisposeAfter when no scheduler is given.
var ErrNilScheduler = stderrors.New("scheduler cannot be nil")

// Container kinds used in logs and the core metrics.
const (
	KindCircular   = "circular"
	KindDisposable = "disposable"
)

var (
	_ Buffer[int] = (*CircularBuffer[int])(nil)
	_ Scheduler   = (*job.Scheduler)(nil)
)

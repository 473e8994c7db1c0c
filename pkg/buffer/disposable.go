package buffer

import (
	"github.com/c360/framering/pkg/alloc"
	"github.com/c360/framering/pkg/job"
)

// Disposable constrains PT to *T with a Dispose method.
type Disposable[T any] interface {
	*T
	Dispose()
}

// DisposableCircularBuffer is a CircularBuffer whose elements own resources.
// Every element that leaves through RemoveTail, RemoveHead, Clear or Dispose
// is disposed exactly once. TakeTail, TakeHead and RotateTailToHead move
// elements without disposing them.
type DisposableCircularBuffer[T any, PT Disposable[T]] struct {
	ring[T]
}

// NewDisposableCircularBuffer creates a disposable buffer. Arguments behave as
// for NewCircularBuffer.
func NewDisposableCircularBuffer[T any, PT Disposable[T]](
	capacity int, a alloc.Allocator, options ...Option[T],
) (*DisposableCircularBuffer[T, PT], error) {
	b := &DisposableCircularBuffer[T, PT]{}
	if err := b.init(KindDisposable, "NewDisposableCircularBuffer", capacity, a, applyOptions(options...)); err != nil {
		return nil, err
	}
	return b, nil
}

func disposeSlot[T any, PT Disposable[T]](p *T) {
	PT(p).Dispose()
}

// RemoveTail disposes and drops the last element. No-op when empty.
func (b *DisposableCircularBuffer[T, PT]) RemoveTail() {
	if b.dropTail("RemoveTail", disposeSlot[T, PT]) {
		b.disposed(1)
	}
}

// RemoveHead disposes and drops the first element. No-op when empty.
func (b *DisposableCircularBuffer[T, PT]) RemoveHead() {
	if b.dropHead("RemoveHead", disposeSlot[T, PT]) {
		b.disposed(1)
	}
}

// Clear disposes every element in logical order and empties the buffer,
// keeping its capacity.
func (b *DisposableCircularBuffer[T, PT]) Clear() {
	b.disposed(b.reset("Clear", disposeSlot[T, PT]))
}

// Dispose disposes every remaining element, then frees the backing store.
func (b *DisposableCircularBuffer[T, PT]) Dispose() {
	b.checkDispose("Dispose")
	b.disposed(b.reset("Dispose", disposeSlot[T, PT]))
	b.release()
}

// DisposeAfter schedules the backing store to be freed once dependency
// completes. Unlike Dispose it does not dispose remaining elements: callers
// must have cleared them already. Elements still present are abandoned; their
// count is logged and added to Stats().AbandonedElements.
func (b *DisposableCircularBuffer[T, PT]) DisposeAfter(s Scheduler, dependency job.Handle) (job.Handle, error) {
	b.checkDispose("DisposeAfter")
	abandoned := b.length
	core := b.core

	h, err := b.scheduleRelease(s, dependency)
	if err != nil {
		return h, err
	}
	if abandoned > 0 {
		b.stats.abandonElements(abandoned)
		core.RecordAbandoned(abandoned)
		b.logger.Warn("Deferred dispose abandoned undisposed elements",
			"abandoned", abandoned,
			"job_id", h.ID())
	}
	return h, nil
}

func (b *DisposableCircularBuffer[T, PT]) disposed(n int) {
	if n == 0 {
		return
	}
	b.stats.disposeElements(n)
	b.metrics.recordDisposed(n)
}

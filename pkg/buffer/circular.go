package buffer

import (
	"fmt"
	"iter"
	"log/slog"
	"sync/atomic"

	"github.com/c360/framering/errors"
	"github.com/c360/framering/metric"
	"github.com/c360/framering/pkg/alloc"
	"github.com/c360/framering/pkg/job"
)

// noCopy marks a struct as single-owner; go vet's copylocks check flags copies.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// ring is the storage core shared by both buffer variants.
type ring[T any] struct {
	noCopy noCopy

	kind      string
	handle    alloc.Handle
	items     []T
	head      int
	tail      int
	length    int
	allocator alloc.Allocator
	growth    GrowthPolicy
	version   uint64
	created   bool        // owner may still use and dispose the buffer
	released  atomic.Bool // backing store freed; set by the dispose job when deferred

	stats    *Statistics
	metrics  *bufferMetrics
	core     *metric.Metrics
	registry *metric.MetricsRegistry
	prefix   string
	logger   *slog.Logger
}

// CircularBuffer is a growable ring of unmanaged values.
type CircularBuffer[T any] struct {
	ring[T]
}

// NewCircularBuffer creates a buffer with room for capacity elements, allocated
// from a. A nil allocator means alloc.Default(); capacity below 1 is raised to 1.
// It panics if T holds Go pointers.
func NewCircularBuffer[T any](capacity int, a alloc.Allocator, options ...Option[T]) (*CircularBuffer[T], error) {
	b := &CircularBuffer[T]{}
	if err := b.init(KindCircular, "NewCircularBuffer", capacity, a, applyOptions(options...)); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *ring[T]) init(kind, method string, capacity int, a alloc.Allocator, opts *bufferOptions[T]) error {
	alloc.CheckUnmanaged[T]()

	if capacity < 1 {
		capacity = 1
	}
	if a == nil {
		a = alloc.Default()
	}

	h, err := alloc.AllocateArray[T](a, capacity)
	if err != nil {
		return errors.Wrap(err, kind, method, "allocate backing store")
	}

	r.kind = kind
	r.handle = h
	r.items = alloc.View[T](h, capacity)
	r.allocator = a
	r.growth = opts.growth
	r.logger = opts.logger.With("component", "buffer", "kind", kind)
	r.created = true

	r.stats = NewStatistics()
	r.stats.elemSize = int64(alloc.SizeOf[T]())
	r.stats.capacity = int64(capacity)

	if opts.metricsReg != nil {
		m, err := newBufferMetrics(opts.metricsReg, opts.metricsPrefix)
		if err != nil {
			a.Free(h)
			r.created = false
			return errors.Wrap(err, kind, method, "metrics registration")
		}
		m.capacity.Set(float64(capacity))
		r.metrics = m
		r.registry = opts.metricsReg
		r.prefix = opts.metricsPrefix
		r.core = opts.metricsReg.CoreMetrics()
		r.logger = r.logger.With("prefix", r.prefix)
	}
	r.core.RecordCreated(kind)

	return nil
}

// checkLive panics unless the owner may still modify the buffer.
func (r *ring[T]) checkLive(method string) {
	if !r.created {
		errors.Contract(errors.ErrDisposed, r.name(), method, "use buffer")
	}
}

// checkReadable panics once the backing store is gone. After DisposeAfter
// reads stay valid until the dispose job runs.
func (r *ring[T]) checkReadable(method string) {
	if r.items == nil || r.released.Load() {
		errors.Contract(errors.ErrDisposed, r.name(), method, "read buffer")
	}
}

func (r *ring[T]) checkIndex(method string, i int) {
	r.checkReadable(method)
	if i < 0 || i >= r.length {
		errors.Contract(errors.ErrIndexOutOfRange, r.name(), method,
			fmt.Sprintf("access index %d with length %d", i, r.length))
	}
}

func (r *ring[T]) name() string {
	switch r.kind {
	case KindDisposable:
		return "DisposableCircularBuffer"
	default:
		return "CircularBuffer"
	}
}

// physical maps logical index i to a slot.
func (r *ring[T]) physical(i int) int {
	j := r.head + i
	if c := len(r.items); j >= c {
		j -= c
	}
	return j
}

func (r *ring[T]) next(i int) int {
	i++
	if i == len(r.items) {
		return 0
	}
	return i
}

func (r *ring[T]) prev(i int) int {
	if i == 0 {
		return len(r.items) - 1
	}
	return i - 1
}

// Len returns the number of elements. Zero once the backing store is freed.
func (r *ring[T]) Len() int {
	if r.released.Load() {
		return 0
	}
	return r.length
}

// Capacity returns the number of slots in the backing store.
func (r *ring[T]) Capacity() int {
	r.checkReadable("Capacity")
	return len(r.items)
}

// IsEmpty reports whether the buffer holds no elements. A disposed buffer is empty.
func (r *ring[T]) IsEmpty() bool {
	return r.Len() == 0
}

// IsFull reports whether the next insert will grow the backing store.
func (r *ring[T]) IsFull() bool {
	r.checkReadable("IsFull")
	return r.length == len(r.items)
}

// IsCreated reports whether the buffer still owns its backing store.
func (r *ring[T]) IsCreated() bool {
	return r.created
}

// Get returns the element at logical index i.
func (r *ring[T]) Get(i int) T {
	r.checkIndex("Get", i)
	return r.items[r.physical(i)]
}

// Set overwrites the element at logical index i. Open enumerators are invalidated.
func (r *ring[T]) Set(i int, v T) {
	r.checkLive("Set")
	r.checkIndex("Set", i)
	r.items[r.physical(i)] = v
	r.version++
}

// ElementAt returns a pointer to the element at logical index i for in-place
// mutation. The pointer is valid until the next growth, Clear or Dispose.
func (r *ring[T]) ElementAt(i int) *T {
	r.checkIndex("ElementAt", i)
	return &r.items[r.physical(i)]
}

// Head returns the first element.
func (r *ring[T]) Head() (T, bool) {
	r.checkReadable("Head")
	if r.length == 0 {
		var zero T
		return zero, false
	}
	return r.items[r.head], true
}

// Tail returns the last element.
func (r *ring[T]) Tail() (T, bool) {
	r.checkReadable("Tail")
	if r.length == 0 {
		var zero T
		return zero, false
	}
	return r.items[r.prev(r.tail)], true
}

// Add appends v at the tail, growing first if the buffer is full.
func (r *ring[T]) Add(v T) {
	r.checkLive("Add")
	if r.length == len(r.items) {
		r.grow(r.nextCapacity(), "Add")
	}
	r.items[r.tail] = v
	r.tail = r.next(r.tail)
	r.length++
	r.version++

	r.stats.add(r.length)
	r.metrics.recordAdd(r.length)
}

// AddHead prepends v at the head, growing first if the buffer is full.
func (r *ring[T]) AddHead(v T) {
	r.checkLive("AddHead")
	if r.length == len(r.items) {
		r.grow(r.nextCapacity(), "AddHead")
	}
	r.head = r.prev(r.head)
	r.items[r.head] = v
	r.length++
	r.version++

	r.stats.add(r.length)
	r.metrics.recordAdd(r.length)
}

// TakeTail removes the last element and returns it. Ownership moves to the
// caller; disposable elements are not disposed.
func (r *ring[T]) TakeTail() (T, bool) {
	r.checkLive("TakeTail")
	var zero T
	if r.length == 0 {
		return zero, false
	}
	r.tail = r.prev(r.tail)
	v := r.items[r.tail]
	r.items[r.tail] = zero
	r.length--
	r.version++

	r.stats.take(r.length)
	r.metrics.recordRemove(r.length)
	return v, true
}

// TakeHead removes the first element and returns it. Ownership moves to the
// caller; disposable elements are not disposed.
func (r *ring[T]) TakeHead() (T, bool) {
	r.checkLive("TakeHead")
	var zero T
	if r.length == 0 {
		return zero, false
	}
	v := r.items[r.head]
	r.items[r.head] = zero
	r.head = r.next(r.head)
	r.length--
	r.version++

	r.stats.take(r.length)
	r.metrics.recordRemove(r.length)
	return v, true
}

// RotateTailToHead moves the last element to the front in O(1).
// It reports false when the buffer is empty.
func (r *ring[T]) RotateTailToHead() bool {
	r.checkLive("RotateTailToHead")
	if r.length == 0 {
		return false
	}
	var zero T
	last := r.prev(r.tail)
	v := r.items[last]
	r.items[last] = zero
	r.tail = last
	r.head = r.prev(r.head)
	r.items[r.head] = v
	r.version++
	return true
}

// dropTail evicts the last element, handing its slot to release first.
func (r *ring[T]) dropTail(method string, release func(*T)) bool {
	r.checkLive(method)
	if r.length == 0 {
		return false
	}
	r.tail = r.prev(r.tail)
	slot := &r.items[r.tail]
	if release != nil {
		release(slot)
	}
	var zero T
	*slot = zero
	r.length--
	r.version++

	r.stats.remove(r.length)
	r.metrics.recordRemove(r.length)
	return true
}

// dropHead evicts the first element, handing its slot to release first.
func (r *ring[T]) dropHead(method string, release func(*T)) bool {
	r.checkLive(method)
	if r.length == 0 {
		return false
	}
	slot := &r.items[r.head]
	if release != nil {
		release(slot)
	}
	var zero T
	*slot = zero
	r.head = r.next(r.head)
	r.length--
	r.version++

	r.stats.remove(r.length)
	r.metrics.recordRemove(r.length)
	return true
}

// reset empties the buffer after handing every occupied slot, in logical
// order, to release. It reports how many elements were released.
func (r *ring[T]) reset(method string, release func(*T)) int {
	r.checkLive(method)
	n := r.length
	if n == 0 {
		return 0
	}
	var zero T
	for i := 0; i < n; i++ {
		slot := &r.items[r.physical(i)]
		if release != nil {
			release(slot)
		}
		*slot = zero
	}
	r.head, r.tail, r.length = 0, 0, 0
	r.version++

	r.stats.clear()
	r.metrics.updateLength(0)
	return n
}

// SetCapacity grows the backing store so it holds at least n elements. The
// growth policy may round n up. It never shrinks; n below Len panics.
func (r *ring[T]) SetCapacity(n int) {
	r.checkLive("SetCapacity")
	if n < r.length {
		errors.Contract(errors.ErrCapacityBelowLength, r.name(), "SetCapacity",
			fmt.Sprintf("set capacity %d with length %d", n, r.length))
	}
	target := r.growth.Reserve(n, alloc.SizeOf[T]())
	if target < n {
		target = n
	}
	if target <= len(r.items) {
		return
	}
	r.grow(target, "SetCapacity")
}

func (r *ring[T]) nextCapacity() int {
	c := len(r.items)
	n := r.growth.Next(c)
	if n <= c {
		n = c + 1
	}
	return n
}

// grow moves the contents into a new block of newCapacity slots with the
// head at slot 0. On allocation failure the buffer is left unchanged.
func (r *ring[T]) grow(newCapacity int, method string) {
	h, err := alloc.AllocateArray[T](r.allocator, newCapacity)
	if err != nil {
		errors.Fatal(err, r.name(), method, "grow backing store")
	}
	dst := alloc.View[T](h, newCapacity)

	oldCapacity := len(r.items)
	if r.length > 0 {
		if r.head+r.length <= oldCapacity {
			copy(dst, r.items[r.head:r.head+r.length])
		} else {
			n := copy(dst, r.items[r.head:])
			copy(dst[n:], r.items[:r.tail])
		}
	}

	old := r.handle
	r.handle = h
	r.items = dst
	r.head = 0
	r.tail = r.length % newCapacity
	r.allocator.Free(old)
	r.version++

	r.stats.grow(newCapacity)
	r.metrics.recordGrowth(newCapacity)
	r.core.RecordGrowth(r.kind)
	r.logger.Debug("Buffer grown",
		"from", oldCapacity,
		"to", newCapacity,
		"length", r.length,
		"method", method)
}

// Enumerator returns a cursor over the elements in logical order.
func (r *ring[T]) Enumerator() *Enumerator[T] {
	r.checkReadable("Enumerator")
	return &Enumerator[T]{r: r, version: r.version, index: -1}
}

// All returns an iterator over index, element pairs in logical order. Each
// range loop uses a fresh Enumerator and panics if the buffer is mutated.
func (r *ring[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		e := r.Enumerator()
		for e.Next() {
			if !yield(e.Index(), *e.Current()) {
				return
			}
		}
	}
}

// ToSlice copies the elements into a new slice in logical order.
func (r *ring[T]) ToSlice() []T {
	r.checkReadable("ToSlice")
	out := make([]T, r.length)
	if r.length == 0 {
		return out
	}
	if r.head+r.length <= len(r.items) {
		copy(out, r.items[r.head:r.head+r.length])
	} else {
		n := copy(out, r.items[r.head:])
		copy(out[n:], r.items[:r.tail])
	}
	return out
}

// Stats returns buffer statistics (always available for observability).
func (r *ring[T]) Stats() *Statistics {
	return r.stats
}

func (r *ring[T]) checkDispose(method string) {
	if !r.created {
		errors.Contract(errors.ErrAlreadyDisposed, r.name(), method, "dispose buffer")
	}
}

// release frees the backing store now.
func (r *ring[T]) release() {
	r.released.Store(true)
	r.allocator.Free(r.handle)
	r.items = nil
	r.head, r.tail, r.length = 0, 0, 0
	r.version++
	r.retire("immediate")
}

// scheduleRelease hands the backing store to s, to be freed once dependency
// completes. The buffer is retired only if scheduling succeeds. Contents are
// left in place for the jobs dependency covers.
func (r *ring[T]) scheduleRelease(s Scheduler, dependency job.Handle) (job.Handle, error) {
	if s == nil {
		return job.Handle{}, errors.WrapInvalid(ErrNilScheduler, r.name(), "DisposeAfter", "schedule dispose job")
	}
	j := DisposeJob{Handle: r.handle, Allocator: r.allocator, Released: &r.released}
	h, err := s.Schedule(j, dependency)
	if err != nil {
		return job.Handle{}, errors.Wrap(err, r.name(), "DisposeAfter", "schedule dispose job")
	}
	r.retire("deferred")
	return h, nil
}

// retire closes the buffer to its owner and unregisters metrics. It touches
// nothing a concurrent reader uses.
func (r *ring[T]) retire(mode string) {
	r.handle = 0
	r.created = false

	r.stats.setLength(0)
	if r.registry != nil {
		r.registry.UnregisterComponent(r.prefix)
		r.registry = nil
	}
	r.metrics = nil
	r.core.RecordDisposed(r.kind, mode)
}

// RemoveTail drops the last element. It is a no-op on an empty buffer.
func (b *CircularBuffer[T]) RemoveTail() {
	b.dropTail("RemoveTail", nil)
}

// RemoveHead drops the first element. It is a no-op on an empty buffer.
func (b *CircularBuffer[T]) RemoveHead() {
	b.dropHead("RemoveHead", nil)
}

// Clear empties the buffer, keeping its capacity.
func (b *CircularBuffer[T]) Clear() {
	b.reset("Clear", nil)
}

// Dispose frees the backing store. The buffer cannot be used afterwards.
func (b *CircularBuffer[T]) Dispose() {
	b.checkDispose("Dispose")
	b.release()
}

// DisposeAfter schedules the backing store to be freed once dependency
// completes and returns the handle of the dispose job. Once it returns without
// error the owner may no longer modify or dispose the buffer, and IsCreated
// reports false. Jobs covered by dependency may keep reading until the dispose
// job runs. If scheduling fails the buffer is left intact.
func (b *CircularBuffer[T]) DisposeAfter(s Scheduler, dependency job.Handle) (job.Handle, error) {
	b.checkDispose("DisposeAfter")
	return b.scheduleRelease(s, dependency)
}

package mempool

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/c360/framering/errors"
	"github.com/c360/framering/metric"
	"github.com/c360/framering/pkg/alloc"
	"github.com/c360/framering/pkg/buffer"
	"github.com/c360/framering/pkg/job"
)

// MemoryPool is a free list of blocks sized and aligned for T.
//
// The free list is itself a CircularBuffer of handles in allocator memory,
// used as a stack. MemoryPool is safe for concurrent use.
type MemoryPool[T any] struct {
	id        ID
	allocator alloc.Allocator
	size      int
	align     int
	expandBy  int
	logger    *slog.Logger

	mu          sync.Mutex
	free        *buffer.CircularBuffer[alloc.Handle]
	outstanding int
	allocated   int
	expansions  int
	disposed    bool

	metrics  *poolMetrics
	core     *metric.Metrics
	registry *metric.MetricsRegistry
	prefix   string
}

// Stats is a snapshot of pool accounting.
type Stats struct {
	Free        int `json:"free"`
	Outstanding int `json:"outstanding"`
	Allocated   int `json:"allocated"`
	Expansions  int `json:"expansions"`
}

// New creates a pool holding initialCapacity free blocks. A nil allocator
// means alloc.Default(). Allocation failure returns a fatal error and frees
// whatever was allocated. It panics if T holds Go pointers.
func New[T any](initialCapacity int, a alloc.Allocator, opts ...Option) (*MemoryPool[T], error) {
	alloc.CheckUnmanaged[T]()
	if a == nil {
		a = alloc.Default()
	}
	if initialCapacity < 0 {
		initialCapacity = 0
	}
	o := applyOptions(opts...)

	free, err := buffer.NewCircularBuffer[alloc.Handle](max(initialCapacity, o.expandBy), a,
		buffer.WithLogger[alloc.Handle](o.logger))
	if err != nil {
		return nil, errors.Wrap(err, "MemoryPool", "New", "allocate free list")
	}

	p := &MemoryPool[T]{
		allocator: a,
		size:      int(alloc.SizeOf[T]()),
		align:     int(alloc.AlignOf[T]()),
		expandBy:  o.expandBy,
		logger:    o.logger.With("component", "mempool"),
		free:      free,
	}

	if err := p.grow(initialCapacity); err != nil {
		free.Dispose()
		return nil, errors.Wrap(err, "MemoryPool", "New", "preallocate blocks")
	}

	if o.metricsReg != nil {
		m, err := newPoolMetrics(o.metricsReg, o.metricsPrefix)
		if err != nil {
			p.freeAll()
			free.Dispose()
			return nil, errors.Wrap(err, "MemoryPool", "New", "metrics registration")
		}
		p.metrics = m
		p.registry = o.metricsReg
		p.prefix = o.metricsPrefix
		p.core = o.metricsReg.CoreMetrics()
		p.logger = p.logger.With("prefix", p.prefix)
	}

	p.id = register(p)
	p.metrics.update(p.free.Len(), 0)
	p.core.RecordCreated("pool")
	return p, nil
}

// ID returns the pool's directory ID.
func (p *MemoryPool[T]) ID() ID {
	return p.id
}

// BlockSize returns the size in bytes of each block.
func (p *MemoryPool[T]) BlockSize() int {
	return p.size
}

// Get pops a free block, expanding the free list first when it is empty.
// A failed expansion panics with a fatal error.
func (p *MemoryPool[T]) Get() Block[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checkLive("Get")

	if p.free.IsEmpty() {
		if err := p.grow(p.expandBy); err != nil {
			errors.Fatal(err, "MemoryPool", "Get", "expand free list")
		}
		p.expansions++
		p.metrics.recordExpansion()
		p.core.RecordPoolExpansion()
		p.logger.Debug("Pool expanded", "by", p.expandBy, "allocated", p.allocated)
	}

	h, _ := p.free.TakeTail()
	p.outstanding++
	p.metrics.update(p.free.Len(), p.outstanding)
	return Block[T]{h: h}
}

// GetOwned is Get paired with the pool's ID.
func (p *MemoryPool[T]) GetOwned() Owned[T] {
	return Owned[T]{Pool: p.id, Block: p.Get()}
}

// Release pushes b back onto the free list. The nil block is ignored.
func (p *MemoryPool[T]) Release(b Block[T]) {
	if b.IsNil() {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checkLive("Release")
	p.push(b)
}

// tryRelease is Release that reports false instead of panicking once the
// pool has been disposed.
func (p *MemoryPool[T]) tryRelease(b Block[T]) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.disposed {
		return false
	}
	p.push(b)
	return true
}

func (p *MemoryPool[T]) push(b Block[T]) {
	p.free.Add(b.h)
	p.outstanding--
	p.metrics.update(p.free.Len(), p.outstanding)
}

// Stats returns current accounting.
func (p *MemoryPool[T]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Free:        p.free.Len(),
		Outstanding: p.outstanding,
		Allocated:   p.allocated,
		Expansions:  p.expansions,
	}
}

// IsCreated reports whether the pool has not been disposed.
func (p *MemoryPool[T]) IsCreated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.disposed
}

// Dispose frees every block on the free list. Outstanding blocks are leaked.
func (p *MemoryPool[T]) Dispose() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checkDispose("Dispose")

	p.freeAll()
	p.free.Dispose()
	p.detach("immediate")
}

// DisposeAfter schedules the free-listed blocks to be freed once dependency
// completes. The pool is unusable as soon as it returns without error.
func (p *MemoryPool[T]) DisposeAfter(s buffer.Scheduler, dependency job.Handle) (job.Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checkDispose("DisposeAfter")

	if s == nil {
		return job.Handle{}, errors.WrapInvalid(buffer.ErrNilScheduler, "MemoryPool", "DisposeAfter", "schedule dispose job")
	}
	j := DisposeJob{Handles: p.free.ToSlice(), Allocator: p.allocator}
	h, err := s.Schedule(j, dependency)
	if err != nil {
		return job.Handle{}, errors.Wrap(err, "MemoryPool", "DisposeAfter", "schedule dispose job")
	}

	p.free.Dispose()
	p.detach("deferred")
	return h, nil
}

// grow allocates n blocks onto the free list. On failure the blocks from
// this call are freed and the pool is unchanged.
func (p *MemoryPool[T]) grow(n int) error {
	added := 0
	for i := 0; i < n; i++ {
		h, err := p.allocator.Allocate(p.size, p.align)
		if err != nil {
			for ; added > 0; added-- {
				b, _ := p.free.TakeTail()
				p.allocator.Free(b)
			}
			return err
		}
		p.free.Add(h)
		added++
	}
	p.allocated += n
	return nil
}

func (p *MemoryPool[T]) freeAll() {
	for {
		h, ok := p.free.TakeTail()
		if !ok {
			return
		}
		p.allocator.Free(h)
	}
}

func (p *MemoryPool[T]) detach(mode string) {
	p.disposed = true
	unregister(p.id)

	if p.outstanding > 0 {
		p.logger.Warn("Pool disposed with outstanding blocks",
			"outstanding", p.outstanding,
			"allocated", p.allocated,
			"mode", mode)
	}
	if p.registry != nil {
		p.registry.UnregisterComponent(p.prefix)
		p.registry = nil
	}
	p.metrics = nil
	p.core.RecordDisposed("pool", mode)
}

func (p *MemoryPool[T]) checkLive(method string) {
	if p.disposed {
		errors.Contract(errors.ErrDisposed, "MemoryPool", method, "use pool")
	}
}

func (p *MemoryPool[T]) checkDispose(method string) {
	if p.disposed {
		errors.Contract(errors.ErrAlreadyDisposed, "MemoryPool", method,
			fmt.Sprintf("dispose pool %d", p.id))
	}
}

// DisposeJob frees a set of pool blocks.
type DisposeJob struct {
	Handles   []alloc.Handle
	Allocator alloc.Allocator
}

// Execute frees every handle.
func (j DisposeJob) Execute() error {
	for _, h := range j.Handles {
		j.Allocator.Free(h)
	}
	return nil
}

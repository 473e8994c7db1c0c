package mempool

import (
	"github.com/c360/framering/pkg/alloc"
)

// Block is one pool block typed as T. It holds no Go pointers.
type Block[T any] struct {
	h alloc.Handle
}

// BlockOf wraps a handle obtained from a MemoryPool[T].
func BlockOf[T any](h alloc.Handle) Block[T] {
	return Block[T]{h: h}
}

// Ptr returns the block as *T. Nil for the nil block.
func (b Block[T]) Ptr() *T {
	return (*T)(b.h.Pointer())
}

// IsNil reports whether b is the zero block.
func (b Block[T]) IsNil() bool {
	return b.h.IsNil()
}

// Handle returns the underlying allocator handle.
func (b Block[T]) Handle() alloc.Handle {
	return b.h
}

// Owned is a block together with the ID of the pool it came from. It is
// unmanaged, so it can live inside framering containers.
type Owned[T any] struct {
	Pool  ID
	Block Block[T]
}

// Ptr returns the owned block as *T.
func (o *Owned[T]) Ptr() *T {
	return o.Block.Ptr()
}

// IsNil reports whether o owns nothing.
func (o *Owned[T]) IsNil() bool {
	return o.Block.IsNil()
}

// Release returns the block to its pool and clears o. It reports false when
// o owns nothing or the pool is gone; the block is then left as is.
func (o *Owned[T]) Release() bool {
	if o.Block.IsNil() {
		return false
	}
	p, ok := Lookup[T](o.Pool)
	if !ok || !p.tryRelease(o.Block) {
		return false
	}
	*o = Owned[T]{}
	return true
}

// Package alloc provides the manual-memory allocators behind framering containers.
//
// Containers never hold Go pointers to their backing store in a form the
// garbage collector must trace. They hold a Handle, an opaque pointer-free
// address, and ask the Allocator that produced it to release it exactly once.
// Allocators keep their blocks reachable (or outside the Go heap entirely)
// until Free, so a Handle stays valid for its whole lifetime.
//
// Element types stored in such memory must be unmanaged; see CheckUnmanaged.
package alloc

import (
	"fmt"
	"math"
	"unsafe"

	"github.com/c360/framering/errors"
)

// Handle is the address of a block obtained from an Allocator. The zero
// Handle is nil.
type Handle uintptr

// IsNil reports whether h is the nil handle.
func (h Handle) IsNil() bool {
	return h == 0
}

// Pointer returns h as an unsafe.Pointer. The result is valid until the
// owning allocator frees h.
func (h Handle) Pointer() unsafe.Pointer {
	if h == 0 {
		return nil
	}
	// Reinterpret rather than convert: the block is kept alive by its
	// allocator, not by this value.
	return *(*unsafe.Pointer)(unsafe.Pointer(&h))
}

// Bytes returns a raw byte view of the first n bytes of the block.
func (h Handle) Bytes(n int) []byte {
	if h == 0 || n <= 0 {
		return nil
	}
	return unsafe.Slice((*byte)(h.Pointer()), n)
}

// Offset returns the handle n bytes past h.
func (h Handle) Offset(n uintptr) Handle {
	if h == 0 {
		return 0
	}
	return h + Handle(n)
}

// Allocator supplies and reclaims raw memory blocks.
//
// Allocate returns a block of at least size bytes aligned to align, which
// must be a power of two. Free releases a block previously returned by the
// same allocator; freeing a handle the allocator does not own panics.
type Allocator interface {
	Allocate(size, align int) (Handle, error)
	Free(h Handle)
}

// SizeOf returns the storage size of T.
func SizeOf[T any]() uintptr {
	var zero T
	return unsafe.Sizeof(zero)
}

// AlignOf returns the required alignment of T.
func AlignOf[T any]() uintptr {
	var zero T
	return unsafe.Alignof(zero)
}

// View returns a typed view of n consecutive T values starting at h.
// The view aliases allocator memory and is valid until h is freed.
func View[T any](h Handle, n int) []T {
	if h == 0 || n <= 0 {
		return nil
	}
	return unsafe.Slice((*T)(h.Pointer()), n)
}

// AllocateArray allocates room for n values of T with T's alignment. A byte
// count that does not fit in an int fails with ErrAllocationFailed.
func AllocateArray[T any](a Allocator, n int) (Handle, error) {
	size := int(SizeOf[T]())
	if size > 0 && n > math.MaxInt/size {
		return 0, errors.WrapFatal(
			fmt.Errorf("%w: %d elements of %d bytes exceeds address space", errors.ErrAllocationFailed, n, size),
			"Allocator", "AllocateArray", "size check")
	}
	return a.Allocate(size*n, int(AlignOf[T]()))
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

package alloc

import (
	"fmt"
	"math"
	"sync"
	"unsafe"

	"github.com/c360/framering/errors"
)

// HeapAllocator serves blocks from the Go heap. Each block is a byte slice
// recorded in a live table, which keeps it reachable until Free. The Go heap
// does not move objects, so the recorded address stays valid.
type HeapAllocator struct {
	mu   sync.Mutex
	live map[Handle][]byte
}

// NewHeapAllocator creates an empty heap allocator.
func NewHeapAllocator() *HeapAllocator {
	return &HeapAllocator{
		live: make(map[Handle][]byte),
	}
}

// Allocate returns a zeroed block of size bytes aligned to align.
// Zero-size requests get a one-byte block so that every handle is distinct.
func (a *HeapAllocator) Allocate(size, align int) (Handle, error) {
	if err := validateRequest(size, align, "HeapAllocator"); err != nil {
		return 0, err
	}
	if size == 0 {
		size = 1
	}
	if size > math.MaxInt-align {
		return 0, errors.WrapFatal(
			fmt.Errorf("%w: %d bytes exceeds address space", errors.ErrAllocationFailed, size),
			"HeapAllocator", "Allocate", "size check")
	}

	// Over-allocate so an aligned address always fits.
	buf := make([]byte, size+align-1)
	base := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
	pad := (uintptr(align) - base%uintptr(align)) % uintptr(align)
	h := Handle(base + pad)

	a.mu.Lock()
	a.live[h] = buf
	a.mu.Unlock()

	return h, nil
}

// Free releases h. Freeing the nil handle is a no-op.
func (a *HeapAllocator) Free(h Handle) {
	if h.IsNil() {
		return
	}

	a.mu.Lock()
	_, ok := a.live[h]
	delete(a.live, h)
	a.mu.Unlock()

	if !ok {
		errors.Contract(errors.ErrUnknownHandle, "HeapAllocator", "Free",
			fmt.Sprintf("release handle %#x", uintptr(h)))
	}
}

// Live returns the number of blocks currently allocated.
func (a *HeapAllocator) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.live)
}

func validateRequest(size, align int, component string) error {
	if size < 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: negative size %d", errors.ErrAllocationFailed, size),
			component, "Allocate", "size check")
	}
	if !isPowerOfTwo(align) {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %d", errors.ErrInvalidAlignment, align),
			component, "Allocate", "alignment check")
	}
	return nil
}

//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package alloc

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/c360/framering/errors"
)

// MmapAllocator serves each block from its own anonymous private mapping,
// outside the Go heap. Blocks are page aligned and returned to the OS on Free.
type MmapAllocator struct {
	mu       sync.Mutex
	live     map[Handle][]byte
	pageSize int
}

// NewMmapAllocator creates an allocator backed by anonymous mappings.
func NewMmapAllocator() *MmapAllocator {
	return &MmapAllocator{
		live:     make(map[Handle][]byte),
		pageSize: unix.Getpagesize(),
	}
}

// Allocate maps a zeroed region of at least size bytes. Alignment beyond the
// page size is not supported.
func (a *MmapAllocator) Allocate(size, align int) (Handle, error) {
	if err := validateRequest(size, align, "MmapAllocator"); err != nil {
		return 0, err
	}
	if align > a.pageSize {
		return 0, errors.WrapInvalid(
			fmt.Errorf("%w: %d exceeds page size %d", errors.ErrInvalidAlignment, align, a.pageSize),
			"MmapAllocator", "Allocate", "alignment check")
	}
	if size == 0 {
		size = 1
	}

	length := ((size + a.pageSize - 1) / a.pageSize) * a.pageSize
	data, err := unix.Mmap(-1, 0, length,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return 0, errors.WrapFatal(
			fmt.Errorf("%w: mmap %d bytes: %v", errors.ErrAllocationFailed, length, err),
			"MmapAllocator", "Allocate", "map region")
	}

	h := Handle(uintptr(unsafe.Pointer(unsafe.SliceData(data))))

	a.mu.Lock()
	a.live[h] = data
	a.mu.Unlock()

	return h, nil
}

// Free unmaps h. Freeing the nil handle is a no-op.
func (a *MmapAllocator) Free(h Handle) {
	if h.IsNil() {
		return
	}

	a.mu.Lock()
	data, ok := a.live[h]
	delete(a.live, h)
	a.mu.Unlock()

	if !ok {
		errors.Contract(errors.ErrUnknownHandle, "MmapAllocator", "Free",
			fmt.Sprintf("release handle %#x", uintptr(h)))
	}
	if err := unix.Munmap(data); err != nil {
		errors.Fatal(err, "MmapAllocator", "Free", "unmap region")
	}
}

// Live returns the number of mappings currently held.
func (a *MmapAllocator) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.live)
}

// PageSize returns the mapping granularity.
func (a *MmapAllocator) PageSize() int {
	return a.pageSize
}

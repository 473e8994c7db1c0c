//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package alloc

import "os"

// MmapAllocator falls back to the Go heap on platforms without anonymous
// mappings.
type MmapAllocator struct {
	*HeapAllocator
}

// NewMmapAllocator returns a heap-backed allocator on this platform.
func NewMmapAllocator() *MmapAllocator {
	return &MmapAllocator{HeapAllocator: NewHeapAllocator()}
}

// PageSize returns the OS page size.
func (a *MmapAllocator) PageSize() int {
	return os.Getpagesize()
}

package alloc

import (
	"fmt"
	"strings"
	"sync"

	"github.com/c360/framering/errors"
)

// Kind names an allocator implementation in configuration.
type Kind string

const (
	KindHeap Kind = "heap"
	KindMmap Kind = "mmap"
)

var (
	defaultOnce      sync.Once
	defaultAllocator *HeapAllocator
)

// Default returns the process-wide heap allocator.
func Default() Allocator {
	defaultOnce.Do(func() {
		defaultAllocator = NewHeapAllocator()
	})
	return defaultAllocator
}

// New returns a fresh allocator of the given kind. An empty kind means heap.
func New(kind Kind) (Allocator, error) {
	switch Kind(strings.ToLower(string(kind))) {
	case "", KindHeap:
		return NewHeapAllocator(), nil
	case KindMmap:
		return NewMmapAllocator(), nil
	default:
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: unknown allocator kind %q", errors.ErrInvalidConfig, kind),
			"alloc", "New", "select allocator")
	}
}

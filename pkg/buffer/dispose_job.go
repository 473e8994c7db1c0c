package buffer

import (
	"sync/atomic"

	"github.com/c360/framering/pkg/alloc"
)

// DisposeJob frees one backing block. DisposeAfter schedules it with the
// buffer's released flag, which is set before the block is freed so later
// reads fail with ErrDisposed.
type DisposeJob struct {
	Handle    alloc.Handle
	Allocator alloc.Allocator
	Released  *atomic.Bool // optional
}

// Execute frees the block.
func (j DisposeJob) Execute() error {
	if j.Released != nil {
		j.Released.Store(true)
	}
	if j.Handle.IsNil() || j.Allocator == nil {
		return nil
	}
	j.Allocator.Free(j.Handle)
	return nil
}

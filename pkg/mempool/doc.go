// Package mempool provides MemoryPool, a typed free list of fixed-size blocks
// drawn from an alloc.Allocator.
//
// A pool pre-allocates blocks sized and aligned for T. Get pops the most
// recently released block, expanding the free list by a fixed increment when
// it runs dry; Release pushes a block back. Blocks are never validated or
// zeroed: using a block after Release is a caller bug.
//
//	pool, err := mempool.New[Segment](64, nil)
//	if err != nil {
//		return err
//	}
//	b := pool.Get()
//	b.Ptr().Length = 3
//	pool.Release(b)
//	pool.Dispose()
//
// Dispose frees only the blocks on the free list. Blocks still out with
// callers leak; their number is logged at Warn and reported by Stats.
//
// Elements stored in framering containers cannot hold a *MemoryPool, since
// containers require unmanaged types. Owned pairs a block with the pool's
// ID instead, and finds the pool through a process-wide directory when
// released.
package mempool

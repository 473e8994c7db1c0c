package mempool

import (
	"sync"
	"sync/atomic"
)

// ID identifies a live pool in the process-wide directory. Zero is never used.
type ID uint32

var (
	lastID    atomic.Uint32
	directory sync.Map // ID -> pool
)

func register(p any) ID {
	id := ID(lastID.Add(1))
	directory.Store(id, p)
	return id
}

func unregister(id ID) {
	directory.Delete(id)
}

// Lookup returns the live pool with id, if it holds blocks of T.
func Lookup[T any](id ID) (*MemoryPool[T], bool) {
	v, ok := directory.Load(id)
	if !ok {
		return nil, false
	}
	p, ok := v.(*MemoryPool[T])
	return p, ok
}

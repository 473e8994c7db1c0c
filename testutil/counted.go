package testutil

import (
	"sync"
	"sync/atomic"
)

var (
	trackerSeq atomic.Int32
	trackers   sync.Map // int32 -> *RefTracker
)

// RefTracker hands out Counted elements and records their disposal.
type RefTracker struct {
	id int32

	mu     sync.Mutex
	live   map[int64]struct{}
	nextID int64

	created  atomic.Int64
	disposes atomic.Int64
	doubles  atomic.Int64
}

// NewRefTracker creates a tracker. Call Close when done.
func NewRefTracker() *RefTracker {
	t := &RefTracker{
		id:   trackerSeq.Add(1),
		live: make(map[int64]struct{}),
	}
	trackers.Store(t.id, t)
	return t
}

// Close unregisters the tracker. Counted values it created become inert.
func (t *RefTracker) Close() {
	trackers.Delete(t.id)
}

// New creates a live element.
func (t *RefTracker) New() Counted {
	t.mu.Lock()
	t.nextID++
	id := t.nextID
	t.live[id] = struct{}{}
	t.mu.Unlock()

	t.created.Add(1)
	return Counted{ID: id, Tracker: t.id}
}

// Created returns how many elements New produced.
func (t *RefTracker) Created() int64 { return t.created.Load() }

// Disposes returns how many Dispose calls hit a live element.
func (t *RefTracker) Disposes() int64 { return t.disposes.Load() }

// DoubleDisposes returns how many Dispose calls hit an already disposed element.
func (t *RefTracker) DoubleDisposes() int64 { return t.doubles.Load() }

// Live returns the number of elements created and not yet disposed.
func (t *RefTracker) Live() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.live)
}

// IsLive reports whether the element with id has not been disposed.
func (t *RefTracker) IsLive(id int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.live[id]
	return ok
}

func (t *RefTracker) dispose(id int64) {
	t.mu.Lock()
	_, ok := t.live[id]
	delete(t.live, id)
	t.mu.Unlock()

	if ok {
		t.disposes.Add(1)
	} else {
		t.doubles.Add(1)
	}
}

// Counted is an unmanaged element that owns one tracker reference.
// The zero value owns nothing.
type Counted struct {
	ID      int64
	Tracker int32
	Value   int64
}

// Dispose releases the reference.
func (c *Counted) Dispose() {
	if c.Tracker == 0 {
		return
	}
	if t, ok := trackers.Load(c.Tracker); ok {
		t.(*RefTracker).dispose(c.ID)
	}
}

// Package testutil provides test helpers for framering containers.
//
// # Core Components
//
// Reference models:
//
// Deque - a plain slice-backed double-ended queue. Container tests run the
// same operation sequence against a buffer and a Deque and compare contents.
//
// Disposal accounting:
//
// RefTracker and Counted - Counted is an unmanaged element whose Dispose
// reports to the RefTracker that created it. The tracker counts creations,
// disposals and double disposals so tests can check that every element is
// disposed exactly once.
//
// Mock implementations:
//
// MockScheduler - records scheduled jobs, runs them on demand and can be told
// to fail, for exercising deferred-dispose paths without a worker pool.
//
// # Usage Examples
//
//	func TestClearDisposes(t *testing.T) {
//	    tracker := testutil.NewRefTracker()
//	    defer tracker.Close()
//
//	    buf, err := buffer.NewDisposableCircularBuffer[testutil.Counted](4, nil)
//	    require.NoError(t, err)
//
//	    buf.Add(tracker.New())
//	    buf.Clear()
//	    assert.Equal(t, int64(1), tracker.Disposes())
//	}
//
// All types are safe for concurrent use unless noted.
package testutil

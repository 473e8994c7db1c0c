// Package buffer provides growable circular buffers over allocator-managed
// memory, with built-in statistics tracking and optional Prometheus metrics.
//
// # Overview
//
// A buffer keeps its elements in a single block obtained from an
// alloc.Allocator, addressed by head, tail and length with wrap-around
// indexing. Elements can be pushed and popped at either end in O(1)
// amortized time. When an insert finds the buffer full, the block is
// reallocated according to a GrowthPolicy and the contents are copied so
// that logical order survives the move, whether or not the occupied range
// wrapped past the physical end.
//
// Element types must be unmanaged: fixed-layout values that contain no Go
// pointers. The check runs once per type at construction and panics on
// violation.
//
// Buffers are single-owner. They perform no internal locking; concurrent
// readers are safe only when the caller orders them against writers, for
// example through job dependencies.
//
// # Quick Start
//
//	buf, err := buffer.NewCircularBuffer[Point](16, nil)
//	if err != nil {
//		return err
//	}
//	defer buf.Dispose()
//
//	buf.Add(Point{X: 1})
//	buf.AddHead(Point{X: 0})
//	for i, p := range buf.All() {
//		fmt.Println(i, p)
//	}
//
// With a growth policy, metrics and a tracking allocator:
//
//	tracker := alloc.NewTrackingAllocator(alloc.Default())
//	buf, err := buffer.NewCircularBuffer[Point](4, tracker,
//		buffer.WithGrowthPolicy[Point](buffer.StepPolicy{Step: 32}),
//		buffer.WithMetrics[Point](registry, "trail_points"),
//	)
//
// # Disposable elements
//
// DisposableCircularBuffer holds elements that own resources. Its type
// parameter PT must be *T with a Dispose method. RemoveTail, RemoveHead,
// Clear and Dispose dispose the elements they evict; TakeTail, TakeHead and
// RotateTailToHead move elements without disposing them.
//
// # Teardown
//
// Dispose releases the backing block immediately. DisposeAfter hands a
// DisposeJob to a Scheduler so the block is released only after a dependency
// completes, which keeps in-flight readers valid:
//
//	h, err := buf.DisposeAfter(scheduler, frameJob)
//
// For DisposableCircularBuffer, DisposeAfter releases memory only. Remaining
// elements are NOT disposed; callers clear the buffer first. The number of
// abandoned elements is logged at Warn and counted in Stats.
//
// # Contract violations
//
// Out-of-range indices, use after Dispose, double Dispose and mutation during
// enumeration panic with an invalid-class error from the errors package.
// A failed growth allocation panics with a fatal-class error wrapping
// ErrAllocationFailed and leaves the buffer unchanged. Use errors.Recovered to
// turn such a panic back into an error.
//
// # Observability
//
// Statistics (Always On):
//   - Tracks operations using atomic counters
//   - Available via buf.Stats()
//   - Safe to read from a monitoring goroutine
//
// Prometheus Metrics (Optional):
//   - Enabled via WithMetrics(registry, prefix)
//   - Registered under framering_buffer_* with a component label
//   - Unregistered when the buffer is disposed
package buffer

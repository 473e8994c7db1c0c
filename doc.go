// Package framering provides growable circular buffers, a fixed-size block
// pool and deferred disposal for per-frame workloads that keep their data
// outside the Go heap.
//
// # Philosophy: Unmanaged Containers, Explicit Lifetimes
//
// Containers hold element types with no Go pointers, in memory obtained from
// an Allocator. The garbage collector never scans or moves that memory, so
// every container has an explicit lifetime:
//   - Dispose frees storage immediately
//   - DisposeAfter hands storage to a scheduled job that runs once a
//     dependency completes, so readers in flight finish first
//
// framering MUST NOT contain:
//   - Thread-safe container variants (containers are single-owner)
//   - Persistence or wire formats for container contents
//   - Shrinking or compaction of backing storage
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│         cmd/trailsim                │  Per-frame simulation
//	│  (update job, render job, teardown) │  Leak check at exit
//	└─────────────────────────────────────┘
//	           ↓ uses
//	┌─────────────────────────────────────┐
//	│   pkg/buffer        pkg/mempool     │  CircularBuffer, Disposable-
//	│   (ring, enumerator) (free list)    │  CircularBuffer, MemoryPool
//	└─────────────────────────────────────┘
//	           ↓ allocate from / schedule on
//	┌─────────────────────────────────────┐
//	│   pkg/alloc         pkg/job         │  Heap, mmap, tracking allocators
//	│                     pkg/worker      │  Dependency-ordered jobs
//	└─────────────────────────────────────┘
//	           ↓ report through
//	┌─────────────────────────────────────┐
//	│   errors   metric   config          │  Classified errors, Prometheus,
//	│                                     │  layered JSON/YAML configuration
//	└─────────────────────────────────────┘
//
// # Package Overview
//
//   - pkg/alloc: Allocator interface, HeapAllocator, MmapAllocator,
//     TrackingAllocator, and the unmanaged-type check
//   - pkg/buffer: CircularBuffer and DisposableCircularBuffer with growth
//     policies, enumeration, statistics and metrics
//   - pkg/mempool: MemoryPool of fixed-size blocks and pool-owned handles
//   - pkg/job: Job, Handle and the dependency-aware Scheduler
//   - pkg/worker: bounded generic worker pool behind the Scheduler
//   - errors: error classes and container sentinels
//   - metric: Prometheus registry wrapper, core metrics and HTTP server
//   - config: defaults, layered loading, environment overrides, validation
//   - testutil: reference deque, disposal tracker and mock scheduler
//
// # Quick Start
//
//	buf, err := buffer.NewCircularBuffer[Point](16, alloc.Default())
//	if err != nil {
//		return err
//	}
//	buf.AddHead(Point{X: 1})
//	for i, p := range buf.All() {
//		fmt.Println(i, p)
//	}
//	buf.Dispose()
//
// See cmd/trailsim for a complete frame loop with deferred teardown.
package framering

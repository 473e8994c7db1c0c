package buffer

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/framering/errors"
	"github.com/c360/framering/metric"
	"github.com/c360/framering/pkg/alloc"
	"github.com/c360/framering/pkg/job"
	"github.com/c360/framering/testutil"
)

type countedBuffer = DisposableCircularBuffer[testutil.Counted, *testutil.Counted]

var _ Buffer[testutil.Counted] = (*countedBuffer)(nil)

func newCounted(t *testing.T, capacity int, a alloc.Allocator) (*countedBuffer, *testutil.RefTracker) {
	t.Helper()
	tracker := testutil.NewRefTracker()
	t.Cleanup(tracker.Close)

	buf, err := NewDisposableCircularBuffer[testutil.Counted](capacity, a)
	require.NoError(t, err)
	return buf, tracker
}

func TestDisposableRemoveDisposesEvicted(t *testing.T) {
	buf, tracker := newCounted(t, 4, nil)
	defer buf.Dispose()

	a, b, c := tracker.New(), tracker.New(), tracker.New()
	buf.Add(a)
	buf.Add(b)
	buf.Add(c)

	buf.RemoveTail()
	assert.False(t, tracker.IsLive(c.ID), "tail element disposed")
	assert.True(t, tracker.IsLive(a.ID))
	assert.True(t, tracker.IsLive(b.ID))

	buf.RemoveHead()
	assert.False(t, tracker.IsLive(a.ID), "head element disposed")
	assert.Equal(t, int64(2), tracker.Disposes())
	assert.Equal(t, int64(2), buf.Stats().DisposedElements())

	buf.RemoveTail()
	buf.RemoveTail() // empty: no-op
	assert.Equal(t, int64(3), tracker.Disposes())
	assert.Equal(t, int64(0), tracker.DoubleDisposes())
}

func TestDisposableTakeTransfersOwnership(t *testing.T) {
	buf, tracker := newCounted(t, 2, nil)
	defer buf.Dispose()

	buf.Add(tracker.New())
	buf.Add(tracker.New())

	tail, ok := buf.TakeTail()
	require.True(t, ok)
	head, ok := buf.TakeHead()
	require.True(t, ok)

	assert.True(t, tracker.IsLive(tail.ID))
	assert.True(t, tracker.IsLive(head.ID))
	assert.Equal(t, int64(0), tracker.Disposes())

	tail.Dispose()
	head.Dispose()
	assert.Equal(t, 0, tracker.Live())
}

func TestDisposableRotateDoesNotDispose(t *testing.T) {
	buf, tracker := newCounted(t, 3, nil)
	defer buf.Dispose()

	for i := 0; i < 3; i++ {
		c := tracker.New()
		c.Value = int64(i)
		buf.Add(c)
	}

	for i := 0; i < 7; i++ {
		require.True(t, buf.RotateTailToHead())
	}
	assert.Equal(t, int64(0), tracker.Disposes())

	var values []int64
	for _, c := range buf.All() {
		values = append(values, c.Value)
	}
	// Seven rotations of three elements is one net rotation.
	assert.Equal(t, []int64{2, 0, 1}, values)
}

func TestDisposableClearDisposesAll(t *testing.T) {
	buf, tracker := newCounted(t, 2, nil)
	defer buf.Dispose()

	buf.Clear()
	assert.Equal(t, int64(0), tracker.Disposes())

	for i := 0; i < 5; i++ {
		buf.Add(tracker.New())
	}
	capacity := buf.Capacity()

	buf.Clear()
	assert.True(t, buf.IsEmpty())
	assert.Equal(t, capacity, buf.Capacity())
	assert.Equal(t, int64(5), tracker.Disposes())
	assert.Equal(t, 0, tracker.Live())
}

func TestDisposableDisposeDisposesRemaining(t *testing.T) {
	allocator := alloc.NewTrackingAllocator(nil)
	buf, tracker := newCounted(t, 2, allocator)

	for i := 0; i < 3; i++ {
		buf.Add(tracker.New())
	}
	buf.Dispose()

	assert.Equal(t, int64(3), tracker.Disposes())
	assert.Equal(t, 0, tracker.Live())
	assert.Equal(t, 0, allocator.Stats().LiveBlocks)

	err := recoverError(buf.Dispose)
	assert.ErrorIs(t, err, errors.ErrAlreadyDisposed)
	assert.Equal(t, int64(0), tracker.DoubleDisposes())
}

// Total disposals equal inserts minus transfers that were re-inserted.
func TestDisposableAccountingRoundTrip(t *testing.T) {
	buf, tracker := newCounted(t, 1, nil)
	rng := rand.New(rand.NewSource(7))

	var inserts, reinserts int64
	for step := 0; step < 4000; step++ {
		switch op := rng.Intn(10); {
		case op < 4:
			buf.Add(tracker.New())
			inserts++
		case op < 5:
			buf.AddHead(tracker.New())
			inserts++
		case op < 6:
			buf.RemoveTail()
		case op < 7:
			buf.RemoveHead()
		case op < 8:
			if c, ok := buf.TakeTail(); ok {
				buf.AddHead(c)
				inserts++
				reinserts++
			}
		case op < 9:
			if c, ok := buf.TakeHead(); ok {
				buf.Add(c)
				inserts++
				reinserts++
			}
		default:
			if rng.Intn(20) == 0 {
				buf.Clear()
			} else {
				buf.RotateTailToHead()
			}
		}
	}
	buf.Dispose()

	assert.Equal(t, inserts-reinserts, tracker.Disposes())
	assert.Equal(t, tracker.Created(), tracker.Disposes())
	assert.Equal(t, int64(0), tracker.DoubleDisposes())
	assert.Equal(t, 0, tracker.Live())
}

// Deferred dispose frees memory only; remaining elements are abandoned.
func TestDisposableDisposeAfterDoesNotDisposeElements(t *testing.T) {
	allocator := alloc.NewTrackingAllocator(nil)
	buf, tracker := newCounted(t, 4, allocator)
	sched := testutil.NewMockScheduler()

	for i := 0; i < 3; i++ {
		buf.Add(tracker.New())
	}
	stats := buf.Stats()

	h, err := buf.DisposeAfter(sched, job.Handle{})
	require.NoError(t, err)
	assert.False(t, buf.IsCreated())
	assert.False(t, h.IsCompleted())
	assert.Equal(t, 1, allocator.Stats().LiveBlocks, "memory held until the job runs")

	require.NoError(t, sched.RunAll())
	assert.True(t, h.IsCompleted())
	assert.Equal(t, 0, allocator.Stats().LiveBlocks)

	assert.Equal(t, int64(0), tracker.Disposes())
	assert.Equal(t, 3, tracker.Live())
	assert.Equal(t, int64(3), stats.AbandonedElements())
}

func TestDisposableDisposeAfterClearedBuffer(t *testing.T) {
	reg := metric.NewMetricsRegistry()
	tracker := testutil.NewRefTracker()
	defer tracker.Close()

	buf, err := NewDisposableCircularBuffer[testutil.Counted](4, nil,
		WithMetrics[testutil.Counted](reg, "segments"))
	require.NoError(t, err)

	buf.Add(tracker.New())
	buf.Add(tracker.New())
	buf.Clear()

	sched := testutil.NewMockScheduler()
	_, err = buf.DisposeAfter(sched, job.Handle{})
	require.NoError(t, err)
	require.NoError(t, sched.RunAll())

	assert.Equal(t, 0, tracker.Live())
	assert.Equal(t, int64(0), buf.Stats().AbandonedElements())
}

func TestDisposeAfterWaitsForDependency(t *testing.T) {
	allocator := alloc.NewTrackingAllocator(nil)
	sched, err := job.New(job.WithWorkers(2))
	require.NoError(t, err)
	require.NoError(t, sched.Start(context.Background()))
	defer func() { _ = sched.Stop(time.Second) }()

	buf, err := NewCircularBuffer[point](8, allocator)
	require.NoError(t, err)
	buf.Add(point{X: 1})

	dep, release := job.Manual()
	h, err := buf.DisposeAfter(sched, dep)
	require.NoError(t, err)
	assert.False(t, buf.IsCreated())

	time.Sleep(20 * time.Millisecond)
	assert.False(t, h.IsCompleted(), "dispose job ran before its dependency")
	assert.Equal(t, 1, allocator.Stats().LiveBlocks)

	release()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.Wait(ctx))
	assert.NoError(t, h.Err())
	assert.Equal(t, 0, allocator.Stats().LiveBlocks)
}

func TestDisposeAfterDependentReaderSeesContents(t *testing.T) {
	allocator := alloc.NewTrackingAllocator(nil)
	sched, err := job.New(job.WithWorkers(2))
	require.NoError(t, err)
	require.NoError(t, sched.Start(context.Background()))
	defer func() { _ = sched.Stop(time.Second) }()

	buf, err := NewCircularBuffer[point](4, allocator)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		buf.Add(point{Frame: uint32(i)})
	}

	started := make(chan struct{})
	var seen []uint32
	reader, err := sched.Schedule(job.Func(func() error {
		for i, p := range buf.All() {
			if i == 0 {
				close(started)
			}
			seen = append(seen, p.Frame)
			time.Sleep(10 * time.Millisecond)
		}
		return nil
	}), job.Handle{})
	require.NoError(t, err)

	<-started
	h, err := buf.DisposeAfter(sched, reader)
	require.NoError(t, err)
	assert.False(t, buf.IsCreated())
	err = recoverError(func() { buf.Add(point{}) })
	assert.ErrorIs(t, err, errors.ErrDisposed, "owner writes close immediately")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.Wait(ctx))
	require.NoError(t, reader.Err())
	assert.Equal(t, []uint32{0, 1, 2, 3}, seen)

	assert.Equal(t, 0, allocator.Stats().LiveBlocks)
	assert.Equal(t, 0, buf.Len())
	err = recoverError(func() { buf.Get(0) })
	assert.ErrorIs(t, err, errors.ErrDisposed)
}

func TestDisposeAfterReadsUntilJobRuns(t *testing.T) {
	buf, err := NewCircularBuffer[int](4, nil)
	require.NoError(t, err)
	buf.Add(1)
	buf.Add(2)

	sched := testutil.NewMockScheduler()
	_, err = buf.DisposeAfter(sched, job.Handle{})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, buf.ToSlice())
	assert.Equal(t, 2, buf.Len())
	assert.Equal(t, 4, buf.Capacity())

	require.NoError(t, sched.RunAll())
	assert.Equal(t, 0, buf.Len())
	assert.True(t, buf.IsEmpty())
	err = recoverError(func() { buf.ToSlice() })
	assert.ErrorIs(t, err, errors.ErrDisposed)
	err = recoverError(func() { buf.Enumerator() })
	assert.ErrorIs(t, err, errors.ErrDisposed)
}

func TestDisposeAfterSchedulingFailure(t *testing.T) {
	t.Run("stopped scheduler", func(t *testing.T) {
		sched, err := job.New()
		require.NoError(t, err)
		require.NoError(t, sched.Start(context.Background()))
		require.NoError(t, sched.Stop(time.Second))

		buf := newInts(t, 2)
		buf.Add(1)

		_, err = buf.DisposeAfter(sched, job.Handle{})
		require.Error(t, err)
		assert.ErrorIs(t, err, job.ErrSchedulerStopped)
		assert.True(t, errors.IsInvalid(err))

		assert.True(t, buf.IsCreated(), "buffer stays alive")
		assert.Equal(t, []int{1}, buf.ToSlice())
	})

	t.Run("scheduler error", func(t *testing.T) {
		sched := testutil.NewMockScheduler()
		sched.ScheduleFunc = func(job.Job, job.Handle) error { return testutil.ErrMockFailed }

		buf, tracker := newCounted(t, 2, nil)
		buf.Add(tracker.New())

		_, err := buf.DisposeAfter(sched, job.Handle{})
		assert.ErrorIs(t, err, testutil.ErrMockFailed)
		assert.True(t, buf.IsCreated())
		assert.Equal(t, int64(0), buf.Stats().AbandonedElements())

		buf.Dispose()
		assert.Equal(t, 0, tracker.Live())
	})

	t.Run("nil scheduler", func(t *testing.T) {
		buf := newInts(t, 2)
		_, err := buf.DisposeAfter(nil, job.Handle{})
		assert.ErrorIs(t, err, ErrNilScheduler)
		assert.True(t, buf.IsCreated())
	})

	t.Run("after dispose", func(t *testing.T) {
		buf := newInts(t, 2)
		buf.Dispose()
		err := recoverError(func() { _, _ = buf.DisposeAfter(testutil.NewMockScheduler(), job.Handle{}) })
		assert.ErrorIs(t, err, errors.ErrAlreadyDisposed)
	})
}

func TestDisposeJob(t *testing.T) {
	allocator := alloc.NewTrackingAllocator(nil)
	h, err := alloc.AllocateArray[int](allocator, 4)
	require.NoError(t, err)

	require.NoError(t, DisposeJob{Handle: h, Allocator: allocator}.Execute())
	assert.Equal(t, 0, allocator.Stats().LiveBlocks)

	assert.NoError(t, DisposeJob{}.Execute())
}

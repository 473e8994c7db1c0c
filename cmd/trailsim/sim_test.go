package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/framering/config"
	"github.com/c360/framering/metric"
	"github.com/c360/framering/pkg/alloc"
	"github.com/c360/framering/pkg/buffer"
	"github.com/c360/framering/pkg/job"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Buffer.InitialCapacity = 2
	cfg.Pool.InitialBlocks = 4
	cfg.Pool.ExpandBy = 2
	cfg.Scheduler.Workers = 2
	cfg.Simulation.Frames = 60
	cfg.Simulation.Trails = 4
	cfg.Simulation.TrailLength = 12
	cfg.Simulation.SegmentEvery = 3
	cfg.Simulation.Seed = 42
	return cfg
}

func newTestSim(t *testing.T, cfg *config.Config, registry *metric.MetricsRegistry) (*Simulation, *alloc.TrackingAllocator) {
	t.Helper()
	tracker := alloc.NewTrackingAllocator(nil)

	sched, err := job.New(job.WithWorkers(cfg.Scheduler.Workers))
	require.NoError(t, err)
	require.NoError(t, sched.Start(context.Background()))
	t.Cleanup(func() { _ = sched.Stop(time.Second) })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sim, err := NewSimulation(cfg, tracker, sched, registry, logger)
	require.NoError(t, err)
	return sim, tracker
}

func TestSimulationRunReleasesEverything(t *testing.T) {
	cfg := testConfig()
	sim, tracker := newTestSim(t, cfg, nil)

	summary, err := sim.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, cfg.Simulation.Frames, summary.Frames)
	assert.Positive(t, summary.PointsRendered)
	assert.Positive(t, summary.PathLength)
	assert.Positive(t, summary.Growths, "trails outgrow their initial capacity")
	assert.Equal(t, 0, summary.Pool.Outstanding)
	require.NotNil(t, summary.Allocator)
	assert.Equal(t, 0, summary.Allocator.LiveBlocks)
	assert.Empty(t, tracker.Leaks())
	assert.Equal(t, int64(0), summary.Scheduler.Failed, "no update, render or dispose job failed")
	assert.Equal(t, summary.Scheduler.Scheduled, summary.Scheduler.Completed)
}

func TestSimulationTrailInvariants(t *testing.T) {
	cfg := testConfig()
	sim, _ := newTestSim(t, cfg, nil)
	ctx := context.Background()

	for frame := uint32(0); frame < 40; frame++ {
		require.NoError(t, sim.step(ctx, frame))
		sim.last.Complete()

		segments := 0
		for _, tr := range sim.trails {
			assert.LessOrEqual(t, tr.points.Len(), cfg.Simulation.TrailLength)

			// Newest first: frames strictly decrease from head to tail.
			prev := uint32(1 << 31)
			for _, p := range tr.points.All() {
				assert.Less(t, p.Frame, prev)
				prev = p.Frame
			}

			// Only the oldest segment may start before the oldest point.
			if tail, ok := tr.points.Tail(); ok && tr.segments.Len() > 1 {
				assert.Greater(t, tr.segments.ElementAt(tr.segments.Len()-2).Start, tail.Frame)
			}
			segments += tr.segments.Len()
		}
		assert.Equal(t, segments, sim.pool.Stats().Outstanding, "every live segment holds one style block")
	}

	require.NoError(t, sim.shutdown())
	assert.Equal(t, 0, sim.pool.Stats().Outstanding)
}

func TestSimulationRetiresTrails(t *testing.T) {
	cfg := testConfig()
	cfg.Simulation.Frames = 20
	sim, tracker := newTestSim(t, cfg, nil)
	sim.retireOdds = 1

	summary, err := sim.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, cfg.Simulation.Frames*cfg.Simulation.Trails, summary.Retired)
	assert.Equal(t, 0, tracker.Stats().LiveBlocks)
	assert.Equal(t, 0, summary.Pool.Outstanding)
	assert.Equal(t, int64(0), summary.Scheduler.Failed, "render reads retired trails before their disposal")
	// Every trail lives one frame and holds one point when it is rendered.
	assert.Equal(t, int64(cfg.Simulation.Frames*cfg.Simulation.Trails), summary.PointsRendered)
}

func TestSimulationCancelled(t *testing.T) {
	sim, tracker := newTestSim(t, testConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := sim.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Frames)
	assert.Equal(t, 0, tracker.Stats().LiveBlocks)
}

func TestSimulationDeterministic(t *testing.T) {
	run := func() Summary {
		cfg := testConfig()
		sim, _ := newTestSim(t, cfg, nil)
		sim.retireOdds = 10
		summary, err := sim.Run(context.Background())
		require.NoError(t, err)
		return summary
	}

	a, b := run(), run()
	assert.Equal(t, a.Retired, b.Retired)
	assert.Equal(t, a.PointsRendered, b.PointsRendered)
	assert.InDelta(t, a.PathLength, b.PathLength, 1e-9)
}

func TestSimulationMetrics(t *testing.T) {
	cfg := testConfig()
	cfg.Simulation.Frames = 30
	registry := metric.NewMetricsRegistry()
	sim, _ := newTestSim(t, cfg, registry)
	sim.retireOdds = 5

	summary, err := sim.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), summary.Scheduler.Failed)

	core := registry.CoreMetrics()
	torn := float64(summary.Retired + cfg.Simulation.Trails)
	assert.Equal(t, torn, promtest.ToFloat64(core.Disposals.WithLabelValues(buffer.KindCircular, "deferred")))
	assert.Equal(t, torn, promtest.ToFloat64(core.Disposals.WithLabelValues(buffer.KindDisposable, "deferred")))
	assert.Equal(t, 1.0, promtest.ToFloat64(core.Disposals.WithLabelValues("pool", "deferred")))
	assert.Equal(t, 0.0, promtest.ToFloat64(core.ContainersLive.WithLabelValues(buffer.KindCircular)))
	assert.Equal(t, 0.0, promtest.ToFloat64(core.AbandonedElements), "segments are cleared before deferred disposal")
}

func TestSimulationFramePacing(t *testing.T) {
	cfg := testConfig()
	cfg.Simulation.Frames = 10
	cfg.Simulation.FrameRate = 200
	sim, _ := newTestSim(t, cfg, nil)

	start := time.Now()
	summary, err := sim.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, summary.Frames)
	// burst of one: the first frame is free, the other nine wait 5ms each
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestRunSimulationStopsOnServerError(t *testing.T) {
	cfg := testConfig()
	cfg.Simulation.Frames = 1_000_000
	cfg.Simulation.FrameRate = 1000
	sim, tracker := newTestSim(t, cfg, nil)

	serverErrs := make(chan error, 1)
	serverErrs <- errors.New("listener closed")

	summary, err := runSimulation(context.Background(), sim, serverErrs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listener closed")
	assert.Less(t, summary.Frames, cfg.Simulation.Frames)
	assert.Equal(t, 0, tracker.Stats().LiveBlocks)
}

func TestRunSimulationWithoutServer(t *testing.T) {
	cfg := testConfig()
	cfg.Simulation.Frames = 5
	sim, _ := newTestSim(t, cfg, nil)

	summary, err := runSimulation(context.Background(), sim, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Frames)
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"golang.org/x/time/rate"

	"github.com/c360/framering/config"
	"github.com/c360/framering/errors"
	"github.com/c360/framering/metric"
	"github.com/c360/framering/pkg/alloc"
	"github.com/c360/framering/pkg/buffer"
	"github.com/c360/framering/pkg/job"
	"github.com/c360/framering/pkg/mempool"
)

// defaultRetireOdds gives each trail a 1-in-N chance per frame of being torn down.
const defaultRetireOdds = 240

// Point is one body point of a trail.
type Point struct {
	X, Y, Z float32
	Frame   uint32
}

// SegmentStyle is the pooled per-segment render data.
type SegmentStyle struct {
	Width float32
	Hue   float32
}

// Segment marks where a run of points with one style begins. It owns a
// pooled SegmentStyle block and returns it on Dispose.
type Segment struct {
	Start uint32
	Style mempool.Owned[SegmentStyle]
}

// Dispose returns the segment's style block to its pool.
func (s *Segment) Dispose() {
	s.Style.Release()
}

type trail struct {
	id       int
	target   int
	vx, vy   float32
	points   *buffer.CircularBuffer[Point]
	segments *buffer.DisposableCircularBuffer[Segment, *Segment]
}

// Summary reports a finished run.
type Summary struct {
	Frames         int                  `json:"frames"`
	Trails         int                  `json:"trails"`
	Retired        int                  `json:"retired"`
	PointsRendered int64                `json:"points_rendered"`
	PathLength     float64              `json:"path_length"`
	Growths        int64                `json:"growths"`
	Pool           mempool.Stats        `json:"pool"`
	Scheduler      job.Stats            `json:"scheduler"`
	Allocator      *alloc.TrackingStats `json:"allocator,omitempty"`
	Elapsed        string               `json:"elapsed"`
}

// Simulation advances a set of trails one frame at a time. Each frame runs an
// update job and a render job on the scheduler. Trails that die are torn down
// with DisposeAfter chained on the render job that last read them.
type Simulation struct {
	cfg        *config.Config
	allocator  alloc.Allocator
	registry   *metric.MetricsRegistry
	sched      *job.Scheduler
	pool       *mempool.MemoryPool[SegmentStyle]
	logger     *slog.Logger
	rng        *rand.Rand
	retireOdds int
	pacer      *rate.Limiter // nil when frame_rate is 0

	trails   []*trail
	nextID   int
	last     job.Handle
	teardown []job.Handle

	retired    int
	growths    int64
	rendered   int64
	pathLength float64
}

// NewSimulation builds the segment style pool and the initial trails.
// registry may be nil.
func NewSimulation(cfg *config.Config, a alloc.Allocator, sched *job.Scheduler,
	registry *metric.MetricsRegistry, logger *slog.Logger,
) (*Simulation, error) {
	poolOpts := []mempool.Option{
		mempool.WithExpandBy(cfg.Pool.ExpandBy),
		mempool.WithLogger(logger),
	}
	if registry != nil {
		poolOpts = append(poolOpts, mempool.WithMetrics(registry, "segment_styles"))
	}
	pool, err := mempool.New[SegmentStyle](cfg.Pool.InitialBlocks, a, poolOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "Simulation", "New", "create style pool")
	}

	s := &Simulation{
		cfg:        cfg,
		allocator:  a,
		registry:   registry,
		sched:      sched,
		pool:       pool,
		logger:     logger.With("component", "trailsim"),
		rng:        rand.New(rand.NewSource(cfg.Simulation.Seed)),
		retireOdds: defaultRetireOdds,
	}
	if fps := cfg.Simulation.FrameRate; fps > 0 {
		s.pacer = rate.NewLimiter(rate.Limit(fps), 1)
	}

	for i := 0; i < cfg.Simulation.Trails; i++ {
		t, err := s.spawn()
		if err != nil {
			s.disposeAll()
			return nil, err
		}
		s.trails = append(s.trails, t)
	}
	return s, nil
}

func (s *Simulation) spawn() (*trail, error) {
	id := s.nextID
	s.nextID++

	growth := buffer.DoublingPolicy{MinBlockBytes: s.cfg.Buffer.MinBlockBytes}
	pointOpts := []buffer.Option[Point]{
		buffer.WithGrowthPolicy[Point](growth),
		buffer.WithLogger[Point](s.logger),
	}
	segmentOpts := []buffer.Option[Segment]{
		buffer.WithGrowthPolicy[Segment](growth),
		buffer.WithLogger[Segment](s.logger),
	}
	if s.registry != nil {
		pointOpts = append(pointOpts, buffer.WithMetrics[Point](s.registry, fmt.Sprintf("trail_%d_points", id)))
		segmentOpts = append(segmentOpts, buffer.WithMetrics[Segment](s.registry, fmt.Sprintf("trail_%d_segments", id)))
	}

	points, err := buffer.NewCircularBuffer[Point](s.cfg.Buffer.InitialCapacity, s.allocator, pointOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "Simulation", "spawn", "create point buffer")
	}
	segments, err := buffer.NewDisposableCircularBuffer[Segment](1, s.allocator, segmentOpts...)
	if err != nil {
		points.Dispose()
		return nil, errors.Wrap(err, "Simulation", "spawn", "create segment buffer")
	}
	if s.cfg.Simulation.SegmentEvery > 0 {
		segments.SetCapacity(s.cfg.Simulation.TrailLength/s.cfg.Simulation.SegmentEvery + 1)
	}

	angle := s.rng.Float64() * 2 * math.Pi
	return &trail{
		id:       id,
		target:   s.targetLength(),
		vx:       float32(math.Cos(angle)),
		vy:       float32(math.Sin(angle)),
		points:   points,
		segments: segments,
	}, nil
}

func (s *Simulation) targetLength() int {
	full := s.cfg.Simulation.TrailLength
	return full/2 + s.rng.Intn(full-full/2+1)
}

// Run advances up to cfg.Simulation.Frames frames, then tears every trail
// down and waits for the deferred disposal to finish. A cancelled ctx ends
// the frame loop early; teardown still runs.
func (s *Simulation) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	frames := 0

	var runErr error
	for frame := 0; frame < s.cfg.Simulation.Frames; frame++ {
		if ctx.Err() != nil {
			break
		}
		if s.pacer != nil && s.pacer.Wait(ctx) != nil {
			break
		}
		if err := s.step(ctx, uint32(frame)); err != nil {
			runErr = err
			break
		}
		frames++
	}

	if err := s.shutdown(); err != nil && runErr == nil {
		runErr = err
	}

	summary := Summary{
		Frames:         frames,
		Trails:         s.cfg.Simulation.Trails,
		Retired:        s.retired,
		PointsRendered: s.rendered,
		PathLength:     s.pathLength,
		Growths:        s.growths,
		Pool:           s.pool.Stats(),
		Scheduler:      s.sched.Stats(),
		Elapsed:        time.Since(start).String(),
	}
	if tracker, ok := s.allocator.(*alloc.TrackingAllocator); ok {
		stats := tracker.Stats()
		summary.Allocator = &stats
	}
	return summary, runErr
}

// step runs one frame: update, retire, render, then schedules teardown of
// the retired trails after the render job.
func (s *Simulation) step(ctx context.Context, frame uint32) error {
	update, err := s.sched.Schedule(job.Func(func() error {
		s.update(frame)
		return nil
	}), s.last)
	if err != nil {
		return errors.Wrap(err, "Simulation", "step", "schedule update")
	}
	if err := update.Wait(ctx); err != nil {
		// The update may still be running; later frames must not touch trails.
		update.Complete()
		s.last = update
		return nil
	}
	if err := update.Err(); err != nil {
		return errors.Wrap(err, "Simulation", "step", "update frame")
	}

	// Retired trails are rendered one last time; their replacements start next frame.
	visible := s.trails
	retired, err := s.retire()
	if err != nil {
		return err
	}

	render, err := s.sched.Schedule(job.Func(func() error {
		s.render(visible)
		return nil
	}), update)
	if err != nil {
		s.trails = append(s.trails, retired...)
		return errors.Wrap(err, "Simulation", "step", "schedule render")
	}
	s.last = render

	s.retired += len(retired)
	var firstErr error
	for _, t := range retired {
		if err := s.tearDown(t, render); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// update moves every live trail forward one point.
func (s *Simulation) update(frame uint32) {
	every := s.cfg.Simulation.SegmentEvery
	for _, t := range s.trails {
		head, ok := t.points.Head()
		if !ok {
			head = Point{X: float32(t.id), Y: 0}
		}
		next := Point{
			X:     head.X + t.vx + float32(s.rng.NormFloat64()*0.1),
			Y:     head.Y + t.vy + float32(s.rng.NormFloat64()*0.1),
			Z:     head.Z,
			Frame: frame,
		}

		for t.points.Len() > t.target {
			t.points.RemoveTail()
		}
		if t.points.Len() == t.target {
			t.points.RotateTailToHead()
			t.points.Set(0, next)
		} else {
			t.points.AddHead(next)
		}

		if every > 0 && int(frame)%every == 0 {
			style := s.pool.GetOwned()
			*style.Ptr() = SegmentStyle{
				Width: 0.5 + s.rng.Float32(),
				Hue:   s.rng.Float32(),
			}
			t.segments.AddHead(Segment{Start: frame, Style: style})
			t.target = s.targetLength()
		}
		s.trimSegments(t)
	}
}

// trimSegments drops segments that no longer cover any point.
func (s *Simulation) trimSegments(t *trail) {
	oldest, ok := t.points.Tail()
	if !ok {
		t.segments.Clear()
		return
	}
	for n := t.segments.Len(); n > 1; n = t.segments.Len() {
		if t.segments.ElementAt(n-2).Start > oldest.Frame {
			return
		}
		t.segments.RemoveTail()
	}
}

// render walks each trail head to tail and accumulates its polyline length.
func (s *Simulation) render(trails []*trail) {
	for _, t := range trails {
		var prev *Point
		e := t.points.Enumerator()
		for e.Next() {
			p := e.Current()
			if prev != nil {
				dx, dy := float64(p.X-prev.X), float64(p.Y-prev.Y)
				s.pathLength += math.Hypot(dx, dy)
			}
			prev = p
			s.rendered++
		}
	}
}

// retire removes dying trails from the live set and spawns replacements.
func (s *Simulation) retire() ([]*trail, error) {
	var retired []*trail
	live := make([]*trail, 0, len(s.trails))
	for _, t := range s.trails {
		if s.rng.Intn(s.retireOdds) != 0 {
			live = append(live, t)
			continue
		}
		retired = append(retired, t)

		fresh, err := s.spawn()
		if err != nil {
			s.trails = append(live, retired...)
			return nil, err
		}
		live = append(live, fresh)
	}
	s.trails = live
	return retired, nil
}

// tearDown returns a trail's pooled styles now and frees its buffers once
// dependency completes. If scheduling fails it waits for dependency and
// frees them immediately.
func (s *Simulation) tearDown(t *trail, dependency job.Handle) error {
	s.growths += t.points.Stats().Growths()
	s.logger.Debug("Trail torn down", "trail", t.id, "points", t.points.Len())
	t.segments.Clear()

	var firstErr error
	for _, b := range []interface {
		DisposeAfter(buffer.Scheduler, job.Handle) (job.Handle, error)
		Dispose()
	}{t.points, t.segments} {
		h, err := b.DisposeAfter(s.sched, dependency)
		if err != nil {
			dependency.Complete()
			b.Dispose()
			if firstErr == nil {
				firstErr = errors.Wrap(err, "Simulation", "tearDown", "schedule buffer disposal")
			}
			continue
		}
		s.teardown = append(s.teardown, h)
	}
	return firstErr
}

// shutdown tears down the live trails after the last frame, then the pool,
// and waits for every disposal job.
func (s *Simulation) shutdown() error {
	s.last.Complete()

	var firstErr error
	for _, t := range s.trails {
		if err := s.tearDown(t, s.last); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.trails = nil

	done, err := s.pool.DisposeAfter(s.sched, job.CombineDependencies(s.teardown...))
	if err != nil {
		s.pool.Dispose()
		if firstErr == nil {
			firstErr = errors.Wrap(err, "Simulation", "shutdown", "schedule pool disposal")
		}
		return firstErr
	}
	done.Complete()
	return firstErr
}

// disposeAll releases everything immediately. Used when construction fails.
func (s *Simulation) disposeAll() {
	for _, t := range s.trails {
		t.segments.Dispose()
		t.points.Dispose()
	}
	s.trails = nil
	s.pool.Dispose()
}

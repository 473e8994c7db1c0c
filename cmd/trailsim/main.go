// Package main implements trailsim, a per-frame trail simulation that drives
// framering's circular buffers, memory pool and deferred disposal.
//
// Each trail is a CircularBuffer of points trimmed to a target length, plus a
// DisposableCircularBuffer of segments whose elements own pooled style blocks.
// Dead trails are freed with DisposeAfter once the frame's render job has read
// them. At exit the tracking allocator must report zero live blocks.
package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/c360/framering/config"
	"github.com/c360/framering/errors"
	"github.com/c360/framering/metric"
	"github.com/c360/framering/pkg/alloc"
	"github.com/c360/framering/pkg/job"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "trailsim"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()

	if err != nil {
		if stderrors.Is(err, flag.ErrHelp) {
			return
		}
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

// run executes one simulation. The summary goes to stdout, logs to stderr.
// Cancelling ctx ends the frame loop early; teardown and leak checks still run.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cli, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if err := validateFlags(cli); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cli.ShowVersion {
		_, _ = fmt.Fprintf(stdout, "%s version %s\n", appName, Version)
		return nil
	}

	logger := newLogger(stderr, cli.LogLevel, cli.LogFormat)
	slog.SetDefault(logger)

	cfg, err := initializeConfiguration(cli)
	if err != nil {
		return err
	}

	if cli.Validate {
		logger.Info("Configuration is valid", "config_path", cli.ConfigPath)
		_, _ = fmt.Fprintln(stdout, cfg.String())
		return nil
	}

	logger.Info("Starting trailsim",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cli.ConfigPath,
		"allocator", cfg.Allocator.Kind,
		"frames", cfg.Simulation.Frames,
		"trails", cfg.Simulation.Trails)

	var registry *metric.MetricsRegistry
	if cfg.Metrics.Enabled {
		registry = metric.NewMetricsRegistry()
	}

	allocator, tracker, err := buildAllocator(cfg, registry, logger)
	if err != nil {
		return err
	}

	var serverErrs <-chan error
	if registry != nil {
		server := metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry)
		serverErrs, err = server.Start()
		if err != nil {
			return err
		}
		defer func() {
			if err := server.Stop(); err != nil {
				logger.Warn("Metrics server stop failed", "error", err)
			}
		}()
		logger.Info("Serving metrics", "address", server.Address(), "path", cfg.Metrics.Path)
	}

	sched, err := job.New(
		job.WithWorkers(cfg.Scheduler.Workers),
		job.WithQueueSize(cfg.Scheduler.QueueSize),
		job.WithLogger(logger),
		job.WithMetrics(registry, "jobs"),
	)
	if err != nil {
		return err
	}
	// Teardown jobs must run after ctx is cancelled, so the scheduler gets its own context.
	if err := sched.Start(context.Background()); err != nil {
		return err
	}

	sim, err := NewSimulation(cfg, allocator, sched, registry, logger)
	if err != nil {
		_ = sched.Stop(cfg.Scheduler.StopTimeout)
		return err
	}

	summary, runErr := runSimulation(ctx, sim, serverErrs)
	if err := sched.Stop(cfg.Scheduler.StopTimeout); err != nil {
		logger.Warn("Scheduler stop incomplete", "error", err)
	}

	if ctx.Err() != nil {
		logger.Info("Simulation interrupted", "frames", summary.Frames)
	}

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return errors.Wrap(err, "trailsim", "run", "encode summary")
	}
	_, _ = fmt.Fprintln(stdout, string(out))

	if runErr != nil {
		return runErr
	}

	if tracker != nil {
		if leaked := tracker.Report(); leaked > 0 {
			return errors.WrapFatal(fmt.Errorf("%d blocks still allocated", leaked),
				"trailsim", "run", "check allocator")
		}
	}

	logger.Info("Simulation complete",
		"frames", summary.Frames,
		"retired", summary.Retired,
		"elapsed", summary.Elapsed)
	return nil
}

// runSimulation runs sim alongside the metrics server. A server failure
// cancels the frame loop and is returned once teardown has finished.
func runSimulation(ctx context.Context, sim *Simulation, serverErrs <-chan error) (Summary, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)

	var summary Summary
	g.Go(func() error {
		defer cancel()
		var err error
		summary, err = sim.Run(gctx)
		return err
	})

	if serverErrs != nil {
		g.Go(func() error {
			select {
			case err, ok := <-serverErrs:
				if ok {
					return err
				}
				return nil
			case <-gctx.Done():
				return nil
			}
		})
	}

	err := g.Wait()
	return summary, err
}

// initializeConfiguration loads the configuration and applies flag overrides
func initializeConfiguration(cli *CLIConfig) (*config.Config, error) {
	cfg, err := config.Load(cli.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if cli.Frames >= 0 {
		cfg.Simulation.Frames = cli.Frames
	}
	if cli.Seed != 0 {
		cfg.Simulation.Seed = cli.Seed
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// buildAllocator creates the configured allocator, wrapped in a tracker when
// cfg.Allocator.Track is set. The tracker is nil otherwise.
func buildAllocator(cfg *config.Config, registry *metric.MetricsRegistry,
	logger *slog.Logger,
) (alloc.Allocator, *alloc.TrackingAllocator, error) {
	base, err := alloc.New(cfg.Allocator.Kind)
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Allocator.Track {
		return base, nil, nil
	}

	tracker := alloc.NewTrackingAllocator(base, alloc.WithTrackingLogger(logger))
	if registry != nil {
		if err := tracker.RegisterMetrics(registry, "allocator"); err != nil {
			return nil, nil, err
		}
	}
	return tracker, tracker, nil
}

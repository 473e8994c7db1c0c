package buffer

import (
	"log/slog"

	"github.com/c360/framering/metric"
)

// Option configures buffer behavior using the functional options pattern.
type Option[T any] func(*bufferOptions[T])

// bufferOptions holds internal configuration for buffer instances.
// Stats are ALWAYS collected; metrics are optional and exposed via WithMetrics().
type bufferOptions[T any] struct {
	growth GrowthPolicy
	logger *slog.Logger

	// metricsReg is optional; if provided, buffer stats are also exposed as Prometheus metrics
	metricsReg *metric.MetricsRegistry

	// metricsPrefix is used as the component label for Prometheus metrics
	metricsPrefix string
}

// WithGrowthPolicy sets how the backing store grows.
// Defaults to DefaultGrowthPolicy if not specified.
func WithGrowthPolicy[T any](policy GrowthPolicy) Option[T] {
	return func(opts *bufferOptions[T]) {
		if policy != nil {
			opts.growth = policy
		}
	}
}

// WithMetrics enables Prometheus metrics export for buffer statistics.
// If registry is nil or prefix is empty, this option is ignored.
// The prefix must be unique among live buffers sharing the registry.
func WithMetrics[T any](registry *metric.MetricsRegistry, prefix string) Option[T] {
	return func(opts *bufferOptions[T]) {
		if registry != nil && prefix != "" {
			opts.metricsReg = registry
			opts.metricsPrefix = prefix
		}
	}
}

// WithLogger sets the logger for growth and teardown events.
func WithLogger[T any](logger *slog.Logger) Option[T] {
	return func(opts *bufferOptions[T]) {
		if logger != nil {
			opts.logger = logger
		}
	}
}

// applyOptions applies functional options to create final buffer configuration.
func applyOptions[T any](options ...Option[T]) *bufferOptions[T] {
	opts := &bufferOptions[T]{
		growth: DefaultGrowthPolicy(),
		logger: slog.Default(),
	}

	for _, opt := range options {
		if opt != nil {
			opt(opts)
		}
	}

	return opts
}

package mempool

import (
	"log/slog"

	"github.com/c360/framering/metric"
)

// DefaultExpandBy is the number of blocks added when the free list runs dry.
const DefaultExpandBy = 10

// Option configures a MemoryPool.
type Option func(*options)

type options struct {
	expandBy      int
	logger        *slog.Logger
	metricsReg    *metric.MetricsRegistry
	metricsPrefix string
}

// WithExpandBy sets how many blocks each expansion allocates. Values below 1
// are ignored.
func WithExpandBy(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.expandBy = n
		}
	}
}

// WithLogger sets the logger for expansion and leak reports.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics exports pool statistics under prefix. Ignored if registry is
// nil or prefix is empty.
func WithMetrics(registry *metric.MetricsRegistry, prefix string) Option {
	return func(o *options) {
		if registry != nil && prefix != "" {
			o.metricsReg = registry
			o.metricsPrefix = prefix
		}
	}
}

func applyOptions(opts ...Option) *options {
	o := &options{
		expandBy: DefaultExpandBy,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

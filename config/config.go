package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/c360/framering/errors"
	"github.com/c360/framering/pkg/alloc"
)

// Config represents the complete application configuration
type Config struct {
	Version    string           `json:"version" yaml:"version"` // Semantic version (e.g., "1.0.0")
	Allocator  AllocatorConfig  `json:"allocator" yaml:"allocator"`
	Buffer     BufferConfig     `json:"buffer" yaml:"buffer"`
	Pool       PoolConfig       `json:"pool" yaml:"pool"`
	Scheduler  SchedulerConfig  `json:"scheduler" yaml:"scheduler"`
	Metrics    MetricsConfig    `json:"metrics" yaml:"metrics"`
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`
}

// AllocatorConfig selects the backing memory for containers
type AllocatorConfig struct {
	Kind  alloc.Kind `json:"kind" yaml:"kind"`  // heap or mmap
	Track bool       `json:"track" yaml:"track"` // wrap in a TrackingAllocator and report leaks
}

// BufferConfig defines circular buffer sizing
type BufferConfig struct {
	InitialCapacity int `json:"initial_capacity" yaml:"initial_capacity"`
	MinBlockBytes   int `json:"min_block_bytes" yaml:"min_block_bytes"` // floor for SetCapacity reservations
}

// PoolConfig defines memory pool sizing
type PoolConfig struct {
	InitialBlocks int `json:"initial_blocks" yaml:"initial_blocks"`
	ExpandBy      int `json:"expand_by" yaml:"expand_by"`
}

// SchedulerConfig defines the job scheduler and its worker pool
type SchedulerConfig struct {
	Workers     int           `json:"workers" yaml:"workers"`
	QueueSize   int           `json:"queue_size" yaml:"queue_size"`
	StopTimeout time.Duration `json:"stop_timeout" yaml:"stop_timeout"`
}

// MetricsConfig defines the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Port    int    `json:"port" yaml:"port"`
	Path    string `json:"path" yaml:"path"`
}

// SimulationConfig drives cmd/trailsim
type SimulationConfig struct {
	Frames       int     `json:"frames" yaml:"frames"`
	Trails       int     `json:"trails" yaml:"trails"`
	TrailLength  int     `json:"trail_length" yaml:"trail_length"`
	SegmentEvery int     `json:"segment_every" yaml:"segment_every"` // frames per trail segment, 0 disables segments
	FrameRate    float64 `json:"frame_rate" yaml:"frame_rate"`       // frames per second, 0 runs unpaced
	Seed         int64   `json:"seed" yaml:"seed"`
}

// Default returns the built-in configuration. It always validates.
func Default() *Config {
	return &Config{
		Version: "1.0.0",
		Allocator: AllocatorConfig{
			Kind:  alloc.KindHeap,
			Track: true,
		},
		Buffer: BufferConfig{
			InitialCapacity: 16,
			MinBlockBytes:   64,
		},
		Pool: PoolConfig{
			InitialBlocks: 64,
			ExpandBy:      10,
		},
		Scheduler: SchedulerConfig{
			Workers:     4,
			QueueSize:   256,
			StopTimeout: 5 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
		Simulation: SimulationConfig{
			Frames:       600,
			Trails:       8,
			TrailLength:  32,
			SegmentEvery: 8,
			Seed:         1,
		},
	}
}

// SafeConfig provides thread-safe access to configuration
type SafeConfig struct {
	mu     sync.RWMutex
	config *Config
}

// NewSafeConfig creates a new thread-safe config wrapper
func NewSafeConfig(cfg *Config) *SafeConfig {
	if cfg == nil {
		cfg = Default()
	}
	return &SafeConfig{
		config: cfg,
	}
}

// Get returns a deep copy of the current configuration
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config.Clone()
}

// Update atomically updates the configuration after validation
func (sc *SafeConfig) Update(cfg *Config) error {
	if cfg == nil {
		return errors.WrapInvalid(errors.ErrMissingConfig, "SafeConfig", "Update", "nil config")
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.config = cfg
	return nil
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return Default()
	}
	// Every section is a plain value.
	copied := *c
	return &copied
}

// Validate checks the config and normalizes the allocator kind.
// Every failure is an invalid-class error wrapping errors.ErrInvalidConfig.
func (c *Config) Validate() error {
	if c.Version != "" {
		if _, _, _, err := parseSemVer(c.Version); err != nil {
			return invalid("version", err.Error())
		}
	}

	c.Allocator.Kind = alloc.Kind(strings.ToLower(string(c.Allocator.Kind)))
	switch c.Allocator.Kind {
	case "", alloc.KindHeap, alloc.KindMmap:
	default:
		return invalid("allocator.kind", fmt.Sprintf("unknown kind %q (must be \"heap\" or \"mmap\")", c.Allocator.Kind))
	}

	if c.Buffer.InitialCapacity < 1 {
		return invalid("buffer.initial_capacity", "must be at least 1")
	}
	if c.Buffer.MinBlockBytes < 0 {
		return invalid("buffer.min_block_bytes", "cannot be negative")
	}

	if c.Pool.InitialBlocks < 0 {
		return invalid("pool.initial_blocks", "cannot be negative")
	}
	if c.Pool.ExpandBy < 1 {
		return invalid("pool.expand_by", "must be at least 1")
	}

	if c.Scheduler.Workers < 1 {
		return invalid("scheduler.workers", "must be at least 1")
	}
	if c.Scheduler.QueueSize < 1 {
		return invalid("scheduler.queue_size", "must be at least 1")
	}
	if c.Scheduler.StopTimeout <= 0 {
		return invalid("scheduler.stop_timeout", "must be positive")
	}

	if c.Metrics.Enabled {
		if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
			return invalid("metrics.port", fmt.Sprintf("%d out of range", c.Metrics.Port))
		}
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			return invalid("metrics.path", "must start with /")
		}
	}

	if c.Simulation.Frames < 0 {
		return invalid("simulation.frames", "cannot be negative")
	}
	if c.Simulation.Trails < 1 {
		return invalid("simulation.trails", "must be at least 1")
	}
	if c.Simulation.TrailLength < 1 {
		return invalid("simulation.trail_length", "must be at least 1")
	}
	if c.Simulation.SegmentEvery < 0 {
		return invalid("simulation.segment_every", "cannot be negative")
	}
	if c.Simulation.FrameRate < 0 {
		return invalid("simulation.frame_rate", "cannot be negative")
	}

	return nil
}

func invalid(field, reason string) error {
	return errors.WrapInvalid(
		fmt.Errorf("%w: %s: %s", errors.ErrInvalidConfig, field, reason),
		"Config", "Validate", "validate "+field)
}

// SaveToFile saves the configuration as JSON or YAML, chosen by extension
func (c *Config) SaveToFile(path string) error {
	f, err := formatOf(path)
	if err != nil {
		return errors.WrapInvalid(err, "Config", "SaveToFile", "choose format")
	}
	data, err := f.encode(c)
	if err != nil {
		return errors.Wrap(err, "Config", "SaveToFile", "encode "+f.String())
	}
	if err := writeConfigFile(path, data); err != nil {
		return errors.Wrap(err, "Config", "SaveToFile", "write config")
	}
	return nil
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// CompareVersions compares two semver version strings
// Returns:
//
//	-1 if v1 < v2
//	 0 if v1 == v2
//	 1 if v1 > v2
//	error if either version is invalid
func CompareVersions(v1, v2 string) (int, error) {
	major1, minor1, patch1, err := parseSemVer(v1)
	if err != nil {
		return 0, fmt.Errorf("invalid version '%s': %w", v1, err)
	}

	major2, minor2, patch2, err := parseSemVer(v2)
	if err != nil {
		return 0, fmt.Errorf("invalid version '%s': %w", v2, err)
	}

	for _, pair := range [][2]int{{major1, major2}, {minor1, minor2}, {patch1, patch2}} {
		if pair[0] > pair[1] {
			return 1, nil
		}
		if pair[0] < pair[1] {
			return -1, nil
		}
	}
	return 0, nil
}

// parseSemVer parses a semantic version string (e.g., "1.2.3")
func parseSemVer(version string) (int, int, int, error) {
	if version == "" {
		return 0, 0, 0, fmt.Errorf("version cannot be empty")
	}

	version = strings.TrimPrefix(version, "v")

	parts := strings.Split(version, ".")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("version must be in format 'major.minor.patch', got '%s'", version)
	}

	var nums [3]int
	for i, name := range []string{"major", "minor", "patch"} {
		n, err := strconv.Atoi(parts[i])
		if err != nil {
			return 0, 0, 0, fmt.Errorf("invalid %s version '%s': %w", name, parts[i], err)
		}
		nums[i] = n
	}
	return nums[0], nums[1], nums[2], nil
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/c360/framering/errors"
	"github.com/c360/framering/pkg/alloc"
)

// DefaultEnvPrefix prefixes every environment override, e.g. FRAMERING_SCHEDULER_WORKERS.
const DefaultEnvPrefix = "FRAMERING"

// Loader handles configuration loading with layers and overrides
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		layers:     []string{},
		validation: true,
		envPrefix:  DefaultEnvPrefix,
	}
}

// Load is shorthand for a validating loader over a single file.
// An empty path yields the defaults with environment overrides applied.
func Load(path string) (*Config, error) {
	l := NewLoader()
	if path != "" {
		l.AddLayer(path)
	}
	return l.Load()
}

// AddLayer adds a configuration file layer. Later layers win.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables configuration validation
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// SetEnvPrefix changes the environment override prefix
func (l *Loader) SetEnvPrefix(prefix string) {
	l.envPrefix = prefix
}

// LoadFile loads configuration from a single file
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load loads and merges all configuration layers
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	for _, path := range l.layers {
		raw, err := l.loadRaw(path)
		if err != nil {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: %s: %w", errors.ErrInvalidConfig, path, err),
				"Loader", "Load", "load layer")
		}
		merged, err := l.mergeFromMap(cfg, raw)
		if err != nil {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: %s: %w", errors.ErrInvalidConfig, path, err),
				"Loader", "Load", "merge layer")
		}
		cfg = merged
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// loadRaw reads a JSON or YAML file into a generic map
func (l *Loader) loadRaw(path string) (map[string]any, error) {
	data, f, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}

	raw, err := f.decode(data)
	if err != nil {
		return nil, err
	}
	if err := l.parseDurations(raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// mergeFromMap merges configuration from a raw map, only overriding fields present in the map
func (l *Loader) mergeFromMap(base *Config, override map[string]any) (*Config, error) {
	if override == nil {
		return base, nil
	}

	baseJSON, err := json.Marshal(base)
	if err != nil {
		return nil, err
	}

	var baseMap map[string]any
	if err := json.Unmarshal(baseJSON, &baseMap); err != nil {
		return nil, err
	}

	mergedJSON, err := json.Marshal(l.deepMergeMaps(baseMap, override))
	if err != nil {
		return nil, err
	}

	var merged Config
	if err := json.Unmarshal(mergedJSON, &merged); err != nil {
		return nil, err
	}
	return &merged, nil
}

// deepMergeMaps recursively merges two maps, with override taking precedence
func (l *Loader) deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base))
	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}

		if baseMap, ok := base[k].(map[string]any); ok {
			if overrideMap, ok := v.(map[string]any); ok {
				result[k] = l.deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}

		result[k] = v
	}

	return result
}

// parseDurations converts duration strings to nanoseconds for json unmarshaling
func (l *Loader) parseDurations(data map[string]any) error {
	sched, ok := data["scheduler"].(map[string]any)
	if !ok {
		return nil
	}
	s, ok := sched["stop_timeout"].(string)
	if !ok {
		return nil
	}
	d, err := parseDurationWithDays(s)
	if err != nil {
		return fmt.Errorf("scheduler.stop_timeout: %w", err)
	}
	sched["stop_timeout"] = d.Nanoseconds()
	return nil
}

// parseDurationWithDays parses durations that may include days (e.g., "14d")
func parseDurationWithDays(s string) (time.Duration, error) {
	if strings.HasSuffix(s, "d") {
		n, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return 0, err
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

// applyEnvOverrides applies environment variable overrides
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	for _, o := range []struct {
		key   string
		apply func(string) error
	}{
		{"ALLOCATOR_KIND", func(v string) error { cfg.Allocator.Kind = alloc.Kind(v); return nil }},
		{"ALLOCATOR_TRACK", boolSetter(&cfg.Allocator.Track)},
		{"BUFFER_INITIAL_CAPACITY", intSetter(&cfg.Buffer.InitialCapacity)},
		{"POOL_EXPAND_BY", intSetter(&cfg.Pool.ExpandBy)},
		{"SCHEDULER_WORKERS", intSetter(&cfg.Scheduler.Workers)},
		{"SCHEDULER_QUEUE_SIZE", intSetter(&cfg.Scheduler.QueueSize)},
		{"METRICS_ENABLED", boolSetter(&cfg.Metrics.Enabled)},
		{"METRICS_PORT", intSetter(&cfg.Metrics.Port)},
		{"SIM_FRAMES", intSetter(&cfg.Simulation.Frames)},
		{"SIM_SEED", func(v string) error {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return err
			}
			cfg.Simulation.Seed = n
			return nil
		}},
	} {
		key := l.envPrefix + "_" + o.key
		val := os.Getenv(key)
		if val == "" {
			continue
		}
		if err := checkEnvValue(key, val); err != nil {
			return errors.WrapInvalid(fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err),
				"Loader", "applyEnvOverrides", "read "+key)
		}
		if err := o.apply(val); err != nil {
			return errors.WrapInvalid(fmt.Errorf("%w: %s=%q: %w", errors.ErrInvalidConfig, key, val, err),
				"Loader", "applyEnvOverrides", "parse "+key)
		}
	}
	return nil
}

func intSetter(dst *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}

func boolSetter(dst *bool) func(string) error {
	return func(v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*dst = b
		return nil
	}
}

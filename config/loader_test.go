package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/framering/errors"
	"github.com/c360/framering/pkg/alloc"
)

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadJSONOverridesOnlyPresentFields(t *testing.T) {
	path := writeFile(t, "app.json", `{
		"allocator": {"kind": "mmap"},
		"scheduler": {"workers": 2, "stop_timeout": "250ms"},
		"simulation": {"frames": 10}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, alloc.KindMmap, cfg.Allocator.Kind)
	assert.True(t, cfg.Allocator.Track, "untouched field keeps its default")
	assert.Equal(t, 2, cfg.Scheduler.Workers)
	assert.Equal(t, 256, cfg.Scheduler.QueueSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Scheduler.StopTimeout)
	assert.Equal(t, 10, cfg.Simulation.Frames)
	assert.Equal(t, 8, cfg.Simulation.Trails)
}

func TestLoadYAML(t *testing.T) {
	for _, name := range []string{"app.yaml", "app.yml"} {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, name, strings.Join([]string{
				"version: 1.2.0",
				"buffer:",
				"  initial_capacity: 4",
				"pool:",
				"  expand_by: 3",
				"scheduler:",
				"  stop_timeout: 2s",
				"metrics:",
				"  enabled: true",
				"  port: 9100",
			}, "\n"))

			cfg, err := Load(path)
			require.NoError(t, err)

			assert.Equal(t, "1.2.0", cfg.Version)
			assert.Equal(t, 4, cfg.Buffer.InitialCapacity)
			assert.Equal(t, 3, cfg.Pool.ExpandBy)
			assert.Equal(t, 2*time.Second, cfg.Scheduler.StopTimeout)
			assert.True(t, cfg.Metrics.Enabled)
			assert.Equal(t, 9100, cfg.Metrics.Port)
			assert.Equal(t, "/metrics", cfg.Metrics.Path)
		})
	}
}

func TestLoaderLayersLaterWins(t *testing.T) {
	base := writeFile(t, "base.yaml", "simulation:\n  frames: 100\n  trails: 3\n")
	local := writeFile(t, "local.json", `{"simulation": {"frames": 5}}`)

	l := NewLoader()
	l.AddLayer(base)
	l.AddLayer(local)

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Simulation.Frames)
	assert.Equal(t, 3, cfg.Simulation.Trails)
}

func TestLoaderDaysDuration(t *testing.T) {
	path := writeFile(t, "app.json", `{"scheduler": {"stop_timeout": "1d"}}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, cfg.Scheduler.StopTimeout)
}

func TestLoaderValidation(t *testing.T) {
	path := writeFile(t, "app.json", `{"pool": {"expand_by": 0}}`)

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
	assert.Contains(t, err.Error(), "pool.expand_by")

	l := NewLoader()
	l.EnableValidation(false)
	cfg, err := l.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Pool.ExpandBy)
}

func TestLoaderErrors(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{"missing file", func(t *testing.T) string { return filepath.Join(t.TempDir(), "none.json") }},
		{"wrong extension", func(t *testing.T) string { return writeFile(t, "app.toml", "a = 1") }},
		{"malformed json", func(t *testing.T) string { return writeFile(t, "app.json", `{"pool": {`) }},
		{"malformed yaml", func(t *testing.T) string { return writeFile(t, "app.yaml", "pool: [1, 2") }},
		{"bad duration", func(t *testing.T) string {
			return writeFile(t, "app.json", `{"scheduler": {"stop_timeout": "soon"}}`)
		}},
		{"wrong type", func(t *testing.T) string { return writeFile(t, "app.json", `{"pool": {"expand_by": "ten"}}`) }},
		{"too deep", func(t *testing.T) string {
			return writeFile(t, "app.json", strings.Repeat("[", maxJSONDepth+1)+strings.Repeat("]", maxJSONDepth+1))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path(t))
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrInvalidConfig)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

func TestLoaderEnvOverrides(t *testing.T) {
	t.Setenv("FRAMERING_ALLOCATOR_KIND", "mmap")
	t.Setenv("FRAMERING_SCHEDULER_WORKERS", "6")
	t.Setenv("FRAMERING_METRICS_ENABLED", "true")
	t.Setenv("FRAMERING_SIM_SEED", "1234")

	path := writeFile(t, "app.json", `{"scheduler": {"workers": 2}}`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, alloc.KindMmap, cfg.Allocator.Kind)
	assert.Equal(t, 6, cfg.Scheduler.Workers, "environment beats files")
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, int64(1234), cfg.Simulation.Seed)
}

func TestLoaderEnvOverrideErrors(t *testing.T) {
	t.Setenv("FRAMERING_POOL_EXPAND_BY", "lots")
	_, err := Load("")
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
	assert.Contains(t, err.Error(), "FRAMERING_POOL_EXPAND_BY")
}

func TestLoaderCustomEnvPrefix(t *testing.T) {
	t.Setenv("TRAILS_SIM_FRAMES", "42")
	t.Setenv("FRAMERING_SIM_FRAMES", "7")

	l := NewLoader()
	l.SetEnvPrefix("TRAILS")
	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, 42, cfg.Simulation.Frames)
}

func TestDeepMergeMaps(t *testing.T) {
	l := NewLoader()
	base := map[string]any{
		"a": map[string]any{"x": 1, "y": 2},
		"b": "keep",
	}
	override := map[string]any{
		"a": map[string]any{"y": 3},
		"b": nil,
		"c": true,
	}

	got := l.deepMergeMaps(base, override)
	assert.Equal(t, map[string]any{
		"a": map[string]any{"x": 1, "y": 3},
		"b": "keep",
		"c": true,
	}, got)
}

func TestReadConfigFileRejectsDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "conf.json")
	require.NoError(t, os.Mkdir(dir, 0700))

	_, _, err := readConfigFile(dir)
	assert.ErrorIs(t, err, errUnsafePath)
}

func TestReadConfigFileTooLarge(t *testing.T) {
	path := writeFile(t, "big.json", `{"version": "`+strings.Repeat("9", maxConfigSize)+`"}`)
	_, _, err := readConfigFile(path)
	assert.Error(t, err)
}

func TestCheckPath(t *testing.T) {
	tests := []struct {
		path    string
		want    format
		wantErr error
	}{
		{"", 0, errUnsafePath},
		{"../outside.json", 0, errUnsafePath},
		{strings.Repeat("a", maxPathLen+1) + ".json", 0, errUnsafePath},
		{"config.ini", 0, errUnsupportedFormat},
		{"config.YAML", formatYAML, nil},
		{"configs/trailsim.yml", formatYAML, nil},
		{"/etc/framering/app.json", formatJSON, nil},
	}

	for _, tt := range tests {
		got, err := checkPath(tt.path)
		if tt.wantErr != nil {
			assert.ErrorIs(t, err, tt.wantErr, "path %q", tt.path)
			continue
		}
		require.NoError(t, err, "path %q", tt.path)
		assert.Equal(t, tt.want, got)
	}
}

func TestCheckEnvValue(t *testing.T) {
	assert.NoError(t, checkEnvValue("K", ""))
	assert.Error(t, checkEnvValue("K", "a\x00b"))
	assert.Error(t, checkEnvValue("K", strings.Repeat("x", maxEnvVarLen+1)))
}

func TestCheckJSONDepth(t *testing.T) {
	assert.NoError(t, checkJSONDepth([]byte(`{"a": [{"b": "[[[["}]}`)))
	assert.NoError(t, checkJSONDepth([]byte(strings.Repeat("[", maxJSONDepth)+strings.Repeat("]", maxJSONDepth))))
	assert.Error(t, checkJSONDepth([]byte(strings.Repeat("[", maxJSONDepth+1)+strings.Repeat("]", maxJSONDepth+1))))
	assert.Error(t, checkJSONDepth([]byte(`{"a": }`)))
}

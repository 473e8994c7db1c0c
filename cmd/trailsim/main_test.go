package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/framering/errors"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

const smallRun = `
allocator:
  kind: heap
  track: true
buffer:
  initial_capacity: 4
scheduler:
  workers: 2
simulation:
  frames: 25
  trails: 3
  trail_length: 10
  segment_every: 4
`

func TestRunVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"-version"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "trailsim version "+Version)
}

func TestRunHelp(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"-h"}, &stdout, &stderr)
	assert.ErrorIs(t, err, flag.ErrHelp)
	assert.Contains(t, stderr.String(), "FRAMERING_ALLOCATOR_KIND")
}

func TestRunInvalidFlags(t *testing.T) {
	tests := [][]string{
		{"-log-level", "loud"},
		{"-log-format", "xml"},
		{"-frames", "-5"},
		{"-config", filepath.Join(t.TempDir(), "missing.yaml")},
		{"extra"},
	}
	for _, args := range tests {
		var stdout, stderr bytes.Buffer
		assert.Error(t, run(context.Background(), args, &stdout, &stderr), "%v", args)
	}
}

func TestRunValidate(t *testing.T) {
	path := writeConfig(t, "sim.yaml", smallRun)

	var stdout, stderr bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"-config", path, "-validate"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), `"trail_length": 10`)
	assert.Contains(t, stderr.String(), "Configuration is valid")
}

func TestRunInvalidConfig(t *testing.T) {
	path := writeConfig(t, "sim.json", `{"pool": {"expand_by": 0}}`)

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"-config", path}, &stdout, &stderr)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestRunSimulation(t *testing.T) {
	path := writeConfig(t, "sim.yaml", smallRun)

	var stdout, stderr bytes.Buffer
	args := []string{"-config", path, "-frames", "12", "-seed", "9", "-log-format", "json"}
	require.NoError(t, run(context.Background(), args, &stdout, &stderr))

	var summary Summary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	assert.Equal(t, 12, summary.Frames)
	assert.Equal(t, 3, summary.Trails)
	require.NotNil(t, summary.Allocator)
	assert.Equal(t, 0, summary.Allocator.LiveBlocks)
	assert.Equal(t, summary.Allocator.Allocations, summary.Allocator.Frees)
	assert.Contains(t, stderr.String(), `"msg":"Simulation complete"`)
}

func TestRunInterrupted(t *testing.T) {
	path := writeConfig(t, "sim.yaml", smallRun)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var stdout, stderr bytes.Buffer
	require.NoError(t, run(ctx, []string{"-config", path}, &stdout, &stderr))

	var summary Summary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	assert.Equal(t, 0, summary.Frames)
	assert.Equal(t, 0, summary.Allocator.LiveBlocks)
}

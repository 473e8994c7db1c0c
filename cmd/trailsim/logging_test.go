package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, "debug", "JSON").Debug("grew", "capacity", 8)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "grew", entry["msg"])
	assert.Equal(t, appName, entry["service"])
	assert.Equal(t, 8.0, entry["capacity"])
	assert.Regexp(t, `^logging_test\.go:\d+$`, entry["source"])
}

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		level   string
		logs    []string
		visible []bool
	}{
		{"info", []string{"debug", "info"}, []bool{false, true}},
		{"warn", []string{"info", "warn"}, []bool{false, true}},
		{"error", []string{"warn", "error"}, []bool{false, true}},
		{"bogus", []string{"debug", "info"}, []bool{false, true}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := newLogger(&buf, tt.level, "text")
			for i, msg := range tt.logs {
				buf.Reset()
				switch msg {
				case "debug":
					logger.Debug(msg)
				case "info":
					logger.Info(msg)
				case "warn":
					logger.Warn(msg)
				case "error":
					logger.Error(msg)
				}
				assert.Equal(t, tt.visible[i], buf.Len() > 0, "%s at level %s", msg, tt.level)
			}
		})
	}
}

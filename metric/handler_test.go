package metric

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/framering/errors"
)

func TestServer_Handler(t *testing.T) {
	registry := NewMetricsRegistry()
	registry.CoreMetrics().RecordCreated("circular")

	srv := httptest.NewServer(NewServer(0, "", registry).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(bytes.NewReader(body))
	require.NoError(t, err)
	live, ok := families["framering_containers_live"]
	require.True(t, ok, "core metrics should be exposed")
	require.Len(t, live.GetMetric(), 1)
	assert.Equal(t, 1.0, live.GetMetric()[0].GetGauge().GetValue())
	assert.Contains(t, families, "go_goroutines")

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "OK", string(body))
}

func TestServer_StartStop(t *testing.T) {
	s := NewServer(-1, "/m", NewMetricsRegistry())

	errCh, err := s.Start()
	require.NoError(t, err)

	_, err = s.Start()
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	resp, err := http.Get(s.Address())
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Stop())
	_, open := <-errCh
	assert.False(t, open, "error channel should close without an error after Stop")
	require.NoError(t, s.Stop())
}

func TestServer_NilRegistry(t *testing.T) {
	_, err := NewServer(-1, "", nil).Start()
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
}

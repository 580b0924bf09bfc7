package observability

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)
	return c, reg
}

func TestScanMetrics(t *testing.T) {
	c, _ := newTestCollector(t)

	c.ObserveScan("nmcli", 4, 120*time.Millisecond)
	c.ObserveScan("synthetic", 6, time.Millisecond)
	c.ObserveBackendFailure("nmcli")
	c.ObserveBackendFailure("nmcli")

	assert.Equal(t, 6.0, testutil.ToFloat64(c.ScanNetworks))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.BackendFailures.WithLabelValues("nmcli")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.ScanDurations))
}

func TestMonitorAndStreamMetrics(t *testing.T) {
	c, _ := newTestCollector(t)

	c.SetMonitorRunning(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.MonitorRunning))
	c.ObserveCycle(time.Millisecond, nil)
	c.ObserveCycle(time.Millisecond, errors.New("boom"))
	c.ObserveCycle(time.Millisecond, nil)
	c.SetMonitorRunning(false)

	assert.Equal(t, 0.0, testutil.ToFloat64(c.MonitorRunning))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.MonitorCycles.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.MonitorCycles.WithLabelValues("error")))

	c.SetStreamClients(3)
	c.ObserveStreamEvent("signal_update")
	assert.Equal(t, 3.0, testutil.ToFloat64(c.StreamClients))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.StreamEvents.WithLabelValues("signal_update")))

	c.ObservePrediction("location", "ok")
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Predictions.WithLabelValues("location", "ok")))
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveScan("iw", 1, time.Second)
		c.ObserveBackendFailure("iw")
		c.ObserveCycle(time.Second, nil)
		c.SetMonitorRunning(true)
		c.SetStreamClients(1)
		c.ObserveStreamEvent("error")
		c.ObservePrediction("signal", "ok")
	})

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	assert.NotNil(t, c.Middleware("/x", h))
}

func TestRegisteringTwiceReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewCollector(reg)
	require.NoError(t, err)
	second, err := NewCollector(reg)
	require.NoError(t, err)

	first.ObserveBackendFailure("iw")
	assert.Equal(t, 1.0, testutil.ToFloat64(second.BackendFailures.WithLabelValues("iw")))
}

func TestMiddlewareAndHandler(t *testing.T) {
	c, _ := newTestCollector(t)

	h := c.Middleware("/api/predict", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/predict", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.HTTPRequests.WithLabelValues("/api/predict", "POST", "503")))

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `http_requests_total{code="503",method="POST",route="/api/predict"} 1`))
	assert.True(t, strings.Contains(string(body), "monitor_running 0"))
}

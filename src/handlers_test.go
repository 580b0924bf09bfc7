package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/event_stream"
	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/events"
	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/monitor"
	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/observability"
	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/predictor"
	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/signal_quality"
	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/wireless_scanner"
)

type stubScanner struct {
	snapshot wireless_scanner.Snapshot
	panicMsg string
}

func (s *stubScanner) Scan(ctx context.Context) wireless_scanner.Snapshot {
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	return s.snapshot
}

type stubStatus struct{ running bool }

func (s stubStatus) Status() monitor.Status { return monitor.Status{Running: s.running} }

type fixedModel struct{}

func (fixedModel) Predict(x, y float64) float64 { return -48.0 }
func (fixedModel) Name() string                 { return "k-Nearest Neighbors" }

func newTestAPI(t *testing.T, model predictor.Model) (*apiServer, *stubScanner, http.Handler) {
	t.Helper()
	scanner := &stubScanner{snapshot: wireless_scanner.Snapshot{
		Networks: []signal_quality.Observation{
			signal_quality.NewObservation("Home", "", -55, signal_quality.ChannelNumber(6), "WPA2"),
			signal_quality.NewObservation("Cafe", "", -80, signal_quality.ChannelNumber(44), "Open"),
		},
		Source: wireless_scanner.SourceNmcli,
	}}
	metrics, err := observability.NewCollector(prometheus.NewRegistry())
	require.NoError(t, err)

	api := newAPIServer(scanner, predictor.New(model), stubStatus{running: true}, metrics)
	api.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return api, scanner, api.routes(routeOptions{AllowedOrigin: "*", MetricsPath: "/metrics"})
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	var decoded map[string]interface{}
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &decoded))
	}
	return rr, decoded
}

func TestPredictFromSignalStrength(t *testing.T) {
	_, _, h := newTestAPI(t, nil)

	rr, body := doRequest(t, h, http.MethodPost, "/api/predict", `{"ssid":"TestNetwork","signal_strength":-55}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, false, body["ml_powered"])

	prediction := body["prediction"].(map[string]interface{})
	assert.Equal(t, float64(58), prediction["signal_quality"])
	assert.Equal(t, "Fair", prediction["status"])
	assert.Equal(t, "TestNetwork", prediction["ssid"])
	assert.Equal(t, "Basic calculation", prediction["model_used"])
}

func TestPredictRejectsMissingInput(t *testing.T) {
	_, _, h := newTestAPI(t, nil)

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"empty object", `{}`, noInputMessage},
		{"empty body", ``, noInputMessage},
		{"not json", `ssid=Home`, "Request body must be a JSON object"},
		{"neither shape", `{"ssid":"Home"}`, predictor.InvalidInputMessage},
		{"wrong type", `{"signal_strength":"loud"}`, predictor.InvalidInputMessage},
		{"half a location", `{"location_x":1}`, predictor.InvalidInputMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, body := doRequest(t, h, http.MethodPost, "/api/predict", tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.wantErr, body["error"])
		})
	}
}

func TestPredictLocationWithoutModel(t *testing.T) {
	_, _, h := newTestAPI(t, nil)

	rr, body := doRequest(t, h, http.MethodPost, "/api/predict", `{"location_x":1,"location_y":2}`)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, modelUnavailableCode, body["code"])

	// Both shapes without a model fall back to the signal path.
	rr, body = doRequest(t, h, http.MethodPost, "/api/predict", `{"location_x":1,"location_y":2,"signal_strength":-60}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, false, body["ml_powered"])
}

func TestPredictLocationWithModel(t *testing.T) {
	api, _, h := newTestAPI(t, fixedModel{})

	rr, body := doRequest(t, h, http.MethodPost, "/api/predict", `{"location_x":1,"location_y":2,"signal_strength":-90}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, body["ml_powered"])
	prediction := body["prediction"].(map[string]interface{})
	assert.Equal(t, -48.0, prediction["predicted_rssi"])
	assert.Equal(t, float64(70), prediction["signal_quality"])
	assert.Equal(t, "k-Nearest Neighbors", prediction["model_used"])

	assert.Equal(t, 1.0, testutil.ToFloat64(api.metrics.Predictions.WithLabelValues("location", "ok")))
}

func TestPredictMethodNotAllowed(t *testing.T) {
	_, _, h := newTestAPI(t, nil)
	rr, body := doRequest(t, h, http.MethodGet, "/api/predict", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, false, body["success"])
}

func TestSignalEndpoint(t *testing.T) {
	_, _, h := newTestAPI(t, nil)

	rr, body := doRequest(t, h, http.MethodGet, "/api/signal", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(2), body["count"])
	assert.Equal(t, "2024-05-01T12:00:00Z", body["timestamp"])
	assert.Equal(t, false, body["ml_available"])
	assert.Equal(t, "None", body["model_type"])
	assert.Equal(t, "nmcli", body["source"])

	networks := body["networks"].([]interface{})
	home := networks[0].(map[string]interface{})
	assert.Equal(t, "Home", home["ssid"])
	assert.Equal(t, float64(58), home["signal_quality"])
	assert.Equal(t, float64(6), home["channel"])
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestSignalEndpointEmptyAndFailure(t *testing.T) {
	_, scanner, h := newTestAPI(t, nil)

	scanner.snapshot = wireless_scanner.Snapshot{Source: wireless_scanner.SourceSynthetic}
	rr, body := doRequest(t, h, http.MethodGet, "/api/signal", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []interface{}{}, body["networks"])
	assert.Equal(t, float64(0), body["count"])

	scanner.panicMsg = "radio on fire"
	rr, body = doRequest(t, h, http.MethodGet, "/api/signal", "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Scan failed: radio on fire", body["error"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestPreflightAndHealth(t *testing.T) {
	_, _, h := newTestAPI(t, nil)

	rr, _ := doRequest(t, h, http.MethodOptions, "/api/predict", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "GET, POST, OPTIONS", rr.Header().Get("Access-Control-Allow-Methods"))

	rr, body := doRequest(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, map[string]interface{}{
		"success":      true,
		"monitoring":   true,
		"ml_available": false,
		"model_type":   "None",
	}, body)
}

func TestMetricsRoute(t *testing.T) {
	_, _, h := newTestAPI(t, nil)
	doRequest(t, h, http.MethodGet, "/api/signal", "")

	rr, _ := doRequest(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `http_requests_total{code="200",method="GET",route="/api/signal"} 1`)
}

func TestStreamRouteUpgradesThroughMiddleware(t *testing.T) {
	api, _, _ := newTestAPI(t, nil)
	hub := event_stream.NewHub(event_stream.Options{AllowedOrigin: "*"})
	defer hub.Close()

	srv := httptest.NewServer(api.routes(routeOptions{Stream: hub}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	e, err := events.Decode(raw)
	require.NoError(t, err)
	status, ok := e.(events.ConnectionStatus)
	require.True(t, ok)
	assert.Equal(t, "connected", status.Status)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// Package observability exposes Prometheus metrics for scans, the monitor
// loop, the event stream and the HTTP API.
package observability

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the analyzer's Prometheus metrics. A nil *Collector is a
// valid no-op recorder.
type Collector struct {
	gatherer prometheus.Gatherer

	ScanDurations   *prometheus.HistogramVec
	ScanNetworks    prometheus.Gauge
	BackendFailures *prometheus.CounterVec

	MonitorCycles        *prometheus.CounterVec
	MonitorCycleDuration *prometheus.HistogramVec
	MonitorRunning       prometheus.Gauge

	StreamClients prometheus.Gauge
	StreamEvents  *prometheus.CounterVec

	Predictions *prometheus.CounterVec

	HTTPRequests  *prometheus.CounterVec
	HTTPDurations *prometheus.HistogramVec
}

// NewCollector registers the metrics against reg, defaulting to the global
// Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	scanDurations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wifi_scan_duration_seconds",
		Help:    "Wi-Fi scan latency in seconds, labeled by the source that produced the snapshot.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"source"}), "wifi_scan_duration_seconds")
	if err != nil {
		return nil, err
	}
	scanNetworks, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "wifi_scan_networks",
		Help: "Number of networks in the most recent snapshot.",
	}), "wifi_scan_networks")
	if err != nil {
		return nil, err
	}
	backendFailures, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wifi_scan_backend_failures_total",
		Help: "Platform scan backend failures, labeled by backend.",
	}, []string{"backend"}), "wifi_scan_backend_failures_total")
	if err != nil {
		return nil, err
	}

	cycles, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "monitor_cycles_total",
		Help: "Monitor loop cycles, labeled by result (ok or error).",
	}, []string{"result"}), "monitor_cycles_total")
	if err != nil {
		return nil, err
	}
	cycleDuration, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "monitor_cycle_duration_seconds",
		Help:    "Monitor loop cycle latency in seconds.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"result"}), "monitor_cycle_duration_seconds")
	if err != nil {
		return nil, err
	}
	running, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "monitor_running",
		Help: "1 while the monitor loop is active.",
	}), "monitor_running")
	if err != nil {
		return nil, err
	}

	streamClients, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "event_stream_clients",
		Help: "Currently connected event stream clients.",
	}), "event_stream_clients")
	if err != nil {
		return nil, err
	}
	streamEvents, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "event_stream_events_total",
		Help: "Events broadcast to stream clients, labeled by event name.",
	}, []string{"event"}), "event_stream_events_total")
	if err != nil {
		return nil, err
	}

	predictions, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "predictions_total",
		Help: "Prediction requests, labeled by kind (signal or location) and result.",
	}, []string{"kind", "result"}), "predictions_total")
	if err != nil {
		return nil, err
	}

	httpRequests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests, labeled by route, method and status code.",
	}, []string{"route", "method", "code"}), "http_requests_total")
	if err != nil {
		return nil, err
	}
	httpDurations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"}), "http_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:             gatherer,
		ScanDurations:        scanDurations,
		ScanNetworks:         scanNetworks,
		BackendFailures:      backendFailures,
		MonitorCycles:        cycles,
		MonitorCycleDuration: cycleDuration,
		MonitorRunning:       running,
		StreamClients:        streamClients,
		StreamEvents:         streamEvents,
		Predictions:          predictions,
		HTTPRequests:         httpRequests,
		HTTPDurations:        httpDurations,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveScan satisfies wireless_scanner.ScanRecorder.
func (c *Collector) ObserveScan(source string, networks int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.ScanDurations.WithLabelValues(source).Observe(elapsed.Seconds())
	c.ScanNetworks.Set(float64(networks))
}

// ObserveBackendFailure satisfies wireless_scanner.ScanRecorder.
func (c *Collector) ObserveBackendFailure(backend string) {
	if c == nil {
		return
	}
	c.BackendFailures.WithLabelValues(backend).Inc()
}

// ObserveCycle satisfies monitor.CycleRecorder.
func (c *Collector) ObserveCycle(elapsed time.Duration, err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.MonitorCycles.WithLabelValues(result).Inc()
	c.MonitorCycleDuration.WithLabelValues(result).Observe(elapsed.Seconds())
}

// SetMonitorRunning satisfies monitor.CycleRecorder.
func (c *Collector) SetMonitorRunning(running bool) {
	if c == nil {
		return
	}
	if running {
		c.MonitorRunning.Set(1)
	} else {
		c.MonitorRunning.Set(0)
	}
}

// SetStreamClients satisfies event_stream.StreamRecorder.
func (c *Collector) SetStreamClients(n int) {
	if c == nil {
		return
	}
	c.StreamClients.Set(float64(n))
}

// ObserveStreamEvent satisfies event_stream.StreamRecorder.
func (c *Collector) ObserveStreamEvent(event string) {
	if c == nil {
		return
	}
	c.StreamEvents.WithLabelValues(event).Inc()
}

// ObservePrediction counts a prediction request by kind and result.
func (c *Collector) ObservePrediction(kind, result string) {
	if c == nil {
		return
	}
	c.Predictions.WithLabelValues(kind, result).Inc()
}

// Middleware records request counts and latency for one route.
func (c *Collector) Middleware(route string, next http.Handler) http.Handler {
	if c == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		c.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(sw.status)).Inc()
		c.HTTPDurations.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// Hijack passes through so websocket upgrades work behind the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

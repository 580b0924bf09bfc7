package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/events"
	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/monitor"
	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/observability"
	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/predictor"
	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/signal_quality"
	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/wireless_scanner"
)

const (
	maxRequestBody = 1 << 20

	noInputMessage          = "No input data provided"
	modelUnavailableMessage = "Trained model not available. Send signal_strength instead, or train a model first."
	modelUnavailableCode    = "model_unavailable"
)

type monitorStatus interface {
	Status() monitor.Status
}

// apiServer serves the HTTP API.
type apiServer struct {
	scanner   wireless_scanner.Scanner
	predictor *predictor.Predictor
	monitor   monitorStatus
	metrics   *observability.Collector
	now       func() time.Time
}

type routeOptions struct {
	AllowedOrigin string
	Stream        http.Handler
	MetricsPath   string
}

type errorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Timestamp string `json:"timestamp"`
}

type signalResponse struct {
	Success     bool                         `json:"success"`
	Networks    []signal_quality.Observation `json:"networks"`
	Timestamp   string                       `json:"timestamp"`
	Count       int                          `json:"count"`
	Source      string                       `json:"source"`
	MLAvailable bool                         `json:"ml_available"`
	ModelType   string                       `json:"model_type"`
}

type predictResponse struct {
	Success    bool `json:"success"`
	Prediction any  `json:"prediction"`
	MLPowered  bool `json:"ml_powered"`
}

type healthResponse struct {
	Success     bool   `json:"success"`
	Monitoring  bool   `json:"monitoring"`
	MLAvailable bool   `json:"ml_available"`
	ModelType   string `json:"model_type"`
}

func newAPIServer(scanner wireless_scanner.Scanner, pred *predictor.Predictor, mon monitorStatus, metrics *observability.Collector) *apiServer {
	return &apiServer{
		scanner:   scanner,
		predictor: pred,
		monitor:   mon,
		metrics:   metrics,
		now:       time.Now,
	}
}

// routes builds the HTTP mux. A nil Stream or empty MetricsPath leaves that route out.
func (s *apiServer) routes(opts routeOptions) http.Handler {
	mux := http.NewServeMux()
	handle := func(route string, h http.HandlerFunc) {
		mux.Handle(route, s.metrics.Middleware(route, corsMiddleware(opts.AllowedOrigin, h)))
	}

	handle("/api/signal", s.handleSignal)
	handle("/api/predict", s.handlePredict)
	handle("/healthz", s.handleHealth)
	if opts.Stream != nil {
		mux.Handle("/ws", s.metrics.Middleware("/ws", opts.Stream))
	}
	if opts.MetricsPath != "" {
		mux.Handle(opts.MetricsPath, s.metrics.Handler())
	}
	return mux
}

// corsMiddleware handles Cross-Origin Resource Sharing
func corsMiddleware(origin string, next http.HandlerFunc) http.HandlerFunc {
	if origin == "" {
		origin = "*"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		// Handle preflight OPTIONS requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

func (s *apiServer) handleSignal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			logger.WithField("panic", rec).Error("Scan failed")
			s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("Scan failed: %v", rec), "")
		}
	}()

	snap := s.scanner.Scan(r.Context())
	networks := snap.Networks
	if networks == nil {
		networks = []signal_quality.Observation{}
	}
	writeJSON(w, http.StatusOK, signalResponse{
		Success:     true,
		Networks:    networks,
		Timestamp:   events.Timestamp(s.now()),
		Count:       len(networks),
		Source:      string(snap.Source),
		MLAvailable: s.predictor.Available(),
		ModelType:   s.predictor.ModelType(),
	})
}

func (s *apiServer) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Failed to read request body", "")
		return
	}
	if strings.TrimSpace(string(body)) == "" {
		s.writeError(w, http.StatusBadRequest, noInputMessage, "")
		return
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		s.writeError(w, http.StatusBadRequest, "Request body must be a JSON object", "")
		return
	}
	if len(fields) == 0 {
		s.writeError(w, http.StatusBadRequest, noInputMessage, "")
		return
	}

	var req predictor.Request
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, predictor.InvalidInputMessage, "")
		return
	}

	kind := "signal"
	if req.HasLocation() && s.predictor.Available() {
		kind = "location"
	}

	result, err := s.predictor.Predict(req)
	switch {
	case errors.Is(err, predictor.ErrModelUnavailable):
		s.metrics.ObservePrediction("location", "model_unavailable")
		s.writeError(w, http.StatusServiceUnavailable, modelUnavailableMessage, modelUnavailableCode)
		return
	case errors.Is(err, predictor.ErrInvalidRequest):
		s.metrics.ObservePrediction(kind, "invalid")
		s.writeError(w, http.StatusBadRequest, predictor.InvalidInputMessage, "")
		return
	case err != nil:
		s.metrics.ObservePrediction(kind, "error")
		logger.WithError(err).Error("Prediction failed")
		s.writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}

	s.metrics.ObservePrediction(kind, "ok")
	logger.WithFields(logrus.Fields{
		"kind":       kind,
		"ml_powered": result.MLPowered,
	}).Debug("Prediction served")
	writeJSON(w, http.StatusOK, predictResponse{
		Success:    true,
		Prediction: result.Prediction,
		MLPowered:  result.MLPowered,
	})
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Success:     true,
		MLAvailable: s.predictor.Available(),
		ModelType:   s.predictor.ModelType(),
	}
	if s.monitor != nil {
		resp.Monitoring = s.monitor.Status().Running
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, errorResponse{
		Success:   false,
		Error:     message,
		Code:      code,
		Timestamp: events.Timestamp(s.now()),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithError(err).Error("Failed to encode response")
	}
}

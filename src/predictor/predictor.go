// Package predictor estimates signal quality from a raw strength reading or,
// when a trained model is loaded, from a location.
package predictor

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/events"
	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/signal_model"
	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/signal_quality"
)

var (
	// ErrModelUnavailable is returned for location predictions without a loaded model.
	ErrModelUnavailable = errors.New("trained model not available")
	// ErrInvalidRequest is returned when a request carries neither input shape.
	ErrInvalidRequest = errors.New("invalid prediction request")
)

const (
	basicModelName = "Basic calculation"
	noModelType    = "None"
	unknownSSID    = "Unknown"
)

// InvalidInputMessage is the user-facing text for requests with neither input shape.
const InvalidInputMessage = "Invalid input. Provide either (location_x, location_y) or signal_strength"

// Model is a trained location to strength regression.
type Model interface {
	Predict(x, y float64) float64
	Name() string
}

// Request is the union of both prediction input shapes.
type Request struct {
	LocationX      *float64 `json:"location_x,omitempty"`
	LocationY      *float64 `json:"location_y,omitempty"`
	SSID           string   `json:"ssid,omitempty"`
	SignalStrength *float64 `json:"signal_strength,omitempty"`
}

// HasLocation reports whether both coordinates are present.
func (r Request) HasLocation() bool {
	return r.LocationX != nil && r.LocationY != nil
}

// SignalPrediction is the result of the signal-strength path.
type SignalPrediction struct {
	SSID           string  `json:"ssid"`
	SignalStrength float64 `json:"signal_strength"`
	SignalQuality  int     `json:"signal_quality"`
	Status         string  `json:"status"`
	Recommendation string  `json:"recommendation"`
	ModelUsed      string  `json:"model_used"`
	Timestamp      string  `json:"timestamp"`
}

// LocationPrediction is the result of the location path.
type LocationPrediction struct {
	LocationX      float64 `json:"location_x"`
	LocationY      float64 `json:"location_y"`
	PredictedRSSI  float64 `json:"predicted_rssi"`
	SignalQuality  int     `json:"signal_quality"`
	Status         string  `json:"status"`
	Recommendation string  `json:"recommendation"`
	ModelUsed      string  `json:"model_used"`
	Timestamp      string  `json:"timestamp"`
}

// Result is what Predict returns: exactly one path's prediction.
type Result struct {
	Prediction any  `json:"prediction"`
	MLPowered  bool `json:"ml_powered"`
}

// Predictor holds the (possibly absent) model reference.
type Predictor struct {
	mu    sync.RWMutex
	model Model
	now   func() time.Time
}

// New creates a predictor. model may be nil.
func New(model Model) *Predictor {
	return &Predictor{model: model, now: time.Now}
}

// LoadFile loads a model bundle from path. A missing or invalid bundle
// leaves the predictor without a model and is reported as an error.
func LoadFile(path string) (*Predictor, error) {
	p := New(nil)
	if path == "" {
		return p, nil
	}
	bundle, err := signal_model.LoadBundle(path)
	if err != nil {
		return p, fmt.Errorf("failed to load model from %s: %w", path, err)
	}
	p.SetModel(bundle)
	logger.WithField("model_type", bundle.Name()).Info("Trained model loaded")
	return p, nil
}

// SetModel swaps the model; nil unloads it.
func (p *Predictor) SetModel(m Model) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.model = m
}

func (p *Predictor) currentModel() Model {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.model
}

// Available reports whether a model is loaded.
func (p *Predictor) Available() bool {
	return p.currentModel() != nil
}

// ModelType names the loaded model, or "None".
func (p *Predictor) ModelType() string {
	if m := p.currentModel(); m != nil {
		return m.Name()
	}
	return noModelType
}

// FromSignalStrength rates a raw reading.
func (p *Predictor) FromSignalStrength(ssid string, dbm float64) SignalPrediction {
	if ssid == "" {
		ssid = unknownSSID
	}
	quality := signal_quality.ToQuality(dbm)
	status := signal_quality.StatusLabel(quality)
	return SignalPrediction{
		SSID:           ssid,
		SignalStrength: dbm,
		SignalQuality:  quality,
		Status:         status,
		Recommendation: signal_quality.Recommendation(status),
		ModelUsed:      basicModelName,
		Timestamp:      events.Timestamp(p.now()),
	}
}

// FromLocation predicts the strength at (x, y) with the loaded model.
func (p *Predictor) FromLocation(x, y float64) (LocationPrediction, error) {
	model := p.currentModel()
	if model == nil {
		return LocationPrediction{}, ErrModelUnavailable
	}

	rssi := model.Predict(x, y)
	quality := signal_quality.ToQuality(rssi)
	status := signal_quality.StatusLabel(quality)
	return LocationPrediction{
		LocationX:      x,
		LocationY:      y,
		PredictedRSSI:  math.Round(rssi*100) / 100,
		SignalQuality:  quality,
		Status:         status,
		Recommendation: signal_quality.Recommendation(status),
		ModelUsed:      model.Name(),
		Timestamp:      events.Timestamp(p.now()),
	}, nil
}

// Predict picks one path per request: location when a model is loaded,
// otherwise the signal strength. The two are never combined.
func (p *Predictor) Predict(req Request) (Result, error) {
	if req.HasLocation() && p.Available() {
		pred, err := p.FromLocation(*req.LocationX, *req.LocationY)
		if err == nil {
			return Result{Prediction: pred, MLPowered: true}, nil
		}
		if !errors.Is(err, ErrModelUnavailable) {
			return Result{}, err
		}
	}
	if req.SignalStrength != nil {
		return Result{Prediction: p.FromSignalStrength(req.SSID, *req.SignalStrength), MLPowered: false}, nil
	}
	if req.HasLocation() {
		return Result{}, ErrModelUnavailable
	}
	return Result{}, fmt.Errorf("%w: %s", ErrInvalidRequest, InvalidInputMessage)
}

package signal_model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Bundle is the persisted model artifact: regressor, scaler and training metadata.
type Bundle struct {
	ModelName    string         `json:"model_name"`
	Model        KNNRegressor   `json:"model"`
	Scaler       StandardScaler `json:"scaler"`
	Metrics      Metrics        `json:"metrics"`
	TrainedDate  time.Time      `json:"trained_date"`
	FeatureNames []string       `json:"feature_names"`
}

// Predict returns the estimated strength in dBm at (x, y).
func (b *Bundle) Predict(x, y float64) float64 {
	return b.Model.Predict(b.Scaler.Transform([]float64{x, y}))
}

// Name returns the model's display name.
func (b *Bundle) Name() string {
	return b.ModelName
}

// Save writes the bundle as JSON, replacing path atomically.
func (b *Bundle) Save(path string) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode model bundle: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create model directory: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write model bundle: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace model bundle: %w", err)
	}
	logger.WithField("path", path).Info("Model bundle saved")
	return nil
}

// LoadBundle reads a bundle written by Save.
func LoadBundle(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to decode model bundle %s: %w", path, err)
	}
	if err := b.Model.Params.validate(); err != nil {
		return nil, fmt.Errorf("invalid model bundle %s: %w", path, err)
	}
	if len(b.Model.Points) == 0 || len(b.Model.Points) != len(b.Model.Targets) {
		return nil, fmt.Errorf("invalid model bundle %s: empty or inconsistent training set", path)
	}
	if len(b.Scaler.Mean) != len(FeatureNames) || len(b.Scaler.Scale) != len(FeatureNames) {
		return nil, fmt.Errorf("invalid model bundle %s: scaler expects %d features", path, len(b.Scaler.Mean))
	}
	return &b, nil
}

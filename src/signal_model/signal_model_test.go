package signal_model

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gridSamples lays out a grid where strength falls off with distance from the origin.
func gridSamples() []Sample {
	var samples []Sample
	for x := 0; x < 6; x++ {
		for y := 0; y < 6; y++ {
			d := math.Hypot(float64(x), float64(y))
			samples = append(samples, Sample{X: float64(x), Y: float64(y), RSSI: -40 - 6*d})
		}
	}
	return samples
}

func TestFitScaler(t *testing.T) {
	s := FitScaler([][]float64{{1, 5}, {3, 5}})
	assert.Equal(t, []float64{2, 5}, s.Mean)
	assert.Equal(t, []float64{1, 1}, s.Scale, "constant feature scale falls back to 1")
	assert.Equal(t, []float64{1, 0}, s.Transform([]float64{3, 5}))
}

func TestKNNUniformAndDistance(t *testing.T) {
	points := [][]float64{{0}, {1}, {3}}
	targets := []float64{-40, -50, -80}

	uniform, err := FitKNN(KNNParams{K: 2, Weights: WeightsUniform, Metric: MetricEuclidean}, points, targets)
	require.NoError(t, err)
	assert.InDelta(t, -45, uniform.Predict([]float64{0.25}), 1e-9)

	weighted, err := FitKNN(KNNParams{K: 2, Weights: WeightsDistance, Metric: MetricManhattan}, points, targets)
	require.NoError(t, err)
	// weights 1/0.25 and 1/0.75
	assert.InDelta(t, (4*-40+(4.0/3)*-50)/(4+4.0/3), weighted.Predict([]float64{0.25}), 1e-9)
	assert.Equal(t, -50.0, weighted.Predict([]float64{1}), "exact match takes all the weight")
}

func TestFitKNNValidation(t *testing.T) {
	_, err := FitKNN(KNNParams{K: 3, Weights: WeightsUniform, Metric: MetricEuclidean}, [][]float64{{0}}, []float64{-40})
	assert.ErrorIs(t, err, ErrNotEnoughSamples)

	_, err = FitKNN(KNNParams{K: 1, Weights: "cubic", Metric: MetricEuclidean}, [][]float64{{0}}, []float64{-40})
	assert.Error(t, err)

	_, err = FitKNN(KNNParams{K: 1, Weights: WeightsUniform, Metric: "chebyshev"}, [][]float64{{0}}, []float64{-40})
	assert.Error(t, err)
}

func TestRegressionMetrics(t *testing.T) {
	actual := []float64{-40, -50, -60}
	predicted := []float64{-42, -50, -57}

	assert.InDelta(t, 13.0/3, MSE(actual, predicted), 1e-9)
	assert.InDelta(t, math.Sqrt(13.0/3), RMSE(actual, predicted), 1e-9)
	assert.InDelta(t, 5.0/3, MAE(actual, predicted), 1e-9)
	assert.InDelta(t, 1-13.0/200, R2(actual, predicted), 1e-9)
	assert.Equal(t, 1.0, R2([]float64{-50, -50}, []float64{-50, -50}))
}

func TestTrainSelectsModelAndGeneralizes(t *testing.T) {
	opts := DefaultTrainOptions()
	opts.Now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	bundle, err := Train(gridSamples(), opts)
	require.NoError(t, err)

	assert.Equal(t, ModelNameKNN, bundle.Name())
	assert.Equal(t, []string{"location_x", "location_y"}, bundle.FeatureNames)
	assert.Equal(t, 28, bundle.Metrics.TrainSamples)
	assert.Equal(t, 8, bundle.Metrics.TestSamples)
	assert.Contains(t, []int{3, 5, 7, 9, 11}, bundle.Metrics.BestParams.K)
	assert.Greater(t, bundle.Metrics.TestR2, 0.5)
	assert.Equal(t, opts.Now(), bundle.TrainedDate)

	near := bundle.Predict(0.5, 0.5)
	far := bundle.Predict(5, 5)
	assert.Greater(t, near, far, "strength falls with distance")
}

func TestTrainIsDeterministic(t *testing.T) {
	a, err := Train(gridSamples(), DefaultTrainOptions())
	require.NoError(t, err)
	b, err := Train(gridSamples(), DefaultTrainOptions())
	require.NoError(t, err)
	assert.Equal(t, a.Metrics, b.Metrics)
}

func TestTrainRejectsTinyDataSets(t *testing.T) {
	_, err := Train(gridSamples()[:3], DefaultTrainOptions())
	assert.ErrorIs(t, err, ErrNotEnoughSamples)

	// 8 training samples in 5 folds leave at most 6 neighbours per fold
	opts := DefaultTrainOptions()
	opts.Neighbors = []int{11}
	_, err = Train(gridSamples()[:10], opts)
	assert.ErrorIs(t, err, ErrNotEnoughSamples)
}

func TestBundleSaveLoad(t *testing.T) {
	bundle, err := Train(gridSamples(), DefaultTrainOptions())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "models", "wifi_signal_model.json")
	require.NoError(t, bundle.Save(path))

	loaded, err := LoadBundle(path)
	require.NoError(t, err)
	assert.Equal(t, bundle.Metrics, loaded.Metrics)
	assert.InDelta(t, bundle.Predict(2.5, 1.5), loaded.Predict(2.5, 1.5), 1e-9)

	_, err = LoadBundle(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

// Package signal_model trains and persists the location to signal strength
// regression used by location predictions.
package signal_model

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrNotEnoughSamples is returned when the data set is too small to train on.
var ErrNotEnoughSamples = errors.New("not enough samples")

const (
	// ModelNameKNN is the display name stored in bundles.
	ModelNameKNN = "k-Nearest Neighbors"

	minSamples = 5
)

// FeatureNames are the model inputs, in order.
var FeatureNames = []string{"location_x", "location_y"}

// Sample is one training point.
type Sample struct {
	X    float64
	Y    float64
	RSSI float64
}

// TrainOptions controls the split and the hyper-parameter grid.
type TrainOptions struct {
	Seed         uint64
	TestFraction float64
	Folds        int
	Neighbors    []int
	Weights      []string
	Metrics      []string
	Now          func() time.Time
}

// DefaultTrainOptions returns the standard grid: k in {3,5,7,9,11}, both
// weightings, both metrics, 5 folds, 20% held out, seed 42.
func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		Seed:         42,
		TestFraction: 0.2,
		Folds:        5,
		Neighbors:    []int{3, 5, 7, 9, 11},
		Weights:      []string{WeightsUniform, WeightsDistance},
		Metrics:      []string{MetricEuclidean, MetricManhattan},
		Now:          time.Now,
	}
}

// Metrics reports how the selected model performed.
type Metrics struct {
	BestParams   KNNParams `json:"best_params"`
	CVMSE        float64   `json:"cv_mse"`
	TrainRMSE    float64   `json:"train_rmse"`
	TestRMSE     float64   `json:"test_rmse"`
	TrainMAE     float64   `json:"train_mae"`
	TestMAE      float64   `json:"test_mae"`
	TrainR2      float64   `json:"train_r2"`
	TestR2       float64   `json:"test_r2"`
	TrainSamples int       `json:"train_samples"`
	TestSamples  int       `json:"test_samples"`
}

// Train fits the scaler, grid-searches the kNN parameters by cross-validated
// MSE on the training split and evaluates the winner on the held-out split.
func Train(samples []Sample, opts TrainOptions) (*Bundle, error) {
	if len(samples) < minSamples {
		return nil, fmt.Errorf("%w: have %d, need at least %d", ErrNotEnoughSamples, len(samples), minSamples)
	}
	if opts.Folds < 2 {
		opts.Folds = 2
	}
	if opts.TestFraction <= 0 || opts.TestFraction >= 1 {
		opts.TestFraction = 0.2
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	train, test := splitSamples(samples, opts.TestFraction, opts.Seed)
	trainX, trainY := features(train)
	testX, testY := features(test)

	scaler := FitScaler(trainX)
	trainScaled := scaler.TransformAll(trainX)
	testScaled := scaler.TransformAll(testX)

	best, cvMSE, err := gridSearch(trainScaled, trainY, opts)
	if err != nil {
		return nil, err
	}

	model, err := FitKNN(best, trainScaled, trainY)
	if err != nil {
		return nil, err
	}

	trainPred := predictAll(model, trainScaled)
	testPred := predictAll(model, testScaled)
	metrics := Metrics{
		BestParams:   best,
		CVMSE:        cvMSE,
		TrainRMSE:    RMSE(trainY, trainPred),
		TestRMSE:     RMSE(testY, testPred),
		TrainMAE:     MAE(trainY, trainPred),
		TestMAE:      MAE(testY, testPred),
		TrainR2:      R2(trainY, trainPred),
		TestR2:       R2(testY, testPred),
		TrainSamples: len(train),
		TestSamples:  len(test),
	}

	logger.WithFields(logrus.Fields{
		"params":    best.String(),
		"cv_mse":    metrics.CVMSE,
		"test_rmse": metrics.TestRMSE,
		"test_r2":   metrics.TestR2,
	}).Info("Model training complete")

	return &Bundle{
		ModelName:    ModelNameKNN,
		Model:        *model,
		Scaler:       scaler,
		Metrics:      metrics,
		TrainedDate:  opts.Now().UTC(),
		FeatureNames: append([]string(nil), FeatureNames...),
	}, nil
}

// splitSamples shuffles deterministically and holds out ceil(fraction*n) samples.
func splitSamples(samples []Sample, fraction float64, seed uint64) (train, test []Sample) {
	shuffled := append([]Sample(nil), samples...)
	rng := rand.New(rand.NewPCG(seed, seed))
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	nTest := int(math.Ceil(fraction * float64(len(shuffled))))
	if nTest >= len(shuffled) {
		nTest = len(shuffled) - 1
	}
	return shuffled[nTest:], shuffled[:nTest]
}

func features(samples []Sample) ([][]float64, []float64) {
	x := make([][]float64, len(samples))
	y := make([]float64, len(samples))
	for i, s := range samples {
		x[i] = []float64{s.X, s.Y}
		y[i] = s.RSSI
	}
	return x, y
}

func predictAll(model *KNNRegressor, rows [][]float64) []float64 {
	out := make([]float64, len(rows))
	for i, row := range rows {
		out[i] = model.Predict(row)
	}
	return out
}

// gridSearch returns the parameters with the lowest mean cross-validated MSE.
// Configurations needing more neighbours than a fold provides are skipped.
func gridSearch(x [][]float64, y []float64, opts TrainOptions) (KNNParams, float64, error) {
	folds := opts.Folds
	if folds > len(x) {
		folds = len(x)
	}
	minFoldTrain := len(x) - int(math.Ceil(float64(len(x))/float64(folds)))

	var best KNNParams
	bestMSE := math.Inf(1)
	for _, k := range opts.Neighbors {
		if k > minFoldTrain {
			logger.WithField("k", k).Debug("Skipping k larger than the smallest training fold")
			continue
		}
		for _, w := range opts.Weights {
			for _, metric := range opts.Metrics {
				params := KNNParams{K: k, Weights: w, Metric: metric}
				if err := params.validate(); err != nil {
					return KNNParams{}, 0, err
				}
				mse := crossValidate(params, x, y, folds)
				if mse < bestMSE {
					best, bestMSE = params, mse
				}
			}
		}
	}
	if math.IsInf(bestMSE, 1) {
		return KNNParams{}, 0, fmt.Errorf("%w: %d training samples cannot support any configured k", ErrNotEnoughSamples, len(x))
	}
	return best, bestMSE, nil
}

// crossValidate returns the mean MSE over contiguous folds.
func crossValidate(params KNNParams, x [][]float64, y []float64, folds int) float64 {
	n := len(x)
	var total float64
	start := 0
	for f := 0; f < folds; f++ {
		size := n / folds
		if f < n%folds {
			size++
		}
		end := start + size

		var trainX [][]float64
		var trainY []float64
		trainX = append(trainX, x[:start]...)
		trainX = append(trainX, x[end:]...)
		trainY = append(trainY, y[:start]...)
		trainY = append(trainY, y[end:]...)

		model := &KNNRegressor{Params: params, Points: trainX, Targets: trainY}
		total += MSE(y[start:end], predictAll(model, x[start:end]))
		start = end
	}
	return total / float64(folds)
}

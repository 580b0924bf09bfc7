package signal_model

import (
	"fmt"
	"math"
	"sort"
)

// Neighbour weighting schemes.
const (
	WeightsUniform  = "uniform"
	WeightsDistance = "distance"
)

// Distance metrics.
const (
	MetricEuclidean = "euclidean"
	MetricManhattan = "manhattan"
)

// KNNParams selects one k-nearest-neighbours configuration.
type KNNParams struct {
	K       int    `json:"n_neighbors"`
	Weights string `json:"weights"`
	Metric  string `json:"metric"`
}

func (p KNNParams) String() string {
	return fmt.Sprintf("k=%d weights=%s metric=%s", p.K, p.Weights, p.Metric)
}

func (p KNNParams) validate() error {
	if p.K < 1 {
		return fmt.Errorf("n_neighbors must be positive, got %d", p.K)
	}
	switch p.Weights {
	case WeightsUniform, WeightsDistance:
	default:
		return fmt.Errorf("unknown weights %q", p.Weights)
	}
	switch p.Metric {
	case MetricEuclidean, MetricManhattan:
	default:
		return fmt.Errorf("unknown metric %q", p.Metric)
	}
	return nil
}

// KNNRegressor predicts a target as the (weighted) mean of its nearest training points.
type KNNRegressor struct {
	Params  KNNParams   `json:"params"`
	Points  [][]float64 `json:"points"`
	Targets []float64   `json:"targets"`
}

// FitKNN stores the training set. It needs at least K points.
func FitKNN(params KNNParams, points [][]float64, targets []float64) (*KNNRegressor, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	if len(points) != len(targets) {
		return nil, fmt.Errorf("points and targets differ in length: %d != %d", len(points), len(targets))
	}
	if len(points) < params.K {
		return nil, fmt.Errorf("%w: %d points for k=%d", ErrNotEnoughSamples, len(points), params.K)
	}
	return &KNNRegressor{Params: params, Points: points, Targets: targets}, nil
}

type neighbour struct {
	dist   float64
	target float64
}

// Predict estimates the target for one (already scaled) point.
func (m *KNNRegressor) Predict(x []float64) float64 {
	neighbours := make([]neighbour, len(m.Points))
	for i, p := range m.Points {
		neighbours[i] = neighbour{dist: m.distance(x, p), target: m.Targets[i]}
	}
	sort.SliceStable(neighbours, func(i, j int) bool { return neighbours[i].dist < neighbours[j].dist })

	k := m.Params.K
	if k > len(neighbours) {
		k = len(neighbours)
	}
	nearest := neighbours[:k]

	if m.Params.Weights == WeightsDistance {
		// exact matches take all the weight
		var exact []float64
		for _, n := range nearest {
			if n.dist == 0 {
				exact = append(exact, n.target)
			}
		}
		if len(exact) > 0 {
			return mean(exact)
		}
		var num, den float64
		for _, n := range nearest {
			w := 1 / n.dist
			num += w * n.target
			den += w
		}
		return num / den
	}

	targets := make([]float64, k)
	for i, n := range nearest {
		targets[i] = n.target
	}
	return mean(targets)
}

func (m *KNNRegressor) distance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		if m.Params.Metric == MetricManhattan {
			sum += math.Abs(d)
		} else {
			sum += d * d
		}
	}
	if m.Params.Metric == MetricManhattan {
		return sum
	}
	return math.Sqrt(sum)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

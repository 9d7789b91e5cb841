package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// ErrFeatureMismatch is returned when a feature vector has the wrong length.
var ErrFeatureMismatch = errors.New("scoring: feature length mismatch")

// LinearConfig tunes the online linear model.
type LinearConfig struct {
	LearningRate float64
	Epochs       int
}

// Linear maps features to weights through a 3x(n+1) matrix (last column is
// the bias). Inputs are scaled by their mean absolute value so price levels
// do not dominate the gradient. A fresh model predicts [1,0,0].
type Linear struct {
	mu     sync.RWMutex
	n      int
	w      [domain.WeightCount][]float64
	cfg    LinearConfig
	trains int
}

// NewLinear creates a model for feature vectors of length featureLen.
func NewLinear(featureLen int, cfg LinearConfig) *Linear {
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = 0.01
	}
	if cfg.Epochs <= 0 {
		cfg.Epochs = 50
	}
	m := &Linear{n: featureLen, cfg: cfg}
	for k := range m.w {
		m.w[k] = make([]float64, featureLen+1)
	}
	m.w[0][featureLen] = 1
	return m
}

// Predict returns [w_spread, w_liquidity, w_reserved] for the features.
func (m *Linear) Predict(_ context.Context, features []float64) ([]float64, error) {
	if len(features) != m.n {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrFeatureMismatch, len(features), m.n)
	}
	x := scale(features)

	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]float64, domain.WeightCount)
	for k := range m.w {
		out[k] = m.forward(k, x)
	}
	return out, nil
}

// Retrain runs SGD on squared error over the samples. The model is left
// unchanged if any sample is malformed or training diverges.
func (m *Linear) Retrain(ctx context.Context, samples []domain.Sample) error {
	for i, s := range samples {
		if len(s.Features) != m.n {
			return fmt.Errorf("%w: sample %d has %d features, want %d", ErrFeatureMismatch, i, len(s.Features), m.n)
		}
		if len(s.Label) != domain.WeightCount {
			return fmt.Errorf("scoring: sample %d label has %d values, want %d", i, len(s.Label), domain.WeightCount)
		}
	}
	if len(samples) == 0 {
		return nil
	}

	xs := make([][]float64, len(samples))
	for i, s := range samples {
		xs[i] = scale(s.Features)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.clone()
	for epoch := 0; epoch < m.cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("scoring: retrain: %w", err)
		}
		for i, s := range samples {
			x := xs[i]
			for k := range next {
				grad := forwardRow(next[k], x) - s.Label[k]
				for j, v := range x {
					next[k][j] -= m.cfg.LearningRate * grad * v
				}
				next[k][m.n] -= m.cfg.LearningRate * grad
			}
		}
	}
	for k := range next {
		for _, v := range next[k] {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return errors.New("scoring: retrain diverged")
			}
		}
	}
	m.w = next
	m.trains++
	return nil
}

// Trainings returns how many successful retrains have been applied.
func (m *Linear) Trainings() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.trains
}

type linearCheckpoint struct {
	FeatureLen int         `json:"feature_len"`
	Weights    [][]float64 `json:"weights"`
}

// Checkpoint serialises the weights.
func (m *Linear) Checkpoint() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp := linearCheckpoint{FeatureLen: m.n, Weights: make([][]float64, len(m.w))}
	for k := range m.w {
		cp.Weights[k] = append([]float64(nil), m.w[k]...)
	}
	return json.Marshal(cp)
}

// Restore replaces the weights from a checkpoint of the same shape.
func (m *Linear) Restore(data []byte) error {
	var cp linearCheckpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return fmt.Errorf("scoring: decode checkpoint: %w", err)
	}
	if cp.FeatureLen != m.n || len(cp.Weights) != domain.WeightCount {
		return fmt.Errorf("%w: checkpoint has %d features", ErrFeatureMismatch, cp.FeatureLen)
	}
	var w [domain.WeightCount][]float64
	for k := range w {
		if len(cp.Weights[k]) != m.n+1 {
			return fmt.Errorf("%w: checkpoint row %d has %d weights", ErrFeatureMismatch, k, len(cp.Weights[k]))
		}
		w[k] = cp.Weights[k]
	}
	m.mu.Lock()
	m.w = w
	m.mu.Unlock()
	return nil
}

func (m *Linear) forward(k int, x []float64) float64 {
	return forwardRow(m.w[k], x)
}

func (m *Linear) clone() [domain.WeightCount][]float64 {
	var out [domain.WeightCount][]float64
	for k := range m.w {
		out[k] = append([]float64(nil), m.w[k]...)
	}
	return out
}

func forwardRow(row, x []float64) float64 {
	v := row[len(x)]
	for j, xj := range x {
		v += row[j] * xj
	}
	return v
}

func scale(features []float64) []float64 {
	var sum float64
	for _, f := range features {
		sum += math.Abs(f)
	}
	out := make([]float64, len(features))
	if sum == 0 {
		return out
	}
	mean := sum / float64(len(features))
	for i, f := range features {
		out[i] = f / mean
	}
	return out
}

var _ domain.ScoringModel = (*Linear)(nil)

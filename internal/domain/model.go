package domain

import "context"

// WeightCount is the length of a ScoringModel prediction:
// [w_spread, w_liquidity, w_reserved].
const WeightCount = 3

// Sample is one retraining example.
type Sample struct {
	Features []float64
	Label    []float64
}

// ScoringModel maps a fixed-length market feature vector to ranking weights.
type ScoringModel interface {
	Predict(ctx context.Context, features []float64) ([]float64, error)
	Retrain(ctx context.Context, samples []Sample) error
}

// OnchainDataProvider supplies a reference price for contextual logging.
type OnchainDataProvider interface {
	LatestPrice(ctx context.Context) (float64, error)
}

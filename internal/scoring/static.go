// Package scoring provides ScoringModel implementations, checkpoint
// persistence, and the retraining collaborator that feeds them ledger
// history.
package scoring

import (
	"context"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// Static always predicts the same weights. Retraining is a no-op.
type Static struct {
	weights [domain.WeightCount]float64
}

// NewStatic returns a model fixed at w.
func NewStatic(w [domain.WeightCount]float64) *Static {
	return &Static{weights: w}
}

// SpreadOnly scores by spread alone.
func SpreadOnly() *Static {
	return NewStatic([domain.WeightCount]float64{1, 0, 0})
}

func (s *Static) Predict(_ context.Context, _ []float64) ([]float64, error) {
	out := s.weights
	return out[:], nil
}

func (s *Static) Retrain(context.Context, []domain.Sample) error { return nil }

var _ domain.ScoringModel = (*Static)(nil)

package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// RetrainStatus is the outcome of one retraining attempt.
type RetrainStatus string

const (
	RetrainSkipped RetrainStatus = "skipped"
	RetrainTrained RetrainStatus = "trained"
	RetrainFailed  RetrainStatus = "failed"
)

// RetrainOutcome reports what the retrainer did.
type RetrainOutcome struct {
	Status  RetrainStatus
	Samples int
	Err     error
}

// RetrainerConfig controls when retraining runs and where checkpoints go.
type RetrainerConfig struct {
	MinTrades     int
	CheckpointKey string
}

// Retrainer turns ledger history into training samples and hands them to
// the scoring model. Failures are reported, never propagated as panics.
type Retrainer struct {
	model  domain.ScoringModel
	store  CheckpointStore
	cfg    RetrainerConfig
	logger *slog.Logger
}

// NewRetrainer builds a retrainer. store may be nil.
func NewRetrainer(model domain.ScoringModel, store CheckpointStore, cfg RetrainerConfig, logger *slog.Logger) *Retrainer {
	if cfg.CheckpointKey == "" {
		cfg.CheckpointKey = "model"
	}
	return &Retrainer{
		model:  model,
		store:  store,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "retrainer")),
	}
}

// Samples converts trades into labelled samples. The label favours the
// spread weight for trades whose edge came from price difference and the
// liquidity weight for trades whose edge came from size. Trades without
// features are skipped.
func Samples(history []domain.TradeRecord) []domain.Sample {
	out := make([]domain.Sample, 0, len(history))
	for _, t := range history {
		if len(t.Features) == 0 {
			continue
		}
		total := t.PriceDiff + t.Amount
		if total <= 0 {
			continue
		}
		out = append(out, domain.Sample{
			Features: append([]float64(nil), t.Features...),
			Label:    []float64{t.PriceDiff / total, t.Amount / total, 0},
		})
	}
	return out
}

// Retrain trains on snap if it holds at least MinTrades trades.
func (r *Retrainer) Retrain(ctx context.Context, snap domain.LedgerSnapshot) (out RetrainOutcome) {
	if len(snap.History) < r.cfg.MinTrades {
		return RetrainOutcome{Status: RetrainSkipped}
	}
	samples := Samples(snap.History)
	if len(samples) == 0 {
		return RetrainOutcome{Status: RetrainSkipped}
	}

	defer func() {
		if p := recover(); p != nil {
			err := &domain.ModelError{Op: "retrain", Err: fmt.Errorf("panic: %v", p)}
			r.logger.ErrorContext(ctx, "model retrain panicked", slog.Any("panic", p))
			out = RetrainOutcome{Status: RetrainFailed, Samples: len(samples), Err: err}
		}
	}()

	if err := r.model.Retrain(ctx, samples); err != nil {
		r.logger.WarnContext(ctx, "model retrain failed",
			slog.Int("samples", len(samples)),
			slog.String("error", err.Error()),
		)
		return RetrainOutcome{
			Status:  RetrainFailed,
			Samples: len(samples),
			Err:     &domain.ModelError{Op: "retrain", Err: err},
		}
	}
	r.logger.InfoContext(ctx, "model retrained", slog.Int("samples", len(samples)))
	r.persist(ctx)
	return RetrainOutcome{Status: RetrainTrained, Samples: len(samples)}
}

// Restore loads the last checkpoint into the model, if one exists.
func (r *Retrainer) Restore(ctx context.Context) error {
	cp, ok := r.model.(Checkpointer)
	if !ok || r.store == nil {
		return nil
	}
	data, err := r.store.Load(ctx, r.cfg.CheckpointKey)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("scoring: restore: %w", err)
	}
	if err := cp.Restore(data); err != nil {
		return fmt.Errorf("scoring: restore: %w", err)
	}
	r.logger.InfoContext(ctx, "model checkpoint restored", slog.String("key", r.cfg.CheckpointKey))
	return nil
}

func (r *Retrainer) persist(ctx context.Context) {
	cp, ok := r.model.(Checkpointer)
	if !ok || r.store == nil {
		return
	}
	data, err := cp.Checkpoint()
	if err == nil {
		err = r.store.Save(ctx, r.cfg.CheckpointKey, data)
	}
	if err != nil {
		r.logger.WarnContext(ctx, "checkpoint save failed", slog.String("error", err.Error()))
	}
}

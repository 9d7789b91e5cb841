// Package ranker turns a market snapshot into an ordered list of cross-venue
// arbitrage candidates.
package ranker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// Degradation reasons.
const (
	DegradedIncompleteSnapshot = "incomplete_snapshot"
	DegradedModelError         = "model_error"
)

// Result is the outcome of one ranking pass.
type Result struct {
	Candidates []domain.OpportunityCandidate
	// Features is the vector the model scored. Nil when the snapshot lacked
	// a configured venue.
	Features []float64
	Degraded bool
	Reason   string
}

// Top returns the highest ranked candidate.
func (r Result) Top() (domain.OpportunityCandidate, bool) {
	if len(r.Candidates) == 0 {
		return domain.OpportunityCandidate{}, false
	}
	return r.Candidates[0], true
}

// Ranker scores candidates with a pluggable model and falls back to
// spread-only ordering when the model cannot be used.
type Ranker struct {
	venues []string
	model  domain.ScoringModel
	logger *slog.Logger
}

// New creates a Ranker. venueOrder fixes the feature layout: bid and ask of
// each venue, in that order.
func New(venueOrder []string, model domain.ScoringModel, logger *slog.Logger) *Ranker {
	order := make([]string, len(venueOrder))
	copy(order, venueOrder)
	return &Ranker{
		venues: order,
		model:  model,
		logger: logger.With(slog.String("component", "ranker")),
	}
}

// FeatureLen is the length of the feature vector this ranker builds.
func (r *Ranker) FeatureLen() int {
	return 2 * len(r.venues)
}

// Rank enumerates, scores and sorts candidates. It never returns an error;
// model failures degrade to spread ordering.
func (r *Ranker) Rank(ctx context.Context, snap domain.MarketSnapshot) Result {
	cands := Enumerate(snap)
	if len(cands) == 0 {
		return Result{}
	}

	features, complete := Features(snap, r.venues)
	if !complete {
		r.logger.WarnContext(ctx, "ranking degraded",
			slog.String("reason", DegradedIncompleteSnapshot),
			slog.Int("venues_quoted", len(snap)),
			slog.Int("venues_configured", len(r.venues)),
		)
		return fallback(cands, nil, DegradedIncompleteSnapshot)
	}

	weights, err := r.predict(ctx, features)
	if err != nil {
		r.logger.WarnContext(ctx, "ranking degraded",
			slog.String("reason", DegradedModelError),
			slog.String("error", err.Error()),
		)
		return fallback(cands, features, DegradedModelError)
	}

	for i := range cands {
		cands[i].Score = cands[i].Spread*weights[0] + cands[i].Liquidity*weights[1]
	}
	sortCandidates(cands)

	r.logger.DebugContext(ctx, "ranked candidates",
		slog.Int("count", len(cands)),
		slog.String("top", cands[0].PairID()),
		slog.Float64("top_score", cands[0].Score),
	)
	return Result{Candidates: cands, Features: features}
}

// predict calls the model and validates its output. A panicking model is
// treated like a failing one.
func (r *Ranker) predict(ctx context.Context, features []float64) (weights []float64, err error) {
	if r.model == nil {
		return nil, &domain.ModelError{Op: "predict", Err: fmt.Errorf("no model configured")}
	}
	defer func() {
		if p := recover(); p != nil {
			weights = nil
			err = &domain.ModelError{Op: "predict", Err: fmt.Errorf("panic: %v", p)}
		}
	}()

	w, err := r.model.Predict(ctx, features)
	if err != nil {
		return nil, &domain.ModelError{Op: "predict", Err: err}
	}
	if len(w) != domain.WeightCount {
		return nil, &domain.ModelError{Op: "predict", Err: fmt.Errorf("%w: got %d weights", domain.ErrBadPrediction, len(w))}
	}
	for _, v := range w {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &domain.ModelError{Op: "predict", Err: fmt.Errorf("%w: non-finite weight", domain.ErrBadPrediction)}
		}
	}
	return w, nil
}

// Enumerate builds every ordered pair with a positive spread.
func Enumerate(snap domain.MarketSnapshot) []domain.OpportunityCandidate {
	if len(snap) < 2 {
		return nil
	}
	venues := snap.Venues()
	var out []domain.OpportunityCandidate
	for _, long := range venues {
		for _, short := range venues {
			if long == short {
				continue
			}
			lq, sq := snap[long], snap[short]
			spread := sq.Bid - lq.Ask
			if !(spread > 0) {
				continue
			}
			out = append(out, domain.OpportunityCandidate{
				LongVenue:  long,
				ShortVenue: short,
				LongAsk:    lq.Ask,
				ShortBid:   sq.Bid,
				Spread:     spread,
				Liquidity:  math.Min(lq.AskSize, sq.BidSize),
			})
		}
	}
	return out
}

// Features lays out bid and ask for each venue in order. complete is false
// when any venue is missing from the snapshot.
func Features(snap domain.MarketSnapshot, order []string) (features []float64, complete bool) {
	features = make([]float64, 0, 2*len(order))
	for _, v := range order {
		q, ok := snap[v]
		if !ok {
			return nil, false
		}
		features = append(features, q.Bid, q.Ask)
	}
	return features, true
}

func fallback(cands []domain.OpportunityCandidate, features []float64, reason string) Result {
	for i := range cands {
		cands[i].Score = cands[i].Spread
	}
	sortCandidates(cands)
	return Result{Candidates: cands, Features: features, Degraded: true, Reason: reason}
}

// sortCandidates orders by score, then liquidity, both descending, then by
// pair id so the result is total.
func sortCandidates(c []domain.OpportunityCandidate) {
	sort.SliceStable(c, func(i, j int) bool {
		if c[i].Score != c[j].Score {
			return c[i].Score > c[j].Score
		}
		if c[i].Liquidity != c[j].Liquidity {
			return c[i].Liquidity > c[j].Liquidity
		}
		return c[i].PairID() < c[j].PairID()
	})
}

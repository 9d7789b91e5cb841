// Package executor performs at most one cross-venue execution per cycle and
// records it in the ledger.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// Status is the outcome of an execution attempt.
type Status string

const (
	StatusExecuted Status = "executed"
	StatusFailed   Status = "failed"
	StatusSkipped  Status = "skipped"
)

// Result reports what Execute did. Record is set only when Status is
// StatusExecuted; Err only when it is StatusFailed.
type Result struct {
	Status Status
	Record *domain.TradeRecord
	Err    error
}

// Summary converts the result for reporting.
func (r Result) Summary() domain.ExecutionSummary {
	s := domain.ExecutionSummary{Status: string(r.Status)}
	if r.Err != nil {
		s.Error = r.Err.Error()
	}
	return s
}

// Skipped is the result for a cycle with nothing to execute.
func Skipped() Result {
	return Result{Status: StatusSkipped}
}

// ErrShortFill is returned when a venue accepts an order but fills less than
// the requested size, including a resting order that filled nothing.
var ErrShortFill = errors.New("executor: order not fully filled")

// fillTolerance absorbs float noise when comparing filled and requested size.
const fillTolerance = 1e-9

// Recorder appends a trade to the ledger in one atomic step.
type Recorder interface {
	Append(rec domain.TradeRecord)
}

// Config controls execution.
type Config struct {
	Instrument string
	// Simulate assumes both legs fill at the quoted prices without sending
	// orders to the venues.
	Simulate bool
	// LotSize is the order size increment every venue accepts. Both legs are
	// rounded down to a multiple of it before either is sent. Zero disables
	// rounding.
	LotSize float64
}

// Executor places the two legs of a candidate and books the profit.
type Executor struct {
	placers map[string]domain.OrderPlacer
	ledger  Recorder
	guard   MEVGuard
	cfg     Config
	now     func() time.Time
	logger  *slog.Logger
}

// New creates an Executor. placers maps venue name to its order placer; it
// may be empty when cfg.Simulate is set.
func New(placers map[string]domain.OrderPlacer, ledger Recorder, cfg Config, logger *slog.Logger) *Executor {
	return &Executor{
		placers: placers,
		ledger:  ledger,
		guard:   NoopGuard{},
		cfg:     cfg,
		now:     time.Now,
		logger:  logger.With(slog.String("component", "executor")),
	}
}

// WithGuard installs an MEV guard consulted before any leg is sent.
func (e *Executor) WithGuard(g MEVGuard) *Executor {
	if g != nil {
		e.guard = g
	}
	return e
}

// WithClock overrides the trade timestamp source.
func (e *Executor) WithClock(now func() time.Time) *Executor {
	e.now = now
	return e
}

// Execute attempts one approved candidate. On failure the ledger is not
// touched and the error is returned in the result, never as a panic.
func (e *Executor) Execute(ctx context.Context, c domain.OpportunityCandidate, features []float64) Result {
	log := e.logger.With(
		slog.String("long_venue", c.LongVenue),
		slog.String("short_venue", c.ShortVenue),
		slog.Float64("spread", c.Spread),
		slog.Float64("liquidity", c.Liquidity),
	)

	fail := func(leg string, err error) Result {
		execErr := &domain.ExecutionError{LongVenue: c.LongVenue, ShortVenue: c.ShortVenue, Leg: leg, Err: err}
		log.ErrorContext(ctx, "execution failed",
			slog.String("leg", leg),
			slog.String("error", err.Error()),
		)
		return Result{Status: StatusFailed, Err: execErr}
	}

	if !(c.Spread > 0) || !(c.Liquidity > 0) {
		return fail("none", fmt.Errorf("%w: spread %v liquidity %v", domain.ErrInvalidOrder, c.Spread, c.Liquidity))
	}
	if err := ctx.Err(); err != nil {
		return fail("none", err)
	}

	size := e.orderSize(c.Liquidity)
	if !(size > 0) {
		return fail("none", fmt.Errorf("%w: liquidity %v is below lot size %v", domain.ErrInvalidOrder, c.Liquidity, e.cfg.LotSize))
	}

	tradeID := uuid.New().String()
	long := domain.OrderRequest{
		ClientID:   tradeID + "-L",
		Instrument: e.cfg.Instrument,
		Side:       domain.OrderSideBuy,
		Price:      c.LongAsk,
		Size:       size,
	}
	short := domain.OrderRequest{
		ClientID:   tradeID + "-S",
		Instrument: e.cfg.Instrument,
		Side:       domain.OrderSideSell,
		Price:      c.ShortBid,
		Size:       size,
	}

	if err := e.guard.Protect(ctx, long, short); err != nil {
		return fail("none", fmt.Errorf("mev guard: %w", err))
	}

	filled := size
	if !e.cfg.Simulate {
		longFill, err := e.place(ctx, c.LongVenue, long)
		if err != nil {
			e.warnUnhedged(ctx, log, long, longFill, 0)
			return fail("long", err)
		}
		shortFill, err := e.place(ctx, c.ShortVenue, short)
		if err != nil {
			e.warnUnhedged(ctx, log, long, longFill, shortFill)
			return fail("short", err)
		}
		filled = math.Min(longFill, shortFill)
	}

	rec := domain.TradeRecord{
		ID:         tradeID,
		Timestamp:  e.now().UTC(),
		Instrument: e.cfg.Instrument,
		LongVenue:  c.LongVenue,
		ShortVenue: c.ShortVenue,
		Amount:     filled,
		PriceDiff:  c.Spread,
		PnL:        c.Spread * filled,
		Features:   features,
	}
	e.ledger.Append(rec)

	log.InfoContext(ctx, "trade executed",
		slog.String("trade_id", rec.ID),
		slog.Float64("pnl", rec.PnL),
		slog.Bool("simulated", e.cfg.Simulate),
	)
	return Result{Status: StatusExecuted, Record: &rec}
}

// orderSize rounds liquidity down to the configured lot size.
func (e *Executor) orderSize(liquidity float64) float64 {
	if e.cfg.LotSize <= 0 {
		return liquidity
	}
	return math.Floor(liquidity/e.cfg.LotSize+fillTolerance) * e.cfg.LotSize
}

// place sends one leg and returns the size the venue reports filled. Any
// fill short of the requested size is an error; the returned size is still
// valid so the caller can report the exposure it left.
func (e *Executor) place(ctx context.Context, venue string, req domain.OrderRequest) (float64, error) {
	p, ok := e.placers[venue]
	if !ok {
		return 0, fmt.Errorf("%w: %s", domain.ErrUnknownVenue, venue)
	}
	ack, err := p.PlaceOrder(ctx, req)
	if err != nil {
		return 0, err
	}
	if ack.FilledSize < req.Size-fillTolerance {
		return ack.FilledSize, fmt.Errorf("%w: %.4f/%.4f on %s (order %s)", ErrShortFill, ack.FilledSize, req.Size, venue, ack.OrderID)
	}
	return ack.FilledSize, nil
}

// warnUnhedged logs the open position left when a leg fails after the long
// leg has filled, fully or partly.
func (e *Executor) warnUnhedged(ctx context.Context, log *slog.Logger, long domain.OrderRequest, longFill, shortFill float64) {
	if longFill <= 0 || longFill-shortFill <= fillTolerance {
		return
	}
	log.ErrorContext(ctx, "unhedged exposure: long leg filled without matching short leg",
		slog.String("client_id", long.ClientID),
		slog.Float64("long_filled", longFill),
		slog.Float64("short_filled", shortFill),
		slog.Float64("exposure", longFill-shortFill),
	)
}

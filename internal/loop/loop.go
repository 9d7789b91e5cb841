// Package loop drives the arbitrage decision cycle: aggregate, rank, gate,
// execute, retrain, report, sleep. It owns the per-process state the stages
// share and is the only writer of the ledger.
package loop

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/crossarb/internal/aggregator"
	"github.com/alanyoungcy/crossarb/internal/domain"
	"github.com/alanyoungcy/crossarb/internal/executor"
	"github.com/alanyoungcy/crossarb/internal/ranker"
	"github.com/alanyoungcy/crossarb/internal/report"
	"github.com/alanyoungcy/crossarb/internal/scoring"
)

// Stage interfaces. The concrete types live in their own packages.
type (
	Aggregator interface {
		Collect(ctx context.Context) aggregator.Result
	}
	Ranker interface {
		Rank(ctx context.Context, snap domain.MarketSnapshot) ranker.Result
	}
	Gate interface {
		Check(ctx context.Context, c domain.OpportunityCandidate) domain.ComplianceVerdict
	}
	Executor interface {
		Execute(ctx context.Context, c domain.OpportunityCandidate, features []float64) executor.Result
	}
	Retrainer interface {
		Retrain(ctx context.Context, snap domain.LedgerSnapshot) scoring.RetrainOutcome
	}
	LedgerReader interface {
		Snapshot() domain.LedgerSnapshot
	}
	Reporter interface {
		Publish(ctx context.Context, r domain.Report)
	}
)

// Components are the collaborators of one loop. Onchain is optional.
type Components struct {
	Aggregator Aggregator
	Ranker     Ranker
	Gate       Gate
	Executor   Executor
	Retrainer  Retrainer
	Ledger     LedgerReader
	Reporter   Reporter
	Onchain    domain.OnchainDataProvider
}

// Config controls cadence and shutdown.
type Config struct {
	Interval time.Duration
	// Grace bounds how long an in-flight stage may run after shutdown is
	// signalled before its context is cancelled.
	Grace          time.Duration
	OnchainTimeout time.Duration
}

// ControlLoop runs cycles until shutdown. Cycles never overlap.
type ControlLoop struct {
	c        Components
	cfg      Config
	shutdown *ShutdownSignal
	logger   *slog.Logger
	now      func() time.Time

	state      atomic.Int32
	cycles     atomic.Uint64
	snapshot   atomic.Pointer[domain.MarketSnapshot]
	lastReport atomic.Pointer[domain.Report]
}

// New builds a control loop.
func New(c Components, cfg Config, shutdown *ShutdownSignal, logger *slog.Logger) *ControlLoop {
	if cfg.OnchainTimeout <= 0 {
		cfg.OnchainTimeout = 2 * time.Second
	}
	return &ControlLoop{
		c:        c,
		cfg:      cfg,
		shutdown: shutdown,
		logger:   logger.With(slog.String("component", "loop")),
		now:      time.Now,
	}
}

// WithClock overrides the wall clock used for reports.
func (l *ControlLoop) WithClock(now func() time.Time) *ControlLoop {
	l.now = now
	return l
}

// State returns the current phase.
func (l *ControlLoop) State() State { return State(l.state.Load()) }

// Cycles returns how many cycles have started.
func (l *ControlLoop) Cycles() uint64 { return l.cycles.Load() }

// Snapshot returns the most recently published market snapshot.
func (l *ControlLoop) Snapshot() (domain.MarketSnapshot, bool) {
	p := l.snapshot.Load()
	if p == nil {
		return nil, false
	}
	return p.Clone(), true
}

// LastReport returns the report of the last completed cycle.
func (l *ControlLoop) LastReport() (domain.Report, bool) {
	p := l.lastReport.Load()
	if p == nil {
		return domain.Report{}, false
	}
	return *p, true
}

// Run drives cycles until the shutdown signal is set or ctx is done. Once
// either happens no new cycle starts, and the in-flight stage has Grace to
// finish before its context is cancelled.
func (l *ControlLoop) Run(ctx context.Context) error {
	l.setState(Idle)
	l.logger.InfoContext(ctx, "control loop started",
		slog.Duration("interval", l.cfg.Interval),
		slog.Duration("grace", l.cfg.Grace),
	)

	stageCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()
	go l.cancelAfterGrace(ctx, stageCtx, cancel)

	for !l.stopping(ctx) {
		l.cycle(stageCtx, ctx)
		if l.stopping(ctx) {
			break
		}
		l.setState(Sleeping)
		l.sleep(ctx)
	}

	l.setState(ShuttingDown)
	l.logger.InfoContext(ctx, "control loop stopped", slog.Uint64("cycles", l.Cycles()))
	return nil
}

func (l *ControlLoop) cancelAfterGrace(parent, stageCtx context.Context, cancel context.CancelFunc) {
	select {
	case <-l.shutdown.Done():
	case <-parent.Done():
	case <-stageCtx.Done():
		return
	}
	t := time.NewTimer(l.cfg.Grace)
	defer t.Stop()
	select {
	case <-t.C:
		cancel()
	case <-stageCtx.Done():
	}
}

func (l *ControlLoop) stopping(ctx context.Context) bool {
	return l.shutdown.IsSet() || ctx.Err() != nil
}

func (l *ControlLoop) sleep(ctx context.Context) {
	t := time.NewTimer(l.cfg.Interval)
	defer t.Stop()
	select {
	case <-t.C:
	case <-l.shutdown.Done():
	case <-ctx.Done():
	}
}

func (l *ControlLoop) setState(s State) {
	l.state.Store(int32(s))
}

// advance moves to s unless shutdown has been requested.
func (l *ControlLoop) advance(parent context.Context, s State) bool {
	if l.stopping(parent) {
		l.setState(ShuttingDown)
		return false
	}
	l.setState(s)
	return true
}

// cycle runs one pass. Stages run on ctx; parent is only watched for
// shutdown.
func (l *ControlLoop) cycle(ctx, parent context.Context) {
	n := l.cycles.Add(1)
	start := l.now()
	rep := domain.Report{CycleID: uuid.NewString(), Cycle: n}
	log := l.logger.With(slog.Uint64("cycle", n), slog.String("cycle_id", rep.CycleID))

	defer func() {
		if p := recover(); p != nil {
			log.ErrorContext(ctx, "cycle panicked",
				slog.Any("panic", p),
				slog.String("state", l.State().String()),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()

	if !l.advance(parent, Aggregating) {
		return
	}
	agg := l.c.Aggregator.Collect(ctx)
	snap := agg.Snapshot
	l.snapshot.Store(&snap)
	rep.VenuesQuoted = len(snap)
	rep.FailedVenues = agg.FailedVenues()

	if !l.advance(parent, Ranking) {
		return
	}
	ranked := l.c.Ranker.Rank(ctx, snap)
	rep.Candidates = len(ranked.Candidates)
	rep.Degraded = ranked.Degraded
	rep.State = Ranking.String()

	if !l.advance(parent, Gating) {
		return
	}
	exec := executor.Skipped()
	if top, ok := ranked.Top(); ok {
		rep.TopCandidate = &top
		rep.State = Gating.String()
		verdict := l.c.Gate.Check(ctx, top)
		rep.Verdict = &verdict
		if verdict.Approved {
			if !l.advance(parent, Executing) {
				return
			}
			rep.State = Executing.String()
			exec = l.c.Executor.Execute(ctx, top, ranked.Features)
		} else {
			log.InfoContext(ctx, "candidate rejected",
				slog.String("pair", top.PairID()),
				slog.String("reason", verdict.Reason),
				slog.String("detail", verdict.Detail),
			)
		}
	}
	switch exec.Status {
	case executor.StatusExecuted:
		rep.LastTrade = exec.Record
	case executor.StatusFailed:
		log.WarnContext(ctx, "execution failed, ledger untouched", slog.String("error", errString(exec.Err)))
	case executor.StatusSkipped:
	}
	rep.Execution = exec.Summary()

	if !l.advance(parent, Retraining) {
		return
	}
	ledger := l.c.Ledger.Snapshot()
	outcome := l.c.Retrainer.Retrain(ctx, ledger)
	rep.Retrain = string(outcome.Status)
	switch outcome.Status {
	case scoring.RetrainTrained:
		log.DebugContext(ctx, "model retrained", slog.Int("samples", outcome.Samples))
	case scoring.RetrainFailed:
		log.WarnContext(ctx, "retrain failed, keeping current model", slog.String("error", errString(outcome.Err)))
	case scoring.RetrainSkipped:
	}

	if !l.advance(parent, Reporting) {
		return
	}
	rep.At = l.now()
	rep.CumulativePnL = ledger.CumulativePnL
	rep.TradeCount = ledger.TradeCount()
	rep.SharpeRatio = report.SharpeRatio(ledger.History)
	rep.OnchainPrice = l.onchainPrice(ctx, log)
	rep.Elapsed = rep.At.Sub(start)
	l.c.Reporter.Publish(ctx, rep)
	l.lastReport.Store(&rep)
}

func (l *ControlLoop) onchainPrice(ctx context.Context, log *slog.Logger) *float64 {
	if l.c.Onchain == nil {
		return nil
	}
	octx, cancel := context.WithTimeout(ctx, l.cfg.OnchainTimeout)
	defer cancel()
	price, err := l.c.Onchain.LatestPrice(octx)
	if err != nil {
		log.DebugContext(ctx, "onchain price unavailable", slog.String("error", err.Error()))
		return nil
	}
	return &price
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

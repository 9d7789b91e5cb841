// Package app provides the top-level lifecycle of the arbitrage process. It
// wires the optional integrations, assembles the loop stages, and runs the
// control loop alongside the HTTP API until shutdown.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/crossarb/internal/aggregator"
	"github.com/alanyoungcy/crossarb/internal/compliance"
	"github.com/alanyoungcy/crossarb/internal/config"
	"github.com/alanyoungcy/crossarb/internal/domain"
	"github.com/alanyoungcy/crossarb/internal/executor"
	"github.com/alanyoungcy/crossarb/internal/ledger"
	"github.com/alanyoungcy/crossarb/internal/loop"
	"github.com/alanyoungcy/crossarb/internal/ranker"
	"github.com/alanyoungcy/crossarb/internal/report"
	"github.com/alanyoungcy/crossarb/internal/scoring"
	"github.com/alanyoungcy/crossarb/internal/server"
	"github.com/alanyoungcy/crossarb/internal/server/handler"
	"github.com/alanyoungcy/crossarb/internal/server/ws"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// runtime is one assembled process: the loop plus its optional API.
type runtime struct {
	loop     *loop.ControlLoop
	shutdown *loop.ShutdownSignal
	ledger   *ledger.Ledger
	hub      *ws.Hub
	server   *server.Server
}

// Run wires dependencies, takes the instrument lock when Redis is enabled,
// and blocks until the loop stops. SIGINT or SIGTERM request a graceful stop:
// the in-flight cycle finishes, bounded by the shutdown grace period.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("instrument", a.cfg.Instrument),
		slog.Int("venues", len(a.cfg.Venues)),
		slog.Bool("simulate", a.cfg.Execution.Simulate),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	rt, err := assemble(ctx, a.cfg, deps, a.logger)
	if err != nil {
		return fmt.Errorf("app: assemble: %w", err)
	}

	if deps.LockManager != nil {
		release, err := deps.LockManager.Acquire(ctx, "loop:"+a.cfg.Instrument, a.cfg.Loop.LockTTL.Duration)
		if err != nil {
			return fmt.Errorf("app: instrument lock: %w", err)
		}
		a.closers = append(a.closers, release)
	}

	stop := rt.shutdown.TriggerOn(os.Interrupt, syscall.SIGTERM)
	defer stop()

	return a.serve(ctx, rt)
}

// serve runs the hub, the server, and the loop. When the loop returns the
// server gets the shutdown grace period to drain.
func (a *App) serve(ctx context.Context, rt *runtime) error {
	g, gctx := errgroup.WithContext(ctx)
	hubCtx, stopHub := context.WithCancel(gctx)
	defer stopHub()

	if rt.hub != nil {
		g.Go(func() error {
			if err := rt.hub.Run(hubCtx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("app: ws hub: %w", err)
			}
			return nil
		})
	}
	if rt.server != nil {
		g.Go(rt.server.Start)
	}

	g.Go(func() error {
		defer stopHub()
		err := rt.loop.Run(gctx)

		if rt.server != nil {
			sctx, cancel := context.WithTimeout(context.Background(), a.cfg.Loop.ShutdownGrace.Duration)
			defer cancel()
			if serr := rt.server.Shutdown(sctx); serr != nil {
				a.logger.Warn("server shutdown", slog.String("error", serr.Error()))
			}
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("app: loop: %w", err)
		}
		return nil
	})

	// A server that fails to start cancels gctx, which stops the loop.
	err := g.Wait()
	snap := rt.ledger.Snapshot()
	a.logger.Info("loop stopped",
		slog.Uint64("cycles", rt.loop.Cycles()),
		slog.Int("trades", len(snap.History)),
		slog.Float64("cumulative_pnl", snap.CumulativePnL),
	)
	return err
}

// assemble builds the loop stages in dependency order.
func assemble(ctx context.Context, cfg *config.Config, deps *Dependencies, logger *slog.Logger) (*runtime, error) {
	venues, placers, err := buildVenues(cfg)
	if err != nil {
		return nil, err
	}
	order := make([]string, len(venues))
	for i, v := range venues {
		order[i] = v.Name()
	}

	model, err := buildModel(cfg.Model, len(venues))
	if err != nil {
		return nil, err
	}
	retrainer := scoring.NewRetrainer(model, deps.Checkpoints, scoring.RetrainerConfig{
		MinTrades:     cfg.Model.MinTradesToRetrain,
		CheckpointKey: cfg.Instrument + "-" + cfg.Model.Kind,
	}, logger)
	if err := retrainer.Restore(ctx); err != nil {
		// A bad checkpoint is not fatal; the model starts fresh.
		logger.WarnContext(ctx, "checkpoint restore failed", slog.String("error", err.Error()))
	}

	policy, err := compliance.ParsePolicy(cfg.Compliance.PositionPolicy)
	if err != nil {
		return nil, err
	}

	led := ledger.New()
	gate := compliance.NewGate(venues, led, compliance.Config{
		Instrument:     cfg.Instrument,
		PositionLimit:  cfg.Compliance.PositionLimit,
		Policy:         policy,
		DailyVolumeCap: cfg.Compliance.DailyVolumeCap,
	}, logger)
	exec := executor.New(placers, led, executor.Config{
		Instrument: cfg.Instrument,
		Simulate:   cfg.Execution.Simulate,
		LotSize:    lotSize(cfg.Venues),
	}, logger)

	rt := &runtime{shutdown: loop.NewShutdownSignal(), ledger: led}

	sinks := []domain.ReportSink{
		report.NewLogSink(logger),
		report.NewMetricsSink(deps.Registry),
	}
	var bus ws.Subscriber
	if deps.SignalBus != nil {
		sinks = append(sinks, report.NewBusSink(deps.SignalBus))
		bus = deps.SignalBus
	}
	if cfg.Server.Enabled {
		// The hub greets each client with the latest report. ControlLoop is
		// set below, before the hub runs.
		rt.hub = ws.NewHub(ws.Config{
			Channels: []string{report.ChannelReport},
			Greeting: func() []byte { return lastReportJSON(rt.loop) },
		}, bus, logger)
		if bus == nil {
			sinks = append(sinks, report.NewBusSink(rt.hub))
		}
	}
	if deps.TradeJournal != nil {
		sinks = append(sinks, report.NewJournalSink(deps.TradeJournal, deps.AuditStore))
	}
	if deps.Notifier != nil {
		sinks = append(sinks, report.NewNotifySink(deps.Notifier))
	}

	rt.loop = loop.New(loop.Components{
		Aggregator: aggregator.New(venues, cfg.Instrument, cfg.Loop.FetchTimeout.Duration, logger),
		Ranker:     ranker.New(order, model, logger),
		Gate:       gate,
		Executor:   exec,
		Retrainer:  retrainer,
		Ledger:     led,
		Reporter:   report.NewReporter(logger, sinks...),
		Onchain:    deps.Onchain,
	}, loop.Config{
		Interval:       cfg.Loop.CycleInterval.Duration,
		Grace:          cfg.Loop.ShutdownGrace.Duration,
		OnchainTimeout: cfg.Loop.OnchainTimeout.Duration,
	}, rt.shutdown, logger)

	if cfg.Server.Enabled {
		var journal handler.TradeLister
		if deps.TradeJournal != nil {
			journal = deps.TradeJournal
		}
		rt.server = server.NewServer(server.Config{
			Port:           cfg.Server.Port,
			CORSOrigins:    cfg.Server.CORSOrigins,
			APIKey:         cfg.Server.APIKey,
			RateLimitRPS:   cfg.Server.RateLimitRPS,
			RateLimitBurst: cfg.Server.RateLimitBurst,
		}, server.Handlers{
			Health: handler.NewHealthHandler(deps.Checks, logger),
			Loop:   handler.NewLoopHandler(rt.loop, cfg.Instrument),
			Ledger: handler.NewLedgerHandler(led, journal, cfg.Instrument, logger),
		}, rt.hub, deps.Registry, logger)
	}

	return rt, nil
}

// buildModel returns the configured scoring model. Linear models take two
// features (bid, ask) per venue.
func buildModel(mc config.ModelConfig, venues int) (domain.ScoringModel, error) {
	switch mc.Kind {
	case "static":
		var w [domain.WeightCount]float64
		if len(mc.StaticWeights) != len(w) {
			return nil, fmt.Errorf("model: static_weights must have %d values", len(w))
		}
		copy(w[:], mc.StaticWeights)
		return scoring.NewStatic(w), nil
	case "linear":
		return scoring.NewLinear(2*venues, scoring.LinearConfig{
			LearningRate: mc.LearningRate,
			Epochs:       mc.Epochs,
		}), nil
	}
	return nil, fmt.Errorf("model: unknown kind %q", mc.Kind)
}

// lotSize is the order increment every configured venue accepts. Kalshi
// trades whole contracts; the other kinds take any size.
func lotSize(venues []config.VenueConfig) float64 {
	for _, v := range venues {
		if v.Kind == config.KindKalshi {
			return 1
		}
	}
	return 0
}

func lastReportJSON(l *loop.ControlLoop) []byte {
	if l == nil {
		return nil
	}
	r, ok := l.LastReport()
	if !ok {
		return nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil
	}
	return b
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

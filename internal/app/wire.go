package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	s3blob "github.com/alanyoungcy/crossarb/internal/blob/s3"
	"github.com/alanyoungcy/crossarb/internal/cache/redis"
	"github.com/alanyoungcy/crossarb/internal/config"
	"github.com/alanyoungcy/crossarb/internal/domain"
	"github.com/alanyoungcy/crossarb/internal/notify"
	"github.com/alanyoungcy/crossarb/internal/onchain"
	"github.com/alanyoungcy/crossarb/internal/scoring"
	"github.com/alanyoungcy/crossarb/internal/server/handler"
	"github.com/alanyoungcy/crossarb/internal/store/postgres"
)

// Dependencies bundles the optional infrastructure. Nil fields mean the
// integration is disabled.
type Dependencies struct {
	// Redis
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Postgres
	TradeJournal *postgres.TradeJournal
	AuditStore   domain.AuditStore

	// Model checkpoints: S3 when enabled, else a local directory.
	Checkpoints scoring.CheckpointStore

	Notifier *notify.Notifier
	Onchain  domain.OnchainDataProvider

	// Registry holds the loop's metrics plus Go and process collectors.
	Registry *prometheus.Registry
	// Checks are the health probes for /api/health.
	Checks map[string]handler.Check
}

// Wire connects every enabled integration and returns a cleanup func that
// releases them in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	deps := &Dependencies{Registry: reg, Checks: map[string]handler.Check{}}

	// --- Redis ---
	if cfg.Redis.Enabled {
		rc, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  "crossarb:",
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = rc.Close() })

		deps.LockManager = redis.NewLockManager(rc, logger)
		deps.SignalBus = redis.NewSignalBus(rc)
		deps.Checks["redis"] = rc.Ping
	}

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled {
		pg, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pg.Close)

		if cfg.Postgres.RunMigrations {
			if err := pg.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}
		deps.TradeJournal = postgres.NewTradeJournal(pg.Pool())
		deps.AuditStore = postgres.NewAuditStore(pg.Pool())
		deps.Checks["postgres"] = pg.Ping
	}

	// --- Checkpoints ---
	switch {
	case cfg.S3.Enabled:
		sc, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		deps.Checkpoints = s3blob.NewCheckpointStore(sc, cfg.S3.Prefix)
		deps.Checks["s3"] = sc.Health
	case cfg.Model.CheckpointPath != "":
		fs, err := scoring.NewFileStore(cfg.Model.CheckpointPath)
		if err != nil {
			return fail(fmt.Errorf("wire: checkpoints: %w", err))
		}
		deps.Checkpoints = fs
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) > 0 {
		deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, cfg.Notify.Cooldown.Duration, logger)
	}

	// --- On-chain reference price ---
	if cfg.Onchain.Enabled {
		feed, closeFeed, err := onchain.Dial(ctx, cfg.Onchain.RPCURL, cfg.Onchain.FeedAddress, cfg.Onchain.MaxAge.Duration)
		if err != nil {
			return fail(fmt.Errorf("wire: onchain: %w", err))
		}
		closers = append(closers, closeFeed)
		deps.Onchain = feed
	}

	return deps, cleanup, nil
}

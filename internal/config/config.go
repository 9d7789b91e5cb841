// Package config defines the crossarb configuration tree and its validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// Config is the root configuration. Fields come from Defaults, then an
// optional TOML file, then CROSSARB_* environment variables.
type Config struct {
	Instrument string           `toml:"instrument"`
	Venues     []VenueConfig    `toml:"venues"`
	Compliance ComplianceConfig `toml:"compliance"`
	Loop       LoopConfig       `toml:"loop"`
	Model      ModelConfig      `toml:"model"`
	Execution  ExecutionConfig  `toml:"execution"`
	Redis      RedisConfig      `toml:"redis"`
	Postgres   PostgresConfig   `toml:"postgres"`
	S3         S3Config         `toml:"s3"`
	Notify     NotifyConfig     `toml:"notify"`
	Onchain    OnchainConfig    `toml:"onchain"`
	Server     ServerConfig     `toml:"server"`
	LogLevel   string           `toml:"log_level"`
}

// Venue kinds.
const (
	KindPaper  = "paper"
	KindKalshi = "kalshi"
	KindREST   = "rest"
)

// VenueConfig describes one trading venue. Order in Config.Venues is the
// feature order used by the scoring model.
type VenueConfig struct {
	Name string `toml:"name"`
	Kind string `toml:"kind"`
	// Market overrides the instrument identifier on this venue.
	Market            string   `toml:"market"`
	BaseURL           string   `toml:"base_url"`
	APIKey            string   `toml:"api_key"`
	APISecret         string   `toml:"api_secret"`
	SecretFile        string   `toml:"secret_file"`
	SecretPassword    string   `toml:"secret_password"`
	RSAPrivateKeyPath string   `toml:"rsa_private_key_path"`
	KYC               bool     `toml:"kyc"`
	RateLimit         duration `toml:"rate_limit"`

	PaperBid     float64  `toml:"paper_bid"`
	PaperAsk     float64  `toml:"paper_ask"`
	PaperBidSize float64  `toml:"paper_bid_size"`
	PaperAskSize float64  `toml:"paper_ask_size"`
	PaperJitter  float64  `toml:"paper_jitter"`
	PaperLatency duration `toml:"paper_latency"`
}

// MarketID returns the instrument identifier to use on this venue.
func (v VenueConfig) MarketID(instrument string) string {
	if v.Market != "" {
		return v.Market
	}
	return instrument
}

// ComplianceConfig holds pre-trade risk limits.
type ComplianceConfig struct {
	PositionLimit  float64 `toml:"position_limit"`
	PositionPolicy string  `toml:"position_policy"`
	// DailyVolumeCap of zero disables the volume check.
	DailyVolumeCap float64 `toml:"daily_volume_cap"`
}

// LoopConfig holds control-loop cadence.
type LoopConfig struct {
	CycleInterval  duration `toml:"cycle_interval"`
	FetchTimeout   duration `toml:"fetch_timeout"`
	ShutdownGrace  duration `toml:"shutdown_grace"`
	LockTTL        duration `toml:"lock_ttl"`
	OnchainTimeout duration `toml:"onchain_timeout"`
}

// ModelConfig selects and tunes the scoring model.
type ModelConfig struct {
	Kind               string    `toml:"kind"`
	StaticWeights      []float64 `toml:"static_weights"`
	LearningRate       float64   `toml:"learning_rate"`
	Epochs             int       `toml:"epochs"`
	MinTradesToRetrain int       `toml:"min_trades_for_retrain"`
	// CheckpointPath is a directory for file checkpoints. When S3 is
	// enabled checkpoints go to the bucket instead.
	CheckpointPath string `toml:"checkpoint_path"`
}

// ExecutionConfig controls order placement.
type ExecutionConfig struct {
	Simulate bool `toml:"simulate"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// PostgresConfig holds trade-journal database parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config holds object storage parameters for model checkpoints.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
	// Cooldown suppresses repeats of the same alert.
	Cooldown duration `toml:"cooldown"`
}

// OnchainConfig points at a Chainlink AggregatorV3 feed.
type OnchainConfig struct {
	Enabled     bool     `toml:"enabled"`
	RPCURL      string   `toml:"rpc_url"`
	FeedAddress string   `toml:"feed_address"`
	MaxAge      duration `toml:"max_age"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// APIKey guards every endpoint except /api/health when set.
	APIKey         string  `toml:"api_key"`
	RateLimitRPS   float64 `toml:"rate_limit_rps"`
	RateLimitBurst int     `toml:"rate_limit_burst"`
}

// duration wraps time.Duration so TOML strings like "5s" decode.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config with every optional integration disabled and
// execution in simulate mode.
func Defaults() Config {
	return Config{
		Instrument: "BTC-USD",
		Compliance: ComplianceConfig{
			PositionLimit:  100,
			PositionPolicy: "gross",
		},
		Loop: LoopConfig{
			CycleInterval:  duration{5 * time.Second},
			FetchTimeout:   duration{2 * time.Second},
			ShutdownGrace:  duration{5 * time.Second},
			LockTTL:        duration{30 * time.Second},
			OnchainTimeout: duration{2 * time.Second},
		},
		Model: ModelConfig{
			Kind:               "static",
			StaticWeights:      []float64{1, 0, 0},
			LearningRate:       0.01,
			Epochs:             50,
			MinTradesToRetrain: 20,
		},
		Execution: ExecutionConfig{Simulate: true},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "crossarb",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  5,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "crossarb",
			Prefix:         "models",
			ForcePathStyle: true,
		},
		Notify: NotifyConfig{
			Events:   []string{"trade_executed", "trade_failed", "compliance_rejected"},
			Cooldown: duration{10 * time.Minute},
		},
		Onchain: OnchainConfig{
			MaxAge: duration{time.Hour},
		},
		Server: ServerConfig{
			Enabled:        true,
			Port:           8000,
			RateLimitRPS:   20,
			RateLimitBurst: 40,
		},
		LogLevel: "info",
	}
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validKinds = map[string]bool{
	KindPaper:  true,
	KindKalshi: true,
	KindREST:   true,
}

// Validate reports every problem at once. A non-nil result is always a
// *domain.FatalConfigurationError.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}
	if strings.TrimSpace(c.Instrument) == "" {
		errs = append(errs, "instrument must not be empty")
	}

	// Venues
	if len(c.Venues) < 2 {
		errs = append(errs, fmt.Sprintf("venues: at least two venues are required, got %d", len(c.Venues)))
	}
	seen := make(map[string]bool, len(c.Venues))
	for i, v := range c.Venues {
		label := v.Name
		if label == "" {
			label = fmt.Sprintf("#%d", i)
			errs = append(errs, fmt.Sprintf("venues[%d]: name must not be empty", i))
		}
		if seen[v.Name] && v.Name != "" {
			errs = append(errs, fmt.Sprintf("venue %s: duplicate name", v.Name))
		}
		seen[v.Name] = true
		errs = append(errs, v.problems(label)...)
	}

	// Compliance
	if c.Compliance.PositionLimit <= 0 {
		errs = append(errs, "compliance: position_limit must be > 0")
	}
	switch c.Compliance.PositionPolicy {
	case "", "gross", "net":
	default:
		errs = append(errs, fmt.Sprintf("compliance: unknown position_policy %q (valid: gross, net)", c.Compliance.PositionPolicy))
	}
	if c.Compliance.DailyVolumeCap < 0 {
		errs = append(errs, "compliance: daily_volume_cap must be >= 0")
	}

	// Loop
	if c.Loop.CycleInterval.Duration <= 0 {
		errs = append(errs, "loop: cycle_interval must be > 0")
	}
	if c.Loop.FetchTimeout.Duration <= 0 {
		errs = append(errs, "loop: fetch_timeout must be > 0")
	}
	if c.Loop.ShutdownGrace.Duration <= 0 {
		errs = append(errs, "loop: shutdown_grace must be > 0")
	}

	// Model
	switch c.Model.Kind {
	case "static":
		if len(c.Model.StaticWeights) != domain.WeightCount {
			errs = append(errs, fmt.Sprintf("model: static_weights must have %d values, got %d", domain.WeightCount, len(c.Model.StaticWeights)))
		}
	case "linear":
		if c.Model.LearningRate <= 0 {
			errs = append(errs, "model: learning_rate must be > 0")
		}
		if c.Model.Epochs < 1 {
			errs = append(errs, "model: epochs must be >= 1")
		}
	default:
		errs = append(errs, fmt.Sprintf("model: unknown kind %q (valid: static, linear)", c.Model.Kind))
	}
	if c.Model.MinTradesToRetrain < 0 {
		errs = append(errs, "model: min_trades_for_retrain must be >= 0")
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
		if c.Loop.LockTTL.Duration <= 0 {
			errs = append(errs, "loop: lock_ttl must be > 0 when redis is enabled")
		}
	}

	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	if c.Onchain.Enabled {
		if c.Onchain.RPCURL == "" {
			errs = append(errs, "onchain: rpc_url must not be empty")
		}
		if c.Onchain.FeedAddress == "" {
			errs = append(errs, "onchain: feed_address must not be empty")
		}
	}

	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}

	if len(errs) > 0 {
		return &domain.FatalConfigurationError{Problems: errs}
	}
	return nil
}

func (v VenueConfig) problems(label string) []string {
	var errs []string
	kind := v.Kind
	if kind == "" {
		kind = KindPaper
	}
	if !validKinds[kind] {
		return append(errs, fmt.Sprintf("venue %s: unknown kind %q (valid: paper, kalshi, rest)", label, v.Kind))
	}
	if v.RateLimit.Duration < 0 {
		errs = append(errs, fmt.Sprintf("venue %s: rate_limit must be >= 0", label))
	}
	if kind == KindPaper {
		return errs
	}

	if v.BaseURL == "" {
		errs = append(errs, fmt.Sprintf("venue %s: base_url must not be empty", label))
	}
	if v.SecretFile != "" && v.SecretPassword == "" {
		errs = append(errs, fmt.Sprintf("venue %s: secret_password is required when secret_file is set", label))
	}
	if v.APIKey == "" {
		errs = append(errs, fmt.Sprintf("venue %s: api_key is required", label))
	}
	switch kind {
	case KindREST:
		if v.APISecret == "" && v.SecretFile == "" {
			errs = append(errs, fmt.Sprintf("venue %s: api_secret or secret_file is required", label))
		}
	case KindKalshi:
		if v.RSAPrivateKeyPath == "" {
			errs = append(errs, fmt.Sprintf("venue %s: rsa_private_key_path is required", label))
		}
	}
	return errs
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load builds the configuration from defaults, the TOML file at path (if
// it exists), a .env file (if present), and CROSSARB_* variables. The result
// is not validated; call Config.Validate.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// applyEnvOverrides overwrites fields whose CROSSARB_* variable is set.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Instrument, "CROSSARB_INSTRUMENT")
	setStr(&cfg.LogLevel, "CROSSARB_LOG_LEVEL")

	applyVenueOverrides(cfg)

	// ── Compliance ──
	setFloat64(&cfg.Compliance.PositionLimit, "CROSSARB_COMPLIANCE_POSITION_LIMIT")
	setStr(&cfg.Compliance.PositionPolicy, "CROSSARB_COMPLIANCE_POSITION_POLICY")
	setFloat64(&cfg.Compliance.DailyVolumeCap, "CROSSARB_COMPLIANCE_DAILY_VOLUME_CAP")

	// ── Loop ──
	setDuration(&cfg.Loop.CycleInterval, "CROSSARB_LOOP_CYCLE_INTERVAL")
	setDuration(&cfg.Loop.FetchTimeout, "CROSSARB_LOOP_FETCH_TIMEOUT")
	setDuration(&cfg.Loop.ShutdownGrace, "CROSSARB_LOOP_SHUTDOWN_GRACE")
	setDuration(&cfg.Loop.LockTTL, "CROSSARB_LOOP_LOCK_TTL")
	setDuration(&cfg.Loop.OnchainTimeout, "CROSSARB_LOOP_ONCHAIN_TIMEOUT")

	// ── Model ──
	setStr(&cfg.Model.Kind, "CROSSARB_MODEL_KIND")
	setFloat64Slice(&cfg.Model.StaticWeights, "CROSSARB_MODEL_STATIC_WEIGHTS")
	setFloat64(&cfg.Model.LearningRate, "CROSSARB_MODEL_LEARNING_RATE")
	setInt(&cfg.Model.Epochs, "CROSSARB_MODEL_EPOCHS")
	setInt(&cfg.Model.MinTradesToRetrain, "CROSSARB_MODEL_MIN_TRADES_FOR_RETRAIN")
	setStr(&cfg.Model.CheckpointPath, "CROSSARB_MODEL_CHECKPOINT_PATH")

	// ── Execution ──
	setBool(&cfg.Execution.Simulate, "CROSSARB_EXECUTION_SIMULATE")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "CROSSARB_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "CROSSARB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "CROSSARB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "CROSSARB_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "CROSSARB_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "CROSSARB_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "CROSSARB_REDIS_TLS_ENABLED")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "CROSSARB_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "CROSSARB_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "CROSSARB_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "CROSSARB_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "CROSSARB_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "CROSSARB_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "CROSSARB_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "CROSSARB_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "CROSSARB_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "CROSSARB_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "CROSSARB_POSTGRES_RUN_MIGRATIONS")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "CROSSARB_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "CROSSARB_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "CROSSARB_S3_REGION")
	setStr(&cfg.S3.Bucket, "CROSSARB_S3_BUCKET")
	setStr(&cfg.S3.Prefix, "CROSSARB_S3_PREFIX")
	setStr(&cfg.S3.AccessKey, "CROSSARB_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "CROSSARB_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "CROSSARB_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "CROSSARB_S3_FORCE_PATH_STYLE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "CROSSARB_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "CROSSARB_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "CROSSARB_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "CROSSARB_NOTIFY_EVENTS")
	setDuration(&cfg.Notify.Cooldown, "CROSSARB_NOTIFY_COOLDOWN")

	// ── Onchain ──
	setBool(&cfg.Onchain.Enabled, "CROSSARB_ONCHAIN_ENABLED")
	setStr(&cfg.Onchain.RPCURL, "CROSSARB_ONCHAIN_RPC_URL")
	setStr(&cfg.Onchain.FeedAddress, "CROSSARB_ONCHAIN_FEED_ADDRESS")
	setDuration(&cfg.Onchain.MaxAge, "CROSSARB_ONCHAIN_MAX_AGE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "CROSSARB_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "CROSSARB_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "CROSSARB_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "CROSSARB_SERVER_API_KEY")
	setFloat64(&cfg.Server.RateLimitRPS, "CROSSARB_SERVER_RATE_LIMIT_RPS")
	setInt(&cfg.Server.RateLimitBurst, "CROSSARB_SERVER_RATE_LIMIT_BURST")
}

// applyVenueOverrides handles CROSSARB_VENUES=a,b and the per-venue
// CROSSARB_VENUE_<NAME>_<FIELD> variables. When CROSSARB_VENUES is set it
// fixes the venue order; venues already defined in TOML keep their fields.
func applyVenueOverrides(cfg *Config) {
	var names []string
	setStringSlice(&names, "CROSSARB_VENUES")
	if len(names) > 0 {
		byName := make(map[string]VenueConfig, len(cfg.Venues))
		for _, v := range cfg.Venues {
			byName[v.Name] = v
		}
		venues := make([]VenueConfig, 0, len(names))
		for _, n := range names {
			v, ok := byName[n]
			if !ok {
				v = VenueConfig{Name: n, Kind: KindPaper}
			}
			venues = append(venues, v)
		}
		cfg.Venues = venues
	}

	for i := range cfg.Venues {
		v := &cfg.Venues[i]
		p := "CROSSARB_VENUE_" + envName(v.Name) + "_"
		setStr(&v.Kind, p+"KIND")
		setStr(&v.Market, p+"MARKET")
		setStr(&v.BaseURL, p+"BASE_URL")
		setStr(&v.APIKey, p+"API_KEY")
		setStr(&v.APISecret, p+"API_SECRET")
		setStr(&v.SecretFile, p+"SECRET_FILE")
		setStr(&v.SecretPassword, p+"SECRET_PASSWORD")
		setStr(&v.RSAPrivateKeyPath, p+"RSA_PRIVATE_KEY_PATH")
		setBool(&v.KYC, p+"KYC")
		setDuration(&v.RateLimit, p+"RATE_LIMIT")
		setFloat64(&v.PaperBid, p+"PAPER_BID")
		setFloat64(&v.PaperAsk, p+"PAPER_ASK")
		setFloat64(&v.PaperBidSize, p+"PAPER_BID_SIZE")
		setFloat64(&v.PaperAskSize, p+"PAPER_ASK_SIZE")
		setFloat64(&v.PaperJitter, p+"PAPER_JITTER")
		setDuration(&v.PaperLatency, p+"PAPER_LATENCY")
	}
}

// envName upper-cases a venue name and maps non-alphanumerics to '_'.
func envName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		}
		return '_'
	}, name)
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}

// setFloat64Slice leaves dst alone if any element fails to parse.
func setFloat64Slice(dst *[]float64, key string) {
	var parts []string
	setStringSlice(&parts, key)
	if len(parts) == 0 {
		return
	}
	out := make([]float64, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return
		}
		out[i] = f
	}
	*dst = out
}

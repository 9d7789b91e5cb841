package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

const sample = `
instrument = "ETH-USD"
log_level = "debug"

[[venues]]
name = "alpha"
kind = "paper"
kyc = true
paper_bid = 100.0
paper_ask = 101.0
rate_limit = "250ms"

[[venues]]
name = "beta"
kind = "rest"
base_url = "https://beta.example"
api_key = "key"
api_secret = "secret"
kyc = true

[compliance]
position_limit = 50.0
position_policy = "net"

[loop]
cycle_interval = "1s"
`

func writeTOML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crossarb.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	cfg, err := Load(writeTOML(t, sample))
	require.NoError(t, err)

	assert.Equal(t, "ETH-USD", cfg.Instrument)
	require.Len(t, cfg.Venues, 2)
	assert.Equal(t, 250*time.Millisecond, cfg.Venues[0].RateLimit.Duration)
	assert.Equal(t, "net", cfg.Compliance.PositionPolicy)
	assert.Equal(t, time.Second, cfg.Loop.CycleInterval.Duration)
	assert.Equal(t, 2*time.Second, cfg.Loop.FetchTimeout.Duration)
	assert.True(t, cfg.Execution.Simulate)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults().Instrument, cfg.Instrument)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	_, err := Load(writeTOML(t, "instrument = ["))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CROSSARB_INSTRUMENT", "SOL-USD")
	t.Setenv("CROSSARB_COMPLIANCE_POSITION_LIMIT", "75")
	t.Setenv("CROSSARB_LOOP_FETCH_TIMEOUT", "750ms")
	t.Setenv("CROSSARB_MODEL_STATIC_WEIGHTS", "0.5, 0.5, 0")
	t.Setenv("CROSSARB_EXECUTION_SIMULATE", "false")
	t.Setenv("CROSSARB_VENUES", "beta,gamma-x")
	t.Setenv("CROSSARB_VENUE_GAMMA_X_PAPER_BID", "99.5")
	t.Setenv("CROSSARB_VENUE_GAMMA_X_KYC", "true")
	t.Setenv("CROSSARB_VENUE_BETA_API_SECRET", "from-env")

	cfg, err := Load(writeTOML(t, sample))
	require.NoError(t, err)

	assert.Equal(t, "SOL-USD", cfg.Instrument)
	assert.Equal(t, 75.0, cfg.Compliance.PositionLimit)
	assert.Equal(t, 750*time.Millisecond, cfg.Loop.FetchTimeout.Duration)
	assert.Equal(t, []float64{0.5, 0.5, 0}, cfg.Model.StaticWeights)
	assert.False(t, cfg.Execution.Simulate)

	require.Len(t, cfg.Venues, 2)
	assert.Equal(t, "beta", cfg.Venues[0].Name)
	assert.Equal(t, KindREST, cfg.Venues[0].Kind)
	assert.Equal(t, "from-env", cfg.Venues[0].APISecret)
	assert.Equal(t, "gamma-x", cfg.Venues[1].Name)
	assert.Equal(t, KindPaper, cfg.Venues[1].Kind)
	assert.Equal(t, 99.5, cfg.Venues[1].PaperBid)
	assert.True(t, cfg.Venues[1].KYC)
}

func TestBadEnvValuesAreIgnored(t *testing.T) {
	t.Setenv("CROSSARB_MODEL_STATIC_WEIGHTS", "1,x,0")
	t.Setenv("CROSSARB_SERVER_PORT", "eighty")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 0}, cfg.Model.StaticWeights)
	assert.Equal(t, 8000, cfg.Server.Port)
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.Venues = []VenueConfig{
		{Name: "a", Kind: KindKalshi, BaseURL: "https://k"},
		{Name: "a", Kind: "carrier-pigeon"},
	}
	cfg.Compliance.PositionLimit = 0
	cfg.Compliance.PositionPolicy = "sideways"
	cfg.Loop.CycleInterval.Duration = 0
	cfg.Model.StaticWeights = []float64{1}

	err := cfg.Validate()
	var fatal *domain.FatalConfigurationError
	require.ErrorAs(t, err, &fatal)

	msg := err.Error()
	for _, want := range []string{
		"venue a: duplicate name",
		"venue a: api_key is required",
		"venue a: rsa_private_key_path is required",
		`unknown kind "carrier-pigeon"`,
		"position_limit must be > 0",
		`unknown position_policy "sideways"`,
		"cycle_interval must be > 0",
		"static_weights must have 3 values",
	} {
		assert.Contains(t, msg, want)
	}
}

func TestValidateRequiresTwoVenues(t *testing.T) {
	cfg := Defaults()
	cfg.Venues = []VenueConfig{{Name: "solo"}}
	assert.ErrorContains(t, cfg.Validate(), "at least two venues")
}

func TestValidateSecretFileNeedsPassword(t *testing.T) {
	cfg := Defaults()
	cfg.Venues = []VenueConfig{
		{Name: "a"},
		{Name: "b", Kind: KindREST, BaseURL: "https://b", APIKey: "k", SecretFile: "/run/b.enc"},
	}
	assert.ErrorContains(t, cfg.Validate(), "secret_password is required")

	cfg.Venues[1].SecretPassword = "pw"
	assert.NoError(t, cfg.Validate())
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Venues = []VenueConfig{{Name: "a", APIKey: "k", APISecret: "s"}}
	cfg.Postgres.Password = "pg"
	cfg.Notify.DiscordWebhookURL = "https://discord/hook"

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Venues[0].APIKey)
	assert.Equal(t, "***", out.Venues[0].APISecret)
	assert.Equal(t, "***", out.Postgres.Password)
	assert.Equal(t, "***", out.Notify.DiscordWebhookURL)
	assert.Equal(t, "", out.Redis.Password)

	assert.Equal(t, "k", cfg.Venues[0].APIKey)
	out.Notify.Events[0] = "changed"
	assert.NotEqual(t, "changed", cfg.Notify.Events[0])
}

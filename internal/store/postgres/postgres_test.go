package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://u:p@db:5432/arb?sslmode=disable",
		DSN(ClientConfig{Host: "db", Database: "arb", User: "u", Password: "p"}))
	assert.Equal(t, "postgres://u:p@db:6543/arb?sslmode=require",
		DSN(ClientConfig{Host: "db", Port: 6543, Database: "arb", User: "u", Password: "p", SSLMode: "require"}))
	assert.Equal(t, "postgres://x", DSN(ClientConfig{DSN: "postgres://x", Host: "ignored"}))
}

func TestMigrationNamesSorted(t *testing.T) {
	names, err := migrationNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "001_init.sql", names[0])
	assert.IsNonDecreasing(t, names)
}

// testClient connects to CROSSARB_TEST_POSTGRES_DSN or skips.
func testClient(t *testing.T) *Client {
	t.Helper()
	dsn := os.Getenv("CROSSARB_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CROSSARB_TEST_POSTGRES_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c, err := New(ctx, ClientConfig{DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	require.NoError(t, c.RunMigrations(ctx))
	// Second run is a no-op.
	require.NoError(t, c.RunMigrations(ctx))
	return c
}

func TestTradeJournalIntegration(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	j := NewTradeJournal(c.Pool())

	instrument := "TEST-" + uuid.NewString()
	rec := domain.TradeRecord{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC().Truncate(time.Microsecond),
		Instrument: instrument,
		LongVenue:  "A",
		ShortVenue: "B",
		Amount:     1,
		PriceDiff:  10,
		PnL:        10,
		Features:   []float64{10, 1, 0},
	}
	require.NoError(t, j.RecordTrade(ctx, rec))
	require.NoError(t, j.RecordTrade(ctx, rec))

	got, err := j.Recent(ctx, instrument, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, rec.ID, got[0].ID)
	assert.Equal(t, rec.Features, got[0].Features)
	assert.True(t, rec.Timestamp.Equal(got[0].Timestamp))
}

func TestAuditStoreIntegration(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	s := NewAuditStore(c.Pool())

	event := "test_event_" + uuid.NewString()
	require.NoError(t, s.Log(ctx, event, map[string]any{"reason": "kyc_failed"}))
	require.NoError(t, s.Log(ctx, event, nil))

	n, err := s.Count(ctx, event)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

package redis

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

func TestHasPattern(t *testing.T) {
	assert.True(t, hasPattern("ch:*"))
	assert.True(t, hasPattern("ch:[ab]"))
	assert.False(t, hasPattern("ch:report"))
}

func TestKeyPrefix(t *testing.T) {
	c := &Client{prefix: "crossarb:"}
	assert.Equal(t, "crossarb:loop:BTC-USD", c.key("loop:BTC-USD"))
}

// testClient connects to CROSSARB_TEST_REDIS_ADDR or skips.
func testClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("CROSSARB_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CROSSARB_TEST_REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := New(ctx, ClientConfig{Addr: addr, KeyPrefix: "crossarb-test:" + t.Name() + ":"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestLockManagerIntegration(t *testing.T) {
	c := testClient(t)
	lm := NewLockManager(c, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	release, err := lm.Acquire(ctx, "loop", 300*time.Millisecond)
	require.NoError(t, err)

	_, err = lm.Acquire(ctx, "loop", time.Second)
	assert.ErrorIs(t, err, domain.ErrLockHeld)

	// Outlives the original TTL thanks to the refresher.
	time.Sleep(600 * time.Millisecond)
	_, err = lm.Acquire(ctx, "loop", time.Second)
	assert.ErrorIs(t, err, domain.ErrLockHeld)

	release()
	release()

	again, err := lm.Acquire(ctx, "loop", time.Second)
	require.NoError(t, err)
	again()
}

func TestSignalBusIntegration(t *testing.T) {
	c := testClient(t)
	bus := NewSignalBus(c)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx, "ch:report")
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, "ch:report", []byte(`{"cycle":1}`)))

	select {
	case got := <-ch:
		assert.JSONEq(t, `{"cycle":1}`, string(got))
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}

	require.NoError(t, bus.StreamAppend(ctx, "stream:trades", []byte("x")))
	n, err := bus.StreamLen(ctx, "stream:trades")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))
	_ = c.rdb.Del(ctx, c.key("stream:trades")).Err()

	cancel()
	_, open := <-ch
	assert.False(t, open)
}

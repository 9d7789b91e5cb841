package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	name string
	err  error
	sent []string
}

func (r *recordingSender) Name() string { return r.name }

func (r *recordingSender) Send(_ context.Context, title, _ string) error {
	r.sent = append(r.sent, title)
	return r.err
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNotifyFiltersEvents(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, []string{"trade_executed", " "}, 0, discard())

	require.NoError(t, n.Notify(context.Background(), "trade_executed", "a", "m"))
	require.NoError(t, n.Notify(context.Background(), "compliance_rejected", "b", "m"))
	assert.Equal(t, []string{"a"}, s.sent)
}

func TestNotifyEmptyEventsAllowsAll(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, nil, 0, discard())
	require.NoError(t, n.Notify(context.Background(), "anything", "a", "m"))
	assert.Len(t, s.sent, 1)
}

func TestNotifyCooldown(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, nil, time.Minute, discard())
	now := time.Unix(1000, 0)
	n.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, n.Notify(ctx, "compliance_rejected", "r", "A->B: kyc_failed"))
	require.NoError(t, n.Notify(ctx, "compliance_rejected", "r", "A->B: kyc_failed"))
	require.NoError(t, n.Notify(ctx, "compliance_rejected", "r", "B->A: kyc_failed"))
	assert.Len(t, s.sent, 2)

	now = now.Add(2 * time.Minute)
	require.NoError(t, n.Notify(ctx, "compliance_rejected", "r", "A->B: kyc_failed"))
	assert.Len(t, s.sent, 3)
}

func TestNotifyContinuesAfterSenderFailure(t *testing.T) {
	bad := &recordingSender{name: "bad", err: errors.New("boom")}
	good := &recordingSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, 0, discard())

	err := n.Notify(context.Background(), "e", "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: boom")
	assert.Len(t, good.sent, 1)
}

func TestDiscordSender(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, NewDiscordSender(srv.URL).Send(context.Background(), "Trade executed", "pnl 10"))
	embeds, ok := got["embeds"].([]any)
	require.True(t, ok)
	require.Len(t, embeds, 1)
	assert.Equal(t, "Trade executed", embeds[0].(map[string]any)["title"])
}

func TestTelegramSenderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false}`))
	}))
	defer srv.Close()

	s := NewTelegramSender("TOKEN", "42")
	s.apiBase = srv.URL
	err := s.Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram: unexpected status 400")
}

package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/crossarb/internal/domain"
	"github.com/alanyoungcy/crossarb/internal/report"
)

// LedgerReader returns an immutable ledger copy.
type LedgerReader interface {
	Snapshot() domain.LedgerSnapshot
}

// TradeLister reads the persisted trade journal.
type TradeLister interface {
	Recent(ctx context.Context, instrument string, limit int) ([]domain.TradeRecord, error)
}

// LedgerHandler serves the in-memory ledger and, when configured, the
// persisted journal.
type LedgerHandler struct {
	ledger     LedgerReader
	journal    TradeLister
	instrument string
	logger     *slog.Logger
}

// NewLedgerHandler creates a LedgerHandler. journal may be nil.
func NewLedgerHandler(ledger LedgerReader, journal TradeLister, instrument string, logger *slog.Logger) *LedgerHandler {
	return &LedgerHandler{
		ledger:     ledger,
		journal:    journal,
		instrument: instrument,
		logger:     logger.With(slog.String("handler", "ledger")),
	}
}

// GetLedger returns cumulative PnL, trade count, Sharpe ratio, and history.
// GET /api/ledger
func (h *LedgerHandler) GetLedger(w http.ResponseWriter, r *http.Request) {
	snap := h.ledger.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"cumulative_pnl": snap.CumulativePnL,
		"trade_count":    snap.TradeCount(),
		"sharpe_ratio":   report.SharpeRatio(snap.History),
		"history":        snap.History,
	})
}

// ListTrades returns the newest trades, newest first. It reads the journal
// when one is configured and the in-memory ledger otherwise.
// GET /api/trades?limit=N
func (h *LedgerHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r)

	if h.journal != nil {
		trades, err := h.journal.Recent(r.Context(), h.instrument, limit)
		if err != nil {
			h.logger.ErrorContext(r.Context(), "list trades failed", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "failed to list trades")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"source": "journal", "trades": trades})
		return
	}

	history := h.ledger.Snapshot().History
	out := make([]domain.TradeRecord, 0, min(limit, len(history)))
	for i := len(history) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, history[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"source": "ledger", "trades": out})
}

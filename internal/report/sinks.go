package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// Bus channel and stream names.
const (
	ChannelReport = "ch:report"
	StreamTrades  = "stream:trades"
)

// Notification event types.
const (
	EventTradeExecuted      = "trade_executed"
	EventTradeFailed        = "trade_failed"
	EventComplianceRejected = "compliance_rejected"
)

func executed(r domain.Report) bool {
	return r.Execution.Status == "executed" && r.LastTrade != nil
}

// LogSink writes one structured line per cycle.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger.With(slog.String("component", "report"))}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Consume(ctx context.Context, r domain.Report) error {
	attrs := []slog.Attr{
		slog.String("cycle_id", r.CycleID),
		slog.Uint64("cycle", r.Cycle),
		slog.String("state", r.State),
		slog.Float64("cumulative_pnl", r.CumulativePnL),
		slog.Int("trades", r.TradeCount),
		slog.Float64("sharpe", r.SharpeRatio),
		slog.Int("venues_quoted", r.VenuesQuoted),
		slog.Int("candidates", r.Candidates),
		slog.Bool("degraded", r.Degraded),
		slog.String("execution", r.Execution.Status),
		slog.String("retrain", r.Retrain),
		slog.Duration("elapsed", r.Elapsed),
	}
	if r.TopCandidate != nil {
		attrs = append(attrs,
			slog.String("top_pair", r.TopCandidate.PairID()),
			slog.Float64("top_spread", r.TopCandidate.Spread),
		)
	}
	if r.Verdict != nil && !r.Verdict.Approved {
		attrs = append(attrs, slog.String("rejected", r.Verdict.Reason))
	}
	if r.OnchainPrice != nil {
		attrs = append(attrs, slog.Float64("onchain_price", *r.OnchainPrice))
	}
	if len(r.FailedVenues) > 0 {
		attrs = append(attrs, slog.Any("failed_venues", r.FailedVenues))
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "cycle report", attrs...)
	return nil
}

// streamAppender is satisfied by a domain.SignalBus.
type streamAppender interface {
	StreamAppend(ctx context.Context, stream string, payload []byte) error
}

// BusSink publishes every report as JSON and, when the publisher supports
// streams, appends executed trades to the trade stream.
type BusSink struct {
	pub domain.Publisher
}

func NewBusSink(pub domain.Publisher) *BusSink {
	return &BusSink{pub: pub}
}

func (s *BusSink) Name() string { return "bus" }

func (s *BusSink) Consume(ctx context.Context, r domain.Report) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("report: marshal: %w", err)
	}
	if err := s.pub.Publish(ctx, ChannelReport, payload); err != nil {
		return fmt.Errorf("report: publish: %w", err)
	}
	sa, ok := s.pub.(streamAppender)
	if !ok || !executed(r) {
		return nil
	}
	trade, err := json.Marshal(r.LastTrade)
	if err != nil {
		return fmt.Errorf("report: marshal trade: %w", err)
	}
	if err := sa.StreamAppend(ctx, StreamTrades, trade); err != nil {
		return fmt.Errorf("report: stream append: %w", err)
	}
	return nil
}

// JournalSink writes executed trades to the trade journal and cycle
// outcomes to the audit log. Either store may be nil.
type JournalSink struct {
	journal domain.TradeJournal
	audit   domain.AuditStore
}

func NewJournalSink(journal domain.TradeJournal, audit domain.AuditStore) *JournalSink {
	return &JournalSink{journal: journal, audit: audit}
}

func (s *JournalSink) Name() string { return "journal" }

func (s *JournalSink) Consume(ctx context.Context, r domain.Report) error {
	var errs []error
	if s.journal != nil && executed(r) {
		if err := s.journal.RecordTrade(ctx, *r.LastTrade); err != nil {
			errs = append(errs, fmt.Errorf("journal: %w", err))
		}
	}
	if s.audit != nil {
		if event, detail, ok := auditEvent(r); ok {
			if err := s.audit.Log(ctx, event, detail); err != nil {
				errs = append(errs, fmt.Errorf("audit: %w", err))
			}
		}
	}
	return errors.Join(errs...)
}

func auditEvent(r domain.Report) (string, map[string]any, bool) {
	detail := map[string]any{"cycle_id": r.CycleID, "cycle": r.Cycle}
	switch {
	case executed(r):
		detail["trade_id"] = r.LastTrade.ID
		detail["pair"] = r.LastTrade.LongVenue + "->" + r.LastTrade.ShortVenue
		detail["pnl"] = r.LastTrade.PnL
		return EventTradeExecuted, detail, true
	case r.Execution.Status == "failed":
		detail["error"] = r.Execution.Error
		if r.TopCandidate != nil {
			detail["pair"] = r.TopCandidate.PairID()
		}
		return EventTradeFailed, detail, true
	case r.Verdict != nil && !r.Verdict.Approved:
		detail["reason"] = r.Verdict.Reason
		detail["detail"] = r.Verdict.Detail
		if r.TopCandidate != nil {
			detail["pair"] = r.TopCandidate.PairID()
		}
		return EventComplianceRejected, detail, true
	}
	return "", nil, false
}

// Notifier delivers operator alerts filtered by event type.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// NotifySink alerts operators on executions, execution failures, and
// compliance rejections.
type NotifySink struct {
	n Notifier
}

func NewNotifySink(n Notifier) *NotifySink {
	return &NotifySink{n: n}
}

func (s *NotifySink) Name() string { return "notify" }

func (s *NotifySink) Consume(ctx context.Context, r domain.Report) error {
	switch {
	case executed(r):
		t := r.LastTrade
		return s.n.Notify(ctx, EventTradeExecuted, "Trade executed",
			fmt.Sprintf("%s long %s short %s amount %.4f spread %.4f pnl %.4f (cumulative %.4f)",
				t.Instrument, t.LongVenue, t.ShortVenue, t.Amount, t.PriceDiff, t.PnL, r.CumulativePnL))
	case r.Execution.Status == "failed":
		pair := "unknown pair"
		if r.TopCandidate != nil {
			pair = r.TopCandidate.PairID()
		}
		return s.n.Notify(ctx, EventTradeFailed, "Trade failed",
			fmt.Sprintf("%s: %s", pair, r.Execution.Error))
	case r.Verdict != nil && !r.Verdict.Approved:
		pair := "unknown pair"
		if r.TopCandidate != nil {
			pair = r.TopCandidate.PairID()
		}
		return s.n.Notify(ctx, EventComplianceRejected, "Compliance rejected",
			fmt.Sprintf("%s: %s %s", pair, r.Verdict.Reason, r.Verdict.Detail))
	}
	return nil
}

var (
	_ domain.ReportSink = (*LogSink)(nil)
	_ domain.ReportSink = (*BusSink)(nil)
	_ domain.ReportSink = (*JournalSink)(nil)
	_ domain.ReportSink = (*NotifySink)(nil)
)

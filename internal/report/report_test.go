package report

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func trades(pnl ...float64) []domain.TradeRecord {
	out := make([]domain.TradeRecord, len(pnl))
	for i, p := range pnl {
		out[i] = domain.TradeRecord{ID: "t", PnL: p}
	}
	return out
}

func TestSharpeRatio(t *testing.T) {
	assert.Zero(t, SharpeRatio(nil))
	assert.Zero(t, SharpeRatio(trades(5, 5, 5)))

	want := 2 / math.Sqrt(2.0/3) * math.Sqrt(252)
	assert.InDelta(t, want, SharpeRatio(trades(1, 2, 3)), 1e-9)
	assert.Less(t, SharpeRatio(trades(-1, -2, -3)), 0.0)
}

var executedReport = domain.Report{
	CycleID:       "c1",
	Cycle:         1,
	State:         "Sleeping",
	CumulativePnL: 10,
	TradeCount:    1,
	VenuesQuoted:  2,
	Candidates:    1,
	TopCandidate:  &domain.OpportunityCandidate{LongVenue: "A", ShortVenue: "B", Spread: 2, Liquidity: 5},
	Verdict:       &domain.ComplianceVerdict{Approved: true},
	Execution:     domain.ExecutionSummary{Status: "executed"},
	LastTrade:     &domain.TradeRecord{ID: "t1", Instrument: "X", LongVenue: "A", ShortVenue: "B", Amount: 5, PriceDiff: 2, PnL: 10},
}

func rejectedReport() domain.Report {
	v := domain.Reject(domain.ReasonPositionLimit, "exposure 60 > 50")
	return domain.Report{
		CycleID:      "c2",
		Cycle:        2,
		TopCandidate: &domain.OpportunityCandidate{LongVenue: "A", ShortVenue: "B", Spread: 2},
		Verdict:      &v,
		Execution:    domain.ExecutionSummary{Status: "skipped"},
	}
}

type sinkFunc struct {
	name string
	fn   func(domain.Report) error
}

func (s sinkFunc) Name() string { return s.name }

func (s sinkFunc) Consume(_ context.Context, r domain.Report) error { return s.fn(r) }

func TestReporterContinuesPastFailingSink(t *testing.T) {
	var seen []string
	failing := sinkFunc{"bad", func(domain.Report) error {
		seen = append(seen, "bad")
		return errors.New("down")
	}}
	ok := sinkFunc{"good", func(domain.Report) error {
		seen = append(seen, "good")
		return nil
	}}

	r := NewReporter(discard(), failing, nil, ok)
	r.Publish(context.Background(), executedReport)

	assert.Equal(t, []string{"bad", "good"}, seen)
	assert.Equal(t, []string{"bad", "good"}, r.Sinks())
}

type fakeBus struct {
	published map[string][][]byte
	streamed  map[string][][]byte
}

func newFakeBus() *fakeBus {
	return &fakeBus{published: map[string][][]byte{}, streamed: map[string][][]byte{}}
}

func (b *fakeBus) Publish(_ context.Context, ch string, p []byte) error {
	b.published[ch] = append(b.published[ch], p)
	return nil
}

func (b *fakeBus) StreamAppend(_ context.Context, s string, p []byte) error {
	b.streamed[s] = append(b.streamed[s], p)
	return nil
}

func TestBusSinkPublishesReportAndTrade(t *testing.T) {
	bus := newFakeBus()
	s := NewBusSink(bus)
	require.NoError(t, s.Consume(context.Background(), executedReport))
	require.NoError(t, s.Consume(context.Background(), rejectedReport()))

	require.Len(t, bus.published[ChannelReport], 2)
	var got domain.Report
	require.NoError(t, json.Unmarshal(bus.published[ChannelReport][0], &got))
	assert.Equal(t, "c1", got.CycleID)

	require.Len(t, bus.streamed[StreamTrades], 1)
	var trade domain.TradeRecord
	require.NoError(t, json.Unmarshal(bus.streamed[StreamTrades][0], &trade))
	assert.Equal(t, "t1", trade.ID)
}

type fakeJournal struct{ trades []domain.TradeRecord }

func (j *fakeJournal) RecordTrade(_ context.Context, rec domain.TradeRecord) error {
	j.trades = append(j.trades, rec)
	return nil
}

type fakeAudit struct {
	events []string
	err    error
}

func (a *fakeAudit) Log(_ context.Context, event string, _ map[string]any) error {
	a.events = append(a.events, event)
	return a.err
}

func TestJournalSink(t *testing.T) {
	j := &fakeJournal{}
	a := &fakeAudit{}
	s := NewJournalSink(j, a)

	require.NoError(t, s.Consume(context.Background(), executedReport))
	require.NoError(t, s.Consume(context.Background(), rejectedReport()))
	require.NoError(t, s.Consume(context.Background(), domain.Report{Execution: domain.ExecutionSummary{Status: "failed", Error: "leg"}}))
	require.NoError(t, s.Consume(context.Background(), domain.Report{}))

	require.Len(t, j.trades, 1)
	assert.Equal(t, "t1", j.trades[0].ID)
	assert.Equal(t, []string{EventTradeExecuted, EventComplianceRejected, EventTradeFailed}, a.events)

	a.err = errors.New("db down")
	assert.Error(t, s.Consume(context.Background(), executedReport))
}

type fakeNotifier struct{ events []string }

func (n *fakeNotifier) Notify(_ context.Context, event, _, _ string) error {
	n.events = append(n.events, event)
	return nil
}

func TestNotifySink(t *testing.T) {
	n := &fakeNotifier{}
	s := NewNotifySink(n)
	for _, r := range []domain.Report{executedReport, rejectedReport(), {Execution: domain.ExecutionSummary{Status: "failed"}}, {}} {
		require.NoError(t, s.Consume(context.Background(), r))
	}
	assert.Equal(t, []string{EventTradeExecuted, EventComplianceRejected, EventTradeFailed}, n.events)
}

func TestMetricsSink(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsSink(reg)

	price := 3100.5
	rep := executedReport
	rep.FailedVenues = []string{"C"}
	rep.OnchainPrice = &price
	require.NoError(t, m.Consume(context.Background(), rep))
	require.NoError(t, m.Consume(context.Background(), rejectedReport()))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.executions.WithLabelValues("executed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejections.WithLabelValues(domain.ReasonPositionLimit)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.venueErrors.WithLabelValues("C")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.pnl))
	assert.Equal(t, price, testutil.ToFloat64(m.onchain))
	assert.Equal(t, 2, testutil.CollectAndCount(m.cycles))
}

package loop

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/crossarb/internal/aggregator"
	"github.com/alanyoungcy/crossarb/internal/compliance"
	"github.com/alanyoungcy/crossarb/internal/domain"
	"github.com/alanyoungcy/crossarb/internal/executor"
	"github.com/alanyoungcy/crossarb/internal/ledger"
	"github.com/alanyoungcy/crossarb/internal/ranker"
	"github.com/alanyoungcy/crossarb/internal/scoring"
	"github.com/alanyoungcy/crossarb/internal/venue/paper"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// capture records reports and can stop the loop after n of them.
type capture struct {
	mu      sync.Mutex
	reports []domain.Report
	stopAt  int
	sig     *ShutdownSignal
}

func (c *capture) Publish(_ context.Context, r domain.Report) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports = append(c.reports, r)
	if c.stopAt > 0 && len(c.reports) >= c.stopAt {
		c.sig.Trigger()
	}
}

func (c *capture) all() []domain.Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Report(nil), c.reports...)
}

type stack struct {
	venues []*paper.Venue
	ledger *ledger.Ledger
	sink   *capture
	sig    *ShutdownSignal
	loop   *ControlLoop
}

func newStack(t *testing.T, stopAt int, cfgs ...paper.Config) *stack {
	t.Helper()
	var (
		adapters []domain.VenueAdapter
		venues   []*paper.Venue
		order    []string
	)
	placers := map[string]domain.OrderPlacer{}
	for _, c := range cfgs {
		v := paper.New(c)
		venues = append(venues, v)
		adapters = append(adapters, v)
		placers[c.Name] = v
		order = append(order, c.Name)
	}

	l := ledger.New()
	sig := NewShutdownSignal()
	sink := &capture{stopAt: stopAt, sig: sig}
	model := scoring.SpreadOnly()
	gate := compliance.NewGate(adapters, l, compliance.Config{
		Instrument:    "X",
		PositionLimit: 1000,
		Policy:        compliance.PolicyGross,
	}, discard())
	c := Components{
		Aggregator: aggregator.New(adapters, "X", 200*time.Millisecond, discard()),
		Ranker:     ranker.New(order, model, discard()),
		Gate:       gate,
		Executor:   executor.New(placers, l, executor.Config{Instrument: "X", Simulate: true}, discard()),
		Retrainer:  scoring.NewRetrainer(model, nil, scoring.RetrainerConfig{MinTrades: 100}, discard()),
		Ledger:     l,
		Reporter:   sink,
	}
	lp := New(c, Config{Interval: time.Millisecond, Grace: 100 * time.Millisecond}, sig, discard())
	return &stack{venues: venues, ledger: l, sink: sink, sig: sig, loop: lp}
}

func runWithin(t *testing.T, l *ControlLoop, d time.Duration) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background()) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(d):
		t.Fatal("loop did not return in time")
	}
}

var (
	venueA = paper.Config{Name: "A", Bid: 100, Ask: 101, BidSize: 5, AskSize: 5, KYC: true}
	venueB = paper.Config{Name: "B", Bid: 103, Ask: 104, BidSize: 5, AskSize: 5, KYC: true}
)

func TestCycleBooksExpectedProfit(t *testing.T) {
	s := newStack(t, 1, venueA, venueB)
	runWithin(t, s.loop, 2*time.Second)

	snap := s.ledger.Snapshot()
	require.Len(t, snap.History, 1)
	rec := snap.History[0]
	assert.Equal(t, "A", rec.LongVenue)
	assert.Equal(t, "B", rec.ShortVenue)
	assert.Equal(t, 2.0, rec.PriceDiff)
	assert.Equal(t, 5.0, rec.Amount)
	assert.Equal(t, 10.0, rec.PnL)
	assert.Equal(t, 10.0, snap.CumulativePnL)

	reports := s.sink.all()
	require.Len(t, reports, 1)
	r := reports[0]
	assert.Equal(t, "executed", r.Execution.Status)
	assert.Equal(t, 10.0, r.CumulativePnL)
	assert.Equal(t, 1, r.TradeCount)
	assert.Equal(t, 2, r.VenuesQuoted)
	assert.Equal(t, string(scoring.RetrainSkipped), r.Retrain)
	require.NotNil(t, r.LastTrade)
	assert.Equal(t, rec.ID, r.LastTrade.ID)

	assert.Equal(t, ShuttingDown, s.loop.State())
	got, ok := s.loop.Snapshot()
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"A", "B"}, got.Venues())
	last, ok := s.loop.LastReport()
	require.True(t, ok)
	assert.Equal(t, r.CycleID, last.CycleID)
}

func TestKYCFailureLeavesLedgerUntouched(t *testing.T) {
	b := venueB
	b.KYC = false
	s := newStack(t, 1, venueA, b)
	runWithin(t, s.loop, 2*time.Second)

	assert.Zero(t, s.ledger.Len())
	r := s.sink.all()[0]
	require.NotNil(t, r.Verdict)
	assert.False(t, r.Verdict.Approved)
	assert.Equal(t, domain.ReasonKYCFailed, r.Verdict.Reason)
	assert.Equal(t, "skipped", r.Execution.Status)
	assert.Nil(t, r.LastTrade)
}

func TestFailedVenueOmittedAndPairStillTraded(t *testing.T) {
	c := paper.Config{Name: "C", Bid: 90, Ask: 91, BidSize: 5, AskSize: 5, KYC: true, Latency: time.Second}
	s := newStack(t, 1, venueA, venueB, c)
	runWithin(t, s.loop, 3*time.Second)

	r := s.sink.all()[0]
	assert.Equal(t, []string{"C"}, r.FailedVenues)
	assert.True(t, r.Degraded)
	require.NotNil(t, r.TopCandidate)
	assert.Equal(t, "A->B", r.TopCandidate.PairID())
	assert.Equal(t, 1, s.ledger.Len())
}

func TestAtMostOneTradePerCycle(t *testing.T) {
	c := paper.Config{Name: "C", Bid: 105, Ask: 106, BidSize: 5, AskSize: 5, KYC: true}
	s := newStack(t, 5, venueA, venueB, c)
	runWithin(t, s.loop, 3*time.Second)

	reports := s.sink.all()
	require.Len(t, reports, 5)
	for i, r := range reports {
		assert.Greater(t, r.Candidates, 1)
		assert.Equal(t, i+1, r.TradeCount)
	}

	snap := s.ledger.Snapshot()
	var sum float64
	for _, rec := range snap.History {
		sum += rec.PnL
	}
	assert.Equal(t, sum, snap.CumulativePnL)
	assert.Len(t, snap.History, 5)
}

type blockingAggregator struct {
	started chan struct{}
	once    sync.Once
}

func (b *blockingAggregator) Collect(ctx context.Context) aggregator.Result {
	b.once.Do(func() { close(b.started) })
	<-ctx.Done()
	return aggregator.Result{Snapshot: domain.MarketSnapshot{}}
}

type nopRanker struct{}

func (nopRanker) Rank(context.Context, domain.MarketSnapshot) ranker.Result { return ranker.Result{} }

type panicRanker struct {
	mu    sync.Mutex
	calls int
}

func (p *panicRanker) Rank(context.Context, domain.MarketSnapshot) ranker.Result {
	p.mu.Lock()
	p.calls++
	first := p.calls == 1
	p.mu.Unlock()
	if first {
		panic("ranker exploded")
	}
	return ranker.Result{}
}

type countingExecutor struct{ calls int }

func (c *countingExecutor) Execute(context.Context, domain.OpportunityCandidate, []float64) executor.Result {
	c.calls++
	return executor.Skipped()
}

type emptyAggregator struct{}

func (emptyAggregator) Collect(context.Context) aggregator.Result {
	return aggregator.Result{Snapshot: domain.MarketSnapshot{}}
}

func fakeComponents(sink *capture) Components {
	l := ledger.New()
	return Components{
		Aggregator: emptyAggregator{},
		Ranker:     nopRanker{},
		Gate:       compliance.NewGate(nil, l, compliance.Config{PositionLimit: 1}, discard()),
		Executor:   &countingExecutor{},
		Retrainer:  scoring.NewRetrainer(scoring.SpreadOnly(), nil, scoring.RetrainerConfig{MinTrades: 1}, discard()),
		Ledger:     l,
		Reporter:   sink,
	}
}

func TestShutdownAbandonsInFlightStageWithinGrace(t *testing.T) {
	sig := NewShutdownSignal()
	sink := &capture{}
	agg := &blockingAggregator{started: make(chan struct{})}
	c := fakeComponents(sink)
	c.Aggregator = agg
	l := New(c, Config{Interval: time.Hour, Grace: 50 * time.Millisecond}, sig, discard())

	done := make(chan struct{})
	go func() {
		_ = l.Run(context.Background())
		close(done)
	}()
	<-agg.started
	start := time.Now()
	sig.Trigger()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
	assert.Less(t, time.Since(start), time.Second)
	assert.EqualValues(t, 1, l.Cycles())
	assert.Empty(t, sink.all())
	assert.Equal(t, ShuttingDown, l.State())
}

func TestNoCycleAfterShutdown(t *testing.T) {
	sig := NewShutdownSignal()
	sig.Trigger()
	l := New(fakeComponents(&capture{}), Config{Interval: time.Millisecond, Grace: time.Millisecond}, sig, discard())
	runWithin(t, l, time.Second)
	assert.Zero(t, l.Cycles())
}

func TestShutdownInterruptsSleep(t *testing.T) {
	sig := NewShutdownSignal()
	sink := &capture{}
	l := New(fakeComponents(sink), Config{Interval: time.Hour, Grace: time.Millisecond}, sig, discard())

	done := make(chan struct{})
	go func() {
		_ = l.Run(context.Background())
		close(done)
	}()
	require.Eventually(t, func() bool {
		return l.State() == Sleeping && len(sink.all()) == 1
	}, time.Second, time.Millisecond)

	sig.Trigger()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sleep not interrupted")
	}
	assert.EqualValues(t, 1, l.Cycles())
}

func TestContextCancelStopsLoop(t *testing.T) {
	sig := NewShutdownSignal()
	l := New(fakeComponents(&capture{}), Config{Interval: time.Hour, Grace: time.Millisecond}, sig, discard())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, l.Run(ctx))
}

func TestPanicSkipsToSleeping(t *testing.T) {
	sig := NewShutdownSignal()
	sink := &capture{stopAt: 1, sig: sig}
	c := fakeComponents(sink)
	pr := &panicRanker{}
	c.Ranker = pr
	l := New(c, Config{Interval: time.Millisecond, Grace: time.Millisecond}, sig, discard())
	runWithin(t, l, time.Second)

	assert.Equal(t, 2, pr.calls)
	assert.EqualValues(t, 2, l.Cycles())
	require.Len(t, sink.all(), 1)
	assert.EqualValues(t, 2, sink.all()[0].Cycle)
}

func TestNoCandidatesSkipsGateAndExecutor(t *testing.T) {
	sig := NewShutdownSignal()
	sink := &capture{stopAt: 1, sig: sig}
	c := fakeComponents(sink)
	exec := c.Executor.(*countingExecutor)
	l := New(c, Config{Interval: time.Millisecond, Grace: time.Millisecond}, sig, discard())
	runWithin(t, l, time.Second)

	r := sink.all()[0]
	assert.Zero(t, exec.calls)
	assert.Nil(t, r.Verdict)
	assert.Equal(t, "skipped", r.Execution.Status)
	assert.Equal(t, Ranking.String(), r.State)
}

type fixedPrice float64

func (f fixedPrice) LatestPrice(context.Context) (float64, error) { return float64(f), nil }

func TestReportCarriesOnchainPrice(t *testing.T) {
	sig := NewShutdownSignal()
	sink := &capture{stopAt: 1, sig: sig}
	c := fakeComponents(sink)
	c.Onchain = fixedPrice(3100.5)
	l := New(c, Config{Interval: time.Millisecond, Grace: time.Millisecond}, sig, discard())
	runWithin(t, l, time.Second)

	r := sink.all()[0]
	require.NotNil(t, r.OnchainPrice)
	assert.Equal(t, 3100.5, *r.OnchainPrice)
}

func TestShutdownSignalIsMonotone(t *testing.T) {
	s := NewShutdownSignal()
	assert.False(t, s.IsSet())
	s.Trigger()
	s.Trigger()
	assert.True(t, s.IsSet())
	select {
	case <-s.Done():
	default:
		t.Fatal("done not closed")
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "Aggregating", Aggregating.String())
	assert.Equal(t, "ShuttingDown", ShuttingDown.String())
	assert.Equal(t, "Unknown", State(99).String())
}

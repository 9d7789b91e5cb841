// Package aggregator polls every configured venue concurrently and assembles
// one market snapshot per cycle.
package aggregator

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// Result is the outcome of one collection pass. Failures lists the venues
// omitted from the snapshot, sorted by venue name.
type Result struct {
	Snapshot domain.MarketSnapshot
	Failures []*domain.AdapterError
}

// FailedVenues returns the names of venues that failed.
func (r Result) FailedVenues() []string {
	out := make([]string, len(r.Failures))
	for i, f := range r.Failures {
		out[i] = f.Venue
	}
	return out
}

// Aggregator fetches order books from all venues in parallel. A venue that
// errors or times out is left out of the snapshot; there is no retry within
// a pass.
type Aggregator struct {
	venues     []domain.VenueAdapter
	instrument string
	timeout    time.Duration
	logger     *slog.Logger
}

// New creates an Aggregator. timeout bounds each venue's fetch.
func New(venues []domain.VenueAdapter, instrument string, timeout time.Duration, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		venues:     venues,
		instrument: instrument,
		timeout:    timeout,
		logger:     logger.With(slog.String("component", "aggregator")),
	}
}

// Collect runs one pass. It blocks until every fetch has returned or timed
// out. The returned snapshot may be empty.
func (a *Aggregator) Collect(ctx context.Context) Result {
	var (
		mu       sync.Mutex
		snap     = make(domain.MarketSnapshot, len(a.venues))
		failures []*domain.AdapterError
	)

	// The group's context is not used: one venue failing must not cancel
	// the others.
	var g errgroup.Group
	g.SetLimit(max(len(a.venues), 1))

	for _, v := range a.venues {
		g.Go(func() error {
			quote, err := a.fetch(ctx, v)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, &domain.AdapterError{Venue: v.Name(), Op: "fetch order book", Err: err})
				return nil
			}
			snap[v.Name()] = quote
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(failures, func(i, j int) bool { return failures[i].Venue < failures[j].Venue })
	for _, f := range failures {
		a.logger.WarnContext(ctx, "venue omitted from snapshot",
			slog.String("venue", f.Venue),
			slog.Bool("timeout", errors.Is(f.Err, context.DeadlineExceeded)),
			slog.String("error", f.Err.Error()),
		)
	}
	a.logger.DebugContext(ctx, "snapshot collected",
		slog.Int("venues_quoted", len(snap)),
		slog.Int("venues_failed", len(failures)),
	)

	return Result{Snapshot: snap, Failures: failures}
}

func (a *Aggregator) fetch(ctx context.Context, v domain.VenueAdapter) (domain.VenueQuote, error) {
	if err := ctx.Err(); err != nil {
		return domain.VenueQuote{}, err
	}
	fctx := ctx
	if a.timeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	type fetched struct {
		book domain.OrderBook
		err  error
	}
	// Buffered so an adapter that ignores its context can finish later
	// without blocking.
	ch := make(chan fetched, 1)
	go func() {
		book, err := v.FetchOrderBook(fctx, a.instrument)
		ch <- fetched{book: book, err: err}
	}()

	var book domain.OrderBook
	select {
	case <-fctx.Done():
		return domain.VenueQuote{}, fctx.Err()
	case f := <-ch:
		if f.err != nil {
			return domain.VenueQuote{}, f.err
		}
		book = f.book
	}
	return domain.QuoteFromBook(book)
}

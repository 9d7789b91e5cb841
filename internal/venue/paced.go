// Package venue holds venue adapter implementations and the shared pacing
// wrapper that enforces each venue's advertised request rate.
package venue

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// Paced wraps an adapter so calls never exceed its RateLimit. Waiting
// honours the caller's context, so an aggregator timeout still applies.
type Paced struct {
	inner   domain.VenueAdapter
	limiter *rate.Limiter
}

// Pace wraps v. A zero RateLimit means unlimited.
func Pace(v domain.VenueAdapter) *Paced {
	limit := rate.Inf
	if d := v.RateLimit(); d > 0 {
		limit = rate.Every(d)
	}
	return &Paced{inner: v, limiter: rate.NewLimiter(limit, 1)}
}

func (p *Paced) Name() string                { return p.inner.Name() }
func (p *Paced) HasKYC() bool                { return p.inner.HasKYC() }
func (p *Paced) RateLimit() time.Duration    { return p.inner.RateLimit() }
func (p *Paced) Unwrap() domain.VenueAdapter { return p.inner }

func (p *Paced) FetchOrderBook(ctx context.Context, instrument string) (domain.OrderBook, error) {
	if err := p.wait(ctx); err != nil {
		return domain.OrderBook{}, err
	}
	return p.inner.FetchOrderBook(ctx, instrument)
}

func (p *Paced) FetchPositions(ctx context.Context, instrument string) ([]domain.Position, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	return p.inner.FetchPositions(ctx, instrument)
}

// CanPlace reports whether the wrapped adapter accepts orders.
func (p *Paced) CanPlace() bool {
	_, ok := p.inner.(domain.OrderPlacer)
	return ok
}

func (p *Paced) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderAck, error) {
	placer, ok := p.inner.(domain.OrderPlacer)
	if !ok {
		return domain.OrderAck{}, fmt.Errorf("venue %s: orders not supported: %w", p.inner.Name(), domain.ErrUnknownVenue)
	}
	if err := p.wait(ctx); err != nil {
		return domain.OrderAck{}, err
	}
	return placer.PlaceOrder(ctx, req)
}

func (p *Paced) wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("venue %s: pacing: %w: %w", p.inner.Name(), domain.ErrRateLimited, err)
	}
	return nil
}

var (
	_ domain.VenueAdapter = (*Paced)(nil)
	_ domain.OrderPlacer  = (*Paced)(nil)
)

// Package paper implements an in-memory venue used for dry runs and tests.
// Quotes are configured rather than fetched, and orders fill immediately at
// the requested price.
package paper

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// Config seeds a paper venue.
type Config struct {
	Name    string
	Bid     float64
	Ask     float64
	BidSize float64
	AskSize float64
	KYC     bool
	// Jitter moves both sides by a uniform offset in [-Jitter, Jitter] on
	// every fetch. Zero keeps quotes fixed.
	Jitter    float64
	Latency   time.Duration
	RateLimit time.Duration
}

// Venue is a simulated venue. It is safe for concurrent use.
type Venue struct {
	cfg Config

	mu        sync.RWMutex
	bid, ask  float64
	bidSize   float64
	askSize   float64
	kyc       bool
	contracts float64
	bookErr   error
	posErr    error
	orderErr  error
	orders    []domain.OrderRequest

	fetches atomic.Int64
	now     func() time.Time
}

// New creates a paper venue.
func New(cfg Config) *Venue {
	return &Venue{
		cfg:     cfg,
		bid:     cfg.Bid,
		ask:     cfg.Ask,
		bidSize: cfg.BidSize,
		askSize: cfg.AskSize,
		kyc:     cfg.KYC,
		now:     time.Now,
	}
}

func (v *Venue) Name() string { return v.cfg.Name }

func (v *Venue) RateLimit() time.Duration { return v.cfg.RateLimit }

func (v *Venue) HasKYC() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.kyc
}

// FetchOrderBook returns a one-level book on each side.
func (v *Venue) FetchOrderBook(ctx context.Context, instrument string) (domain.OrderBook, error) {
	v.fetches.Add(1)
	if err := v.wait(ctx); err != nil {
		return domain.OrderBook{}, err
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.bookErr != nil {
		return domain.OrderBook{}, v.bookErr
	}

	offset := 0.0
	if v.cfg.Jitter > 0 {
		offset = (rand.Float64()*2 - 1) * v.cfg.Jitter
	}
	return domain.OrderBook{
		Venue:      v.cfg.Name,
		Instrument: instrument,
		Bids:       []domain.PriceLevel{{Price: v.bid + offset, Size: v.bidSize}},
		Asks:       []domain.PriceLevel{{Price: v.ask + offset, Size: v.askSize}},
		CapturedAt: v.now(),
	}, nil
}

// FetchPositions returns the venue's net position for the instrument.
func (v *Venue) FetchPositions(ctx context.Context, instrument string) ([]domain.Position, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.posErr != nil {
		return nil, v.posErr
	}
	if v.contracts == 0 {
		return nil, nil
	}
	return []domain.Position{{Venue: v.cfg.Name, Instrument: instrument, Contracts: v.contracts}}, nil
}

// PlaceOrder fills immediately and moves the simulated position.
func (v *Venue) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderAck, error) {
	if err := ctx.Err(); err != nil {
		return domain.OrderAck{}, err
	}
	if req.Size <= 0 {
		return domain.OrderAck{}, fmt.Errorf("paper: %w: size %v", domain.ErrInvalidOrder, req.Size)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.orderErr != nil {
		return domain.OrderAck{}, v.orderErr
	}
	v.orders = append(v.orders, req)
	switch req.Side {
	case domain.OrderSideBuy:
		v.contracts += req.Size
	case domain.OrderSideSell:
		v.contracts -= req.Size
	}
	return domain.OrderAck{
		OrderID:    uuid.New().String(),
		FilledSize: req.Size,
		AvgPrice:   req.Price,
	}, nil
}

func (v *Venue) wait(ctx context.Context) error {
	if v.cfg.Latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(v.cfg.Latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SetQuote replaces the top of book.
func (v *Venue) SetQuote(bid, ask, bidSize, askSize float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.bid, v.ask, v.bidSize, v.askSize = bid, ask, bidSize, askSize
}

// SetKYC toggles the venue's KYC capability.
func (v *Venue) SetKYC(ok bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.kyc = ok
}

// SetPosition sets the signed open position.
func (v *Venue) SetPosition(contracts float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.contracts = contracts
}

// FailBook makes order-book fetches return err. Nil clears it.
func (v *Venue) FailBook(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.bookErr = err
}

// FailPositions makes position fetches return err. Nil clears it.
func (v *Venue) FailPositions(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.posErr = err
}

// FailOrders makes order placement return err. Nil clears it.
func (v *Venue) FailOrders(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.orderErr = err
}

// Orders returns a copy of every order placed.
func (v *Venue) Orders() []domain.OrderRequest {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]domain.OrderRequest, len(v.orders))
	copy(out, v.orders)
	return out
}

// Fetches returns how many order-book fetches were attempted.
func (v *Venue) Fetches() int64 {
	return v.fetches.Load()
}

var (
	_ domain.VenueAdapter = (*Venue)(nil)
	_ domain.OrderPlacer  = (*Venue)(nil)
)

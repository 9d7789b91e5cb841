package domain

import (
	"context"
	"time"
)

// Position is an open position on one venue. Contracts is signed: positive
// for long, negative for short.
type Position struct {
	Venue      string  `json:"venue"`
	Instrument string  `json:"instrument"`
	Contracts  float64 `json:"contracts"`
}

// VenueAdapter is the per-venue capability used by the aggregator and the
// compliance gate. Implementations must be safe for concurrent use.
type VenueAdapter interface {
	Name() string
	FetchOrderBook(ctx context.Context, instrument string) (OrderBook, error)
	FetchPositions(ctx context.Context, instrument string) ([]Position, error)
	HasKYC() bool
	// RateLimit is the minimum delay between calls the venue advertises.
	RateLimit() time.Duration
}

// OrderSide is the direction of an order leg.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderRequest is one execution leg.
type OrderRequest struct {
	ClientID   string
	Instrument string
	Side       OrderSide
	Price      float64
	Size       float64
}

// OrderAck is the venue's acceptance of a leg.
type OrderAck struct {
	OrderID    string
	FilledSize float64
	AvgPrice   float64
}

// OrderPlacer sends execution legs to a venue.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderAck, error)
}

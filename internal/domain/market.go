package domain

import (
	"sort"
	"time"
)

// PriceLevel is a single price+size entry in an order book.
type PriceLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// OrderBook is a venue's book for one instrument as the venue reported it.
type OrderBook struct {
	Venue      string       `json:"venue"`
	Instrument string       `json:"instrument"`
	Bids       []PriceLevel `json:"bids"`
	Asks       []PriceLevel `json:"asks"`
	CapturedAt time.Time    `json:"captured_at"`
}

// BestBid returns the highest bid level. ok is false when there are no bids.
func (b OrderBook) BestBid() (PriceLevel, bool) {
	if len(b.Bids) == 0 {
		return PriceLevel{}, false
	}
	best := b.Bids[0]
	for _, l := range b.Bids[1:] {
		if l.Price > best.Price {
			best = l
		}
	}
	return best, true
}

// BestAsk returns the lowest ask level. ok is false when there are no asks.
func (b OrderBook) BestAsk() (PriceLevel, bool) {
	if len(b.Asks) == 0 {
		return PriceLevel{}, false
	}
	best := b.Asks[0]
	for _, l := range b.Asks[1:] {
		if l.Price < best.Price {
			best = l
		}
	}
	return best, true
}

// VenueQuote is the top of book for one venue in one cycle.
type VenueQuote struct {
	Bid        float64   `json:"bid"`
	Ask        float64   `json:"ask"`
	BidSize    float64   `json:"bid_size"`
	AskSize    float64   `json:"ask_size"`
	CapturedAt time.Time `json:"captured_at"`
}

// QuoteFromBook reduces a book to its top of book. Inverted books are kept
// as reported.
func QuoteFromBook(b OrderBook) (VenueQuote, error) {
	bid, ok := b.BestBid()
	if !ok {
		return VenueQuote{}, ErrEmptyBook
	}
	ask, ok := b.BestAsk()
	if !ok {
		return VenueQuote{}, ErrEmptyBook
	}
	return VenueQuote{
		Bid:        bid.Price,
		Ask:        ask.Price,
		BidSize:    bid.Size,
		AskSize:    ask.Size,
		CapturedAt: b.CapturedAt,
	}, nil
}

// MarketSnapshot maps venue name to quote. A venue missing from the map
// failed its fetch this cycle. Snapshots are never mutated once published.
type MarketSnapshot map[string]VenueQuote

// Venues returns the venue names in lexicographic order.
func (s MarketSnapshot) Venues() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy.
func (s MarketSnapshot) Clone() MarketSnapshot {
	out := make(MarketSnapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

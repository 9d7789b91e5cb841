package kalshi

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// Config describes one Kalshi venue.
type Config struct {
	Name      string
	KYC       bool
	RateLimit time.Duration
	// Ticker is the Kalshi market traded as the configured instrument.
	Ticker string
}

// Venue exposes a Kalshi market as YES bid/ask in dollars.
type Venue struct {
	client *Client
	cfg    Config
}

func NewVenue(client *Client, cfg Config) *Venue {
	if cfg.Name == "" {
		cfg.Name = "kalshi"
	}
	return &Venue{client: client, cfg: cfg}
}

func (v *Venue) Name() string             { return v.cfg.Name }
func (v *Venue) HasKYC() bool             { return v.cfg.KYC }
func (v *Venue) RateLimit() time.Duration { return v.cfg.RateLimit }

// FetchOrderBook derives the YES book: YES bids as-is, and YES asks at
// 100 minus each NO bid. The instrument argument is ignored in favour of the
// configured ticker when one is set.
func (v *Venue) FetchOrderBook(ctx context.Context, instrument string) (domain.OrderBook, error) {
	ticker := v.ticker(instrument)
	ob, err := v.client.GetOrderbook(ctx, ticker)
	if err != nil {
		return domain.OrderBook{}, err
	}

	book := domain.OrderBook{
		Venue:      v.cfg.Name,
		Instrument: instrument,
		CapturedAt: v.client.now(),
	}
	for _, l := range ob.Yes {
		book.Bids = append(book.Bids, domain.PriceLevel{Price: cents(l.Price), Size: float64(l.Quantity)})
	}
	for _, l := range ob.No {
		book.Asks = append(book.Asks, domain.PriceLevel{Price: cents(100 - l.Price), Size: float64(l.Quantity)})
	}
	return book, nil
}

// FetchPositions returns the signed YES position in the market.
func (v *Venue) FetchPositions(ctx context.Context, instrument string) ([]domain.Position, error) {
	ticker := v.ticker(instrument)
	ps, err := v.client.GetPositions(ctx, ticker)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Position, 0, len(ps))
	for _, p := range ps {
		if p.Ticker != ticker || p.Position == 0 {
			continue
		}
		out = append(out, domain.Position{Venue: v.cfg.Name, Instrument: instrument, Contracts: float64(p.Position)})
	}
	return out, nil
}

// PlaceOrder sends a YES limit order at the requested price. Sizes are
// rounded down to whole contracts.
func (v *Venue) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderAck, error) {
	count := int64(math.Floor(req.Size))
	if count < 1 {
		return domain.OrderAck{}, fmt.Errorf("kalshi: %w: size %v is below one contract", domain.ErrInvalidOrder, req.Size)
	}
	price := int64(math.Round(req.Price * 100))
	if price < 1 || price > 99 {
		return domain.OrderAck{}, fmt.Errorf("kalshi: %w: price %v outside 0.01-0.99", domain.ErrInvalidOrder, req.Price)
	}

	resp, err := v.client.PlaceOrder(ctx, Order{
		Ticker:        v.ticker(req.Instrument),
		ClientOrderID: req.ClientID,
		Action:        string(req.Side),
		Side:          "yes",
		Type:          "limit",
		Count:         count,
		YesPrice:      &price,
	})
	if err != nil {
		return domain.OrderAck{}, err
	}

	ack := domain.OrderAck{OrderID: resp.Order.OrderID, FilledSize: float64(resp.Order.TakerFillCount)}
	if resp.Order.TakerFillCount > 0 {
		ack.AvgPrice = cents(resp.Order.TakerFillCost) / float64(resp.Order.TakerFillCount)
	}
	return ack, nil
}

func (v *Venue) ticker(instrument string) string {
	if v.cfg.Ticker != "" {
		return v.cfg.Ticker
	}
	return instrument
}

func cents(c int64) float64 { return float64(c) / 100 }

var (
	_ domain.VenueAdapter = (*Venue)(nil)
	_ domain.OrderPlacer  = (*Venue)(nil)
)

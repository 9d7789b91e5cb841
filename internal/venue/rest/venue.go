package rest

import (
	"context"
	"time"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// Config describes one REST venue.
type Config struct {
	Name      string
	KYC       bool
	RateLimit time.Duration
	// Market overrides the instrument symbol sent to the venue.
	Market string
}

// Venue adapts a Client to the venue interfaces.
type Venue struct {
	client *Client
	cfg    Config
	now    func() time.Time
}

func NewVenue(client *Client, cfg Config) *Venue {
	return &Venue{client: client, cfg: cfg, now: time.Now}
}

func (v *Venue) Name() string             { return v.cfg.Name }
func (v *Venue) HasKYC() bool             { return v.cfg.KYC }
func (v *Venue) RateLimit() time.Duration { return v.cfg.RateLimit }

func (v *Venue) FetchOrderBook(ctx context.Context, instrument string) (domain.OrderBook, error) {
	b, err := v.client.GetBook(ctx, v.market(instrument))
	if err != nil {
		return domain.OrderBook{}, err
	}

	book := domain.OrderBook{
		Venue:      v.cfg.Name,
		Instrument: instrument,
		Bids:       levels(b.Bids),
		Asks:       levels(b.Asks),
		CapturedAt: v.now(),
	}
	if b.Timestamp > 0 {
		book.CapturedAt = time.UnixMilli(b.Timestamp)
	}
	return book, nil
}

func (v *Venue) FetchPositions(ctx context.Context, instrument string) ([]domain.Position, error) {
	market := v.market(instrument)
	entries, err := v.client.GetPositions(ctx, market)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Position, 0, len(entries))
	for _, e := range entries {
		if e.Instrument != market {
			continue
		}
		out = append(out, domain.Position{Venue: v.cfg.Name, Instrument: instrument, Contracts: e.Contracts})
	}
	return out, nil
}

func (v *Venue) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderAck, error) {
	res, err := v.client.PostOrder(ctx, OrderBody{
		ClientOrderID: req.ClientID,
		Instrument:    v.market(req.Instrument),
		Side:          string(req.Side),
		Price:         req.Price,
		Size:          req.Size,
	})
	if err != nil {
		return domain.OrderAck{}, err
	}
	return domain.OrderAck{OrderID: res.OrderID, FilledSize: res.FilledSize, AvgPrice: res.AvgPrice}, nil
}

func (v *Venue) market(instrument string) string {
	if v.cfg.Market != "" {
		return v.cfg.Market
	}
	return instrument
}

func levels(in []Level) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(in))
	for _, l := range in {
		out = append(out, domain.PriceLevel{Price: l.Price, Size: l.Size})
	}
	return out
}

var (
	_ domain.VenueAdapter = (*Venue)(nil)
	_ domain.OrderPlacer  = (*Venue)(nil)
)

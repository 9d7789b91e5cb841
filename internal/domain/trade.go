package domain

import "time"

// TradeRecord is one executed arbitrage. Immutable once appended to the
// ledger.
type TradeRecord struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Instrument string    `json:"instrument"`
	LongVenue  string    `json:"long_venue"`
	ShortVenue string    `json:"short_venue"`
	Amount     float64   `json:"amount"`
	PriceDiff  float64   `json:"price_diff"`
	PnL        float64   `json:"pnl"`
	// Features is the ranker's feature vector at decision time. Empty when
	// ranking ran degraded.
	Features []float64 `json:"features,omitempty"`
}

// LedgerSnapshot is an immutable copy of the ledger.
type LedgerSnapshot struct {
	CumulativePnL float64       `json:"cumulative_pnl"`
	History       []TradeRecord `json:"history"`
}

// TradeCount returns the number of recorded trades.
func (s LedgerSnapshot) TradeCount() int {
	return len(s.History)
}

// VolumeSince sums trade amounts timestamped at or after t.
func (s LedgerSnapshot) VolumeSince(t time.Time) float64 {
	var total float64
	for _, r := range s.History {
		if !r.Timestamp.Before(t) {
			total += r.Amount
		}
	}
	return total
}

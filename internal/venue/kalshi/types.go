package kalshi

import (
	"encoding/json"
	"fmt"
)

// Orderbook is the Kalshi book for one market. Both sides are bids: YES
// bids and NO bids, priced in cents.
type Orderbook struct {
	Yes []PriceLevel `json:"yes"`
	No  []PriceLevel `json:"no"`
}

// PriceLevel is a price in cents (1-99) and a contract count. The API
// encodes it as a [price, quantity] pair; the object form is also accepted.
type PriceLevel struct {
	Price    int64 `json:"price"`
	Quantity int64 `json:"quantity"`
}

func (p *PriceLevel) UnmarshalJSON(data []byte) error {
	var pair []int64
	if err := json.Unmarshal(data, &pair); err == nil {
		if len(pair) != 2 {
			return fmt.Errorf("kalshi: price level has %d elements", len(pair))
		}
		p.Price, p.Quantity = pair[0], pair[1]
		return nil
	}
	type plain PriceLevel
	var obj plain
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("kalshi: decode price level: %w", err)
	}
	*p = PriceLevel(obj)
	return nil
}

// MarketPosition is the signed YES position in one market: positive is
// long YES, negative is long NO.
type MarketPosition struct {
	Ticker   string `json:"ticker"`
	Position int64  `json:"position"`
}

// Order is a new-order request.
type Order struct {
	Ticker        string `json:"ticker"`
	ClientOrderID string `json:"client_order_id,omitempty"`
	Action        string `json:"action"` // "buy" or "sell"
	Side          string `json:"side"`   // "yes" or "no"
	Type          string `json:"type"`   // "market" or "limit"
	Count         int64  `json:"count"`
	YesPrice      *int64 `json:"yes_price,omitempty"`
	NoPrice       *int64 `json:"no_price,omitempty"`
}

// OrderResponse is the API response after placing an order.
type OrderResponse struct {
	Order struct {
		OrderID        string `json:"order_id"`
		Ticker         string `json:"ticker"`
		Status         string `json:"status"` // "resting", "canceled", "executed", "pending"
		YesPrice       int64  `json:"yes_price"`
		RemainingCount int64  `json:"remaining_count"`
		TakerFillCount int64  `json:"taker_fill_count"`
		TakerFillCost  int64  `json:"taker_fill_cost"`
	} `json:"order"`
}

// ErrorResponse is a Kalshi API error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Package rest is a venue adapter for exchanges exposing a plain JSON REST
// API with HMAC-signed requests:
//
//	GET  {base}/orderbook?instrument=X
//	GET  {base}/positions?instrument=X
//	POST {base}/orders
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alanyoungcy/crossarb/internal/crypto"
	"github.com/alanyoungcy/crossarb/internal/domain"
)

// Client talks to one REST venue. A nil signer sends unsigned requests,
// which is enough for venues with public books.
type Client struct {
	baseURL    string
	signer     *crypto.HMACSigner
	httpClient *http.Client
}

func NewClient(baseURL string, signer *crypto.HMACSigner) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		signer:  signer,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Level is one [price, size] entry on the wire.
type Level struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// Book is the wire form of an order book.
type Book struct {
	Bids      []Level `json:"bids"`
	Asks      []Level `json:"asks"`
	Timestamp int64   `json:"timestamp,omitempty"` // unix millis
}

// PositionEntry is the wire form of one position.
type PositionEntry struct {
	Instrument string  `json:"instrument"`
	Contracts  float64 `json:"contracts"`
}

// OrderBody is the POST /orders payload.
type OrderBody struct {
	ClientOrderID string  `json:"client_order_id"`
	Instrument    string  `json:"instrument"`
	Side          string  `json:"side"`
	Price         float64 `json:"price"`
	Size          float64 `json:"size"`
}

// OrderResult is the POST /orders response.
type OrderResult struct {
	OrderID    string  `json:"order_id"`
	Status     string  `json:"status"`
	FilledSize float64 `json:"filled_size"`
	AvgPrice   float64 `json:"avg_price"`
}

func (c *Client) GetBook(ctx context.Context, instrument string) (Book, error) {
	body, err := c.do(ctx, http.MethodGet, "/orderbook?"+query(instrument), nil)
	if err != nil {
		return Book{}, fmt.Errorf("rest: get orderbook %s: %w", instrument, err)
	}
	var b Book
	if err := json.Unmarshal(body, &b); err != nil {
		return Book{}, fmt.Errorf("rest: decode orderbook: %w", err)
	}
	return b, nil
}

func (c *Client) GetPositions(ctx context.Context, instrument string) ([]PositionEntry, error) {
	body, err := c.do(ctx, http.MethodGet, "/positions?"+query(instrument), nil)
	if err != nil {
		return nil, fmt.Errorf("rest: get positions: %w", err)
	}
	var resp struct {
		Positions []PositionEntry `json:"positions"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("rest: decode positions: %w", err)
	}
	return resp.Positions, nil
}

func (c *Client) PostOrder(ctx context.Context, order OrderBody) (OrderResult, error) {
	body, err := c.do(ctx, http.MethodPost, "/orders", order)
	if err != nil {
		return OrderResult{}, fmt.Errorf("rest: post order: %w", err)
	}
	var res OrderResult
	if err := json.Unmarshal(body, &res); err != nil {
		return OrderResult{}, fmt.Errorf("rest: decode order result: %w", err)
	}
	if res.Status == "rejected" {
		return res, fmt.Errorf("rest: order %s: %w", res.OrderID, domain.ErrInvalidOrder)
	}
	return res, nil
}

// do builds, signs, sends, and reads one request. The signed path includes
// the query string.
func (c *Client) do(ctx context.Context, method, path string, reqBody any) ([]byte, error) {
	var payload []byte
	if reqBody != nil {
		var err error
		if payload, err = json.Marshal(reqBody); err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.signer != nil {
		c.signer.Sign(req, req.URL.RequestURI(), payload)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if err := checkHTTPStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}
	return respBody, nil
}

// checkHTTPStatus maps non-2xx status codes to domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := strings.TrimSpace(string(body))
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", domain.ErrInvalidOrder, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}

func query(instrument string) string {
	return url.Values{"instrument": {instrument}}.Encode()
}

package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/crossarb/internal/crypto"
	"github.com/alanyoungcy/crossarb/internal/domain"
)

func signedServer(t *testing.T, signer *crypto.HMACSigner, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		ok := signer.Verify(r.Method, r.URL.RequestURI(), string(body),
			r.Header.Get(crypto.HeaderTimestamp), r.Header.Get(crypto.HeaderSignature))
		if !ok || r.Header.Get(crypto.HeaderAPIKey) != signer.Key {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"bad signature"}`))
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchOrderBook(t *testing.T) {
	signer := crypto.NewHMACSigner("key", "secret")
	srv := signedServer(t, signer, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orderbook", r.URL.Path)
		assert.Equal(t, "BTCUSD", r.URL.Query().Get("instrument"))
		_, _ = w.Write([]byte(`{"bids":[{"price":99,"size":2},{"price":100,"size":1}],"asks":[{"price":101,"size":3}],"timestamp":1700000000000}`))
	})

	v := NewVenue(NewClient(srv.URL+"/", signer), Config{Name: "B", Market: "BTCUSD"})
	book, err := v.FetchOrderBook(context.Background(), "BTC-USD")
	require.NoError(t, err)

	assert.Equal(t, "B", book.Venue)
	assert.Equal(t, "BTC-USD", book.Instrument)
	bid, ok := book.BestBid()
	require.True(t, ok)
	assert.Equal(t, 100.0, bid.Price)
	ask, ok := book.BestAsk()
	require.True(t, ok)
	assert.Equal(t, 101.0, ask.Price)
	assert.Equal(t, int64(1700000000000), book.CapturedAt.UnixMilli())
}

func TestFetchPositionsFiltersInstrument(t *testing.T) {
	signer := crypto.NewHMACSigner("key", "secret")
	srv := signedServer(t, signer, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/positions", r.URL.Path)
		_, _ = w.Write([]byte(`{"positions":[{"instrument":"BTC-USD","contracts":-4},{"instrument":"ETH-USD","contracts":9}]}`))
	})

	v := NewVenue(NewClient(srv.URL, signer), Config{Name: "B"})
	ps, err := v.FetchPositions(context.Background(), "BTC-USD")
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, domain.Position{Venue: "B", Instrument: "BTC-USD", Contracts: -4}, ps[0])
}

func TestPlaceOrder(t *testing.T) {
	signer := crypto.NewHMACSigner("key", "secret")
	srv := signedServer(t, signer, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var o OrderBody
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&o))
		assert.Equal(t, "cid-1", o.ClientOrderID)
		assert.Equal(t, "buy", o.Side)
		assert.Equal(t, 101.0, o.Price)
		_, _ = w.Write([]byte(`{"order_id":"o-9","status":"filled","filled_size":1,"avg_price":100.5}`))
	})

	v := NewVenue(NewClient(srv.URL, signer), Config{Name: "B"})
	ack, err := v.PlaceOrder(context.Background(), domain.OrderRequest{
		ClientID: "cid-1", Instrument: "BTC-USD", Side: domain.OrderSideBuy, Price: 101, Size: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderAck{OrderID: "o-9", FilledSize: 1, AvgPrice: 100.5}, ack)
}

func TestPlaceOrderRejected(t *testing.T) {
	signer := crypto.NewHMACSigner("key", "secret")
	srv := signedServer(t, signer, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"order_id":"o-1","status":"rejected"}`))
	})

	v := NewVenue(NewClient(srv.URL, signer), Config{Name: "B"})
	_, err := v.PlaceOrder(context.Background(), domain.OrderRequest{Instrument: "BTC-USD", Side: domain.OrderSideSell, Price: 1, Size: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, domain.ErrNotFound},
		{http.StatusUnauthorized, domain.ErrUnauthorized},
		{http.StatusTooManyRequests, domain.ErrRateLimited},
		{http.StatusBadRequest, domain.ErrInvalidOrder},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))
		v := NewVenue(NewClient(srv.URL, nil), Config{Name: "B"})
		_, err := v.FetchOrderBook(context.Background(), "X")
		srv.Close()
		assert.True(t, errors.Is(err, tt.want), "status %d: %v", tt.status, err)
	}
}

func TestWrongSecretIsUnauthorized(t *testing.T) {
	srv := signedServer(t, crypto.NewHMACSigner("key", "secret"), func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run")
	})
	v := NewVenue(NewClient(srv.URL, crypto.NewHMACSigner("key", "wrong")), Config{Name: "B"})
	_, err := v.FetchOrderBook(context.Background(), "X")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

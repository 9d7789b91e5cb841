package venue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/crossarb/internal/domain"
	"github.com/alanyoungcy/crossarb/internal/venue/paper"
)

type readOnly struct{ domain.VenueAdapter }

func TestPacedSpacesCalls(t *testing.T) {
	v := paper.New(paper.Config{Name: "A", Bid: 99, Ask: 100, BidSize: 1, AskSize: 1, RateLimit: 40 * time.Millisecond})
	p := Pace(v)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := p.FetchOrderBook(context.Background(), "X")
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 70*time.Millisecond)
	assert.EqualValues(t, 3, v.Fetches())
}

func TestPacedHonoursContext(t *testing.T) {
	v := paper.New(paper.Config{Name: "A", Bid: 99, Ask: 100, RateLimit: time.Hour})
	p := Pace(v)
	_, err := p.FetchOrderBook(context.Background(), "X")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = p.FetchPositions(ctx, "X")
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestPacedUnlimited(t *testing.T) {
	p := Pace(paper.New(paper.Config{Name: "A", KYC: true}))
	assert.Equal(t, "A", p.Name())
	assert.True(t, p.HasKYC())
	assert.True(t, p.CanPlace())

	start := time.Now()
	for i := 0; i < 20; i++ {
		_, err := p.FetchPositions(context.Background(), "X")
		require.NoError(t, err)
	}
	assert.Less(t, time.Since(start), time.Second)
}

func TestPacedPlaceOrderRequiresPlacer(t *testing.T) {
	p := Pace(readOnly{paper.New(paper.Config{Name: "R"})})
	assert.False(t, p.CanPlace())
	_, err := p.PlaceOrder(context.Background(), domain.OrderRequest{Size: 1})
	assert.ErrorIs(t, err, domain.ErrUnknownVenue)
}

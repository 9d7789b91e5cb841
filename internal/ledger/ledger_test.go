package ledger

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

func trade(pnl, amount float64, at time.Time) domain.TradeRecord {
	return domain.TradeRecord{
		Timestamp:  at,
		LongVenue:  "a",
		ShortVenue: "b",
		Amount:     amount,
		PriceDiff:  pnl / amount,
		PnL:        pnl,
	}
}

func sumPnL(h []domain.TradeRecord) float64 {
	var s float64
	for _, r := range h {
		s += r.PnL
	}
	return s
}

func TestAppendKeepsTotalInStep(t *testing.T) {
	l := New()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	pnls := []float64{10, -2.5, 0.25, 7}
	for i, p := range pnls {
		l.Append(trade(p, 5, now.Add(time.Duration(i)*time.Second)))
		snap := l.Snapshot()
		assert.InDelta(t, sumPnL(snap.History), snap.CumulativePnL, 1e-9)
		assert.Equal(t, i+1, snap.TradeCount())
	}
	assert.InDelta(t, 14.75, l.CumulativePnL(), 1e-9)
	assert.Equal(t, 4, l.Len())
}

func TestSnapshotIsACopy(t *testing.T) {
	l := New()
	rec := trade(10, 5, time.Now())
	rec.Features = []float64{1, 2}
	l.Append(rec)

	snap := l.Snapshot()
	snap.History[0].PnL = 999
	snap.History[0].Features[0] = 42
	snap.History = append(snap.History, trade(1, 1, time.Now()))

	again := l.Snapshot()
	require.Len(t, again.History, 1)
	assert.Equal(t, 10.0, again.History[0].PnL)
	assert.Equal(t, []float64{1, 2}, again.History[0].Features)
}

func TestOldSnapshotUnaffectedByLaterAppends(t *testing.T) {
	l := New()
	l.Append(trade(1, 1, time.Now()))
	before := l.Snapshot()

	l.Append(trade(2, 1, time.Now()))
	l.Append(trade(3, 1, time.Now()))

	assert.Len(t, before.History, 1)
	assert.Equal(t, 1.0, before.CumulativePnL)
}

func TestConcurrentReadersNeverSeeTornState(t *testing.T) {
	l := New()
	const writes = 500

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := l.Snapshot()
				if math.Abs(sumPnL(snap.History)-snap.CumulativePnL) > 1e-6 {
					t.Errorf("torn read: sum=%v total=%v", sumPnL(snap.History), snap.CumulativePnL)
					return
				}
			}
		}()
	}

	for i := 0; i < writes; i++ {
		l.Append(trade(float64(i%7)-3, 1, time.Now()))
	}
	close(stop)
	wg.Wait()

	assert.Equal(t, writes, l.Len())
}

func TestVolumeSince(t *testing.T) {
	l := New()
	midnight := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	l.Append(trade(1, 3, midnight.Add(-time.Minute)))
	l.Append(trade(1, 4, midnight))
	l.Append(trade(1, 5, midnight.Add(time.Hour)))

	assert.Equal(t, 9.0, l.VolumeSince(midnight))
	assert.Equal(t, 9.0, l.Snapshot().VolumeSince(midnight))
}

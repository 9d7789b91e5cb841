// Package ledger holds the process-wide trade history and running PnL.
//
// The control loop is the only writer. Readers receive immutable snapshots
// published through an atomic pointer, so reporting and retraining never
// contend with the writer and never observe the PnL total without its
// matching record.
package ledger

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

type state struct {
	cumulativePnL float64
	history       []domain.TradeRecord
}

// Ledger is an append-only trade history plus running PnL. It performs no I/O.
type Ledger struct {
	mu  sync.Mutex // serialises writers
	cur atomic.Pointer[state]
}

// New returns an empty ledger.
func New() *Ledger {
	l := &Ledger{}
	l.cur.Store(&state{})
	return l
}

// Append records an executed trade. The PnL total and the history entry are
// published together in one pointer swap.
func (l *Ledger) Append(rec domain.TradeRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	old := l.cur.Load()
	rec.Features = cloneFloats(rec.Features)
	next := &state{
		cumulativePnL: old.cumulativePnL + rec.PnL,
		// Readers only index their own prefix; the slot past it is written
		// exactly once, under mu.
		history: append(old.history, rec),
	}
	l.cur.Store(next)
}

// Snapshot returns a copy of the ledger that the caller owns.
func (l *Ledger) Snapshot() domain.LedgerSnapshot {
	s := l.cur.Load()
	hist := make([]domain.TradeRecord, len(s.history))
	copy(hist, s.history)
	for i := range hist {
		hist[i].Features = cloneFloats(hist[i].Features)
	}
	return domain.LedgerSnapshot{
		CumulativePnL: s.cumulativePnL,
		History:       hist,
	}
}

// CumulativePnL returns the running total.
func (l *Ledger) CumulativePnL() float64 {
	return l.cur.Load().cumulativePnL
}

// Len returns the number of recorded trades.
func (l *Ledger) Len() int {
	return len(l.cur.Load().history)
}

// VolumeSince sums executed amounts timestamped at or after t.
func (l *Ledger) VolumeSince(t time.Time) float64 {
	var total float64
	for _, r := range l.cur.Load().history {
		if !r.Timestamp.Before(t) {
			total += r.Amount
		}
	}
	return total
}

func cloneFloats(in []float64) []float64 {
	if in == nil {
		return nil
	}
	out := make([]float64, len(in))
	copy(out, in)
	return out
}

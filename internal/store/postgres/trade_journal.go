package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// TradeJournal implements domain.TradeJournal.
type TradeJournal struct {
	pool *pgxpool.Pool
}

func NewTradeJournal(pool *pgxpool.Pool) *TradeJournal {
	return &TradeJournal{pool: pool}
}

// RecordTrade inserts rec. Re-recording the same ID is a no-op.
func (j *TradeJournal) RecordTrade(ctx context.Context, rec domain.TradeRecord) error {
	features := rec.Features
	if features == nil {
		features = []float64{}
	}

	const query = `
		INSERT INTO trade_journal (
			id, executed_at, instrument, long_venue, short_venue,
			amount, price_diff, pnl, features
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`

	if _, err := j.pool.Exec(ctx, query,
		rec.ID, rec.Timestamp, rec.Instrument, rec.LongVenue, rec.ShortVenue,
		rec.Amount, rec.PriceDiff, rec.PnL, features,
	); err != nil {
		return fmt.Errorf("postgres: record trade %s: %w", rec.ID, err)
	}
	return nil
}

// Recent returns the newest limit trades for instrument, newest first.
func (j *TradeJournal) Recent(ctx context.Context, instrument string, limit int) ([]domain.TradeRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	const query = `
		SELECT id, executed_at, instrument, long_venue, short_venue,
		       amount, price_diff, pnl, features
		FROM trade_journal
		WHERE instrument = $1
		ORDER BY executed_at DESC
		LIMIT $2`

	rows, err := j.pool.Query(ctx, query, instrument, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: recent trades: %w", err)
	}
	defer rows.Close()

	var out []domain.TradeRecord
	for rows.Next() {
		var r domain.TradeRecord
		if err := rows.Scan(
			&r.ID, &r.Timestamp, &r.Instrument, &r.LongVenue, &r.ShortVenue,
			&r.Amount, &r.PriceDiff, &r.PnL, &r.Features,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan trade: %w", err)
		}
		if len(r.Features) == 0 {
			r.Features = nil
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: recent trades rows: %w", err)
	}
	return out, nil
}

var _ domain.TradeJournal = (*TradeJournal)(nil)

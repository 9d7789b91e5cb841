// Package compliance implements the fail-closed pre-trade gate.
package compliance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// VolumeSource reports executed volume since a point in time.
type VolumeSource interface {
	VolumeSince(t time.Time) float64
}

// Config holds the gate's limits.
type Config struct {
	Instrument    string
	PositionLimit float64
	Policy        PositionPolicy
	// DailyVolumeCap bounds executed amount per UTC day. Zero disables it.
	DailyVolumeCap float64
}

// Gate validates candidates in a fixed order: KYC, position limit, daily
// volume. Any query error rejects.
type Gate struct {
	venues map[string]domain.VenueAdapter
	order  []string
	volume VolumeSource
	cfg    Config
	now    func() time.Time
	logger *slog.Logger
}

// NewGate creates a Gate over the configured venues. Position exposure is
// aggregated across every venue in the slice.
func NewGate(venues []domain.VenueAdapter, volume VolumeSource, cfg Config, logger *slog.Logger) *Gate {
	byName := make(map[string]domain.VenueAdapter, len(venues))
	order := make([]string, 0, len(venues))
	for _, v := range venues {
		byName[v.Name()] = v
		order = append(order, v.Name())
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyGross
	}
	return &Gate{
		venues: byName,
		order:  order,
		volume: volume,
		cfg:    cfg,
		now:    time.Now,
		logger: logger.With(slog.String("component", "compliance")),
	}
}

// WithClock overrides the clock used for the volume window.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// Check returns the verdict for one candidate. It only performs read-only
// venue queries.
func (g *Gate) Check(ctx context.Context, c domain.OpportunityCandidate) domain.ComplianceVerdict {
	log := g.logger.With(
		slog.String("long_venue", c.LongVenue),
		slog.String("short_venue", c.ShortVenue),
	)

	// (a) KYC / AML capability on every involved venue.
	for _, name := range []string{c.LongVenue, c.ShortVenue} {
		v, ok := g.venues[name]
		if !ok || !v.HasKYC() {
			log.WarnContext(ctx, "compliance: rejected",
				slog.String("reason", domain.ReasonKYCFailed),
				slog.String("venue", name),
			)
			return domain.Reject(domain.ReasonKYCFailed, "venue "+name+" lacks kyc")
		}
	}

	// (b) Aggregate open position across venues.
	exposure, err := g.exposure(ctx)
	if err != nil {
		log.WarnContext(ctx, "compliance: rejected",
			slog.String("reason", domain.ReasonComplianceError),
			slog.String("error", err.Error()),
		)
		return domain.Reject(domain.ReasonComplianceError, err.Error())
	}
	if exposure > g.cfg.PositionLimit {
		log.WarnContext(ctx, "compliance: rejected",
			slog.String("reason", domain.ReasonPositionLimit),
			slog.Float64("exposure", exposure),
			slog.Float64("limit", g.cfg.PositionLimit),
			slog.String("policy", string(g.cfg.Policy)),
		)
		return domain.Reject(domain.ReasonPositionLimit,
			fmt.Sprintf("exposure %.4f exceeds limit %.4f", exposure, g.cfg.PositionLimit))
	}

	// (c) Daily volume cap.
	if g.cfg.DailyVolumeCap > 0 {
		if g.volume == nil {
			log.WarnContext(ctx, "compliance: rejected",
				slog.String("reason", domain.ReasonComplianceError),
				slog.String("error", "no volume source"),
			)
			return domain.Reject(domain.ReasonComplianceError, "no volume source")
		}
		executed := g.volume.VolumeSince(startOfUTCDay(g.now()))
		if executed+c.Liquidity > g.cfg.DailyVolumeCap {
			log.WarnContext(ctx, "compliance: rejected",
				slog.String("reason", domain.ReasonVolumeCap),
				slog.Float64("executed", executed),
				slog.Float64("requested", c.Liquidity),
				slog.Float64("cap", g.cfg.DailyVolumeCap),
			)
			return domain.Reject(domain.ReasonVolumeCap,
				fmt.Sprintf("executed %.4f + %.4f exceeds cap %.4f", executed, c.Liquidity, g.cfg.DailyVolumeCap))
		}
	}

	log.DebugContext(ctx, "compliance: approved", slog.Float64("exposure", exposure))
	return domain.Approve()
}

func (g *Gate) exposure(ctx context.Context) (float64, error) {
	var all []domain.Position
	for _, name := range g.order {
		if err := ctx.Err(); err != nil {
			return 0, fmt.Errorf("compliance: positions: %w", err)
		}
		positions, err := g.venues[name].FetchPositions(ctx, g.cfg.Instrument)
		if err != nil {
			return 0, &domain.AdapterError{Venue: name, Op: "fetch positions", Err: err}
		}
		all = append(all, positions...)
	}
	return g.cfg.Policy.Aggregate(all), nil
}

func startOfUTCDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

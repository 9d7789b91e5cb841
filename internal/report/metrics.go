package report

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// MetricsSink exports cycle reports as Prometheus metrics.
type MetricsSink struct {
	cycles       *prometheus.CounterVec
	executions   *prometheus.CounterVec
	rejections   *prometheus.CounterVec
	venueErrors  *prometheus.CounterVec
	pnl          prometheus.Gauge
	trades       prometheus.Gauge
	sharpe       prometheus.Gauge
	quoted       prometheus.Gauge
	candidates   prometheus.Gauge
	onchain      prometheus.Gauge
	topSpread    prometheus.Gauge
	cycleSeconds prometheus.Histogram
}

// NewMetricsSink registers the loop's metrics on reg.
func NewMetricsSink(reg prometheus.Registerer) *MetricsSink {
	f := promauto.With(reg)
	return &MetricsSink{
		cycles: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crossarb_cycles_total",
			Help: "Completed control-loop cycles by terminal state",
		}, []string{"state", "degraded"}),
		executions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crossarb_executions_total",
			Help: "Execution outcomes by status",
		}, []string{"status"}),
		rejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crossarb_compliance_rejections_total",
			Help: "Compliance rejections by reason",
		}, []string{"reason"}),
		venueErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crossarb_venue_fetch_failures_total",
			Help: "Order-book fetches omitted from the snapshot, by venue",
		}, []string{"venue"}),
		pnl: f.NewGauge(prometheus.GaugeOpts{
			Name: "crossarb_cumulative_pnl",
			Help: "Cumulative realised PnL of the session ledger",
		}),
		trades: f.NewGauge(prometheus.GaugeOpts{
			Name: "crossarb_trades",
			Help: "Trades recorded in the session ledger",
		}),
		sharpe: f.NewGauge(prometheus.GaugeOpts{
			Name: "crossarb_sharpe_ratio",
			Help: "Annualised Sharpe ratio of per-trade PnL",
		}),
		quoted: f.NewGauge(prometheus.GaugeOpts{
			Name: "crossarb_venues_quoted",
			Help: "Venues present in the latest snapshot",
		}),
		candidates: f.NewGauge(prometheus.GaugeOpts{
			Name: "crossarb_candidates",
			Help: "Positive-spread candidates in the latest cycle",
		}),
		onchain: f.NewGauge(prometheus.GaugeOpts{
			Name: "crossarb_onchain_reference_price",
			Help: "Latest on-chain reference price",
		}),
		topSpread: f.NewGauge(prometheus.GaugeOpts{
			Name: "crossarb_top_spread",
			Help: "Spread of the top-ranked candidate in the latest cycle",
		}),
		cycleSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "crossarb_cycle_duration_seconds",
			Help:    "Wall time of one cycle, excluding the sleep",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *MetricsSink) Name() string { return "metrics" }

func (m *MetricsSink) Consume(_ context.Context, r domain.Report) error {
	degraded := "false"
	if r.Degraded {
		degraded = "true"
	}
	m.cycles.WithLabelValues(r.State, degraded).Inc()
	if r.Execution.Status != "" {
		m.executions.WithLabelValues(r.Execution.Status).Inc()
	}
	if r.Verdict != nil && !r.Verdict.Approved {
		m.rejections.WithLabelValues(r.Verdict.Reason).Inc()
	}
	for _, v := range r.FailedVenues {
		m.venueErrors.WithLabelValues(v).Inc()
	}
	m.pnl.Set(r.CumulativePnL)
	m.trades.Set(float64(r.TradeCount))
	m.sharpe.Set(r.SharpeRatio)
	m.quoted.Set(float64(r.VenuesQuoted))
	m.candidates.Set(float64(r.Candidates))
	if r.TopCandidate != nil {
		m.topSpread.Set(r.TopCandidate.Spread)
	} else {
		m.topSpread.Set(0)
	}
	if r.OnchainPrice != nil {
		m.onchain.Set(*r.OnchainPrice)
	}
	m.cycleSeconds.Observe(r.Elapsed.Seconds())
	return nil
}

var _ domain.ReportSink = (*MetricsSink)(nil)

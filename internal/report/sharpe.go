package report

import (
	"math"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// tradingDays annualises per-trade returns.
const tradingDays = 252

// SharpeRatio is mean/stdev*sqrt(252) over per-trade PnL, using the
// population standard deviation. It is 0 with no trades or no dispersion.
func SharpeRatio(history []domain.TradeRecord) float64 {
	n := float64(len(history))
	if n == 0 {
		return 0
	}
	var sum float64
	for _, t := range history {
		sum += t.PnL
	}
	mean := sum / n

	var sq float64
	for _, t := range history {
		d := t.PnL - mean
		sq += d * d
	}
	stdev := math.Sqrt(sq / n)
	if stdev == 0 {
		return 0
	}
	return mean / stdev * math.Sqrt(tradingDays)
}

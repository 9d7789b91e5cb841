package domain

import (
	"context"
	"time"
)

// ExecutionSummary describes what the executor did in a cycle.
type ExecutionSummary struct {
	Status string `json:"status"` // "executed", "failed", "skipped"
	Error  string `json:"error,omitempty"`
}

// Report is the per-cycle summary handed to reporting sinks.
type Report struct {
	CycleID       string                `json:"cycle_id"`
	Cycle         uint64                `json:"cycle"`
	At            time.Time             `json:"at"`
	State         string                `json:"state"`
	Elapsed       time.Duration         `json:"elapsed_ns"`
	CumulativePnL float64               `json:"cumulative_pnl"`
	TradeCount    int                   `json:"trade_count"`
	SharpeRatio   float64               `json:"sharpe_ratio"`
	VenuesQuoted  int                   `json:"venues_quoted"`
	FailedVenues  []string              `json:"failed_venues,omitempty"`
	Candidates    int                   `json:"candidates"`
	Degraded      bool                  `json:"degraded"`
	TopCandidate  *OpportunityCandidate `json:"top_candidate,omitempty"`
	Verdict       *ComplianceVerdict    `json:"verdict,omitempty"`
	Execution     ExecutionSummary      `json:"execution"`
	LastTrade     *TradeRecord          `json:"last_trade,omitempty"`
	Retrain       string                `json:"retrain"`
	OnchainPrice  *float64              `json:"onchain_price,omitempty"`
}

// ReportSink consumes one report per cycle.
type ReportSink interface {
	Name() string
	Consume(ctx context.Context, r Report) error
}

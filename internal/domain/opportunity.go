package domain

// OpportunityCandidate is one ordered venue pair: buy on LongVenue at its ask,
// sell on ShortVenue at its bid.
type OpportunityCandidate struct {
	LongVenue  string  `json:"long_venue"`
	ShortVenue string  `json:"short_venue"`
	LongAsk    float64 `json:"long_ask"`
	ShortBid   float64 `json:"short_bid"`
	Spread     float64 `json:"spread"`
	Liquidity  float64 `json:"liquidity"`
	Score      float64 `json:"score"`
}

// PairID identifies the ordered pair, e.g. "a->b".
func (c OpportunityCandidate) PairID() string {
	return c.LongVenue + "->" + c.ShortVenue
}

// Compliance rejection reasons.
const (
	ReasonKYCFailed       = "kyc_failed"
	ReasonPositionLimit   = "position_limit"
	ReasonVolumeCap       = "volume_cap"
	ReasonComplianceError = "compliance_error"
)

// ComplianceVerdict is the gate's answer for one candidate. A rejection is a
// normal outcome, not an error.
type ComplianceVerdict struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// Approve returns an approving verdict.
func Approve() ComplianceVerdict {
	return ComplianceVerdict{Approved: true}
}

// Reject returns a rejecting verdict with the given reason code.
func Reject(reason, detail string) ComplianceVerdict {
	return ComplianceVerdict{Reason: reason, Detail: detail}
}

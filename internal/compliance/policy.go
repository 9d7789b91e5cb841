package compliance

import (
	"fmt"
	"math"
	"strings"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// PositionPolicy decides how open positions across venues combine into one
// exposure figure.
type PositionPolicy string

const (
	// PolicyGross adds absolute position sizes; long and short legs never
	// offset each other.
	PolicyGross PositionPolicy = "gross"
	// PolicyNet sums signed sizes and takes the magnitude.
	PolicyNet PositionPolicy = "net"
)

// ParsePolicy parses a configured policy name.
func ParsePolicy(s string) (PositionPolicy, error) {
	switch p := PositionPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyGross, PolicyNet:
		return p, nil
	case "":
		return PolicyGross, nil
	default:
		return "", fmt.Errorf("compliance: unknown position policy %q (valid: gross, net)", s)
	}
}

// Aggregate combines positions according to the policy.
func (p PositionPolicy) Aggregate(positions []domain.Position) float64 {
	var total float64
	switch p {
	case PolicyNet:
		for _, pos := range positions {
			total += pos.Contracts
		}
		return math.Abs(total)
	default:
		for _, pos := range positions {
			total += math.Abs(pos.Contracts)
		}
		return total
	}
}

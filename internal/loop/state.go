package loop

// State is a control-loop phase.
type State int32

const (
	Idle State = iota
	Aggregating
	Ranking
	Gating
	Executing
	Retraining
	Reporting
	Sleeping
	ShuttingDown
)

var stateNames = [...]string{
	Idle:         "Idle",
	Aggregating:  "Aggregating",
	Ranking:      "Ranking",
	Gating:       "Gating",
	Executing:    "Executing",
	Retraining:   "Retraining",
	Reporting:    "Reporting",
	Sleeping:     "Sleeping",
	ShuttingDown: "ShuttingDown",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

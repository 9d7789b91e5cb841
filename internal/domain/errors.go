package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrInvalidOrder  = errors.New("invalid order parameters")
	ErrEmptyBook     = errors.New("order book side empty")
	ErrUnknownVenue  = errors.New("unknown venue")
	ErrLockHeld      = errors.New("lock already held")
	ErrBadPrediction = errors.New("model returned malformed weights")
)

// AdapterError is a single-venue failure. It never aborts a cycle; the venue
// is omitted from the snapshot or the candidate is excluded.
type AdapterError struct {
	Venue string
	Op    string
	Err   error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("venue %s: %s: %v", e.Venue, e.Op, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// ModelError is raised by scoring or retraining. Callers degrade to a
// deterministic fallback.
type ModelError struct {
	Op  string
	Err error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model: %s: %v", e.Op, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

// ExecutionError reports a failed cross-venue execution. The ledger is left
// untouched whenever one is returned.
type ExecutionError struct {
	LongVenue  string
	ShortVenue string
	Leg        string // "long" or "short"
	Err        error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution %s->%s: %s leg: %v", e.LongVenue, e.ShortVenue, e.Leg, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// FatalConfigurationError lists every configuration problem found at
// startup. It is the only error that prevents the control loop from running.
type FatalConfigurationError struct {
	Problems []string
}

func (e *FatalConfigurationError) Error() string {
	return fmt.Sprintf("config validation failed:\n  - %s", strings.Join(e.Problems, "\n  - "))
}

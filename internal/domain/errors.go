package domain

import (
	"errors"
	"fmt"
)

// ErrStrategyTimeout is reported when a strategy exceeds its time budget.
var ErrStrategyTimeout = errors.New("strategy timed out")

// ErrNotActive is returned by adjustments requested without an active signal.
var ErrNotActive = errors.New("no active signal")

// ValidationError is a structural defect in a candidate signal.
type ValidationError struct {
	Field   string
	Value   float64
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid signal: %s: %s", e.Field, e.Message)
}

// RiskRejection is a business-rule refusal of a candidate signal.
type RiskRejection struct {
	Rule   string
	Reason string
}

func (e *RiskRejection) Error() string {
	if e.Rule == "" {
		return "risk rejected: " + e.Reason
	}
	return fmt.Sprintf("risk rejected by %s: %s", e.Rule, e.Reason)
}

// DataSourceError is a market data failure after retries were exhausted.
type DataSourceError struct {
	Symbol   string
	Interval Interval
	Attempts int
	Err      error
}

func (e *DataSourceError) Error() string {
	return fmt.Sprintf("candles %s %s failed after %d attempts: %v", e.Symbol, e.Interval, e.Attempts, e.Err)
}

func (e *DataSourceError) Unwrap() error { return e.Err }

// PersistenceError is a failed read or write of signal state.
type PersistenceError struct {
	Op  string
	Key StoreKey
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsFatal reports whether err must stop the current run.
func IsFatal(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

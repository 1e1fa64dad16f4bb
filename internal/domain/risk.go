package domain

import "time"

// ActivePosition is one open position as seen by the risk evaluator.
type ActivePosition struct {
	Signal       *Signal
	StrategyName string
	ExchangeName string
	Symbol       string
	OpenedAt     time.Time
}

// RiskCheckPayload is a read-only portfolio view built fresh for each check.
type RiskCheckPayload struct {
	PendingSignal       *Signal
	Symbol              string
	StrategyName        string
	ExchangeName        string
	CurrentPrice        float64
	Timestamp           time.Time
	Backtest            bool
	ActivePositionCount int
	ActivePositions     []ActivePosition
}

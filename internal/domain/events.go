package domain

import "time"

// EventType names a lifecycle notification.
type EventType string

const (
	EventScheduled     EventType = "scheduled"
	EventOpened        EventType = "opened"
	EventActive        EventType = "active"
	EventClosed        EventType = "closed"
	EventCancelled     EventType = "cancelled"
	EventPartialProfit EventType = "partial_profit"
	EventPartialLoss   EventType = "partial_loss"
	EventBreakeven     EventType = "breakeven"
	EventTrailingStop  EventType = "trailing_stop"
	EventTrailingTake  EventType = "trailing_take"
	EventRiskRejected  EventType = "risk_rejected"
)

// Event is an observability notification. It never drives control flow.
type Event struct {
	Type      EventType
	Signal    *Signal
	Symbol    string
	Strategy  string
	Backtest  bool
	Price     float64
	Timestamp time.Time

	// Level is the milestone for partial events (10..100).
	Level int
	// Reason carries the close, cancel or rejection reason.
	Reason string
	PnL    *PnL
}

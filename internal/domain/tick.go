package domain

import "time"

// Action names the kind of a TickResult.
type Action string

const (
	ActionIdle      Action = "idle"
	ActionScheduled Action = "scheduled"
	ActionOpened    Action = "opened"
	ActionActive    Action = "active"
	ActionClosed    Action = "closed"
	ActionCancelled Action = "cancelled"
)

// TickResult is the outcome of one engine tick. The concrete types are
// IdleResult, ScheduledResult, OpenedResult, ActiveResult, ClosedResult
// and CancelledResult.
type TickResult interface {
	Action() Action
	tickResult()
}

type IdleResult struct {
	Symbol string
	Price  float64
	At     time.Time
}

type ScheduledResult struct {
	Signal *Signal
	Price  float64
	At     time.Time
}

type OpenedResult struct {
	Signal *Signal
	Price  float64
	At     time.Time
}

// ActiveResult reports monitoring progress toward the effective levels, 0..100.
type ActiveResult struct {
	Signal    *Signal
	Price     float64
	At        time.Time
	PercentTP float64
	PercentSL float64
}

type ClosedResult struct {
	Signal *Signal
	Price  float64
	At     time.Time
	Reason CloseReason
	PnL    PnL
}

type CancelledResult struct {
	Signal *Signal
	Price  float64
	At     time.Time
	Reason CancelReason
}

func (IdleResult) Action() Action      { return ActionIdle }
func (ScheduledResult) Action() Action { return ActionScheduled }
func (OpenedResult) Action() Action    { return ActionOpened }
func (ActiveResult) Action() Action    { return ActionActive }
func (ClosedResult) Action() Action    { return ActionClosed }
func (CancelledResult) Action() Action { return ActionCancelled }

func (IdleResult) tickResult()      {}
func (ScheduledResult) tickResult() {}
func (OpenedResult) tickResult()    {}
func (ActiveResult) tickResult()    {}
func (ClosedResult) tickResult()    {}
func (CancelledResult) tickResult() {}

package domain

import (
	"slices"
	"time"
)

// Side is the direction of a position.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Valid reports whether s is long or short.
func (s Side) Valid() bool {
	return s == SideLong || s == SideShort
}

// SignalDraft is the raw output of a strategy. A nil PriceOpen requests
// an immediate entry at the current price.
type SignalDraft struct {
	ID                  string   `json:"id,omitempty"`
	Position            Side     `json:"position"`
	Note                string   `json:"note,omitempty"`
	PriceOpen           *float64 `json:"priceOpen,omitempty"`
	PriceTakeProfit     float64  `json:"priceTakeProfit"`
	PriceStopLoss       float64  `json:"priceStopLoss"`
	MinuteEstimatedTime int      `json:"minuteEstimatedTime"`
}

// PartialKind distinguishes partial closes taken in profit or in loss.
type PartialKind string

const (
	PartialProfit PartialKind = "profit"
	PartialLoss   PartialKind = "loss"
)

// PartialExecution records a partial close of the position.
type PartialExecution struct {
	Kind    PartialKind `json:"kind"`
	Percent float64     `json:"percent"`
	Price   float64     `json:"price"`
	At      time.Time   `json:"at"`
}

// Signal is a validated draft owned by the engine for one (strategy, symbol) slot.
type Signal struct {
	ID                  string    `json:"id"`
	Position            Side      `json:"position"`
	Note                string    `json:"note,omitempty"`
	PriceOpen           float64   `json:"priceOpen"`
	PriceTakeProfit     float64   `json:"priceTakeProfit"`
	PriceStopLoss       float64   `json:"priceStopLoss"`
	MinuteEstimatedTime int       `json:"minuteEstimatedTime"`
	ExchangeName        string    `json:"exchangeName"`
	StrategyName        string    `json:"strategyName"`
	Symbol              string    `json:"symbol"`
	ScheduledAt         time.Time `json:"scheduledAt"`
	PendingAt           time.Time `json:"pendingAt"`
	IsScheduled         bool      `json:"_isScheduled"`

	TotalExecuted float64            `json:"totalExecuted"`
	Partials      []PartialExecution `json:"partials,omitempty"`
	ProfitLevels  []int              `json:"profitLevels,omitempty"`
	LossLevels    []int              `json:"lossLevels,omitempty"`

	// Zero means no trailing override.
	TrailingStopLoss   float64 `json:"trailingStopLoss,omitempty"`
	TrailingTakeProfit float64 `json:"trailingTakeProfit,omitempty"`
	BreakevenApplied   bool    `json:"breakevenApplied,omitempty"`
}

// Key returns the persistence key of the signal.
func (s *Signal) Key() StoreKey {
	return StoreKey{StrategyName: s.StrategyName, Symbol: s.Symbol}
}

// StopLoss returns the stop-loss currently in force.
func (s *Signal) StopLoss() float64 {
	if s.TrailingStopLoss > 0 {
		return s.TrailingStopLoss
	}
	return s.PriceStopLoss
}

// TakeProfit returns the take-profit currently in force.
func (s *Signal) TakeProfit() float64 {
	if s.TrailingTakeProfit > 0 {
		return s.TrailingTakeProfit
	}
	return s.PriceTakeProfit
}

// ExpiresAt is the moment the lifetime budget of an active signal runs out.
func (s *Signal) ExpiresAt() time.Time {
	return s.PendingAt.Add(time.Duration(s.MinuteEstimatedTime) * time.Minute)
}

// HasProfitLevel reports whether a partial profit milestone already fired.
func (s *Signal) HasProfitLevel(level int) bool {
	return slices.Contains(s.ProfitLevels, level)
}

// HasLossLevel reports whether a partial loss milestone already fired.
func (s *Signal) HasLossLevel(level int) bool {
	return slices.Contains(s.LossLevels, level)
}

// Clone returns a deep copy safe to hand to callers.
func (s *Signal) Clone() *Signal {
	if s == nil {
		return nil
	}
	c := *s
	c.Partials = slices.Clone(s.Partials)
	c.ProfitLevels = slices.Clone(s.ProfitLevels)
	c.LossLevels = slices.Clone(s.LossLevels)
	return &c
}

// CloseReason explains why an active signal was closed.
type CloseReason string

const (
	CloseTakeProfit  CloseReason = "take_profit"
	CloseStopLoss    CloseReason = "stop_loss"
	CloseTimeExpired CloseReason = "time_expired"
)

// CancelReason explains why a scheduled signal was discarded.
type CancelReason string

const (
	CancelStopLoss     CancelReason = "stop_loss"
	CancelTimeout      CancelReason = "timeout"
	CancelRiskRejected CancelReason = "risk_rejected"
)

// PnL is the fee and slippage adjusted result of a trade.
type PnL struct {
	Percentage float64 `json:"pnlPercentage"`
	PriceOpen  float64 `json:"priceOpen"`
	PriceClose float64 `json:"priceClose"`
}

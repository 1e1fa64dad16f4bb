package domain

import (
	"context"
	"time"
)

// Trade is the journal record of a closed signal.
type Trade struct {
	SignalID   string      `json:"signalId" db:"signal_id"`
	Strategy   string      `json:"strategy" db:"strategy"`
	Exchange   string      `json:"exchange" db:"exchange"`
	Symbol     string      `json:"symbol" db:"symbol"`
	Position   Side        `json:"position" db:"position"`
	PriceOpen  float64     `json:"priceOpen" db:"price_open"`
	PriceClose float64     `json:"priceClose" db:"price_close"`
	PnLPct     float64     `json:"pnlPct" db:"pnl_pct"`
	Reason     CloseReason `json:"reason" db:"reason"`
	Backtest   bool        `json:"backtest" db:"backtest"`
	OpenedAt   time.Time   `json:"openedAt" db:"opened_at"`
	ClosedAt   time.Time   `json:"closedAt" db:"closed_at"`
}

// TradeRepository stores closed trades.
type TradeRepository interface {
	SaveTrade(ctx context.Context, trade *Trade) error
	ListTrades(ctx context.Context, limit int) ([]*Trade, error)
}

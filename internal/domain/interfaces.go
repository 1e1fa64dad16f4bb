package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// CandleSource fetches raw candles from an exchange, oldest first,
// starting at since.
type CandleSource interface {
	FetchCandles(ctx context.Context, symbol string, interval Interval, since time.Time, limit int) ([]Candle, error)
}

// Precision carries exchange rounding rules for one symbol.
type Precision struct {
	TickSize decimal.Decimal
	StepSize decimal.Decimal
}

// PrecisionSource resolves exchange precision rules.
type PrecisionSource interface {
	GetPrecision(ctx context.Context, symbol string) (Precision, error)
}

// CandleReader gives a strategy candle access bound to the current tick.
// Candles of the still forming period are never returned.
type CandleReader interface {
	GetCandles(ctx context.Context, interval Interval, limit int) ([]Candle, error)
	GetAveragePrice(ctx context.Context) (float64, error)
}

// Strategy produces trading signals. GetSignal returns nil when there is
// nothing to do this tick.
type Strategy interface {
	Name() string
	Interval() Interval
	GetSignal(ctx context.Context, exec ExecutionContext, candles CandleReader) (*SignalDraft, error)
}

// Adjuster lets a strategy adjust its active signal during a tick.
type Adjuster interface {
	TrailingStop(percentShift float64) (bool, error)
	TrailingTake(percentShift float64) (bool, error)
	PartialProfit(percentToClose float64) (bool, error)
	PartialLoss(percentToClose float64) (bool, error)
	Breakeven() (bool, error)
}

// SignalManager is implemented by strategies that manage their open position.
type SignalManager interface {
	Manage(ctx context.Context, exec ExecutionContext, signal *Signal, price float64, adj Adjuster) error
}

// RiskRule rejects a candidate by returning an error.
type RiskRule interface {
	Name() string
	Validate(payload RiskCheckPayload) error
}

// SignalStore mirrors engine state for one namespace. Writing nil removes the record.
type SignalStore interface {
	WaitForInit(ctx context.Context) error
	HasValue(ctx context.Context, key StoreKey) (bool, error)
	ReadValue(ctx context.Context, key StoreKey) (*Signal, error)
	WriteValue(ctx context.Context, key StoreKey, value *Signal) error
}

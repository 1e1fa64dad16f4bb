package domain

import "time"

// ExecutionContext describes the tick being processed.
type ExecutionContext struct {
	Symbol   string
	When     time.Time
	Backtest bool
}

// MethodContext routes a run to its strategy, exchange and frame.
type MethodContext struct {
	StrategyName string
	ExchangeName string
	FrameName    string
}

// Mode returns "backtest" or "live".
func (e ExecutionContext) Mode() string {
	if e.Backtest {
		return "backtest"
	}
	return "live"
}

// StoreKey identifies persisted state for one strategy and symbol.
type StoreKey struct {
	StrategyName string
	Symbol       string
}

// String renders the key in the "{strategy}:{symbol}" layout.
func (k StoreKey) String() string {
	return k.StrategyName + ":" + k.Symbol
}

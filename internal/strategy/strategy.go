// Package strategy holds the built-in signal generators.
package strategy

import (
	"fmt"

	"github.com/vitos/signal_engine/internal/config"
	"github.com/vitos/signal_engine/internal/domain"
)

// Params are the numeric tuning knobs of a strategy.
type Params map[string]float64

func (p Params) get(name string, def float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return def
}

// Build returns the strategy named in cfg.
func Build(cfg config.Strategy) (domain.Strategy, error) {
	interval := domain.Interval(cfg.Interval)
	if interval == "" {
		interval = domain.Interval5m
	}
	if err := interval.Validate(); err != nil {
		return nil, err
	}
	params := Params(cfg.Params)

	switch cfg.Name {
	case BreakoutName:
		return NewBreakout(interval, params), nil
	case LevelName:
		return NewLevel(interval, params), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", cfg.Name)
	}
}

func highLow(candles []domain.Candle) (high, low float64) {
	high, low = candles[0].High, candles[0].Low
	for _, c := range candles[1:] {
		high = max(high, c.High)
		low = min(low, c.Low)
	}
	return high, low
}

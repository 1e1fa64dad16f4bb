package strategy

import (
	"context"
	"fmt"

	"github.com/vitos/signal_engine/internal/domain"
)

const LevelName = "level"

// Level places a limit entry near the closest support or resistance of the
// last lookback candles and waits for price to come back to it.
//
// Params: lookback (50), tier_pct (0.3), tp_pct (2), sl_pct (1),
// lifetime_minutes (240).
type Level struct {
	interval domain.Interval
	lookback int
	tierPct  float64
	tpPct    float64
	slPct    float64
	lifetime int
}

func NewLevel(interval domain.Interval, p Params) *Level {
	return &Level{
		interval: interval,
		lookback: int(p.get("lookback", 50)),
		tierPct:  p.get("tier_pct", 0.3),
		tpPct:    p.get("tp_pct", 2),
		slPct:    p.get("sl_pct", 1),
		lifetime: int(p.get("lifetime_minutes", 240)),
	}
}

func (l *Level) Name() string              { return LevelName }
func (l *Level) Interval() domain.Interval { return l.interval }

// levelSide is long when price trades above the level (support) and short
// when below (resistance).
func levelSide(levelPrice, currentPrice float64) domain.Side {
	if currentPrice > levelPrice {
		return domain.SideLong
	}
	if currentPrice < levelPrice {
		return domain.SideShort
	}
	return ""
}

func (l *Level) GetSignal(ctx context.Context, exec domain.ExecutionContext, candles domain.CandleReader) (*domain.SignalDraft, error) {
	bars, err := candles.GetCandles(ctx, l.interval, l.lookback)
	if err != nil {
		return nil, err
	}
	if len(bars) < l.lookback || l.lookback < 2 {
		return nil, nil
	}
	price, err := candles.GetAveragePrice(ctx)
	if err != nil {
		return nil, err
	}

	resistance, support := highLow(bars)
	level := support
	if resistance-price < price-support {
		level = resistance
	}

	draft := &domain.SignalDraft{
		Position:            levelSide(level, price),
		MinuteEstimatedTime: l.lifetime,
	}
	var entry float64
	switch draft.Position {
	case domain.SideLong:
		entry = level * (1 + l.tierPct/100)
		draft.PriceStopLoss = level * (1 - l.slPct/100)
		draft.PriceTakeProfit = entry * (1 + l.tpPct/100)
		draft.Note = fmt.Sprintf("support %.8g", level)
	case domain.SideShort:
		entry = level * (1 - l.tierPct/100)
		draft.PriceStopLoss = level * (1 + l.slPct/100)
		draft.PriceTakeProfit = entry * (1 - l.tpPct/100)
		draft.Note = fmt.Sprintf("resistance %.8g", level)
	default:
		return nil, nil
	}
	draft.PriceOpen = &entry
	return draft, nil
}

package strategy

import (
	"context"
	"fmt"

	"github.com/vitos/signal_engine/internal/domain"
)

const BreakoutName = "breakout"

// Breakout enters at market when the last closed candle closes beyond the
// high or low of the preceding lookback candles.
//
// Params: lookback (20), tp_pct (2), sl_pct (1), lifetime_minutes (240),
// trail_trigger_pct (0 disables), trail_shift_pct (-0.5).
type Breakout struct {
	interval     domain.Interval
	lookback     int
	tpPct        float64
	slPct        float64
	lifetime     int
	trailTrigger float64
	trailShift   float64
}

func NewBreakout(interval domain.Interval, p Params) *Breakout {
	return &Breakout{
		interval:     interval,
		lookback:     int(p.get("lookback", 20)),
		tpPct:        p.get("tp_pct", 2),
		slPct:        p.get("sl_pct", 1),
		lifetime:     int(p.get("lifetime_minutes", 240)),
		trailTrigger: p.get("trail_trigger_pct", 0),
		trailShift:   p.get("trail_shift_pct", -0.5),
	}
}

func (b *Breakout) Name() string              { return BreakoutName }
func (b *Breakout) Interval() domain.Interval { return b.interval }

func (b *Breakout) GetSignal(ctx context.Context, exec domain.ExecutionContext, candles domain.CandleReader) (*domain.SignalDraft, error) {
	bars, err := candles.GetCandles(ctx, b.interval, b.lookback+1)
	if err != nil {
		return nil, err
	}
	if len(bars) < b.lookback+1 || b.lookback < 1 {
		return nil, nil
	}
	last := bars[len(bars)-1]
	high, low := highLow(bars[:len(bars)-1])

	var side domain.Side
	switch {
	case last.Close > high:
		side = domain.SideLong
	case last.Close < low:
		side = domain.SideShort
	default:
		return nil, nil
	}

	price, err := candles.GetAveragePrice(ctx)
	if err != nil {
		return nil, err
	}
	draft := &domain.SignalDraft{
		Position:            side,
		MinuteEstimatedTime: b.lifetime,
	}
	if side == domain.SideLong {
		draft.PriceTakeProfit = price * (1 + b.tpPct/100)
		draft.PriceStopLoss = price * (1 - b.slPct/100)
		draft.Note = fmt.Sprintf("close %.8g above %d-bar high %.8g", last.Close, b.lookback, high)
	} else {
		draft.PriceTakeProfit = price * (1 - b.tpPct/100)
		draft.PriceStopLoss = price * (1 + b.slPct/100)
		draft.Note = fmt.Sprintf("close %.8g below %d-bar low %.8g", last.Close, b.lookback, low)
	}
	return draft, nil
}

// Manage trails the stop once the position is trail_trigger_pct in profit.
func (b *Breakout) Manage(ctx context.Context, exec domain.ExecutionContext, signal *domain.Signal, price float64, adj domain.Adjuster) error {
	if b.trailTrigger <= 0 {
		return nil
	}
	move := (price - signal.PriceOpen) / signal.PriceOpen * 100
	if signal.Position == domain.SideShort {
		move = -move
	}
	if move < b.trailTrigger {
		return nil
	}
	_, err := adj.TrailingStop(b.trailShift)
	return err
}

package usecase

import (
	"fmt"
	"slices"
	"time"

	"github.com/vitos/signal_engine/internal/domain"
)

// Trailing and breakeven math. Every function mutates sig only when it
// returns true.

// trailStopLoss moves the stop by shifting the original SL distance by
// percentShift. The candidate is always derived from the original distance,
// and is accepted only when it is strictly more protective than the level
// in force and still on the safe side of price.
func trailStopLoss(sig *domain.Signal, percentShift, price float64) bool {
	dist := distancePct(sig.PriceStopLoss, sig.PriceOpen) + percentShift
	current := sig.StopLoss()
	tp := sig.TakeProfit()

	var candidate float64
	switch sig.Position {
	case domain.SideLong:
		candidate = sig.PriceOpen * (1 - dist/100)
		if !isPositiveFinite(candidate) || candidate <= current || candidate >= price || candidate >= tp {
			return false
		}
	case domain.SideShort:
		candidate = sig.PriceOpen * (1 + dist/100)
		if !isPositiveFinite(candidate) || candidate >= current || candidate <= price || candidate <= tp {
			return false
		}
	default:
		return false
	}
	sig.TrailingStopLoss = candidate
	return true
}

// trailTakeProfit pulls the target closer by shifting the original TP distance.
func trailTakeProfit(sig *domain.Signal, percentShift, price float64) bool {
	dist := distancePct(sig.PriceTakeProfit, sig.PriceOpen) + percentShift
	if dist <= 0 {
		return false
	}
	current := sig.TakeProfit()

	var candidate float64
	switch sig.Position {
	case domain.SideLong:
		candidate = sig.PriceOpen * (1 + dist/100)
		if !isPositiveFinite(candidate) || candidate >= current || candidate <= price {
			return false
		}
	case domain.SideShort:
		candidate = sig.PriceOpen * (1 - dist/100)
		if !isPositiveFinite(candidate) || candidate <= current || candidate >= price {
			return false
		}
	default:
		return false
	}
	sig.TrailingTakeProfit = candidate
	return true
}

// profitPct is the unrealized move in the position's favour, in percent of entry.
func profitPct(sig *domain.Signal, price float64) float64 {
	if sig.Position == domain.SideShort {
		return (sig.PriceOpen - price) / sig.PriceOpen * 100
	}
	return (price - sig.PriceOpen) / sig.PriceOpen * 100
}

// applyBreakeven moves the stop to entry once the move covers fees and slippage twice.
func applyBreakeven(sig *domain.Signal, price, threshold float64) bool {
	if sig.BreakevenApplied || profitPct(sig, price) < threshold {
		return false
	}
	sig.BreakevenApplied = true
	current := sig.StopLoss()
	if sig.Position == domain.SideLong && current >= sig.PriceOpen {
		return false
	}
	if sig.Position == domain.SideShort && current <= sig.PriceOpen {
		return false
	}
	sig.TrailingStopLoss = sig.PriceOpen
	return true
}

// executePartial closes percent of the position at price.
func executePartial(sig *domain.Signal, kind domain.PartialKind, percent, price float64, at time.Time) (bool, error) {
	if !(percent > 0 && percent <= 100) {
		return false, fmt.Errorf("partial close percent must be in (0, 100], got %v", percent)
	}
	if sig.TotalExecuted+percent > 100 {
		return false, nil
	}
	inProfit := profitPct(sig, price) > 0
	if kind == domain.PartialProfit && !inProfit {
		return false, nil
	}
	if kind == domain.PartialLoss && (inProfit || price == sig.PriceOpen) {
		return false, nil
	}
	sig.Partials = append(sig.Partials, domain.PartialExecution{Kind: kind, Percent: percent, Price: price, At: at})
	sig.TotalExecuted += percent
	return true, nil
}

// progress returns how far price has travelled toward TP and SL, 0..100.
func progress(sig *domain.Signal, price float64) (toTP, toSL float64) {
	open, tp, sl := sig.PriceOpen, sig.TakeProfit(), sig.StopLoss()
	if tp != open {
		toTP = (price - open) / (tp - open) * 100
	}
	if sl != open {
		toSL = (price - open) / (sl - open) * 100
	}
	return clampPct(toTP), clampPct(toSL)
}

func clampPct(v float64) float64 {
	return min(100, max(0, v))
}

// newMilestones marks every 10% step reached and not fired before, in ascending order.
func newMilestones(fired *[]int, pct float64) []int {
	var out []int
	for level := 10; level <= 100; level += 10 {
		if pct < float64(level) {
			break
		}
		if !slices.Contains(*fired, level) {
			*fired = append(*fired, level)
			out = append(out, level)
		}
	}
	return out
}

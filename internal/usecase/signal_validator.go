package usecase

import (
	"fmt"
	"math"

	"github.com/vitos/signal_engine/internal/config"
	"github.com/vitos/signal_engine/internal/domain"
)

// SignalValidator runs the structural checks a signal must pass before any
// state is created for it. Checks run in order and stop at the first failure.
type SignalValidator struct {
	cfg config.Engine
}

func NewSignalValidator(cfg config.Engine) *SignalValidator {
	return &SignalValidator{cfg: cfg}
}

// Validate returns a *domain.ValidationError describing the first failed check.
func (v *SignalValidator) Validate(sig *domain.Signal, currentPrice float64) error {
	checks := []func(*domain.Signal, float64) error{
		v.checkFields,
		v.checkPrices,
		v.checkOrdering,
		v.checkTakeProfitDistance,
		v.checkStopLossDistance,
		v.checkLifetime,
		v.checkTimestamps,
	}
	for _, check := range checks {
		if err := check(sig, currentPrice); err != nil {
			return err
		}
	}
	return nil
}

func invalid(field string, value float64, format string, args ...any) error {
	return &domain.ValidationError{Field: field, Value: value, Message: fmt.Sprintf(format, args...)}
}

func (v *SignalValidator) checkFields(sig *domain.Signal, _ float64) error {
	if sig == nil {
		return invalid("signal", 0, "signal is nil")
	}
	if !sig.Position.Valid() {
		return invalid("position", 0, "position must be long or short, got %q", sig.Position)
	}
	ids := []struct{ field, value string }{
		{"id", sig.ID},
		{"exchangeName", sig.ExchangeName},
		{"strategyName", sig.StrategyName},
		{"symbol", sig.Symbol},
	}
	for _, id := range ids {
		if id.value == "" {
			return invalid(id.field, 0, "%s is required", id.field)
		}
	}
	return nil
}

func (v *SignalValidator) checkPrices(sig *domain.Signal, currentPrice float64) error {
	prices := []struct {
		field string
		value float64
	}{
		{"priceOpen", sig.PriceOpen},
		{"priceTakeProfit", sig.PriceTakeProfit},
		{"priceStopLoss", sig.PriceStopLoss},
		{"currentPrice", currentPrice},
	}
	for _, p := range prices {
		if !isPositiveFinite(p.value) {
			return invalid(p.field, p.value, "%s must be a finite positive number, got %v", p.field, p.value)
		}
	}
	return nil
}

func (v *SignalValidator) checkOrdering(sig *domain.Signal, currentPrice float64) error {
	open, tp, sl := sig.PriceOpen, sig.PriceTakeProfit, sig.PriceStopLoss

	// The reference price must sit strictly inside the SL..TP corridor or the
	// signal would close the moment it opens.
	ref, refField := currentPrice, "currentPrice"
	if sig.IsScheduled {
		ref, refField = open, "priceOpen"
	}

	switch sig.Position {
	case domain.SideLong:
		if !(tp > open) {
			return invalid("priceTakeProfit", tp, "long requires priceTakeProfit (%v) > priceOpen (%v)", tp, open)
		}
		if !(open > sl) {
			return invalid("priceStopLoss", sl, "long requires priceOpen (%v) > priceStopLoss (%v)", open, sl)
		}
		if !(ref > sl && ref < tp) {
			return invalid(refField, ref, "%s (%v) must lie strictly between stop loss (%v) and take profit (%v)", refField, ref, sl, tp)
		}
	case domain.SideShort:
		if !(tp < open) {
			return invalid("priceTakeProfit", tp, "short requires priceTakeProfit (%v) < priceOpen (%v)", tp, open)
		}
		if !(open < sl) {
			return invalid("priceStopLoss", sl, "short requires priceOpen (%v) < priceStopLoss (%v)", open, sl)
		}
		if !(ref < sl && ref > tp) {
			return invalid(refField, ref, "%s (%v) must lie strictly between take profit (%v) and stop loss (%v)", refField, ref, tp, sl)
		}
	}
	return nil
}

func distancePct(a, b float64) float64 {
	return math.Abs(a-b) / b * 100
}

func (v *SignalValidator) checkTakeProfitDistance(sig *domain.Signal, _ float64) error {
	dist := distancePct(sig.PriceTakeProfit, sig.PriceOpen)
	if dist < v.cfg.MinTakeProfitDistancePct {
		return invalid("priceTakeProfit", dist, "TakeProfit too close (%.3f%%), minimum is %v%%", dist, v.cfg.MinTakeProfitDistancePct)
	}
	return nil
}

func (v *SignalValidator) checkStopLossDistance(sig *domain.Signal, _ float64) error {
	dist := distancePct(sig.PriceStopLoss, sig.PriceOpen)
	if dist < v.cfg.MinStopLossDistancePct {
		return invalid("priceStopLoss", dist, "StopLoss too close (%.3f%%), minimum is %v%%", dist, v.cfg.MinStopLossDistancePct)
	}
	if dist > v.cfg.MaxStopLossDistancePct {
		return invalid("priceStopLoss", dist, "StopLoss too far (%.3f%%), maximum is %v%%", dist, v.cfg.MaxStopLossDistancePct)
	}
	return nil
}

func (v *SignalValidator) checkLifetime(sig *domain.Signal, _ float64) error {
	life := sig.MinuteEstimatedTime
	if life <= 0 {
		return invalid("minuteEstimatedTime", float64(life), "minuteEstimatedTime must be positive, got %d", life)
	}
	if life > v.cfg.MaxSignalLifetimeMinutes {
		return invalid("minuteEstimatedTime", float64(life), "minuteEstimatedTime %d exceeds maximum of %d minutes", life, v.cfg.MaxSignalLifetimeMinutes)
	}
	return nil
}

func (v *SignalValidator) checkTimestamps(sig *domain.Signal, _ float64) error {
	if sig.ScheduledAt.UnixMilli() <= 0 {
		return invalid("scheduledAt", float64(sig.ScheduledAt.UnixMilli()), "scheduledAt must be positive")
	}
	if sig.PendingAt.UnixMilli() <= 0 {
		return invalid("pendingAt", float64(sig.PendingAt.UnixMilli()), "pendingAt must be positive")
	}
	return nil
}

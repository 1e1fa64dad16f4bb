package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/vitos/signal_engine/internal/config"
	"github.com/vitos/signal_engine/internal/domain"
	"go.uber.org/zap"
)

// EngineDeps wires one engine. ActiveStore and ScheduleStore may be nil,
// which disables persistence (backtests).
type EngineDeps struct {
	Strategy      domain.Strategy
	Method        domain.MethodContext
	Symbol        string
	Backtest      bool
	Gateway       *MarketGateway
	Validator     *SignalValidator
	Risk          *RiskEvaluator
	ActiveStore   domain.SignalStore
	ScheduleStore domain.SignalStore
	Events        *EventBus
	Config        config.Engine
	Logger        *zap.Logger
}

// SignalEngine owns the lifecycle of at most one signal for a
// (strategy, symbol) pair: idle, scheduled, active, closed or cancelled.
// Ticks are serialized; persistence is written before memory is updated.
type SignalEngine struct {
	strategy  domain.Strategy
	method    domain.MethodContext
	symbol    string
	backtest  bool
	gateway   *MarketGateway
	validator *SignalValidator
	risk      *RiskEvaluator
	active    domain.SignalStore
	schedule  domain.SignalStore
	events    *EventBus
	cfg       config.Engine
	logger    *zap.Logger

	stopped atomic.Bool

	mu           sync.Mutex
	pending      *domain.Signal
	scheduled    *domain.Signal
	lastSignalAt time.Time
	restored     bool
}

func NewSignalEngine(d EngineDeps) *SignalEngine {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validator := d.Validator
	if validator == nil {
		validator = NewSignalValidator(d.Config)
	}
	risk := d.Risk
	if risk == nil {
		risk = NewRiskEvaluator(nil, RiskCallbacks{}, d.Events, logger)
	}
	method := d.Method
	if method.StrategyName == "" {
		method.StrategyName = d.Strategy.Name()
	}
	if method.ExchangeName == "" {
		method.ExchangeName = d.Gateway.ExchangeName()
	}
	return &SignalEngine{
		strategy:  d.Strategy,
		method:    method,
		symbol:    d.Symbol,
		backtest:  d.Backtest,
		gateway:   d.Gateway,
		validator: validator,
		risk:      risk,
		active:    d.ActiveStore,
		schedule:  d.ScheduleStore,
		events:    d.Events,
		cfg:       d.Config,
		logger: logger.With(
			zap.String("strategy", method.StrategyName),
			zap.String("symbol", d.Symbol),
			zap.Bool("backtest", d.Backtest)),
	}
}

func (e *SignalEngine) Symbol() string       { return e.symbol }
func (e *SignalEngine) StrategyName() string { return e.method.StrategyName }
func (e *SignalEngine) Backtest() bool       { return e.backtest }

func (e *SignalEngine) key() domain.StoreKey {
	return domain.StoreKey{StrategyName: e.method.StrategyName, Symbol: e.symbol}
}

func (e *SignalEngine) execAt(when time.Time) domain.ExecutionContext {
	return domain.ExecutionContext{Symbol: e.symbol, When: when, Backtest: e.backtest}
}

// Stop prevents new signals. Open and scheduled signals keep being monitored.
func (e *SignalEngine) Stop() {
	e.stopped.Store(true)
}

func (e *SignalEngine) Stopped() bool {
	return e.stopped.Load()
}

// Idle reports whether the engine holds neither an active nor a scheduled signal.
func (e *SignalEngine) Idle() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending == nil && e.scheduled == nil
}

// Active returns a copy of the active signal, or nil.
func (e *SignalEngine) Active() *domain.Signal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending.Clone()
}

// Scheduled returns a copy of the scheduled signal, or nil.
func (e *SignalEngine) Scheduled() *domain.Signal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scheduled.Clone()
}

// Restore loads persisted state once. A restored active signal fires one
// active event at the current price and a scheduled one fires a scheduled
// event; no opened event is repeated. A failed Restore may be retried.
func (e *SignalEngine) Restore(ctx context.Context, when time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.restored || e.backtest {
		e.restored = true
		return nil
	}

	active, err := e.read(ctx, e.active)
	if err != nil {
		return err
	}
	scheduled, err := e.read(ctx, e.schedule)
	if err != nil {
		return err
	}
	if active != nil && scheduled != nil {
		// Activation writes the active record before removing the schedule.
		e.logger.Warn("Both active and scheduled state found, dropping schedule",
			zap.String("active_id", active.ID), zap.String("scheduled_id", scheduled.ID))
		if err := e.write(ctx, e.schedule, nil); err != nil {
			return err
		}
		scheduled = nil
	}
	if active == nil && scheduled == nil {
		e.restored = true
		return nil
	}

	// restored stays false on a price failure so the next call reloads.
	exec := e.execAt(when)
	price, err := e.gateway.GetAveragePrice(ctx, exec)
	if err != nil {
		return err
	}
	e.restored = true

	if active != nil {
		e.pending = active
		e.risk.AddPosition(active, active.PendingAt)
		e.logger.Info("Restored active signal", zap.String("id", active.ID), zap.Float64("price_open", active.PriceOpen))
		e.emit(domain.EventActive, active, price, when, nil)
	}
	if scheduled != nil {
		e.scheduled = scheduled
		e.logger.Info("Restored scheduled signal", zap.String("id", scheduled.ID), zap.Float64("price_open", scheduled.PriceOpen))
		e.emit(domain.EventScheduled, scheduled, price, when, nil)
	}
	return nil
}

// Tick advances the state machine by one step at exec.When.
func (e *SignalEngine) Tick(ctx context.Context, when time.Time) (domain.TickResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	exec := e.execAt(when)
	price, err := e.gateway.GetAveragePrice(ctx, exec)
	if err != nil {
		return nil, err
	}
	switch {
	case e.scheduled != nil:
		return e.monitorScheduled(ctx, exec, price)
	case e.pending != nil:
		return e.monitorActive(ctx, exec, price)
	default:
		return e.generate(ctx, exec, price)
	}
}

func (e *SignalEngine) generate(ctx context.Context, exec domain.ExecutionContext, price float64) (domain.TickResult, error) {
	idle := domain.IdleResult{Symbol: e.symbol, Price: price, At: exec.When}
	if e.stopped.Load() {
		return idle, nil
	}
	if !e.lastSignalAt.IsZero() && exec.When.Sub(e.lastSignalAt) < e.strategy.Interval().Duration() {
		return idle, nil
	}
	e.lastSignalAt = exec.When

	draft := e.callStrategy(ctx, exec)
	if draft == nil {
		return idle, nil
	}

	sig := e.buildSignal(draft, exec, price)
	if err := e.validator.Validate(sig, price); err != nil {
		e.logger.Info("Signal rejected by validation", zap.Error(err))
		return idle, nil
	}

	payload := e.riskPayload(sig, exec, price)
	if sig.IsScheduled {
		if !e.risk.CheckSignal(payload) {
			return idle, nil
		}
		if err := e.write(ctx, e.schedule, sig); err != nil {
			return nil, err
		}
		e.scheduled = sig
		e.logger.Info("Signal scheduled",
			zap.String("id", sig.ID),
			zap.String("position", string(sig.Position)),
			zap.Float64("price_open", sig.PriceOpen),
			zap.Float64("current_price", price))
		e.emit(domain.EventScheduled, sig, price, exec.When, nil)
		return domain.ScheduledResult{Signal: sig.Clone(), Price: price, At: exec.When}, nil
	}

	ok, err := e.risk.Admit(payload, func() error {
		if err := e.write(ctx, e.active, sig); err != nil {
			return err
		}
		e.risk.AddPosition(sig, exec.When)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return idle, nil
	}
	e.pending = sig
	e.logOpened(sig, price)
	e.emit(domain.EventOpened, sig, price, exec.When, nil)
	return domain.OpenedResult{Signal: sig.Clone(), Price: price, At: exec.When}, nil
}

type strategyOutcome struct {
	draft *domain.SignalDraft
	err   error
}

// callStrategy runs GetSignal under the configured timeout. Errors, panics
// and timeouts all mean no signal this tick.
func (e *SignalEngine) callStrategy(ctx context.Context, exec domain.ExecutionContext) *domain.SignalDraft {
	timeout := e.cfg.StrategyTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan strategyOutcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- strategyOutcome{err: fmt.Errorf("strategy panicked: %v", p)}
			}
		}()
		draft, err := e.strategy.GetSignal(ctx, exec, e.gateway.Reader(exec))
		done <- strategyOutcome{draft: draft, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			e.logger.Warn("Strategy failed", zap.Error(out.err))
			return nil
		}
		return out.draft
	case <-ctx.Done():
		e.logger.Warn("Strategy failed", zap.Error(domain.ErrStrategyTimeout), zap.Duration("timeout", timeout))
		return nil
	}
}

func (e *SignalEngine) buildSignal(d *domain.SignalDraft, exec domain.ExecutionContext, price float64) *domain.Signal {
	id := d.ID
	if id == "" {
		id = uuid.NewString()
	}
	sig := &domain.Signal{
		ID:                  id,
		Position:            d.Position,
		Note:                d.Note,
		PriceOpen:           price,
		PriceTakeProfit:     d.PriceTakeProfit,
		PriceStopLoss:       d.PriceStopLoss,
		MinuteEstimatedTime: d.MinuteEstimatedTime,
		ExchangeName:        e.method.ExchangeName,
		StrategyName:        e.method.StrategyName,
		Symbol:              e.symbol,
		ScheduledAt:         exec.When,
		PendingAt:           exec.When,
	}
	if d.PriceOpen != nil && !entryReached(d.Position, price, *d.PriceOpen) {
		sig.PriceOpen = *d.PriceOpen
		sig.IsScheduled = true
	}
	return sig
}

// entryReached reports whether price already sits in the entry zone.
func entryReached(side domain.Side, price, priceOpen float64) bool {
	if side == domain.SideShort {
		return price >= priceOpen
	}
	return price <= priceOpen
}

func stopBreached(sig *domain.Signal, price float64) bool {
	if sig.Position == domain.SideShort {
		return price >= sig.StopLoss()
	}
	return price <= sig.StopLoss()
}

func takeReached(sig *domain.Signal, price float64) bool {
	if sig.Position == domain.SideShort {
		return price <= sig.TakeProfit()
	}
	return price >= sig.TakeProfit()
}

func (e *SignalEngine) riskPayload(sig *domain.Signal, exec domain.ExecutionContext, price float64) domain.RiskCheckPayload {
	return domain.RiskCheckPayload{
		PendingSignal: sig.Clone(),
		Symbol:        e.symbol,
		StrategyName:  e.method.StrategyName,
		ExchangeName:  e.method.ExchangeName,
		CurrentPrice:  price,
		Timestamp:     exec.When,
		Backtest:      e.backtest,
	}
}

// monitorScheduled checks timeout, then stop-loss, then activation.
func (e *SignalEngine) monitorScheduled(ctx context.Context, exec domain.ExecutionContext, price float64) (domain.TickResult, error) {
	sig := e.scheduled
	await := time.Duration(e.cfg.ScheduleAwaitMinutes) * time.Minute
	if exec.When.Sub(sig.ScheduledAt) >= await {
		return e.cancelScheduled(ctx, exec, price, domain.CancelTimeout)
	}
	if stopBreached(sig, price) {
		return e.cancelScheduled(ctx, exec, price, domain.CancelStopLoss)
	}
	if !entryReached(sig.Position, price, sig.PriceOpen) {
		return domain.ScheduledResult{Signal: sig.Clone(), Price: price, At: exec.When}, nil
	}

	opened := sig.Clone()
	opened.IsScheduled = false
	opened.PendingAt = exec.When

	ok, err := e.risk.Admit(e.riskPayload(opened, exec, price), func() error {
		if err := e.write(ctx, e.active, opened); err != nil {
			return err
		}
		if err := e.write(ctx, e.schedule, nil); err != nil {
			return err
		}
		e.risk.AddPosition(opened, exec.When)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return e.cancelScheduled(ctx, exec, price, domain.CancelRiskRejected)
	}
	e.scheduled = nil
	e.pending = opened
	e.logOpened(opened, price)
	e.emit(domain.EventOpened, opened, price, exec.When, nil)
	return domain.OpenedResult{Signal: opened.Clone(), Price: price, At: exec.When}, nil
}

func (e *SignalEngine) cancelScheduled(ctx context.Context, exec domain.ExecutionContext, price float64, reason domain.CancelReason) (domain.TickResult, error) {
	sig := e.scheduled
	if err := e.write(ctx, e.schedule, nil); err != nil {
		return nil, err
	}
	e.scheduled = nil
	e.logger.Info("Scheduled signal cancelled",
		zap.String("id", sig.ID),
		zap.String("reason", string(reason)),
		zap.Float64("price", price))
	e.events.Publish(domain.Event{
		Type:      domain.EventCancelled,
		Signal:    sig.Clone(),
		Symbol:    e.symbol,
		Strategy:  e.method.StrategyName,
		Backtest:  e.backtest,
		Price:     price,
		Timestamp: exec.When,
		Reason:    string(reason),
	})
	return domain.CancelledResult{Signal: sig.Clone(), Price: price, At: exec.When, Reason: reason}, nil
}

// monitorActive checks stop-loss, take-profit and expiry, then applies
// milestones, breakeven and strategy adjustments to a working copy that is
// persisted before it replaces the live state.
func (e *SignalEngine) monitorActive(ctx context.Context, exec domain.ExecutionContext, price float64) (domain.TickResult, error) {
	sig := e.pending
	switch {
	case stopBreached(sig, price):
		return e.closeActive(ctx, exec, price, sig.StopLoss(), domain.CloseStopLoss)
	case takeReached(sig, price):
		return e.closeActive(ctx, exec, price, sig.TakeProfit(), domain.CloseTakeProfit)
	case !exec.When.Before(sig.ExpiresAt()):
		return e.closeActive(ctx, exec, price, price, domain.CloseTimeExpired)
	}

	adj := &signalAdjuster{engine: e, sig: sig.Clone(), price: price, exec: exec}
	adj.milestones()
	if e.cfg.BreakevenEnabled() {
		if _, err := adj.Breakeven(); err != nil {
			return nil, err
		}
	}
	if mgr, ok := e.strategy.(domain.SignalManager); ok {
		e.callManager(ctx, exec, mgr, adj)
	}
	if err := e.commit(ctx, adj); err != nil {
		return nil, err
	}

	current := e.pending
	toTP, toSL := progress(current, price)
	e.emit(domain.EventActive, current, price, exec.When, nil)
	return domain.ActiveResult{
		Signal:    current.Clone(),
		Price:     price,
		At:        exec.When,
		PercentTP: toTP,
		PercentSL: toSL,
	}, nil
}

func (e *SignalEngine) callManager(ctx context.Context, exec domain.ExecutionContext, mgr domain.SignalManager, adj *signalAdjuster) {
	timeout := e.cfg.StrategyTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	defer func() {
		if p := recover(); p != nil {
			e.logger.Warn("Signal manager panicked", zap.Any("panic", p))
		}
	}()
	if err := mgr.Manage(ctx, exec, adj.sig.Clone(), adj.price, adj); err != nil {
		e.logger.Warn("Signal manager failed", zap.Error(err))
	}
}

// commit persists the adjuster's working copy if it changed and then
// publishes the events it collected.
func (e *SignalEngine) commit(ctx context.Context, adj *signalAdjuster) error {
	if !adj.changed {
		return nil
	}
	if err := e.write(ctx, e.active, adj.sig); err != nil {
		return err
	}
	e.pending = adj.sig
	e.risk.AddPosition(adj.sig, adj.sig.PendingAt)
	for _, ev := range adj.events {
		ev.Signal = adj.sig.Clone()
		e.events.Publish(ev)
	}
	return nil
}

func (e *SignalEngine) closeActive(ctx context.Context, exec domain.ExecutionContext, price, fill float64, reason domain.CloseReason) (domain.TickResult, error) {
	sig := e.pending
	if err := e.write(ctx, e.active, nil); err != nil {
		return nil, err
	}
	e.pending = nil
	e.risk.RemovePosition(sig.StrategyName, sig.ExchangeName, sig.Symbol)

	pnl := signalPnL(sig, fill, e.cfg.FeePct, e.cfg.SlippagePct)
	e.logger.Info("Signal closed",
		zap.String("id", sig.ID),
		zap.String("reason", string(reason)),
		zap.Float64("price_open", sig.PriceOpen),
		zap.Float64("price_close", fill),
		zap.Float64("pnl_pct", pnl.Percentage))
	e.events.Publish(domain.Event{
		Type:      domain.EventClosed,
		Signal:    sig.Clone(),
		Symbol:    e.symbol,
		Strategy:  e.method.StrategyName,
		Backtest:  e.backtest,
		Price:     fill,
		Timestamp: exec.When,
		Reason:    string(reason),
		PnL:       &pnl,
	})
	return domain.ClosedResult{Signal: sig.Clone(), Price: fill, At: exec.When, Reason: reason, PnL: pnl}, nil
}

// Adjust applies manual adjustments to the active signal at price and
// persists them.
func (e *SignalEngine) Adjust(ctx context.Context, when time.Time, price float64, fn func(domain.Adjuster) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == nil {
		return domain.ErrNotActive
	}
	adj := &signalAdjuster{engine: e, sig: e.pending.Clone(), price: price, exec: e.execAt(when)}
	if err := fn(adj); err != nil {
		return err
	}
	return e.commit(ctx, adj)
}

// FastForward resolves the active signal from one-minute candles fetched in
// bulk, stepping minute by minute from when. It evaluates every step exactly
// like Tick would on a one-minute frame. It returns nil if the data ends
// before the signal closes; the caller then continues stepping normally.
func (e *SignalEngine) FastForward(ctx context.Context, when time.Time) (*domain.ClosedResult, time.Time, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == nil || e.scheduled != nil {
		return nil, when, nil
	}

	const step = time.Minute
	n := e.gateway.AvgCandles()
	steps := int(e.pending.ExpiresAt().Sub(when)/step) + 1
	if steps < 1 {
		steps = 1
	}
	first := domain.Interval1m.Align(when.Add(step)).Add(-time.Duration(n) * step)
	candles, err := e.gateway.FetchRange(ctx, e.symbol, domain.Interval1m, first, steps+n)
	if err != nil {
		return nil, when, err
	}

	last := when
	lo, hi := 0, 0
	for k := 1; k <= steps; k++ {
		at := when.Add(time.Duration(k) * step)
		end := domain.Interval1m.Align(at)
		since := end.Add(-time.Duration(n) * step).UnixMilli()
		for lo < len(candles) && candles[lo].Timestamp < since {
			lo++
		}
		for hi < len(candles) && candles[hi].Timestamp < end.UnixMilli() {
			hi++
		}
		hi = max(hi, lo)
		price, err := e.gateway.averagePrice(candles[lo:hi])
		if err != nil {
			break
		}
		res, err := e.monitorActive(ctx, e.execAt(at), price)
		if err != nil {
			return nil, last, err
		}
		last = at
		if closed, ok := res.(domain.ClosedResult); ok {
			return &closed, at, nil
		}
	}
	return nil, last, nil
}

func (e *SignalEngine) logOpened(sig *domain.Signal, price float64) {
	e.logger.Info("Signal opened",
		zap.String("id", sig.ID),
		zap.String("position", string(sig.Position)),
		zap.Float64("price_open", sig.PriceOpen),
		zap.Float64("take_profit", sig.PriceTakeProfit),
		zap.Float64("stop_loss", sig.PriceStopLoss),
		zap.Float64("current_price", price))
}

func (e *SignalEngine) emit(t domain.EventType, sig *domain.Signal, price float64, at time.Time, pnl *domain.PnL) {
	e.events.Publish(domain.Event{
		Type:      t,
		Signal:    sig.Clone(),
		Symbol:    e.symbol,
		Strategy:  e.method.StrategyName,
		Backtest:  e.backtest,
		Price:     price,
		Timestamp: at,
		PnL:       pnl,
	})
}

func (e *SignalEngine) read(ctx context.Context, store domain.SignalStore) (*domain.Signal, error) {
	if store == nil {
		return nil, nil
	}
	if err := store.WaitForInit(ctx); err != nil {
		return nil, asPersistence("init", e.key(), err)
	}
	sig, err := store.ReadValue(ctx, e.key())
	if err != nil {
		return nil, asPersistence("read", e.key(), err)
	}
	return sig, nil
}

func (e *SignalEngine) write(ctx context.Context, store domain.SignalStore, sig *domain.Signal) error {
	if store == nil {
		return nil
	}
	if err := store.WriteValue(ctx, e.key(), sig); err != nil {
		return asPersistence("write", e.key(), err)
	}
	return nil
}

func asPersistence(op string, key domain.StoreKey, err error) error {
	var pe *domain.PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &domain.PersistenceError{Op: op, Key: key, Err: err}
}

// signalAdjuster applies adjustments to a working copy of the active signal.
type signalAdjuster struct {
	engine  *SignalEngine
	sig     *domain.Signal
	price   float64
	exec    domain.ExecutionContext
	changed bool
	events  []domain.Event
}

func (a *signalAdjuster) record(t domain.EventType, level int) {
	a.changed = true
	a.events = append(a.events, domain.Event{
		Type:      t,
		Symbol:    a.sig.Symbol,
		Strategy:  a.sig.StrategyName,
		Backtest:  a.exec.Backtest,
		Price:     a.price,
		Timestamp: a.exec.When,
		Level:     level,
	})
}

func (a *signalAdjuster) milestones() {
	toTP, toSL := progress(a.sig, a.price)
	if profitPct(a.sig, a.price) > 0 {
		for _, level := range newMilestones(&a.sig.ProfitLevels, toTP) {
			a.record(domain.EventPartialProfit, level)
		}
	} else {
		for _, level := range newMilestones(&a.sig.LossLevels, toSL) {
			a.record(domain.EventPartialLoss, level)
		}
	}
}

func (a *signalAdjuster) TrailingStop(percentShift float64) (bool, error) {
	if !trailStopLoss(a.sig, percentShift, a.price) {
		return false, nil
	}
	a.engine.logger.Info("Trailing stop moved", zap.String("id", a.sig.ID), zap.Float64("stop_loss", a.sig.TrailingStopLoss))
	a.record(domain.EventTrailingStop, 0)
	return true, nil
}

func (a *signalAdjuster) TrailingTake(percentShift float64) (bool, error) {
	if !trailTakeProfit(a.sig, percentShift, a.price) {
		return false, nil
	}
	a.engine.logger.Info("Trailing take moved", zap.String("id", a.sig.ID), zap.Float64("take_profit", a.sig.TrailingTakeProfit))
	a.record(domain.EventTrailingTake, 0)
	return true, nil
}

func (a *signalAdjuster) PartialProfit(percentToClose float64) (bool, error) {
	return a.partial(domain.PartialProfit, percentToClose)
}

func (a *signalAdjuster) PartialLoss(percentToClose float64) (bool, error) {
	return a.partial(domain.PartialLoss, percentToClose)
}

func (a *signalAdjuster) partial(kind domain.PartialKind, percent float64) (bool, error) {
	ok, err := executePartial(a.sig, kind, percent, a.price, a.exec.When)
	if !ok || err != nil {
		return ok, err
	}
	a.changed = true
	a.engine.logger.Info("Partial close",
		zap.String("id", a.sig.ID),
		zap.String("kind", string(kind)),
		zap.Float64("percent", percent),
		zap.Float64("total_executed", a.sig.TotalExecuted))
	return true, nil
}

func (a *signalAdjuster) Breakeven() (bool, error) {
	wasApplied := a.sig.BreakevenApplied
	threshold := (a.engine.cfg.FeePct + a.engine.cfg.SlippagePct) * 2
	moved := applyBreakeven(a.sig, a.price, threshold)
	if moved {
		a.engine.logger.Info("Stop moved to breakeven", zap.String("id", a.sig.ID), zap.Float64("stop_loss", a.sig.PriceOpen))
		a.record(domain.EventBreakeven, 0)
	} else if a.sig.BreakevenApplied != wasApplied {
		a.changed = true
	}
	return moved, nil
}

var _ domain.Adjuster = (*signalAdjuster)(nil)

package usecase

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vitos/signal_engine/internal/domain"
	"go.uber.org/zap"
)

// RiskCallbacks are optional hooks fired by the evaluator.
type RiskCallbacks struct {
	OnRejected func(symbol string, payload domain.RiskCheckPayload, activePositionCount int, reason string, now time.Time)
	OnAllowed  func(symbol string, payload domain.RiskCheckPayload, now time.Time)
}

type positionKey struct {
	strategy string
	exchange string
	symbol   string
}

// RiskEvaluator runs an ordered fail-fast chain of rules over the portfolio
// of active positions. It is shared by all engines of one mode.
type RiskEvaluator struct {
	rules     []domain.RiskRule
	callbacks RiskCallbacks
	events    *EventBus
	logger    *zap.Logger

	admit     sync.Mutex
	mu        sync.RWMutex
	positions map[positionKey]domain.ActivePosition
}

func NewRiskEvaluator(rules []domain.RiskRule, callbacks RiskCallbacks, events *EventBus, logger *zap.Logger) *RiskEvaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RiskEvaluator{
		rules:     rules,
		callbacks: callbacks,
		events:    events,
		logger:    logger,
		positions: make(map[positionKey]domain.ActivePosition),
	}
}

// CheckSignal fills the portfolio view of payload and runs every rule.
// It returns false at the first rule that rejects.
func (r *RiskEvaluator) CheckSignal(payload domain.RiskCheckPayload) bool {
	payload.ActivePositions = r.ActivePositions()
	payload.ActivePositionCount = len(payload.ActivePositions)

	for _, rule := range r.rules {
		if err := runRule(rule, payload); err != nil {
			reason := err.Error()
			var rej *domain.RiskRejection
			if errors.As(err, &rej) {
				reason = rej.Reason
			}
			r.reject(payload, rule.Name(), reason)
			return false
		}
	}

	if r.callbacks.OnAllowed != nil {
		r.callbacks.OnAllowed(payload.Symbol, payload, payload.Timestamp)
	}
	return true
}

// Admit runs CheckSignal and, when allowed, commit as one step, so
// concurrent engines cannot both pass a capacity rule.
func (r *RiskEvaluator) Admit(payload domain.RiskCheckPayload, commit func() error) (bool, error) {
	r.admit.Lock()
	defer r.admit.Unlock()
	if !r.CheckSignal(payload) {
		return false, nil
	}
	if err := commit(); err != nil {
		return false, err
	}
	return true, nil
}

func runRule(rule domain.RiskRule, payload domain.RiskCheckPayload) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("rule panicked: %v", p)
		}
	}()
	return rule.Validate(payload)
}

func (r *RiskEvaluator) reject(payload domain.RiskCheckPayload, rule, reason string) {
	r.logger.Info("Signal rejected by risk",
		zap.String("symbol", payload.Symbol),
		zap.String("strategy", payload.StrategyName),
		zap.String("rule", rule),
		zap.String("reason", reason),
		zap.Int("active_positions", payload.ActivePositionCount))

	if r.callbacks.OnRejected != nil {
		r.callbacks.OnRejected(payload.Symbol, payload, payload.ActivePositionCount, reason, payload.Timestamp)
	}
	r.events.Publish(domain.Event{
		Type:      domain.EventRiskRejected,
		Signal:    payload.PendingSignal.Clone(),
		Symbol:    payload.Symbol,
		Strategy:  payload.StrategyName,
		Backtest:  payload.Backtest,
		Price:     payload.CurrentPrice,
		Timestamp: payload.Timestamp,
		Reason:    reason,
	})
}

// AddPosition records an opened signal in the portfolio view.
func (r *RiskEvaluator) AddPosition(sig *domain.Signal, openedAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.positions[positionKey{sig.StrategyName, sig.ExchangeName, sig.Symbol}] = domain.ActivePosition{
		Signal:       sig.Clone(),
		StrategyName: sig.StrategyName,
		ExchangeName: sig.ExchangeName,
		Symbol:       sig.Symbol,
		OpenedAt:     openedAt,
	}
}

// RemovePosition drops a closed signal from the portfolio view.
func (r *RiskEvaluator) RemovePosition(strategyName, exchangeName, symbol string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.positions, positionKey{strategyName, exchangeName, symbol})
}

// ActivePositions returns a snapshot ordered by open time.
func (r *RiskEvaluator) ActivePositions() []domain.ActivePosition {
	r.mu.RLock()
	out := make([]domain.ActivePosition, 0, len(r.positions))
	for _, p := range r.positions {
		out = append(out, p)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].OpenedAt.Equal(out[j].OpenedAt) {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].OpenedAt.Before(out[j].OpenedAt)
	})
	return out
}

// ActivePositionCount returns the number of open positions.
func (r *RiskEvaluator) ActivePositionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.positions)
}

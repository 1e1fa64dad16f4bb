package usecase_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/signal_engine/internal/config"
	"github.com/vitos/signal_engine/internal/domain"
	"github.com/vitos/signal_engine/internal/usecase"
)

func pendingFor(symbol, strategy string) domain.RiskCheckPayload {
	sig := validSignal()
	sig.Symbol, sig.StrategyName = symbol, strategy
	return domain.RiskCheckPayload{
		PendingSignal: sig,
		Symbol:        symbol,
		StrategyName:  strategy,
		ExchangeName:  "bybit",
		CurrentPrice:  50000,
		Timestamp:     t0,
	}
}

func TestRiskEvaluator_MaxConcurrentPositions(t *testing.T) {
	var rejected []string
	bus := usecase.NewEventBus(nil)
	events := &recorder{}
	bus.Subscribe(events.record)

	r := usecase.NewRiskEvaluator(
		[]domain.RiskRule{usecase.MaxConcurrentPositions(2)},
		usecase.RiskCallbacks{OnRejected: func(symbol string, _ domain.RiskCheckPayload, count int, reason string, _ time.Time) {
			rejected = append(rejected, reason)
			assert.Equal(t, 2, count)
		}},
		bus, nil)

	assert.True(t, r.CheckSignal(pendingFor("BTCUSDT", "a")))
	r.AddPosition(pendingFor("BTCUSDT", "a").PendingSignal, t0)
	r.AddPosition(pendingFor("ETHUSDT", "a").PendingSignal, t0.Add(time.Minute))

	assert.False(t, r.CheckSignal(pendingFor("SOLUSDT", "a")))
	require.Len(t, rejected, 1)
	assert.Equal(t, "2 positions open, limit 2", rejected[0])
	assert.Equal(t, []domain.EventType{domain.EventRiskRejected}, events.types())

	r.RemovePosition("a", "bybit", "ETHUSDT")
	assert.True(t, r.CheckSignal(pendingFor("SOLUSDT", "a")))
}

func TestRiskEvaluator_FailFastOrder(t *testing.T) {
	var called []string
	rule := func(name string, reject bool) domain.RiskRule {
		return usecase.NewRule(name, func(domain.RiskCheckPayload) error {
			called = append(called, name)
			if reject {
				return &domain.RiskRejection{Rule: name, Reason: name + " says no"}
			}
			return nil
		})
	}
	r := usecase.NewRiskEvaluator([]domain.RiskRule{rule("first", false), rule("second", true), rule("third", false)}, usecase.RiskCallbacks{}, nil, nil)

	assert.False(t, r.CheckSignal(pendingFor("BTCUSDT", "a")))
	assert.Equal(t, []string{"first", "second"}, called)
}

func TestRiskEvaluator_PanickingRuleRejects(t *testing.T) {
	boom := usecase.NewRule("boom", func(domain.RiskCheckPayload) error { panic("nil map") })
	r := usecase.NewRiskEvaluator([]domain.RiskRule{boom}, usecase.RiskCallbacks{}, nil, nil)
	assert.False(t, r.CheckSignal(pendingFor("BTCUSDT", "a")))
}

func TestRiskEvaluator_PayloadSnapshot(t *testing.T) {
	var seen domain.RiskCheckPayload
	spy := usecase.NewRule("spy", func(p domain.RiskCheckPayload) error {
		seen = p
		return nil
	})
	allowed := 0
	r := usecase.NewRiskEvaluator([]domain.RiskRule{spy}, usecase.RiskCallbacks{
		OnAllowed: func(string, domain.RiskCheckPayload, time.Time) { allowed++ },
	}, nil, nil)
	r.AddPosition(pendingFor("ETHUSDT", "b").PendingSignal, t0.Add(time.Minute))
	r.AddPosition(pendingFor("BTCUSDT", "a").PendingSignal, t0)

	assert.True(t, r.CheckSignal(pendingFor("SOLUSDT", "a")))
	assert.Equal(t, 1, allowed)
	assert.Equal(t, 2, seen.ActivePositionCount)
	require.Len(t, seen.ActivePositions, 2)
	assert.Equal(t, "BTCUSDT", seen.ActivePositions[0].Symbol)
	assert.Equal(t, "ETHUSDT", seen.ActivePositions[1].Symbol)
}

func TestRiskRules_PerSymbolAndRiskReward(t *testing.T) {
	r := usecase.NewRiskEvaluator(usecase.RulesFromConfig(config.Risk{MaxPositionsPerSymbol: 1, MinRiskReward: 1.5}), usecase.RiskCallbacks{}, nil, nil)

	// 1000 reward for 1000 risk.
	assert.False(t, r.CheckSignal(pendingFor("BTCUSDT", "a")))

	p := pendingFor("BTCUSDT", "a")
	p.PendingSignal.PriceTakeProfit = 52000
	assert.True(t, r.CheckSignal(p))

	r.AddPosition(p.PendingSignal, t0)
	other := pendingFor("BTCUSDT", "b")
	other.PendingSignal.PriceTakeProfit = 52000
	assert.False(t, r.CheckSignal(other))
}

func TestRiskEvaluator_Admit(t *testing.T) {
	r := usecase.NewRiskEvaluator([]domain.RiskRule{usecase.MaxConcurrentPositions(1)}, usecase.RiskCallbacks{}, nil, nil)

	committed := 0
	commit := func(sig *domain.Signal) func() error {
		return func() error {
			committed++
			r.AddPosition(sig, t0)
			return nil
		}
	}
	first := pendingFor("BTCUSDT", "a")
	ok, err := r.Admit(first, commit(first.PendingSignal))
	require.NoError(t, err)
	assert.True(t, ok)

	second := pendingFor("ETHUSDT", "a")
	ok, err = r.Admit(second, commit(second.PendingSignal))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, committed)
}

package usecase

import (
	"sort"
	"sync"

	"github.com/vitos/signal_engine/internal/config"
	"github.com/vitos/signal_engine/internal/domain"
	"go.uber.org/zap"
)

// Components are the collaborators shared by every engine of a process.
// Each mode gets its own risk evaluator; only live engines persist.
type Components struct {
	Gateway       *MarketGateway
	Events        *EventBus
	Config        config.Engine
	Logger        *zap.Logger
	LiveRisk      *RiskEvaluator
	BacktestRisk  *RiskEvaluator
	ActiveStore   domain.SignalStore
	ScheduleStore domain.SignalStore
	FrameName     string
}

// Build creates an engine for strategy on symbol.
func (c Components) Build(strategy domain.Strategy, symbol string, backtest bool) *SignalEngine {
	deps := EngineDeps{
		Strategy: strategy,
		Method: domain.MethodContext{
			StrategyName: strategy.Name(),
			ExchangeName: c.Gateway.ExchangeName(),
			FrameName:    c.FrameName,
		},
		Symbol:    symbol,
		Backtest:  backtest,
		Gateway:   c.Gateway,
		Validator: NewSignalValidator(c.Config),
		Risk:      c.LiveRisk,
		Events:    c.Events,
		Config:    c.Config,
		Logger:    c.Logger,
	}
	if backtest {
		deps.Risk = c.BacktestRisk
	} else {
		deps.ActiveStore = c.ActiveStore
		deps.ScheduleStore = c.ScheduleStore
	}
	return NewSignalEngine(deps)
}

type registryKey struct {
	strategy string
	symbol   string
	backtest bool
}

// EngineRegistry memoizes one engine per (strategy, symbol, mode).
type EngineRegistry struct {
	components Components

	mu      sync.Mutex
	engines map[registryKey]*SignalEngine
}

func NewEngineRegistry(components Components) *EngineRegistry {
	return &EngineRegistry{
		components: components,
		engines:    make(map[registryKey]*SignalEngine),
	}
}

// Get returns the engine for the key, creating it on first use.
func (r *EngineRegistry) Get(strategy domain.Strategy, symbol string, backtest bool) *SignalEngine {
	key := registryKey{strategy: strategy.Name(), symbol: symbol, backtest: backtest}
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.engines[key]; ok {
		return e
	}
	e := r.components.Build(strategy, symbol, backtest)
	r.engines[key] = e
	return e
}

// Lookup returns a registered engine without creating one.
func (r *EngineRegistry) Lookup(strategyName, symbol string, backtest bool) (*SignalEngine, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.engines[registryKey{strategy: strategyName, symbol: symbol, backtest: backtest}]
	return e, ok
}

// Clear forgets an engine so the next Get starts from a fresh state.
func (r *EngineRegistry) Clear(strategyName, symbol string, backtest bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.engines, registryKey{strategy: strategyName, symbol: symbol, backtest: backtest})
}

// Engines lists registered engines ordered by strategy, symbol and mode.
func (r *EngineRegistry) Engines() []*SignalEngine {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]registryKey, 0, len(r.engines))
	for k := range r.engines {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].strategy != keys[j].strategy {
			return keys[i].strategy < keys[j].strategy
		}
		if keys[i].symbol != keys[j].symbol {
			return keys[i].symbol < keys[j].symbol
		}
		return !keys[i].backtest && keys[j].backtest
	})
	out := make([]*SignalEngine, 0, len(keys))
	for _, k := range keys {
		out = append(out, r.engines[k])
	}
	return out
}

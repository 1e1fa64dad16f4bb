package usecase_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vitos/signal_engine/internal/config"
	"github.com/vitos/signal_engine/internal/domain"
	"github.com/vitos/signal_engine/internal/usecase"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// segment sets the price from From (minutes after t0) onwards.
type segment struct {
	From  int
	Price float64
}

// stepPrice returns a flat piecewise price path.
func stepPrice(segments ...segment) func(time.Time) float64 {
	return func(t time.Time) float64 {
		minute := int(t.Sub(t0) / time.Minute)
		p := segments[0].Price
		for _, s := range segments {
			if minute >= s.From {
				p = s.Price
			}
		}
		return p
	}
}

// MockCandleSource generates flat candles from a price function.
type MockCandleSource struct {
	mu    sync.Mutex
	Price func(time.Time) float64
	End   time.Time
	Fail  int
	Calls int
}

func (m *MockCandleSource) FetchCandles(ctx context.Context, symbol string, interval domain.Interval, since time.Time, limit int) ([]domain.Candle, error) {
	m.mu.Lock()
	m.Calls++
	if m.Fail > 0 {
		m.Fail--
		m.mu.Unlock()
		return nil, errors.New("exchange unavailable")
	}
	m.mu.Unlock()

	step := interval.Duration()
	out := make([]domain.Candle, 0, limit)
	for i := 0; i < limit; i++ {
		ts := since.Add(time.Duration(i) * step)
		if !m.End.IsZero() && !ts.Before(m.End) {
			break
		}
		p := m.Price(ts)
		out = append(out, domain.Candle{Timestamp: ts.UnixMilli(), Open: p, High: p, Low: p, Close: p, Volume: 1})
	}
	return out, nil
}

// MockStore is an in-memory SignalStore that can be told to fail writes.
type MockStore struct {
	mu        sync.Mutex
	data      map[domain.StoreKey]*domain.Signal
	FailWrite bool
	Writes    int
}

func NewMockStore() *MockStore {
	return &MockStore{data: make(map[domain.StoreKey]*domain.Signal)}
}

func (m *MockStore) WaitForInit(ctx context.Context) error { return nil }

func (m *MockStore) HasValue(ctx context.Context, key domain.StoreKey) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok, nil
}

func (m *MockStore) ReadValue(ctx context.Context, key domain.StoreKey) (*domain.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key].Clone(), nil
}

func (m *MockStore) WriteValue(ctx context.Context, key domain.StoreKey, value *domain.Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrite {
		return errors.New("disk full")
	}
	m.Writes++
	if value == nil {
		delete(m.data, key)
		return nil
	}
	m.data[key] = value.Clone()
	return nil
}

// MockStrategy returns drafts from a callback.
type MockStrategy struct {
	name     string
	interval domain.Interval
	next     func(exec domain.ExecutionContext) (*domain.SignalDraft, error)
	manage   func(adj domain.Adjuster)
}

func (m *MockStrategy) Name() string { return m.name }

func (m *MockStrategy) Interval() domain.Interval { return m.interval }

func (m *MockStrategy) GetSignal(ctx context.Context, exec domain.ExecutionContext, candles domain.CandleReader) (*domain.SignalDraft, error) {
	if m.next == nil {
		return nil, nil
	}
	return m.next(exec)
}

// once emits draft on the first call and nothing afterwards.
func once(draft domain.SignalDraft) func(domain.ExecutionContext) (*domain.SignalDraft, error) {
	fired := false
	return func(domain.ExecutionContext) (*domain.SignalDraft, error) {
		if fired {
			return nil, nil
		}
		fired = true
		d := draft
		return &d, nil
	}
}

// ManagedStrategy adds a SignalManager hook to MockStrategy.
type ManagedStrategy struct {
	*MockStrategy
}

func (m ManagedStrategy) Manage(ctx context.Context, exec domain.ExecutionContext, signal *domain.Signal, price float64, adj domain.Adjuster) error {
	if m.manage != nil {
		m.manage(adj)
	}
	return nil
}

func ptr(v float64) *float64 { return &v }

func testConfig() *config.Root {
	cfg := config.Default()
	cfg.Gateway.RetryDelay = time.Millisecond
	cfg.Engine.StrategyTimeout = time.Second
	return cfg
}

type recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recorder) record(ev domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []domain.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func (r *recorder) count(t domain.EventType) int {
	n := 0
	for _, got := range r.types() {
		if got == t {
			n++
		}
	}
	return n
}

type harness struct {
	engine   *usecase.SignalEngine
	source   *MockCandleSource
	active   *MockStore
	schedule *MockStore
	risk     *usecase.RiskEvaluator
	events   *recorder
	bus      *usecase.EventBus
	cfg      *config.Root
}

type harnessOption func(*usecase.EngineDeps)

func withRules(rules ...domain.RiskRule) harnessOption {
	return func(d *usecase.EngineDeps) {
		d.Risk = usecase.NewRiskEvaluator(rules, usecase.RiskCallbacks{}, d.Events, nil)
	}
}

func backtestMode() harnessOption {
	return func(d *usecase.EngineDeps) {
		d.Backtest = true
		d.ActiveStore = nil
		d.ScheduleStore = nil
	}
}

func newHarness(t *testing.T, strategy domain.Strategy, source *MockCandleSource, opts ...harnessOption) *harness {
	t.Helper()
	cfg := testConfig()
	h := &harness{
		source:   source,
		active:   NewMockStore(),
		schedule: NewMockStore(),
		events:   &recorder{},
		bus:      usecase.NewEventBus(nil),
		cfg:      cfg,
	}
	h.bus.Subscribe(h.events.record)
	gateway := usecase.NewMarketGateway("bybit", source, nil, cfg.Gateway, cfg.Engine.AvgPriceCandles, nil)
	deps := usecase.EngineDeps{
		Strategy:      strategy,
		Symbol:        "BTCUSDT",
		Gateway:       gateway,
		ActiveStore:   h.active,
		ScheduleStore: h.schedule,
		Events:        h.bus,
		Config:        cfg.Engine,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	if deps.Risk == nil {
		deps.Risk = usecase.NewRiskEvaluator(nil, usecase.RiskCallbacks{}, h.bus, nil)
	}
	h.risk = deps.Risk
	if s, ok := deps.ActiveStore.(*MockStore); ok {
		h.active = s
	}
	if s, ok := deps.ScheduleStore.(*MockStore); ok {
		h.schedule = s
	}
	h.engine = usecase.NewSignalEngine(deps)
	return h
}

func (h *harness) tick(t *testing.T, minute int) domain.TickResult {
	t.Helper()
	res, err := h.engine.Tick(context.Background(), t0.Add(time.Duration(minute)*time.Minute))
	require.NoError(t, err)
	return res
}

func withEngine(fn func(*config.Engine)) harnessOption {
	return func(d *usecase.EngineDeps) {
		fn(&d.Config)
	}
}

func withStores(active, schedule *MockStore) harnessOption {
	return func(d *usecase.EngineDeps) {
		d.ActiveStore = active
		d.ScheduleStore = schedule
	}
}

// newGate rejects every signal while blocked is set.
func newGate(blocked *atomic.Bool) domain.RiskRule {
	return usecase.NewRule("gate", func(domain.RiskCheckPayload) error {
		if blocked.Load() {
			return &domain.RiskRejection{Rule: "gate", Reason: "trading paused"}
		}
		return nil
	})
}

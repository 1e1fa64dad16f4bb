package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/signal_engine/internal/domain"
	"github.com/vitos/signal_engine/internal/usecase"
)

type MockTradeRepository struct {
	mu     sync.Mutex
	Trades []*domain.Trade
	Err    error
}

func (m *MockTradeRepository) SaveTrade(ctx context.Context, trade *domain.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Trades = append(m.Trades, trade)
	return nil
}

func (m *MockTradeRepository) ListTrades(ctx context.Context, limit int) ([]*domain.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Trades, nil
}

func TestTradeJournal_RecordsClosedSignals(t *testing.T) {
	repo := &MockTradeRepository{}
	strategy := &MockStrategy{name: "breakout", interval: domain.Interval1m, next: once(longDraft(51000, 49000, 60))}
	source := &MockCandleSource{Price: stepPrice(segment{0, 50000}, segment{10, 51500})}
	h := newHarness(t, strategy, source)
	usecase.NewTradeJournal(repo, nil).Attach(h.bus)

	h.tick(t, 5)
	res := h.tick(t, 20)
	require.Equal(t, domain.ActionClosed, res.Action())

	require.Len(t, repo.Trades, 1)
	trade := repo.Trades[0]
	closed := res.(domain.ClosedResult)
	assert.Equal(t, closed.Signal.ID, trade.SignalID)
	assert.Equal(t, domain.CloseTakeProfit, trade.Reason)
	assert.Equal(t, domain.SideLong, trade.Position)
	assert.Equal(t, closed.PnL.Percentage, trade.PnLPct)
	assert.Equal(t, "BTCUSDT", trade.Symbol)
}

func TestTradeJournal_SaveErrorDoesNotBreakEngine(t *testing.T) {
	repo := &MockTradeRepository{Err: errors.New("disk full")}
	strategy := &MockStrategy{name: "breakout", interval: domain.Interval1m, next: once(longDraft(51000, 49000, 60))}
	source := &MockCandleSource{Price: stepPrice(segment{0, 50000}, segment{10, 51500})}
	h := newHarness(t, strategy, source)
	usecase.NewTradeJournal(repo, nil).Attach(h.bus)

	h.tick(t, 5)
	res := h.tick(t, 20)
	assert.Equal(t, domain.ActionClosed, res.Action())
	assert.Empty(t, repo.Trades)
}

package usecase

import (
	"context"
	"time"

	"github.com/vitos/signal_engine/internal/domain"
	"go.uber.org/zap"
)

// TradeJournal records every closed signal in a TradeRepository.
type TradeJournal struct {
	repo    domain.TradeRepository
	logger  *zap.Logger
	timeout time.Duration
}

func NewTradeJournal(repo domain.TradeRepository, logger *zap.Logger) *TradeJournal {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TradeJournal{repo: repo, logger: logger, timeout: 5 * time.Second}
}

// Attach subscribes the journal to bus and returns the unsubscribe func.
func (j *TradeJournal) Attach(bus *EventBus) func() {
	return bus.Subscribe(j.handle)
}

func (j *TradeJournal) handle(ev domain.Event) {
	if ev.Type != domain.EventClosed || ev.Signal == nil || ev.PnL == nil {
		return
	}
	trade := &domain.Trade{
		SignalID:   ev.Signal.ID,
		Strategy:   ev.Strategy,
		Exchange:   ev.Signal.ExchangeName,
		Symbol:     ev.Symbol,
		Position:   ev.Signal.Position,
		PriceOpen:  ev.PnL.PriceOpen,
		PriceClose: ev.PnL.PriceClose,
		PnLPct:     ev.PnL.Percentage,
		Reason:     domain.CloseReason(ev.Reason),
		Backtest:   ev.Backtest,
		OpenedAt:   ev.Signal.PendingAt,
		ClosedAt:   ev.Timestamp,
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	if err := j.repo.SaveTrade(ctx, trade); err != nil {
		j.logger.Error("Failed to save trade",
			zap.String("id", trade.SignalID),
			zap.String("symbol", trade.Symbol),
			zap.Error(err))
	}
}

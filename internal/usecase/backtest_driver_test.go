package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/signal_engine/internal/domain"
	"github.com/vitos/signal_engine/internal/usecase"
)

func TestTimeframe(t *testing.T) {
	frame, err := usecase.Timeframe(t0.Add(30*time.Second), t0.Add(5*time.Minute), domain.Interval1m)
	require.NoError(t, err)
	require.Len(t, frame, 4)
	assert.Equal(t, t0.Add(time.Minute), frame[0])
	assert.Equal(t, t0.Add(4*time.Minute), frame[3])

	_, err = usecase.Timeframe(t0, t0, domain.Interval1m)
	assert.Error(t, err)
	_, err = usecase.Timeframe(t0, t0.Add(time.Hour), domain.Interval("7m"))
	assert.Error(t, err)
}

func rising(ts time.Time) float64 {
	return 100 + 0.05*ts.Sub(t0).Minutes()
}

func TestBacktestDriver_SkipsAheadAfterClose(t *testing.T) {
	h := newHarness(t, &MockStrategy{name: "s", interval: domain.Interval1m, next: once(longDraft(103.01, 98, 240))},
		&MockCandleSource{Price: rising}, backtestMode())
	frame, err := usecase.Timeframe(t0.Add(5*time.Minute), t0.Add(120*time.Minute), domain.Interval1m)
	require.NoError(t, err)

	var results []domain.TickResult
	for res, err := range usecase.NewBacktestDriver(h.engine, nil).Run(context.Background(), frame) {
		require.NoError(t, err)
		results = append(results, res)
	}

	require.GreaterOrEqual(t, len(results), 3)
	assert.Equal(t, domain.ActionOpened, results[0].Action())

	closed, ok := results[1].(domain.ClosedResult)
	require.True(t, ok, "expected closed, got %s", results[1].Action())
	assert.Equal(t, domain.CloseTakeProfit, closed.Reason)
	assert.Equal(t, t0.Add(64*time.Minute), closed.At)

	idle, ok := results[2].(domain.IdleResult)
	require.True(t, ok)
	assert.Equal(t, t0.Add(65*time.Minute), idle.At)
	assert.Len(t, results, 2+(120-65))

	summary := usecase.Summarize(results)
	assert.Equal(t, 1, summary.Trades)
	assert.Equal(t, 1, summary.Wins)
	assert.Equal(t, 1, summary.ByReason[domain.CloseTakeProfit])
}

func TestBacktestDriver_EarlyTermination(t *testing.T) {
	source := &MockCandleSource{Price: rising}
	h := newHarness(t, &MockStrategy{name: "s", interval: domain.Interval1m}, source, backtestMode())
	frame, err := usecase.Timeframe(t0.Add(5*time.Minute), t0.Add(120*time.Minute), domain.Interval1m)
	require.NoError(t, err)

	n := 0
	for range usecase.NewBacktestDriver(h.engine, nil).Run(context.Background(), frame) {
		n++
		if n == 3 {
			break
		}
	}
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, source.Calls)
}

func TestBacktestDriver_StopsOnError(t *testing.T) {
	source := &MockCandleSource{Price: rising, Fail: 100}
	h := newHarness(t, &MockStrategy{name: "s", interval: domain.Interval1m}, source, backtestMode())
	frame, err := usecase.Timeframe(t0.Add(5*time.Minute), t0.Add(10*time.Minute), domain.Interval1m)
	require.NoError(t, err)

	var errs []error
	for res, err := range usecase.NewBacktestDriver(h.engine, nil).Run(context.Background(), frame) {
		assert.Nil(t, res)
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	var dse *domain.DataSourceError
	assert.True(t, errors.As(errs[0], &dse))
}

func TestBacktestDriver_ContinuesWhenFastForwardRunsOutOfData(t *testing.T) {
	source := &MockCandleSource{Price: stepPrice(segment{0, 100}), End: t0.Add(20 * time.Minute)}
	h := newHarness(t, &MockStrategy{name: "s", interval: domain.Interval1m, next: once(longDraft(105, 95, 120))}, source, backtestMode())
	frame, err := usecase.Timeframe(t0.Add(5*time.Minute), t0.Add(40*time.Minute), domain.Interval1m)
	require.NoError(t, err)

	var actions []domain.Action
	var last error
	for res, err := range usecase.NewBacktestDriver(h.engine, nil).Run(context.Background(), frame) {
		if err != nil {
			last = err
			break
		}
		actions = append(actions, res.Action())
	}
	assert.Equal(t, []domain.Action{domain.ActionOpened}, actions)
	assert.Error(t, last, "ticks past the end of data cannot be priced")
}

func TestSummarize(t *testing.T) {
	results := []domain.TickResult{
		domain.IdleResult{},
		domain.ClosedResult{Reason: domain.CloseTakeProfit, PnL: domain.PnL{Percentage: 2}},
		domain.ClosedResult{Reason: domain.CloseStopLoss, PnL: domain.PnL{Percentage: -1}},
		domain.ClosedResult{Reason: domain.CloseStopLoss, PnL: domain.PnL{Percentage: -1.5}},
		domain.CancelledResult{Reason: domain.CancelTimeout},
		domain.ClosedResult{Reason: domain.CloseTimeExpired, PnL: domain.PnL{Percentage: 3}},
	}
	s := usecase.Summarize(results)
	assert.Equal(t, 4, s.Trades)
	assert.Equal(t, 2, s.Wins)
	assert.Equal(t, 2, s.Losses)
	assert.Equal(t, 1, s.Cancelled)
	assert.InDelta(t, 50, s.WinRate, 1e-9)
	assert.InDelta(t, 2.5, s.TotalPnL, 1e-9)
	assert.InDelta(t, 0.625, s.AveragePnL, 1e-9)
	assert.Equal(t, 3.0, s.BestPnL)
	assert.Equal(t, -1.5, s.WorstPnL)
	assert.InDelta(t, 2.5, s.MaxDrawdown, 1e-9)
	assert.Equal(t, 2, s.ByReason[domain.CloseStopLoss])
}

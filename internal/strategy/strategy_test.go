package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/signal_engine/internal/config"
	"github.com/vitos/signal_engine/internal/domain"
)

type MockReader struct {
	Candles []domain.Candle
	Price   float64
}

func (m *MockReader) GetCandles(ctx context.Context, interval domain.Interval, limit int) ([]domain.Candle, error) {
	if len(m.Candles) > limit {
		return m.Candles[len(m.Candles)-limit:], nil
	}
	return m.Candles, nil
}

func (m *MockReader) GetAveragePrice(ctx context.Context) (float64, error) {
	return m.Price, nil
}

// bars builds candles with a 1% range around each close.
func bars(closes ...float64) []domain.Candle {
	out := make([]domain.Candle, len(closes))
	for i, c := range closes {
		out[i] = domain.Candle{Timestamp: int64(i) * 60000, Open: c, High: c * 1.005, Low: c * 0.995, Close: c, Volume: 1}
	}
	return out
}

type MockAdjuster struct {
	Shifts []float64
}

func (m *MockAdjuster) TrailingStop(shift float64) (bool, error) {
	m.Shifts = append(m.Shifts, shift)
	return true, nil
}
func (m *MockAdjuster) TrailingTake(float64) (bool, error)  { return false, nil }
func (m *MockAdjuster) PartialProfit(float64) (bool, error) { return false, nil }
func (m *MockAdjuster) PartialLoss(float64) (bool, error)   { return false, nil }
func (m *MockAdjuster) Breakeven() (bool, error)            { return false, nil }

var exec = domain.ExecutionContext{Symbol: "BTCUSDT", When: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}

func TestBuild(t *testing.T) {
	s, err := Build(config.Strategy{Name: "breakout", Interval: "15m"})
	require.NoError(t, err)
	assert.Equal(t, BreakoutName, s.Name())
	assert.Equal(t, domain.Interval15m, s.Interval())

	s, err = Build(config.Strategy{Name: "level"})
	require.NoError(t, err)
	assert.Equal(t, domain.Interval5m, s.Interval())

	_, err = Build(config.Strategy{Name: "martingale"})
	assert.Error(t, err)
	_, err = Build(config.Strategy{Name: "breakout", Interval: "7m"})
	assert.Error(t, err)
}

func TestBreakout_Long(t *testing.T) {
	b := NewBreakout(domain.Interval5m, Params{"lookback": 3})
	r := &MockReader{Candles: bars(100, 100, 100, 102), Price: 102}

	d, err := b.GetSignal(context.Background(), exec, r)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, domain.SideLong, d.Position)
	assert.Nil(t, d.PriceOpen)
	assert.InDelta(t, 104.04, d.PriceTakeProfit, 1e-9)
	assert.InDelta(t, 100.98, d.PriceStopLoss, 1e-9)
	assert.Equal(t, 240, d.MinuteEstimatedTime)
}

func TestBreakout_Short(t *testing.T) {
	b := NewBreakout(domain.Interval5m, Params{"lookback": 3})
	r := &MockReader{Candles: bars(100, 100, 100, 98), Price: 98}

	d, err := b.GetSignal(context.Background(), exec, r)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, domain.SideShort, d.Position)
	assert.Less(t, d.PriceTakeProfit, 98.0)
	assert.Greater(t, d.PriceStopLoss, 98.0)
}

func TestBreakout_NoSignalInsideRange(t *testing.T) {
	b := NewBreakout(domain.Interval5m, Params{"lookback": 3})
	d, err := b.GetSignal(context.Background(), exec, &MockReader{Candles: bars(100, 101, 100, 100.2), Price: 100})
	require.NoError(t, err)
	assert.Nil(t, d)

	// Not enough history.
	d, err = b.GetSignal(context.Background(), exec, &MockReader{Candles: bars(100, 105), Price: 105})
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestBreakout_ManageTrailsInProfit(t *testing.T) {
	b := NewBreakout(domain.Interval5m, Params{"trail_trigger_pct": 1, "trail_shift_pct": -0.4})
	sig := &domain.Signal{Position: domain.SideShort, PriceOpen: 100}
	adj := &MockAdjuster{}

	require.NoError(t, b.Manage(context.Background(), exec, sig, 99.5, adj))
	assert.Empty(t, adj.Shifts)

	require.NoError(t, b.Manage(context.Background(), exec, sig, 98.9, adj))
	assert.Equal(t, []float64{-0.4}, adj.Shifts)
}

func TestLevel_LongFromSupport(t *testing.T) {
	l := NewLevel(domain.Interval5m, Params{"lookback": 4})
	// Lows reach 99.5 * 0.995, highs 104 * 1.005; price sits near the lows.
	r := &MockReader{Candles: bars(104, 102, 99.5, 100.5), Price: 100.5}

	d, err := l.GetSignal(context.Background(), exec, r)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, domain.SideLong, d.Position)
	support := 99.5 * 0.995
	require.NotNil(t, d.PriceOpen)
	assert.InDelta(t, support*1.003, *d.PriceOpen, 1e-9)
	assert.InDelta(t, support*0.99, d.PriceStopLoss, 1e-9)
	assert.InDelta(t, support*1.003*1.02, d.PriceTakeProfit, 1e-9)
}

func TestLevel_ShortFromResistance(t *testing.T) {
	l := NewLevel(domain.Interval5m, Params{"lookback": 4})
	r := &MockReader{Candles: bars(99, 101, 103, 102.6), Price: 102.6}

	d, err := l.GetSignal(context.Background(), exec, r)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, domain.SideShort, d.Position)
	resistance := 103 * 1.005
	assert.InDelta(t, resistance*0.997, *d.PriceOpen, 1e-9)
	assert.Greater(t, d.PriceStopLoss, resistance)
}

func TestLevelSide(t *testing.T) {
	assert.Equal(t, domain.SideLong, levelSide(100, 101))
	assert.Equal(t, domain.SideShort, levelSide(100, 99))
	assert.Equal(t, domain.Side(""), levelSide(100, 100))
}

package usecase

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/signal_engine/internal/domain"
)

func flat(ts int64, p, v float64) domain.Candle {
	return domain.Candle{Timestamp: ts, Open: p, High: p, Low: p, Close: p, Volume: v}
}

func TestVWAP(t *testing.T) {
	candles := []domain.Candle{
		{High: 102, Low: 98, Close: 100, Volume: 1},
		{High: 112, Low: 108, Close: 110, Volume: 3},
	}
	got, err := vwap(candles)
	require.NoError(t, err)
	assert.InDelta(t, 107.5, got, 1e-9)
}

func TestVWAP_ZeroVolumeFallsBackToMeanClose(t *testing.T) {
	got, err := vwap([]domain.Candle{flat(0, 100, 0), flat(1, 110, 0)})
	require.NoError(t, err)
	assert.Equal(t, 105.0, got)
}

func TestVWAP_Empty(t *testing.T) {
	_, err := vwap(nil)
	assert.ErrorIs(t, err, errNoCandles)
}

func TestFilterAnomalies(t *testing.T) {
	candles := []domain.Candle{
		flat(1, 50000, 1), flat(2, 50010, 1), flat(3, 49990, 1), flat(4, 50005, 1),
		{Timestamp: 5, Open: 50000, High: 50000, Low: 0.1, Close: 50000, Volume: 1},
		flat(6, 50002, 1),
	}
	got := filterAnomalies(candles, 1000, 5)
	require.Len(t, got, 5)
	for _, c := range got {
		assert.NotEqual(t, int64(5), c.Timestamp)
	}
}

func TestFilterAnomalies_SmallWindowUsesAverage(t *testing.T) {
	// Two candles is below the median minimum, so the reference is the plain average.
	candles := []domain.Candle{
		flat(1, 100, 1),
		{Timestamp: 2, Open: 100, High: 100, Low: 0.01, Close: 100, Volume: 1},
	}
	got := filterAnomalies(candles, 1000, 5)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].Timestamp)
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 2.0, median([]float64{3, 1, 2}))
	assert.Equal(t, 2.5, median([]float64{4, 1, 3, 2}))
}

func TestClosedBefore(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	minute := time.Minute.Milliseconds()
	var candles []domain.Candle
	for i := int64(0); i < 10; i++ {
		candles = append(candles, flat(start+i*minute, 1, 1))
	}
	got := closedBefore(candles, start+2*minute, start+5*minute)
	require.Len(t, got, 3)
	assert.Equal(t, start+2*minute, got[0].Timestamp)
	assert.Equal(t, start+4*minute, got[2].Timestamp)
}

func TestFormatStep(t *testing.T) {
	tests := []struct {
		value float64
		step  string
		want  string
	}{
		{50123.456, "0.1", "50123.4"},
		{50123.456, "0.01", "50123.45"},
		{0.123456, "0.001", "0.123"},
		{17.9, "1", "17"},
		{1.5, "0", "1.5"},
	}
	for _, tt := range tests {
		step := decimal.RequireFromString(tt.step)
		assert.Equal(t, tt.want, formatStep(tt.value, step), "value %v step %s", tt.value, tt.step)
	}
}

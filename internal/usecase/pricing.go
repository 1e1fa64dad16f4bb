package usecase

import (
	"errors"
	"math"
	"sort"

	"github.com/vitos/signal_engine/internal/domain"
)

var errNoCandles = errors.New("no candles to price")

// vwap returns Σ(typical·volume)/Σ(volume), or the mean close when no volume traded.
func vwap(candles []domain.Candle) (float64, error) {
	if len(candles) == 0 {
		return 0, errNoCandles
	}
	var sumPV, sumV, sumClose float64
	for _, c := range candles {
		typical := (c.High + c.Low + c.Close) / 3
		sumPV += typical * c.Volume
		sumV += c.Volume
		sumClose += c.Close
	}
	if sumV == 0 {
		return sumClose / float64(len(candles)), nil
	}
	return sumPV / sumV, nil
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// filterAnomalies drops candles with any price below reference/factor. The
// reference is the median of all OHLC values, or their plain average when
// the window holds fewer than minForMedian candles.
func filterAnomalies(candles []domain.Candle, factor float64, minForMedian int) []domain.Candle {
	if len(candles) == 0 || factor <= 0 {
		return candles
	}
	prices := make([]float64, 0, len(candles)*4)
	for _, c := range candles {
		prices = append(prices, c.Open, c.High, c.Low, c.Close)
	}

	var ref float64
	if len(candles) >= minForMedian {
		ref = median(prices)
	} else {
		var sum float64
		for _, p := range prices {
			sum += p
		}
		ref = sum / float64(len(prices))
	}
	threshold := ref / factor

	out := make([]domain.Candle, 0, len(candles))
	for _, c := range candles {
		low := math.Min(math.Min(c.Open, c.Close), math.Min(c.High, c.Low))
		if low < threshold {
			continue
		}
		out = append(out, c)
	}
	return out
}

// isPositiveFinite reports whether v is a usable price.
func isPositiveFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"github.com/shopspring/decimal"
	"github.com/vitos/signal_engine/internal/config"
	"github.com/vitos/signal_engine/internal/domain"
	"go.uber.org/zap"
)

// MarketGateway serves candles, VWAP and price formatting on top of an
// exchange source. Everything it returns for a tick excludes candles that
// had not closed at the tick time.
type MarketGateway struct {
	exchangeName string
	source       domain.CandleSource
	precision    domain.PrecisionSource
	cfg          config.Gateway
	avgCandles   int
	logger       *zap.Logger

	mu         sync.Mutex
	precisions map[string]domain.Precision
}

func NewMarketGateway(
	exchangeName string,
	source domain.CandleSource,
	precision domain.PrecisionSource,
	cfg config.Gateway,
	avgCandles int,
	logger *zap.Logger,
) *MarketGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	if avgCandles <= 0 {
		avgCandles = 5
	}
	return &MarketGateway{
		exchangeName: exchangeName,
		source:       source,
		precision:    precision,
		cfg:          cfg,
		avgCandles:   avgCandles,
		logger:       logger,
		precisions:   make(map[string]domain.Precision),
	}
}

func (g *MarketGateway) ExchangeName() string {
	return g.exchangeName
}

// AvgCandles is the number of one-minute candles behind the average price.
func (g *MarketGateway) AvgCandles() int {
	return g.avgCandles
}

func (g *MarketGateway) fetchWithRetry(ctx context.Context, symbol string, interval domain.Interval, since time.Time, limit int) ([]domain.Candle, error) {
	b := &backoff.Backoff{Min: g.cfg.RetryDelay, Max: g.cfg.RetryDelay, Factor: 1}
	attempts := g.cfg.RetryCount
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		candles, err := g.source.FetchCandles(ctx, symbol, interval, since, limit)
		if err == nil {
			return candles, nil
		}
		lastErr = err
		g.logger.Warn("Candle fetch failed",
			zap.String("symbol", symbol),
			zap.String("interval", string(interval)),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, &domain.DataSourceError{Symbol: symbol, Interval: interval, Attempts: attempt, Err: ctx.Err()}
		case <-time.After(b.Duration()):
		}
	}
	return nil, &domain.DataSourceError{Symbol: symbol, Interval: interval, Attempts: attempts, Err: lastErr}
}

// FetchRange returns up to count raw candles starting at since, paging
// through the source. It is used by the backtest fast-forward, which is
// allowed to read past the current tick.
func (g *MarketGateway) FetchRange(ctx context.Context, symbol string, interval domain.Interval, since time.Time, count int) ([]domain.Candle, error) {
	if err := interval.Validate(); err != nil {
		return nil, err
	}
	step := interval.Duration().Milliseconds()
	pageSize := g.cfg.PageSize
	if pageSize <= 0 {
		pageSize = 1000
	}

	out := make([]domain.Candle, 0, count)
	cursor := since.UnixMilli()
	for len(out) < count {
		limit := min(pageSize, count-len(out))
		page, err := g.fetchWithRetry(ctx, symbol, interval, time.UnixMilli(cursor).UTC(), limit)
		if err != nil {
			return nil, err
		}
		added := 0
		for _, c := range page {
			if c.Timestamp < cursor {
				continue
			}
			if len(out) > 0 && c.Timestamp <= out[len(out)-1].Timestamp {
				continue
			}
			out = append(out, c)
			added++
			if len(out) == count {
				break
			}
		}
		if added == 0 {
			break
		}
		cursor = out[len(out)-1].Timestamp + step
	}
	return out, nil
}

// GetCandles returns the last limit closed candles before the tick, after
// anomaly filtering.
func (g *MarketGateway) GetCandles(ctx context.Context, exec domain.ExecutionContext, interval domain.Interval, limit int) ([]domain.Candle, error) {
	raw, err := g.closedCandles(ctx, exec, interval, limit)
	if err != nil {
		return nil, err
	}
	return filterAnomalies(raw, g.cfg.AnomalyFactor, g.cfg.MinCandlesForMedian), nil
}

func (g *MarketGateway) closedCandles(ctx context.Context, exec domain.ExecutionContext, interval domain.Interval, limit int) ([]domain.Candle, error) {
	if err := interval.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}
	tickStart := interval.Align(exec.When)
	since := tickStart.Add(-time.Duration(limit) * interval.Duration())

	candles, err := g.fetchWithRetry(ctx, exec.Symbol, interval, since, limit)
	if err != nil {
		return nil, err
	}
	return closedBefore(candles, since.UnixMilli(), tickStart.UnixMilli()), nil
}

// closedBefore keeps candles with since <= timestamp < end.
func closedBefore(candles []domain.Candle, since, end int64) []domain.Candle {
	out := make([]domain.Candle, 0, len(candles))
	for _, c := range candles {
		if c.Timestamp >= since && c.Timestamp < end {
			out = append(out, c)
		}
	}
	return out
}

// GetAveragePrice is the VWAP of the most recent closed one-minute candles.
func (g *MarketGateway) GetAveragePrice(ctx context.Context, exec domain.ExecutionContext) (float64, error) {
	raw, err := g.closedCandles(ctx, exec, domain.Interval1m, g.avgCandles)
	if err != nil {
		return 0, err
	}
	return g.averagePrice(raw)
}

func (g *MarketGateway) averagePrice(window []domain.Candle) (float64, error) {
	filtered := filterAnomalies(window, g.cfg.AnomalyFactor, g.cfg.MinCandlesForMedian)
	return vwap(filtered)
}

func (g *MarketGateway) getPrecision(ctx context.Context, symbol string) (domain.Precision, error) {
	g.mu.Lock()
	p, ok := g.precisions[symbol]
	g.mu.Unlock()
	if ok {
		return p, nil
	}
	if g.precision == nil {
		return domain.Precision{}, nil
	}
	p, err := g.precision.GetPrecision(ctx, symbol)
	if err != nil {
		return domain.Precision{}, err
	}
	g.mu.Lock()
	g.precisions[symbol] = p
	g.mu.Unlock()
	return p, nil
}

// FormatPrice rounds value down to the symbol tick size.
func (g *MarketGateway) FormatPrice(ctx context.Context, symbol string, value float64) (string, error) {
	p, err := g.getPrecision(ctx, symbol)
	if err != nil {
		return "", err
	}
	return formatStep(value, p.TickSize), nil
}

// FormatQuantity rounds value down to the symbol lot step.
func (g *MarketGateway) FormatQuantity(ctx context.Context, symbol string, value float64) (string, error) {
	p, err := g.getPrecision(ctx, symbol)
	if err != nil {
		return "", err
	}
	return formatStep(value, p.StepSize), nil
}

func formatStep(value float64, step decimal.Decimal) string {
	v := decimal.NewFromFloat(value)
	if !step.IsPositive() {
		return v.String()
	}
	rounded := v.Div(step).Floor().Mul(step)
	return rounded.StringFixed(decimalPlaces(step))
}

func decimalPlaces(d decimal.Decimal) int32 {
	s := d.String()
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return int32(len(s) - i - 1)
	}
	return 0
}

// Reader binds the gateway to one tick for strategy use.
func (g *MarketGateway) Reader(exec domain.ExecutionContext) domain.CandleReader {
	return &tickReader{gateway: g, exec: exec}
}

type tickReader struct {
	gateway *MarketGateway
	exec    domain.ExecutionContext
}

func (r *tickReader) GetCandles(ctx context.Context, interval domain.Interval, limit int) ([]domain.Candle, error) {
	return r.gateway.GetCandles(ctx, r.exec, interval, limit)
}

func (r *tickReader) GetAveragePrice(ctx context.Context) (float64, error) {
	return r.gateway.GetAveragePrice(ctx, r.exec)
}

var _ domain.CandleReader = (*tickReader)(nil)


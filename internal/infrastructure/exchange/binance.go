package exchange

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"github.com/vitos/signal_engine/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const binanceMaxLimit = 1000

// BinanceAdapter reads USD-M futures market data through go-binance.
type BinanceAdapter struct {
	client  *futures.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker
	logger  *zap.Logger

	// Binance interval codes match domain intervals except for the day.
	intervals map[domain.Interval]string
}

type BinanceOptions struct {
	APIKey       string
	APISecret    string
	BaseURL      string
	Proxy        string
	RateLimitRPS float64
}

func NewBinanceAdapter(opts BinanceOptions, logger *zap.Logger) (*BinanceAdapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.RateLimitRPS <= 0 {
		opts.RateLimitRPS = 10
	}
	client := binance.NewFuturesClient(opts.APIKey, opts.APISecret)
	if opts.BaseURL != "" {
		client.BaseURL = opts.BaseURL
	}
	if opts.Proxy != "" {
		httpClient, err := newHTTPClient(opts.Proxy, 10*time.Second)
		if err != nil {
			return nil, err
		}
		client.HTTPClient = httpClient
	}
	return &BinanceAdapter{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(opts.RateLimitRPS), 1),
		cb:      newBreaker("binance-rest", logger),
		logger:  logger,
		intervals: map[domain.Interval]string{
			domain.Interval1m:  "1m",
			domain.Interval3m:  "3m",
			domain.Interval5m:  "5m",
			domain.Interval15m: "15m",
			domain.Interval30m: "30m",
			domain.Interval1h:  "1h",
			domain.Interval2h:  "2h",
			domain.Interval4h:  "4h",
			domain.Interval6h:  "6h",
			domain.Interval8h:  "8h",
			domain.Interval1d:  "1d",
		},
	}, nil
}

func (b *BinanceAdapter) call(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return b.cb.Execute(fn)
}

// FetchCandles returns up to limit candles starting at since, oldest first.
func (b *BinanceAdapter) FetchCandles(ctx context.Context, symbol string, interval domain.Interval, since time.Time, limit int) ([]domain.Candle, error) {
	code, ok := b.intervals[interval]
	if !ok {
		return nil, fmt.Errorf("binance does not support interval %s", interval)
	}
	if limit <= 0 || limit > binanceMaxLimit {
		limit = binanceMaxLimit
	}
	end := since.Add(time.Duration(limit)*interval.Duration() - time.Millisecond)

	res, err := b.call(ctx, func() (interface{}, error) {
		return b.client.NewKlinesService().
			Symbol(symbol).
			Interval(code).
			StartTime(since.UnixMilli()).
			EndTime(end.UnixMilli()).
			Limit(limit).
			Do(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("binance klines: %w", err)
	}

	klines := res.([]*futures.Kline)
	candles := make([]domain.Candle, 0, len(klines))
	for _, k := range klines {
		c, err := parseKline([]string{strconv.FormatInt(k.OpenTime, 10), k.Open, k.High, k.Low, k.Close, k.Volume})
		if err != nil {
			b.logger.Warn("Skipping malformed kline", zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		candles = append(candles, c)
	}
	return candles, nil
}

// GetPrecision reads PRICE_FILTER and LOT_SIZE from exchangeInfo.
func (b *BinanceAdapter) GetPrecision(ctx context.Context, symbol string) (domain.Precision, error) {
	res, err := b.call(ctx, func() (interface{}, error) {
		return b.client.NewExchangeInfoService().Do(ctx)
	})
	if err != nil {
		return domain.Precision{}, fmt.Errorf("binance exchange info: %w", err)
	}

	info := res.(*futures.ExchangeInfo)
	for _, s := range info.Symbols {
		if s.Symbol != symbol {
			continue
		}
		var p domain.Precision
		if f := s.PriceFilter(); f != nil {
			if p.TickSize, err = decimal.NewFromString(f.TickSize); err != nil {
				return domain.Precision{}, fmt.Errorf("tick size %q: %w", f.TickSize, err)
			}
		}
		if f := s.LotSizeFilter(); f != nil {
			if p.StepSize, err = decimal.NewFromString(f.StepSize); err != nil {
				return domain.Precision{}, fmt.Errorf("step size %q: %w", f.StepSize, err)
			}
		}
		return p, nil
	}
	return domain.Precision{}, fmt.Errorf("symbol %s not found", symbol)
}

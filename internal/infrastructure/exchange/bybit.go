package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"github.com/vitos/signal_engine/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	BybitBaseURL = "https://api.bybit.com"
	BybitWSURL   = "wss://stream.bybit.com/v5/public/linear"

	bybitMaxLimit = 1000
)

var bybitIntervals = map[domain.Interval]string{
	domain.Interval1m:  "1",
	domain.Interval3m:  "3",
	domain.Interval5m:  "5",
	domain.Interval15m: "15",
	domain.Interval30m: "30",
	domain.Interval1h:  "60",
	domain.Interval2h:  "120",
	domain.Interval4h:  "240",
	domain.Interval6h:  "360",
	domain.Interval1d:  "D",
}

// BybitAdapter reads public linear market data from the Bybit v5 REST API.
type BybitAdapter struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

type BybitOptions struct {
	BaseURL      string
	Proxy        string
	RateLimitRPS float64
}

func NewBybitAdapter(opts BybitOptions, logger *zap.Logger) (*BybitAdapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.BaseURL == "" {
		opts.BaseURL = BybitBaseURL
	}
	if opts.RateLimitRPS <= 0 {
		opts.RateLimitRPS = 10
	}
	client, err := newHTTPClient(opts.Proxy, 10*time.Second)
	if err != nil {
		return nil, err
	}
	return &BybitAdapter{
		baseURL: opts.BaseURL,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(opts.RateLimitRPS), 1),
		cb:      newBreaker("bybit-rest", logger),
		logger:  logger,
	}, nil
}

type bybitResponse[T any] struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  T      `json:"result"`
}

func (b *BybitAdapter) get(ctx context.Context, path string, query url.Values, out any) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}
	body, err := b.cb.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+path+"?"+query.Encode(), nil)
		if err != nil {
			return nil, err
		}
		resp, err := b.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(respBody))
		}
		return respBody, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(body.([]byte), out)
}

// FetchCandles returns up to limit candles starting at since, oldest first.
func (b *BybitAdapter) FetchCandles(ctx context.Context, symbol string, interval domain.Interval, since time.Time, limit int) ([]domain.Candle, error) {
	code, ok := bybitIntervals[interval]
	if !ok {
		return nil, fmt.Errorf("bybit does not support interval %s", interval)
	}
	if limit <= 0 || limit > bybitMaxLimit {
		limit = bybitMaxLimit
	}
	end := since.Add(time.Duration(limit)*interval.Duration() - time.Millisecond)

	query := url.Values{}
	query.Set("category", "linear")
	query.Set("symbol", symbol)
	query.Set("interval", code)
	query.Set("start", strconv.FormatInt(since.UnixMilli(), 10))
	query.Set("end", strconv.FormatInt(end.UnixMilli(), 10))
	query.Set("limit", strconv.Itoa(limit))

	var result bybitResponse[struct {
		List [][]string `json:"list"`
	}]
	if err := b.get(ctx, "/v5/market/kline", query, &result); err != nil {
		return nil, err
	}
	if result.RetCode != 0 {
		return nil, fmt.Errorf("bybit kline error %d: %s", result.RetCode, result.RetMsg)
	}

	candles := make([]domain.Candle, 0, len(result.Result.List))
	for _, raw := range result.Result.List {
		// [startTime, open, high, low, close, volume, turnover]
		if len(raw) < 6 {
			continue
		}
		c, err := parseKline(raw)
		if err != nil {
			b.logger.Warn("Skipping malformed kline", zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		candles = append(candles, c)
	}

	// Bybit returns newest first.
	slices.Reverse(candles)
	return candles, nil
}

func parseKline(raw []string) (domain.Candle, error) {
	ts, err := strconv.ParseInt(raw[0], 10, 64)
	if err != nil {
		return domain.Candle{}, fmt.Errorf("start time %q: %w", raw[0], err)
	}
	vals := make([]float64, 5)
	for i := range vals {
		v, err := strconv.ParseFloat(raw[i+1], 64)
		if err != nil {
			return domain.Candle{}, fmt.Errorf("field %d %q: %w", i+1, raw[i+1], err)
		}
		vals[i] = v
	}
	return domain.Candle{
		Timestamp: ts,
		Open:      vals[0],
		High:      vals[1],
		Low:       vals[2],
		Close:     vals[3],
		Volume:    vals[4],
	}, nil
}

// GetPrecision reads tickSize and qtyStep from instruments-info.
func (b *BybitAdapter) GetPrecision(ctx context.Context, symbol string) (domain.Precision, error) {
	query := url.Values{}
	query.Set("category", "linear")
	query.Set("symbol", symbol)

	var result bybitResponse[struct {
		List []struct {
			Symbol      string `json:"symbol"`
			PriceFilter struct {
				TickSize string `json:"tickSize"`
			} `json:"priceFilter"`
			LotSizeFilter struct {
				QtyStep string `json:"qtyStep"`
			} `json:"lotSizeFilter"`
		} `json:"list"`
	}]
	if err := b.get(ctx, "/v5/market/instruments-info", query, &result); err != nil {
		return domain.Precision{}, err
	}
	if result.RetCode != 0 {
		return domain.Precision{}, fmt.Errorf("bybit api error: %s", result.RetMsg)
	}
	if len(result.Result.List) == 0 {
		return domain.Precision{}, fmt.Errorf("symbol %s not found", symbol)
	}

	item := result.Result.List[0]
	tick, err := decimal.NewFromString(item.PriceFilter.TickSize)
	if err != nil {
		return domain.Precision{}, fmt.Errorf("tick size %q: %w", item.PriceFilter.TickSize, err)
	}
	step, err := decimal.NewFromString(item.LotSizeFilter.QtyStep)
	if err != nil {
		return domain.Precision{}, fmt.Errorf("qty step %q: %w", item.LotSizeFilter.QtyStep, err)
	}
	return domain.Precision{TickSize: tick, StepSize: step}, nil
}

package exchange

import (
	"fmt"

	"github.com/vitos/signal_engine/internal/config"
	"github.com/vitos/signal_engine/internal/domain"
	"go.uber.org/zap"
)

// MarketData is what the engine needs from an exchange.
type MarketData interface {
	domain.CandleSource
	domain.PrecisionSource
}

// New builds the REST adapter selected by cfg.Name.
func New(cfg config.Exchange, logger *zap.Logger) (MarketData, error) {
	switch cfg.Name {
	case "", "bybit":
		return NewBybitAdapter(BybitOptions{
			BaseURL:      cfg.RESTEndpoint,
			Proxy:        cfg.Proxy,
			RateLimitRPS: cfg.RateLimitRPS,
		}, logger)
	case "binance":
		return NewBinanceAdapter(BinanceOptions{
			APIKey:       cfg.APIKey,
			APISecret:    cfg.APISecret,
			BaseURL:      cfg.RESTEndpoint,
			Proxy:        cfg.Proxy,
			RateLimitRPS: cfg.RateLimitRPS,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown exchange %q", cfg.Name)
	}
}

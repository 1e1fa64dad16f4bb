// Package config loads process configuration from YAML with defaults and validation.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Engine tunes signal validation and lifecycle math.
type Engine struct {
	MinTakeProfitDistancePct float64       `yaml:"min_take_profit_distance_pct" validate:"gt=0"`
	MinStopLossDistancePct   float64       `yaml:"min_stop_loss_distance_pct" validate:"gt=0"`
	MaxStopLossDistancePct   float64       `yaml:"max_stop_loss_distance_pct" validate:"gtefield=MinStopLossDistancePct"`
	MaxSignalLifetimeMinutes int           `yaml:"max_signal_lifetime_minutes" validate:"gt=0"`
	ScheduleAwaitMinutes     int           `yaml:"schedule_await_minutes" validate:"gt=0"`
	FeePct                   float64       `yaml:"fee_pct" validate:"gte=0"`
	SlippagePct              float64       `yaml:"slippage_pct" validate:"gte=0"`
	AvgPriceCandles          int           `yaml:"avg_price_candles" validate:"gt=0"`
	StrategyTimeout          time.Duration `yaml:"strategy_timeout" validate:"gt=0"`
	AutoBreakeven            *bool         `yaml:"auto_breakeven"`
}

// BreakevenEnabled reports whether stop-loss moves to entry automatically.
func (e Engine) BreakevenEnabled() bool {
	return e.AutoBreakeven == nil || *e.AutoBreakeven
}

// Gateway tunes candle retrieval.
type Gateway struct {
	RetryCount          int           `yaml:"retry_count" validate:"gt=0"`
	RetryDelay          time.Duration `yaml:"retry_delay" validate:"gte=0"`
	AnomalyFactor       float64       `yaml:"anomaly_factor" validate:"gt=1"`
	MinCandlesForMedian int           `yaml:"min_candles_for_median" validate:"gt=0"`
	PageSize            int           `yaml:"page_size" validate:"gt=0"`
}

type Live struct {
	TickInterval time.Duration `yaml:"tick_interval" validate:"gt=0"`
	WakeOnKline  bool          `yaml:"wake_on_kline"`
}

type Backtest struct {
	Start    string `yaml:"start" validate:"required_if=Enabled true"`
	End      string `yaml:"end" validate:"required_if=Enabled true"`
	Interval string `yaml:"interval" validate:"omitempty,oneof=1m 3m 5m 15m 30m 1h"`
	Enabled  bool   `yaml:"-"`
}

// Frame parses the configured backtest range.
func (b Backtest) Frame() (time.Time, time.Time, error) {
	start, err := time.Parse(time.RFC3339, b.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("backtest start: %w", err)
	}
	end, err := time.Parse(time.RFC3339, b.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("backtest end: %w", err)
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("backtest end %s is not after start %s", b.End, b.Start)
	}
	return start.UTC(), end.UTC(), nil
}

type Storage struct {
	Driver string `yaml:"driver" validate:"oneof=file sqlite postgres memory"`
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn" validate:"required_if=Driver postgres"`
}

type Exchange struct {
	Name         string  `yaml:"name" validate:"oneof=bybit binance"`
	APIKey       string  `yaml:"api_key"`
	APISecret    string  `yaml:"api_secret"`
	RESTEndpoint string  `yaml:"rest_endpoint"`
	WSEndpoint   string  `yaml:"ws_endpoint"`
	RateLimitRPS float64 `yaml:"rate_limit_rps" validate:"gt=0"`
	// Proxy is an optional SOCKS5 host:port for REST and websocket traffic.
	Proxy string `yaml:"proxy" validate:"omitempty,hostname_port"`
}

type Risk struct {
	MaxConcurrentPositions int     `yaml:"max_concurrent_positions" validate:"gte=0"`
	MaxPositionsPerSymbol  int     `yaml:"max_positions_per_symbol" validate:"gte=0"`
	MinRiskReward          float64 `yaml:"min_risk_reward" validate:"gte=0"`
}

type Strategy struct {
	Name     string             `yaml:"name" validate:"required"`
	Symbols  []string           `yaml:"symbols" validate:"required,min=1,dive,required"`
	Params   map[string]float64 `yaml:"params"`
	Interval string             `yaml:"interval" validate:"omitempty,oneof=1m 3m 5m 15m 30m 1h"`
}

type Logging struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type Server struct {
	Port int `yaml:"port" validate:"gte=0,lte=65535"`
}

// Root is the whole configuration file.
type Root struct {
	Engine   Engine   `yaml:"engine"`
	Gateway  Gateway  `yaml:"gateway"`
	Live     Live     `yaml:"live"`
	Backtest Backtest `yaml:"backtest"`
	Storage  Storage  `yaml:"storage"`
	Exchange Exchange `yaml:"exchange"`
	Risk     Risk     `yaml:"risk"`
	Strategy Strategy `yaml:"strategy"`
	Logging  Logging  `yaml:"logging"`
	Server   Server   `yaml:"server"`
}

// Load reads path, applies defaults and environment overrides, and validates the result.
func Load(path string) (*Root, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Parse decodes raw YAML into a validated Root.
func Parse(b []byte) (*Root, error) {
	var c Root
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	c.ApplyDefaults()
	applyEnv(&c)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Default returns a configuration holding only default values.
func Default() *Root {
	var c Root
	c.ApplyDefaults()
	return &c
}

// ApplyDefaults replaces zero values with the documented defaults.
func (c *Root) ApplyDefaults() {
	e := &c.Engine
	if e.MinTakeProfitDistancePct == 0 {
		e.MinTakeProfitDistancePct = 0.5
	}
	if e.MinStopLossDistancePct == 0 {
		e.MinStopLossDistancePct = 0.2
	}
	if e.MaxStopLossDistancePct == 0 {
		e.MaxStopLossDistancePct = 10
	}
	if e.MaxSignalLifetimeMinutes == 0 {
		e.MaxSignalLifetimeMinutes = 43200
	}
	if e.ScheduleAwaitMinutes == 0 {
		e.ScheduleAwaitMinutes = 1440
	}
	if e.FeePct == 0 {
		e.FeePct = 0.1
	}
	if e.SlippagePct == 0 {
		e.SlippagePct = 0.1
	}
	if e.AvgPriceCandles == 0 {
		e.AvgPriceCandles = 5
	}
	if e.StrategyTimeout == 0 {
		e.StrategyTimeout = 30 * time.Second
	}

	g := &c.Gateway
	if g.RetryCount == 0 {
		g.RetryCount = 3
	}
	if g.RetryDelay == 0 {
		g.RetryDelay = 5 * time.Second
	}
	if g.AnomalyFactor == 0 {
		g.AnomalyFactor = 1000
	}
	if g.MinCandlesForMedian == 0 {
		g.MinCandlesForMedian = 5
	}
	if g.PageSize == 0 {
		g.PageSize = 1000
	}

	if c.Live.TickInterval == 0 {
		c.Live.TickInterval = time.Minute
	}
	if c.Backtest.Interval == "" {
		c.Backtest.Interval = "1m"
	}
	c.Backtest.Enabled = c.Backtest.Start != "" || c.Backtest.End != ""
	if c.Storage.Driver == "" {
		c.Storage.Driver = "file"
	}
	if c.Storage.Path == "" {
		if c.Storage.Driver == "sqlite" {
			c.Storage.Path = "signals.db"
		} else {
			c.Storage.Path = "dump/signals"
		}
	}
	if c.Exchange.Name == "" {
		c.Exchange.Name = "bybit"
	}
	if c.Exchange.RateLimitRPS == 0 {
		c.Exchange.RateLimitRPS = 10
	}
	if c.Strategy.Interval == "" {
		c.Strategy.Interval = "5m"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func applyEnv(c *Root) {
	// A missing .env file is the normal case outside development.
	_ = godotenv.Load()
	if v := os.Getenv("EXCHANGE_API_KEY"); v != "" {
		c.Exchange.APIKey = v
	}
	if v := os.Getenv("EXCHANGE_API_SECRET"); v != "" {
		c.Exchange.APISecret = v
	}
	if v := os.Getenv("EXCHANGE_PROXY"); v != "" {
		c.Exchange.Proxy = v
	}
	if v := os.Getenv("STORAGE_DSN"); v != "" {
		c.Storage.DSN = v
	}
}

var validate = validator.New()

// Validate checks the struct tags of the whole tree.
func (c *Root) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vitos/signal_engine/internal/config"
	"github.com/vitos/signal_engine/internal/domain"
	"github.com/vitos/signal_engine/internal/infrastructure/exchange"
	"github.com/vitos/signal_engine/internal/infrastructure/logger"
	"github.com/vitos/signal_engine/internal/infrastructure/metrics"
	"github.com/vitos/signal_engine/internal/infrastructure/storage"
	"github.com/vitos/signal_engine/internal/strategy"
	"github.com/vitos/signal_engine/internal/usecase"
	"github.com/vitos/signal_engine/internal/web"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config")
	mode := flag.String("mode", "", "backtest or live; defaults to backtest when a backtest range is configured")
	flag.Parse()

	// 1. Load Config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *mode == "" {
		*mode = "live"
		if cfg.Backtest.Enabled {
			*mode = "backtest"
		}
	}

	// 2. Init Logger
	var log *zap.Logger
	if cfg.Logging.File != "" {
		log, err = logger.NewFileLogger(cfg.Logging.File, cfg.Logging.Level)
	} else {
		log, err = logger.NewLogger(cfg.Logging.Level)
	}
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, *mode, log); err != nil {
		log.Error("Run failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Root, mode string, log *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Init Exchange
	md, err := exchange.New(cfg.Exchange, log)
	if err != nil {
		return fmt.Errorf("init exchange: %w", err)
	}
	gateway := usecase.NewMarketGateway(cfg.Exchange.Name, md, md, cfg.Gateway, cfg.Engine.AvgPriceCandles, log)

	// 4. Init Storage
	stores, err := storage.Open(cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	defer stores.Close()

	// 5. Events, metrics and trade journal
	bus := usecase.NewEventBus(log)
	collector := metrics.NewCollector()
	bus.Subscribe(collector.Observe)
	if stores.Trades != nil {
		usecase.NewTradeJournal(stores.Trades, log).Attach(bus)
	}
	hub := web.NewHub(log)
	bus.Subscribe(hub.Publish)
	go hub.Run(ctx)

	rules := usecase.RulesFromConfig(cfg.Risk)
	registry := usecase.NewEngineRegistry(usecase.Components{
		Gateway:       gateway,
		Events:        bus,
		Config:        cfg.Engine,
		Logger:        log,
		LiveRisk:      usecase.NewRiskEvaluator(rules, usecase.RiskCallbacks{}, bus, log),
		BacktestRisk:  usecase.NewRiskEvaluator(rules, usecase.RiskCallbacks{}, bus, log),
		ActiveStore:   stores.Active,
		ScheduleStore: stores.Schedule,
		FrameName:     mode,
	})

	strat, err := strategy.Build(cfg.Strategy)
	if err != nil {
		return err
	}

	// 6. Init Web Server
	var server *web.Server
	if cfg.Server.Port > 0 {
		server = web.NewServer(cfg.Server.Port, registry, stores.Trades, collector.Handler(), hub, log)
		go func() {
			if err := server.Start(); err != nil {
				log.Error("Server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			server.Shutdown(shutdownCtx)
		}()
	}

	stop := make(chan os.Signal, 2)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	switch mode {
	case "backtest":
		go func() {
			select {
			case <-stop:
				log.Info("Interrupt received, aborting backtest")
				cancel()
			case <-ctx.Done():
			}
		}()
		return runBacktest(ctx, cfg, registry, strat, log)
	case "live":
		return runLive(ctx, cancel, cfg, registry, strat, stop, log)
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}

func runBacktest(ctx context.Context, cfg *config.Root, registry *usecase.EngineRegistry, strat domain.Strategy, log *zap.Logger) error {
	start, end, err := cfg.Backtest.Frame()
	if err != nil {
		return err
	}
	timestamps, err := usecase.Timeframe(start, end, domain.Interval(cfg.Backtest.Interval))
	if err != nil {
		return err
	}

	for _, symbol := range cfg.Strategy.Symbols {
		engine := registry.Get(strat, symbol, true)
		driver := usecase.NewBacktestDriver(engine, log)

		var results []domain.TickResult
		for res, err := range driver.Run(ctx, timestamps) {
			if err != nil {
				return fmt.Errorf("backtest %s: %w", symbol, err)
			}
			results = append(results, res)
		}

		summary := usecase.Summarize(results)
		log.Info("Backtest summary",
			zap.String("symbol", symbol),
			zap.String("strategy", strat.Name()),
			zap.Int("trades", summary.Trades),
			zap.Int("wins", summary.Wins),
			zap.Int("losses", summary.Losses),
			zap.Int("cancelled", summary.Cancelled),
			zap.Float64("win_rate", summary.WinRate),
			zap.Float64("total_pnl_pct", summary.TotalPnL),
			zap.Float64("max_drawdown_pct", summary.MaxDrawdown))
		registry.Clear(strat.Name(), symbol, true)
	}
	return nil
}

func runLive(ctx context.Context, cancel context.CancelFunc, cfg *config.Root, registry *usecase.EngineRegistry, strat domain.Strategy, stop <-chan os.Signal, log *zap.Logger) error {
	var wakes map[string]<-chan struct{}
	if cfg.Live.WakeOnKline && cfg.Exchange.Name == "bybit" {
		stream, err := exchange.NewKlineStream(cfg.Exchange.WSEndpoint, cfg.Exchange.Proxy, log)
		if err != nil {
			return fmt.Errorf("init kline stream: %w", err)
		}
		wakes = stream.WakeChannels(cfg.Strategy.Symbols)
		go func() {
			if err := stream.Run(ctx, cfg.Strategy.Symbols); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("Kline stream stopped", zap.Error(err))
			}
		}()
	}

	drivers := make([]*usecase.LiveDriver, 0, len(cfg.Strategy.Symbols))
	for _, symbol := range cfg.Strategy.Symbols {
		d := usecase.NewLiveDriver(registry.Get(strat, symbol, false), cfg.Live.TickInterval, log)
		if ch, ok := wakes[symbol]; ok {
			d.WithWake(ch)
		}
		drivers = append(drivers, d)
	}

	// First signal: stop opening new signals and exit once every slot is idle.
	// Second signal: abort immediately; open signals stay persisted.
	go func() {
		select {
		case <-stop:
		case <-ctx.Done():
			return
		}
		log.Info("Shutting down, waiting for open signals to close")
		for _, d := range drivers {
			d.Stop()
		}
		select {
		case <-stop:
			log.Warn("Forced shutdown")
			cancel()
		case <-ctx.Done():
		}
	}()

	log.Info("Live trading started",
		zap.String("strategy", strat.Name()),
		zap.Strings("symbols", cfg.Strategy.Symbols))
	err := usecase.RunLive(ctx, drivers, func(res domain.TickResult) {
		switch r := res.(type) {
		case domain.ClosedResult:
			log.Info("Trade closed",
				zap.String("symbol", r.Signal.Symbol),
				zap.String("reason", string(r.Reason)),
				zap.Float64("pnl_pct", r.PnL.Percentage))
		case domain.CancelledResult:
			log.Info("Scheduled signal cancelled",
				zap.String("symbol", r.Signal.Symbol),
				zap.String("reason", string(r.Reason)))
		}
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

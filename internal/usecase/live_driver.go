package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vitos/signal_engine/internal/domain"
	"go.uber.org/zap"
)

// LiveDriver ticks one engine on the wall clock. Stop requests a graceful
// shutdown: no new signals, and Run returns once the engine is idle.
// Cancelling the context aborts immediately.
type LiveDriver struct {
	engine   *SignalEngine
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time

	wake     <-chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewLiveDriver(engine *SignalEngine, interval time.Duration, logger *zap.Logger) *LiveDriver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &LiveDriver{
		engine:   engine,
		interval: interval,
		logger:   logger,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// WithWake makes the driver tick early whenever wake fires, e.g. on a
// confirmed kline from a stream.
func (d *LiveDriver) WithWake(wake <-chan struct{}) *LiveDriver {
	d.wake = wake
	return d
}

// WithClock overrides time.Now.
func (d *LiveDriver) WithClock(now func() time.Time) *LiveDriver {
	d.now = now
	return d
}

func (d *LiveDriver) Engine() *SignalEngine {
	return d.engine
}

// Stop requests a graceful shutdown.
func (d *LiveDriver) Stop() {
	d.stopOnce.Do(func() {
		d.engine.Stop()
		close(d.stopCh)
	})
}

// Run restores persisted state and ticks until stopped and idle. A
// persistence failure halts the driver; other restore and tick errors are
// logged and retried on the next interval. No tick runs before the
// restore succeeds.
func (d *LiveDriver) Run(ctx context.Context, onResult func(domain.TickResult)) error {
	log := d.logger.With(zap.String("symbol", d.engine.Symbol()), zap.String("strategy", d.engine.StrategyName()))
	if err := d.restore(ctx, log); err != nil {
		return err
	}
	log.Info("Live driver started", zap.Duration("interval", d.interval))

	stop := (<-chan struct{})(d.stopCh)
	for {
		if d.engine.Stopped() && d.engine.Idle() {
			log.Info("Live driver stopped")
			return nil
		}

		res, err := d.engine.Tick(ctx, d.now())
		switch {
		case err == nil:
			if onResult != nil {
				onResult(res)
			}
		case domain.IsFatal(err):
			log.Error("Halting on persistence failure", zap.Error(err))
			return err
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			log.Warn("Tick failed", zap.Error(err))
		}

		if d.engine.Stopped() && d.engine.Idle() {
			log.Info("Live driver stopped")
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.interval):
		case <-d.wake:
		case <-stop:
			stop = nil
		}
	}
}

func (d *LiveDriver) restore(ctx context.Context, log *zap.Logger) error {
	for {
		err := d.engine.Restore(ctx, d.now())
		switch {
		case err == nil:
			return nil
		case domain.IsFatal(err):
			log.Error("Restore failed", zap.Error(err))
			return err
		case ctx.Err() != nil:
			return ctx.Err()
		}
		log.Warn("Restore failed, retrying", zap.Error(err), zap.Duration("retry_in", d.interval))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.interval):
		}
	}
}

// RunLive runs every driver concurrently. onResult is called from all of
// them. The first persistence failure cancels the others; the joined
// errors are returned.
func RunLive(ctx context.Context, drivers []*LiveDriver, onResult func(domain.TickResult)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, d := range drivers {
		wg.Add(1)
		go func(d *LiveDriver) {
			defer wg.Done()
			err := d.Run(ctx, onResult)
			if err == nil || errors.Is(err, context.Canceled) {
				return
			}
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
			if domain.IsFatal(err) {
				cancel()
			}
		}(d)
	}
	wg.Wait()
	return errors.Join(errs...)
}

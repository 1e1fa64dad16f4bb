package usecase

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/vitos/signal_engine/internal/domain"
	"go.uber.org/zap"
)

// Timeframe lists the tick timestamps of a backtest, from start aligned to
// interval up to but excluding end.
func Timeframe(start, end time.Time, interval domain.Interval) ([]time.Time, error) {
	if err := interval.Validate(); err != nil {
		return nil, err
	}
	if !end.After(start) {
		return nil, fmt.Errorf("backtest end %s is not after start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	step := interval.Duration()
	first := interval.Align(start)
	if first.Before(start) {
		first = first.Add(step)
	}
	out := make([]time.Time, 0, int(end.Sub(first)/step)+1)
	for ts := first; ts.Before(end); ts = ts.Add(step) {
		out = append(out, ts)
	}
	return out, nil
}

// BacktestDriver replays a timeframe through one engine. After a signal
// opens, the rest of its life is resolved by fast-forward and the frame
// resumes at the first timestamp after the close.
type BacktestDriver struct {
	engine *SignalEngine
	logger *zap.Logger
}

func NewBacktestDriver(engine *SignalEngine, logger *zap.Logger) *BacktestDriver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BacktestDriver{engine: engine, logger: logger}
}

// Run yields every tick result. Iteration ends at the first error, which is
// yielded with a nil result, or as soon as the consumer stops.
func (d *BacktestDriver) Run(ctx context.Context, timestamps []time.Time) iter.Seq2[domain.TickResult, error] {
	return func(yield func(domain.TickResult, error) bool) {
		started := time.Now()
		ticks := 0
		defer func() {
			d.logger.Info("Backtest finished",
				zap.String("symbol", d.engine.Symbol()),
				zap.String("strategy", d.engine.StrategyName()),
				zap.Int("ticks", ticks),
				zap.Duration("elapsed", time.Since(started)))
		}()

		for i := 0; i < len(timestamps); {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			ts := timestamps[i]
			res, err := d.engine.Tick(ctx, ts)
			ticks++
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(res, nil) {
				return
			}
			if res.Action() != domain.ActionOpened {
				i++
				continue
			}

			closed, resumeAt, err := d.engine.FastForward(ctx, ts)
			if err != nil {
				yield(nil, err)
				return
			}
			if closed != nil && !yield(*closed, nil) {
				return
			}
			i = skipPast(timestamps, i+1, resumeAt)
		}
	}
}

// skipPast returns the index of the first timestamp after t, starting at from.
func skipPast(timestamps []time.Time, from int, t time.Time) int {
	for from < len(timestamps) && !timestamps[from].After(t) {
		from++
	}
	return from
}

// BacktestSummary aggregates closed and cancelled signals of a run.
type BacktestSummary struct {
	Trades      int                        `json:"trades"`
	Wins        int                        `json:"wins"`
	Losses      int                        `json:"losses"`
	Cancelled   int                        `json:"cancelled"`
	WinRate     float64                    `json:"winRate"`
	TotalPnL    float64                    `json:"totalPnlPct"`
	AveragePnL  float64                    `json:"averagePnlPct"`
	BestPnL     float64                    `json:"bestPnlPct"`
	WorstPnL    float64                    `json:"worstPnlPct"`
	MaxDrawdown float64                    `json:"maxDrawdownPct"`
	ByReason    map[domain.CloseReason]int `json:"byReason"`
}

// Summarize folds tick results into a summary. Drawdown is measured on the
// cumulative sum of trade percentages.
func Summarize(results []domain.TickResult) BacktestSummary {
	s := BacktestSummary{ByReason: make(map[domain.CloseReason]int)}
	var equity, peak float64
	for _, res := range results {
		switch r := res.(type) {
		case domain.ClosedResult:
			pnl := r.PnL.Percentage
			if s.Trades == 0 || pnl > s.BestPnL {
				s.BestPnL = pnl
			}
			if s.Trades == 0 || pnl < s.WorstPnL {
				s.WorstPnL = pnl
			}
			s.Trades++
			s.TotalPnL += pnl
			s.ByReason[r.Reason]++
			if pnl > 0 {
				s.Wins++
			} else {
				s.Losses++
			}
			equity += pnl
			peak = max(peak, equity)
			s.MaxDrawdown = max(s.MaxDrawdown, peak-equity)
		case domain.CancelledResult:
			s.Cancelled++
		}
	}
	if s.Trades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Trades) * 100
		s.AveragePnL = s.TotalPnL / float64(s.Trades)
	}
	return s
}

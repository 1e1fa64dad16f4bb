package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vitos/signal_engine/internal/domain"
)

// Collector turns lifecycle events into Prometheus series.
type Collector struct {
	gatherer prometheus.Gatherer

	EventsTotal      *prometheus.CounterVec
	TradePnL         *prometheus.HistogramVec
	ActiveSignals    *prometheus.GaugeVec
	ScheduledSignals *prometheus.GaugeVec
}

// NewCollector registers the engine series in a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		gatherer: reg,
		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "signal_events_total", Help: "Lifecycle events by type"},
			[]string{"type", "strategy", "symbol", "mode"},
		),
		TradePnL: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signal_trade_pnl_percent",
				Help:    "PnL of closed signals in percent after fees and slippage",
				Buckets: []float64{-10, -5, -2, -1, -0.5, 0, 0.5, 1, 2, 5, 10},
			},
			[]string{"strategy", "reason", "mode"},
		),
		ActiveSignals: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "signal_active", Help: "1 while a signal is open for the slot"},
			[]string{"strategy", "symbol", "mode"},
		),
		ScheduledSignals: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "signal_scheduled", Help: "1 while a signal waits for its entry price"},
			[]string{"strategy", "symbol", "mode"},
		),
	}
	reg.MustRegister(c.EventsTotal, c.TradePnL, c.ActiveSignals, c.ScheduledSignals)
	return c
}

func mode(backtest bool) string {
	if backtest {
		return "backtest"
	}
	return "live"
}

// Observe is an EventBus listener.
func (c *Collector) Observe(ev domain.Event) {
	m := mode(ev.Backtest)
	c.EventsTotal.WithLabelValues(string(ev.Type), ev.Strategy, ev.Symbol, m).Inc()

	switch ev.Type {
	case domain.EventScheduled:
		c.ScheduledSignals.WithLabelValues(ev.Strategy, ev.Symbol, m).Set(1)
	case domain.EventCancelled:
		c.ScheduledSignals.WithLabelValues(ev.Strategy, ev.Symbol, m).Set(0)
	case domain.EventOpened, domain.EventActive:
		c.ScheduledSignals.WithLabelValues(ev.Strategy, ev.Symbol, m).Set(0)
		c.ActiveSignals.WithLabelValues(ev.Strategy, ev.Symbol, m).Set(1)
	case domain.EventClosed:
		c.ActiveSignals.WithLabelValues(ev.Strategy, ev.Symbol, m).Set(0)
		if ev.PnL != nil {
			c.TradePnL.WithLabelValues(ev.Strategy, ev.Reason, m).Observe(ev.PnL.Percentage)
		}
	}
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

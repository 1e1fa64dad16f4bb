package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/signal_engine/internal/domain"
)

func TestCollector_Observe(t *testing.T) {
	c := NewCollector()
	base := domain.Event{Strategy: "breakout", Symbol: "BTCUSDT"}

	ev := base
	ev.Type = domain.EventOpened
	c.Observe(ev)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ActiveSignals.WithLabelValues("breakout", "BTCUSDT", "live")))

	ev.Type = domain.EventClosed
	ev.Reason = string(domain.CloseTakeProfit)
	ev.PnL = &domain.PnL{Percentage: 1.5}
	c.Observe(ev)
	assert.Equal(t, 0.0, testutil.ToFloat64(c.ActiveSignals.WithLabelValues("breakout", "BTCUSDT", "live")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.EventsTotal.WithLabelValues("closed", "breakout", "BTCUSDT", "live")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.TradePnL))

	bt := base
	bt.Type = domain.EventScheduled
	bt.Backtest = true
	c.Observe(bt)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ScheduledSignals.WithLabelValues("breakout", "BTCUSDT", "backtest")))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector()
	c.Observe(domain.Event{Type: domain.EventOpened, Strategy: "breakout", Symbol: "ETHUSDT"})

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `signal_events_total{mode="live",strategy="breakout",symbol="ETHUSDT",type="opened"} 1`), body)
}

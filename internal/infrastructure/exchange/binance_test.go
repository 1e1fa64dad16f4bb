package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/signal_engine/internal/domain"
)

func newTestBinance(t *testing.T, handler http.HandlerFunc) *BinanceAdapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	b, err := NewBinanceAdapter(BinanceOptions{BaseURL: srv.URL, RateLimitRPS: 1000}, nil)
	require.NoError(t, err)
	return b
}

func TestBinanceAdapter_FetchCandles(t *testing.T) {
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b := newTestBinance(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fapi/v1/klines", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "1m", r.URL.Query().Get("interval"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			[1704067200000,"100","102","99","101","5",1704067259999,"500",10,"2","200","0"],
			[1704067260000,"101","103","100","102","7",1704067319999,"700",12,"3","300","0"]
		]`))
	})

	candles, err := b.FetchCandles(context.Background(), "BTCUSDT", domain.Interval1m, since, 2)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, since.UnixMilli(), candles[0].Timestamp)
	assert.Equal(t, 102.0, candles[1].Close)
}

func TestBinanceAdapter_GetPrecision(t *testing.T) {
	b := newTestBinance(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fapi/v1/exchangeInfo", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"symbols":[
			{"symbol":"ETHUSDT","filters":[{"filterType":"PRICE_FILTER","tickSize":"0.01"}]},
			{"symbol":"BTCUSDT","filters":[
				{"filterType":"PRICE_FILTER","tickSize":"0.10","minPrice":"1","maxPrice":"1000000"},
				{"filterType":"LOT_SIZE","stepSize":"0.001","minQty":"0.001","maxQty":"1000"}
			]}
		]}`))
	})

	p, err := b.GetPrecision(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, "0.1", p.TickSize.String())
	assert.Equal(t, "0.001", p.StepSize.String())

	_, err = b.GetPrecision(context.Background(), "DOGEUSDT")
	assert.Error(t, err)
}

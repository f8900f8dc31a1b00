package datafeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarketSymbol(t *testing.T) {
	assert.Equal(t, "BTCUSDT", marketSymbol("BTC/USDT"))
	assert.Equal(t, "ETHUSDT", marketSymbol("ethusdt"))
	assert.Equal(t, "SOLUSDC", marketSymbol("sol/usdc"))
}

func TestBaseAsset(t *testing.T) {
	assert.Equal(t, "BTC", baseAsset("BTC/USDT"))
	assert.Equal(t, "ETH", baseAsset("ETHUSDT"))
	assert.Equal(t, "SOL", baseAsset("solusd"))
	assert.Equal(t, "XYZ", baseAsset("XYZ"))
}

func TestTimeframeDuration(t *testing.T) {
	assert.Equal(t, time.Hour, timeframeDuration("1h"))
	assert.Equal(t, 24*time.Hour, timeframeDuration("1d"))
	assert.Equal(t, 24*time.Hour, timeframeDuration("bogus"), "unknown defaults to daily")
}

func klineRow(openTime time.Time, open, high, low, close, volume string) []interface{} {
	return []interface{}{
		float64(openTime.UnixMilli()),
		open, high, low, close, volume,
		float64(openTime.Add(time.Hour).UnixMilli() - 1),
	}
}

func TestFetchBars_ParsesKlines(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "1h", r.URL.Query().Get("interval"))

		rows := [][]interface{}{
			klineRow(start, "42000.1", "42500", "41800", "42300.5", "120.5"),
			klineRow(start.Add(time.Hour), "42300.5", "42700", "42100", "42600", "98.1"),
		}
		require.NoError(t, json.NewEncoder(w).Encode(rows))
	}))
	defer server.Close()

	client := NewBinanceClientWithURL(server.URL)
	bars, err := client.FetchBars(context.Background(), "BTC/USDT", "1h", start, start.Add(2*time.Hour))

	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, start, bars[0].Timestamp)
	assert.Equal(t, "42300.5", bars[0].Close.String())
	assert.Equal(t, "42600", bars[1].Close.String())
	assert.Equal(t, "120.5", bars[0].Volume.String())
}

func TestFetchBars_PagesThroughLongRanges(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var calls int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		cursorMs := r.URL.Query().Get("startTime")
		var cursor int64
		fmt.Sscanf(cursorMs, "%d", &cursor)
		from := time.UnixMilli(cursor).UTC()

		// First call returns a full page, second a short one.
		n := 1000
		if calls > 1 {
			n = 5
		}
		rows := make([][]interface{}, n)
		for i := 0; i < n; i++ {
			ts := from.Add(time.Duration(i) * time.Hour)
			rows[i] = klineRow(ts, "100", "101", "99", "100.5", "1")
		}
		require.NoError(t, json.NewEncoder(w).Encode(rows))
	}))
	defer server.Close()

	client := NewBinanceClientWithURL(server.URL)
	bars, err := client.FetchBars(context.Background(), "BTC/USDT", "1h", start, start.Add(2000*time.Hour))

	require.NoError(t, err)
	assert.Equal(t, 2, calls, "cursor advanced past the full page")
	assert.Len(t, bars, 1005)
	// Chronological and contiguous across the page boundary.
	assert.Equal(t, start.Add(999*time.Hour), bars[999].Timestamp)
	assert.Equal(t, start.Add(1000*time.Hour), bars[1000].Timestamp)
}

func TestFetchBars_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "teapot", http.StatusTeapot)
	}))
	defer server.Close()

	client := NewBinanceClientWithURL(server.URL)
	_, err := client.FetchBars(context.Background(), "BTC/USDT", "1h", time.Now().Add(-time.Hour), time.Now())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 418")
}

func TestLastPrice_Parses24hTicker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/24hr", r.URL.Path)
		assert.Equal(t, "ETHUSDT", r.URL.Query().Get("symbol"))
		fmt.Fprint(w, `{"lastPrice":"3150.42","highPrice":"3200","lowPrice":"3080","volume":"54000","priceChangePercent":"1.85"}`)
	}))
	defer server.Close()

	client := NewBinanceClientWithURL(server.URL)
	stats, err := client.LastPrice(context.Background(), "ETH/USDT")

	require.NoError(t, err)
	assert.Equal(t, "ETH/USDT", stats.Symbol)
	assert.Equal(t, "3150.42", stats.Last.String())
	assert.Equal(t, "3200", stats.High24h.String())
	assert.Equal(t, "1.85", stats.ChangePct24h.String())
}

func TestLastPrice_BadPriceIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"lastPrice":"not-a-number"}`)
	}))
	defer server.Close()

	client := NewBinanceClientWithURL(server.URL)
	_, err := client.LastPrice(context.Background(), "BTC/USDT")
	require.Error(t, err)
}

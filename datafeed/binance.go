package datafeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/tradesim/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// BINANCE REST CLIENT - Historical klines and 24h tickers
// ═══════════════════════════════════════════════════════════════════════════════

const klinePageLimit = 1000

// BinanceClient fetches market data over the Binance REST API.
// Implements both BarSource and PriceSource.
type BinanceClient struct {
	restURL string
	http    *http.Client
}

// NewBinanceClient creates a REST client against api.binance.com.
func NewBinanceClient() *BinanceClient {
	return &BinanceClient{
		restURL: "https://api.binance.com",
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// NewBinanceClientWithURL creates a client against a custom endpoint (tests).
func NewBinanceClientWithURL(baseURL string) *BinanceClient {
	return &BinanceClient{
		restURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// FetchBars returns chronologically ordered bars in [since, until), paging
// through the klines endpoint.
func (c *BinanceClient) FetchBars(ctx context.Context, symbol, timeframe string, since, until time.Time) ([]types.Bar, error) {
	var bars []types.Bar
	cursor := since

	for cursor.Before(until) {
		url := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&startTime=%d&endTime=%d&limit=%d",
			c.restURL, marketSymbol(symbol), timeframe,
			cursor.UnixMilli(), until.UnixMilli(), klinePageLimit)

		page, err := c.fetchKlinePage(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("fetch klines for %s: %w", symbol, err)
		}
		if len(page) == 0 {
			break
		}

		bars = append(bars, page...)
		cursor = page[len(page)-1].Timestamp.Add(timeframeDuration(timeframe))

		if len(page) < klinePageLimit {
			break
		}
	}

	return bars, nil
}

func (c *BinanceClient) fetchKlinePage(ctx context.Context, url string) ([]types.Bar, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	// Kline rows: [openTime, open, high, low, close, volume, closeTime, ...]
	var raw [][]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}

	bars := make([]types.Bar, 0, len(raw))
	for _, row := range raw {
		if len(row) < 7 {
			continue
		}
		openTime, _ := row[0].(float64)
		bars = append(bars, types.Bar{
			Timestamp: time.UnixMilli(int64(openTime)).UTC(),
			Open:      decimalField(row[1]),
			High:      decimalField(row[2]),
			Low:       decimalField(row[3]),
			Close:     decimalField(row[4]),
			Volume:    decimalField(row[5]),
		})
	}
	return bars, nil
}

// LastPrice returns the last traded price with 24h statistics.
func (c *BinanceClient) LastPrice(ctx context.Context, symbol string) (types.TickerStats, error) {
	url := fmt.Sprintf("%s/api/v3/ticker/24hr?symbol=%s", c.restURL, marketSymbol(symbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return types.TickerStats{}, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return types.TickerStats{}, fmt.Errorf("fetch ticker for %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.TickerStats{}, fmt.Errorf("fetch ticker for %s: unexpected status %d", symbol, resp.StatusCode)
	}

	var body struct {
		LastPrice          string `json:"lastPrice"`
		HighPrice          string `json:"highPrice"`
		LowPrice           string `json:"lowPrice"`
		Volume             string `json:"volume"`
		PriceChangePercent string `json:"priceChangePercent"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return types.TickerStats{}, err
	}

	last, err := decimal.NewFromString(body.LastPrice)
	if err != nil {
		return types.TickerStats{}, fmt.Errorf("bad last price %q for %s", body.LastPrice, symbol)
	}

	return types.TickerStats{
		Symbol:       symbol,
		Last:         last,
		High24h:      parseDecimal(body.HighPrice),
		Low24h:       parseDecimal(body.LowPrice),
		Volume24h:    parseDecimal(body.Volume),
		ChangePct24h: parseDecimal(body.PriceChangePercent),
	}, nil
}

func decimalField(v interface{}) decimal.Decimal {
	s, _ := v.(string)
	return parseDecimal(s)
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

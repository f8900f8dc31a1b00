package datafeed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/tradesim/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// BINANCE WEBSOCKET STREAM - Cached real-time tickers
// ═══════════════════════════════════════════════════════════════════════════════
//
// Subscribes to combined miniTicker streams and serves the latest values from
// an in-memory cache. The live loop polls LastPrice against this cache so a
// venue hiccup surfaces as a per-symbol stale error, never a crash.
//
// ═══════════════════════════════════════════════════════════════════════════════

const streamStaleAfter = 2 * time.Minute

// StreamFeed is a PriceSource backed by a Binance WebSocket stream.
type StreamFeed struct {
	wsURL   string
	symbols []string

	mu      sync.RWMutex
	tickers map[string]streamTicker
	running bool
	conn    *websocket.Conn
	stopCh  chan struct{}
}

type streamTicker struct {
	stats      types.TickerStats
	receivedAt time.Time
}

// NewStreamFeed creates a stream feed for the given symbols ("BTC/USDT", ...).
func NewStreamFeed(symbols ...string) *StreamFeed {
	return &StreamFeed{
		wsURL:   "wss://stream.binance.com:9443",
		symbols: symbols,
		tickers: make(map[string]streamTicker),
		stopCh:  make(chan struct{}),
	}
}

// Start connects and begins streaming. Reconnects on failure until Stop.
func (f *StreamFeed) Start() error {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return nil
	}
	f.running = true
	f.mu.Unlock()

	go f.runWebSocket()

	log.Info().Strs("symbols", f.symbols).Msg("📈 Binance stream started")
	return nil
}

// Stop closes the connection.
func (f *StreamFeed) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running {
		return
	}
	f.running = false
	close(f.stopCh)
	if f.conn != nil {
		f.conn.Close()
	}
}

// LastPrice serves the cached ticker for symbol. Returns an error when no
// fresh value has been received yet.
func (f *StreamFeed) LastPrice(_ context.Context, symbol string) (types.TickerStats, error) {
	f.mu.RLock()
	tick, ok := f.tickers[marketSymbol(symbol)]
	f.mu.RUnlock()

	if !ok {
		return types.TickerStats{}, fmt.Errorf("no price received yet for %s", symbol)
	}
	if time.Since(tick.receivedAt) > streamStaleAfter {
		return types.TickerStats{}, fmt.Errorf("price for %s is stale (%s old)", symbol, time.Since(tick.receivedAt).Round(time.Second))
	}

	stats := tick.stats
	stats.Symbol = symbol
	return stats, nil
}

func (f *StreamFeed) runWebSocket() {
	for f.isRunning() {
		if err := f.connect(); err != nil {
			log.Error().Err(err).Msg("WebSocket connection failed")
			select {
			case <-time.After(5 * time.Second):
			case <-f.stopCh:
				return
			}
			continue
		}

		f.readMessages()

		if f.isRunning() {
			log.Warn().Msg("WebSocket disconnected, reconnecting...")
			time.Sleep(time.Second)
		}
	}
}

func (f *StreamFeed) isRunning() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.running
}

func (f *StreamFeed) connect() error {
	// Combined streams format: /stream?streams=btcusdt@miniTicker/ethusdt@miniTicker
	streams := make([]string, len(f.symbols))
	for i, sym := range f.symbols {
		streams[i] = strings.ToLower(marketSymbol(sym)) + "@miniTicker"
	}
	url := fmt.Sprintf("%s/stream?streams=%s", f.wsURL, strings.Join(streams, "/"))

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("websocket dial failed: %w", err)
	}

	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()

	log.Info().Str("url", url).Msg("🔌 WebSocket connected to Binance")
	return nil
}

func (f *StreamFeed) readMessages() {
	for f.isRunning() {
		_, message, err := f.conn.ReadMessage()
		if err != nil {
			if f.isRunning() {
				log.Error().Err(err).Msg("WebSocket read error")
			}
			return
		}
		f.handleMessage(message)
	}
}

func (f *StreamFeed) handleMessage(data []byte) {
	var envelope struct {
		Data struct {
			EventType string `json:"e"`
			Symbol    string `json:"s"`
			Close     string `json:"c"`
			Open      string `json:"o"`
			High      string `json:"h"`
			Low       string `json:"l"`
			Volume    string `json:"v"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return
	}
	if envelope.Data.EventType != "24hrMiniTicker" {
		return
	}

	last := parseDecimal(envelope.Data.Close)
	if last.IsZero() {
		return
	}

	open := parseDecimal(envelope.Data.Open)
	change := decimal.Zero
	if !open.IsZero() {
		change = last.Sub(open).Div(open).Mul(decimal.NewFromInt(100))
	}

	f.mu.Lock()
	f.tickers[envelope.Data.Symbol] = streamTicker{
		stats: types.TickerStats{
			Last:         last,
			High24h:      parseDecimal(envelope.Data.High),
			Low24h:       parseDecimal(envelope.Data.Low),
			Volume24h:    parseDecimal(envelope.Data.Volume),
			ChangePct24h: change,
		},
		receivedAt: time.Now(),
	}
	f.mu.Unlock()
}

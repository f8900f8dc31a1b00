package datafeed

import (
	"context"
	"strings"
	"time"

	"github.com/web3guy0/tradesim/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// DATA SOURCE ADAPTER - Boundary to market data venues
// ═══════════════════════════════════════════════════════════════════════════════
//
// Fetch failures are recoverable: callers log and continue with stale or
// missing data for that symbol.
//
// ═══════════════════════════════════════════════════════════════════════════════

// BarSource provides chronologically ordered historical OHLCV bars.
type BarSource interface {
	FetchBars(ctx context.Context, symbol, timeframe string, since, until time.Time) ([]types.Bar, error)
}

// PriceSource provides the latest price with basic 24h stats.
type PriceSource interface {
	LastPrice(ctx context.Context, symbol string) (types.TickerStats, error)
}

// marketSymbol normalizes "BTC/USDT" to the venue form "BTCUSDT".
func marketSymbol(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(symbol, "/", ""))
}

// timeframeDuration maps a timeframe string to its bar duration.
func timeframeDuration(timeframe string) time.Duration {
	switch timeframe {
	case "1m":
		return time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "1h":
		return time.Hour
	case "4h":
		return 4 * time.Hour
	case "1d":
		return 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

package portfolio

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/tradesim/risk"
	"github.com/web3guy0/tradesim/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// PORTFOLIO LEDGER - Single source of truth for cash, positions and history
// ═══════════════════════════════════════════════════════════════════════════════
//
// One driver (backtest or live) mutates the ledger at a time. The mutex is
// held only for the duration of a single mutation so the supervisor can read
// concurrently with the live loop.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Config holds the execution friction and risk parameters of a ledger.
type Config struct {
	InitialCapital decimal.Decimal
	CommissionRate decimal.Decimal
	SlippageRate   decimal.Decimal
	Limits         risk.Limits
}

// DefaultConfig returns crypto-grade frictions: 0.1% commission, 0.2% slippage.
func DefaultConfig() Config {
	return Config{
		InitialCapital: decimal.NewFromInt(10000),
		CommissionRate: decimal.NewFromFloat(0.001),
		SlippageRate:   decimal.NewFromFloat(0.002),
		Limits:         risk.DefaultLimits(),
	}
}

// Ledger owns cash, open positions, the trade log and the value history.
type Ledger struct {
	mu  sync.RWMutex
	cfg Config

	cash      decimal.Decimal
	positions map[string]*types.Position
	trades    []types.Trade
	history   []types.ValuePoint

	peakValue   decimal.Decimal
	maxDrawdown decimal.Decimal

	totalTrades   int
	winningTrades int
	losingTrades  int
}

// NewLedger creates a ledger starting from the configured initial capital.
func NewLedger(cfg Config) *Ledger {
	return &Ledger{
		cfg:       cfg,
		cash:      cfg.InitialCapital,
		positions: make(map[string]*types.Position),
		peakValue: cfg.InitialCapital,
	}
}

// Config returns the ledger's configuration.
func (l *Ledger) Config() Config { return l.cfg }

// InitialCapital returns the configured starting capital.
func (l *Ledger) InitialCapital() decimal.Decimal { return l.cfg.InitialCapital }

// Cash returns the current free cash.
func (l *Ledger) Cash() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cash
}

// valueLocked computes cash + Σ quantity × price. Caller holds the lock.
// Symbols missing from prices fall back to the position's last seen price.
func (l *Ledger) valueLocked(prices map[string]decimal.Decimal) decimal.Decimal {
	value := l.cash
	for _, pos := range l.positions {
		price, ok := prices[pos.Symbol]
		if !ok {
			price = pos.CurrentPrice
		}
		value = value.Add(pos.Quantity.Mul(price))
	}
	return value
}

// Value returns the portfolio value at the given prices.
func (l *Ledger) Value(prices map[string]decimal.Decimal) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.valueLocked(prices)
}

// MarkPrice refreshes a position's last seen price and unrealized P&L.
// No-op when the symbol has no open position.
func (l *Ledger) MarkPrice(symbol string, price decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if pos, ok := l.positions[symbol]; ok {
		pos.MarkPrice(price)
	}
}

// Position returns a copy of the open position for symbol, if any.
func (l *Ledger) Position(symbol string) (types.Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	pos, ok := l.positions[symbol]
	if !ok {
		return types.Position{}, false
	}
	return *pos, true
}

// Positions returns copies of all open positions.
func (l *Ledger) Positions() []types.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]types.Position, 0, len(l.positions))
	for _, pos := range l.positions {
		out = append(out, *pos)
	}
	return out
}

// OpenPositionCount returns the number of open positions.
func (l *Ledger) OpenPositionCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.positions)
}

// Trades returns a copy of the trade log.
func (l *Ledger) Trades() []types.Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]types.Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

// History returns a copy of the value history.
func (l *Ledger) History() []types.ValuePoint {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]types.ValuePoint, len(l.history))
	copy(out, l.history)
	return out
}

// Counters returns the cumulative trade / win / loss counts.
func (l *Ledger) Counters() (total, wins, losses int) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.totalTrades, l.winningTrades, l.losingTrades
}

// PeakValue returns the running peak portfolio value.
func (l *Ledger) PeakValue() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.peakValue
}

// MaxDrawdown returns the running maximum drawdown fraction.
func (l *Ledger) MaxDrawdown() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.maxDrawdown
}

// RecordSnapshot appends a valuation snapshot at the given prices and updates
// the running peak and max drawdown.
func (l *Ledger) RecordSnapshot(ts time.Time, prices map[string]decimal.Decimal, dailyPnLPct decimal.Decimal) types.ValuePoint {
	l.mu.Lock()
	defer l.mu.Unlock()

	value := l.valueLocked(prices)

	if value.GreaterThan(l.peakValue) {
		l.peakValue = value
	}
	drawdown := l.peakValue.Sub(value).Div(l.peakValue)
	if drawdown.GreaterThan(l.maxDrawdown) {
		l.maxDrawdown = drawdown
	}

	point := types.ValuePoint{
		Timestamp:      ts,
		Value:          value,
		Cash:           l.cash,
		PositionsValue: value.Sub(l.cash),
		OpenPositions:  len(l.positions),
		DailyPnLPct:    dailyPnLPct,
	}
	l.history = append(l.history, point)
	return point
}

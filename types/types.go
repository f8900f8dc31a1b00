package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SHARED TYPES - Avoid import cycles
// ═══════════════════════════════════════════════════════════════════════════════

// Action is a strategy or risk decision for one step.
type Action string

const (
	Buy  Action = "BUY"
	Sell Action = "SELL"
	Hold Action = "HOLD"
)

// RejectReason explains why an order was not executed.
// A rejection is a routine no-op, never an error.
type RejectReason string

const (
	RejectNone              RejectReason = ""
	RejectDuplicatePosition RejectReason = "duplicate_position"
	RejectNoPosition        RejectReason = "no_position"
	RejectInsufficientFunds RejectReason = "insufficient_funds"
	RejectZeroQuantity      RejectReason = "zero_quantity"
)

// ExecutionResult is the tagged outcome of an order: either a filled trade or a
// rejection reason. Exactly one side is set.
type ExecutionResult struct {
	Trade  *Trade
	Reason RejectReason
}

// Executed reports whether the order filled.
func (r ExecutionResult) Executed() bool { return r.Trade != nil }

// Rejected reports whether the order was a silent no-op.
func (r ExecutionResult) Rejected() bool { return r.Trade == nil }

// Filled builds an executed result.
func Filled(t *Trade) ExecutionResult { return ExecutionResult{Trade: t} }

// NotExecuted builds a rejected result.
func NotExecuted(reason RejectReason) ExecutionResult { return ExecutionResult{Reason: reason} }

// Position represents an open holding of one symbol.
// At most one position per symbol exists at any time (no averaging).
type Position struct {
	Symbol           string
	Quantity         decimal.Decimal
	EntryPrice       decimal.Decimal
	EntryTime        time.Time
	CurrentPrice     decimal.Decimal
	UnrealizedPnL    decimal.Decimal
	UnrealizedPnLPct decimal.Decimal
}

// MarkPrice refreshes the last seen price and the derived unrealized P&L.
func (p *Position) MarkPrice(price decimal.Decimal) {
	p.CurrentPrice = price
	p.UnrealizedPnL = price.Sub(p.EntryPrice).Mul(p.Quantity)
	if !p.EntryPrice.IsZero() {
		p.UnrealizedPnLPct = price.Div(p.EntryPrice).Sub(decimal.NewFromInt(1))
	}
}

// Trade is an immutable record of one executed transaction.
type Trade struct {
	Timestamp       time.Time
	Symbol          string
	Action          Action // BUY or SELL
	Price           decimal.Decimal
	Quantity        decimal.Decimal
	Commission      decimal.Decimal
	SlippageCost    decimal.Decimal
	CashDelta       decimal.Decimal // total cash spent (BUY) or net proceeds (SELL)
	PortfolioBefore decimal.Decimal
	PortfolioAfter  decimal.Decimal
	Reason          string
}

// Bar is one OHLCV candle.
type Bar struct {
	Timestamp time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
}

// TickerStats is a last price with basic 24h statistics.
type TickerStats struct {
	Symbol       string
	Last         decimal.Decimal
	High24h      decimal.Decimal
	Low24h       decimal.Decimal
	Volume24h    decimal.Decimal
	ChangePct24h decimal.Decimal
}

// ValuePoint is one portfolio valuation snapshot.
type ValuePoint struct {
	Timestamp      time.Time
	Value          decimal.Decimal
	Cash           decimal.Decimal
	PositionsValue decimal.Decimal
	OpenPositions  int
	DailyPnLPct    decimal.Decimal
}

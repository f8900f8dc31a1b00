package portfolio

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/tradesim/risk"
	"github.com/web3guy0/tradesim/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// ORDER EXECUTION - Commission, slippage and risk-sized fills
// ═══════════════════════════════════════════════════════════════════════════════
//
// BUY:  execution price = reference * (1 + slippage), quantity from sizing
// SELL: execution price = reference * (1 - slippage), full liquidation
//
// A signal that cannot be honored is a silent no-op carrying a reject reason,
// never an error.
//
// ═══════════════════════════════════════════════════════════════════════════════

var one = decimal.NewFromInt(1)

// Execute applies a BUY or SELL against the ledger at the given reference
// price. Every fill appends exactly one trade; rejections leave the ledger
// untouched.
func (l *Ledger) Execute(ts time.Time, symbol string, action types.Action, refPrice decimal.Decimal, reason string) types.ExecutionResult {
	if action == types.Hold {
		return types.NotExecuted(types.RejectNone)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	switch action {
	case types.Buy:
		return l.executeBuy(ts, symbol, refPrice, reason)
	case types.Sell:
		return l.executeSell(ts, symbol, refPrice, reason)
	}
	return types.NotExecuted(types.RejectNone)
}

func (l *Ledger) executeBuy(ts time.Time, symbol string, refPrice decimal.Decimal, reason string) types.ExecutionResult {
	if _, open := l.positions[symbol]; open {
		return types.NotExecuted(types.RejectDuplicatePosition)
	}

	before := l.valueLocked(map[string]decimal.Decimal{symbol: refPrice})

	positionValue := risk.PositionValue(l.cfg.Limits, before, l.cash)
	quantity := positionValue.Div(refPrice)
	if quantity.LessThanOrEqual(decimal.Zero) {
		return types.NotExecuted(types.RejectZeroQuantity)
	}

	executionPrice := refPrice.Mul(one.Add(l.cfg.SlippageRate))
	cost := quantity.Mul(executionPrice)
	commission := cost.Mul(l.cfg.CommissionRate)
	totalCost := cost.Add(commission)

	if totalCost.GreaterThan(l.cash) {
		return types.NotExecuted(types.RejectInsufficientFunds)
	}

	l.cash = l.cash.Sub(totalCost)
	l.positions[symbol] = &types.Position{
		Symbol:       symbol,
		Quantity:     quantity,
		EntryPrice:   executionPrice,
		EntryTime:    ts,
		CurrentPrice: refPrice,
	}

	after := l.valueLocked(map[string]decimal.Decimal{symbol: refPrice})

	trade := types.Trade{
		Timestamp:       ts,
		Symbol:          symbol,
		Action:          types.Buy,
		Price:           executionPrice,
		Quantity:        quantity,
		Commission:      commission,
		SlippageCost:    executionPrice.Sub(refPrice).Mul(quantity),
		CashDelta:       totalCost.Neg(),
		PortfolioBefore: before,
		PortfolioAfter:  after,
		Reason:          reason,
	}
	l.trades = append(l.trades, trade)
	l.totalTrades++

	log.Debug().
		Str("symbol", symbol).
		Str("qty", quantity.StringFixed(6)).
		Str("price", executionPrice.StringFixed(2)).
		Str("reason", reason).
		Msg("🟢 BUY filled")

	return types.Filled(&trade)
}

func (l *Ledger) executeSell(ts time.Time, symbol string, refPrice decimal.Decimal, reason string) types.ExecutionResult {
	pos, open := l.positions[symbol]
	if !open {
		return types.NotExecuted(types.RejectNoPosition)
	}

	before := l.valueLocked(map[string]decimal.Decimal{symbol: refPrice})

	// Always liquidates the full quantity. No partial sells.
	quantity := pos.Quantity
	executionPrice := refPrice.Mul(one.Sub(l.cfg.SlippageRate))
	proceeds := quantity.Mul(executionPrice)
	commission := proceeds.Mul(l.cfg.CommissionRate)
	netProceeds := proceeds.Sub(commission)

	l.cash = l.cash.Add(netProceeds)

	pnl := netProceeds.Sub(pos.EntryPrice.Mul(quantity))
	if pnl.GreaterThan(decimal.Zero) {
		l.winningTrades++
	} else {
		l.losingTrades++
	}

	delete(l.positions, symbol)

	after := l.valueLocked(map[string]decimal.Decimal{symbol: refPrice})

	trade := types.Trade{
		Timestamp:       ts,
		Symbol:          symbol,
		Action:          types.Sell,
		Price:           executionPrice,
		Quantity:        quantity,
		Commission:      commission,
		SlippageCost:    refPrice.Sub(executionPrice).Mul(quantity),
		CashDelta:       netProceeds,
		PortfolioBefore: before,
		PortfolioAfter:  after,
		Reason:          reason,
	}
	l.trades = append(l.trades, trade)
	l.totalTrades++

	emoji := "🟢"
	if pnl.LessThan(decimal.Zero) {
		emoji = "🔴"
	}
	log.Debug().
		Str("symbol", symbol).
		Str("qty", quantity.StringFixed(6)).
		Str("price", executionPrice.StringFixed(2)).
		Str("pnl", pnl.StringFixed(2)).
		Str("reason", reason).
		Msg(emoji + " SELL filled")

	return types.Filled(&trade)
}

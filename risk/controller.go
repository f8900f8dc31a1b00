package risk

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/tradesim/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// RISK CONTROLLER - Stop loss / take profit sweep and kill switch
// ═══════════════════════════════════════════════════════════════════════════════
//
// The sweep always runs BEFORE the strategy decision for a time step.
// This ordering is part of the contract: an exit forced this step is not
// shielded from the strategy beyond the ordering itself.
//
// ═══════════════════════════════════════════════════════════════════════════════

var one = decimal.NewFromInt(1)

// Executor is the slice of the ledger the controller needs.
// Defined here to avoid an import cycle with the portfolio package.
type Executor interface {
	Execute(ts time.Time, symbol string, action types.Action, refPrice decimal.Decimal, reason string) types.ExecutionResult
	MarkPrice(symbol string, price decimal.Decimal)
	Positions() []types.Position
}

// Controller evaluates risk rules against the ledger's current view.
type Controller struct {
	limits Limits
}

// NewController creates a risk controller.
func NewController(limits Limits) *Controller {
	return &Controller{limits: limits}
}

// Limits returns the configured limits.
func (c *Controller) Limits() Limits { return c.limits }

// Sweep marks every open position to the given prices and force-sells any
// position past its stop loss or take profit threshold. Symbols without a
// fresh price are skipped. Returns the trades that fired.
func (c *Controller) Sweep(ex Executor, ts time.Time, prices map[string]decimal.Decimal) []types.Trade {
	var fired []types.Trade

	for _, pos := range ex.Positions() {
		price, ok := prices[pos.Symbol]
		if !ok || price.IsZero() {
			continue
		}

		ex.MarkPrice(pos.Symbol, price)
		pnlPct := price.Div(pos.EntryPrice).Sub(one)

		var reason string
		switch {
		case pnlPct.LessThanOrEqual(c.limits.StopLossPct.Neg()):
			reason = fmt.Sprintf("Stop Loss triggered at %s%%", pnlPct.Mul(decimal.NewFromInt(100)).StringFixed(2))
		case pnlPct.GreaterThanOrEqual(c.limits.TakeProfitPct):
			reason = fmt.Sprintf("Take Profit triggered at %s%%", pnlPct.Mul(decimal.NewFromInt(100)).StringFixed(2))
		default:
			continue
		}

		res := ex.Execute(ts, pos.Symbol, types.Sell, price, reason)
		if res.Executed() {
			log.Info().
				Str("symbol", pos.Symbol).
				Str("pnl_pct", pnlPct.Mul(decimal.NewFromInt(100)).StringFixed(2)).
				Str("reason", reason).
				Msg("🛡️ Risk exit")
			fired = append(fired, *res.Trade)
		}
	}

	return fired
}

// KillSwitch returns the daily P&L fraction and whether the daily loss limit
// is breached. Live mode only; evaluated once per tick before the sweep.
func (c *Controller) KillSwitch(currentValue, dayStartValue decimal.Decimal) (decimal.Decimal, bool) {
	if dayStartValue.IsZero() {
		return decimal.Zero, false
	}
	dailyPnL := currentValue.Sub(dayStartValue).Div(dayStartValue)
	return dailyPnL, dailyPnL.LessThanOrEqual(c.limits.MaxDailyLoss.Neg())
}

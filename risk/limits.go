package risk

import (
	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// RISK LIMITS - Position sizing rules
// ═══════════════════════════════════════════════════════════════════════════════
//
// Sizing formula:
//   value = min(maxPositionPct * portfolio, (riskPerTrade * portfolio) / stopLossPct)
//   value = min(value, 0.95 * availableCash)
//   quantity = value / referencePrice
//
// ═══════════════════════════════════════════════════════════════════════════════

// cashBuffer holds back 5% of cash on every entry.
var cashBuffer = decimal.NewFromFloat(0.95)

// Limits holds the risk parameters applied to every trade.
type Limits struct {
	MaxPositionPct decimal.Decimal // max position as fraction of portfolio value
	RiskPerTrade   decimal.Decimal // fraction of portfolio risked per trade
	StopLossPct    decimal.Decimal // stop loss trigger, e.g. 0.15
	TakeProfitPct  decimal.Decimal // take profit trigger, e.g. 0.30
	MaxDailyLoss   decimal.Decimal // daily loss kill switch, e.g. 0.05
}

// DefaultLimits returns the standard crypto limits.
func DefaultLimits() Limits {
	return Limits{
		MaxPositionPct: decimal.NewFromFloat(0.20),
		RiskPerTrade:   decimal.NewFromFloat(0.02),
		StopLossPct:    decimal.NewFromFloat(0.15),
		TakeProfitPct:  decimal.NewFromFloat(0.30),
		MaxDailyLoss:   decimal.NewFromFloat(0.05),
	}
}

// PositionValue returns the cash value to commit to a new position.
// Pure function over the current portfolio view.
func PositionValue(l Limits, portfolioValue, availableCash decimal.Decimal) decimal.Decimal {
	maxPositionValue := portfolioValue.Mul(l.MaxPositionPct)

	// Risk-based sizing: wider stops mean smaller positions.
	riskAmount := portfolioValue.Mul(l.RiskPerTrade)
	riskBasedValue := riskAmount.Div(l.StopLossPct)

	value := decimal.Min(maxPositionValue, riskBasedValue)

	return decimal.Min(value, availableCash.Mul(cashBuffer))
}

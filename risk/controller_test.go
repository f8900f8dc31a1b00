package risk_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/tradesim/portfolio"
	"github.com/web3guy0/tradesim/risk"
	"github.com/web3guy0/tradesim/types"
)

func testLimits() risk.Limits {
	return risk.Limits{
		MaxPositionPct: decimal.NewFromFloat(0.20),
		RiskPerTrade:   decimal.NewFromFloat(0.02),
		StopLossPct:    decimal.NewFromFloat(0.20),
		TakeProfitPct:  decimal.NewFromFloat(0.30),
		MaxDailyLoss:   decimal.NewFromFloat(0.05),
	}
}

func testLedger(t *testing.T) *portfolio.Ledger {
	t.Helper()
	return portfolio.NewLedger(portfolio.Config{
		InitialCapital: decimal.NewFromInt(10000),
		CommissionRate: decimal.NewFromFloat(0.001),
		SlippageRate:   decimal.NewFromFloat(0.002),
		Limits:         testLimits(),
	})
}

func TestPositionValue_TakesTheTightestLimit(t *testing.T) {
	limits := testLimits()
	v := decimal.NewFromInt(10000)

	// min(2000, 200/0.20 = 1000, 9500) = 1000: risk-based wins
	got := risk.PositionValue(limits, v, v)
	assert.True(t, got.Equal(decimal.NewFromInt(1000)), "got %s", got)

	// With a tight stop the max-position cap wins: min(2000, 200/0.02=10000, 9500)
	limits.StopLossPct = decimal.NewFromFloat(0.02)
	got = risk.PositionValue(limits, v, v)
	assert.True(t, got.Equal(decimal.NewFromInt(2000)), "got %s", got)

	// Low cash puts the 95% buffer in charge.
	limits.MaxPositionPct = decimal.NewFromInt(1)
	got = risk.PositionValue(limits, v, decimal.NewFromInt(100))
	assert.True(t, got.Equal(decimal.NewFromInt(95)), "got %s", got)
}

func TestSweep_StopLossClosesPosition(t *testing.T) {
	ledger := testLedger(t)
	ctrl := risk.NewController(testLimits())
	ts := time.Now()

	require.True(t, ledger.Execute(ts, "BTC/USDT", types.Buy, decimal.NewFromInt(50000), "entry").Executed())

	// Entry at 50100 (slippage); 40000 is roughly -20.2%, past the 20% stop.
	fired := ctrl.Sweep(ledger, ts.Add(time.Hour), map[string]decimal.Decimal{
		"BTC/USDT": decimal.NewFromInt(40000),
	})

	require.Len(t, fired, 1)
	assert.Equal(t, types.Sell, fired[0].Action)
	assert.Contains(t, fired[0].Reason, "Stop Loss triggered at -20.16%")
	assert.Equal(t, 0, ledger.OpenPositionCount())
}

func TestSweep_TakeProfitClosesPosition(t *testing.T) {
	ledger := testLedger(t)
	ctrl := risk.NewController(testLimits())
	ts := time.Now()

	require.True(t, ledger.Execute(ts, "BTC/USDT", types.Buy, decimal.NewFromInt(50000), "entry").Executed())

	// 66000 / 50100 - 1 = +31.74%, past the 30% take profit.
	fired := ctrl.Sweep(ledger, ts.Add(time.Hour), map[string]decimal.Decimal{
		"BTC/USDT": decimal.NewFromInt(66000),
	})

	require.Len(t, fired, 1)
	assert.Contains(t, fired[0].Reason, "Take Profit triggered at")
	assert.Equal(t, 0, ledger.OpenPositionCount())
}

func TestSweep_InsideThresholdsHolds(t *testing.T) {
	ledger := testLedger(t)
	ctrl := risk.NewController(testLimits())
	ts := time.Now()

	require.True(t, ledger.Execute(ts, "BTC/USDT", types.Buy, decimal.NewFromInt(50000), "entry").Executed())

	fired := ctrl.Sweep(ledger, ts.Add(time.Hour), map[string]decimal.Decimal{
		"BTC/USDT": decimal.NewFromInt(48000),
	})

	assert.Empty(t, fired)
	assert.Equal(t, 1, ledger.OpenPositionCount())

	// The sweep still refreshed the mark.
	pos, ok := ledger.Position("BTC/USDT")
	require.True(t, ok)
	assert.True(t, pos.CurrentPrice.Equal(decimal.NewFromInt(48000)))
}

func TestSweep_MissingPriceSkipsSymbol(t *testing.T) {
	ledger := testLedger(t)
	ctrl := risk.NewController(testLimits())
	ts := time.Now()

	require.True(t, ledger.Execute(ts, "BTC/USDT", types.Buy, decimal.NewFromInt(50000), "entry").Executed())

	// No BTC price at all: position survives even though it would be stopped
	// out at zero.
	fired := ctrl.Sweep(ledger, ts.Add(time.Hour), map[string]decimal.Decimal{})

	assert.Empty(t, fired)
	assert.Equal(t, 1, ledger.OpenPositionCount())
}

func TestKillSwitch_BreachesOnDailyLoss(t *testing.T) {
	ctrl := risk.NewController(testLimits())
	dayStart := decimal.NewFromInt(10000)

	// -4.9%: not breached
	pnl, breached := ctrl.KillSwitch(decimal.NewFromInt(9510), dayStart)
	assert.False(t, breached)
	assert.True(t, pnl.Equal(decimal.NewFromFloat(-0.049)), "got %s", pnl)

	// exactly -5%: breached (inclusive threshold)
	_, breached = ctrl.KillSwitch(decimal.NewFromInt(9500), dayStart)
	assert.True(t, breached)

	// -6%: breached
	_, breached = ctrl.KillSwitch(decimal.NewFromInt(9400), dayStart)
	assert.True(t, breached)
}

func TestKillSwitch_ZeroBaselineNeverBreaches(t *testing.T) {
	ctrl := risk.NewController(testLimits())

	pnl, breached := ctrl.KillSwitch(decimal.NewFromInt(100), decimal.Zero)
	assert.False(t, breached)
	assert.True(t, pnl.IsZero())
}

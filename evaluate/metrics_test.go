package evaluate

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/web3guy0/tradesim/types"
)

func points(values ...float64) []types.ValuePoint {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]types.ValuePoint, len(values))
	for i, v := range values {
		out[i] = types.ValuePoint{
			Timestamp: ts.Add(time.Duration(i) * 24 * time.Hour),
			Value:     decimal.NewFromFloat(v),
		}
	}
	return out
}

func TestCompute_EmptyInputs(t *testing.T) {
	m := Compute(decimal.NewFromInt(10000), nil, nil, 0, 0)

	assert.Equal(t, 10000.0, m.InitialCapital)
	assert.Equal(t, 10000.0, m.FinalValue)
	assert.Zero(t, m.TotalReturn)
	assert.Zero(t, m.SharpeRatio)
	assert.Zero(t, m.MaxDrawdown)
	assert.Zero(t, m.WinRate)
}

func TestCompute_ReturnAndDrawdown(t *testing.T) {
	// Peak 120, trough 90: drawdown (120-90)/120 = 0.25
	m := Compute(decimal.NewFromInt(100), points(100, 120, 90, 110), nil, 0, 0)

	assert.InDelta(t, 0.10, m.TotalReturn, 1e-12)
	assert.InDelta(t, 0.25, m.MaxDrawdown, 1e-12)
	assert.Equal(t, 110.0, m.FinalValue)
}

func TestCompute_FlatSeriesHasZeroSharpe(t *testing.T) {
	m := Compute(decimal.NewFromInt(100), points(100, 100, 100, 100), nil, 0, 0)

	assert.Zero(t, m.SharpeRatio, "zero stdev must not divide")
	assert.Zero(t, m.TotalReturn)
	assert.Zero(t, m.MaxDrawdown)
}

func TestCompute_RisingSeriesHasPositiveSharpe(t *testing.T) {
	m := Compute(decimal.NewFromInt(100), points(100, 101, 103, 104, 106), nil, 0, 0)

	assert.Greater(t, m.SharpeRatio, 0.0)
}

func TestCompute_WinRateFromCounters(t *testing.T) {
	trades := []types.Trade{
		{Action: types.Buy},
		{Action: types.Sell, PortfolioBefore: decimal.NewFromInt(100), PortfolioAfter: decimal.NewFromInt(110)},
		{Action: types.Buy},
		{Action: types.Sell, PortfolioBefore: decimal.NewFromInt(110), PortfolioAfter: decimal.NewFromInt(99)},
	}

	m := Compute(decimal.NewFromInt(100), points(100, 99), trades, 1, 1)

	assert.Equal(t, 4, m.TotalTrades)
	assert.Equal(t, 1, m.WinningTrades)
	assert.Equal(t, 1, m.LosingTrades)
	assert.InDelta(t, 0.25, m.WinRate, 1e-12)

	// Exit deltas: +10% and -10%: profit factor |0.10 / -0.10| = 1
	assert.InDelta(t, 0.10, m.AvgWinPct, 1e-12)
	assert.InDelta(t, -0.10, m.AvgLossPct, 1e-12)
	assert.InDelta(t, 1.0, m.ProfitFactor, 1e-9)
}

func TestCompute_SumsFrictionCosts(t *testing.T) {
	trades := []types.Trade{
		{Action: types.Buy, Commission: decimal.NewFromFloat(1.5), SlippageCost: decimal.NewFromInt(2)},
		{Action: types.Sell, Commission: decimal.NewFromFloat(1.2), SlippageCost: decimal.NewFromInt(3)},
	}

	m := Compute(decimal.NewFromInt(100), nil, trades, 0, 1)

	assert.True(t, m.Commission.Equal(decimal.NewFromFloat(2.7)), "got %s", m.Commission)
	assert.True(t, m.SlippageCost.Equal(decimal.NewFromInt(5)), "got %s", m.SlippageCost)
}

func TestMaxDrawdown_NeverNegative(t *testing.T) {
	assert.Zero(t, maxDrawdown([]float64{100, 110, 120}))
	assert.InDelta(t, 0.5, maxDrawdown([]float64{100, 50, 75}), 1e-12)
}

func TestStepReturns_SkipsZeroBase(t *testing.T) {
	returns := stepReturns([]float64{0, 100, 110})
	assert.Equal(t, []float64{0.1}, returns)
	assert.Nil(t, stepReturns([]float64{100}))
}

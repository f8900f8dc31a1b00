package strategy

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/tradesim/portfolio"
	"github.com/web3guy0/tradesim/types"
)

func barAt(close float64) types.Bar {
	return types.Bar{
		Timestamp: time.Now(),
		Close:     decimal.NewFromFloat(close),
	}
}

func feedCloses(t *testing.T, s *SMACrossover, closes []float64) Decision {
	t.Helper()
	var last Decision
	for _, c := range closes {
		d, err := s.OnBar(time.Now(), barAt(c), portfolio.View{})
		require.NoError(t, err)
		last = d
	}
	return last
}

func TestSMACrossover_BuysOnBullishCross(t *testing.T) {
	s := NewSMACrossover(2, 3)

	// Declining series keeps fast below slow, then a sharp rally crosses it
	// above.
	closes := []float64{100, 98, 96, 94, 92, 90, 120}
	last := feedCloses(t, s, closes)

	assert.Equal(t, types.Buy, last.Action)
	assert.Contains(t, last.Reason, "crossed above")
}

func TestSMACrossover_SellsOnBearishCross(t *testing.T) {
	s := NewSMACrossover(2, 3)

	closes := []float64{90, 92, 94, 96, 98, 100, 70}
	last := feedCloses(t, s, closes)

	assert.Equal(t, types.Sell, last.Action)
	assert.Contains(t, last.Reason, "crossed below")
}

func TestSMACrossover_WarmupHolds(t *testing.T) {
	s := NewSMACrossover(10, 30)

	d, err := s.OnBar(time.Now(), barAt(100), portfolio.View{})
	require.NoError(t, err)
	assert.Equal(t, types.Hold, d.Action)
}

func TestMomentum_BuysAfterSustainedRise(t *testing.T) {
	m := NewMomentum(3, decimal.NewFromFloat(0.01))
	view := portfolio.View{Positions: map[string]types.Position{}}

	var last Decision
	for _, p := range []float64{100, 100.5, 101, 102} {
		d, err := m.OnPrice(view, "BTC/USDT", decimal.NewFromFloat(p))
		require.NoError(t, err)
		last = d
	}

	// 102 / 100 - 1 = +2%, above the 1% threshold, no position open.
	assert.Equal(t, types.Buy, last.Action)
}

func TestMomentum_SellsAfterSustainedFallWithPosition(t *testing.T) {
	m := NewMomentum(3, decimal.NewFromFloat(0.01))
	view := portfolio.View{Positions: map[string]types.Position{
		"BTC/USDT": {Symbol: "BTC/USDT"},
	}}

	var last Decision
	for _, p := range []float64{102, 101, 100.5, 100} {
		d, err := m.OnPrice(view, "BTC/USDT", decimal.NewFromFloat(p))
		require.NoError(t, err)
		last = d
	}

	assert.Equal(t, types.Sell, last.Action)
}

func TestHoldForever_NeverTrades(t *testing.T) {
	h := HoldForever{}

	d, err := h.OnBar(time.Now(), barAt(100), portfolio.View{})
	require.NoError(t, err)
	assert.Equal(t, types.Hold, d.Action)

	d, err = h.OnPrice(portfolio.View{}, "BTC/USDT", decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.Equal(t, types.Hold, d.Action)
}

func TestSMA_UsesTrailingWindow(t *testing.T) {
	prices := []float64{1, 2, 3, 4, 5}

	assert.Equal(t, 4.5, SMA(prices, 2))
	assert.Equal(t, 3.0, SMA(prices, 5))
	// Shorter than the period: average of what there is.
	assert.Equal(t, 3.0, SMA(prices, 10))
	assert.Equal(t, 0.0, SMA(nil, 5))
}

func TestRSI_Extremes(t *testing.T) {
	up := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	down := []float64{8, 7, 6, 5, 4, 3, 2, 1}

	assert.Equal(t, 100.0, RSI(up, 5), "all gains")
	assert.Equal(t, 0.0, RSI(down, 5), "all losses")
	assert.Equal(t, 50.0, RSI([]float64{1, 2}, 14), "neutral on short input")
}

package strategy

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/tradesim/portfolio"
	"github.com/web3guy0/tradesim/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// BUILT-IN STRATEGIES
// ═══════════════════════════════════════════════════════════════════════════════

// HoldForever never trades. Useful as a comparison baseline and for
// measuring pure commission/slippage drag (there is none without trades).
type HoldForever struct{}

func (HoldForever) Name() string { return "hold" }

func (HoldForever) OnBar(time.Time, types.Bar, portfolio.View) (Decision, error) {
	return HoldDecision(), nil
}

func (HoldForever) OnPrice(portfolio.View, string, decimal.Decimal) (Decision, error) {
	return HoldDecision(), nil
}

// SMACrossover buys when the fast moving average crosses above the slow one
// and sells on the opposite cross.
type SMACrossover struct {
	Fast int
	Slow int

	closes []float64
}

// NewSMACrossover creates a crossover strategy with the given windows.
func NewSMACrossover(fast, slow int) *SMACrossover {
	return &SMACrossover{Fast: fast, Slow: slow}
}

func (s *SMACrossover) Name() string { return fmt.Sprintf("sma_%d_%d", s.Fast, s.Slow) }

func (s *SMACrossover) OnBar(ts time.Time, bar types.Bar, view portfolio.View) (Decision, error) {
	s.closes = append(s.closes, bar.Close.InexactFloat64())
	if len(s.closes) < s.Slow+1 {
		return HoldDecision(), nil
	}

	fastNow := SMA(s.closes, s.Fast)
	slowNow := SMA(s.closes, s.Slow)
	fastPrev := SMA(s.closes[:len(s.closes)-1], s.Fast)
	slowPrev := SMA(s.closes[:len(s.closes)-1], s.Slow)

	switch {
	// A duplicate BUY while a position is open is a silent no-op downstream,
	// so the crossover does not track position state itself.
	case fastPrev <= slowPrev && fastNow > slowNow:
		return Decision{Action: types.Buy, Reason: fmt.Sprintf("SMA%d crossed above SMA%d", s.Fast, s.Slow)}, nil
	case fastPrev >= slowPrev && fastNow < slowNow:
		return Decision{Action: types.Sell, Reason: fmt.Sprintf("SMA%d crossed below SMA%d", s.Fast, s.Slow)}, nil
	}
	return HoldDecision(), nil
}

// Momentum is a simple live strategy: buy after a sustained rise over the
// lookback window, sell after a sustained fall.
type Momentum struct {
	Lookback  int
	Threshold decimal.Decimal // e.g. 0.01 = 1% move over the window

	prices map[string][]decimal.Decimal
}

// NewMomentum creates a momentum strategy.
func NewMomentum(lookback int, threshold decimal.Decimal) *Momentum {
	return &Momentum{
		Lookback:  lookback,
		Threshold: threshold,
		prices:    make(map[string][]decimal.Decimal),
	}
}

func (m *Momentum) Name() string { return fmt.Sprintf("momentum_%d", m.Lookback) }

func (m *Momentum) OnPrice(view portfolio.View, symbol string, price decimal.Decimal) (Decision, error) {
	window := append(m.prices[symbol], price)
	if len(window) > m.Lookback+1 {
		window = window[len(window)-m.Lookback-1:]
	}
	m.prices[symbol] = window

	if len(window) < m.Lookback+1 {
		return HoldDecision(), nil
	}

	first := window[0]
	if first.IsZero() {
		return HoldDecision(), nil
	}
	change := price.Div(first).Sub(decimal.NewFromInt(1))

	switch {
	case change.GreaterThanOrEqual(m.Threshold) && !view.HasPosition(symbol):
		return Decision{Action: types.Buy, Reason: fmt.Sprintf("momentum up %s%%", change.Mul(decimal.NewFromInt(100)).StringFixed(2))}, nil
	case change.LessThanOrEqual(m.Threshold.Neg()) && view.HasPosition(symbol):
		return Decision{Action: types.Sell, Reason: fmt.Sprintf("momentum down %s%%", change.Mul(decimal.NewFromInt(100)).StringFixed(2))}, nil
	}
	return HoldDecision(), nil
}

package evaluate

import (
	"math"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"github.com/web3guy0/tradesim/portfolio"
	"github.com/web3guy0/tradesim/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// PERFORMANCE METRICS - Derived, stateless, recomputable from the ledger
// ═══════════════════════════════════════════════════════════════════════════════

// Crypto trades continuously, so a year has 365 periods.
const periodsPerYear = 365

// Metrics are derived portfolio statistics. Never stored, always recomputed
// from the value history and trade log.
type Metrics struct {
	InitialCapital float64
	FinalValue     float64
	TotalReturn    float64 // fraction, e.g. 0.12 = +12%
	SharpeRatio    float64
	MaxDrawdown    float64 // fraction, >= 0
	TotalTrades    int
	WinningTrades  int
	LosingTrades   int
	WinRate        float64
	AvgWinPct      float64
	AvgLossPct     float64
	ProfitFactor   float64
	Commission     decimal.Decimal
	SlippageCost   decimal.Decimal
}

// FromLedger derives metrics from a ledger's current state.
func FromLedger(l *portfolio.Ledger) Metrics {
	_, wins, losses := l.Counters()
	return Compute(l.InitialCapital(), l.History(), l.Trades(), wins, losses)
}

// Compute derives metrics from a value history and trade log. The win/loss
// counters carry the realized-P&L classification the ledger made at sell time.
func Compute(initialCapital decimal.Decimal, history []types.ValuePoint, trades []types.Trade, wins, losses int) Metrics {
	m := Metrics{
		InitialCapital: initialCapital.InexactFloat64(),
		FinalValue:     initialCapital.InexactFloat64(),
		TotalTrades:    len(trades),
		WinningTrades:  wins,
		LosingTrades:   losses,
		Commission:     decimal.Zero,
		SlippageCost:   decimal.Zero,
	}

	for _, t := range trades {
		m.Commission = m.Commission.Add(t.Commission)
		m.SlippageCost = m.SlippageCost.Add(t.SlippageCost)
	}

	if m.TotalTrades > 0 {
		m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades)
	}

	// Per-exit portfolio value deltas, as percentages of the pre-trade value.
	var wonPcts, lostPcts []float64
	for _, t := range trades {
		if t.Action != types.Sell || t.PortfolioBefore.IsZero() {
			continue
		}
		pnlPct := t.PortfolioAfter.Sub(t.PortfolioBefore).Div(t.PortfolioBefore).InexactFloat64()
		if pnlPct > 0 {
			wonPcts = append(wonPcts, pnlPct)
		} else if pnlPct < 0 {
			lostPcts = append(lostPcts, pnlPct)
		}
	}
	if len(wonPcts) > 0 {
		m.AvgWinPct = stat.Mean(wonPcts, nil)
	}
	if len(lostPcts) > 0 {
		m.AvgLossPct = stat.Mean(lostPcts, nil)
	}
	if m.AvgLossPct != 0 {
		m.ProfitFactor = math.Abs(m.AvgWinPct / m.AvgLossPct)
	}

	if len(history) == 0 {
		return m
	}

	values := make([]float64, len(history))
	for i, p := range history {
		values[i] = p.Value.InexactFloat64()
	}

	m.FinalValue = values[len(values)-1]
	m.MaxDrawdown = maxDrawdown(values)

	if len(values) < 2 {
		return m
	}

	m.TotalReturn = (values[len(values)-1] - values[0]) / values[0]

	returns := stepReturns(values)
	if len(returns) > 1 {
		mean := stat.Mean(returns, nil)
		stdev := stat.StdDev(returns, nil)
		if stdev > 0 {
			m.SharpeRatio = mean / stdev * math.Sqrt(periodsPerYear)
		}
	}

	return m
}

// stepReturns computes first differences divided by the prior value.
func stepReturns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] != 0 {
			returns = append(returns, (values[i]-values[i-1])/values[i-1])
		}
	}
	return returns
}

// maxDrawdown walks the series tracking (peak - value) / peak.
// Non-decreasing over time; 0 while the series is at a new high.
func maxDrawdown(values []float64) float64 {
	peak := values[0]
	maxDD := 0.0
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

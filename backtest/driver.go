package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/tradesim/datafeed"
	"github.com/web3guy0/tradesim/portfolio"
	"github.com/web3guy0/tradesim/risk"
	"github.com/web3guy0/tradesim/strategy"
	"github.com/web3guy0/tradesim/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// BACKTEST DRIVER - Deterministic single-threaded bar replay
// ═══════════════════════════════════════════════════════════════════════════════
//
// Per bar, strictly time-ordered:
//   risk sweep -> strategy decision -> execution -> valuation snapshot
//
// A strategy error is logged and treated as HOLD for that bar; the driver
// never aborts mid-replay.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Driver replays historical bars against a ledger.
type Driver struct {
	ledger    *portfolio.Ledger
	ctrl      *risk.Controller
	source    datafeed.BarSource
	strat     strategy.BarStrategy
	timeframe string
}

// NewDriver creates a backtest driver.
func NewDriver(ledger *portfolio.Ledger, ctrl *risk.Controller, source datafeed.BarSource, strat strategy.BarStrategy, timeframe string) *Driver {
	return &Driver{
		ledger:    ledger,
		ctrl:      ctrl,
		source:    source,
		strat:     strat,
		timeframe: timeframe,
	}
}

// Ledger returns the ledger being replayed into.
func (d *Driver) Ledger() *portfolio.Ledger { return d.ledger }

// Run replays the bars for symbol in [start, end). Exactly one decision per
// bar; no concurrency.
func (d *Driver) Run(ctx context.Context, symbol string, start, end time.Time) error {
	bars, err := d.source.FetchBars(ctx, symbol, d.timeframe, start, end)
	if err != nil {
		return fmt.Errorf("load bars for %s: %w", symbol, err)
	}

	log.Info().
		Str("symbol", symbol).
		Str("strategy", d.strat.Name()).
		Time("start", start).
		Time("end", end).
		Int("bars", len(bars)).
		Str("initial_capital", d.ledger.InitialCapital().StringFixed(2)).
		Msg("📉 Backtest started")

	for _, bar := range bars {
		price := bar.Close
		prices := map[string]decimal.Decimal{symbol: price}

		// Risk exits first. A stop/take-profit fired here precedes the
		// strategy's decision for this bar.
		d.ctrl.Sweep(d.ledger, bar.Timestamp, prices)

		decision, err := d.strat.OnBar(bar.Timestamp, bar, d.ledger.ViewAt(prices))
		if err != nil {
			log.Warn().Err(err).Time("bar", bar.Timestamp).Str("strategy", d.strat.Name()).Msg("Strategy error, holding")
			decision = strategy.HoldDecision()
		}

		if decision.Action != types.Hold {
			d.ledger.Execute(bar.Timestamp, symbol, decision.Action, price, decision.Reason)
		}

		d.ledger.RecordSnapshot(bar.Timestamp, prices, decimal.Zero)
	}

	total, _, _ := d.ledger.Counters()
	log.Info().
		Str("symbol", symbol).
		Int("trades", total).
		Str("final_value", d.ledger.Value(nil).StringFixed(2)).
		Msg("📉 Backtest finished")

	return nil
}

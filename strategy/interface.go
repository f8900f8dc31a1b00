package strategy

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/tradesim/portfolio"
	"github.com/web3guy0/tradesim/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// STRATEGY INTERFACE - Plug-in pattern for strategies
// ═══════════════════════════════════════════════════════════════════════════════
//
// Two forms:
//   BarStrategy  - backtests: one decision per historical bar
//   LiveStrategy - live loop: one decision per fresh price tick
//
// An error from a strategy is logged by the driver and treated as HOLD for
// that step; it never aborts the run.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Decision is one strategy verdict for a step.
type Decision struct {
	Action types.Action
	Reason string
}

// HoldDecision is the no-action decision.
func HoldDecision() Decision { return Decision{Action: types.Hold} }

// BarStrategy decides on each historical bar during a backtest.
type BarStrategy interface {
	// Name returns the strategy identifier.
	Name() string

	// OnBar processes one bar and returns a decision.
	OnBar(ts time.Time, bar types.Bar, view portfolio.View) (Decision, error)
}

// LiveStrategy decides on each fresh price during live trading.
type LiveStrategy interface {
	// Name returns the strategy identifier.
	Name() string

	// OnPrice processes one price update and returns a decision.
	OnPrice(view portfolio.View, symbol string, price decimal.Decimal) (Decision, error)
}

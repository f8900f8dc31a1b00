package strategy

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/tradesim/portfolio"
	"github.com/web3guy0/tradesim/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// AGENT POLICIES - Signal/confidence decisions with post-hoc accuracy scoring
// ═══════════════════════════════════════════════════════════════════════════════

// AgentDecision is a declared signal with confidence and free-text reasoning.
// Used only for accuracy scoring, never for execution logic.
type AgentDecision struct {
	Signal     string // BUY, SELL or HOLD
	Confidence float64
	Reasoning  string
}

// AgentPolicy produces an AgentDecision per bar.
type AgentPolicy interface {
	Name() string
	Decide(ts time.Time, bar types.Bar) AgentDecision
}

// RecordedDecision is one agent decision with the price it was made at.
type RecordedDecision struct {
	Timestamp  time.Time
	Price      decimal.Decimal
	Signal     string
	Confidence float64
	Reasoning  string
}

// AgentRecorder adapts an AgentPolicy into a BarStrategy and records every
// decision so the evaluator can score directional accuracy afterwards.
type AgentRecorder struct {
	policy    AgentPolicy
	decisions []RecordedDecision
}

// NewAgentRecorder wraps an agent policy.
func NewAgentRecorder(policy AgentPolicy) *AgentRecorder {
	return &AgentRecorder{policy: policy}
}

func (a *AgentRecorder) Name() string { return a.policy.Name() }

func (a *AgentRecorder) OnBar(ts time.Time, bar types.Bar, view portfolio.View) (Decision, error) {
	decision := a.policy.Decide(ts, bar)
	signal := strings.ToUpper(decision.Signal)

	a.decisions = append(a.decisions, RecordedDecision{
		Timestamp:  ts,
		Price:      bar.Close,
		Signal:     signal,
		Confidence: decision.Confidence,
		Reasoning:  decision.Reasoning,
	})

	switch signal {
	case string(types.Buy):
		return Decision{Action: types.Buy, Reason: decision.Reasoning}, nil
	case string(types.Sell):
		return Decision{Action: types.Sell, Reason: decision.Reasoning}, nil
	}
	return Decision{Action: types.Hold, Reason: decision.Reasoning}, nil
}

// Decisions returns the recorded decisions in order.
func (a *AgentRecorder) Decisions() []RecordedDecision { return a.decisions }

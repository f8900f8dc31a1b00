package evaluate

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"

	"github.com/web3guy0/tradesim/backtest"
	"github.com/web3guy0/tradesim/datafeed"
	"github.com/web3guy0/tradesim/portfolio"
	"github.com/web3guy0/tradesim/risk"
	"github.com/web3guy0/tradesim/strategy"
	"github.com/web3guy0/tradesim/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// STRATEGY EVALUATOR - Comparison, walk-forward and market-cycle harnesses
// ═══════════════════════════════════════════════════════════════════════════════
//
// Every run gets a fresh ledger from the same config, so candidates never
// share state and windows never leak positions into each other. Stateful
// strategies are built through factories for the same reason.
//
// ═══════════════════════════════════════════════════════════════════════════════

// StrategyFactory builds a fresh strategy instance per evaluation window.
type StrategyFactory func() strategy.BarStrategy

// Evaluator runs strategies through identical backtest conditions.
type Evaluator struct {
	cfg       portfolio.Config
	source    datafeed.BarSource
	timeframe string
}

// New creates an evaluator. Every run starts from cfg's initial capital.
func New(cfg portfolio.Config, source datafeed.BarSource, timeframe string) *Evaluator {
	return &Evaluator{cfg: cfg, source: source, timeframe: timeframe}
}

// Result is one completed backtest run.
type Result struct {
	Strategy string
	Metrics  Metrics
	Trades   []types.Trade
	History  []types.ValuePoint
}

// RunBacktest replays one strategy over [start, end) on a fresh ledger.
func (e *Evaluator) RunBacktest(ctx context.Context, symbol string, start, end time.Time, strat strategy.BarStrategy) (Result, error) {
	ledger := portfolio.NewLedger(e.cfg)
	ctrl := risk.NewController(e.cfg.Limits)
	driver := backtest.NewDriver(ledger, ctrl, e.source, strat, e.timeframe)

	if err := driver.Run(ctx, symbol, start, end); err != nil {
		return Result{}, err
	}

	return Result{
		Strategy: strat.Name(),
		Metrics:  FromLedger(ledger),
		Trades:   ledger.Trades(),
		History:  ledger.History(),
	}, nil
}

// CompareStrategies runs every candidate over the same window, each on its
// own fresh ledger, and returns results sorted by total return descending.
func (e *Evaluator) CompareStrategies(ctx context.Context, symbol string, start, end time.Time, candidates []strategy.BarStrategy) ([]Result, error) {
	results := make([]Result, 0, len(candidates))
	for _, strat := range candidates {
		res, err := e.RunBacktest(ctx, symbol, start, end, strat)
		if err != nil {
			return nil, fmt.Errorf("run %s: %w", strat.Name(), err)
		}
		results = append(results, res)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Metrics.TotalReturn > results[j].Metrics.TotalReturn
	})

	for _, r := range results {
		log.Info().
			Str("strategy", r.Strategy).
			Float64("return", r.Metrics.TotalReturn).
			Float64("sharpe", r.Metrics.SharpeRatio).
			Float64("drawdown", r.Metrics.MaxDrawdown).
			Float64("win_rate", r.Metrics.WinRate).
			Int("trades", r.Metrics.TotalTrades).
			Float64("profit_factor", r.Metrics.ProfitFactor).
			Msg("📈 Strategy compared")
	}

	return results, nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// WALK-FORWARD ANALYSIS
// ═══════════════════════════════════════════════════════════════════════════════

// Window is one walk-forward train/test split with its out-of-sample metrics.
type Window struct {
	TrainStart time.Time
	TrainEnd   time.Time
	TestStart  time.Time
	TestEnd    time.Time
	Metrics    Metrics
}

// WalkForwardResult aggregates the out-of-sample test windows.
type WalkForwardResult struct {
	Windows           []Window
	MeanReturn        float64
	StdevReturn       float64
	MeanSharpe        float64
	MeanDrawdown      float64
	ProfitableWindows int
}

/// WalkForward partitions [start, end) into consecutive non-overlapping
// train+test windows. Only the test segment is replayed, on a fresh ledger
// and a fresh strategy from the factory. A window whose test end would pass
// `end` is dropped.
func (e *Evaluator) WalkForward(ctx context.Context, symbol string, start, end time.Time, factory StrategyFactory, trainDays, testDays int) (WalkForwardResult, error) {
	if trainDays <= 0 || testDays <= 0 {
		return WalkForwardResult{}, fmt.Errorf("train and test lengths must be positive (got %dd/%dd)", trainDays, testDays)
	}

	train := time.Duration(trainDays) * 24 * time.Hour
	test := time.Duration(testDays) * 24 * time.Hour

	var out WalkForwardResult
	var returns, sharpes, drawdowns []float64

	for current := start; ; current = current.Add(train + test) {
		trainEnd := current.Add(train)
		testEnd := trainEnd.Add(test)
		if testEnd.After(end) {
			break
		}

		res, err := e.RunBacktest(ctx, symbol, trainEnd, testEnd, factory())
		if err != nil {
			return WalkForwardResult{}, fmt.Errorf("walk-forward window starting %s: %w", trainEnd.Format("2006-01-02"), err)
		}

		out.Windows = append(out.Windows, Window{
			TrainStart: current,
			TrainEnd:   trainEnd,
			TestStart:  trainEnd,
			TestEnd:    testEnd,
			Metrics:    res.Metrics,
		})
		returns = append(returns, res.Metrics.TotalReturn)
		sharpes = append(sharpes, res.Metrics.SharpeRatio)
		drawdowns = append(drawdowns, res.Metrics.MaxDrawdown)
		if res.Metrics.TotalReturn > 0 {
			out.ProfitableWindows++
		}

		log.Info().
			Time("test_start", trainEnd).
			Time("test_end", testEnd).
			Float64("return", res.Metrics.TotalReturn).
			Msg("📈 Walk-forward window done")
	}

	if len(returns) > 0 {
		out.MeanReturn = stat.Mean(returns, nil)
		out.MeanSharpe = stat.Mean(sharpes, nil)
		out.MeanDrawdown = stat.Mean(drawdowns, nil)
	}
	if len(returns) > 1 {
		out.StdevReturn = stat.StdDev(returns, nil)
	}

	return out, nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// MARKET CYCLE ANALYSIS
// ═══════════════════════════════════════════════════════════════════════════════

// Cycle is a named market regime to test against.
type Cycle struct {
	Name  string
	Type  string // "bull", "bear", "sideways"
	Start time.Time
	End   time.Time
}

// CycleResult is the metrics of one cycle run.
type CycleResult struct {
	Cycle   Cycle
	Metrics Metrics
}

// MarketCycles runs a fresh strategy instance through each regime window.
// Cycles that fail to load data are skipped with a warning, not fatal: the
// remaining regimes still tell the story.
func (e *Evaluator) MarketCycles(ctx context.Context, symbol string, factory StrategyFactory, cycles []Cycle) ([]CycleResult, error) {
	results := make([]CycleResult, 0, len(cycles))
	for _, c := range cycles {
		res, err := e.RunBacktest(ctx, symbol, c.Start, c.End, factory())
		if err != nil {
			log.Warn().Err(err).Str("cycle", c.Name).Msg("Cycle skipped")
			continue
		}
		results = append(results, CycleResult{Cycle: c, Metrics: res.Metrics})

		log.Info().
			Str("cycle", c.Name).
			Str("type", c.Type).
			Float64("return", res.Metrics.TotalReturn).
			Float64("drawdown", res.Metrics.MaxDrawdown).
			Msg("📈 Cycle evaluated")
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("no market cycle produced a result")
	}
	return results, nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// AGENT ACCURACY SCORING
// ═══════════════════════════════════════════════════════════════════════════════

// holdBandPct is the absolute next-step move below which HOLD counts as
// correct.
const holdBandPct = 0.02

// SignalScore is the accuracy breakdown for one signal type.
type SignalScore struct {
	Total   int
	Correct int
}

// Accuracy returns the fraction of correct calls, 0 when empty.
func (s SignalScore) Accuracy() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Total)
}

// AgentResult bundles the portfolio run with the decision log and its
// directional accuracy.
type AgentResult struct {
	Result
	Decisions []strategy.RecordedDecision
	Overall   SignalScore
	BySignal  map[string]SignalScore
}

// RunAgentBacktest replays an agent policy and scores each decision against
// the price move to the next decision. BUY is correct when the price rose,
// SELL when it fell, HOLD when the move stayed inside the hold band. The
// last decision has no successor and is not scored.
func (e *Evaluator) RunAgentBacktest(ctx context.Context, symbol string, start, end time.Time, policy strategy.AgentPolicy) (AgentResult, error) {
	recorder := strategy.NewAgentRecorder(policy)
	res, err := e.RunBacktest(ctx, symbol, start, end, recorder)
	if err != nil {
		return AgentResult{}, err
	}

	out := AgentResult{
		Result:    res,
		Decisions: recorder.Decisions(),
		BySignal:  map[string]SignalScore{},
	}

	for i := 0; i+1 < len(out.Decisions); i++ {
		cur, next := out.Decisions[i], out.Decisions[i+1]
		if cur.Price.IsZero() {
			continue
		}
		change := next.Price.Sub(cur.Price).Div(cur.Price).InexactFloat64()

		var correct bool
		switch strings.ToUpper(cur.Signal) {
		case string(types.Buy):
			correct = change > 0
		case string(types.Sell):
			correct = change < 0
		default:
			correct = math.Abs(change) < holdBandPct
		}

		score := out.BySignal[cur.Signal]
		score.Total++
		out.Overall.Total++
		if correct {
			score.Correct++
			out.Overall.Correct++
		}
		out.BySignal[cur.Signal] = score
	}

	log.Info().
		Str("agent", policy.Name()).
		Int("decisions", len(out.Decisions)).
		Float64("accuracy", out.Overall.Accuracy()).
		Float64("return", res.Metrics.TotalReturn).
		Msg("🤖 Agent backtest scored")

	return out, nil
}

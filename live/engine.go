package live

import (
	"context"
	"errors"
	"fmt"
	"sync"
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
// LIVE ENGINE - Paper trading loop against real-time prices
// ═══════════════════════════════════════════════════════════════════════════════
//
// Per tick, strictly ordered:
//   refresh prices -> kill switch -> risk sweep -> strategy -> snapshot -> persist
//
// A symbol whose price fetch fails is skipped for the tick; its position is
// valued at the last seen price and never force-exited on stale data. The
// kill switch liquidates everything and halts the engine for the day.
//
// ═══════════════════════════════════════════════════════════════════════════════

const (
	defaultTickInterval = 30 * time.Second

	historyPersistEvery = 100 // ticks
	statusLogEvery      = 10  // snapshots
)

// ErrKillSwitch marks an engine halted by the daily loss limit. Reported
// through Err after the halt; a restart clears it.
var ErrKillSwitch = errors.New("daily loss kill switch triggered")

// Store is the slice of the storage layer the engine persists through.
type Store interface {
	SaveTrade(t types.Trade) error
	SaveSnapshot(p types.ValuePoint, positions []types.Position, total, wins, losses int) error
	SaveHistory(points []types.ValuePoint) error
}

// Notifier pushes human-facing alerts. Nil-safe throughout the engine.
type Notifier interface {
	Notify(msg string)
}

// Engine drives a strategy against live prices on a simulated ledger.
type Engine struct {
	ledger *portfolio.Ledger
	ctrl   *risk.Controller
	source datafeed.PriceSource

	strat        strategy.LiveStrategy
	store        Store
	notifier     Notifier
	tickInterval time.Duration

	mu            sync.RWMutex
	running       bool
	haltErr       error
	stopCh        chan struct{}
	dayStart      time.Time
	dayStartValue decimal.Decimal

	tickCount        int
	snapshotCount    int
	persistedHistory int
}

// NewEngine creates a live engine. Strategy, store and notifier are wired
// through the setters before Start.
func NewEngine(ledger *portfolio.Ledger, ctrl *risk.Controller, source datafeed.PriceSource) *Engine {
	return &Engine{
		ledger:       ledger,
		ctrl:         ctrl,
		source:       source,
		tickInterval: defaultTickInterval,
	}
}

// SetStrategy wires the strategy. Must be called before Start.
func (e *Engine) SetStrategy(s strategy.LiveStrategy) { e.strat = s }

// SetStore wires trade/snapshot persistence. Optional.
func (e *Engine) SetStore(s Store) { e.store = s }

// SetNotifier wires alert delivery. Optional.
func (e *Engine) SetNotifier(n Notifier) { e.notifier = n }

// SetTickInterval overrides the tick cadence.
func (e *Engine) SetTickInterval(d time.Duration) { e.tickInterval = d }

// Start begins the trading loop for the given symbols. Refuses to start
// twice or without a strategy.
func (e *Engine) Start(ctx context.Context, symbols []string) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return fmt.Errorf("engine already running")
	}
	if e.strat == nil {
		e.mu.Unlock()
		return fmt.Errorf("no strategy set")
	}
	if len(symbols) == 0 {
		e.mu.Unlock()
		return fmt.Errorf("no symbols to trade")
	}

	stopCh := make(chan struct{})
	e.running = true
	e.haltErr = nil
	e.stopCh = stopCh
	e.dayStart = time.Now()
	e.dayStartValue = e.ledger.Value(nil)
	e.mu.Unlock()

	log.Info().
		Strs("symbols", symbols).
		Str("strategy", e.strat.Name()).
		Str("capital", e.ledger.Value(nil).StringFixed(2)).
		Dur("tick", e.tickInterval).
		Msg("🟢 Live trading started")
	e.notify(fmt.Sprintf("🟢 Trading started: %s on %v", e.strat.Name(), symbols))

	go e.run(ctx, stopCh, symbols)
	return nil
}

// Stop halts the loop and liquidates all open positions at their last seen
// prices. Safe to call more than once.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	close(e.stopCh)
	e.mu.Unlock()

	now := time.Now()
	for _, pos := range e.ledger.Positions() {
		res := e.ledger.Execute(now, pos.Symbol, types.Sell, pos.CurrentPrice, "Closing position (stop trading)")
		if res.Executed() {
			log.Info().Str("symbol", pos.Symbol).Msg("Closing position (stop trading)")
			e.persistTrade(*res.Trade)
		}
	}
	e.persistSnapshot(e.ledger.RecordSnapshot(now, nil, decimal.Zero))
	e.flushHistory()

	value := e.ledger.Value(nil)
	initial := e.ledger.InitialCapital()
	ret := decimal.Zero
	if !initial.IsZero() {
		ret = value.Sub(initial).Div(initial).Mul(decimal.NewFromInt(100))
	}
	total, wins, losses := e.ledger.Counters()
	log.Info().
		Str("final_value", value.StringFixed(2)).
		Str("return_pct", ret.StringFixed(2)).
		Int("trades", total).
		Int("wins", wins).
		Int("losses", losses).
		Msg("🔴 Live trading stopped")
	e.notify(fmt.Sprintf("🔴 Trading stopped. Value: $%s (%s%%)", value.StringFixed(2), ret.StringFixed(2)))
}

// run watches only the stop channel it was born with. A supervisor restart
// installs a fresh channel; the old loop must never pick it up and keep
// ticking alongside the new one.
func (e *Engine) run(ctx context.Context, stopCh chan struct{}, symbols []string) {
	ticker := time.NewTicker(e.tickInterval)
	defer ticker.Stop()

	e.tick(ctx, time.Now(), stopCh, symbols)

	for {
		select {
		case <-ctx.Done():
			e.Stop()
			return
		case <-stopCh:
			return
		case now := <-ticker.C:
			e.tick(ctx, now, stopCh, symbols)
		}
	}
}

// tick runs one full trading cycle. stopCh identifies the loop the tick
// belongs to; a tick from a replaced loop is a no-op.
func (e *Engine) tick(ctx context.Context, now time.Time, stopCh chan struct{}, symbols []string) {
	if !e.currentLoop(stopCh) {
		return
	}

	// 1. Refresh prices. Fetch failures skip the symbol, never the tick.
	prices := make(map[string]decimal.Decimal)
	for _, sym := range symbols {
		stats, err := e.source.LastPrice(ctx, sym)
		if err != nil {
			log.Warn().Err(err).Str("symbol", sym).Msg("Price refresh failed, skipping symbol")
			continue
		}
		prices[sym] = stats.Last
		e.ledger.MarkPrice(sym, stats.Last)
	}

	e.rolloverDay(now, prices)

	// 2. Kill switch before anything else trades.
	value := e.ledger.Value(prices)
	dailyPnL, breached := e.ctrl.KillSwitch(value, e.dayStartValueNow())
	if breached {
		e.fireKillSwitch(now, prices, dailyPnL)
		return
	}

	// 3. Stop loss / take profit sweep.
	for _, t := range e.ctrl.Sweep(e.ledger, now, prices) {
		e.persistTrade(t)
	}

	// 4. Strategy, one decision per fresh symbol.
	for _, sym := range symbols {
		price, ok := prices[sym]
		if !ok {
			continue
		}

		decision, err := e.strat.OnPrice(e.ledger.ViewAt(prices), sym, price)
		if err != nil {
			log.Warn().Err(err).Str("symbol", sym).Str("strategy", e.strat.Name()).Msg("Strategy error, holding")
			continue
		}
		if decision.Action == types.Hold {
			continue
		}

		res := e.ledger.Execute(now, sym, decision.Action, price, decision.Reason)
		if res.Executed() {
			e.persistTrade(*res.Trade)
		} else {
			log.Debug().Str("symbol", sym).Str("action", string(decision.Action)).Str("reject", string(res.Reason)).Msg("Order rejected")
		}
	}

	// 5. Snapshot and persist.
	point := e.ledger.RecordSnapshot(now, prices, dailyPnL)
	e.persistSnapshot(point)

	e.tickCount++
	e.snapshotCount++
	if e.tickCount%historyPersistEvery == 0 {
		e.flushHistory()
	}
	if e.snapshotCount%statusLogEvery == 0 {
		total, _, _ := e.ledger.Counters()
		log.Info().
			Str("value", point.Value.StringFixed(2)).
			Str("cash", point.Cash.StringFixed(2)).
			Int("positions", point.OpenPositions).
			Int("trades", total).
			Str("daily_pnl_pct", dailyPnL.Mul(decimal.NewFromInt(100)).StringFixed(2)).
			Msg("⚡ Tick status")
	}
}

// rolloverDay resets the kill switch baseline when the calendar day changes.
func (e *Engine) rolloverDay(now time.Time, prices map[string]decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if now.YearDay() == e.dayStart.YearDay() && now.Year() == e.dayStart.Year() {
		return
	}
	e.dayStart = now
	e.dayStartValue = e.ledger.Value(prices)
	log.Info().Str("day_start_value", e.dayStartValue.StringFixed(2)).Msg("New trading day")
}

func (e *Engine) dayStartValueNow() decimal.Decimal {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dayStartValue
}

// currentLoop reports whether stopCh still belongs to the running loop.
func (e *Engine) currentLoop(stopCh chan struct{}) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running && e.stopCh == stopCh
}

// fireKillSwitch liquidates everything at current prices and halts the
// engine. Trading does not resume without an external restart.
func (e *Engine) fireKillSwitch(now time.Time, prices map[string]decimal.Decimal, dailyPnL decimal.Decimal) {
	pct := dailyPnL.Mul(decimal.NewFromInt(100)).StringFixed(2)
	log.Error().Str("daily_pnl_pct", pct).Msg("🚨 Kill switch triggered, liquidating")
	e.notify(fmt.Sprintf("🚨 Kill switch: daily P&L %s%%. Liquidating and halting.", pct))

	for _, pos := range e.ledger.Positions() {
		price, ok := prices[pos.Symbol]
		if !ok {
			price = pos.CurrentPrice
		}
		res := e.ledger.Execute(now, pos.Symbol, types.Sell, price, fmt.Sprintf("Kill switch triggered at %s%%", pct))
		if res.Executed() {
			e.persistTrade(*res.Trade)
		}
	}
	e.persistSnapshot(e.ledger.RecordSnapshot(now, prices, dailyPnL))

	e.mu.Lock()
	e.haltErr = ErrKillSwitch
	e.mu.Unlock()
	e.Stop()
}

func (e *Engine) notify(msg string) {
	if e.notifier != nil {
		e.notifier.Notify(msg)
	}
}

func (e *Engine) persistTrade(t types.Trade) {
	if e.store == nil {
		return
	}
	if err := e.store.SaveTrade(t); err != nil {
		log.Error().Err(err).Msg("Failed to persist trade")
	}
}

func (e *Engine) persistSnapshot(p types.ValuePoint) {
	if e.store == nil {
		return
	}
	total, wins, losses := e.ledger.Counters()
	if err := e.store.SaveSnapshot(p, e.ledger.Positions(), total, wins, losses); err != nil {
		log.Error().Err(err).Msg("Failed to persist snapshot")
	}
}

// flushHistory persists value points recorded since the last flush.
func (e *Engine) flushHistory() {
	if e.store == nil {
		return
	}
	history := e.ledger.History()
	if e.persistedHistory >= len(history) {
		return
	}
	if err := e.store.SaveHistory(history[e.persistedHistory:]); err != nil {
		log.Error().Err(err).Msg("Failed to persist history")
		return
	}
	e.persistedHistory = len(history)
}

// ═══════════════════════════════════════════════════════════════════════════════
// SUPERVISOR ACCESSORS
// ═══════════════════════════════════════════════════════════════════════════════

// Running reports whether the loop is active.
func (e *Engine) Running() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// Err returns why the engine halted itself, or nil. ErrKillSwitch after a
// daily-loss liquidation.
func (e *Engine) Err() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.haltErr
}

// PortfolioValue returns the current value at last seen prices.
func (e *Engine) PortfolioValue() decimal.Decimal { return e.ledger.Value(nil) }

// InitialCapital returns the configured starting capital.
func (e *Engine) InitialCapital() decimal.Decimal { return e.ledger.InitialCapital() }

// OrderCount returns the number of executed trades.
func (e *Engine) OrderCount() int {
	total, _, _ := e.ledger.Counters()
	return total
}

// OpenPositionCount returns the number of open positions.
func (e *Engine) OpenPositionCount() int { return e.ledger.OpenPositionCount() }

package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/tradesim/report"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SUPERVISOR - Health checks, bounded auto-restart, scheduled reports
// ═══════════════════════════════════════════════════════════════════════════════
//
// The supervisor owns the engine's lifecycle. An unhealthy engine gets
// restarted up to MaxRetries times; a healthy check resets the budget.
// When the budget runs out the supervisor halts for good rather than
// flapping a broken engine forever.
//
// ═══════════════════════════════════════════════════════════════════════════════

// ErrRestartExhausted means the engine stayed unhealthy through every
// allowed restart. Terminal; the supervisor does not try again.
var ErrRestartExhausted = errors.New("engine restart attempts exhausted")

// Engine failing worse than this is considered broken, not just losing.
var maxHealthyLoss = decimal.NewFromFloat(-0.50)

// TradingEngine is the slice of the live engine the supervisor drives.
type TradingEngine interface {
	Start(ctx context.Context, symbols []string) error
	Stop()
	Running() bool
	PortfolioValue() decimal.Decimal
	InitialCapital() decimal.Decimal
	OrderCount() int
	OpenPositionCount() int
}

// Notifier pushes supervisor reports and alerts. Nil-safe.
type Notifier interface {
	Notify(msg string)
}

// Config tunes the supervision cadence. ReportFile, when set, receives an
// appended copy of every scheduled report.
type Config struct {
	Symbols          []string
	HealthInterval   time.Duration
	RetryDelay       time.Duration
	MaxRetries       int
	FirstReportAfter time.Duration
	ReportCron       string
	ReportFile       string
}

// DefaultConfig supervises with per-minute health checks and a daily report.
func DefaultConfig(symbols []string) Config {
	return Config{
		Symbols:          symbols,
		HealthInterval:   time.Minute,
		RetryDelay:       5 * time.Minute,
		MaxRetries:       3,
		FirstReportAfter: 24 * time.Hour,
		ReportCron:       "0 0 * * *",
	}
}

// Status is a point-in-time view of the supervised engine.
type Status struct {
	Running        bool
	PortfolioValue decimal.Decimal
	InitialCapital decimal.Decimal
	TotalReturnPct decimal.Decimal
	OrderCount     int
	OpenPositions  int
	Retries        int
	StartedAt      time.Time
}

// Manager supervises a trading engine.
type Manager struct {
	cfg      Config
	engine   TradingEngine
	notifier Notifier

	mu        sync.Mutex
	retries   int
	startedAt time.Time
}

// New creates a supervisor for the given engine.
func New(cfg Config, engine TradingEngine, notifier Notifier) *Manager {
	return &Manager{cfg: cfg, engine: engine, notifier: notifier}
}

// Run starts the engine and supervises it until ctx is cancelled or the
// restart budget is exhausted. Always sends a final report on the way out.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.engine.Start(ctx, m.cfg.Symbols); err != nil {
		return fmt.Errorf("initial engine start: %w", err)
	}

	m.mu.Lock()
	m.startedAt = time.Now()
	m.mu.Unlock()

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(m.cfg.ReportCron, func() { m.sendReport("Daily report") }); err != nil {
		m.engine.Stop()
		return fmt.Errorf("schedule daily report: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	firstReport := time.NewTimer(m.cfg.FirstReportAfter)
	defer firstReport.Stop()

	health := time.NewTicker(m.cfg.HealthInterval)
	defer health.Stop()

	log.Info().
		Dur("health_interval", m.cfg.HealthInterval).
		Int("max_retries", m.cfg.MaxRetries).
		Str("report_cron", m.cfg.ReportCron).
		Msg("🛡️ Supervisor started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Supervisor shutting down")
			m.engine.Stop()
			m.sendReport("Final report")
			return nil

		case <-firstReport.C:
			m.sendReport("First 24h report")

		case <-health.C:
			if err := m.checkHealth(ctx); err != nil {
				m.engine.Stop()
				m.sendReport("Final report (supervisor halted)")
				return err
			}
		}
	}
}

// checkHealth restarts an unhealthy engine, burning one retry. A healthy
// engine refills the budget. Returns ErrRestartExhausted once MaxRetries
// restarts have happened without a healthy check in between.
func (m *Manager) checkHealth(ctx context.Context) error {
	if m.healthy() {
		m.mu.Lock()
		if m.retries > 0 {
			log.Info().Int("was_retries", m.retries).Msg("Engine healthy again, retry budget reset")
		}
		m.retries = 0
		m.mu.Unlock()
		return nil
	}

	m.mu.Lock()
	if m.retries >= m.cfg.MaxRetries {
		m.mu.Unlock()
		log.Error().Int("retries", m.cfg.MaxRetries).Msg("🚨 Engine unhealthy, restart budget exhausted")
		m.notify(fmt.Sprintf("🚨 Engine unhealthy after %d restarts. Halting supervision.", m.cfg.MaxRetries))
		return ErrRestartExhausted
	}
	m.retries++
	attempt := m.retries
	m.mu.Unlock()

	log.Warn().Int("attempt", attempt).Int("max", m.cfg.MaxRetries).Msg("Engine unhealthy, restarting")
	m.notify(fmt.Sprintf("⚠️ Engine unhealthy, restart %d/%d", attempt, m.cfg.MaxRetries))

	m.engine.Stop()
	select {
	case <-time.After(m.cfg.RetryDelay):
	case <-ctx.Done():
		return nil
	}

	if err := m.engine.Start(ctx, m.cfg.Symbols); err != nil {
		log.Error().Err(err).Int("attempt", attempt).Msg("Engine restart failed")
	}
	return nil
}

// healthy means: running, value positive, and not down more than half.
func (m *Manager) healthy() bool {
	if !m.engine.Running() {
		return false
	}
	value := m.engine.PortfolioValue()
	if !value.IsPositive() {
		return false
	}
	initial := m.engine.InitialCapital()
	if initial.IsZero() {
		return false
	}
	ret := value.Sub(initial).Div(initial)
	return ret.GreaterThan(maxHealthyLoss)
}

// Status reports the current supervised state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	retries := m.retries
	startedAt := m.startedAt
	m.mu.Unlock()

	value := m.engine.PortfolioValue()
	initial := m.engine.InitialCapital()
	ret := decimal.Zero
	if !initial.IsZero() {
		ret = value.Sub(initial).Div(initial).Mul(decimal.NewFromInt(100))
	}

	return Status{
		Running:        m.engine.Running(),
		PortfolioValue: value,
		InitialCapital: initial,
		TotalReturnPct: ret,
		OrderCount:     m.engine.OrderCount(),
		OpenPositions:  m.engine.OpenPositionCount(),
		Retries:        retries,
		StartedAt:      startedAt,
	}
}

func (m *Manager) sendReport(title string) {
	s := m.Status()
	uptime := time.Since(s.StartedAt).Round(time.Minute)

	msg := fmt.Sprintf(
		"📊 %s\nValue: $%s (%s%%)\nTrades: %d | Open: %d\nUptime: %s | Running: %v",
		title,
		s.PortfolioValue.StringFixed(2),
		s.TotalReturnPct.StringFixed(2),
		s.OrderCount,
		s.OpenPositions,
		uptime,
		s.Running,
	)

	log.Info().
		Str("value", s.PortfolioValue.StringFixed(2)).
		Str("return_pct", s.TotalReturnPct.StringFixed(2)).
		Int("trades", s.OrderCount).
		Msg("📊 " + title)
	m.notify(msg)

	if m.cfg.ReportFile != "" {
		if err := report.AppendStatus(m.cfg.ReportFile, msg); err != nil {
			log.Error().Err(err).Str("path", m.cfg.ReportFile).Msg("Failed to write report file")
		}
	}
}

func (m *Manager) notify(msg string) {
	if m.notifier != nil {
		m.notifier.Notify(msg)
	}
}

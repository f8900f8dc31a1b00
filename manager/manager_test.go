package manager

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEngine is a controllable TradingEngine.
type fakeEngine struct {
	mu         sync.Mutex
	running    bool
	value      decimal.Decimal
	initial    decimal.Decimal
	startCalls int
	stopCalls  int
	failStart  bool
	dieOnStart bool // Start succeeds but the engine reports not running
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		value:   decimal.NewFromInt(10000),
		initial: decimal.NewFromInt(10000),
	}
}

func (f *fakeEngine) Start(context.Context, []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	if f.failStart {
		return assert.AnError
	}
	f.running = !f.dieOnStart
	return nil
}

func (f *fakeEngine) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	f.running = false
}

func (f *fakeEngine) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeEngine) setValue(v decimal.Decimal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.value = v
}

func (f *fakeEngine) starts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.startCalls
}

func (f *fakeEngine) PortfolioValue() decimal.Decimal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

func (f *fakeEngine) InitialCapital() decimal.Decimal { return f.initial }
func (f *fakeEngine) OrderCount() int                 { return 0 }
func (f *fakeEngine) OpenPositionCount() int          { return 0 }

func testManagerConfig() Config {
	return Config{
		Symbols:          []string{"BTC/USDT"},
		HealthInterval:   10 * time.Millisecond,
		RetryDelay:       time.Millisecond,
		MaxRetries:       2,
		FirstReportAfter: time.Hour,
		ReportCron:       "0 0 * * *",
	}
}

func runManager(t *testing.T, m *Manager, ctx context.Context) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()
	return done
}

func TestRun_ExhaustsRetriesThenHalts(t *testing.T) {
	engine := newFakeEngine()
	engine.dieOnStart = true // never comes up healthy

	m := New(testManagerConfig(), engine, nil)
	done := runManager(t, m, context.Background())

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrRestartExhausted)
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not halt")
	}

	// Initial start plus exactly MaxRetries restart attempts.
	assert.Equal(t, 3, engine.starts())
	assert.False(t, engine.Running())
}

func TestRun_HealthyEngineResetsRetryBudget(t *testing.T) {
	engine := newFakeEngine()
	m := New(testManagerConfig(), engine, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := runManager(t, m, ctx)

	// Let several health checks pass while healthy.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, engine.starts(), "no restarts while healthy")
	assert.Equal(t, 0, m.Status().Retries)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not shut down")
	}
	assert.False(t, engine.Running(), "engine stopped on shutdown")
}

func TestRun_RestartsAfterCrash(t *testing.T) {
	engine := newFakeEngine()
	m := New(testManagerConfig(), engine, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runManager(t, m, ctx)

	time.Sleep(25 * time.Millisecond)
	engine.Stop() // simulate a crash

	require.Eventually(t, func() bool {
		return engine.Running()
	}, 2*time.Second, 5*time.Millisecond, "engine restarted")
	assert.GreaterOrEqual(t, engine.starts(), 2)

	cancel()
	<-done
}

func TestHealthy_DeepLossIsUnhealthy(t *testing.T) {
	engine := newFakeEngine()
	engine.running = true
	m := New(testManagerConfig(), engine, nil)

	assert.True(t, m.healthy())

	// Down 60%: broken, not just losing.
	engine.setValue(decimal.NewFromInt(4000))
	assert.False(t, m.healthy())

	// Down 40%: still within the healthy band.
	engine.setValue(decimal.NewFromInt(6000))
	assert.True(t, m.healthy())

	engine.setValue(decimal.Zero)
	assert.False(t, m.healthy(), "zero value is unhealthy")
}

func TestSendReport_WritesDurableRecord(t *testing.T) {
	engine := newFakeEngine()
	engine.running = true
	engine.setValue(decimal.NewFromInt(10500))

	cfg := testManagerConfig()
	cfg.ReportFile = filepath.Join(t.TempDir(), "reports.log")
	m := New(cfg, engine, nil)

	m.sendReport("Daily report")
	m.sendReport("Final report")

	data, err := os.ReadFile(cfg.ReportFile)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "Daily report")
	assert.Contains(t, text, "Final report")
	assert.Contains(t, text, "10500.00")
}

func TestStatus_ReportsReturn(t *testing.T) {
	engine := newFakeEngine()
	engine.running = true
	engine.setValue(decimal.NewFromInt(11000))

	m := New(testManagerConfig(), engine, nil)
	s := m.Status()

	assert.True(t, s.Running)
	assert.True(t, s.TotalReturnPct.Equal(decimal.NewFromInt(10)), "got %s", s.TotalReturnPct)
	assert.Equal(t, 0, s.Retries)
}

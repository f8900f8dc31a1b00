package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/tradesim/bot"
	"github.com/web3guy0/tradesim/datafeed"
	"github.com/web3guy0/tradesim/evaluate"
	"github.com/web3guy0/tradesim/internal/config"
	"github.com/web3guy0/tradesim/live"
	"github.com/web3guy0/tradesim/manager"
	"github.com/web3guy0/tradesim/portfolio"
	"github.com/web3guy0/tradesim/report"
	"github.com/web3guy0/tradesim/risk"
	"github.com/web3guy0/tradesim/storage"
	"github.com/web3guy0/tradesim/strategy"
)

func main() {
	// ═══════════════════════════════════════════════════════════════════════════════
	// BOOTSTRAP
	// ═══════════════════════════════════════════════════════════════════════════════

	// Load environment
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found")
	}

	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})

	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Configuration error")
	}

	mode := "live"
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}

	log.Info().Msg("═══════════════════════════════════════════════════════════════")
	log.Info().Msgf("              TRADESIM - %s MODE", mode)
	log.Info().Msg("═══════════════════════════════════════════════════════════════")

	switch mode {
	case "live":
		runLive(cfg)
	case "backtest":
		runBacktest(cfg)
	case "compare":
		runCompare(cfg)
	case "walkforward":
		runWalkForward(cfg)
	case "cycles":
		runCycles(cfg)
	default:
		log.Fatal().Str("mode", mode).Msg("Unknown mode (live|backtest|compare|walkforward|cycles)")
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// LIVE SUPERVISION
// ═══════════════════════════════════════════════════════════════════════════════

func runLive(cfg *config.Config) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. Storage
	var store live.Store
	db, err := storage.New(cfg.DatabaseDSN)
	if err != nil {
		log.Warn().Err(err).Msg("Database connection failed, continuing without persistence")
	} else {
		store = db
		defer db.Close()
		log.Info().Msg("✅ Storage layer initialized")

		// Previous session, display only. Every run starts fresh.
		if snap, err := db.LatestSnapshot(); err == nil && snap != nil {
			log.Info().
				Time("at", snap.Timestamp).
				Str("value", snap.Value).
				Int("trades", snap.TotalTrades).
				Msg("Last session snapshot")
		}
	}

	// 2. Telegram (optional)
	var notifier *bot.Telegram
	if cfg.TelegramToken != "" {
		notifier, err = bot.New(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			log.Warn().Err(err).Msg("Telegram unavailable, continuing without alerts")
			notifier = nil
		} else {
			log.Info().Msg("✅ Telegram notifier initialized")
		}
	}

	// 3. Price feed
	source, cleanup, err := buildPriceSource(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize price feed")
	}
	defer cleanup()
	log.Info().Str("feed", cfg.PriceFeed).Msg("✅ Price feed initialized")

	// 4. Ledger, risk and engine
	ledger := portfolio.NewLedger(ledgerConfig(cfg))
	ctrl := risk.NewController(riskLimits(cfg))
	engine := live.NewEngine(ledger, ctrl, source)
	engine.SetStrategy(strategy.NewMomentum(20, decimal.NewFromFloat(0.01)))
	engine.SetTickInterval(cfg.TickInterval)
	engine.SetStore(store)
	engine.SetNotifier(notifier)
	log.Info().Msg("✅ Trading engine initialized")

	// 5. Supervisor
	supCfg := manager.DefaultConfig(cfg.Symbols)
	supCfg.HealthInterval = cfg.HealthInterval
	supCfg.RetryDelay = cfg.RetryDelay
	supCfg.MaxRetries = cfg.MaxRetries
	supCfg.ReportFile = cfg.ReportFile
	sup := manager.New(supCfg, engine, notifier)

	// Graceful shutdown on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("Shutdown signal received")
		cancel()
	}()

	log.Info().Msg("🚀 All systems running...")
	if err := sup.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("Supervisor halted")
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// EVALUATION MODES
// ═══════════════════════════════════════════════════════════════════════════════

func runBacktest(cfg *config.Config) {
	ctx := context.Background()
	eval := evaluate.New(ledgerConfig(cfg), datafeed.NewBinanceClient(), cfg.Timeframe)
	start, end := backtestWindow()
	symbol := cfg.Symbols[0]

	res, err := eval.RunBacktest(ctx, symbol, start, end, defaultBarStrategy())
	if err != nil {
		log.Fatal().Err(err).Msg("Backtest failed")
	}

	fmt.Print(report.Summary(fmt.Sprintf("%s on %s", res.Strategy, symbol), res.Metrics))

	if path := os.Getenv("EXPORT_TRADES"); path != "" {
		if err := report.ExportTrades(path, res.Trades); err != nil {
			log.Error().Err(err).Msg("Trade export failed")
		}
	}
	if path := os.Getenv("EXPORT_HISTORY"); path != "" {
		if err := report.ExportHistory(path, res.History); err != nil {
			log.Error().Err(err).Msg("History export failed")
		}
	}
}

func runCompare(cfg *config.Config) {
	ctx := context.Background()
	eval := evaluate.New(ledgerConfig(cfg), datafeed.NewBinanceClient(), cfg.Timeframe)
	start, end := backtestWindow()

	candidates := []strategy.BarStrategy{
		&strategy.HoldForever{},
		strategy.NewSMACrossover(10, 30),
		strategy.NewSMACrossover(20, 50),
	}

	results, err := eval.CompareStrategies(ctx, cfg.Symbols[0], start, end, candidates)
	if err != nil {
		log.Fatal().Err(err).Msg("Comparison failed")
	}
	fmt.Print(report.ComparisonTable(results))
}

func runWalkForward(cfg *config.Config) {
	ctx := context.Background()
	eval := evaluate.New(ledgerConfig(cfg), datafeed.NewBinanceClient(), cfg.Timeframe)
	start, end := backtestWindow()

	trainDays := envInt("TRAIN_DAYS", 60)
	testDays := envInt("TEST_DAYS", 30)

	res, err := eval.WalkForward(ctx, cfg.Symbols[0], start, end, func() strategy.BarStrategy {
		return defaultBarStrategy()
	}, trainDays, testDays)
	if err != nil {
		log.Fatal().Err(err).Msg("Walk-forward failed")
	}

	log.Info().
		Int("windows", len(res.Windows)).
		Int("profitable", res.ProfitableWindows).
		Float64("mean_return", res.MeanReturn).
		Float64("stdev_return", res.StdevReturn).
		Float64("mean_sharpe", res.MeanSharpe).
		Float64("mean_drawdown", res.MeanDrawdown).
		Msg("📈 Walk-forward complete")
}

func runCycles(cfg *config.Config) {
	ctx := context.Background()
	eval := evaluate.New(ledgerConfig(cfg), datafeed.NewBinanceClient(), cfg.Timeframe)

	cycles := []evaluate.Cycle{
		{Name: "2020-2021 Bull", Type: "bull", Start: date(2020, 10, 1), End: date(2021, 4, 1)},
		{Name: "2022 Bear", Type: "bear", Start: date(2022, 1, 1), End: date(2022, 7, 1)},
		{Name: "2023 Sideways", Type: "sideways", Start: date(2023, 3, 1), End: date(2023, 9, 1)},
	}

	results, err := eval.MarketCycles(ctx, cfg.Symbols[0], func() strategy.BarStrategy {
		return defaultBarStrategy()
	}, cycles)
	if err != nil {
		log.Fatal().Err(err).Msg("Cycle analysis failed")
	}

	for _, r := range results {
		fmt.Print(report.Summary(fmt.Sprintf("%s (%s)", r.Cycle.Name, r.Cycle.Type), r.Metrics))
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// WIRING HELPERS
// ═══════════════════════════════════════════════════════════════════════════════

func buildPriceSource(cfg *config.Config) (datafeed.PriceSource, func(), error) {
	switch cfg.PriceFeed {
	case "stream":
		feed := datafeed.NewStreamFeed(cfg.Symbols...)
		if err := feed.Start(); err != nil {
			return nil, nil, err
		}
		return feed, feed.Stop, nil
	case "rest":
		return datafeed.NewBinanceClient(), func() {}, nil
	case "chainlink":
		feed, err := datafeed.NewChainlinkFeedWithRPC(cfg.PolygonRPC)
		if err != nil {
			return nil, nil, err
		}
		return feed, feed.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown price feed %q", cfg.PriceFeed)
}

func ledgerConfig(cfg *config.Config) portfolio.Config {
	return portfolio.Config{
		InitialCapital: cfg.InitialCapital,
		CommissionRate: cfg.CommissionRate,
		SlippageRate:   cfg.SlippageRate,
		Limits:         riskLimits(cfg),
	}
}

func riskLimits(cfg *config.Config) risk.Limits {
	return risk.Limits{
		MaxPositionPct: cfg.MaxPositionPct,
		RiskPerTrade:   cfg.RiskPerTrade,
		StopLossPct:    cfg.StopLossPct,
		TakeProfitPct:  cfg.TakeProfitPct,
		MaxDailyLoss:   cfg.MaxDailyLoss,
	}
}

func defaultBarStrategy() strategy.BarStrategy {
	switch os.Getenv("STRATEGY") {
	case "hold":
		return &strategy.HoldForever{}
	case "sma_fast":
		return strategy.NewSMACrossover(10, 30)
	}
	return strategy.NewSMACrossover(20, 50)
}

func backtestWindow() (time.Time, time.Time) {
	end := time.Now().UTC().Truncate(24 * time.Hour)
	start := end.AddDate(0, 0, -180)
	if v := os.Getenv("BACKTEST_START"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			start = t
		}
	}
	if v := os.Getenv("BACKTEST_END"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			end = t
		}
	}
	return start, end
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return def
}

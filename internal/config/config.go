package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all configuration for the simulator
type Config struct {
	// Telegram
	TelegramToken  string
	TelegramChatID int64

	// Trading
	Symbols      []string
	Timeframe    string
	TickInterval time.Duration
	Debug        bool

	// Capital & Frictions
	InitialCapital decimal.Decimal
	CommissionRate decimal.Decimal
	SlippageRate   decimal.Decimal

	// Risk Limits
	MaxPositionPct decimal.Decimal // e.g., 0.20 = 20% of portfolio per position
	RiskPerTrade   decimal.Decimal // e.g., 0.02 = 2% at risk per trade
	StopLossPct    decimal.Decimal // e.g., 0.15 = exit at -15%
	TakeProfitPct  decimal.Decimal // e.g., 0.30 = exit at +30%
	MaxDailyLoss   decimal.Decimal // e.g., 0.05 = kill switch at -5% on the day

	// Supervision
	HealthInterval time.Duration
	RetryDelay     time.Duration
	MaxRetries     int

	// Price feed: "stream", "rest" or "chainlink"
	PriceFeed   string
	PolygonRPC  string
	DatabaseDSN string
	ReportFile  string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		// Telegram
		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),

		// Trading
		Symbols:      splitList(getEnv("SYMBOLS", "BTC/USDT")),
		Timeframe:    getEnv("TIMEFRAME", "1h"),
		TickInterval: getEnvDuration("TICK_INTERVAL", 30*time.Second),
		Debug:        getEnvBool("DEBUG", false),

		// Capital & Frictions
		InitialCapital: getEnvDecimal("INITIAL_CAPITAL", decimal.NewFromInt(10000)),
		CommissionRate: getEnvDecimal("COMMISSION_RATE", decimal.NewFromFloat(0.001)),
		SlippageRate:   getEnvDecimal("SLIPPAGE_RATE", decimal.NewFromFloat(0.002)),

		// Risk Limits
		MaxPositionPct: getEnvDecimal("MAX_POSITION_PCT", decimal.NewFromFloat(0.20)),
		RiskPerTrade:   getEnvDecimal("RISK_PER_TRADE", decimal.NewFromFloat(0.02)),
		StopLossPct:    getEnvDecimal("STOP_LOSS_PCT", decimal.NewFromFloat(0.15)),
		TakeProfitPct:  getEnvDecimal("TAKE_PROFIT_PCT", decimal.NewFromFloat(0.30)),
		MaxDailyLoss:   getEnvDecimal("MAX_DAILY_LOSS", decimal.NewFromFloat(0.05)),

		// Supervision
		HealthInterval: getEnvDuration("HEALTH_INTERVAL", time.Hour),
		RetryDelay:     getEnvDuration("RETRY_DELAY", 5*time.Minute),
		MaxRetries:     getEnvInt("MAX_RETRIES", 3),

		// Feeds & Storage
		PriceFeed:   getEnv("PRICE_FEED", "stream"),
		PolygonRPC:  getEnv("POLYGON_RPC", "https://polygon-rpc.com"),
		DatabaseDSN: getEnv("DATABASE_DSN", "data/tradesim.db"),
		ReportFile:  getEnv("REPORT_FILE", "data/reports.log"),
	}

	// Parse chat ID
	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	if !cfg.InitialCapital.IsPositive() {
		return nil, fmt.Errorf("INITIAL_CAPITAL must be positive")
	}
	if len(cfg.Symbols) == 0 {
		return nil, fmt.Errorf("SYMBOLS must name at least one market")
	}

	return cfg, nil
}

// Helper functions

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}

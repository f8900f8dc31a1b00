package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"BTC/USDT"}, cfg.Symbols)
	assert.Equal(t, "1h", cfg.Timeframe)
	assert.True(t, cfg.InitialCapital.Equal(decimal.NewFromInt(10000)))
	assert.True(t, cfg.MaxDailyLoss.Equal(decimal.NewFromFloat(0.05)))
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, "stream", cfg.PriceFeed)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SYMBOLS", "BTC/USDT, ETH/USDT ,")
	t.Setenv("INITIAL_CAPITAL", "25000")
	t.Setenv("TICK_INTERVAL", "5s")
	t.Setenv("STOP_LOSS_PCT", "0.10")
	t.Setenv("TELEGRAM_CHAT_ID", "123456")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"BTC/USDT", "ETH/USDT"}, cfg.Symbols)
	assert.True(t, cfg.InitialCapital.Equal(decimal.NewFromInt(25000)))
	assert.Equal(t, 5*time.Second, cfg.TickInterval)
	assert.True(t, cfg.StopLossPct.Equal(decimal.NewFromFloat(0.10)))
	assert.EqualValues(t, 123456, cfg.TelegramChatID)
}

func TestLoad_BadValues(t *testing.T) {
	t.Setenv("TELEGRAM_CHAT_ID", "not-a-number")
	_, err := Load()
	require.Error(t, err)
}

func TestLoad_InvalidCapitalRejected(t *testing.T) {
	t.Setenv("INITIAL_CAPITAL", "-5")
	_, err := Load()
	require.Error(t, err)
}

func TestGetEnvHelpers_FallBackOnGarbage(t *testing.T) {
	t.Setenv("SOME_INT", "garbage")
	t.Setenv("SOME_DECIMAL", "garbage")
	t.Setenv("SOME_DURATION", "garbage")

	assert.Equal(t, 7, getEnvInt("SOME_INT", 7))
	assert.True(t, getEnvDecimal("SOME_DECIMAL", decimal.NewFromInt(3)).Equal(decimal.NewFromInt(3)))
	assert.Equal(t, time.Minute, getEnvDuration("SOME_DURATION", time.Minute))
	assert.False(t, getEnvBool("SOME_BOOL_UNSET", false))
}

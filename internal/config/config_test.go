package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTOML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("merges file over defaults", func(t *testing.T) {
		path := writeTOML(t, `
mode = "trade"
log_level = "debug"

[cycle]
buy_percentage = 0.3
leverage = 2
interval = "5m"

[redis]
addr = "redis.internal:6379"
`)
		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "trade", cfg.Mode)
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, 0.3, cfg.Cycle.BuyPercentage)
		assert.Equal(t, 2, cfg.Cycle.Leverage)
		assert.Equal(t, 5*time.Minute, cfg.Cycle.Interval.Duration)
		assert.Equal(t, "redis.internal:6379", cfg.Redis.Addr)
		// Untouched sections keep their defaults.
		assert.Equal(t, "https://api.binance.com", cfg.Binance.SpotBaseURL)
		assert.Equal(t, 10*time.Second, cfg.Cycle.PollInterval.Duration)
	})

	t.Run("env overrides win", func(t *testing.T) {
		path := writeTOML(t, `
[binance]
api_key = "from-file"
`)
		t.Setenv("KIMPBOT_BINANCE_API_KEY", "from-env")
		t.Setenv("KIMPBOT_CYCLE_LEVERAGE", "8")
		t.Setenv("KIMPBOT_CYCLE_MEDIUM_LEG", "false")
		t.Setenv("KIMPBOT_CYCLE_POLL_INTERVAL", "3s")

		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "from-env", cfg.Binance.ApiKey)
		assert.Equal(t, 8, cfg.Cycle.Leverage)
		assert.False(t, cfg.Cycle.MediumLeg)
		assert.Equal(t, 3*time.Second, cfg.Cycle.PollInterval.Duration)
	})

	t.Run("missing file errors", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := Defaults()
		cfg.Mode = "trade"
		cfg.Binance.ApiKey = "k"
		cfg.Binance.ApiSecret = "s"
		cfg.Coinone.AccessToken = "t"
		cfg.Coinone.ApiSecret = "s"
		return cfg
	}

	t.Run("defaults with scan mode pass", func(t *testing.T) {
		cfg := Defaults()
		assert.NoError(t, cfg.Validate())
	})

	t.Run("trade mode with credentials passes", func(t *testing.T) {
		cfg := valid()
		assert.NoError(t, cfg.Validate())
	})

	t.Run("trade mode requires credentials", func(t *testing.T) {
		cfg := Defaults()
		cfg.Mode = "trade"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "binance: api_key")
		assert.Contains(t, err.Error(), "coinone: access_token")
	})

	t.Run("buy percentage bounds", func(t *testing.T) {
		cfg := valid()
		cfg.Cycle.BuyPercentage = 1.5
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "buy_percentage")
	})

	t.Run("encrypted secret needs password", func(t *testing.T) {
		cfg := valid()
		cfg.Binance.ApiSecret = ""
		cfg.Binance.EncryptedSecretPath = "/secrets/binance.json"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "secret_password")
	})

	t.Run("archive needs s3 and postgres", func(t *testing.T) {
		cfg := valid()
		cfg.Archive.Enabled = true
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "s3 must be enabled")
		assert.Contains(t, err.Error(), "postgres must be enabled")
	})

	t.Run("telegram pair must be complete", func(t *testing.T) {
		cfg := valid()
		cfg.Notify.TelegramToken = "bot-token"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "telegram_chat_id")
	})

	t.Run("unknown mode rejected", func(t *testing.T) {
		cfg := Defaults()
		cfg.Mode = "backtest"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown mode")
	})
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Binance.ApiSecret = "super-secret"
	cfg.Coinone.AccessToken = "token"
	cfg.Redis.Password = "pw"

	red := RedactedConfig(&cfg)

	assert.Equal(t, "***", red.Binance.ApiSecret)
	assert.Equal(t, "***", red.Coinone.AccessToken)
	assert.Equal(t, "***", red.Redis.Password)
	// Original untouched.
	assert.Equal(t, "super-secret", cfg.Binance.ApiSecret)
	// Empty fields stay empty rather than "***".
	assert.Empty(t, red.Postgres.Password)
}

package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies KIMPBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known KIMPBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Binance ──
	setStr(&cfg.Binance.ApiKey, "KIMPBOT_BINANCE_API_KEY")
	setStr(&cfg.Binance.ApiSecret, "KIMPBOT_BINANCE_API_SECRET")
	setStr(&cfg.Binance.EncryptedSecretPath, "KIMPBOT_BINANCE_ENCRYPTED_SECRET_PATH")
	setStr(&cfg.Binance.SecretPassword, "KIMPBOT_BINANCE_SECRET_PASSWORD")
	setStr(&cfg.Binance.SpotBaseURL, "KIMPBOT_BINANCE_SPOT_BASE_URL")
	setStr(&cfg.Binance.FuturesBaseURL, "KIMPBOT_BINANCE_FUTURES_BASE_URL")

	// ── Coinone ──
	setStr(&cfg.Coinone.AccessToken, "KIMPBOT_COINONE_ACCESS_TOKEN")
	setStr(&cfg.Coinone.ApiSecret, "KIMPBOT_COINONE_API_SECRET")
	setStr(&cfg.Coinone.EncryptedSecretPath, "KIMPBOT_COINONE_ENCRYPTED_SECRET_PATH")
	setStr(&cfg.Coinone.SecretPassword, "KIMPBOT_COINONE_SECRET_PASSWORD")
	setStr(&cfg.Coinone.BaseURL, "KIMPBOT_COINONE_BASE_URL")
	setStr(&cfg.Coinone.WsURL, "KIMPBOT_COINONE_WS_URL")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "KIMPBOT_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "KIMPBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "KIMPBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "KIMPBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "KIMPBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "KIMPBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "KIMPBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "KIMPBOT_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "KIMPBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "KIMPBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "KIMPBOT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "KIMPBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "KIMPBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "KIMPBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "KIMPBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "KIMPBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "KIMPBOT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "KIMPBOT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "KIMPBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "KIMPBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "KIMPBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "KIMPBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "KIMPBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "KIMPBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "KIMPBOT_S3_FORCE_PATH_STYLE")

	// ── Cycle ──
	setFloat64(&cfg.Cycle.BuyPercentage, "KIMPBOT_CYCLE_BUY_PERCENTAGE")
	setInt(&cfg.Cycle.Leverage, "KIMPBOT_CYCLE_LEVERAGE")
	setBool(&cfg.Cycle.MediumLeg, "KIMPBOT_CYCLE_MEDIUM_LEG")
	setStr(&cfg.Cycle.TablePath, "KIMPBOT_CYCLE_TABLE_PATH")
	setDuration(&cfg.Cycle.Interval, "KIMPBOT_CYCLE_INTERVAL")
	setDuration(&cfg.Cycle.PollInterval, "KIMPBOT_CYCLE_POLL_INTERVAL")
	setDuration(&cfg.Cycle.LockTTL, "KIMPBOT_CYCLE_LOCK_TTL")
	setDuration(&cfg.Cycle.ScanInterval, "KIMPBOT_CYCLE_SCAN_INTERVAL")

	// ── Rates ──
	setStr(&cfg.Rates.QuoteURL, "KIMPBOT_RATES_QUOTE_URL")
	setDuration(&cfg.Rates.RefreshInterval, "KIMPBOT_RATES_REFRESH_INTERVAL")

	// ── Ledger / archive ──
	setStr(&cfg.Ledger.CSVPath, "KIMPBOT_LEDGER_CSV_PATH")
	setBool(&cfg.Archive.Enabled, "KIMPBOT_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "KIMPBOT_ARCHIVE_RETENTION_DAYS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "KIMPBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "KIMPBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "KIMPBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStr(&cfg.Notify.Title, "KIMPBOT_NOTIFY_TITLE")

	// ── Top-level ──
	setStr(&cfg.Mode, "KIMPBOT_MODE")
	setStr(&cfg.LogLevel, "KIMPBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

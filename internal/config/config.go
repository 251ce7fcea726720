// Package config defines the top-level configuration for the kimchi premium
// bot and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by KIMPBOT_* environment variables.
type Config struct {
	Binance  BinanceConfig  `toml:"binance"`
	Coinone  CoinoneConfig  `toml:"coinone"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Cycle    CycleConfig    `toml:"cycle"`
	Rates    RatesConfig    `toml:"rates"`
	Ledger   LedgerConfig   `toml:"ledger"`
	Archive  ArchiveConfig  `toml:"archive"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// BinanceConfig holds overseas exchange API credentials and endpoints. The
// secret can be supplied in plaintext or as an encrypted key file.
type BinanceConfig struct {
	ApiKey              string `toml:"api_key"`
	ApiSecret           string `toml:"api_secret"`
	EncryptedSecretPath string `toml:"encrypted_secret_path"`
	SecretPassword      string `toml:"secret_password"`
	SpotBaseURL         string `toml:"spot_base_url"`
	FuturesBaseURL      string `toml:"futures_base_url"`
}

// CoinoneConfig holds domestic exchange API credentials and endpoints.
type CoinoneConfig struct {
	AccessToken         string `toml:"access_token"`
	ApiSecret           string `toml:"api_secret"`
	EncryptedSecretPath string `toml:"encrypted_secret_path"`
	SecretPassword      string `toml:"secret_password"`
	BaseURL             string `toml:"base_url"`
	WsURL               string `toml:"ws_url"`
}

// PostgresConfig holds PostgreSQL connection parameters for the cycle store.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for ledger archives.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// CycleConfig holds the arbitrage cycle tunables.
type CycleConfig struct {
	// BuyPercentage is the fraction of the overseas quote balance spent on
	// the spot buy leg, in (0, 1].
	BuyPercentage float64 `toml:"buy_percentage"`
	// Leverage applied to the futures hedge.
	Leverage int `toml:"leverage"`
	// MediumLeg enables the return leg that brings funds back overseas
	// through the lowest-premium currency.
	MediumLeg bool `toml:"medium_leg"`
	// TablePath points to the transfer eligibility CSV.
	TablePath string `toml:"table_path"`
	// Interval between cycle attempts in trade mode.
	Interval duration `toml:"interval"`
	// PollInterval between withdrawal/deposit status polls.
	PollInterval duration `toml:"poll_interval"`
	// LockTTL bounds how long the per-pair Redis lock is held.
	LockTTL duration `toml:"lock_ttl"`
	// ScanInterval between premium table refreshes in scan mode.
	ScanInterval duration `toml:"scan_interval"`
}

// RatesConfig holds USD/KRW reference rate parameters.
type RatesConfig struct {
	QuoteURL        string   `toml:"quote_url"`
	RefreshInterval duration `toml:"refresh_interval"`
}

// LedgerConfig holds the local CSV ledger location.
type LedgerConfig struct {
	CSVPath string `toml:"csv_path"`
}

// ArchiveConfig holds cold-storage archival parameters.
type ArchiveConfig struct {
	Enabled       bool `toml:"enabled"`
	RetentionDays int  `toml:"retention_days"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string `toml:"telegram_token"`
	TelegramChatID    string `toml:"telegram_chat_id"`
	DiscordWebhookURL string `toml:"discord_webhook_url"`
	Title             string `toml:"title"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Binance: BinanceConfig{
			SpotBaseURL:    "https://api.binance.com",
			FuturesBaseURL: "https://fapi.binance.com",
		},
		Coinone: CoinoneConfig{
			BaseURL: "https://api.coinone.co.kr",
			WsURL:   "wss://stream.coinone.co.kr",
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "kimpbot",
			User:          "kimpbot",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "kimpbot-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Cycle: CycleConfig{
			BuyPercentage: 0.5,
			Leverage:      4,
			MediumLeg:     true,
			TablePath:     "eligibility.csv",
			Interval:      duration{10 * time.Minute},
			PollInterval:  duration{10 * time.Second},
			LockTTL:       duration{2 * time.Hour},
			ScanInterval:  duration{30 * time.Second},
		},
		Rates: RatesConfig{
			QuoteURL:        "",
			RefreshInterval: duration{time.Minute},
		},
		Ledger: LedgerConfig{
			CSVPath: "cycles.csv",
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 90,
		},
		Notify: NotifyConfig{
			Title: "kimpbot",
		},
		Mode:     "scan",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"trade": true, // run cycles on an interval
	"scan":  true, // rank premiums and stream prices, no orders
	"once":  true, // run a single cycle and exit
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, scan, once)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	tradingMode := c.Mode == "trade" || c.Mode == "once"

	// Binance credentials are required whenever orders can be placed.
	if tradingMode {
		if c.Binance.ApiKey == "" {
			errs = append(errs, "binance: api_key is required for mode "+c.Mode)
		}
		if c.Binance.ApiSecret == "" && c.Binance.EncryptedSecretPath == "" {
			errs = append(errs, "binance: either api_secret or encrypted_secret_path must be set for mode "+c.Mode)
		}
		if c.Binance.EncryptedSecretPath != "" && c.Binance.SecretPassword == "" {
			errs = append(errs, "binance: secret_password is required when encrypted_secret_path is set")
		}
		if c.Coinone.AccessToken == "" {
			errs = append(errs, "coinone: access_token is required for mode "+c.Mode)
		}
		if c.Coinone.ApiSecret == "" && c.Coinone.EncryptedSecretPath == "" {
			errs = append(errs, "coinone: either api_secret or encrypted_secret_path must be set for mode "+c.Mode)
		}
		if c.Coinone.EncryptedSecretPath != "" && c.Coinone.SecretPassword == "" {
			errs = append(errs, "coinone: secret_password is required when encrypted_secret_path is set")
		}
		if c.Cycle.TablePath == "" {
			errs = append(errs, "cycle: table_path must not be empty for mode "+c.Mode)
		}
	}

	if c.Binance.SpotBaseURL == "" {
		errs = append(errs, "binance: spot_base_url must not be empty")
	}
	if c.Binance.FuturesBaseURL == "" {
		errs = append(errs, "binance: futures_base_url must not be empty")
	}
	if c.Coinone.BaseURL == "" {
		errs = append(errs, "coinone: base_url must not be empty")
	}

	// Cycle tunables.
	if c.Cycle.BuyPercentage <= 0 || c.Cycle.BuyPercentage > 1 {
		errs = append(errs, fmt.Sprintf("cycle: buy_percentage must be in (0, 1], got %g", c.Cycle.BuyPercentage))
	}
	if c.Cycle.Leverage < 1 {
		errs = append(errs, fmt.Sprintf("cycle: leverage must be >= 1, got %d", c.Cycle.Leverage))
	}
	if c.Cycle.Interval.Duration <= 0 {
		errs = append(errs, "cycle: interval must be positive")
	}
	if c.Cycle.PollInterval.Duration <= 0 {
		errs = append(errs, "cycle: poll_interval must be positive")
	}

	// Postgres.
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis.
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}

	// S3 archival needs both the bucket and the store it archives from.
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
	}
	if c.Archive.Enabled {
		if !c.S3.Enabled {
			errs = append(errs, "archive: s3 must be enabled when archive is enabled")
		}
		if !c.Postgres.Enabled {
			errs = append(errs, "archive: postgres must be enabled when archive is enabled")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, fmt.Sprintf("archive: retention_days must be >= 1, got %d", c.Archive.RetentionDays))
		}
	}

	// Notify channels need both halves of the Telegram pair.
	tt := c.Notify.TelegramToken != ""
	tc := c.Notify.TelegramChatID != ""
	if tt != tc {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if c.Ledger.CSVPath == "" {
		errs = append(errs, "ledger: csv_path must not be empty")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

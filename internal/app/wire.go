package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/minkyu-kim/kimpbot/internal/balancer"
	s3blob "github.com/minkyu-kim/kimpbot/internal/blob/s3"
	"github.com/minkyu-kim/kimpbot/internal/cache/redis"
	"github.com/minkyu-kim/kimpbot/internal/config"
	"github.com/minkyu-kim/kimpbot/internal/crypto"
	"github.com/minkyu-kim/kimpbot/internal/cycle"
	"github.com/minkyu-kim/kimpbot/internal/domain"
	"github.com/minkyu-kim/kimpbot/internal/eligibility"
	"github.com/minkyu-kim/kimpbot/internal/ledger"
	"github.com/minkyu-kim/kimpbot/internal/notify"
	"github.com/minkyu-kim/kimpbot/internal/platform/binance"
	"github.com/minkyu-kim/kimpbot/internal/platform/coinone"
	"github.com/minkyu-kim/kimpbot/internal/premium"
	"github.com/minkyu-kim/kimpbot/internal/rates"
	"github.com/minkyu-kim/kimpbot/internal/store/postgres"
	"github.com/minkyu-kim/kimpbot/internal/transfer"
)

// Dependencies bundles everything the application modes need to operate. It
// is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Gateways
	Overseas domain.Gateway
	Domestic domain.Gateway
	Futures  domain.FuturesGateway

	// Caches and coordination
	PriceCache  domain.PriceCache
	RateLimiter domain.RateLimiter
	Locks       domain.LockManager

	// Persistence
	CycleStore domain.CycleStore // nil when postgres is disabled
	Ledger     domain.LedgerSink
	Archiver   domain.Archiver // nil unless archival is enabled

	// Services
	Rates      *rates.Service
	Candidates cycle.CandidateSource
	Cycle      *cycle.Orchestrator
	Notifier   *notify.Notifier

	// WsURL carries the domestic websocket endpoint for scan mode.
	WsURL string
}

// rankerSource adapts the premium ranker to cycle.CandidateSource by loading
// fresh market listings from both venues on every call.
type rankerSource struct {
	ranker   *premium.Ranker
	overseas domain.Gateway
	domestic domain.Gateway
}

func (s *rankerSource) Rank(ctx context.Context) ([]domain.Candidate, error) {
	overseasMarkets, err := s.overseas.LoadMarkets(ctx)
	if err != nil {
		return nil, fmt.Errorf("app: load overseas markets: %w", err)
	}
	domesticMarkets, err := s.domestic.LoadMarkets(ctx)
	if err != nil {
		return nil, fmt.Errorf("app: load domestic markets: %w", err)
	}
	return s.ranker.Rank(ctx, overseasMarkets, domesticMarkets)
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{WsURL: cfg.Coinone.WsURL}

	// --- Redis: price cache, rate limiter, cycle lock ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.PriceCache = redis.NewPriceCache(redisClient, 0)
	deps.RateLimiter = redis.NewRateLimiter(redisClient, 0, 0)
	deps.Locks = redis.NewLockManager(redisClient)

	// --- Exchange gateways ---
	binanceSecret, err := crypto.LoadSecret(crypto.SecretConfig{
		RawSecret:     cfg.Binance.ApiSecret,
		EncryptedPath: cfg.Binance.EncryptedSecretPath,
		Password:      cfg.Binance.SecretPassword,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: binance secret: %w", err)
	}
	coinoneSecret, err := crypto.LoadSecret(crypto.SecretConfig{
		RawSecret:     cfg.Coinone.ApiSecret,
		EncryptedPath: cfg.Coinone.EncryptedSecretPath,
		Password:      cfg.Coinone.SecretPassword,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: coinone secret: %w", err)
	}

	binanceClient := binance.NewClient(
		cfg.Binance.SpotBaseURL,
		cfg.Binance.FuturesBaseURL,
		cfg.Binance.ApiKey,
		binanceSecret,
		deps.RateLimiter,
	)
	spot := binance.NewSpot(binanceClient, logger)
	futures := binance.NewFutures(binanceClient, logger)

	coinoneClient := coinone.NewClient(cfg.Coinone.BaseURL, cfg.Coinone.AccessToken, coinoneSecret, deps.RateLimiter)
	domestic := coinone.NewGateway(coinoneClient, logger)

	deps.Overseas = spot
	deps.Domestic = domestic
	deps.Futures = futures

	// --- Ledger sinks: local CSV always, Postgres when enabled ---
	csvSink, err := ledger.NewCSVSink(cfg.Ledger.CSVPath)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: csv ledger: %w", err)
	}
	sinks := []domain.LedgerSink{csvSink}

	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		store := postgres.NewCycleStore(pgClient.Pool())
		deps.CycleStore = store
		sinks = append(sinks, store)
	}
	deps.Ledger = ledger.NewMultiSink(sinks...)

	// --- S3 archival ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		if cfg.Archive.Enabled && deps.CycleStore != nil {
			deps.Archiver = s3blob.NewCycleArchiver(
				deps.CycleStore,
				s3blob.NewWriter(s3Client),
				s3blob.NewReader(s3Client),
				logger,
			)
		}
	}

	// --- FX rates ---
	deps.Rates = rates.NewService(
		rates.NewClient(cfg.Rates.QuoteURL),
		cfg.Rates.RefreshInterval.Duration,
		logger,
	)

	// --- Premium ranking ---
	ranker := premium.NewRanker(deps.Overseas, deps.Domestic, deps.Rates, deps.PriceCache, 0, logger)
	deps.Candidates = &rankerSource{ranker: ranker, overseas: deps.Overseas, domestic: deps.Domestic}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Title, logger)

	// --- Cycle orchestrator ---
	pollInterval := cfg.Cycle.PollInterval.Duration
	tablePath := cfg.Cycle.TablePath
	deps.Cycle = cycle.New(cycle.Deps{
		Overseas:        deps.Overseas,
		Domestic:        deps.Domestic,
		Futures:         futures,
		Balancer:        balancer.New(spot, logger),
		Gate:            eligibility.NewGate(logger),
		Candidates:      deps.Candidates,
		LoadTable:       func() (domain.EligibilityTable, error) { return eligibility.LoadTable(tablePath) },
		OutboundTracker: transfer.New(deps.Overseas, deps.Domestic, pollInterval, logger),
		ReturnTracker:   transfer.New(deps.Domestic, deps.Overseas, pollInterval, logger),
		Ledger:          deps.Ledger,
		Locks:           deps.Locks,
		Rates:           deps.Rates,
		Notifier:        deps.Notifier,
		Logger:          logger,
	}, cycle.Config{
		BuyPercentage: cfg.Cycle.BuyPercentage,
		Leverage:      cfg.Cycle.Leverage,
		MediumLeg:     cfg.Cycle.MediumLeg,
		LockTTL:       cfg.Cycle.LockTTL.Duration,
	})

	return deps, cleanup, nil
}

// archiveCutoff converts a retention window in days to the archival cutoff.
func archiveCutoff(retentionDays int, now time.Time) time.Time {
	return now.AddDate(0, 0, -retentionDays)
}

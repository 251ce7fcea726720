package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/minkyu-kim/kimpbot/internal/feed"
	"github.com/minkyu-kim/kimpbot/internal/platform/coinone"
)

// TradeMode runs arbitrage cycles on the configured interval until the
// context is cancelled. The FX rate service and, when enabled, the archival
// job run alongside.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode",
		slog.Duration("interval", a.cfg.Cycle.Interval.Duration),
	)

	// Prime the FX snapshot so the first cycle does not race the rate
	// service's initial fetch.
	if err := deps.Rates.Refresh(ctx); err != nil {
		a.logger.WarnContext(ctx, "initial fx fetch failed",
			slog.String("error", err.Error()),
		)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Rates.Run(ctx)
	})

	if deps.Archiver != nil {
		g.Go(func() error {
			return a.runArchiver(ctx, deps)
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(a.cfg.Cycle.Interval.Duration)
		defer ticker.Stop()

		for {
			if err := deps.Cycle.Run(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				a.logger.ErrorContext(ctx, "cycle failed",
					slog.String("error", err.Error()),
				)
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
	})

	return g.Wait()
}

// OnceMode runs a single cycle and exits. Useful for manual runs and
// smoke-testing credentials.
func (a *App) OnceMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting single-cycle mode")

	if err := deps.Rates.Refresh(ctx); err != nil {
		return fmt.Errorf("app: fetch fx rate: %w", err)
	}
	return deps.Cycle.Run(ctx)
}

// ScanMode ranks premiums on an interval and streams live domestic prices
// into the cache without placing any orders.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scan mode",
		slog.Duration("interval", a.cfg.Cycle.ScanInterval.Duration),
	)

	if err := deps.Rates.Refresh(ctx); err != nil {
		a.logger.WarnContext(ctx, "initial fx fetch failed",
			slog.String("error", err.Error()),
		)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Rates.Run(ctx)
	})

	// Stream live domestic tickers into the price cache. Losing the feed
	// degrades scan freshness but is not fatal.
	if currencies, err := a.domesticCurrencies(ctx, deps); err != nil {
		a.logger.WarnContext(ctx, "ticker feed disabled",
			slog.String("error", err.Error()),
		)
	} else if len(currencies) > 0 && deps.WsURL != "" {
		feeder := feed.NewTickerFeeder(
			coinone.NewWSClient(deps.WsURL),
			deps.PriceCache,
			currencies,
			a.logger,
		)
		g.Go(func() error {
			if err := feeder.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.WarnContext(ctx, "ticker feed stopped",
					slog.String("error", err.Error()),
				)
			}
			return nil
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(a.cfg.Cycle.ScanInterval.Duration)
		defer ticker.Stop()

		for {
			a.logPremiums(ctx, deps)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
	})

	return g.Wait()
}

// runArchiver moves aged cycles to cold storage once a day.
func (a *App) runArchiver(ctx context.Context, deps *Dependencies) error {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		cutoff := archiveCutoff(a.cfg.Archive.RetentionDays, time.Now())
		count, err := deps.Archiver.ArchiveCycles(ctx, cutoff)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			a.logger.ErrorContext(ctx, "archival failed",
				slog.String("error", err.Error()),
			)
		} else if count > 0 {
			a.logger.InfoContext(ctx, "archived cycles",
				slog.Int64("count", count),
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// domesticCurrencies returns the base currencies of all active domestic
// markets, for websocket subscriptions.
func (a *App) domesticCurrencies(ctx context.Context, deps *Dependencies) ([]string, error) {
	markets, err := deps.Domestic.LoadMarkets(ctx)
	if err != nil {
		return nil, err
	}
	currencies := make([]string, 0, len(markets))
	for symbol, market := range markets {
		if !market.Active {
			continue
		}
		base, _, ok := strings.Cut(symbol, "/")
		if !ok {
			continue
		}
		currencies = append(currencies, base)
	}
	return currencies, nil
}

// logPremiums ranks the current premium table and logs the top entries.
func (a *App) logPremiums(ctx context.Context, deps *Dependencies) {
	candidates, err := deps.Candidates.Rank(ctx)
	if err != nil {
		a.logger.WarnContext(ctx, "premium scan failed",
			slog.String("error", err.Error()),
		)
		return
	}

	top := candidates
	if len(top) > 5 {
		top = top[:5]
	}
	for _, c := range top {
		a.logger.InfoContext(ctx, "premium",
			slog.String("currency", c.Currency),
			slog.Float64("percent", c.PremiumPercent),
			slog.Float64("diff_krw", c.PriceDiff),
		)
	}
}

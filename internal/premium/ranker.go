// Package premium computes the price premium of domestic KRW markets over
// their overseas USDT counterparts and picks cycle targets from the ranking.
package premium

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/minkyu-kim/kimpbot/internal/domain"
)

const defaultConcurrency = 8

// Ranker fetches ticker pairs for every currency listed on both exchanges
// and ranks them by premium.
type Ranker struct {
	overseas    domain.Gateway
	domestic    domain.Gateway
	rates       domain.RateSource
	cache       domain.PriceCache
	concurrency int
	logger      *slog.Logger
}

// NewRanker creates a Ranker. cache may be nil; when set, fetched prices are
// published to it so the scan feed and other readers see fresh quotes.
func NewRanker(overseas, domestic domain.Gateway, rates domain.RateSource, cache domain.PriceCache, concurrency int, logger *slog.Logger) *Ranker {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Ranker{
		overseas:    overseas,
		domestic:    domestic,
		rates:       rates,
		cache:       cache,
		concurrency: concurrency,
		logger:      logger.With(slog.String("component", "premium")),
	}
}

// Rank returns all currencies tradable on both exchanges ordered by premium,
// highest first. The premium of a currency is the percentage by which its
// domestic KRW price exceeds its overseas USD price converted at the current
// fx rate. The whole ranking is priced against a single rate snapshot.
func (r *Ranker) Rank(ctx context.Context, overseasMarkets, domesticMarkets map[string]domain.Market) ([]domain.Candidate, error) {
	snap, err := r.rates.Current()
	if err != nil {
		return nil, fmt.Errorf("premium: rank: %w", err)
	}

	currencies := commonCurrencies(overseasMarkets, domesticMarkets)
	if len(currencies) == 0 {
		return nil, domain.ErrNoMarketData
	}

	var (
		mu         sync.Mutex
		candidates []domain.Candidate
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for _, currency := range currencies {
		g.Go(func() error {
			cand, err := r.price(ctx, currency, snap)
			if err != nil {
				// One dead ticker must not sink the whole ranking.
				r.logger.Debug("skipping currency",
					slog.String("currency", currency),
					slog.String("error", err.Error()),
				)
				return nil
			}
			mu.Lock()
			candidates = append(candidates, cand)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("premium: rank: %w", err)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].PremiumPercent > candidates[j].PremiumPercent
	})

	r.logger.Info("premium ranking computed",
		slog.Int("candidates", len(candidates)),
		slog.Float64("usd_krw", snap.Rate),
		slog.Int64("rate_version", snap.Version),
	)
	return candidates, nil
}

// price fetches both legs of one currency and computes its premium.
func (r *Ranker) price(ctx context.Context, currency string, snap domain.RateSnapshot) (domain.Candidate, error) {
	overseasSymbol := OverseasSymbol(currency)
	domesticSymbol := DomesticSymbol(currency)

	overseasTick, err := r.overseas.FetchTicker(ctx, overseasSymbol)
	if err != nil {
		return domain.Candidate{}, err
	}
	domesticTick, err := r.domestic.FetchTicker(ctx, domesticSymbol)
	if err != nil {
		return domain.Candidate{}, err
	}
	if overseasTick.Last <= 0 || domesticTick.Last <= 0 {
		return domain.Candidate{}, domain.ErrNoMarketData
	}

	if r.cache != nil {
		now := time.Now()
		if err := r.cache.SetPrice(ctx, overseasSymbol, overseasTick.Last, now); err != nil {
			r.logger.Debug("price cache write failed", slog.String("error", err.Error()))
		}
		if err := r.cache.SetPrice(ctx, domesticSymbol, domesticTick.Last, now); err != nil {
			r.logger.Debug("price cache write failed", slog.String("error", err.Error()))
		}
	}

	overseasKRW := overseasTick.Last * snap.Rate
	diff := domesticTick.Last - overseasKRW
	return domain.Candidate{
		Symbol:         domesticSymbol,
		Currency:       currency,
		PriceDiff:      diff,
		PremiumPercent: diff / overseasKRW * 100,
	}, nil
}

// OverseasSymbol is the USDT spot symbol for a currency, e.g. "XRP/USDT".
func OverseasSymbol(currency string) string { return currency + "/USDT" }

// DomesticSymbol is the KRW spot symbol for a currency, e.g. "XRP/KRW".
func DomesticSymbol(currency string) string { return currency + "/KRW" }

// FuturesSymbol is the USDT perpetual symbol for a currency.
func FuturesSymbol(currency string) string { return currency + "/USDT:USDT" }

// commonCurrencies returns base currencies with an active USDT spot market
// overseas and an active KRW market domestically, sorted for deterministic
// fetch order.
func commonCurrencies(overseas, domestic map[string]domain.Market) []string {
	var currencies []string
	for _, m := range domestic {
		if !m.Active || !m.Spot || m.Quote != "KRW" {
			continue
		}
		o, ok := overseas[OverseasSymbol(m.Base)]
		if !ok || !o.Active || !o.Spot || !strings.EqualFold(o.Quote, "USDT") {
			continue
		}
		currencies = append(currencies, m.Base)
	}
	sort.Strings(currencies)
	return currencies
}

package premium

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minkyu-kim/kimpbot/internal/domain"
)

type tickerGateway struct {
	domain.Gateway
	name    string
	tickers map[string]float64
	errs    map[string]error
}

func (g *tickerGateway) Name() string { return g.name }

func (g *tickerGateway) FetchTicker(ctx context.Context, symbol string) (domain.TickerPrice, error) {
	if err, ok := g.errs[symbol]; ok {
		return domain.TickerPrice{}, err
	}
	last, ok := g.tickers[symbol]
	if !ok {
		return domain.TickerPrice{}, domain.ErrNoMarketData
	}
	return domain.TickerPrice{Symbol: symbol, Last: last}, nil
}

type fixedRate struct {
	snap domain.RateSnapshot
	err  error
}

func (f fixedRate) Current() (domain.RateSnapshot, error) { return f.snap, f.err }

type recordingCache struct {
	mu     sync.Mutex
	prices map[string]float64
}

func (c *recordingCache) SetPrice(ctx context.Context, symbol string, price float64, ts time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.prices == nil {
		c.prices = make(map[string]float64)
	}
	c.prices[symbol] = price
	return nil
}

func (c *recordingCache) GetPrice(ctx context.Context, symbol string) (float64, time.Time, error) {
	return 0, time.Time{}, domain.ErrNotFound
}

func (c *recordingCache) GetPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	return nil, domain.ErrNotFound
}

func spotMarket(base, quote string) domain.Market {
	return domain.Market{
		Symbol: base + "/" + quote,
		Base:   base,
		Quote:  quote,
		Active: true,
		Spot:   true,
	}
}

func testMarkets() (map[string]domain.Market, map[string]domain.Market) {
	overseas := map[string]domain.Market{
		"XRP/USDT": spotMarket("XRP", "USDT"),
		"TRX/USDT": spotMarket("TRX", "USDT"),
		"SOL/USDT": spotMarket("SOL", "USDT"),
		"BTC/USDT": spotMarket("BTC", "USDT"),
	}
	domestic := map[string]domain.Market{
		"XRP/KRW": spotMarket("XRP", "KRW"),
		"TRX/KRW": spotMarket("TRX", "KRW"),
		"SOL/KRW": spotMarket("SOL", "KRW"),
		"ETH/KRW": spotMarket("ETH", "KRW"),
	}
	return overseas, domestic
}

func TestRankOrdersByPremiumDesc(t *testing.T) {
	overseas, domestic := testMarkets()
	// fx = 1000 for round numbers. Premiums: XRP +5%, TRX +2%, SOL -1%.
	ov := &tickerGateway{name: "binance", tickers: map[string]float64{
		"XRP/USDT": 0.5,
		"TRX/USDT": 0.1,
		"SOL/USDT": 200,
	}}
	dom := &tickerGateway{name: "coinone", tickers: map[string]float64{
		"XRP/KRW": 525,
		"TRX/KRW": 102,
		"SOL/KRW": 198000,
	}}
	cache := &recordingCache{}

	ranker := NewRanker(ov, dom, fixedRate{snap: domain.RateSnapshot{Rate: 1000, Version: 1}}, cache, 4, slog.New(slog.DiscardHandler))
	candidates, err := ranker.Rank(context.Background(), overseas, domestic)

	require.NoError(t, err)
	require.Len(t, candidates, 3)
	assert.Equal(t, "XRP", candidates[0].Currency)
	assert.Equal(t, "TRX", candidates[1].Currency)
	assert.Equal(t, "SOL", candidates[2].Currency)
	assert.InDelta(t, 5.0, candidates[0].PremiumPercent, 1e-9)
	assert.InDelta(t, 25.0, candidates[0].PriceDiff, 1e-9)
	assert.Equal(t, "XRP/KRW", candidates[0].Symbol)

	// Both legs of every ranked currency land in the price cache.
	assert.Equal(t, 0.5, cache.prices["XRP/USDT"])
	assert.Equal(t, float64(525), cache.prices["XRP/KRW"])
}

func TestRankSkipsFailedTickers(t *testing.T) {
	overseas, domestic := testMarkets()
	ov := &tickerGateway{
		name:    "binance",
		tickers: map[string]float64{"XRP/USDT": 0.5, "SOL/USDT": 200},
		errs:    map[string]error{"TRX/USDT": domain.ErrRateLimited},
	}
	dom := &tickerGateway{name: "coinone", tickers: map[string]float64{
		"XRP/KRW": 525,
		"SOL/KRW": 198000,
	}}

	ranker := NewRanker(ov, dom, fixedRate{snap: domain.RateSnapshot{Rate: 1000}}, nil, 0, slog.New(slog.DiscardHandler))
	candidates, err := ranker.Rank(context.Background(), overseas, domestic)

	require.NoError(t, err)
	require.Len(t, candidates, 2)
	for _, c := range candidates {
		assert.NotEqual(t, "TRX", c.Currency)
	}
}

func TestRankWithoutRateSnapshot(t *testing.T) {
	overseas, domestic := testMarkets()
	ranker := NewRanker(&tickerGateway{}, &tickerGateway{}, fixedRate{err: domain.ErrNoRateSnapshot}, nil, 0, slog.New(slog.DiscardHandler))

	_, err := ranker.Rank(context.Background(), overseas, domestic)
	require.ErrorIs(t, err, domain.ErrNoRateSnapshot)
}

func TestRankNoCommonCurrencies(t *testing.T) {
	ranker := NewRanker(&tickerGateway{}, &tickerGateway{}, fixedRate{snap: domain.RateSnapshot{Rate: 1000}}, nil, 0, slog.New(slog.DiscardHandler))

	_, err := ranker.Rank(context.Background(),
		map[string]domain.Market{"BTC/USDT": spotMarket("BTC", "USDT")},
		map[string]domain.Market{"ETH/KRW": spotMarket("ETH", "KRW")},
	)
	require.ErrorIs(t, err, domain.ErrNoMarketData)
}

func TestSelectTargetAndMedium(t *testing.T) {
	candidates := []domain.Candidate{
		{Currency: "XRP", PremiumPercent: 5},
		{Currency: "TRX", PremiumPercent: 2},
		{Currency: "SOL", PremiumPercent: -1},
	}
	allowAll := func(string) bool { return true }

	target, err := SelectTarget(candidates, allowAll)
	require.NoError(t, err)
	assert.Equal(t, "XRP", target.Currency)

	medium, err := SelectMedium(candidates, allowAll, target.Currency)
	require.NoError(t, err)
	assert.Equal(t, "SOL", medium.Currency)
}

func TestSelectTargetHonorsEligibility(t *testing.T) {
	candidates := []domain.Candidate{
		{Currency: "XRP", PremiumPercent: 5},
		{Currency: "TRX", PremiumPercent: 2},
	}
	onlyTRX := func(c string) bool { return c == "TRX" }

	target, err := SelectTarget(candidates, onlyTRX)
	require.NoError(t, err)
	assert.Equal(t, "TRX", target.Currency)

	_, err = SelectTarget(candidates, func(string) bool { return false })
	require.ErrorIs(t, err, domain.ErrNoEligibleTarget)
}

func TestSelectMediumExcludesTarget(t *testing.T) {
	candidates := []domain.Candidate{
		{Currency: "SOL", PremiumPercent: -1},
	}
	_, err := SelectMedium(candidates, func(string) bool { return true }, "SOL")
	require.ErrorIs(t, err, domain.ErrNoEligibleTarget)
}

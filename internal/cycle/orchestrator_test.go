package cycle

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minkyu-kim/kimpbot/internal/balancer"
	"github.com/minkyu-kim/kimpbot/internal/domain"
	"github.com/minkyu-kim/kimpbot/internal/eligibility"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeGateway struct {
	domain.Gateway
	mu          sync.Mutex
	name        string
	balances    map[string]float64
	markets     map[string]domain.Market
	depositable bool
	address     domain.DepositAddress

	buys      []placedOrder
	sells     []placedOrder
	withdraws []placedWithdrawal

	buyErr      error
	sellErr     error
	withdrawErr error
}

type placedOrder struct {
	symbol string
	size   float64
}

type placedWithdrawal struct {
	currency string
	amount   float64
	dest     domain.DepositAddress
}

func (g *fakeGateway) Name() string { return g.name }

func (g *fakeGateway) FetchBalance(ctx context.Context, currency string) (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.balances[currency], nil
}

func (g *fakeGateway) LoadMarkets(ctx context.Context) (map[string]domain.Market, error) {
	return g.markets, nil
}

func (g *fakeGateway) PlaceMarketBuy(ctx context.Context, symbol string, cost float64) (*domain.OrderResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.buyErr != nil {
		return nil, g.buyErr
	}
	g.buys = append(g.buys, placedOrder{symbol, cost})
	return &domain.OrderResult{OrderID: "buy", Symbol: symbol, TotalCost: cost, FilledQty: cost / 0.5, AveragePrice: 0.5}, nil
}

func (g *fakeGateway) PlaceMarketSell(ctx context.Context, symbol string, amount float64) (*domain.OrderResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sellErr != nil {
		return nil, g.sellErr
	}
	g.sells = append(g.sells, placedOrder{symbol, amount})
	return &domain.OrderResult{OrderID: "sell", Symbol: symbol, FilledQty: amount}, nil
}

func (g *fakeGateway) FetchDepositAddress(ctx context.Context, currency string) (domain.DepositAddress, error) {
	return g.address, nil
}

func (g *fakeGateway) IsDepositable(ctx context.Context, currency string) (bool, error) {
	return g.depositable, nil
}

func (g *fakeGateway) Withdraw(ctx context.Context, currency string, amount float64, dest domain.DepositAddress) (*domain.WithdrawalTicket, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.withdrawErr != nil {
		return nil, g.withdrawErr
	}
	g.withdraws = append(g.withdraws, placedWithdrawal{currency, amount, dest})
	return &domain.WithdrawalTicket{
		ID:       "wd-1",
		Currency: currency,
		Amount:   amount,
		Status:   domain.WithdrawalPending,
	}, nil
}

type fakeFutures struct {
	domain.FuturesGateway
	mu        sync.Mutex
	balance   float64
	positions []domain.Position
	shortErr  error
	levErr    error

	leverageSet int
	shorts      []placedOrder
	closes      []placedOrder
}

func (f *fakeFutures) Name() string { return "binance_futures" }

func (f *fakeFutures) FetchBalance(ctx context.Context, currency string) (float64, error) {
	return f.balance, nil
}

func (f *fakeFutures) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.levErr != nil {
		return f.levErr
	}
	f.leverageSet = leverage
	return nil
}

func (f *fakeFutures) FetchPositions(ctx context.Context) ([]domain.Position, error) {
	return f.positions, nil
}

func (f *fakeFutures) PlaceMarketBuy(ctx context.Context, symbol string, amount float64) (*domain.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes = append(f.closes, placedOrder{symbol, amount})
	return &domain.OrderResult{OrderID: "close", Symbol: symbol, FilledQty: amount}, nil
}

func (f *fakeFutures) PlaceMarketSellCost(ctx context.Context, symbol string, cost float64) (*domain.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.shortErr != nil {
		return nil, f.shortErr
	}
	f.shorts = append(f.shorts, placedOrder{symbol, cost})
	return &domain.OrderResult{OrderID: "short", Symbol: symbol, TotalCost: cost}, nil
}

type fakeTransferer struct{}

func (fakeTransferer) TransferFunds(ctx context.Context, direction domain.TransferDirection, amount float64) error {
	return nil
}

type fakeTracker struct {
	final domain.WithdrawalStatus
	err   error
	calls int
}

func (f *fakeTracker) Track(ctx context.Context, ticket *domain.WithdrawalTicket) (domain.WithdrawalStatus, error) {
	f.calls++
	if f.err != nil {
		return ticket.Status, f.err
	}
	ticket.Status = f.final
	if f.final == domain.WithdrawalCompleted {
		ticket.TxID = "0xbridge"
	}
	return f.final, nil
}

type fakeSource struct {
	candidates []domain.Candidate
	err        error
}

func (f fakeSource) Rank(ctx context.Context) ([]domain.Candidate, error) {
	return f.candidates, f.err
}

type captureLedger struct {
	mu   sync.Mutex
	recs []domain.CycleRecord
}

func (l *captureLedger) Append(ctx context.Context, rec domain.CycleRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recs = append(l.recs, rec)
	return nil
}

func (l *captureLedger) last(t *testing.T) domain.CycleRecord {
	t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()
	require.NotEmpty(t, l.recs)
	return l.recs[len(l.recs)-1]
}

type fixedRate struct{ rate float64 }

func (f fixedRate) Current() (domain.RateSnapshot, error) {
	return domain.RateSnapshot{Rate: f.rate, Version: 1}, nil
}

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

type fixture struct {
	overseas *fakeGateway
	domestic *fakeGateway
	futures  *fakeFutures
	tracker  *fakeTracker
	back     *fakeTracker
	ledger   *captureLedger
	orch     *Orchestrator
}

func market(symbol, base, quote string, prec int) domain.Market {
	return domain.Market{
		Symbol:          symbol,
		Base:            base,
		Quote:           quote,
		MinCost:         1,
		MinAmount:       0.0001,
		AmountPrecision: prec,
		PricePrecision:  prec,
		Active:          true,
		Spot:            true,
	}
}

func newFixture(candidates []domain.Candidate, table domain.EligibilityTable) *fixture {
	logger := slog.New(slog.DiscardHandler)

	overseas := &fakeGateway{
		name:     "binance",
		balances: map[string]float64{"USDT": 1000, "XRP": 950, "TRX": 0},
		markets: map[string]domain.Market{
			"XRP/USDT": market("XRP/USDT", "XRP", "USDT", 4),
			"TRX/USDT": market("TRX/USDT", "TRX", "USDT", 4),
		},
		depositable: true,
		address:     domain.DepositAddress{Address: "overseas-addr"},
	}
	domestic := &fakeGateway{
		name:     "coinone",
		balances: map[string]float64{"XRP": 950, "KRW": 640000, "TRX": 0},
		markets: map[string]domain.Market{
			"XRP/KRW": market("XRP/KRW", "XRP", "KRW", 4),
			"TRX/KRW": market("TRX/KRW", "TRX", "KRW", 4),
		},
		depositable: true,
		address:     domain.DepositAddress{Address: "domestic-addr"},
	}
	futures := &fakeFutures{
		balance: 200,
		positions: []domain.Position{
			{Symbol: "XRP/USDT:USDT", Size: -380, EntryPrice: 0.52, Leverage: 4},
		},
	}
	tracker := &fakeTracker{final: domain.WithdrawalCompleted}
	back := &fakeTracker{final: domain.WithdrawalCompleted}
	ledger := &captureLedger{}

	orch := New(Deps{
		Overseas:        overseas,
		Domestic:        domestic,
		Futures:         futures,
		Balancer:        balancer.New(fakeTransferer{}, logger),
		Gate:            eligibility.NewGate(logger),
		Candidates:      fakeSource{candidates: candidates},
		LoadTable:       func() (domain.EligibilityTable, error) { return table, nil },
		OutboundTracker: tracker,
		ReturnTracker:   back,
		Ledger:          ledger,
		Rates:           fixedRate{rate: 1340},
		Logger:          logger,
	}, Config{
		BuyPercentage: 0.5,
		Leverage:      4,
		LockTTL:       time.Minute,
	})

	return &fixture{
		overseas: overseas,
		domestic: domestic,
		futures:  futures,
		tracker:  tracker,
		back:     back,
		ledger:   ledger,
		orch:     orch,
	}
}

func eligibleRecord(currency string) domain.EligibilityRecord {
	return domain.EligibilityRecord{
		Currency:       currency,
		DepositAddress: domain.DepositAddress{Address: "dest-" + currency},
		Depositable:    true,
	}
}

func defaultCandidates() []domain.Candidate {
	return []domain.Candidate{
		{Symbol: "XRP/KRW", Currency: "XRP", PremiumPercent: 5.2},
		{Symbol: "TRX/KRW", Currency: "TRX", PremiumPercent: 1.1},
	}
}

func defaultTable() domain.EligibilityTable {
	return domain.EligibilityTable{
		"XRP": eligibleRecord("XRP"),
		"TRX": eligibleRecord("TRX"),
	}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestRunFullCycleCompletes(t *testing.T) {
	f := newFixture(defaultCandidates(), defaultTable())

	require.NoError(t, f.orch.Run(context.Background()))

	rec := f.ledger.last(t)
	assert.Equal(t, domain.CycleCompleted, rec.Status)
	assert.Equal(t, "XRP", rec.TargetCurrency)
	assert.Equal(t, 5.2, rec.PremiumPercent)
	assert.Equal(t, float64(1340), rec.FxRate)
	require.NotNil(t, rec.BuyResult)
	require.NotNil(t, rec.HedgeResult)
	require.NotNil(t, rec.SellResult)
	require.NotNil(t, rec.CloseResult)
	assert.Equal(t, "wd-1", rec.WithdrawalID)
	assert.False(t, rec.FinishedAt.Before(rec.StartedAt))

	// Buy spends 50% of the 1000 USDT balance.
	require.Len(t, f.overseas.buys, 1)
	assert.Equal(t, float64(500), f.overseas.buys[0].size)

	// Short notional is the full futures balance at 4x.
	require.Len(t, f.futures.shorts, 1)
	assert.Equal(t, "XRP/USDT:USDT", f.futures.shorts[0].symbol)
	assert.Equal(t, float64(800), f.futures.shorts[0].size)
	assert.Equal(t, 4, f.futures.leverageSet)

	// Withdrawal moves the full acquired balance to the table's address.
	require.Len(t, f.overseas.withdraws, 1)
	assert.Equal(t, "XRP", f.overseas.withdraws[0].currency)
	assert.Equal(t, float64(950), f.overseas.withdraws[0].amount)
	assert.Equal(t, "dest-XRP", f.overseas.withdraws[0].dest.Address)
	assert.Equal(t, 1, f.tracker.calls)

	// Sell happens on the domestic side, close buys back the short size.
	require.Len(t, f.domestic.sells, 1)
	assert.Equal(t, "XRP/KRW", f.domestic.sells[0].symbol)
	require.Len(t, f.futures.closes, 1)
	assert.Equal(t, float64(380), f.futures.closes[0].size)
}

func TestRunSkipsIneligibleCandidates(t *testing.T) {
	table := defaultTable()
	xrp := table["XRP"]
	xrp.TradeSuspended = true
	table["XRP"] = xrp

	f := newFixture(defaultCandidates(), table)
	require.NoError(t, f.orch.Run(context.Background()))

	assert.Equal(t, "TRX", f.ledger.last(t).TargetCurrency)
}

func TestRunNoEligibleTargetAbortsCleanly(t *testing.T) {
	f := newFixture(defaultCandidates(), domain.EligibilityTable{})

	err := f.orch.Run(context.Background())
	require.ErrorIs(t, err, domain.ErrNoEligibleTarget)

	rec := f.ledger.last(t)
	assert.Equal(t, domain.CycleAborted, rec.Status)
	assert.Empty(t, f.overseas.buys)
	assert.Empty(t, f.futures.shorts)
	assert.Empty(t, f.overseas.withdraws)
}

func TestRunShortFailureContinuesWithNullHedge(t *testing.T) {
	f := newFixture(defaultCandidates(), defaultTable())
	f.futures.shortErr = errors.New("leverage set rejected")

	require.NoError(t, f.orch.Run(context.Background()))

	rec := f.ledger.last(t)
	assert.Equal(t, domain.CyclePartial, rec.Status)
	assert.Nil(t, rec.HedgeResult)
	require.NotNil(t, rec.BuyResult)
	require.NotNil(t, rec.SellResult)
	assert.Equal(t, "wd-1", rec.WithdrawalID)
	require.Len(t, f.overseas.withdraws, 1)
}

func TestRunBuyFailureAbortsBeforeBridge(t *testing.T) {
	f := newFixture(defaultCandidates(), defaultTable())
	f.overseas.buyErr = errors.New("insufficient balance")

	err := f.orch.Run(context.Background())
	require.Error(t, err)

	rec := f.ledger.last(t)
	assert.Nil(t, rec.BuyResult)
	assert.Equal(t, "spot buy failed", rec.FailReason)
	assert.Empty(t, f.overseas.withdraws)
	assert.Empty(t, f.domestic.sells)
}

func TestRunTransferFailureClosesShortButBlocksSell(t *testing.T) {
	f := newFixture(defaultCandidates(), defaultTable())
	f.tracker.final = domain.WithdrawalFailed

	err := f.orch.Run(context.Background())
	require.ErrorIs(t, err, domain.ErrTransferFailed)

	rec := f.ledger.last(t)
	assert.Equal(t, domain.CycleTransferFailed, rec.Status)
	assert.Nil(t, rec.SellResult)
	require.NotNil(t, rec.CloseResult)
	assert.Empty(t, f.domestic.sells)
	require.Len(t, f.futures.closes, 1)
}

func TestRunNotDepositableSellsOnSource(t *testing.T) {
	f := newFixture(defaultCandidates(), defaultTable())
	f.domestic.depositable = false

	require.NoError(t, f.orch.Run(context.Background()))

	rec := f.ledger.last(t)
	require.NotNil(t, rec.SellResult)
	assert.Equal(t, "XRP/USDT", rec.SellResult.Symbol)
	assert.Empty(t, rec.WithdrawalID)
	assert.Empty(t, f.overseas.withdraws)
	assert.Empty(t, f.domestic.sells)
	// The short is still closed.
	require.Len(t, f.futures.closes, 1)
}

func TestRunCloseWithNoPositionIsNoOp(t *testing.T) {
	f := newFixture(defaultCandidates(), defaultTable())
	f.futures.positions = nil

	require.NoError(t, f.orch.Run(context.Background()))

	rec := f.ledger.last(t)
	assert.Nil(t, rec.CloseResult)
	assert.Empty(t, f.futures.closes)
	assert.Equal(t, domain.CycleCompleted, rec.Status)
}

func TestRunMediumLeg(t *testing.T) {
	f := newFixture(defaultCandidates(), defaultTable())
	f.orch.cfg.MediumLeg = true
	f.domestic.balances["TRX"] = 12000
	f.overseas.balances["TRX"] = 12000

	require.NoError(t, f.orch.Run(context.Background()))

	rec := f.ledger.last(t)
	assert.Equal(t, "TRX", rec.MediumCurrency)
	require.NotNil(t, rec.MediumBuyResult)
	require.NotNil(t, rec.MediumSellResult)
	assert.NotEmpty(t, rec.MediumWithdrawalID)
	assert.Equal(t, 1, f.back.calls)

	// The medium comes back overseas and is sold there for USDT.
	var sawMediumSell bool
	for _, s := range f.overseas.sells {
		if s.symbol == "TRX/USDT" {
			sawMediumSell = true
		}
	}
	assert.True(t, sawMediumSell)
}

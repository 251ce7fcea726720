// Package cycle sequences one full arbitrage pass: target selection, hedged
// acquisition, the on-chain bridge, exit, and the optional medium-currency
// return leg.
package cycle

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/minkyu-kim/kimpbot/internal/balancer"
	"github.com/minkyu-kim/kimpbot/internal/domain"
	"github.com/minkyu-kim/kimpbot/internal/eligibility"
	"github.com/minkyu-kim/kimpbot/internal/premium"
	"github.com/minkyu-kim/kimpbot/internal/sizing"
)

// CandidateSource produces the ranked candidate list the orchestrator
// consumes. The list arrives sorted by premium, highest first; the
// orchestrator never re-sorts it.
type CandidateSource interface {
	Rank(ctx context.Context) ([]domain.Candidate, error)
}

// Tracker drives a withdrawal ticket to a terminal state.
type Tracker interface {
	Track(ctx context.Context, ticket *domain.WithdrawalTicket) (domain.WithdrawalStatus, error)
}

// TableLoader fetches a fresh eligibility table. Called once per cycle.
type TableLoader func() (domain.EligibilityTable, error)

// Notifier pushes operator-facing messages. Best effort; failures are
// logged, never propagated.
type Notifier interface {
	Send(ctx context.Context, message string) error
}

// Config carries the cycle's tunables.
type Config struct {
	// BuyPercentage is the fraction of the overseas quote balance spent on
	// the spot buy leg, e.g. 0.5.
	BuyPercentage float64
	// Leverage is the target futures leverage for hedging and rebalance.
	Leverage int
	// MediumLeg enables the return bridge through a minimum-loss medium
	// currency.
	MediumLeg bool
	// LockTTL bounds how long a crashed cycle keeps its pair locked.
	LockTTL time.Duration
}

// Deps bundles the orchestrator's collaborators.
type Deps struct {
	Overseas   domain.Gateway
	Domestic   domain.Gateway
	Futures    domain.FuturesGateway
	Balancer   *balancer.Balancer
	Gate       *eligibility.Gate
	Candidates CandidateSource
	LoadTable  TableLoader
	// OutboundTracker watches target withdrawals overseas → domestic;
	// ReturnTracker watches medium withdrawals domestic → overseas.
	OutboundTracker Tracker
	ReturnTracker   Tracker
	Ledger          domain.LedgerSink
	Locks           domain.LockManager // may be nil
	Rates           domain.RateSource
	Notifier        Notifier // may be nil
	Logger          *slog.Logger
}

// Orchestrator owns one currency pair. Each Run creates a fresh CycleRecord;
// no state survives between runs.
type Orchestrator struct {
	deps   Deps
	cfg    Config
	logger *slog.Logger
}

// New creates an Orchestrator.
func New(deps Deps, cfg Config) *Orchestrator {
	return &Orchestrator{
		deps:   deps,
		cfg:    cfg,
		logger: deps.Logger.With(slog.String("component", "cycle")),
	}
}

// Run executes one full cycle. The returned error describes why the cycle
// ended early; the ledger row is appended regardless, with null legs for
// whatever never ran.
func (o *Orchestrator) Run(ctx context.Context) error {
	if o.deps.Locks != nil {
		key := "cycle:" + o.deps.Overseas.Name() + ":" + o.deps.Domestic.Name()
		unlock, err := o.deps.Locks.Acquire(ctx, key, o.cfg.LockTTL)
		if err != nil {
			return fmt.Errorf("cycle: acquire lock: %w", err)
		}
		defer unlock()
	}

	rec := &domain.CycleRecord{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
	}
	defer o.finish(ctx, rec)

	log := o.logger.With(slog.String("cycle_id", rec.ID))

	table, err := o.deps.LoadTable()
	if err != nil {
		rec.Status = domain.CycleAborted
		rec.FailReason = "eligibility table load failed"
		return fmt.Errorf("cycle: load eligibility table: %w", err)
	}

	candidates, err := o.deps.Candidates.Rank(ctx)
	if err != nil {
		rec.Status = domain.CycleAborted
		rec.FailReason = "premium ranking failed"
		return fmt.Errorf("cycle: rank candidates: %w", err)
	}

	if snap, rerr := o.deps.Rates.Current(); rerr == nil {
		rec.FxRate = snap.Rate
	}

	target, err := premium.SelectTarget(candidates, func(c string) bool {
		return o.deps.Gate.IsEligible(c, table)
	})
	if err != nil {
		rec.Status = domain.CycleAborted
		rec.FailReason = "no eligible target"
		return fmt.Errorf("cycle: select target: %w", err)
	}
	rec.TargetCurrency = target.Currency
	rec.PremiumPercent = target.PremiumPercent
	log.Info("target selected",
		slog.String("currency", target.Currency),
		slog.Float64("premium_percent", target.PremiumPercent),
	)

	o.hedgeEntry(ctx, rec, log)
	if rec.BuyResult == nil {
		// The hedge is meaningless without the underlying spot position.
		if rec.HedgeResult == nil {
			rec.Status = domain.CycleAborted
		} else {
			rec.Status = domain.CyclePartial
		}
		rec.FailReason = "spot buy failed"
		return fmt.Errorf("cycle: hedge entry: spot buy failed")
	}

	bridged, err := o.bridgeFunds(ctx, rec, table, log)
	if err != nil {
		// Funds never arrived: the destination sell is impossible, but the
		// short must still be closed.
		o.exitPositions(ctx, rec, false, log)
		rec.Status = domain.CycleTransferFailed
		if rec.FailReason == "" {
			rec.FailReason = "bridge transfer failed"
		}
		return fmt.Errorf("cycle: bridge funds: %w", err)
	}

	o.exitPositions(ctx, rec, bridged, log)

	if o.cfg.MediumLeg && bridged {
		o.mediumLeg(ctx, rec, candidates, table, log)
	}
	return nil
}

// hedgeEntry rebalances spot/futures funding, then places the spot buy and
// the futures short concurrently. Each leg catches its own error and records
// a null result; the pair is a hard join point.
func (o *Orchestrator) hedgeEntry(ctx context.Context, rec *domain.CycleRecord, log *slog.Logger) {
	spotBal, err := o.deps.Overseas.FetchBalance(ctx, "USDT")
	if err != nil {
		log.Error("spot balance fetch failed", slog.String("error", err.Error()))
		return
	}
	futuresBal, err := o.deps.Futures.FetchBalance(ctx, "USDT")
	if err != nil {
		log.Error("futures balance fetch failed", slog.String("error", err.Error()))
		return
	}

	if _, err := o.deps.Balancer.Rebalance(ctx, spotBal, futuresBal, o.cfg.Leverage); err != nil {
		// A failed rebalance skews sizing but blocks nothing.
		log.Warn("leverage rebalance failed", slog.String("error", err.Error()))
	}

	overseasSymbol := premium.OverseasSymbol(rec.TargetCurrency)
	futuresSymbol := premium.FuturesSymbol(rec.TargetCurrency)

	var g errgroup.Group
	g.Go(func() error {
		rec.BuyResult = o.buyLeg(ctx, overseasSymbol, log)
		return nil
	})
	g.Go(func() error {
		rec.HedgeResult = o.shortLeg(ctx, rec, futuresSymbol, log)
		return nil
	})
	g.Wait()
}

// buyLeg spends the configured fraction of the refetched quote balance.
func (o *Orchestrator) buyLeg(ctx context.Context, symbol string, log *slog.Logger) *domain.OrderResult {
	balance, err := o.deps.Overseas.FetchBalance(ctx, "USDT")
	if err != nil {
		log.Error("buy leg failed", slog.String("error", err.Error()))
		return nil
	}

	markets, err := o.deps.Overseas.LoadMarkets(ctx)
	if err != nil {
		log.Error("buy leg failed", slog.String("error", err.Error()))
		return nil
	}
	market, ok := markets[symbol]
	if !ok {
		log.Error("buy leg failed", slog.String("error", domain.ErrNoMarketData.Error()))
		return nil
	}

	cost, err := sizing.NormalizeCost(balance*o.cfg.BuyPercentage, &market)
	if err != nil {
		log.Error("buy leg failed", slog.String("error", err.Error()))
		return nil
	}

	result, err := o.deps.Overseas.PlaceMarketBuy(ctx, symbol, cost)
	if err != nil {
		log.Error("buy leg failed", slog.String("error", err.Error()))
		return nil
	}
	return result
}

// shortLeg sets leverage and opens a short against the full refetched
// futures balance.
func (o *Orchestrator) shortLeg(ctx context.Context, rec *domain.CycleRecord, symbol string, log *slog.Logger) *domain.OrderResult {
	fail := func(err error) *domain.OrderResult {
		log.Error("short leg failed", slog.String("error", err.Error()))
		if rec.FailReason == "" {
			rec.FailReason = "futures short failed"
		}
		return nil
	}

	if err := o.deps.Futures.SetLeverage(ctx, symbol, o.cfg.Leverage); err != nil {
		return fail(err)
	}

	balance, err := o.deps.Futures.FetchBalance(ctx, "USDT")
	if err != nil {
		return fail(err)
	}

	notional := balance * float64(o.cfg.Leverage)
	result, err := o.deps.Futures.PlaceMarketSellCost(ctx, symbol, notional)
	if err != nil {
		return fail(err)
	}
	return result
}

// bridgeFunds withdraws the acquired balance to the domestic exchange and
// waits for the deposit. Depositability is re-checked at call time; when
// closed, the position is sold on the source exchange instead and no bridge
// happens. Returns whether funds arrived on the domestic side.
func (o *Orchestrator) bridgeFunds(ctx context.Context, rec *domain.CycleRecord, table domain.EligibilityTable, log *slog.Logger) (bool, error) {
	target := rec.TargetCurrency

	depositable, err := o.deps.Domestic.IsDepositable(ctx, target)
	if err != nil {
		log.Warn("depositable check failed, falling back to source sell", slog.String("error", err.Error()))
		depositable = false
	}
	if !depositable {
		log.Warn("target not depositable, selling on source exchange", slog.String("currency", target))
		rec.SellResult = o.sellOn(ctx, o.deps.Overseas, premium.OverseasSymbol(target), target, log)
		return false, nil
	}

	amount, err := o.withdrawableAmount(ctx, o.deps.Overseas, premium.OverseasSymbol(target), target)
	if err != nil {
		rec.FailReason = "withdrawal sizing failed"
		return false, err
	}

	dest := table[target].DepositAddress
	if dest.Address == "" {
		dest, err = o.deps.Domestic.FetchDepositAddress(ctx, target)
		if err != nil {
			rec.FailReason = "no deposit address"
			return false, err
		}
	}

	ticket, err := o.deps.Overseas.Withdraw(ctx, target, amount, dest)
	if err != nil {
		rec.FailReason = "withdrawal rejected"
		return false, fmt.Errorf("%w: %v", domain.ErrTransferFailed, err)
	}
	rec.WithdrawalID = ticket.ID

	status, err := o.deps.OutboundTracker.Track(ctx, ticket)
	if err != nil {
		rec.FailReason = "transfer tracking cancelled"
		return false, err
	}
	if status != domain.WithdrawalCompleted {
		rec.FailReason = "transfer ended " + string(status)
		return false, fmt.Errorf("%w: withdrawal %s ended %s", domain.ErrTransferFailed, ticket.ID, status)
	}

	log.Info("bridge completed",
		slog.String("currency", target),
		slog.String("withdrawal_id", ticket.ID),
		slog.String("txid", ticket.TxID),
	)
	return true, nil
}

// exitPositions sells the bridged balance domestically and closes the
// futures short, concurrently. Either leg may be a no-op: the sell when
// funds never arrived, the close when no position exists.
func (o *Orchestrator) exitPositions(ctx context.Context, rec *domain.CycleRecord, sellDomestic bool, log *slog.Logger) {
	var g errgroup.Group
	if sellDomestic {
		g.Go(func() error {
			rec.SellResult = o.sellOn(ctx, o.deps.Domestic, premium.DomesticSymbol(rec.TargetCurrency), rec.TargetCurrency, log)
			return nil
		})
	}
	g.Go(func() error {
		rec.CloseResult = o.closeShort(ctx, rec.TargetCurrency, log)
		return nil
	})
	g.Wait()
}

// sellOn sells the full available balance of currency on the given exchange.
func (o *Orchestrator) sellOn(ctx context.Context, gw domain.Gateway, symbol, currency string, log *slog.Logger) *domain.OrderResult {
	balance, err := gw.FetchBalance(ctx, currency)
	if err != nil {
		log.Error("sell leg failed", slog.String("exchange", gw.Name()), slog.String("error", err.Error()))
		return nil
	}

	markets, err := gw.LoadMarkets(ctx)
	if err != nil {
		log.Error("sell leg failed", slog.String("exchange", gw.Name()), slog.String("error", err.Error()))
		return nil
	}
	market, ok := markets[symbol]
	if !ok {
		log.Error("sell leg failed", slog.String("exchange", gw.Name()), slog.String("error", domain.ErrNoMarketData.Error()))
		return nil
	}

	amount, err := sizing.NormalizeAmount(balance, &market)
	if err != nil {
		log.Error("sell leg failed", slog.String("exchange", gw.Name()), slog.String("error", err.Error()))
		return nil
	}

	result, err := gw.PlaceMarketSell(ctx, symbol, amount)
	if err != nil {
		log.Error("sell leg failed", slog.String("exchange", gw.Name()), slog.String("error", err.Error()))
		return nil
	}
	return result
}

// closeShort buys back the exact absolute size the position query reports.
// No matching position means nothing to close, not an error.
func (o *Orchestrator) closeShort(ctx context.Context, currency string, log *slog.Logger) *domain.OrderResult {
	positions, err := o.deps.Futures.FetchPositions(ctx)
	if err != nil {
		log.Error("close leg failed", slog.String("error", err.Error()))
		return nil
	}

	symbol := premium.FuturesSymbol(currency)
	for _, pos := range positions {
		if pos.Symbol != symbol || pos.Size >= 0 {
			continue
		}
		result, err := o.deps.Futures.PlaceMarketBuy(ctx, symbol, math.Abs(pos.Size))
		if err != nil {
			log.Error("close leg failed", slog.String("error", err.Error()))
			return nil
		}
		return result
	}

	log.Info("no short position to close", slog.String("symbol", symbol))
	return nil
}

// mediumLeg carries the domestic proceeds back overseas through the
// lowest-premium eligible medium currency. Every step is best effort: a
// failure records a null leg and ends the pass.
func (o *Orchestrator) mediumLeg(ctx context.Context, rec *domain.CycleRecord, candidates []domain.Candidate, table domain.EligibilityTable, log *slog.Logger) {
	medium, err := premium.SelectMedium(candidates, func(c string) bool {
		return o.deps.Gate.IsEligible(c, table)
	}, rec.TargetCurrency)
	if err != nil {
		log.Warn("no medium currency available", slog.String("error", err.Error()))
		return
	}
	rec.MediumCurrency = medium.Currency
	log.Info("medium selected",
		slog.String("currency", medium.Currency),
		slog.Float64("premium_percent", medium.PremiumPercent),
	)

	// Buy the medium with the full KRW proceeds.
	krw, err := o.deps.Domestic.FetchBalance(ctx, "KRW")
	if err != nil {
		log.Error("medium buy failed", slog.String("error", err.Error()))
		return
	}
	markets, err := o.deps.Domestic.LoadMarkets(ctx)
	if err != nil {
		log.Error("medium buy failed", slog.String("error", err.Error()))
		return
	}
	domesticSymbol := premium.DomesticSymbol(medium.Currency)
	market, ok := markets[domesticSymbol]
	if !ok {
		log.Error("medium buy failed", slog.String("error", domain.ErrNoMarketData.Error()))
		return
	}
	cost, err := sizing.NormalizeCost(krw, &market)
	if err != nil {
		log.Error("medium buy failed", slog.String("error", err.Error()))
		return
	}
	rec.MediumBuyResult, err = o.deps.Domestic.PlaceMarketBuy(ctx, domesticSymbol, cost)
	if err != nil {
		log.Error("medium buy failed", slog.String("error", err.Error()))
		rec.MediumBuyResult = nil
		return
	}

	// Withdraw it to the overseas exchange.
	amount, err := o.withdrawableAmount(ctx, o.deps.Domestic, domesticSymbol, medium.Currency)
	if err != nil {
		log.Error("medium withdrawal sizing failed", slog.String("error", err.Error()))
		return
	}
	dest, err := o.deps.Overseas.FetchDepositAddress(ctx, medium.Currency)
	if err != nil {
		log.Error("medium withdrawal failed", slog.String("error", err.Error()))
		return
	}
	ticket, err := o.deps.Domestic.Withdraw(ctx, medium.Currency, amount, dest)
	if err != nil {
		log.Error("medium withdrawal failed", slog.String("error", err.Error()))
		return
	}
	rec.MediumWithdrawalID = ticket.ID

	status, err := o.deps.ReturnTracker.Track(ctx, ticket)
	if err != nil || status != domain.WithdrawalCompleted {
		log.Error("medium transfer did not complete",
			slog.String("status", string(status)),
		)
		return
	}

	// Sell it back into USDT.
	rec.MediumSellResult = o.sellOn(ctx, o.deps.Overseas, premium.OverseasSymbol(medium.Currency), medium.Currency, log)
}

// withdrawableAmount refetches the available balance and truncates it to the
// market's precision so the withdrawal request is never rejected for size.
func (o *Orchestrator) withdrawableAmount(ctx context.Context, gw domain.Gateway, symbol, currency string) (float64, error) {
	balance, err := gw.FetchBalance(ctx, currency)
	if err != nil {
		return 0, err
	}
	markets, err := gw.LoadMarkets(ctx)
	if err != nil {
		return 0, err
	}
	market, ok := markets[symbol]
	if !ok {
		return 0, domain.ErrNoMarketData
	}
	return sizing.NormalizeAmount(balance, &market)
}

// finish stamps the record, settles its status, appends the ledger row and
// notifies. Runs on every exit path.
func (o *Orchestrator) finish(ctx context.Context, rec *domain.CycleRecord) {
	rec.FinishedAt = time.Now()
	if rec.Status == "" {
		if rec.BuyResult != nil && rec.SellResult != nil && rec.FailReason == "" {
			rec.Status = domain.CycleCompleted
		} else {
			rec.Status = domain.CyclePartial
		}
	}

	// The ledger must see every cycle, including cancelled ones.
	appendCtx := ctx
	if appendCtx.Err() != nil {
		var cancel context.CancelFunc
		appendCtx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
	}
	if err := o.deps.Ledger.Append(appendCtx, *rec); err != nil {
		o.logger.Error("ledger append failed",
			slog.String("cycle_id", rec.ID),
			slog.String("error", err.Error()),
		)
	}

	o.logger.Info("cycle finished",
		slog.String("cycle_id", rec.ID),
		slog.String("status", string(rec.Status)),
		slog.String("target", rec.TargetCurrency),
		slog.String("fail_reason", rec.FailReason),
		slog.Duration("duration", rec.FinishedAt.Sub(rec.StartedAt)),
	)

	if o.deps.Notifier != nil {
		msg := fmt.Sprintf("cycle %s %s target=%s premium=%.2f%%",
			rec.ID, rec.Status, rec.TargetCurrency, rec.PremiumPercent)
		if rec.FailReason != "" {
			msg += " reason=" + rec.FailReason
		}
		if err := o.deps.Notifier.Send(appendCtx, msg); err != nil {
			o.logger.Warn("notification failed", slog.String("error", err.Error()))
		}
	}
}

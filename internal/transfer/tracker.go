// Package transfer watches a withdrawal from the source exchange through to
// the confirmed deposit on the destination exchange.
package transfer

import (
	"context"
	"log/slog"
	"time"

	"github.com/minkyu-kim/kimpbot/internal/domain"
)

// DefaultPollInterval matches the external exchanges' settlement cadence;
// faster polling only burns rate-limit budget.
const DefaultPollInterval = 10 * time.Second

// Tracker drives a WithdrawalTicket to a terminal state by polling the
// source exchange's withdrawal status and then the destination exchange's
// deposit history.
//
// The loop has no built-in timeout: funds in flight must eventually resolve,
// and abandoning the watch early would leave the cycle blind to where the
// money ended up. Callers that need a deadline cancel ctx; cancellation
// stops polling but the ticket keeps whatever state it had reached.
type Tracker struct {
	source   domain.Gateway
	dest     domain.Gateway
	interval time.Duration
	logger   *slog.Logger
}

// New creates a Tracker polling at the given interval. A zero interval uses
// DefaultPollInterval.
func New(source, dest domain.Gateway, interval time.Duration, logger *slog.Logger) *Tracker {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Tracker{
		source:   source,
		dest:     dest,
		interval: interval,
		logger:   logger.With(slog.String("component", "transfer_tracker")),
	}
}

// Track polls until the ticket reaches a terminal status and returns that
// status. Network and API errors during polling are transient: they are
// logged and retried after the polling interval without changing the ticket.
// Track mutates the ticket's Status and TxID fields in place so a cancelled
// call still leaves an accurate record behind.
func (t *Tracker) Track(ctx context.Context, ticket *domain.WithdrawalTicket) (domain.WithdrawalStatus, error) {
	log := t.logger.With(
		slog.String("withdrawal_id", ticket.ID),
		slog.String("currency", ticket.Currency),
	)
	log.Info("tracking withdrawal",
		slog.Float64("amount", ticket.Amount),
		slog.String("source", t.source.Name()),
		slog.String("dest", t.dest.Name()),
	)

	for !ticket.Status.Terminal() {
		if err := t.sleep(ctx); err != nil {
			log.Warn("tracking cancelled", slog.String("status", string(ticket.Status)))
			return ticket.Status, err
		}

		switch ticket.Status {
		case domain.WithdrawalPending:
			t.pollWithdrawal(ctx, ticket, log)
		case domain.WithdrawalAwaitingDeposit:
			t.pollDeposit(ctx, ticket, log)
		}
	}

	log.Info("withdrawal resolved", slog.String("status", string(ticket.Status)))
	return ticket.Status, nil
}

// pollWithdrawal advances a pending ticket based on the source exchange's
// withdrawal status.
func (t *Tracker) pollWithdrawal(ctx context.Context, ticket *domain.WithdrawalTicket, log *slog.Logger) {
	status, txid, err := t.source.FetchWithdrawalStatus(ctx, ticket.Currency, ticket.ID)
	if err != nil {
		log.Warn("withdrawal status poll failed, retrying", slog.String("error", err.Error()))
		return
	}

	switch status {
	case domain.WithdrawalCompleted:
		ticket.TxID = txid
		ticket.Status = domain.WithdrawalAwaitingDeposit
		log.Info("withdrawal broadcast, awaiting deposit", slog.String("txid", txid))
	case domain.WithdrawalCanceled, domain.WithdrawalFailed:
		ticket.Status = status
		log.Warn("withdrawal did not complete", slog.String("status", string(status)))
	default:
		log.Debug("withdrawal still pending")
	}
}

// pollDeposit advances an awaiting-deposit ticket based on the destination
// exchange's deposit history, filtered by the withdrawal's chain txid.
func (t *Tracker) pollDeposit(ctx context.Context, ticket *domain.WithdrawalTicket, log *slog.Logger) {
	state, err := t.dest.FetchDepositByTxID(ctx, ticket.Currency, ticket.TxID)
	if err != nil {
		log.Warn("deposit status poll failed, retrying", slog.String("error", err.Error()))
		return
	}

	switch state {
	case domain.DepositSuccess:
		ticket.Status = domain.WithdrawalCompleted
		log.Info("deposit confirmed", slog.String("txid", ticket.TxID))
	case domain.DepositFailed:
		ticket.Status = domain.WithdrawalFailed
		log.Warn("deposit failed", slog.String("txid", ticket.TxID))
	default:
		log.Debug("deposit not yet credited")
	}
}

// sleep waits one polling interval or until ctx is cancelled.
func (t *Tracker) sleep(ctx context.Context) error {
	timer := time.NewTimer(t.interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

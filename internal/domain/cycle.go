package domain

import (
	"context"
	"time"
)

// CycleStatus summarises how far a cycle got before it ended.
type CycleStatus string

const (
	CycleCompleted      CycleStatus = "completed"
	CycleAborted        CycleStatus = "aborted"         // stopped before any funds moved
	CyclePartial        CycleStatus = "partial"         // some legs failed, recorded as null
	CycleTransferFailed CycleStatus = "transfer_failed" // bridge never confirmed
)

// CycleRecord is the working state of one arbitrage pass and, once the cycle
// ends, the row appended to the ledger. It is created at cycle start and
// never shared across cycles. Nil leg results mean the leg failed or was
// never attempted.
type CycleRecord struct {
	ID             string
	TargetCurrency string
	MediumCurrency string
	PremiumPercent float64
	FxRate         float64

	BuyResult   *OrderResult // overseas spot buy
	HedgeResult *OrderResult // futures short entry
	SellResult  *OrderResult // domestic spot sell
	CloseResult *OrderResult // futures short close

	MediumBuyResult  *OrderResult // domestic medium buy
	MediumSellResult *OrderResult // overseas medium sell

	WithdrawalID       string
	MediumWithdrawalID string

	Status     CycleStatus
	FailReason string
	StartedAt  time.Time
	FinishedAt time.Time
}

// LedgerSink is an append-only record writer for completed (or partially
// completed) cycles.
type LedgerSink interface {
	Append(ctx context.Context, rec CycleRecord) error
}

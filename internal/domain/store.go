package domain

import (
	"context"
	"time"
)

// CycleStore persists cycle records for later analysis and archival. It is
// the durable counterpart of the CSV ledger.
type CycleStore interface {
	LedgerSink
	GetByID(ctx context.Context, id string) (CycleRecord, error)
	ListRecent(ctx context.Context, limit int) ([]CycleRecord, error)
	ListBefore(ctx context.Context, before time.Time) ([]CycleRecord, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

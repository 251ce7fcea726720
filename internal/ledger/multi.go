package ledger

import (
	"context"
	"errors"

	"github.com/minkyu-kim/kimpbot/internal/domain"
)

// MultiSink fans one cycle record out to several sinks, typically the CSV
// file and the database store. Every sink gets the record even when an
// earlier one fails; the errors are joined.
type MultiSink struct {
	sinks []domain.LedgerSink
}

// NewMultiSink combines sinks into one. Nil entries are skipped.
func NewMultiSink(sinks ...domain.LedgerSink) *MultiSink {
	out := make([]domain.LedgerSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return &MultiSink{sinks: out}
}

func (m *MultiSink) Append(ctx context.Context, rec domain.CycleRecord) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Append(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Package ledger persists finished cycle records.
package ledger

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/minkyu-kim/kimpbot/internal/domain"
)

// csvHeader lists every column of a ledger row. Leg columns repeat the same
// four fields per leg so a spreadsheet diff of any two cycles lines up.
var csvHeader = []string{
	"id", "started_at", "finished_at", "status", "fail_reason",
	"target", "medium", "premium_percent", "fx_rate",
	"buy_price", "buy_qty", "buy_cost", "buy_fee",
	"hedge_price", "hedge_qty", "hedge_cost", "hedge_fee",
	"sell_price", "sell_qty", "sell_cost", "sell_fee",
	"close_price", "close_qty", "close_cost", "close_fee",
	"medium_buy_price", "medium_buy_qty", "medium_buy_cost", "medium_buy_fee",
	"medium_sell_price", "medium_sell_qty", "medium_sell_cost", "medium_sell_fee",
	"withdrawal_id", "medium_withdrawal_id",
}

// CSVSink appends cycle records to a local CSV file. The header row is
// written once, when the sink opens a missing or empty file. Appends are
// serialized and flushed per record so a crash loses at most the row in
// flight.
type CSVSink struct {
	mu   sync.Mutex
	path string
}

// NewCSVSink creates a sink writing to path, creating the file with a header
// row if needed.
func NewCSVSink(path string) (*CSVSink, error) {
	s := &CSVSink{path: path}
	if err := s.ensureHeader(); err != nil {
		return nil, fmt.Errorf("ledger: open %s: %w", path, err)
	}
	return s, nil
}

func (s *CSVSink) ensureHeader() error {
	info, err := os.Stat(s.path)
	if err == nil && info.Size() > 0 {
		return nil
	}
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// Append writes one cycle record as a CSV row.
func (s *CSVSink) Append(ctx context.Context, rec domain.CycleRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("ledger: append: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(Row(rec)); err != nil {
		return fmt.Errorf("ledger: append: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("ledger: append: %w", err)
	}
	return nil
}

// Row renders a cycle record into csvHeader order. Failed legs show empty
// cells rather than zeros so they read as "never happened".
func Row(rec domain.CycleRecord) []string {
	row := []string{
		rec.ID,
		fmtTime(rec.StartedAt),
		fmtTime(rec.FinishedAt),
		string(rec.Status),
		rec.FailReason,
		rec.TargetCurrency,
		rec.MediumCurrency,
		fmtFloat(rec.PremiumPercent),
		fmtFloat(rec.FxRate),
	}
	for _, leg := range []*domain.OrderResult{
		rec.BuyResult, rec.HedgeResult, rec.SellResult,
		rec.CloseResult, rec.MediumBuyResult, rec.MediumSellResult,
	} {
		row = append(row, legCells(leg)...)
	}
	return append(row, rec.WithdrawalID, rec.MediumWithdrawalID)
}

// Header returns a copy of the CSV column names.
func Header() []string {
	h := make([]string, len(csvHeader))
	copy(h, csvHeader)
	return h
}

func legCells(leg *domain.OrderResult) []string {
	if leg == nil {
		return []string{"", "", "", ""}
	}
	return []string{
		fmtFloat(leg.AveragePrice),
		fmtFloat(leg.FilledQty),
		fmtFloat(leg.TotalCost),
		fmtFloat(leg.Fee),
	}
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minkyu-kim/kimpbot/internal/domain"
)

// CycleStore implements domain.CycleStore using PostgreSQL. Leg results are
// stored as JSONB so that a failed leg stays a SQL NULL rather than a row of
// zero values.
type CycleStore struct {
	pool *pgxpool.Pool
}

// NewCycleStore creates a new CycleStore backed by the given connection pool.
func NewCycleStore(pool *pgxpool.Pool) *CycleStore {
	return &CycleStore{pool: pool}
}

const cycleSelectCols = `id, target_currency, medium_currency, premium_percent, fx_rate,
	buy_result, hedge_result, sell_result, close_result,
	medium_buy_result, medium_sell_result,
	withdrawal_id, medium_withdrawal_id,
	status, fail_reason, started_at, finished_at`

type legJSON struct {
	OrderID      string  `json:"order_id"`
	Symbol       string  `json:"symbol"`
	AveragePrice float64 `json:"average_price"`
	FilledQty    float64 `json:"filled_qty"`
	TotalCost    float64 `json:"total_cost"`
	Fee          float64 `json:"fee"`
}

func encodeLeg(r *domain.OrderResult) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	return json.Marshal(legJSON{
		OrderID:      r.OrderID,
		Symbol:       r.Symbol,
		AveragePrice: r.AveragePrice,
		FilledQty:    r.FilledQty,
		TotalCost:    r.TotalCost,
		Fee:          r.Fee,
	})
}

func decodeLeg(data []byte) (*domain.OrderResult, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var l legJSON
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, err
	}
	return &domain.OrderResult{
		OrderID:      l.OrderID,
		Symbol:       l.Symbol,
		AveragePrice: l.AveragePrice,
		FilledQty:    l.FilledQty,
		TotalCost:    l.TotalCost,
		Fee:          l.Fee,
	}, nil
}

// Append inserts a finished cycle record. Re-appending the same cycle ID
// updates the existing row, so retried ledger writes stay idempotent.
func (s *CycleStore) Append(ctx context.Context, rec domain.CycleRecord) error {
	legs := make([][]byte, 0, 6)
	for _, r := range []*domain.OrderResult{
		rec.BuyResult, rec.HedgeResult, rec.SellResult,
		rec.CloseResult, rec.MediumBuyResult, rec.MediumSellResult,
	} {
		data, err := encodeLeg(r)
		if err != nil {
			return fmt.Errorf("postgres: encode cycle %s leg: %w", rec.ID, err)
		}
		legs = append(legs, data)
	}

	var finishedAt *time.Time
	if !rec.FinishedAt.IsZero() {
		finishedAt = &rec.FinishedAt
	}

	const query = `
		INSERT INTO cycles (
			id, target_currency, medium_currency, premium_percent, fx_rate,
			buy_result, hedge_result, sell_result, close_result,
			medium_buy_result, medium_sell_result,
			withdrawal_id, medium_withdrawal_id,
			status, fail_reason, started_at, finished_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11,
			$12, $13,
			$14, $15, $16, $17
		) ON CONFLICT (id) DO UPDATE SET
			buy_result = EXCLUDED.buy_result,
			hedge_result = EXCLUDED.hedge_result,
			sell_result = EXCLUDED.sell_result,
			close_result = EXCLUDED.close_result,
			medium_buy_result = EXCLUDED.medium_buy_result,
			medium_sell_result = EXCLUDED.medium_sell_result,
			withdrawal_id = EXCLUDED.withdrawal_id,
			medium_withdrawal_id = EXCLUDED.medium_withdrawal_id,
			status = EXCLUDED.status,
			fail_reason = EXCLUDED.fail_reason,
			finished_at = EXCLUDED.finished_at`

	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.TargetCurrency, rec.MediumCurrency, rec.PremiumPercent, rec.FxRate,
		legs[0], legs[1], legs[2], legs[3],
		legs[4], legs[5],
		rec.WithdrawalID, rec.MediumWithdrawalID,
		string(rec.Status), rec.FailReason, rec.StartedAt, finishedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert cycle %s: %w", rec.ID, err)
	}
	return nil
}

// GetByID returns a single cycle record, or domain.ErrNotFound if no cycle
// with the given ID exists.
func (s *CycleStore) GetByID(ctx context.Context, id string) (domain.CycleRecord, error) {
	query := `SELECT ` + cycleSelectCols + ` FROM cycles WHERE id = $1`

	rec, err := scanCycleRow(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.CycleRecord{}, fmt.Errorf("postgres: cycle %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.CycleRecord{}, fmt.Errorf("postgres: get cycle %s: %w", id, err)
	}
	return rec, nil
}

// ListRecent returns the most recently started cycles, newest first.
func (s *CycleStore) ListRecent(ctx context.Context, limit int) ([]domain.CycleRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + cycleSelectCols + ` FROM cycles ORDER BY started_at DESC LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent cycles: %w", err)
	}
	defer rows.Close()

	recs, err := scanCycleRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent cycles: %w", err)
	}
	return recs, nil
}

// ListBefore returns all cycles started before the given time, oldest first.
// It feeds the archival job, which uploads the rows before deleting them.
func (s *CycleStore) ListBefore(ctx context.Context, before time.Time) ([]domain.CycleRecord, error) {
	query := `SELECT ` + cycleSelectCols + ` FROM cycles WHERE started_at < $1 ORDER BY started_at ASC`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list cycles before %s: %w", before.Format(time.RFC3339), err)
	}
	defer rows.Close()

	recs, err := scanCycleRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: list cycles before %s: %w", before.Format(time.RFC3339), err)
	}
	return recs, nil
}

// DeleteBefore removes cycles started before the given time and reports how
// many rows were deleted.
func (s *CycleStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM cycles WHERE started_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete cycles before %s: %w", before.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCycleRow(row rowScanner) (domain.CycleRecord, error) {
	var (
		rec        domain.CycleRecord
		legs       [6][]byte
		finishedAt *time.Time
	)
	if err := row.Scan(
		&rec.ID, &rec.TargetCurrency, &rec.MediumCurrency, &rec.PremiumPercent, &rec.FxRate,
		&legs[0], &legs[1], &legs[2], &legs[3],
		&legs[4], &legs[5],
		&rec.WithdrawalID, &rec.MediumWithdrawalID,
		&rec.Status, &rec.FailReason, &rec.StartedAt, &finishedAt,
	); err != nil {
		return domain.CycleRecord{}, err
	}

	dests := []**domain.OrderResult{
		&rec.BuyResult, &rec.HedgeResult, &rec.SellResult,
		&rec.CloseResult, &rec.MediumBuyResult, &rec.MediumSellResult,
	}
	for i, data := range legs {
		leg, err := decodeLeg(data)
		if err != nil {
			return domain.CycleRecord{}, fmt.Errorf("decode cycle %s leg: %w", rec.ID, err)
		}
		*dests[i] = leg
	}

	if finishedAt != nil {
		rec.FinishedAt = *finishedAt
	}
	return rec, nil
}

func scanCycleRows(rows pgx.Rows) ([]domain.CycleRecord, error) {
	var recs []domain.CycleRecord
	for rows.Next() {
		rec, err := scanCycleRow(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

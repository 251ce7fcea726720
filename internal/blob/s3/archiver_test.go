package s3blob

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minkyu-kim/kimpbot/internal/domain"
)

type fakeArchiveStore struct {
	recs    []domain.CycleRecord
	listErr error

	deleted   int64
	deleteErr error
	deletes   int
}

func (s *fakeArchiveStore) ListBefore(ctx context.Context, before time.Time) ([]domain.CycleRecord, error) {
	return s.recs, s.listErr
}

func (s *fakeArchiveStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	s.deletes++
	return s.deleted, s.deleteErr
}

type fakeArchiveWriter struct {
	path       string
	body       []byte
	multiparts int
	err        error
}

func (w *fakeArchiveWriter) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	if w.err != nil {
		return w.err
	}
	w.path = path
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	w.body = body
	return nil
}

func (w *fakeArchiveWriter) PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error {
	w.multiparts++
	return w.Put(ctx, path, data, "")
}

type fakeChecker struct {
	exists bool
	err    error
}

func (c *fakeChecker) Exists(ctx context.Context, path string) (bool, error) {
	return c.exists, c.err
}

func testRecord(id string, startedAt time.Time) domain.CycleRecord {
	return domain.CycleRecord{
		ID:             id,
		TargetCurrency: "XRP",
		PremiumPercent: 3.2,
		FxRate:         1342.7,
		BuyResult:      &domain.OrderResult{OrderID: "1", Symbol: "XRP/USDT", AveragePrice: 0.5, FilledQty: 1000, TotalCost: 500},
		Status:         domain.CycleCompleted,
		StartedAt:      startedAt,
		FinishedAt:     startedAt.Add(20 * time.Minute),
	}
}

func TestArchiveCycles(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	cutoff := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	t.Run("uploads verifies and deletes", func(t *testing.T) {
		store := &fakeArchiveStore{
			recs: []domain.CycleRecord{
				testRecord("c1", cutoff.Add(-48*time.Hour)),
				testRecord("c2", cutoff.Add(-24*time.Hour)),
			},
			deleted: 2,
		}
		writer := &fakeArchiveWriter{}
		arch := NewCycleArchiver(store, writer, &fakeChecker{exists: true}, logger)

		count, err := arch.ArchiveCycles(context.Background(), cutoff)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
		assert.Equal(t, "archive/cycles/2026-08.csv", writer.path)
		assert.Equal(t, 1, store.deletes)
		assert.Zero(t, writer.multiparts)

		rows, err := csv.NewReader(bytes.NewReader(writer.body)).ReadAll()
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, "id", rows[0][0])
		assert.Equal(t, "c1", rows[1][0])
		assert.Equal(t, "c2", rows[2][0])
	})

	t.Run("nothing to archive", func(t *testing.T) {
		store := &fakeArchiveStore{}
		writer := &fakeArchiveWriter{}
		arch := NewCycleArchiver(store, writer, &fakeChecker{exists: true}, logger)

		count, err := arch.ArchiveCycles(context.Background(), cutoff)
		require.NoError(t, err)
		assert.Zero(t, count)
		assert.Empty(t, writer.path)
		assert.Zero(t, store.deletes)
	})

	t.Run("missing object after upload keeps rows", func(t *testing.T) {
		store := &fakeArchiveStore{recs: []domain.CycleRecord{testRecord("c1", cutoff.Add(-time.Hour))}}
		arch := NewCycleArchiver(store, &fakeArchiveWriter{}, &fakeChecker{exists: false}, logger)

		_, err := arch.ArchiveCycles(context.Background(), cutoff)
		require.Error(t, err)
		assert.Zero(t, store.deletes)
	})

	t.Run("upload failure keeps rows", func(t *testing.T) {
		store := &fakeArchiveStore{recs: []domain.CycleRecord{testRecord("c1", cutoff.Add(-time.Hour))}}
		writer := &fakeArchiveWriter{err: errors.New("boom")}
		arch := NewCycleArchiver(store, writer, &fakeChecker{exists: true}, logger)

		_, err := arch.ArchiveCycles(context.Background(), cutoff)
		require.Error(t, err)
		assert.Zero(t, store.deletes)
	})
}

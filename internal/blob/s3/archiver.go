package s3blob

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/minkyu-kim/kimpbot/internal/domain"
	"github.com/minkyu-kim/kimpbot/internal/ledger"
)

// CycleArchiveStore is the slice of the cycle store the archiver needs:
// reading aged rows and deleting them once the archive is confirmed.
type CycleArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.CycleRecord, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// ArchiveWriter uploads archive objects. Satisfied by *Writer; PutMultipart
// is used when a month's worth of cycles outgrows a single-shot upload.
type ArchiveWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// ObjectChecker confirms an uploaded object is retrievable. Satisfied by
// *Reader.
type ObjectChecker interface {
	Exists(ctx context.Context, path string) (bool, error)
}

// CycleArchiver implements domain.Archiver. It renders aged cycle records to
// the same CSV layout as the local ledger file, uploads the result, verifies
// the object exists, and only then deletes the archived rows from the store.
type CycleArchiver struct {
	store   CycleArchiveStore
	writer  ArchiveWriter
	checker ObjectChecker
	logger  *slog.Logger
}

// NewCycleArchiver creates a new CycleArchiver.
func NewCycleArchiver(store CycleArchiveStore, writer ArchiveWriter, checker ObjectChecker, logger *slog.Logger) *CycleArchiver {
	return &CycleArchiver{
		store:   store,
		writer:  writer,
		checker: checker,
		logger:  logger.With("component", "archiver"),
	}
}

// ArchiveCycles uploads every cycle started strictly before the cutoff to
// archive/cycles/YYYY-MM.csv and removes the archived rows from the primary
// store. Returns the number of archived records. If verification fails the
// rows are left in place so the next run retries.
func (a *CycleArchiver) ArchiveCycles(ctx context.Context, before time.Time) (int64, error) {
	recs, err := a.store.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive cycles query: %w", err)
	}
	if len(recs) == 0 {
		return 0, nil
	}

	buf, err := renderCSV(recs)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive cycles render: %w", err)
	}

	path := archivePath(before)
	if int64(len(buf)) >= minPartSize {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), "text/csv")
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive cycles upload: %w", err)
	}

	ok, err := a.checker.Exists(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive cycles verify: %w", err)
	}
	if !ok {
		return 0, fmt.Errorf("s3blob: archive cycles verify: object %s missing after upload", path)
	}

	deleted, err := a.store.DeleteBefore(ctx, before)
	if err != nil {
		return int64(len(recs)), fmt.Errorf("s3blob: archive cycles delete: %w", err)
	}

	a.logger.Info("archived cycles",
		"path", path,
		"archived", len(recs),
		"deleted", deleted,
		"before", before.Format(time.RFC3339),
	)
	return int64(len(recs)), nil
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time, e.g. archive/cycles/2026-08.csv.
func archivePath(before time.Time) string {
	return fmt.Sprintf("archive/cycles/%s.csv", before.Format("2006-01"))
}

// renderCSV serialises cycle records using the ledger column layout so the
// archive and the local ledger file stay interchangeable.
func renderCSV(recs []domain.CycleRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(ledger.Header()); err != nil {
		return nil, err
	}
	for _, rec := range recs {
		if err := w.Write(ledger.Row(rec)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

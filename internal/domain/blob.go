package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter uploads objects to cold storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Archiver moves aged cycle records from the primary store to cold storage.
type Archiver interface {
	// ArchiveCycles uploads every cycle record finished strictly before the
	// cutoff and returns the number of archived records.
	ArchiveCycles(ctx context.Context, before time.Time) (int64, error)
}

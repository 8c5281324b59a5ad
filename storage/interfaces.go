package storage

import (
	"context"

	"golemio-extractor/models"
)

// Snapshot is the ranked, truncated record set of one run.
type Snapshot struct {
	RunID   string
	Date    string
	Records []*models.Record
}

// SnapshotWriter is the interface any storage backend must satisfy. A write
// fully replaces whatever the backend holds for the snapshot date and returns
// where the data went.
type SnapshotWriter interface {
	WriteSnapshot(ctx context.Context, snap *Snapshot) (string, error)
	Close() error
}

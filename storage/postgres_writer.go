package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"golemio-extractor/utils"
)

const snapshotColumns = 13

// PostgresWriter persists snapshots to the library_snapshots table. Each
// write replaces the rows of its snapshot date inside one transaction.
type PostgresWriter struct {
	db     *sql.DB
	logger *utils.Logger
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresWriter.
func NewPostgresWriter(ctx context.Context, dsn string, logger *utils.Logger) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	retry := &utils.RetryConfig{MaxAttempts: 5, BaseDelay: 2 * time.Second, Logger: logger}
	if err := retry.Do(ctx, "postgres ping", func() error { return db.PingContext(ctx) }); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	pw := &PostgresWriter{db: db, logger: logger}
	if err := pw.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

func (pw *PostgresWriter) migrate(ctx context.Context) error {
	_, err := pw.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS library_snapshots (
			snapshot_date  DATE         NOT NULL,
			rank           INTEGER      NOT NULL,
			run_id         UUID         NOT NULL,
			library_id     TEXT         NOT NULL DEFAULT '',
			name           TEXT         NOT NULL DEFAULT '',
			street         TEXT         NOT NULL DEFAULT '',
			postal_code    TEXT         NOT NULL DEFAULT '',
			city           TEXT         NOT NULL DEFAULT '',
			kraj           TEXT         NOT NULL DEFAULT '',
			country        TEXT         NOT NULL DEFAULT '',
			latitude       DOUBLE PRECISION,
			longitude      DOUBLE PRECISION,
			cas_otvorenia  TEXT         NOT NULL DEFAULT '',
			created_at     TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			PRIMARY KEY (snapshot_date, rank)
		);

		CREATE INDEX IF NOT EXISTS idx_library_snapshots_kraj ON library_snapshots(kraj);
	`)
	return err
}

// WriteSnapshot deletes the snapshot date's rows and batch-inserts the new
// ranking. An empty snapshot writes nothing.
func (pw *PostgresWriter) WriteSnapshot(ctx context.Context, snap *Snapshot) (string, error) {
	if len(snap.Records) == 0 {
		pw.logger.Warn("[postgres] No data to save for %s, skipping.", snap.Date)
		return "", nil
	}

	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM library_snapshots WHERE snapshot_date = $1", snap.Date); err != nil {
		return "", fmt.Errorf("postgres: clear %s: %w", snap.Date, err)
	}

	const batchSize = 50
	for i := 0; i < len(snap.Records); i += batchSize {
		end := min(i+batchSize, len(snap.Records))
		query, args := buildInsert(snap, i, end)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return "", fmt.Errorf("postgres: insert batch %d-%d: %w", i, end, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("postgres: commit: %w", err)
	}
	pw.logger.Info("[postgres] Stored %d records for %s", len(snap.Records), snap.Date)
	return "postgres:library_snapshots/" + snap.Date, nil
}

// buildInsert renders one multi-row INSERT for records[from:to]. Ranks are
// 1-based positions in the whole snapshot.
func buildInsert(snap *Snapshot, from, to int) (string, []any) {
	valueStrings := make([]string, 0, to-from)
	valueArgs := make([]any, 0, (to-from)*snapshotColumns)

	for idx, r := range snap.Records[from:to] {
		base := idx * snapshotColumns
		placeholders := make([]string, snapshotColumns)
		for c := range placeholders {
			placeholders[c] = fmt.Sprintf("$%d", base+c+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")
		valueArgs = append(valueArgs,
			snap.Date, from+idx+1, snap.RunID,
			r.ID, r.Name, r.Street, r.PostalCode, r.City, r.Kraj, r.Country,
			r.Latitude, r.Longitude, r.CasOtvorenia)
	}

	query := fmt.Sprintf(`
		INSERT INTO library_snapshots (snapshot_date, rank, run_id, library_id, name, street,
			postal_code, city, kraj, country, latitude, longitude, cas_otvorenia)
		VALUES %s
	`, strings.Join(valueStrings, ","))
	return query, valueArgs
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}

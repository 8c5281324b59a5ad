package storage

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"

	"golemio-extractor/utils"
)

// CSVWriter writes snapshots to <dir>/csv/libraries_<date>_ALL.csv.
type CSVWriter struct {
	dir    string
	logger *utils.Logger
}

// NewCSVWriter creates a writer rooted at the output directory.
func NewCSVWriter(outputDir string, logger *utils.Logger) *CSVWriter {
	return &CSVWriter{dir: filepath.Join(outputDir, "csv"), logger: logger}
}

// Path returns the file a snapshot for date is written to.
func (c *CSVWriter) Path(date string) string {
	return filepath.Join(c.dir, SnapshotName(date)+".csv")
}

// WriteSnapshot replaces the day's CSV with the header row followed by one
// row per record in rank order. An empty snapshot writes nothing.
func (c *CSVWriter) WriteSnapshot(_ context.Context, snap *Snapshot) (string, error) {
	if len(snap.Records) == 0 {
		c.logger.Warn("[csv] No data to save for %s, skipping file creation.", snap.Date)
		return "", nil
	}

	path := c.Path(snap.Date)
	err := writeFileAtomic(path, func(f io.Writer) error {
		w := csv.NewWriter(f)
		if err := w.Write(Header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		for _, r := range snap.Records {
			if err := w.Write(csvRow(r)); err != nil {
				return fmt.Errorf("write row: %w", err)
			}
		}
		w.Flush()
		return w.Error()
	})
	if err != nil {
		return "", fmt.Errorf("csv: %w", err)
	}

	c.logger.Info("[csv] Saved CSV: %s", path)
	return path, nil
}

func (c *CSVWriter) Close() error { return nil }

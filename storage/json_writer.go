package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"golemio-extractor/utils"
)

// JSONWriter writes snapshots to <dir>/json/libraries_<date>_ALL.json as an
// indented array keyed by the localized column names.
type JSONWriter struct {
	dir    string
	logger *utils.Logger
}

func NewJSONWriter(outputDir string, logger *utils.Logger) *JSONWriter {
	return &JSONWriter{dir: filepath.Join(outputDir, "json"), logger: logger}
}

func (j *JSONWriter) Path(date string) string {
	return filepath.Join(j.dir, SnapshotName(date)+".json")
}

func (j *JSONWriter) WriteSnapshot(_ context.Context, snap *Snapshot) (string, error) {
	if len(snap.Records) == 0 {
		j.logger.Warn("[json] No data to save for %s, skipping file creation.", snap.Date)
		return "", nil
	}

	rows := make([]jsonRecord, 0, len(snap.Records))
	for _, r := range snap.Records {
		rows = append(rows, toJSONRecord(r))
	}

	path := j.Path(snap.Date)
	err := writeFileAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	})
	if err != nil {
		return "", fmt.Errorf("json: %w", err)
	}

	j.logger.Info("[json] Saved JSON: %s", path)
	return path, nil
}

func (j *JSONWriter) Close() error { return nil }

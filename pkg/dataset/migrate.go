package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/valentinpelus/langfeed/pkg/types"
)

// Migrate rewrites the dataset at path from one schema to another and
// respells every label with labels. The new file is written next to the
// old one and renamed over it, so a failed migration leaves the original
// untouched. It returns the number of records migrated.
//
// Going from v2 to v1 drops the prediction and judgement columns.
func Migrate(path string, from, to Schema, labels types.LabelSet) (int, error) {
	src, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open dataset: %w", err)
	}
	records, err := readRecords(src, from, labels)
	src.Close()
	if err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".migrate-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	w := csv.NewWriter(tmp)
	if err := w.Write(to.Header); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("failed to write header: %w", err)
	}
	for _, rec := range records {
		if err := w.Write(to.encode(rec, labels)); err != nil {
			tmp.Close()
			return 0, fmt.Errorf("failed to write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("failed to flush rows: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return 0, fmt.Errorf("failed to replace dataset: %w", err)
	}
	return len(records), nil
}

// DetectFileSchema reads the header of the dataset at path and reports
// which schema it uses
func DetectFileSchema(path string) (Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return Schema{}, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	header, err := csv.NewReader(f).Read()
	if err != nil {
		return Schema{}, fmt.Errorf("failed to read dataset header: %w", err)
	}
	return DetectSchema(header)
}

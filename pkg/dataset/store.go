package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/valentinpelus/langfeed/pkg/types"
)

// WriteError reports a failed append. Nothing was written to the dataset.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("could not save feedback to %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Store is the append-only CSV feedback dataset. Appends are serialised
// behind a mutex so only one row is ever being written at a time.
type Store struct {
	path   string
	schema Schema
	labels types.LabelSet
	logger *zap.Logger

	mu sync.Mutex
	// needsNewline is set when the existing file does not end in a newline
	needsNewline bool
}

// Open prepares a store for path. A missing file is fine: it is created,
// header first, on the first append. An existing file must carry schema's
// header exactly, otherwise ErrSchemaMismatch is returned and nothing is
// ever appended to it.
func Open(path string, schema Schema, labels types.LabelSet, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		path:   path,
		schema: schema,
		labels: labels,
		logger: logger.Named("dataset"),
	}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Info("Dataset file does not exist yet, it will be created on first feedback",
			zap.String("path", path), zap.String("schema", schema.Version))
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat dataset: %w", err)
	}
	if info.Size() == 0 {
		return s, nil
	}

	header, err := csv.NewReader(f).Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset header: %w", err)
	}
	if !schema.matches(header) {
		return nil, fmt.Errorf("%w: %s has header %v, expected %v (schema %s)",
			ErrSchemaMismatch, path, header, schema.Header, schema.Version)
	}

	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return nil, fmt.Errorf("failed to read dataset tail: %w", err)
	}
	s.needsNewline = last[0] != '\n'

	return s, nil
}

// Path returns the dataset file path
func (s *Store) Path() string {
	return s.path
}

// Schema returns the schema the store writes
func (s *Store) Schema() Schema {
	return s.schema
}

// Append writes one record. The header is emitted only when the file is
// absent or empty. The row is fully encoded before the file is touched and
// written with a single call, so a failed append leaves no partial row.
func (s *Store) Append(rec types.FeedbackRecord) error {
	if err := rec.Validate(); err != nil {
		return &WriteError{Path: s.path, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return &WriteError{Path: s.path, Err: err}
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return &WriteError{Path: s.path, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return &WriteError{Path: s.path, Err: err}
	}

	var buf bytes.Buffer
	fresh := info.Size() == 0
	if !fresh && s.needsNewline {
		buf.WriteByte('\n')
	}
	w := csv.NewWriter(&buf)
	if fresh {
		if err := w.Write(s.schema.Header); err != nil {
			return &WriteError{Path: s.path, Err: err}
		}
	}
	if err := w.Write(s.schema.encode(rec, s.labels)); err != nil {
		return &WriteError{Path: s.path, Err: err}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return &WriteError{Path: s.path, Err: err}
	}

	if _, err := f.Write(buf.Bytes()); err != nil {
		return &WriteError{Path: s.path, Err: err}
	}
	if err := f.Sync(); err != nil {
		return &WriteError{Path: s.path, Err: err}
	}
	s.needsNewline = false

	s.logger.Info("Recorded feedback",
		zap.String("label", s.labels.Spell(rec.EffectiveLabel())),
		zap.String("feedback", rec.Judgement().String()),
		zap.Bool("created", fresh))
	return nil
}

// ReadAll returns every record in append order. A missing file is an
// empty dataset.
func (s *Store) ReadAll() ([]types.FeedbackRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	return readRecords(f, s.schema, s.labels)
}

// Stats counts records by judgement and effective label
func (s *Store) Stats() (types.FeedbackStats, error) {
	records, err := s.ReadAll()
	if err != nil {
		return types.FeedbackStats{}, err
	}

	stats := types.FeedbackStats{ByLabel: make(map[string]int)}
	for _, rec := range records {
		stats.Total++
		if rec.Accepted {
			stats.Correct++
		} else {
			stats.Incorrect++
		}
		stats.ByLabel[s.labels.Spell(rec.EffectiveLabel())]++
	}
	return stats, nil
}

// readRecords parses a dataset stream whose header must match schema
func readRecords(r io.Reader, schema Schema, labels types.LabelSet) ([]types.FeedbackRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(schema.Header)

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset header: %w", err)
	}
	if !schema.matches(header) {
		return nil, fmt.Errorf("%w: header %v, expected %v", ErrSchemaMismatch, header, schema.Header)
	}

	var records []types.FeedbackRecord
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read dataset row %d: %w", line, err)
		}
		rec, err := schema.decode(row, labels)
		if err != nil {
			return nil, fmt.Errorf("dataset row %d: %w", line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Package mirror copies accepted feedback to secondary stores after the
// local dataset append. Mirrors are best-effort: the CSV file stays the
// source of truth.
package mirror

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"

	"github.com/valentinpelus/langfeed/pkg/types"
)

const createTableSQL = `
	CREATE TABLE IF NOT EXISTS feedback_records (
		id                 UUID PRIMARY KEY,
		text               TEXT NOT NULL,
		label              TEXT NOT NULL,
		predicted_language TEXT NOT NULL,
		feedback           TEXT NOT NULL,
		correct_language   TEXT,
		dataset_path       TEXT NOT NULL,
		created_at         TIMESTAMPTZ NOT NULL
	)
`

const insertSQL = `
	INSERT INTO feedback_records (
		id, text, label, predicted_language, feedback, correct_language, dataset_path, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

// PostgresMirror inserts every accepted record into feedback_records
type PostgresMirror struct {
	db     *sql.DB
	labels types.LabelSet
	logger *zap.Logger
}

// NewPostgresMirror connects to databaseURL and creates the table if needed
func NewPostgresMirror(ctx context.Context, databaseURL string, labels types.LabelSet, logger *zap.Logger) (*PostgresMirror, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create feedback_records table: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresMirror{db: db, labels: labels, logger: logger.Named("mirror.postgres")}, nil
}

// Name returns the mirror name
func (m *PostgresMirror) Name() string {
	return "postgres"
}

// Mirror inserts rec
func (m *PostgresMirror) Mirror(ctx context.Context, rec types.FeedbackRecord, datasetPath string) error {
	args := rowArgs(uuid.New(), rec, datasetPath, m.labels)
	if _, err := m.db.ExecContext(ctx, insertSQL, args...); err != nil {
		return fmt.Errorf("failed to insert feedback record: %w", err)
	}
	m.logger.Debug("Mirrored feedback record", zap.String("id", args[0].(string)))
	return nil
}

// Count returns the number of mirrored records
func (m *PostgresMirror) Count(ctx context.Context) (int, error) {
	var n int
	if err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM feedback_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count feedback records: %w", err)
	}
	return n, nil
}

// Close closes the database connection
func (m *PostgresMirror) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}

func rowArgs(id uuid.UUID, rec types.FeedbackRecord, datasetPath string, labels types.LabelSet) []any {
	var corrected sql.NullString
	if rec.Corrected != nil {
		corrected = sql.NullString{String: labels.Spell(*rec.Corrected), Valid: true}
	}
	return []any{
		id.String(),
		rec.Text,
		labels.Spell(rec.EffectiveLabel()),
		labels.Spell(rec.Predicted),
		rec.Judgement().String(),
		corrected,
		datasetPath,
		rec.CreatedAt,
	}
}

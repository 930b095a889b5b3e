package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/restackio/restack/internal/model"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS conversion_history (
	id                TEXT PRIMARY KEY,
	job_id            TEXT NOT NULL,
	file_path         TEXT NOT NULL,
	original_content  TEXT NOT NULL DEFAULT '',
	converted_content TEXT NOT NULL DEFAULT '',
	conversion_type   TEXT NOT NULL,
	success           BOOLEAN NOT NULL,
	error_message     TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversion_history_job ON conversion_history (job_id, created_at);
CREATE INDEX IF NOT EXISTS idx_conversion_history_file ON conversion_history (file_path, created_at DESC);
`

// PostgresStore persists history entries in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects to databaseURL, pings, and ensures the schema
// exists.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure history schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Append(ctx context.Context, entry *model.HistoryEntry) error {
	id := entry.ID
	if id == "" {
		id, _ = model.NewID(model.IDTypeHistory)
	}
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	const query = `
		INSERT INTO conversion_history
			(id, job_id, file_path, original_content, converted_content, conversion_type, success, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := s.db.ExecContext(ctx, query,
		id, entry.JobID, entry.FilePath, entry.OriginalContent, entry.ConvertedContent,
		entry.ConversionType, entry.Success, entry.Error, ts)
	if err != nil {
		return fmt.Errorf("failed to append history entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ByJob(ctx context.Context, jobID string) ([]*model.HistoryEntry, error) {
	const query = `
		SELECT id, job_id, file_path, original_content, converted_content, conversion_type, success, error_message, created_at
		FROM conversion_history WHERE job_id = $1 ORDER BY created_at`
	return s.query(ctx, query, jobID)
}

func (s *PostgresStore) ByFile(ctx context.Context, filePath string) ([]*model.HistoryEntry, error) {
	const query = `
		SELECT id, job_id, file_path, original_content, converted_content, conversion_type, success, error_message, created_at
		FROM conversion_history WHERE file_path = $1 ORDER BY created_at DESC`
	return s.query(ctx, query, filePath)
}

func (s *PostgresStore) query(ctx context.Context, query string, arg any) ([]*model.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var out []*model.HistoryEntry
	for rows.Next() {
		var e model.HistoryEntry
		if err := rows.Scan(&e.ID, &e.JobID, &e.FilePath, &e.OriginalContent, &e.ConvertedContent,
			&e.ConversionType, &e.Success, &e.Error, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

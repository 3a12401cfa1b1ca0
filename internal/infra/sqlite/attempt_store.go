// Package sqlite stores attempt records in a local SQLite file, for
// single-node deployments that run without Postgres.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // driver: sqlite

	"quizquest/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS quiz_results (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  completed_at INTEGER,           -- unix nanoseconds
  data TEXT NOT NULL              -- JSON document
);
CREATE INDEX IF NOT EXISTS quiz_results_user_completed_idx ON quiz_results (user_id, completed_at DESC);
`

// Open opens the database at dsn and ensures the schema exists.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		dsn = "file:quizquest.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return db, nil
}

// AttemptStore keeps attempt records as JSON documents.
type AttemptStore struct {
	db    *sql.DB
	log   *zap.Logger
	clock func() time.Time
}

func NewAttemptStore(db *sql.DB, log *zap.Logger) *AttemptStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &AttemptStore{db: db, log: log, clock: time.Now}
}

func (s *AttemptStore) Save(ctx context.Context, rec domain.AttemptRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CompletedAt == nil {
		now := s.clock().UTC()
		rec.CompletedAt = &now
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO quiz_results (id, user_id, completed_at, data) VALUES (?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.CompletedAt.UnixNano(), string(data),
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

func (s *AttemptStore) QueryByUser(ctx context.Context, userID string, limit int) ([]domain.AttemptRecord, error) {
	if limit <= 0 {
		limit = -1 // sqlite: no limit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, data FROM quiz_results WHERE user_id = ? ORDER BY completed_at IS NULL, completed_at DESC, id LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	records := make([]domain.AttemptRecord, 0)
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		rec, err := domain.DecodeAttemptRecord([]byte(raw))
		if err != nil {
			s.log.Warn("skipping malformed attempt", zap.String("id", id), zap.Error(err))
			continue
		}
		rec.ID = id
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return records, nil
}

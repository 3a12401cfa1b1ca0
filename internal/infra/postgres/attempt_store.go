package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"

	"quizquest/internal/domain"
)

// AttemptStore keeps attempt records as JSONB documents in quiz_results.
type AttemptStore struct {
	pool  *pgxpool.Pool
	log   *zap.Logger
	clock func() time.Time
}

func NewAttemptStore(pool *pgxpool.Pool, log *zap.Logger) *AttemptStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &AttemptStore{pool: pool, log: log, clock: time.Now}
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
	_, err = s.pool.Exec(ctx,
		`INSERT INTO quiz_results (id, user_id, completed_at, data) VALUES ($1, $2, $3, $4::jsonb)`,
		rec.ID, rec.UserID, *rec.CompletedAt, string(data),
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

func (s *AttemptStore) QueryByUser(ctx context.Context, userID string, limit int) ([]domain.AttemptRecord, error) {
	var lim *int64
	if limit > 0 {
		l := int64(limit)
		lim = &l
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, data FROM quiz_results WHERE user_id=$1 ORDER BY completed_at DESC NULLS LAST, id LIMIT $2`,
		userID, lim,
	)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	records := make([]domain.AttemptRecord, 0)
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		rec, err := domain.DecodeAttemptRecord(raw)
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

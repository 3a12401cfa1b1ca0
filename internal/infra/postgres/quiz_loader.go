package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"

	"quizquest/internal/domain"
)

// QuizSource is what the loader falls back to for quizzes without a row.
type QuizSource interface {
	LoadQuiz(ctx context.Context, quizID int) (domain.Quiz, error)
}

// QuizLoader loads quiz JSONB from Postgres. Rows override the built-in
// bank; quizzes without a usable row come from the fallback source.
type QuizLoader struct {
	pool     *pgxpool.Pool
	fallback QuizSource
	log      *zap.Logger
}

func NewQuizLoader(pool *pgxpool.Pool, fallback QuizSource, log *zap.Logger) *QuizLoader {
	if log == nil {
		log = zap.NewNop()
	}
	return &QuizLoader{pool: pool, fallback: fallback, log: log}
}

func (l *QuizLoader) LoadQuiz(ctx context.Context, quizID int) (domain.Quiz, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM quizzes WHERE id=$1`, quizID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return l.fromFallback(ctx, quizID, domain.ErrQuizNotFound)
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}

	quiz, err := decodeQuiz(quizID, raw)
	if err != nil {
		l.log.Warn("invalid quiz row", zap.Int("quiz_id", quizID), zap.Error(err))
		return l.fromFallback(ctx, quizID, fmt.Errorf("%w: %v", domain.ErrQuizNotFound, err))
	}
	return quiz, nil
}

// Put validates quiz and stores it as the row for quiz.ID.
func (l *QuizLoader) Put(ctx context.Context, quiz domain.Quiz) error {
	if err := quiz.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(quiz)
	if err != nil {
		return fmt.Errorf("marshal quiz: %w", err)
	}
	_, err = l.pool.Exec(ctx,
		`INSERT INTO quizzes (id, data) VALUES ($1, $2::jsonb)
		 ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data, updated_at=now()`,
		quiz.ID, string(data),
	)
	if err != nil {
		return fmt.Errorf("upsert quiz: %w", err)
	}
	return nil
}

func (l *QuizLoader) fromFallback(ctx context.Context, quizID int, miss error) (domain.Quiz, error) {
	if l.fallback == nil {
		return domain.Quiz{}, miss
	}
	return l.fallback.LoadQuiz(ctx, quizID)
}

func decodeQuiz(quizID int, raw []byte) (domain.Quiz, error) {
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal quiz: %w", err)
	}
	quiz.ID = quizID
	if err := quiz.Validate(); err != nil {
		return domain.Quiz{}, err
	}
	return quiz, nil
}

package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"quizquest/internal/domain"
)

// SessionRepository abstracts where live sessions are kept (in-memory, Redis, etc).
type SessionRepository interface {
	Put(session *Session)
	Get(sessionID string) (*Session, bool)
	Delete(sessionID string)
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID int) (domain.Quiz, error)
}

// AttemptStore persists finished attempts. QueryByUser returns records newest
// first; limit <= 0 returns all of them.
type AttemptStore interface {
	Save(ctx context.Context, rec domain.AttemptRecord) error
	QueryByUser(ctx context.Context, userID string, limit int) ([]domain.AttemptRecord, error)
}

const defaultSaveTimeout = 5 * time.Second

// QuizService contains the quiz play use cases.
type QuizService struct {
	sessions        SessionRepository
	quizzes         QuizRepository
	attempts        AttemptStore
	log             *zap.Logger
	now             func() time.Time
	questionSeconds int
	saveTimeout     time.Duration
}

// QuizServiceOption tweaks a QuizService.
type QuizServiceOption func(*QuizService)

// WithQuestionSeconds sets the per-question countdown.
func WithQuestionSeconds(seconds int) QuizServiceOption {
	return func(s *QuizService) { s.questionSeconds = seconds }
}

// WithSaveTimeout bounds how long persisting a finished attempt may take.
func WithSaveTimeout(d time.Duration) QuizServiceOption {
	return func(s *QuizService) { s.saveTimeout = d }
}

// WithClock is test-only for deterministic timestamps.
func WithClock(now func() time.Time) QuizServiceOption {
	return func(s *QuizService) { s.now = now }
}

func NewQuizService(sessions SessionRepository, quizzes QuizRepository, attempts AttemptStore, log *zap.Logger, opts ...QuizServiceOption) *QuizService {
	if log == nil {
		log = zap.NewNop()
	}
	s := &QuizService{
		sessions:        sessions,
		quizzes:         quizzes,
		attempts:        attempts,
		log:             log,
		now:             time.Now,
		questionSeconds: DefaultQuestionSeconds,
		saveTimeout:     defaultSaveTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens a new play session for userID. An empty userID plays as guest
// and its result is not persisted.
func (s *QuizService) Start(ctx context.Context, userID string, quizID int) (*Session, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if len(quiz.Questions) == 0 {
		return nil, fmt.Errorf("%w: quiz %d has no questions", domain.ErrQuizNotFound, quizID)
	}
	session := NewSessionWithClock(uuid.NewString(), userID, quiz, s.questionSeconds, s.now)
	s.sessions.Put(session)
	s.log.Debug("session started",
		zap.String("session_id", session.ID()),
		zap.String("user_id", userID),
		zap.Int("quiz_id", quizID),
	)
	return session, nil
}

// Select records an answer for the current question.
func (s *QuizService) Select(_ context.Context, sessionID, choice string) (domain.SessionSnapshot, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.SessionSnapshot{}, domain.ErrSessionNotFound
	}
	return session.selectAnswer(choice)
}

// Advance scores the current question and moves on. Finishing the attempt
// persists its record before subscribers see the result; persistence
// failures never fail the call.
func (s *QuizService) Advance(ctx context.Context, sessionID string) (domain.SessionSnapshot, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.SessionSnapshot{}, domain.ErrSessionNotFound
	}
	snap, rec, err := session.advance()
	if err != nil {
		return snap, err
	}
	if rec != nil {
		s.persist(ctx, *rec)
		snap = session.publish()
	}
	return snap, nil
}

// Tick applies one elapsed second to the session's countdown.
func (s *QuizService) Tick(ctx context.Context, sessionID string) (domain.SessionSnapshot, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.SessionSnapshot{}, domain.ErrSessionNotFound
	}
	snap, rec := session.tick()
	if rec != nil {
		s.persist(ctx, *rec)
		snap = session.publish()
	}
	return snap, nil
}

// Restart resets the session for another play-through.
func (s *QuizService) Restart(_ context.Context, sessionID string) (domain.SessionSnapshot, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.SessionSnapshot{}, domain.ErrSessionNotFound
	}
	return session.reset(), nil
}

// Subscribe returns a channel that receives snapshots of the session.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *QuizService) Subscribe(_ context.Context, sessionID string) (<-chan domain.SessionSnapshot, func(), error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := session.subscribe()
	return ch, cancel, nil
}

// RunTimer feeds ticks into the session until ctx is done or the session ends.
func (s *QuizService) RunTimer(ctx context.Context, sessionID string, ticks <-chan time.Time) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-ticks:
			if !ok {
				return nil
			}
			if _, err := s.Tick(ctx, sessionID); err != nil {
				if errors.Is(err, domain.ErrSessionNotFound) {
					return nil
				}
				return err
			}
		}
	}
}

// End drops the session and closes its subscriptions.
func (s *QuizService) End(_ context.Context, sessionID string) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return
	}
	s.sessions.Delete(sessionID)
	session.closeSubscribers()
}

func (s *QuizService) persist(ctx context.Context, rec domain.AttemptRecord) {
	if rec.UserID == "" {
		s.log.Debug("guest attempt not persisted", zap.Int("quiz_id", rec.QuizID), zap.Int("score", rec.Score))
		return
	}
	if s.attempts == nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.saveTimeout)
	defer cancel()
	if err := s.attempts.Save(saveCtx, rec); err != nil {
		s.log.Warn("persist attempt failed",
			zap.String("user_id", rec.UserID),
			zap.Int("quiz_id", rec.QuizID),
			zap.Int("score", rec.Score),
			zap.Error(err),
		)
		return
	}
	s.log.Info("attempt saved",
		zap.String("user_id", rec.UserID),
		zap.Int("quiz_id", rec.QuizID),
		zap.Int("score", rec.Score),
		zap.Int("total", rec.TotalQuestions),
	)
}

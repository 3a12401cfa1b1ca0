package app

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"quizquest/internal/domain"
)

// Session is one live play-through. Answer events and timer ticks are
// serialized by mu; subscribers receive a snapshot after every change.
type Session struct {
	id        string
	userID    string
	quiz      domain.Quiz
	engine    Engine
	now       func() time.Time
	mu        sync.Mutex
	attempt   Attempt
	startedAt time.Time
	updatedAt time.Time
	record    *domain.AttemptRecord

	subscribers map[chan domain.SessionSnapshot]struct{}
}

// NewSession starts a session for userID on quiz. An empty userID plays as guest.
func NewSession(id, userID string, quiz domain.Quiz, limitSeconds int) *Session {
	return NewSessionWithClock(id, userID, quiz, limitSeconds, time.Now)
}

// NewSessionWithClock allows deterministic timestamps in tests.
func NewSessionWithClock(id, userID string, quiz domain.Quiz, limitSeconds int, now func() time.Time) *Session {
	engine := NewEngine(quiz.Questions, limitSeconds)
	started := now()
	return &Session{
		id:          id,
		userID:      userID,
		quiz:        quiz,
		engine:      engine,
		now:         now,
		attempt:     engine.Start(quiz.ID),
		startedAt:   started,
		updatedAt:   started,
		subscribers: make(map[chan domain.SessionSnapshot]struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// UserID returns the owning user, empty for guests.
func (s *Session) UserID() string { return s.userID }

// Attempt returns a copy of the current attempt state.
func (s *Session) Attempt() Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempt
}

// Record returns the completed attempt record once the session finished.
func (s *Session) Record() (domain.AttemptRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.record == nil {
		return domain.AttemptRecord{}, false
	}
	return *s.record, true
}

// Snapshot returns the current client-facing state.
func (s *Session) Snapshot() domain.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) selectAnswer(choice string) (domain.SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := s.engine.Select(s.attempt, choice)
	if err != nil {
		return s.snapshotLocked(), err
	}
	s.attempt = next
	return s.broadcastLocked(), nil
}

// advance returns the record when this call finished the attempt. In that
// case subscribers are not notified until publish is called, so the record
// can be stored first.
func (s *Session) advance() (domain.SessionSnapshot, *domain.AttemptRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := s.engine.Advance(s.attempt)
	if err != nil {
		return s.snapshotLocked(), nil, err
	}
	if rec := s.applyLocked(next); rec != nil {
		return s.snapshotLocked(), rec, nil
	}
	return s.broadcastLocked(), nil, nil
}

// tick returns the record when the timeout finished the attempt; see advance.
func (s *Session) tick() (domain.SessionSnapshot, *domain.AttemptRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attempt.Phase == PhaseFinished {
		return s.snapshotLocked(), nil
	}
	if rec := s.applyLocked(s.engine.Tick(s.attempt)); rec != nil {
		return s.snapshotLocked(), rec
	}
	return s.broadcastLocked(), nil
}

// reset starts the quiz over and discards the previous result.
func (s *Session) reset() domain.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempt = s.engine.Start(s.quiz.ID)
	s.record = nil
	s.startedAt = s.now()
	return s.broadcastLocked()
}

func (s *Session) publish() domain.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.broadcastLocked()
}

func (s *Session) applyLocked(next Attempt) *domain.AttemptRecord {
	wasFinished := s.attempt.Phase == PhaseFinished
	s.attempt = next
	if wasFinished || next.Phase != PhaseFinished {
		return nil
	}
	now := s.now()
	taken := int(now.Sub(s.startedAt) / time.Second)
	rec := domain.AttemptRecord{
		ID:               uuid.NewString(),
		UserID:           s.userID,
		QuizID:           s.quiz.ID,
		QuizTitle:        s.quiz.Title,
		Score:            next.Score,
		TotalQuestions:   s.engine.Len(),
		TimeTakenSeconds: &taken,
		CompletedAt:      &now,
	}
	s.record = &rec
	out := rec
	return &out
}

func (s *Session) subscribe() (<-chan domain.SessionSnapshot, func()) {
	ch := make(chan domain.SessionSnapshot, 8)
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	initial := s.snapshotLocked()
	s.mu.Unlock()

	ch <- initial
	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) closeSubscribers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

func (s *Session) broadcastLocked() domain.SessionSnapshot {
	s.updatedAt = s.now()
	snap := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// Slow reader: drop its oldest pending snapshot.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
	return snap
}

func (s *Session) snapshotLocked() domain.SessionSnapshot {
	a := s.attempt
	snap := domain.SessionSnapshot{
		SessionID: s.id,
		QuizID:    s.quiz.ID,
		QuizTitle: s.quiz.Title,
		Phase:     a.Phase.String(),
		Index:     a.Index,
		Total:     s.engine.Len(),
		Score:     a.Score,
		TimeLeft:  a.TimeLeft,
		UpdatedAt: s.updatedAt,
	}
	if a.HasSelection {
		snap.Selected = a.Selected
	}
	if a.Phase != PhaseFinished {
		q := s.engine.Question(a.Index)
		snap.Question = &domain.QuestionView{
			Text:    q.Text,
			Choices: append([]string(nil), q.Choices...),
		}
	}
	if s.record != nil {
		summary := ToSummary(*s.record, s.updatedAt)
		snap.Result = &summary
	}
	return snap
}

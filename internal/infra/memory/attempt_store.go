package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"quizquest/internal/domain"
)

// AttemptStore keeps attempt records in process memory.
type AttemptStore struct {
	mu      sync.RWMutex
	clock   func() time.Time
	records []domain.AttemptRecord
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{clock: time.Now}
}

// Save stores rec. Like a document database it assigns an id and a
// server-side completion time when the record has none.
func (s *AttemptStore) Save(_ context.Context, rec domain.AttemptRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CompletedAt == nil {
		now := s.clock()
		rec.CompletedAt = &now
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *AttemptStore) QueryByUser(ctx context.Context, userID string, limit int) ([]domain.AttemptRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]domain.AttemptRecord, 0)
	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].UserID == userID {
			out = append(out, s.records[i])
		}
	}
	s.mu.RUnlock()

	SortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SortNewestFirst orders records by completion time, newest first; records
// without a completion time go last.
func SortNewestFirst(records []domain.AttemptRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i].CompletedAt, records[j].CompletedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
}

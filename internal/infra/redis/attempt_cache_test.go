package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"quizquest/internal/app"
	"quizquest/internal/domain"
	"quizquest/internal/infra/memory"
)

func TestAttemptCacheReadThroughAndInvalidate(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	backing := &countingStore{AttemptStore: memory.NewAttemptStore()}
	cache := NewAttemptCache(newClient(mr), backing, time.Minute, nil)

	at := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
	if err := cache.Save(ctx, attempt("u1", 3, at)); err != nil {
		t.Fatalf("save: %v", err)
	}

	first, err := cache.QueryByUser(ctx, "u1", 0)
	if err != nil || len(first) != 1 {
		t.Fatalf("query: %v %+v", err, first)
	}
	second, _ := cache.QueryByUser(ctx, "u1", 1)
	if len(second) != 1 || backing.queries() != 1 {
		t.Fatalf("expected cache hit, backing queries=%d", backing.queries())
	}

	if err := cache.Save(ctx, attempt("u1", 5, at.Add(time.Hour))); err != nil {
		t.Fatalf("save: %v", err)
	}
	if mr.Exists("quiz:history:u1") {
		t.Fatalf("expected history invalidated on save")
	}
	latest, _ := cache.QueryByUser(ctx, "u1", 1)
	if len(latest) != 1 || latest[0].Score != 5 || backing.queries() != 2 {
		t.Fatalf("expected fresh newest record, got %+v (queries=%d)", latest, backing.queries())
	}
}

func TestAttemptCacheRemembersEmptyHistory(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	backing := &countingStore{AttemptStore: memory.NewAttemptStore()}
	cache := NewAttemptCache(newClient(mr), backing, time.Minute, nil)

	for i := 0; i < 2; i++ {
		got, err := cache.QueryByUser(ctx, "nobody", 0)
		if err != nil || len(got) != 0 {
			t.Fatalf("expected empty history, got %v %+v", err, got)
		}
	}
	if backing.queries() != 1 {
		t.Fatalf("expected empty history cached, backing queries=%d", backing.queries())
	}
}

func TestAttemptCacheSkipsMalformedEntries(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	client.RPush(ctx, "quiz:history:u1",
		`{"userId":"u1","quizId":1,"quizTitle":"A","score":4,"totalQuestions":5}`,
		`{"userId":"u1","score":"lots"}`,
		`{"userId":"u1","quizId":2,"quizTitle":"B","score":1,"totalQuestions":5}`,
	)

	cache := NewAttemptCache(client, memory.NewAttemptStore(), time.Minute, nil)
	got, err := cache.QueryByUser(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 || got[0].QuizID != 1 || got[1].QuizID != 2 {
		t.Fatalf("expected malformed entry skipped, got %+v", got)
	}
}

func TestAttemptCacheSkipsFillAfterConcurrentSave(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	backing := newGatedStore(memory.NewAttemptStore())
	cache := NewAttemptCache(newClient(mr), backing, time.Minute, nil)

	at := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
	if err := cache.Save(ctx, attempt("u1", 3, at)); err != nil {
		t.Fatalf("save: %v", err)
	}

	done := make(chan []domain.AttemptRecord, 1)
	go func() {
		records, _ := cache.QueryByUser(ctx, "u1", 0)
		done <- records
	}()
	// The load has read one record and is parked before filling the cache.
	<-backing.entered

	if err := cache.Save(ctx, attempt("u1", 5, at.Add(time.Hour))); err != nil {
		t.Fatalf("save: %v", err)
	}
	close(backing.release)
	if stale := <-done; len(stale) != 1 {
		t.Fatalf("expected the in-flight load to see one record, got %+v", stale)
	}
	if mr.Exists("quiz:history:u1") {
		t.Fatalf("expected the stale history not to be cached")
	}

	latest, err := cache.QueryByUser(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(latest) != 2 || latest[0].Score != 5 {
		t.Fatalf("expected both records newest first, got %+v", latest)
	}
}

func TestAttemptCacheLoadSurvivesCancelledCaller(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	backing := newGatedStore(memory.NewAttemptStore())
	cache := NewAttemptCache(newClient(mr), backing, time.Minute, nil)
	at := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
	if err := cache.Save(context.Background(), attempt("u1", 3, at)); err != nil {
		t.Fatalf("save: %v", err)
	}

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := cache.QueryByUser(first, "u1", 0)
		firstErr <- err
	}()
	<-backing.entered

	type result struct {
		records []domain.AttemptRecord
		err     error
	}
	second := make(chan result, 1)
	go func() {
		records, err := cache.QueryByUser(context.Background(), "u1", 0)
		second <- result{records, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancelled caller to see context.Canceled, got %v", err)
	}
	close(backing.release)

	res := <-second
	if res.err != nil || len(res.records) != 1 {
		t.Fatalf("expected waiting caller to get the history, got %+v %v", res.records, res.err)
	}
	if !mr.Exists("quiz:history:u1") {
		t.Fatalf("expected the shared load to fill the cache")
	}
}

// gatedStore parks its first history read, after reading, until release is
// closed, honouring the load context meanwhile.
type gatedStore struct {
	app.AttemptStore
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGatedStore(inner app.AttemptStore) *gatedStore {
	return &gatedStore{AttemptStore: inner, entered: make(chan struct{}), release: make(chan struct{})}
}

func (s *gatedStore) QueryByUser(ctx context.Context, userID string, limit int) ([]domain.AttemptRecord, error) {
	records, err := s.AttemptStore.QueryByUser(ctx, userID, limit)
	first := false
	s.once.Do(func() { first = true })
	if first {
		close(s.entered)
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return records, err
}

type countingStore struct {
	*memory.AttemptStore
	mu sync.Mutex
	n  int
}

func (s *countingStore) QueryByUser(ctx context.Context, userID string, limit int) ([]domain.AttemptRecord, error) {
	s.mu.Lock()
	s.n++
	s.mu.Unlock()
	return s.AttemptStore.QueryByUser(ctx, userID, limit)
}

func (s *countingStore) queries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

func attempt(userID string, score int, at time.Time) domain.AttemptRecord {
	return domain.AttemptRecord{
		UserID:         userID,
		QuizID:         1,
		QuizTitle:      "Arithmetic",
		Score:          score,
		TotalQuestions: 5,
		CompletedAt:    &at,
	}
}

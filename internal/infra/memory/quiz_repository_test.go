package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"quizquest/internal/bank"
	"quizquest/internal/domain"
	"quizquest/internal/quiztest"
)

func TestQuizRepositoryCaches(t *testing.T) {
	loader := &countingLoader{
		QuizLoader: quiztest.Quizzes{1: sampleQuiz()},
	}
	repo := NewQuizRepository(loader, time.Minute)

	if _, err := repo.GetQuiz(context.Background(), 1); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := repo.GetQuiz(context.Background(), 1); err != nil {
		t.Fatalf("get quiz 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestQuizRepositoryReloadsAfterExpiry(t *testing.T) {
	loader := &countingLoader{QuizLoader: quiztest.Quizzes{1: sampleQuiz()}}
	repo := NewQuizRepository(loader, time.Minute)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	repo.clock = func() time.Time { return now }

	_, _ = repo.GetQuiz(context.Background(), 1)
	now = now.Add(2 * time.Minute)
	_, _ = repo.GetQuiz(context.Background(), 1)
	if loader.calls != 2 {
		t.Fatalf("expected reload after ttl, loader calls %d", loader.calls)
	}
}

func TestQuizRepositoryPropagatesLoaderErrors(t *testing.T) {
	repo := NewQuizRepository(quiztest.Quizzes{}, time.Minute)
	if _, err := repo.GetQuiz(context.Background(), 7); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
}

func TestQuizRepositoryOverBank(t *testing.T) {
	repo := NewQuizRepository(bank.Default(), time.Minute)
	quiz, err := repo.GetQuiz(context.Background(), 404)
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if quiz.ID != 404 || len(quiz.Questions) == 0 {
		t.Fatalf("expected default content under requested id, got %+v", quiz)
	}
}

func TestQuizRepositoryLoadSurvivesCancelledCaller(t *testing.T) {
	loader := newGatedLoader(quiztest.Quizzes{1: sampleQuiz()})
	repo := NewQuizRepository(loader, time.Minute)

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := repo.GetQuiz(first, 1)
		firstErr <- err
	}()
	<-loader.entered

	type result struct {
		quiz domain.Quiz
		err  error
	}
	second := make(chan result, 1)
	go func() {
		quiz, err := repo.GetQuiz(context.Background(), 1)
		second <- result{quiz, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancelled caller to see context.Canceled, got %v", err)
	}
	close(loader.release)

	res := <-second
	if res.err != nil || res.quiz.Title != "Arithmetic" {
		t.Fatalf("expected waiting caller to get the quiz, got %+v %v", res.quiz, res.err)
	}
	if _, ok := repo.cached(1); !ok {
		t.Fatalf("expected the shared load to populate the cache")
	}
}

// gatedLoader blocks its first load until release is closed, honouring the
// load context meanwhile.
type gatedLoader struct {
	QuizLoader
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGatedLoader(inner QuizLoader) *gatedLoader {
	return &gatedLoader{QuizLoader: inner, entered: make(chan struct{}), release: make(chan struct{})}
}

func (l *gatedLoader) LoadQuiz(ctx context.Context, quizID int) (domain.Quiz, error) {
	l.once.Do(func() { close(l.entered) })
	select {
	case <-l.release:
	case <-ctx.Done():
		return domain.Quiz{}, ctx.Err()
	}
	return l.QuizLoader.LoadQuiz(ctx, quizID)
}

type countingLoader struct {
	QuizLoader
	calls int
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID int) (domain.Quiz, error) {
	l.calls++
	return l.QuizLoader.LoadQuiz(ctx, quizID)
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:    1,
		Title: "Arithmetic",
		Questions: []domain.Question{
			{
				Text:          "What is 2 + 2?",
				Choices:       []string{"3", "4", "5", "6"},
				CorrectAnswer: "4",
			},
		},
	}
}

package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"quizquest/internal/domain"
	"quizquest/internal/quiztest"
)

func TestQuizRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)

	loader := &countingLoader{
		QuizLoader: quiztest.Quizzes{1: sampleQuiz()},
	}
	repo := NewQuizRepository(client, loader, time.Minute)

	quiz, err := repo.GetQuiz(context.Background(), 1)
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if !mr.Exists("quiz:1:content") {
		t.Fatalf("expected quiz content cached")
	}

	// Second call should hit cache, loader not incremented.
	cached, _ := repo.GetQuiz(context.Background(), 1)
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if cached.Title != quiz.Title || cached.Questions[0].CorrectAnswer != "4" {
		t.Fatalf("cached quiz differs: %+v", cached)
	}

	if err := repo.Invalidate(context.Background(), 1); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	_, _ = repo.GetQuiz(context.Background(), 1)
	if loader.calls != 2 {
		t.Fatalf("expected reload after invalidate, loader calls=%d", loader.calls)
	}
}

func TestQuizRepositoryExpires(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{QuizLoader: quiztest.Quizzes{1: sampleQuiz()}}
	repo := NewQuizRepository(newClient(mr), loader, time.Minute)

	_, _ = repo.GetQuiz(context.Background(), 1)
	mr.FastForward(2 * time.Minute)
	_, _ = repo.GetQuiz(context.Background(), 1)
	if loader.calls != 2 {
		t.Fatalf("expected reload after expiry, loader calls=%d", loader.calls)
	}
}

func TestQuizRepositoryLoadSurvivesCancelledCaller(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := newGatedLoader(quiztest.Quizzes{1: sampleQuiz()})
	repo := NewQuizRepository(newClient(mr), loader, time.Minute)

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
	if !mr.Exists("quiz:1:content") {
		t.Fatalf("expected the shared load to fill the cache")
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

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}

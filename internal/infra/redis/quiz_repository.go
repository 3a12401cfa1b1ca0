package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"quizquest/internal/domain"
	"quizquest/internal/infra/flight"
)

// QuizLoader fetches quiz content from a backing store (question bank, Postgres).
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID int) (domain.Quiz, error)
}

// QuizRepository caches quiz content in Redis and falls back to a loader on cache miss.
// Quizzes are stored as JSON: SET quiz:{quizID}:content {json} EX ttl
type QuizRepository struct {
	client *redis.Client
	loader QuizLoader
	ttl    time.Duration
	sf     flight.Group
	rndMu  sync.Mutex
	rnd    *rand.Rand
}

func NewQuizRepository(client *redis.Client, loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID int) (domain.Quiz, error) {
	key := r.contentKey(quizID)
	if quiz, ok := r.cached(ctx, key); ok {
		return quiz, nil
	}

	result, err := r.sf.Do(ctx, key, func(ctx context.Context) (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if quiz, ok := r.cached(ctx, key); ok {
			return quiz, nil
		}

		quiz, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}

		if data, err := json.Marshal(quiz); err == nil {
			// best-effort; a failed write only costs another load
			_ = r.client.Set(ctx, key, data, r.ttlWithJitter()).Err()
		}
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (r *QuizRepository) cached(ctx context.Context, key string) (domain.Quiz, bool) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return domain.Quiz{}, false
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil || len(quiz.Questions) == 0 {
		return domain.Quiz{}, false
	}
	return quiz, true
}

// Invalidate drops the cached content for quizID.
func (r *QuizRepository) Invalidate(ctx context.Context, quizID int) error {
	return r.client.Del(ctx, r.contentKey(quizID)).Err()
}

func (r *QuizRepository) contentKey(quizID int) string {
	return "quiz:" + strconv.Itoa(quizID) + ":content"
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	return jitter(r.ttl, &r.rndMu, r.rnd)
}

// jitter adds up to 10% to ttl to spread expirations.
func jitter(ttl time.Duration, mu *sync.Mutex, rnd *rand.Rand) time.Duration {
	if ttl <= 0 {
		return 0
	}
	jitterMax := int64(ttl) / 10
	mu.Lock()
	defer mu.Unlock()
	return ttl + time.Duration(rnd.Int63n(jitterMax+1))
}

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"quizquest/internal/app"
	"quizquest/internal/domain"
	"quizquest/internal/infra/flight"
)

// AttemptCache is a read-through cache of each user's ordered attempt
// history in front of another app.AttemptStore.
// History is stored newest first: RPUSH quiz:history:{userID} {json}...
// An empty history is marked with a single sentinel element.
// Every Save bumps INCR quiz:history-gen:{userID}; a fill only writes if the
// generation it read before loading is still current.
type AttemptCache struct {
	client *redis.Client
	store  app.AttemptStore
	ttl    time.Duration
	log    *zap.Logger
	sf     flight.Group
	rndMu  sync.Mutex
	rnd    *rand.Rand
}

const (
	emptyHistory = "-"
	// generationTTL only has to outlive an in-flight fill.
	generationTTL = time.Hour
)

var errStaleHistory = errors.New("history changed during fill")

func NewAttemptCache(client *redis.Client, store app.AttemptStore, ttl time.Duration, log *zap.Logger) *AttemptCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &AttemptCache{
		client: client,
		store:  store,
		ttl:    ttl,
		log:    log,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Save writes through to the backing store and drops the cached history.
func (c *AttemptCache) Save(ctx context.Context, rec domain.AttemptRecord) error {
	if err := c.store.Save(ctx, rec); err != nil {
		return err
	}
	pipe := c.client.TxPipeline()
	pipe.Incr(ctx, c.genKey(rec.UserID))
	pipe.Expire(ctx, c.genKey(rec.UserID), generationTTL)
	pipe.Del(ctx, c.key(rec.UserID))
	if _, err := pipe.Exec(ctx); err != nil {
		c.log.Warn("invalidate history cache failed", zap.String("user_id", rec.UserID), zap.Error(err))
	}
	return nil
}

func (c *AttemptCache) QueryByUser(ctx context.Context, userID string, limit int) ([]domain.AttemptRecord, error) {
	key := c.key(userID)
	if records, ok := c.cached(ctx, key); ok {
		return truncate(records, limit), nil
	}

	result, err := c.sf.Do(ctx, key, func(ctx context.Context) (interface{}, error) {
		if records, ok := c.cached(ctx, key); ok {
			return records, nil
		}
		gen, genErr := c.generation(ctx, userID)
		records, err := c.store.QueryByUser(ctx, userID, 0)
		if err != nil {
			return nil, err
		}
		if genErr != nil {
			c.log.Warn("read history generation failed", zap.String("user_id", userID), zap.Error(genErr))
			return records, nil
		}
		c.fill(ctx, userID, gen, records)
		return records, nil
	})
	if err != nil {
		return nil, err
	}
	return truncate(result.([]domain.AttemptRecord), limit), nil
}

func (c *AttemptCache) cached(ctx context.Context, key string) ([]domain.AttemptRecord, bool) {
	raw, err := c.client.LRange(ctx, key, 0, -1).Result()
	if err != nil || len(raw) == 0 {
		return nil, false
	}
	records := make([]domain.AttemptRecord, 0, len(raw))
	for _, item := range raw {
		if item == emptyHistory {
			continue
		}
		rec, err := domain.DecodeAttemptRecord([]byte(item))
		if err != nil {
			c.log.Warn("skipping malformed cached attempt", zap.String("key", key), zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	return records, true
}

func (c *AttemptCache) generation(ctx context.Context, userID string) (int64, error) {
	gen, err := c.client.Get(ctx, c.genKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// fill caches records unless a Save moved the generation past gen.
func (c *AttemptCache) fill(ctx context.Context, userID string, gen int64, records []domain.AttemptRecord) {
	key, genKey := c.key(userID), c.genKey(userID)
	values := make([]interface{}, 0, len(records)+1)
	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			continue
		}
		values = append(values, string(data))
	}
	if len(values) == 0 {
		values = append(values, emptyHistory)
	}
	ttl := jitter(c.ttl, &c.rndMu, c.rnd)

	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return errStaleHistory
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.RPush(ctx, key, values...)
			if ttl > 0 {
				pipe.Expire(ctx, key, ttl)
			}
			return nil
		})
		return err
	}, genKey)
	switch {
	case err == nil:
	case errors.Is(err, errStaleHistory), errors.Is(err, redis.TxFailedErr):
		c.log.Debug("history changed during fill, not caching", zap.String("key", key))
	default:
		c.log.Warn("fill history cache failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *AttemptCache) key(userID string) string {
	return "quiz:history:" + userID
}

func (c *AttemptCache) genKey(userID string) string {
	return "quiz:history-gen:" + userID
}

func truncate(records []domain.AttemptRecord, limit int) []domain.AttemptRecord {
	if limit > 0 && len(records) > limit {
		return records[:limit]
	}
	return records
}

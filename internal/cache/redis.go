package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"meal-scheduler/internal/config"
	"meal-scheduler/internal/schedule"

	"cloud.google.com/go/civil"
	"github.com/go-redis/redis/v8"
)

const (
	rangeKeyPrefix = "schedule:range:"
	generationKey  = "schedule:range:gen"
)

// Redis shares cached ranges between server instances. Keys embed the
// current generation, so invalidation is a single INCR and stale entries
// simply expire.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient builds the client from the REDIS_* settings.
func NewRedisClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisCacheDB,
	})
}

// NewRedis wraps client. Entries expire after ttl; zero means one hour.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Redis{client: client, ttl: ttl}
}

func entryKey(gen int64, start, end civil.Date) string {
	return fmt.Sprintf("%s%d:%s:%s", rangeKeyPrefix, gen, start, end)
}

func (r *Redis) generation(ctx context.Context) (int64, error) {
	gen, err := r.client.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (r *Redis) Get(ctx context.Context, start, end civil.Date) ([]schedule.Schedule, int64, bool, error) {
	gen, err := r.generation(ctx)
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to read cache generation: %w", err)
	}
	data, err := r.client.Get(ctx, entryKey(gen, start, end)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, gen, false, nil
	}
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to read cached range: %w", err)
	}
	var schedules []schedule.Schedule
	if err := json.Unmarshal(data, &schedules); err != nil {
		return nil, 0, false, fmt.Errorf("failed to decode cached range: %w", err)
	}
	return schedules, gen, true, nil
}

// Set writes under the generation the caller read. When an invalidation
// happened in between, the key is unreachable and only waits for its TTL.
func (r *Redis) Set(ctx context.Context, gen int64, start, end civil.Date, schedules []schedule.Schedule) error {
	data, err := json.Marshal(schedules)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, entryKey(gen, start, end), data, r.ttl).Err()
}

func (r *Redis) Invalidate(ctx context.Context) error {
	return r.client.Incr(ctx, generationKey).Err()
}

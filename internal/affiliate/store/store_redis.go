package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"affinet/pkg/domain"
	"affinet/pkg/platform/sentinel"
)

const (
	// Redis key prefixes for click counters and visitor bindings
	clickKeyPrefix   = "affiliate:clicks:"
	visitorKeyPrefix = "affiliate:visitor:"
)

// RedisClicks is the Redis-backed ClickStore for deployments where several
// instances share attribution state. Counters live forever; visitor
// bindings expire with their TTL.
type RedisClicks struct {
	client *redis.Client
}

func NewRedisClicks(client *redis.Client) *RedisClicks {
	return &RedisClicks{client: client}
}

func (s *RedisClicks) RecordClick(ctx context.Context, upline domain.UIN) (int64, error) {
	return s.client.Incr(ctx, clickKeyPrefix+upline.String()).Result()
}

func (s *RedisClicks) Clicks(ctx context.Context, upline domain.UIN) (int64, error) {
	n, err := s.client.Get(ctx, clickKeyPrefix+upline.String()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Bind stores the visitor's referrer with TTL. Last click wins.
func (s *RedisClicks) Bind(ctx context.Context, visitorID string, upline domain.UIN, ttl time.Duration) error {
	return s.client.Set(ctx, visitorKeyPrefix+visitorID, upline.String(), ttl).Err()
}

func (s *RedisClicks) BoundUpline(ctx context.Context, visitorID string) (domain.UIN, error) {
	raw, err := s.client.Get(ctx, visitorKeyPrefix+visitorID).Result()
	if errors.Is(err, redis.Nil) {
		return domain.UIN(""), sentinel.ErrNotFound
	}
	if err != nil {
		return domain.UIN(""), err
	}
	return domain.ParseUIN(raw)
}

package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimitStore counts requests per (scope, origin) in fixed windows.
type RateLimitStore interface {
	// Hit increments the counter for the current window and returns the
	// post-increment count plus the remaining window TTL. The first hit in
	// a window starts its expiry clock.
	Hit(ctx context.Context, scope, origin string, window time.Duration) (count int64, ttl time.Duration, err error)
}

type rateLimitStore struct {
	client *redis.Client
}

func NewRateLimitStore(client *redis.Client) RateLimitStore {
	return &rateLimitStore{client: client}
}

func (s *rateLimitStore) key(scope, origin string) string {
	return fmt.Sprintf("rate-limit:%s:%s", scope, origin)
}

func (s *rateLimitStore) Hit(ctx context.Context, scope, origin string, window time.Duration) (int64, time.Duration, error) {
	key := s.key(scope, origin)

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}

	if count == 1 {
		if err := s.client.PExpire(ctx, key, window).Err(); err != nil {
			return count, 0, err
		}
		return count, window, nil
	}

	ttl, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return count, 0, err
	}
	return count, ttl, nil
}

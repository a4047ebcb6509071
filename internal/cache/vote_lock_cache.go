package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// VoteLockCache tracks which network origins have voted on which polls.
// The lock is advisory, defense in depth on top of the store's uniqueness
// constraint: clearing it never violates data integrity.
type VoteLockCache interface {
	IsLocked(ctx context.Context, origin, pollID string) (bool, error)
	Lock(ctx context.Context, origin, pollID string) error
	Unlock(ctx context.Context, origin, pollID string) error
}

type voteLockCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewVoteLockCache(client *redis.Client) VoteLockCache {
	return &voteLockCache{
		client: client,
		ttl:    24 * time.Hour,
	}
}

func (c *voteLockCache) key(origin, pollID string) string {
	return fmt.Sprintf("vote-lock:%s:%s", origin, pollID)
}

func (c *voteLockCache) IsLocked(ctx context.Context, origin, pollID string) (bool, error) {
	n, err := c.client.Exists(ctx, c.key(origin, pollID)).Result()
	return n > 0, err
}

func (c *voteLockCache) Lock(ctx context.Context, origin, pollID string) error {
	return c.client.Set(ctx, c.key(origin, pollID), "1", c.ttl).Err()
}

func (c *voteLockCache) Unlock(ctx context.Context, origin, pollID string) error {
	return c.client.Del(ctx, c.key(origin, pollID)).Err()
}

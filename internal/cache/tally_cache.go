package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"pulsepoll/internal/model"
)

// TallyCache is a read-through cache of per-poll vote counts. Entries live
// for a short TTL and are invalidated explicitly after every accepted vote,
// so a cached tally is never more than one write cycle stale.
type TallyCache interface {
	Get(ctx context.Context, pollID string) (*model.Tally, error)
	Set(ctx context.Context, pollID string, tally *model.Tally) error
	Invalidate(ctx context.Context, pollID string) error
}

type tallyCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewTallyCache(client *redis.Client) TallyCache {
	return &tallyCache{
		client: client,
		ttl:    10 * time.Second,
	}
}

func (c *tallyCache) key(pollID string) string {
	return fmt.Sprintf("tally-cache:%s", pollID)
}

// Get returns the cached tally, or nil on a miss.
func (c *tallyCache) Get(ctx context.Context, pollID string) (*model.Tally, error) {
	data, err := c.client.Get(ctx, c.key(pollID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var tally model.Tally
	if err := json.Unmarshal([]byte(data), &tally); err != nil {
		return nil, err
	}
	return &tally, nil
}

func (c *tallyCache) Set(ctx context.Context, pollID string, tally *model.Tally) error {
	data, err := json.Marshal(tally)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(pollID), data, c.ttl).Err()
}

func (c *tallyCache) Invalidate(ctx context.Context, pollID string) error {
	return c.client.Del(ctx, c.key(pollID)).Err()
}

package replenishment

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisCounter shares id sequences between processes.
type RedisCounter struct {
	client *redis.Client
	prefix string
}

// NewRedisCounter builds a counter storing keys under keyPrefix.
func NewRedisCounter(client *redis.Client, keyPrefix string) *RedisCounter {
	if keyPrefix == "" {
		keyPrefix = "replenish:seq:"
	}
	return &RedisCounter{client: client, prefix: keyPrefix}
}

// Init sets starting values for keys that do not exist yet.
func (c *RedisCounter) Init(ctx context.Context, start map[string]int64) error {
	for key, value := range start {
		if err := c.client.SetNX(ctx, c.prefix+key, value, 0).Err(); err != nil {
			return fmt.Errorf("replenishment: init counter %s: %w", key, err)
		}
	}
	return nil
}

// Incr implements Counter.
func (c *RedisCounter) Incr(ctx context.Context, key string) (int64, error) {
	return c.client.Incr(ctx, c.prefix+key).Result()
}

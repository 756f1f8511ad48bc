package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// AppendStream adds an entry to a Redis stream, trimming it to roughly maxLen entries.
// Returns the entry ID assigned by Redis.
func (c *Cache) AppendStream(ctx context.Context, stream string, maxLen int64, values map[string]any) (string, error) {
	id, err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: maxLen,
		Approx: true,
		Values: values,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", stream, err)
	}
	return id, nil
}

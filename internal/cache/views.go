package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const viewsKeyPrefix = "views:"

// IncrementViews increments the view counter of a plan.
// This is fire-and-forget for the detail page.
func (c *Cache) IncrementViews(ctx context.Context, planID int64) error {
	if err := c.client.Incr(ctx, viewsKey(planID)).Err(); err != nil {
		return fmt.Errorf("failed to increment views: %w", err)
	}
	return nil
}

// DrainViews takes every pending view counter, resetting them to zero.
// Used by the view flusher to persist counts to PostgreSQL.
func (c *Cache) DrainViews(ctx context.Context) (map[int64]int64, error) {
	keys, err := c.scanKeys(ctx, viewsKeyPrefix+"*")
	if err != nil {
		return nil, err
	}

	drained := make(map[int64]int64, len(keys))
	for _, key := range keys {
		id, ok := PlanIDFromViewsKey(key)
		if !ok {
			continue
		}
		result, err := c.client.GetDel(ctx, key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return drained, fmt.Errorf("failed to drain views: %w", err)
		}
		n, err := strconv.ParseInt(result, 10, 64)
		if err != nil || n <= 0 {
			continue
		}
		drained[id] += n
	}
	return drained, nil
}

// RestoreViews adds counts back after a failed flush.
func (c *Cache) RestoreViews(ctx context.Context, counts map[int64]int64) error {
	if len(counts) == 0 {
		return nil
	}
	pipe := c.client.Pipeline()
	for id, n := range counts {
		pipe.IncrBy(ctx, viewsKey(id), n)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to restore views: %w", err)
	}
	return nil
}

func (c *Cache) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64

	for {
		var scanKeys []string
		var err error

		scanKeys, cursor, err = c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan keys: %w", err)
		}

		keys = append(keys, scanKeys...)

		if cursor == 0 {
			break
		}
	}

	return keys, nil
}

func viewsKey(planID int64) string {
	return viewsKeyPrefix + strconv.FormatInt(planID, 10)
}

// PlanIDFromViewsKey extracts the plan id from a views key.
func PlanIDFromViewsKey(key string) (int64, bool) {
	if len(key) <= len(viewsKeyPrefix) || key[:len(viewsKeyPrefix)] != viewsKeyPrefix {
		return 0, false
	}
	id, err := strconv.ParseInt(key[len(viewsKeyPrefix):], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

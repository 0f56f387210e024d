package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/myfreehouseplans/catalog/internal/model"
)

// Cache key prefixes and TTLs.
const (
	planKeyPrefix     = "plan:"
	negCacheKeySuffix = ":neg"

	// DefaultPlanTTL is the TTL for cached plan data.
	DefaultPlanTTL = 5 * time.Minute

	// NegativeCacheTTL is the TTL for negative cache entries.
	NegativeCacheTTL = time.Minute
)

// Common cache errors.
var (
	ErrCacheMiss = errors.New("cache miss")
)

// cachedPlan carries the fields the public JSON encoding hides.
type cachedPlan struct {
	Plan        *model.HousePlan `json:"plan"`
	FreePDFFile string           `json:"free_pdf_file,omitempty"`
}

// GetPlan retrieves a published plan by slug.
// Returns ErrCacheMiss if not cached.
func (c *Cache) GetPlan(ctx context.Context, slug string) (*model.HousePlan, error) {
	data, err := c.client.Get(ctx, planKeyPrefix+slug).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var cached cachedPlan
	if err := json.Unmarshal(data, &cached); err != nil || cached.Plan == nil {
		// Corrupted entry - drop it and treat as miss
		c.client.Del(ctx, planKeyPrefix+slug)
		return nil, ErrCacheMiss
	}
	cached.Plan.FreePDFFile = cached.FreePDFFile
	return cached.Plan, nil
}

// SetPlan caches a plan under its slug and clears any negative entry.
func (c *Cache) SetPlan(ctx context.Context, plan *model.HousePlan, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultPlanTTL
	}
	data, err := json.Marshal(cachedPlan{Plan: plan, FreePDFFile: plan.FreePDFFile})
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}

	key := planKeyPrefix + plan.Slug
	pipe := c.client.Pipeline()
	pipe.Set(ctx, key, data, ttl)
	pipe.Del(ctx, key+negCacheKeySuffix)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache plan: %w", err)
	}
	return nil
}

// InvalidatePlan removes the cached plan and its negative entry.
func (c *Cache) InvalidatePlan(ctx context.Context, slug string) error {
	key := planKeyPrefix + slug
	if err := c.client.Del(ctx, key, key+negCacheKeySuffix).Err(); err != nil {
		return fmt.Errorf("failed to invalidate plan: %w", err)
	}
	return nil
}

// IsNegativelyCached checks if a slug is known to be missing.
func (c *Cache) IsNegativelyCached(ctx context.Context, slug string) (bool, error) {
	exists, err := c.client.Exists(ctx, planKeyPrefix+slug+negCacheKeySuffix).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check negative cache: %w", err)
	}
	return exists > 0, nil
}

// SetNegativeCache marks a slug as not found.
func (c *Cache) SetNegativeCache(ctx context.Context, slug string) error {
	err := c.client.SetEx(ctx, planKeyPrefix+slug+negCacheKeySuffix, "", NegativeCacheTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to set negative cache: %w", err)
	}
	return nil
}

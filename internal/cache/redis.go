// Package cache holds the Redis-backed plan cache, admin sessions,
// rate limit counters and buffered view counts.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/myfreehouseplans/catalog/internal/metrics"
)

// Options sizes the Redis connection pool. Zero values keep the defaults.
type Options struct {
	PoolSize     int
	MinIdleConns int
	PoolTimeout  time.Duration
}

func (o Options) apply(opt *redis.Options) {
	opt.PoolSize = 10
	opt.MinIdleConns = 2
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute
	if o.PoolSize > 0 {
		opt.PoolSize = o.PoolSize
	}
	if o.MinIdleConns > 0 {
		opt.MinIdleConns = min(o.MinIdleConns, opt.PoolSize)
	}
	if o.PoolTimeout > 0 {
		opt.PoolTimeout = o.PoolTimeout
	}
}

// Cache wraps the Redis client shared by the site.
type Cache struct {
	client *redis.Client
}

// New connects to redisURL and verifies the connection.
func New(ctx context.Context, redisURL string, opts Options) (*Cache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opts.apply(opt)

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return &Cache{client: client}, nil
}

// NewFromClient wraps an existing client. Used by tests.
func NewFromClient(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Ping checks Redis connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// PoolStats reports connection pool usage.
func (c *Cache) PoolStats() metrics.PoolStats {
	st := c.client.PoolStats()
	return metrics.PoolStats{
		TotalConns: int64(st.TotalConns),
		IdleConns:  int64(st.IdleConns),
		InUseConns: int64(st.TotalConns) - int64(st.IdleConns),
		Acquires:   uint64(st.Hits) + uint64(st.Misses),
		Waits:      uint64(st.Misses),
		Timeouts:   uint64(st.Timeouts),
	}
}

// Close closes the Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Client returns the underlying client for the request log stream.
func (c *Cache) Client() *redis.Client {
	return c.client
}

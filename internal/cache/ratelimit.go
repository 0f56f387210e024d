package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

// rateLimitPrefix is the Redis key prefix for rate limit windows.
const rateLimitPrefix = "ratelimit:"

// RateLimitResult contains the result of a rate limit check.
type RateLimitResult struct {
	Allowed    bool
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// fixedWindowScript counts hits in a window that starts on the first hit.
// It returns the hit count and the remaining window in milliseconds.
var fixedWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local window_ms = tonumber(ARGV[1])

	local count = redis.call('INCR', key)
	if count == 1 then
		redis.call('PEXPIRE', key, window_ms)
	end

	local ttl = redis.call('PTTL', key)
	if ttl < 0 then
		redis.call('PEXPIRE', key, window_ms)
		ttl = window_ms
	end

	return {count, ttl}
`)

// CheckRateLimit records a hit for key and reports whether it fits in limit
// hits per window.
func (c *Cache) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (*RateLimitResult, error) {
	now := time.Now()
	if limit <= 0 {
		return &RateLimitResult{Allowed: true, ResetAt: now.Add(window)}, nil
	}

	result, err := fixedWindowScript.Run(ctx, c.client,
		[]string{rateLimitPrefix + key},
		window.Milliseconds(),
	).Int64Slice()

	if err != nil {
		// Fail open on Redis errors - allow the request
		return &RateLimitResult{
			Allowed:   true,
			Remaining: int64(limit),
			ResetAt:   now.Add(window),
		}, nil
	}

	return evaluateWindow(result[0], result[1], limit, now), nil
}

func evaluateWindow(count, ttlMs int64, limit int, now time.Time) *RateLimitResult {
	reset := time.Duration(ttlMs) * time.Millisecond
	res := &RateLimitResult{
		Allowed:   count <= int64(limit),
		Remaining: int64(limit) - count,
		ResetAt:   now.Add(reset),
	}
	if res.Remaining < 0 {
		res.Remaining = 0
	}
	if !res.Allowed {
		res.RetryAfter = reset
	}
	return res
}

// IPKey builds a rate limit key for a scope and client IP.
// IP is hashed to avoid storing raw IP addresses.
func IPKey(scope, ip string) string {
	return scope + ":" + hashIP(ip)
}

// hashIP creates a truncated SHA256 hash of an IP address.
// This provides privacy while maintaining uniqueness.
func hashIP(ip string) string {
	hash := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(hash[:8]) // 16 hex chars
}

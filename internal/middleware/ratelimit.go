package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/myfreehouseplans/catalog/internal/cache"
)

// Limiter records a hit and reports whether it fits the window.
// *cache.Cache satisfies it.
type Limiter interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (*cache.RateLimitResult, error)
}

// KeyFunc derives the rate limit bucket for a request.
type KeyFunc func(r *http.Request) string

// IPKeyFunc buckets requests per client IP within scope.
func IPKeyFunc(scope string) KeyFunc {
	return func(r *http.Request) string {
		return cache.IPKey(scope, ClientIP(r))
	}
}

// RateLimitConfig holds configuration for one rate limited route group.
type RateLimitConfig struct {
	Logger  *slog.Logger
	Limiter Limiter
	Key     KeyFunc
	Limit   int
	Window  time.Duration
	// Methods restricts limiting to these methods. Empty means all.
	Methods []string
}

// RateLimit returns middleware that limits requests per bucket.
// A nil limiter or a non-positive limit disables it.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if cfg.Limiter == nil || cfg.Limit <= 0 || cfg.Key == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !methodLimited(cfg.Methods, r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			key := cfg.Key(r)
			result, err := cfg.Limiter.CheckRateLimit(r.Context(), key, cfg.Limit, cfg.Window)
			if err != nil {
				cfg.Logger.Error("rate limit check failed",
					slog.String("error", err.Error()),
					slog.String("path", r.URL.Path),
				)
				// Fail open
				next.ServeHTTP(w, r)
				return
			}

			setRateLimitHeaders(w, cfg.Limit, result.Remaining, result.ResetAt)

			if !result.Allowed {
				cfg.Logger.Warn("rate limit exceeded",
					slog.String("ip", ClientIP(r)),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.Int64("retry_after_seconds", int64(result.RetryAfter.Seconds())),
					slog.String("request_id", GetRequestID(r.Context())),
				)

				w.Header().Set("Retry-After", strconv.Itoa(retrySeconds(result.RetryAfter)))
				writeRateLimitError(w, r, result.RetryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func methodLimited(methods []string, method string) bool {
	if len(methods) == 0 {
		return true
	}
	for _, m := range methods {
		if m == method {
			return true
		}
	}
	return false
}

// setRateLimitHeaders sets standard rate limit response headers.
func setRateLimitHeaders(w http.ResponseWriter, limit int, remaining int64, resetAt time.Time) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
}

func retrySeconds(d time.Duration) int {
	s := int((d + time.Second - 1) / time.Second)
	if s < 1 {
		return 1
	}
	return s
}

// writeRateLimitError writes a 429 Too Many Requests response.
// JSON routes get the API error shape, pages get plain text.
func writeRateLimitError(w http.ResponseWriter, r *http.Request, retryAfter time.Duration) {
	if isAPIPath(r.URL.Path) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		msg := fmt.Sprintf(`{"error":"Rate limit exceeded. Retry after %d seconds.","code":"RATE_LIMITED"}`,
			retrySeconds(retryAfter))
		_, _ = w.Write([]byte(msg))
		return
	}
	http.Error(w, fmt.Sprintf("Too many requests. Please try again in %d seconds.", retrySeconds(retryAfter)),
		http.StatusTooManyRequests)
}

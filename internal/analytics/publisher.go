// Package analytics captures visits and request logs.
//
// Two pipelines live here. The visit Tracker buckets requests per hour in
// memory and a single Reporter posts them to an external endpoint. Request
// logs travel through a Redis stream and are batched into PostgreSQL by Worker.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/myfreehouseplans/catalog/internal/metrics"
	"github.com/myfreehouseplans/catalog/internal/model"
)

const (
	// StreamKey is the Redis stream for request log events.
	StreamKey = "stream:request_logs"

	// DeadLetterStreamKey is the Redis stream for poison messages.
	DeadLetterStreamKey = "stream:request_logs:dlq"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000

	// PublishTimeout is the max time to wait for Redis publish.
	PublishTimeout = 100 * time.Millisecond

	maxReferrerLength  = 500
	maxUserAgentLength = 500
)

// RequestLogPayload is the compressed event format for the Redis stream.
type RequestLogPayload struct {
	Route      string  `json:"p"`            // request path
	Method     string  `json:"m"`            // HTTP method
	Status     int     `json:"s"`            // response status code
	DurationMs float64 `json:"d"`            // response time in milliseconds
	IPAddress  string  `json:"ip"`           // client address
	UserAgent  string  `json:"ua,omitempty"` // user_agent (truncated)
	Referrer   string  `json:"r,omitempty"`  // referrer (sanitized)
	Country    string  `json:"cc,omitempty"` // country from the edge header
	SessionID  string  `json:"sid,omitempty"`
	Device     string  `json:"dv,omitempty"`
	Kind       string  `json:"k"`
	LoggedAt   int64   `json:"t"` // Unix milliseconds
}

// ToModel converts the payload into a storable request log.
func (p RequestLogPayload) ToModel() *model.RequestLog {
	log := &model.RequestLog{
		Timestamp:      time.UnixMilli(p.LoggedAt).UTC(),
		IPAddress:      p.IPAddress,
		Route:          p.Route,
		Method:         p.Method,
		StatusCode:     p.Status,
		ResponseTimeMs: p.DurationMs,
		UserAgent:      p.UserAgent,
		Device:         p.Device,
		Country:        p.Country,
		Referrer:       p.Referrer,
		SessionID:      p.SessionID,
		Kind:           model.LogKind(p.Kind),
	}
	log.Truncate()
	return log
}

// Publisher enqueues request log events to the Redis stream.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewPublisher creates a new request log publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Publisher{
		redis:   client,
		logger:  logger.With("component", "analytics.publisher"),
		metrics: recorder,
	}
}

// Publish adds an event to the stream synchronously.
func (p *Publisher) Publish(ctx context.Context, event RequestLogPayload) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	result, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"payload": string(data),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}

	return result, nil
}

// PublishAsync publishes without blocking the caller.
// Errors are logged but not returned (fire-and-forget).
func (p *Publisher) PublishAsync(event RequestLogPayload) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
		defer cancel()

		if _, err := p.Publish(ctx, event); err != nil {
			p.logger.Warn("failed to publish request log",
				"route", event.Route,
				"error", err,
			)
			p.metrics.IncRequestLogPublished("dropped")
			return
		}
		p.metrics.IncRequestLogPublished("success")
	}()
}

// SanitizeReferrer keeps scheme, host and path of the referrer.
// Query parameters, fragments and credentials are dropped.
func SanitizeReferrer(ref string) string {
	if ref == "" {
		return ""
	}

	parsed, err := url.Parse(ref)
	if err != nil || parsed.Host == "" {
		return ""
	}

	clean := url.URL{Scheme: parsed.Scheme, Host: parsed.Host, Path: parsed.Path}
	return truncate(clean.String(), maxReferrerLength)
}

// TruncateUserAgent truncates user agent to max 500 chars.
func TruncateUserAgent(ua string) string {
	return truncate(ua, maxUserAgentLength)
}

// ExtractCountry reads the edge country header (CF-IPCountry).
// Returns "Unknown" when the header is missing or is a placeholder.
func ExtractCountry(header string) string {
	header = strings.TrimSpace(header)
	if len(header) != 2 || strings.EqualFold(header, "XX") || strings.EqualFold(header, "T1") {
		return "Unknown"
	}
	return strings.ToUpper(header)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/myfreehouseplans/catalog/internal/analytics"
)

// responseWriter wraps http.ResponseWriter to capture status code and size.
type responseWriter struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriter {
	if rw, ok := w.(*responseWriter); ok {
		return rw
	}
	return &responseWriter{ResponseWriter: w, status: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.status = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Logger returns a middleware that logs HTTP requests.
// Uses structured logging with slog.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrapResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)
			attrs := []slog.Attr{
				slog.String("request_id", GetRequestID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status_code", wrapped.status),
				slog.Int("bytes", wrapped.bytes),
				slog.Float64("duration_ms", float64(duration.Microseconds())/1000),
				slog.String("remote_addr", ClientIP(r)),
				slog.String("user_agent", analytics.TruncateUserAgent(r.UserAgent())),
			}

			logger.LogAttrs(r.Context(), logLevel(r.URL.Path, wrapped.status), "http request", attrs...)
		})
	}
}

// logLevel picks the level for a finished request.
// Successful probes and static files only show up at debug level.
func logLevel(path string, status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	case path == "/healthz" || path == "/readyz" || strings.HasPrefix(path, "/static/"):
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// RequestLogPublisher sends request log events to the stream.
type RequestLogPublisher interface {
	PublishAsync(event analytics.RequestLogPayload)
}

// RequestLogging publishes one request log event per tracked request.
// Static assets and health probes are skipped.
func RequestLogging(publisher RequestLogPublisher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !analytics.ShouldTrack(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			wrapped := wrapResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			ua := r.UserAgent()
			publisher.PublishAsync(analytics.RequestLogPayload{
				Route:      r.URL.Path,
				Method:     r.Method,
				Status:     wrapped.status,
				DurationMs: float64(time.Since(start).Microseconds()) / 1000,
				IPAddress:  ClientIP(r),
				UserAgent:  analytics.TruncateUserAgent(ua),
				Referrer:   analytics.SanitizeReferrer(r.Referer()),
				Country:    analytics.ExtractCountry(r.Header.Get("CF-IPCountry")),
				Device:     analytics.DetectDevice(ua),
				Kind:       string(analytics.Classify(r.URL.Path, ua)),
				LoggedAt:   start.UnixMilli(),
			})
		})
	}
}

package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// SecurityConfig controls the response security headers.
type SecurityConfig struct {
	// IsDevelopment turns HSTS off.
	IsDevelopment bool
	// HSTSMaxAge defaults to one year.
	HSTSMaxAge time.Duration
	// ImageSources are extra origins allowed in img-src, such as a CDN.
	ImageSources []string
	// NoStorePrefixes are path prefixes served with Cache-Control: no-store.
	// Defaults to /admin.
	NoStorePrefixes []string
}

// fixedHeaders are sent on every response.
var fixedHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"X-XSS-Protection", "0"},
	{"Referrer-Policy", "strict-origin-when-cross-origin"},
	{"Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=(), usb=()"},
	{"Cross-Origin-Opener-Policy", "same-origin"},
}

// contentSecurityPolicy builds a same-origin policy. The templates use
// inline styles, so style-src allows them.
func contentSecurityPolicy(imageSources []string) string {
	img := append([]string{"'self'", "data:"}, imageSources...)
	return strings.Join([]string{
		"default-src 'self'",
		"style-src 'self' 'unsafe-inline'",
		"img-src " + strings.Join(img, " "),
		"form-action 'self'",
		"base-uri 'self'",
		"frame-ancestors 'none'",
	}, "; ")
}

// SecurityHeaders sets the security headers on every response.
// Register it before any handler that writes.
func SecurityHeaders(cfg SecurityConfig) func(http.Handler) http.Handler {
	csp := contentSecurityPolicy(cfg.ImageSources)

	var hsts string
	if !cfg.IsDevelopment {
		age := cfg.HSTSMaxAge
		if age <= 0 {
			age = 365 * 24 * time.Hour
		}
		hsts = fmt.Sprintf("max-age=%d; includeSubDomains", int64(age.Seconds()))
	}

	noStore := cfg.NoStorePrefixes
	if len(noStore) == 0 {
		noStore = []string{"/admin"}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for _, kv := range fixedHeaders {
				h.Set(kv[0], kv[1])
			}
			h.Set("Content-Security-Policy", csp)
			if hsts != "" {
				h.Set("Strict-Transport-Security", hsts)
			}
			if hasPathPrefix(r.URL.Path, noStore) {
				h.Set("Cache-Control", "no-store")
			}
			h.Del("Server")

			next.ServeHTTP(w, r)
		})
	}
}

// hasPathPrefix matches whole path segments: /admin covers /admin/x but not /administration.
func hasPathPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		p = strings.TrimSuffix(p, "/")
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// MaxBodySize returns a middleware that limits request body size.
//
// When the limit is exceeded, the connection is closed and subsequent
// reads return an error.
func MaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && r.ContentLength > maxBytes {
				if isAPIPath(r.URL.Path) {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusRequestEntityTooLarge)
					_, _ = w.Write([]byte(`{"error":"Request body too large","code":"PAYLOAD_TOO_LARGE"}`))
					return
				}
				http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

			next.ServeHTTP(w, r)
		})
	}
}

// isAPIPath reports whether path belongs to the JSON surface.
func isAPIPath(path string) bool {
	return strings.HasPrefix(path, "/api/") || strings.HasPrefix(path, "/webhooks/")
}

package middleware

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// CORSConfig configures cross-origin access to the JSON endpoints.
// The endpoints are anonymous, so credentials are never allowed.
type CORSConfig struct {
	// AllowedOrigins lists exact origins ("https://partner.example") or
	// subdomain wildcards ("https://*.example.com"). Empty denies all.
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	ExposedHeaders []string
	MaxAge         time.Duration
}

// DefaultCORSConfig returns a config that denies every origin until
// AllowedOrigins is filled in.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Accept-Language", "Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader, "Retry-After", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		MaxAge:         24 * time.Hour,
	}
}

// originRule is one parsed AllowedOrigins entry.
type originRule struct {
	scheme string
	host   string // without the "*." prefix for wildcards
	port   string
	wild   bool
}

func parseOriginRule(s string) (originRule, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	scheme, rest, ok := strings.Cut(s, "://")
	if !ok || rest == "" {
		return originRule{}, false
	}
	rule := originRule{scheme: scheme}
	if strings.HasPrefix(rest, "*.") {
		rule.wild = true
		rest = rest[2:]
	}
	rule.host, rule.port, _ = strings.Cut(rest, ":")
	return rule, rule.host != ""
}

func (o originRule) match(scheme, host, port string) bool {
	if scheme != o.scheme || port != o.port {
		return false
	}
	if !o.wild {
		return host == o.host
	}
	return strings.HasSuffix(host, "."+o.host)
}

// CORS answers preflight requests and tags responses for allowed origins.
// Requests from other origins pass through untagged so the browser blocks
// them. Their preflights get a 403.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	rules := make([]originRule, 0, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		if rule, ok := parseOriginRule(o); ok {
			rules = append(rules, rule)
		}
	}

	methods := strings.Join(cfg.AllowedMethods, ", ")
	headers := strings.Join(cfg.AllowedHeaders, ", ")
	exposed := strings.Join(cfg.ExposedHeaders, ", ")
	maxAge := ""
	if cfg.MaxAge > 0 {
		maxAge = strconv.Itoa(int(cfg.MaxAge.Seconds()))
	}

	allowed := func(origin string) bool {
		u, err := url.Parse(strings.ToLower(origin))
		if err != nil || u.Host == "" {
			return false
		}
		host, port := u.Hostname(), u.Port()
		for _, rule := range rules {
			if rule.match(u.Scheme, host, port) {
				return true
			}
		}
		return false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
			h := w.Header()
			h.Add("Vary", "Origin")

			if !allowed(origin) {
				if preflight {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			h.Set("Access-Control-Allow-Origin", origin)
			if exposed != "" {
				h.Set("Access-Control-Expose-Headers", exposed)
			}
			if !preflight {
				next.ServeHTTP(w, r)
				return
			}

			h.Set("Access-Control-Allow-Methods", methods)
			h.Set("Access-Control-Allow-Headers", headers)
			if maxAge != "" {
				h.Set("Access-Control-Max-Age", maxAge)
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}
}

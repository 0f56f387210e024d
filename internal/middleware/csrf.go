package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/myfreehouseplans/catalog/internal/auth"
)

const (
	// CSRFHeader carries the token for scripted requests.
	CSRFHeader = "X-CSRF-Token"
	// CSRFFormField carries the token in admin forms.
	CSRFFormField = "csrf_token"

	multipartMemory = 8 << 20
)

// CSRF returns middleware that rejects unsafe requests whose token does not
// match the session token. Must run after RequireAdmin.
func CSRF(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			token := r.Header.Get(CSRFHeader)
			if token == "" {
				token = formToken(r)
			}

			if !auth.TokensEqual(token, auth.CSRFTokenFromContext(r.Context())) {
				logger.Warn("csrf token mismatch",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int64("user_id", auth.UserIDFromContext(r.Context())),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				http.Error(w, "Invalid or missing CSRF token.", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// formToken reads the token from urlencoded or multipart bodies.
func formToken(r *http.Request) string {
	if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return ""
	}
	return r.FormValue(CSRFFormField)
}

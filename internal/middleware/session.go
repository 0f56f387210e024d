package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/myfreehouseplans/catalog/internal/auth"
	"github.com/myfreehouseplans/catalog/internal/cache"
	"github.com/myfreehouseplans/catalog/internal/model"
	"github.com/myfreehouseplans/catalog/internal/service"
)

// LoginPath is where unauthenticated admin requests are sent.
const LoginPath = "/admin/login"

// SessionResolver resolves a session token to its admin.
type SessionResolver interface {
	Session(ctx context.Context, token string) (*cache.Session, *model.User, error)
}

// RequireAdmin returns middleware that admits requests carrying a valid
// admin session cookie. Others are redirected to the login page with the
// original path in next.
func RequireAdmin(resolver SessionResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(auth.SessionCookieName)
			if err != nil || cookie.Value == "" {
				redirectToLogin(w, r)
				return
			}

			session, user, err := resolver.Session(r.Context(), cookie.Value)
			if err != nil {
				if !errors.Is(err, service.ErrSessionExpired) && !errors.Is(err, service.ErrUserInactive) {
					logger.Error("session lookup failed",
						slog.String("error", err.Error()),
						slog.String("request_id", GetRequestID(r.Context())),
					)
				}
				http.SetCookie(w, &http.Cookie{
					Name:     auth.SessionCookieName,
					Value:    "",
					Path:     "/",
					MaxAge:   -1,
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
				redirectToLogin(w, r)
				return
			}

			ctx := auth.WithUser(r.Context(), user)
			ctx = auth.WithCSRFToken(ctx, session.CSRFToken)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	target := LoginPath
	if r.Method == http.MethodGet {
		target += "?next=" + url.QueryEscape(r.URL.RequestURI())
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

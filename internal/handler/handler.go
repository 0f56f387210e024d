// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/myfreehouseplans/catalog/internal/auth"
	"github.com/myfreehouseplans/catalog/internal/handler/dto"
	"github.com/myfreehouseplans/catalog/internal/service"
	"github.com/myfreehouseplans/catalog/internal/web"
)

const (
	flashCookieName = "mfp_flash"
	flashMaxAge     = 60
)

// Handler holds what every page handler needs to render HTML.
type Handler struct {
	renderer      *web.Renderer
	seo           *service.SEOService
	logger        *slog.Logger
	secureCookies bool
	now           func() time.Time
}

// New creates a new Handler.
func New(renderer *web.Renderer, seo *service.SEOService, secureCookies bool, logger *slog.Logger) *Handler {
	return &Handler{
		renderer:      renderer,
		seo:           seo,
		logger:        logger.With("component", "handler"),
		secureCookies: secureCookies,
		now:           time.Now,
	}
}

// page builds the template data shared by every page and consumes the flash cookie.
func (h *Handler) page(w http.ResponseWriter, r *http.Request, meta service.Meta, data any) web.Page {
	return web.Page{
		Meta:      meta,
		Path:      r.URL.Path,
		Flash:     h.popFlash(w, r),
		CSRFToken: auth.CSRFTokenFromContext(r.Context()),
		User:      auth.UserFromContext(r.Context()),
		Query:     r.URL.Query(),
		Data:      data,
		Now:       h.now(),
	}
}

// meta is a shortcut for pages without a social image.
func (h *Handler) meta(title, description, path string) service.Meta {
	return h.seo.Meta(title, description, "", path, "website", "")
}

func (h *Handler) render(w http.ResponseWriter, status int, name string, p web.Page) {
	h.renderer.Render(w, status, name, p)
}

// NotFound handles 404 responses. API paths get JSON.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	if isAPIRequest(r) {
		writeErrorJSON(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
		return
	}
	h.errorPage(w, r, http.StatusNotFound, "Page not found", "The page you are looking for does not exist or has moved.")
}

// MethodNotAllowed handles 405 responses.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	if isAPIRequest(r) {
		writeErrorJSON(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}
	h.errorPage(w, r, http.StatusMethodNotAllowed, "Method not allowed", "This page does not accept that request.")
}

func (h *Handler) errorPage(w http.ResponseWriter, r *http.Request, status int, title, message string) {
	meta := h.meta(title, message, r.URL.Path)
	h.render(w, status, "error", h.page(w, r, meta, map[string]string{
		"Title":   title,
		"Message": message,
	}))
}

// serverError logs err and renders the generic error page.
func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("internal_error",
		"error", err,
		"method", r.Method,
		"path", r.URL.Path,
	)
	h.errorPage(w, r, http.StatusInternalServerError, "Something went wrong", "Please try again in a moment.")
}

// setFlash stores a one-shot notice for the next page.
func (h *Handler) setFlash(w http.ResponseWriter, kind, message string) {
	data, err := json.Marshal(web.Flash{Kind: kind, Message: message})
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    base64.RawURLEncoding.EncodeToString(data),
		Path:     "/",
		MaxAge:   flashMaxAge,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) popFlash(w http.ResponseWriter, r *http.Request) *web.Flash {
	c, err := r.Cookie(flashCookieName)
	if err != nil || c.Value == "" {
		return nil
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return nil
	}
	var f web.Flash
	if err := json.Unmarshal(raw, &f); err != nil || f.Message == "" {
		return nil
	}
	return &f
}

// redirect answers a form POST with 303 See Other.
func redirect(w http.ResponseWriter, r *http.Request, to string) {
	http.Redirect(w, r, to, http.StatusSeeOther)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeErrorJSON writes a JSON error response.
func writeErrorJSON(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func isAPIRequest(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/")
}

// idParam parses a positive numeric route parameter.
func idParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// pageParam reads ?page=, defaulting to 1.
func pageParam(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// truncateForLog truncates a string for logging purposes.
func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

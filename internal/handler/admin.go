package handler

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/myfreehouseplans/catalog/internal/auth"
	"github.com/myfreehouseplans/catalog/internal/model"
	"github.com/myfreehouseplans/catalog/internal/service"
)

// dashboardTimeout bounds the aggregate queries behind the admin landing page.
const dashboardTimeout = 5 * time.Second

var (
	orderStatuses = []model.OrderStatus{
		model.OrderStatusPending,
		model.OrderStatusCompleted,
		model.OrderStatusFailed,
		model.OrderStatusRefunded,
	}
	postStatuses = []model.PostStatus{
		model.PostStatusDraft,
		model.PostStatusPublished,
		model.PostStatusArchived,
	}
	packs = []model.Pack{model.PackFree, model.PackPro, model.PackUltimate}
)

// AdminDeps groups the services behind the admin area.
type AdminDeps struct {
	Auth       Authenticator
	Dashboard  DashboardLoader
	Plans      Plans
	Categories Categories
	FAQs       FAQs
	Contacts   Contacts
	Orders     Orders
	Blog       Blog
	Settings   Settings
	Uploads    Uploader
}

// AdminHandler serves the back office under /admin.
type AdminHandler struct {
	*Handler
	auth       Authenticator
	dashboard  DashboardLoader
	plans      Plans
	categories Categories
	faqs       FAQs
	contacts   Contacts
	orders     Orders
	blog       Blog
	settings   Settings
	uploads    Uploader
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(base *Handler, deps AdminDeps) *AdminHandler {
	return &AdminHandler{
		Handler:    base,
		auth:       deps.Auth,
		dashboard:  deps.Dashboard,
		plans:      deps.Plans,
		categories: deps.Categories,
		faqs:       deps.FAQs,
		contacts:   deps.Contacts,
		orders:     deps.Orders,
		blog:       deps.Blog,
		settings:   deps.Settings,
		uploads:    deps.Uploads,
	}
}

// adminPage renders an admin template. Admin pages are never indexed.
func (h *AdminHandler) adminPage(w http.ResponseWriter, r *http.Request, status int, name, title string, data any, form url.Values, errs map[string]string) {
	meta := h.meta(title, "", r.URL.Path)
	meta.NoIndex = true
	p := h.page(w, r, meta, data)
	p.Form = form
	p.Errors = errs
	h.render(w, status, name, p)
}

// LoginForm handles GET /admin/login.
func (h *AdminHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	form := url.Values{"next": {safeNext(r.URL.Query().Get("next"))}}
	h.adminPage(w, r, http.StatusOK, "admin/login", "Sign in", nil, form, nil)
}

// Login handles POST /admin/login.
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.errorPage(w, r, http.StatusBadRequest, "Bad request", "The form could not be read.")
		return
	}

	var in service.LoginInput
	in.Username = strings.TrimSpace(r.PostForm.Get("username"))
	in.Password = r.PostForm.Get("password")
	next := safeNext(r.PostForm.Get("next"))
	form := url.Values{"username": {in.Username}, "next": {next}}

	session, user, err := h.auth.Login(r.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			h.adminPage(w, r, http.StatusUnprocessableEntity, "admin/login", "Sign in", nil, form, service.FieldErrors(err))
		case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrUserInactive):
			h.logger.Warn("admin_login_failed", "username", truncateForLog(in.Username, 64))
			h.adminPage(w, r, http.StatusUnauthorized, "admin/login", "Sign in", nil, form,
				map[string]string{"login": "Invalid username or password."})
		default:
			h.serverError(w, r, err)
		}
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    session.Token,
		Path:     "/",
		MaxAge:   int(h.auth.SessionTTL().Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	h.logger.Info("admin_logged_in", "user_id", user.ID)
	redirect(w, r, next)
}

// Logout handles POST /admin/logout.
func (h *AdminHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(auth.SessionCookieName); err == nil && c.Value != "" {
		if err := h.auth.Logout(r.Context(), c.Value); err != nil {
			h.logger.Warn("failed to delete session", "error", err)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	h.setFlash(w, "success", "You have been signed out.")
	redirect(w, r, "/admin/login")
}

// Dashboard handles GET /admin/.
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), dashboardTimeout)
	defer cancel()

	dash, err := h.dashboard.Load(ctx)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.adminPage(w, r, http.StatusOK, "admin/dashboard", "Dashboard", dash, nil, nil)
}

// Orders handles GET /admin/orders.
func (h *AdminHandler) Orders(w http.ResponseWriter, r *http.Request) {
	status := model.OrderStatus(r.URL.Query().Get("status"))
	if !status.IsValid() {
		status = ""
	}
	orders, err := h.orders.List(r.Context(), status, pageParam(r))
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.adminPage(w, r, http.StatusOK, "admin/orders", "Orders", map[string]any{
		"Orders":   orders,
		"Statuses": orderStatuses,
	}, nil, nil)
}

type packOption struct {
	Pack   model.Pack
	Label  string
	Active bool
}

// Packs handles GET /admin/settings/packs.
func (h *AdminHandler) Packs(w http.ResponseWriter, r *http.Request) {
	visibility := h.settings.PackVisibility(r.Context())
	opts := make([]packOption, 0, len(packs))
	for _, p := range packs {
		opts = append(opts, packOption{Pack: p, Label: p.Label(), Active: visibility.IsActive(p)})
	}
	h.adminPage(w, r, http.StatusOK, "admin/packs", "Pack visibility", opts, nil, nil)
}

// SavePacks handles POST /admin/settings/packs.
func (h *AdminHandler) SavePacks(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.errorPage(w, r, http.StatusBadRequest, "Bad request", "The form could not be read.")
		return
	}

	visibility := make(model.PackVisibility, len(packs))
	for _, p := range packs {
		visibility[p] = r.PostForm.Get("pack_"+strconv.Itoa(int(p))) == "1"
	}
	if err := h.settings.SavePackVisibility(r.Context(), visibility); err != nil {
		h.serverError(w, r, err)
		return
	}

	h.logger.Info("pack_visibility_saved",
		"free", visibility[model.PackFree],
		"pro", visibility[model.PackPro],
		"ultimate", visibility[model.PackUltimate],
	)
	h.setFlash(w, "success", "Pack visibility saved.")
	redirect(w, r, "/admin/settings/packs")
}

// safeNext keeps post-login redirects inside the admin area.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/admin") || strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return "/admin/"
	}
	if next == "/admin/login" || strings.HasPrefix(next, "/admin/login?") {
		return "/admin/"
	}
	return next
}

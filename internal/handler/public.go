package handler

import (
	"errors"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/myfreehouseplans/catalog/internal/handler/dto"
	"github.com/myfreehouseplans/catalog/internal/model"
	"github.com/myfreehouseplans/catalog/internal/repository"
	"github.com/myfreehouseplans/catalog/internal/service"
)

// PublicHandler serves the catalog pages visitors browse.
type PublicHandler struct {
	*Handler
	catalog Catalog
}

// NewPublicHandler creates a new PublicHandler.
func NewPublicHandler(base *Handler, catalog Catalog) *PublicHandler {
	return &PublicHandler{Handler: base, catalog: catalog}
}

// Home handles GET /.
func (h *PublicHandler) Home(w http.ResponseWriter, r *http.Request) {
	home, err := h.catalog.Home(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	meta := h.seo.Meta("", "Free and premium house plans with clear drawings, honest specifications and instant downloads.", "house plans, floor plans, home designs", "/", "website", "")
	p := h.page(w, r, meta, home)
	p.Schemas = []map[string]any{h.seo.WebsiteSchema()}
	h.render(w, http.StatusOK, "home", p)
}

// Plans handles GET /plans.
func (h *PublicHandler) Plans(w http.ResponseWriter, r *http.Request) {
	browse, err := h.catalog.Browse(r.Context(), planFilter(r.URL.Query()))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	title := "House plans"
	if browse.Category != nil {
		title = browse.Category.Name + " house plans"
	}
	meta := h.meta(title, "Browse house plans by size, bedrooms, bathrooms and budget.", "/plans")
	h.render(w, http.StatusOK, "plans", h.page(w, r, meta, browse))
}

// Category handles GET /plans/category/{slug}.
func (h *PublicHandler) Category(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	browse, err := h.catalog.Category(r.Context(), slug, planFilter(r.URL.Query()))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	c := browse.Category
	description := c.Description
	if description == "" {
		description = "House plans in the " + c.Name + " collection."
	}
	p := h.page(w, r, h.meta(c.Name+" house plans", description, r.URL.Path), browse)
	p.Schemas = []map[string]any{h.seo.BreadcrumbSchema([]service.Breadcrumb{
		{Name: "Home", Path: "/"},
		{Name: "Plans", Path: "/plans"},
		{Name: c.Name, Path: r.URL.Path},
	})}
	h.render(w, http.StatusOK, "plans", p)
}

// PlanDetail handles GET /plan/{slug}.
func (h *PublicHandler) PlanDetail(w http.ResponseWriter, r *http.Request) {
	detail, err := h.catalog.PlanDetail(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	plan := detail.Plan
	path := "/plan/" + plan.Slug
	p := h.page(w, r, h.seo.PlanMeta(plan), detail)
	p.Schemas = []map[string]any{
		h.seo.ProductSchema(plan, detail.StartingPrice),
		h.seo.BreadcrumbSchema([]service.Breadcrumb{
			{Name: "Home", Path: "/"},
			{Name: "Plans", Path: "/plans"},
			{Name: plan.Title, Path: path},
		}),
	}
	h.render(w, http.StatusOK, "plan_detail", p)
}

// PlanByCode handles GET /plan/code/{code} with a permanent redirect.
func (h *PublicHandler) PlanByCode(w http.ResponseWriter, r *http.Request) {
	plan, err := h.catalog.PlanByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	http.Redirect(w, r, "/plan/"+plan.Slug, http.StatusMovedPermanently)
}

// FilterPlans handles GET /api/plans/filter.
func (h *PublicHandler) FilterPlans(w http.ResponseWriter, r *http.Request) {
	result, err := h.catalog.FilterJSON(r.Context(), planFilter(r.URL.Query()))
	if err != nil {
		h.logger.Error("failed to filter plans", "error", err, "query", truncateForLog(r.URL.RawQuery, 200))
		writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
		return
	}

	html, err := h.renderer.Fragment("plan_cards", result.Raw)
	if err != nil {
		h.logger.Error("failed to render plan cards", "error", err)
		writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
		return
	}

	writeJSON(w, http.StatusOK, dto.FilterResponse{
		Plans: result.Plans,
		Total: result.Total,
		Page:  result.Page,
		Pages: result.Pages,
		HTML:  html,
	})
}

// GumroadRedirect handles GET /go/{slug}/{pack}.
func (h *PublicHandler) GumroadRedirect(w http.ResponseWriter, r *http.Request) {
	pack, ok := model.ParsePack(chi.URLParam(r, "pack"))
	if !ok {
		h.errorPage(w, r, http.StatusBadRequest, "Unknown pack", "This pack does not exist.")
		return
	}

	target, err := h.catalog.GumroadURL(r.Context(), chi.URLParam(r, "slug"), pack)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidPack), errors.Is(err, service.ErrDisallowedURL):
			h.errorPage(w, r, http.StatusBadRequest, "Checkout unavailable", "This pack cannot be bought online.")
		case errors.Is(err, service.ErrPackUnavailable):
			h.errorPage(w, r, http.StatusNotFound, "Checkout unavailable", "This pack is not available for this plan.")
		default:
			h.handleServiceError(w, r, err)
		}
		return
	}

	w.Header().Set("Cache-Control", "private, max-age=0")
	http.Redirect(w, r, target, http.StatusFound)
}

// FreeDownload handles GET /download/free/{id}.
func (h *PublicHandler) FreeDownload(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		h.NotFound(w, r)
		return
	}

	path, err := h.catalog.FreeDownload(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNoFreeFile) || errors.Is(err, service.ErrUnsafePath) {
			h.NotFound(w, r)
			return
		}
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("free_download", "plan_id", id)
	serveAttachment(w, r, path)
}

// Sitemap handles GET /sitemap.xml.
func (h *PublicHandler) Sitemap(w http.ResponseWriter, r *http.Request) {
	body, err := h.seo.Sitemap(r.Context())
	if err != nil {
		h.logger.Error("failed to build sitemap", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	_, _ = w.Write(body)
}

// Robots handles GET /robots.txt.
func (h *PublicHandler) Robots(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(h.seo.Robots()))
}

// StaticPage renders a page without data, such as /about.
func (h *PublicHandler) StaticPage(name, title, description string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.render(w, http.StatusOK, name, h.page(w, r, h.meta(title, description, r.URL.Path), nil))
	}
}

// handleServiceError maps service errors to HTML responses.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrPlanNotFound),
		errors.Is(err, service.ErrCategoryNotFound),
		errors.Is(err, service.ErrPostNotFound),
		errors.Is(err, service.ErrMessageNotFound),
		errors.Is(err, service.ErrFAQNotFound),
		errors.Is(err, service.ErrOrderNotFound):
		h.NotFound(w, r)
	default:
		h.serverError(w, r, err)
	}
}

// serveAttachment streams a file as a download.
func serveAttachment(w http.ResponseWriter, r *http.Request, path string) {
	w.Header().Set("Content-Disposition", `attachment; filename="`+strings.ReplaceAll(filepath.Base(path), `"`, "")+`"`)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeFile(w, r, path)
}

// planFilter reads the catalog query parameters. Invalid values are ignored.
func planFilter(q url.Values) repository.PlanFilter {
	f := repository.PlanFilter{
		Query:        strings.TrimSpace(q.Get("q")),
		CategorySlug: strings.TrimSpace(q.Get("category")),
		Sort:         repository.ParsePlanSort(q.Get("sort")),
		FeaturedOnly: q.Get("featured") == "1",
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil && page > 0 {
		f.Page.Number = page
	} else {
		f.Page.Number = 1
	}
	if n, err := strconv.Atoi(q.Get("bedrooms")); err == nil && n > 0 {
		f.MinBedrooms = &n
	}
	if n, err := strconv.ParseFloat(q.Get("bathrooms"), 64); err == nil && n > 0 {
		f.MinBathrooms = &n
	}
	if d, err := decimal.NewFromString(q.Get("max_price")); err == nil && d.IsPositive() {
		f.MaxPrice = &d
	}
	if t := model.PlanType(q.Get("plan_type")); t.IsValid() {
		f.PlanType = t
	}
	return f
}

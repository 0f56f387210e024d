package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/myfreehouseplans/catalog/internal/auth"
	"github.com/myfreehouseplans/catalog/internal/repository"
	"github.com/myfreehouseplans/catalog/internal/service"
)

// BlogHandler serves the public blog.
type BlogHandler struct {
	*Handler
	blog Blog
}

// NewBlogHandler creates a new BlogHandler.
func NewBlogHandler(base *Handler, blog Blog) *BlogHandler {
	return &BlogHandler{Handler: base, blog: blog}
}

// Index handles GET /blog.
func (h *BlogHandler) Index(w http.ResponseWriter, r *http.Request) {
	page, err := h.blog.List(r.Context(), repository.BlogFilter{
		Query: strings.TrimSpace(r.URL.Query().Get("q")),
		Page:  repository.Page{Number: pageParam(r)},
	})
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	meta := h.meta("Blog", "Advice on choosing, adapting and building a house plan.", "/blog")
	h.render(w, http.StatusOK, "blog_index", h.page(w, r, meta, page))
}

// Post handles GET /blog/{slug}. Signed in admins may preview drafts.
func (h *BlogHandler) Post(w http.ResponseWriter, r *http.Request) {
	admin := auth.UserFromContext(r.Context()) != nil
	post, err := h.blog.Get(r.Context(), chi.URLParam(r, "slug"), admin)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	path := "/blog/" + post.Slug
	meta := h.seo.Meta(post.PageTitle(), firstNonEmpty(post.MetaDescription, post.Excerpt(160)), "", path, "article", post.CoverImage)
	p := h.page(w, r, meta, post)
	p.Schemas = []map[string]any{h.seo.BreadcrumbSchema([]service.Breadcrumb{
		{Name: "Home", Path: "/"},
		{Name: "Blog", Path: "/blog"},
		{Name: post.Title, Path: path},
	})}
	h.render(w, http.StatusOK, "blog_post", p)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

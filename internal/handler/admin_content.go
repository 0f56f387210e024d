package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/myfreehouseplans/catalog/internal/model"
	"github.com/myfreehouseplans/catalog/internal/repository"
	"github.com/myfreehouseplans/catalog/internal/service"
)

// Categories handles GET /admin/categories.
func (h *AdminHandler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categories.List(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.adminPage(w, r, http.StatusOK, "admin/categories", "Categories", categories, nil, nil)
}

// NewCategory handles GET /admin/categories/new.
func (h *AdminHandler) NewCategory(w http.ResponseWriter, r *http.Request) {
	h.renderCategoryForm(w, r, http.StatusOK, nil, url.Values{}, nil)
}

// CreateCategory handles POST /admin/categories/new.
func (h *AdminHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.errorPage(w, r, http.StatusBadRequest, "Bad request", "The form could not be read.")
		return
	}
	var in service.CategoryInput
	decodeForm(r.PostForm, &in, "form")

	category, err := h.categories.Create(r.Context(), in)
	if err != nil {
		if errs, ok := categoryErrors(err); ok {
			h.renderCategoryForm(w, r, http.StatusUnprocessableEntity, nil, r.PostForm, errs)
			return
		}
		h.serverError(w, r, err)
		return
	}

	h.logger.Info("category_created", "category_id", category.ID, "slug", category.Slug)
	h.setFlash(w, "success", "Category "+category.Name+" created.")
	redirect(w, r, "/admin/categories")
}

// EditCategory handles GET /admin/categories/{id}/edit.
func (h *AdminHandler) EditCategory(w http.ResponseWriter, r *http.Request) {
	category, ok := h.loadCategory(w, r)
	if !ok {
		return
	}
	form := encodeForm(service.CategoryInput{Name: category.Name, Description: category.Description}, "form")
	h.renderCategoryForm(w, r, http.StatusOK, category, form, nil)
}

// UpdateCategory handles POST /admin/categories/{id}/edit.
func (h *AdminHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	category, ok := h.loadCategory(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		h.errorPage(w, r, http.StatusBadRequest, "Bad request", "The form could not be read.")
		return
	}
	var in service.CategoryInput
	decodeForm(r.PostForm, &in, "form")

	if _, err := h.categories.Update(r.Context(), category.ID, in); err != nil {
		if errs, ok := categoryErrors(err); ok {
			h.renderCategoryForm(w, r, http.StatusUnprocessableEntity, category, r.PostForm, errs)
			return
		}
		h.handleServiceError(w, r, err)
		return
	}

	h.setFlash(w, "success", "Category saved.")
	redirect(w, r, "/admin/categories")
}

// DeleteCategory handles POST /admin/categories/{id}/delete.
func (h *AdminHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		h.NotFound(w, r)
		return
	}
	if err := h.categories.Delete(r.Context(), id); err != nil {
		if errors.Is(err, service.ErrCategoryInUse) {
			h.setFlash(w, "error", "This category still has plans. Move them first.")
			redirect(w, r, "/admin/categories")
			return
		}
		h.handleServiceError(w, r, err)
		return
	}
	h.logger.Info("category_deleted", "category_id", id)
	h.setFlash(w, "success", "Category deleted.")
	redirect(w, r, "/admin/categories")
}

func (h *AdminHandler) loadCategory(w http.ResponseWriter, r *http.Request) (*model.Category, bool) {
	id, ok := idParam(r, "id")
	if !ok {
		h.NotFound(w, r)
		return nil, false
	}
	category, err := h.categories.Get(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return nil, false
	}
	return category, true
}

func (h *AdminHandler) renderCategoryForm(w http.ResponseWriter, r *http.Request, status int, category *model.Category, form url.Values, errs map[string]string) {
	title := "New category"
	if category != nil {
		title = "Edit " + category.Name
	}
	h.adminPage(w, r, status, "admin/category_form", title, map[string]any{
		"Category": category,
		"IsNew":    category == nil,
	}, form, errs)
}

// categoryErrors maps the failures a category form can fix.
func categoryErrors(err error) (map[string]string, bool) {
	switch {
	case errors.Is(err, service.ErrValidation):
		return service.FieldErrors(err), true
	case errors.Is(err, service.ErrCategoryExists):
		return map[string]string{"name": "A category with this name already exists."}, true
	}
	return nil, false
}

// BlogPosts handles GET /admin/blog.
func (h *AdminHandler) BlogPosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := model.PostStatus(q.Get("status"))
	if !status.IsValid() {
		status = ""
	}
	page, err := h.blog.AdminList(r.Context(), repository.BlogFilter{
		Status: status,
		Query:  strings.TrimSpace(q.Get("q")),
		Page:   repository.Page{Number: pageParam(r), PerPage: adminPerPage},
	})
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.adminPage(w, r, http.StatusOK, "admin/blog", "Blog", page, nil, nil)
}

// NewPost handles GET /admin/blog/new.
func (h *AdminHandler) NewPost(w http.ResponseWriter, r *http.Request) {
	form := url.Values{"status": {string(model.PostStatusDraft)}}
	h.renderPostForm(w, r, http.StatusOK, nil, form, nil)
}

// CreatePost handles POST /admin/blog/new.
func (h *AdminHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	if !h.parseMultipart(w, r) {
		return
	}
	var in service.BlogInput
	if errs := decodeForm(r.PostForm, &in, "form"); len(errs) > 0 {
		h.renderPostForm(w, r, http.StatusUnprocessableEntity, nil, r.PostForm, errs)
		return
	}

	cover, errs, err := h.saveCover(r)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if errs != nil {
		h.renderPostForm(w, r, http.StatusUnprocessableEntity, nil, r.PostForm, errs)
		return
	}
	in.CoverImage = cover

	post, err := h.blog.Create(r.Context(), in)
	if err != nil {
		h.uploads.RemoveImage(cover)
		if errors.Is(err, service.ErrValidation) {
			h.renderPostForm(w, r, http.StatusUnprocessableEntity, nil, r.PostForm, service.FieldErrors(err))
			return
		}
		h.serverError(w, r, err)
		return
	}

	h.logger.Info("blog_post_created", "post_id", post.ID, "slug", post.Slug, "status", post.Status)
	h.setFlash(w, "success", "Post created.")
	redirect(w, r, "/admin/blog/"+strconv.FormatInt(post.ID, 10)+"/edit")
}

// EditPost handles GET /admin/blog/{id}/edit.
func (h *AdminHandler) EditPost(w http.ResponseWriter, r *http.Request) {
	post, ok := h.loadPost(w, r)
	if !ok {
		return
	}
	form := encodeForm(service.BlogInput{
		Title:           post.Title,
		Slug:            post.Slug,
		MetaTitle:       post.MetaTitle,
		MetaDescription: post.MetaDescription,
		Content:         post.Content,
		Status:          string(post.Status),
		PlanID:          post.PlanID,
	}, "form")
	h.renderPostForm(w, r, http.StatusOK, post, form, nil)
}

// UpdatePost handles POST /admin/blog/{id}/edit.
func (h *AdminHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	post, ok := h.loadPost(w, r)
	if !ok {
		return
	}
	if !h.parseMultipart(w, r) {
		return
	}
	var in service.BlogInput
	if errs := decodeForm(r.PostForm, &in, "form"); len(errs) > 0 {
		h.renderPostForm(w, r, http.StatusUnprocessableEntity, post, r.PostForm, errs)
		return
	}

	cover, errs, err := h.saveCover(r)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if errs != nil {
		h.renderPostForm(w, r, http.StatusUnprocessableEntity, post, r.PostForm, errs)
		return
	}
	in.CoverImage = cover

	if _, err := h.blog.Update(r.Context(), post.ID, in); err != nil {
		h.uploads.RemoveImage(cover)
		if errors.Is(err, service.ErrValidation) {
			h.renderPostForm(w, r, http.StatusUnprocessableEntity, post, r.PostForm, service.FieldErrors(err))
			return
		}
		h.handleServiceError(w, r, err)
		return
	}
	if cover != "" && post.CoverImage != "" {
		h.uploads.RemoveImage(post.CoverImage)
	}

	h.setFlash(w, "success", "Post saved.")
	redirect(w, r, "/admin/blog/"+strconv.FormatInt(post.ID, 10)+"/edit")
}

// DeletePost handles POST /admin/blog/{id}/delete.
func (h *AdminHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	post, ok := h.loadPost(w, r)
	if !ok {
		return
	}
	if err := h.blog.Delete(r.Context(), post.ID); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.uploads.RemoveImage(post.CoverImage)
	h.setFlash(w, "success", "Post deleted.")
	redirect(w, r, "/admin/blog")
}

func (h *AdminHandler) loadPost(w http.ResponseWriter, r *http.Request) (*model.BlogPost, bool) {
	id, ok := idParam(r, "id")
	if !ok {
		h.NotFound(w, r)
		return nil, false
	}
	post, err := h.blog.GetByID(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return nil, false
	}
	return post, true
}

func (h *AdminHandler) renderPostForm(w http.ResponseWriter, r *http.Request, status int, post *model.BlogPost, form url.Values, errs map[string]string) {
	plans, err := h.contacts.PlanOptions(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	title := "New post"
	if post != nil {
		title = "Edit " + post.Title
	}
	h.adminPage(w, r, status, "admin/blog_form", title, map[string]any{
		"Post":     post,
		"IsNew":    post == nil,
		"Statuses": postStatuses,
		"Plans":    plans,
	}, form, errs)
}

// saveCover stores an optional cover image. It returns "" when none was sent.
func (h *AdminHandler) saveCover(r *http.Request) (string, map[string]string, error) {
	file, header, err := formFile(r, "cover_image_file")
	if err != nil || file == nil {
		return "", nil, err
	}
	defer file.Close()

	urlPath, err := h.uploads.SaveImage(file, header, "blog")
	if err != nil {
		if msg, ok := uploadErrorMessage(err); ok {
			return "", map[string]string{"image": msg}, nil
		}
		return "", nil, err
	}
	return urlPath, nil, nil
}

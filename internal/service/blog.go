package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/myfreehouseplans/catalog/internal/model"
	"github.com/myfreehouseplans/catalog/internal/repository"
	"github.com/myfreehouseplans/catalog/internal/slug"
)

// BlogInput is the admin blog post form.
type BlogInput struct {
	Title           string `form:"title" validate:"required,max=200"`
	Slug            string `form:"slug" validate:"max=200"`
	MetaTitle       string `form:"meta_title" validate:"max=200"`
	MetaDescription string `form:"meta_description" validate:"max=300"`
	Content         string `form:"content" validate:"required"`
	CoverImage      string `form:"-"`
	Status          string `form:"status" validate:"required,oneof=draft published archived"`
	PlanID          *int64 `form:"plan_id"`
}

// BlogService manages articles.
type BlogService struct {
	store   BlogStore
	perPage int
	policy  *bluemonday.Policy
	logger  *slog.Logger
}

// NewBlogService creates a new BlogService.
func NewBlogService(store BlogStore, perPage int, logger *slog.Logger) *BlogService {
	return &BlogService{
		store:   store,
		perPage: perPage,
		policy:  bluemonday.UGCPolicy(),
		logger:  logger.With("component", "service.blog"),
	}
}

// Sanitize strips unsafe markup from article HTML.
func (s *BlogService) Sanitize(html string) string {
	return s.policy.Sanitize(html)
}

// List returns published posts for the public blog.
func (s *BlogService) List(ctx context.Context, filter repository.BlogFilter) (*repository.BlogPage, error) {
	filter.Status = model.PostStatusPublished
	filter.Page.PerPage = s.perPage
	page, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	return page, nil
}

// AdminList returns posts in any status.
func (s *BlogService) AdminList(ctx context.Context, filter repository.BlogFilter) (*repository.BlogPage, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		filter.Status = ""
	}
	page, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	return page, nil
}

// Get loads a post by slug. Unpublished posts are only visible to admins.
func (s *BlogService) Get(ctx context.Context, postSlug string, admin bool) (*model.BlogPost, error) {
	post, err := s.store.GetBySlug(ctx, postSlug)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("failed to load post: %w", err)
	}
	if !admin && !post.IsPublished() {
		return nil, ErrPostNotFound
	}
	return post, nil
}

// GetByID loads a post for editing.
func (s *BlogService) GetByID(ctx context.Context, id int64) (*model.BlogPost, error) {
	post, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("failed to load post: %w", err)
	}
	return post, nil
}

// Create stores a new post with a unique slug.
func (s *BlogService) Create(ctx context.Context, in BlogInput) (*model.BlogPost, error) {
	in = normalizeBlog(in)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	post := s.apply(&model.BlogPost{}, in)
	var err error
	if post.Slug, err = s.uniqueSlug(ctx, firstNonBlank(in.Slug, in.Title), 0); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, post); err != nil {
		if errors.Is(err, repository.ErrDuplicateSlug) {
			return nil, fieldError("slug", "Another post already uses this slug.")
		}
		return nil, fmt.Errorf("failed to create post: %w", err)
	}
	s.logger.Info("blog post created", "post_id", post.ID, "slug", post.Slug)
	return post, nil
}

// Update rewrites a post. The slug changes only when the form asks for it.
func (s *BlogService) Update(ctx context.Context, id int64, in BlogInput) (*model.BlogPost, error) {
	in = normalizeBlog(in)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	post, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	cover := post.CoverImage
	post = s.apply(post, in)
	if in.CoverImage == "" {
		post.CoverImage = cover
	}
	if in.Slug != "" && slug.Make(in.Slug) != post.Slug {
		if post.Slug, err = s.uniqueSlug(ctx, in.Slug, post.ID); err != nil {
			return nil, err
		}
	}

	if err := s.store.Update(ctx, post); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrPostNotFound
		case errors.Is(err, repository.ErrDuplicateSlug):
			return nil, fieldError("slug", "Another post already uses this slug.")
		}
		return nil, fmt.Errorf("failed to update post: %w", err)
	}
	return post, nil
}

// Delete removes a post.
func (s *BlogService) Delete(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrPostNotFound
		}
		return fmt.Errorf("failed to delete post: %w", err)
	}
	s.logger.Info("blog post deleted", "post_id", id)
	return nil
}

func (s *BlogService) apply(post *model.BlogPost, in BlogInput) *model.BlogPost {
	post.Title = in.Title
	post.MetaTitle = in.MetaTitle
	post.MetaDescription = in.MetaDescription
	post.Content = s.policy.Sanitize(in.Content)
	post.CoverImage = in.CoverImage
	post.Status = model.PostStatus(in.Status)
	post.PlanID = in.PlanID
	return post
}

func (s *BlogService) uniqueSlug(ctx context.Context, source string, excludeID int64) (string, error) {
	out, err := slug.Unique(ctx, slug.Make(source), func(ctx context.Context, candidate string) (bool, error) {
		return s.store.SlugExists(ctx, candidate, excludeID)
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate slug: %w", err)
	}
	return out, nil
}

func normalizeBlog(in BlogInput) BlogInput {
	in.Title = strings.TrimSpace(in.Title)
	in.Slug = strings.TrimSpace(in.Slug)
	in.MetaTitle = strings.TrimSpace(in.MetaTitle)
	in.MetaDescription = strings.TrimSpace(in.MetaDescription)
	in.Status = strings.TrimSpace(in.Status)
	if in.Status == "" {
		in.Status = string(model.PostStatusDraft)
	}
	return in
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

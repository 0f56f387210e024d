package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/myfreehouseplans/catalog/internal/model"
	"github.com/myfreehouseplans/catalog/internal/repository"
	"github.com/myfreehouseplans/catalog/internal/slug"
)

// CategoryInput is the category form.
type CategoryInput struct {
	Name        string `form:"name" validate:"required,max=100"`
	Description string `form:"description" validate:"max=1000"`
}

// CategoryService manages plan categories.
type CategoryService struct {
	store  CategoryStore
	logger *slog.Logger
}

// NewCategoryService creates a new CategoryService.
func NewCategoryService(store CategoryStore, logger *slog.Logger) *CategoryService {
	return &CategoryService{
		store:  store,
		logger: logger.With("component", "service.category"),
	}
}

// List returns every category with its plan count.
func (s *CategoryService) List(ctx context.Context) ([]*model.Category, error) {
	categories, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

// Get loads a category by id.
func (s *CategoryService) Get(ctx context.Context, id int64) (*model.Category, error) {
	c, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to load category: %w", err)
	}
	return c, nil
}

// Create adds a category. Names that slug to an existing category are rejected.
func (s *CategoryService) Create(ctx context.Context, in CategoryInput) (*model.Category, error) {
	in = normalizeCategory(in)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	c := &model.Category{Name: in.Name, Slug: slug.Make(in.Name), Description: in.Description}
	if err := s.ensureFreeSlug(ctx, c.Slug, 0); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, c); err != nil {
		if errors.Is(err, repository.ErrDuplicateSlug) {
			return nil, ErrCategoryExists
		}
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	s.logger.Info("category created", "category_id", c.ID, "slug", c.Slug)
	return c, nil
}

// Update renames or redescribes a category.
func (s *CategoryService) Update(ctx context.Context, id int64, in CategoryInput) (*model.Category, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	in = normalizeCategory(in)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	c.Name = in.Name
	c.Description = in.Description
	c.Slug = slug.Make(in.Name)
	if err := s.ensureFreeSlug(ctx, c.Slug, c.ID); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, c); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrCategoryNotFound
		case errors.Is(err, repository.ErrDuplicateSlug):
			return nil, ErrCategoryExists
		}
		return nil, fmt.Errorf("failed to update category: %w", err)
	}
	return c, nil
}

// Delete removes a category that no plan uses.
func (s *CategoryService) Delete(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return ErrCategoryNotFound
		case errors.Is(err, repository.ErrInUse):
			return ErrCategoryInUse
		}
		return fmt.Errorf("failed to delete category: %w", err)
	}
	s.logger.Info("category deleted", "category_id", id)
	return nil
}

// Ensure returns the named category, creating it when missing. Used by seeding.
func (s *CategoryService) Ensure(ctx context.Context, in CategoryInput) (*model.Category, error) {
	in = normalizeCategory(in)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	c := &model.Category{Name: in.Name, Slug: slug.Make(in.Name), Description: in.Description}
	if err := s.store.UpsertByName(ctx, c); err != nil {
		if errors.Is(err, repository.ErrDuplicateSlug) {
			return nil, ErrCategoryExists
		}
		return nil, fmt.Errorf("failed to ensure category: %w", err)
	}
	return c, nil
}

func (s *CategoryService) ensureFreeSlug(ctx context.Context, candidate string, excludeID int64) error {
	taken, err := s.store.SlugExists(ctx, candidate, excludeID)
	if err != nil {
		return fmt.Errorf("failed to check category slug: %w", err)
	}
	if taken {
		return ErrCategoryExists
	}
	return nil
}

func normalizeCategory(in CategoryInput) CategoryInput {
	in.Name = strings.Join(strings.Fields(in.Name), " ")
	in.Description = strings.TrimSpace(in.Description)
	return in
}

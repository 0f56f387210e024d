package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/myfreehouseplans/catalog/internal/model"
)

// CategoryRepository provides database access for categories.
type CategoryRepository struct {
	repo *Repository
}

// NewCategoryRepository creates a new CategoryRepository.
func NewCategoryRepository(repo *Repository) *CategoryRepository {
	return &CategoryRepository{repo: repo}
}

// List returns all categories with their published plan counts.
func (r *CategoryRepository) List(ctx context.Context) ([]*model.Category, error) {
	query := `
		SELECT c.id, c.name, c.slug, c.description, c.created_at,
		       COUNT(p.id) FILTER (WHERE p.is_published)
		FROM categories c
		LEFT JOIN house_plan_categories hpc ON hpc.category_id = c.id
		LEFT JOIN house_plans p ON p.id = hpc.house_plan_id
		GROUP BY c.id
		ORDER BY c.name
	`

	rows, err := r.repo.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := []*model.Category{}
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.CreatedAt, &c.PlanCount); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}
	return categories, nil
}

func (r *CategoryRepository) getOne(ctx context.Context, where string, arg any) (*model.Category, error) {
	query := `SELECT id, name, slug, description, created_at FROM categories WHERE ` + where

	var c model.Category
	err := r.repo.pool.QueryRow(ctx, query, arg).Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return &c, nil
}

// GetByID retrieves a category by id.
func (r *CategoryRepository) GetByID(ctx context.Context, id int64) (*model.Category, error) {
	return r.getOne(ctx, "id = $1", id)
}

// GetBySlug retrieves a category by slug.
func (r *CategoryRepository) GetBySlug(ctx context.Context, slug string) (*model.Category, error) {
	return r.getOne(ctx, "slug = $1", slug)
}

// Create inserts a category.
func (r *CategoryRepository) Create(ctx context.Context, c *model.Category) error {
	err := r.repo.pool.QueryRow(ctx,
		`INSERT INTO categories (name, slug, description) VALUES ($1, $2, $3) RETURNING id, created_at`,
		c.Name, c.Slug, c.Description,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateSlug
		}
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}

// Update rewrites a category.
func (r *CategoryRepository) Update(ctx context.Context, c *model.Category) error {
	result, err := r.repo.pool.Exec(ctx,
		`UPDATE categories SET name = $2, slug = $3, description = $4 WHERE id = $1`,
		c.ID, c.Name, c.Slug, c.Description,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateSlug
		}
		return fmt.Errorf("failed to update category: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a category. Categories attached to plans return ErrInUse.
func (r *CategoryRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.repo.pool.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrInUse
		}
		return fmt.Errorf("failed to delete category: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SlugExists checks for a slug, ignoring excludeID.
func (r *CategoryRepository) SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error) {
	var exists bool
	err := r.repo.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM categories WHERE slug = $1 AND id <> $2)`, slug, excludeID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check category slug: %w", err)
	}
	return exists, nil
}

// UpsertByName returns the category with name, creating it when missing.
func (r *CategoryRepository) UpsertByName(ctx context.Context, c *model.Category) error {
	err := r.repo.pool.QueryRow(ctx, `
		INSERT INTO categories (name, slug, description) VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description
		RETURNING id, slug, created_at`,
		c.Name, c.Slug, c.Description,
	).Scan(&c.ID, &c.Slug, &c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateSlug
		}
		return fmt.Errorf("failed to upsert category: %w", err)
	}
	return nil
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/myfreehouseplans/catalog/internal/model"
)

// BlogFilter narrows blog listings.
type BlogFilter struct {
	Status       model.PostStatus
	Query        string
	CategorySlug string
	Page         Page
}

// BlogPage is one page of posts.
type BlogPage struct {
	Posts   []*model.BlogPost
	Total   int64
	Page    int
	PerPage int
}

// Pages is the number of pages.
func (p BlogPage) Pages() int {
	return Pages(p.Total, p.PerPage)
}

// PostSlug is a published post's slug and last modification time.
type PostSlug struct {
	Slug      string
	UpdatedAt time.Time
}

// BlogRepository provides database access for blog posts.
type BlogRepository struct {
	repo *Repository
}

// NewBlogRepository creates a new BlogRepository.
func NewBlogRepository(repo *Repository) *BlogRepository {
	return &BlogRepository{repo: repo}
}

const blogColumns = `
	b.id, b.title, b.slug, b.meta_title, b.meta_description, b.content, b.cover_image,
	b.status, b.plan_id, b.created_at, b.updated_at, COALESCE(p.title, ''), COALESCE(p.slug, '')`

func scanPost(row pgx.Row) (*model.BlogPost, error) {
	var b model.BlogPost
	err := row.Scan(
		&b.ID, &b.Title, &b.Slug, &b.MetaTitle, &b.MetaDescription, &b.Content, &b.CoverImage,
		&b.Status, &b.PlanID, &b.CreatedAt, &b.UpdatedAt, &b.PlanTitle, &b.PlanSlug,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// List returns a filtered page of posts, newest first.
func (r *BlogRepository) List(ctx context.Context, filter BlogFilter) (*BlogPage, error) {
	page := filter.Page.Normalize(9, 100)

	clauses := []string{"TRUE"}
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.Status != "" {
		clauses = append(clauses, "b.status = "+arg(string(filter.Status)))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		ph := arg("%" + escapeLike(q) + "%")
		clauses = append(clauses, fmt.Sprintf("(b.title ILIKE %[1]s OR b.content ILIKE %[1]s)", ph))
	}
	if filter.CategorySlug != "" {
		clauses = append(clauses, fmt.Sprintf(`EXISTS (
			SELECT 1 FROM house_plan_categories hpc
			JOIN categories c ON c.id = hpc.category_id
			WHERE hpc.house_plan_id = b.plan_id AND c.slug = %s)`, arg(filter.CategorySlug)))
	}
	where := strings.Join(clauses, " AND ")

	var total int64
	if err := r.repo.pool.QueryRow(ctx, `SELECT COUNT(*) FROM blog_posts b WHERE `+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count posts: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM blog_posts b LEFT JOIN house_plans p ON p.id = b.plan_id
		WHERE %s
		ORDER BY b.created_at DESC, b.id DESC
		LIMIT $%d OFFSET $%d`, blogColumns, where, len(args)+1, len(args)+2)
	args = append(args, page.PerPage, page.Offset())

	rows, err := r.repo.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	posts := []*model.BlogPost{}
	for rows.Next() {
		b, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating posts: %w", err)
	}

	return &BlogPage{Posts: posts, Total: total, Page: page.Number, PerPage: page.PerPage}, nil
}

func (r *BlogRepository) getOne(ctx context.Context, where string, arg any) (*model.BlogPost, error) {
	b, err := scanPost(r.repo.pool.QueryRow(ctx, `
		SELECT `+blogColumns+`
		FROM blog_posts b LEFT JOIN house_plans p ON p.id = b.plan_id
		WHERE `+where, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return b, nil
}

// GetByID retrieves a post by id.
func (r *BlogRepository) GetByID(ctx context.Context, id int64) (*model.BlogPost, error) {
	return r.getOne(ctx, "b.id = $1", id)
}

// GetBySlug retrieves a post by slug.
func (r *BlogRepository) GetBySlug(ctx context.Context, slug string) (*model.BlogPost, error) {
	return r.getOne(ctx, "b.slug = $1", slug)
}

// Create inserts a post.
func (r *BlogRepository) Create(ctx context.Context, b *model.BlogPost) error {
	err := r.repo.pool.QueryRow(ctx, `
		INSERT INTO blog_posts (title, slug, meta_title, meta_description, content, cover_image, status, plan_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`,
		b.Title, b.Slug, b.MetaTitle, b.MetaDescription, b.Content, b.CoverImage, string(b.Status), b.PlanID,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateSlug
		}
		if isForeignKeyViolation(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to create post: %w", err)
	}
	return nil
}

// Update rewrites a post.
func (r *BlogRepository) Update(ctx context.Context, b *model.BlogPost) error {
	err := r.repo.pool.QueryRow(ctx, `
		UPDATE blog_posts
		SET title = $2, slug = $3, meta_title = $4, meta_description = $5, content = $6,
		    cover_image = $7, status = $8, plan_id = $9
		WHERE id = $1
		RETURNING updated_at`,
		b.ID, b.Title, b.Slug, b.MetaTitle, b.MetaDescription, b.Content, b.CoverImage, string(b.Status), b.PlanID,
	).Scan(&b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if isUniqueViolation(err) {
			return ErrDuplicateSlug
		}
		return fmt.Errorf("failed to update post: %w", err)
	}
	return nil
}

// Delete removes a post.
func (r *BlogRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.repo.pool.Exec(ctx, `DELETE FROM blog_posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SlugExists checks for a slug, ignoring excludeID.
func (r *BlogRepository) SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error) {
	var exists bool
	err := r.repo.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM blog_posts WHERE slug = $1 AND id <> $2)`, slug, excludeID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check post slug: %w", err)
	}
	return exists, nil
}

// PublishedSlugs feeds the sitemap.
func (r *BlogRepository) PublishedSlugs(ctx context.Context) ([]PostSlug, error) {
	rows, err := r.repo.pool.Query(ctx,
		`SELECT slug, updated_at FROM blog_posts WHERE status = 'published' ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list post slugs: %w", err)
	}
	defer rows.Close()

	var slugs []PostSlug
	for rows.Next() {
		var s PostSlug
		if err := rows.Scan(&s.Slug, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan post slug: %w", err)
		}
		slugs = append(slugs, s)
	}
	return slugs, rows.Err()
}

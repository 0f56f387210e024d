package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/myfreehouseplans/catalog/internal/model"
)

// FAQRepository provides database access for plan FAQs.
type FAQRepository struct {
	repo *Repository
}

// NewFAQRepository creates a new FAQRepository.
func NewFAQRepository(repo *Repository) *FAQRepository {
	return &FAQRepository{repo: repo}
}

const faqColumns = `id, plan_id, question, answer, pack_context, position, created_at`

func scanFAQ(row pgx.Row) (*model.PlanFAQ, error) {
	var f model.PlanFAQ
	if err := row.Scan(&f.ID, &f.PlanID, &f.Question, &f.Answer, &f.PackContext, &f.Position, &f.CreatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

// ListByPlan returns a plan's FAQs in display order.
func (r *FAQRepository) ListByPlan(ctx context.Context, planID int64) ([]*model.PlanFAQ, error) {
	rows, err := r.repo.pool.Query(ctx,
		`SELECT `+faqColumns+` FROM plan_faqs WHERE plan_id = $1 ORDER BY position, id`, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to list faqs: %w", err)
	}
	defer rows.Close()

	faqs := []*model.PlanFAQ{}
	for rows.Next() {
		f, err := scanFAQ(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan faq: %w", err)
		}
		faqs = append(faqs, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating faqs: %w", err)
	}
	return faqs, nil
}

// Get retrieves one FAQ of a plan.
func (r *FAQRepository) Get(ctx context.Context, planID, id int64) (*model.PlanFAQ, error) {
	f, err := scanFAQ(r.repo.pool.QueryRow(ctx,
		`SELECT `+faqColumns+` FROM plan_faqs WHERE id = $1 AND plan_id = $2`, id, planID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get faq: %w", err)
	}
	return f, nil
}

// Create appends an FAQ. A zero position places it last.
func (r *FAQRepository) Create(ctx context.Context, f *model.PlanFAQ) error {
	err := r.repo.pool.QueryRow(ctx, `
		INSERT INTO plan_faqs (plan_id, question, answer, pack_context, position)
		VALUES ($1, $2, $3, $4,
			CASE WHEN $5::int > 0 THEN $5::int
			     ELSE (SELECT COALESCE(MAX(position), -1) + 1 FROM plan_faqs WHERE plan_id = $1) END)
		RETURNING id, position, created_at`,
		f.PlanID, f.Question, f.Answer, f.PackContext, f.Position,
	).Scan(&f.ID, &f.Position, &f.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to create faq: %w", err)
	}
	return nil
}

// Update rewrites an FAQ.
func (r *FAQRepository) Update(ctx context.Context, f *model.PlanFAQ) error {
	result, err := r.repo.pool.Exec(ctx, `
		UPDATE plan_faqs SET question = $3, answer = $4, pack_context = $5, position = $6
		WHERE id = $1 AND plan_id = $2`,
		f.ID, f.PlanID, f.Question, f.Answer, f.PackContext, f.Position,
	)
	if err != nil {
		return fmt.Errorf("failed to update faq: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an FAQ.
func (r *FAQRepository) Delete(ctx context.Context, planID, id int64) error {
	result, err := r.repo.pool.Exec(ctx, `DELETE FROM plan_faqs WHERE id = $1 AND plan_id = $2`, id, planID)
	if err != nil {
		return fmt.Errorf("failed to delete faq: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Reorder sets positions to the order of ids inside one transaction.
func (r *FAQRepository) Reorder(ctx context.Context, planID int64, ids []int64) error {
	return r.repo.WithTx(ctx, func(tx pgx.Tx) error {
		for pos, id := range ids {
			result, err := tx.Exec(ctx,
				`UPDATE plan_faqs SET position = $3 WHERE id = $1 AND plan_id = $2`, id, planID, pos)
			if err != nil {
				return fmt.Errorf("failed to reorder faq %d: %w", id, err)
			}
			if result.RowsAffected() == 0 {
				return ErrNotFound
			}
		}
		return nil
	})
}

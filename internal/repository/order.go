package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/myfreehouseplans/catalog/internal/model"
)

// OrderPage is one page of orders.
type OrderPage struct {
	Orders  []*model.Order
	Total   int64
	Page    int
	PerPage int
}

// Pages is the number of pages.
func (p OrderPage) Pages() int {
	return Pages(p.Total, p.PerPage)
}

// OrderStats summarises sales for the dashboard.
type OrderStats struct {
	Total     int64
	Completed int64
	Refunded  int64
	Revenue   decimal.Decimal
}

// OrderRepository provides database access for orders.
type OrderRepository struct {
	repo *Repository
}

// NewOrderRepository creates a new OrderRepository.
func NewOrderRepository(repo *Repository) *OrderRepository {
	return &OrderRepository{repo: repo}
}

const orderColumns = `
	o.id, o.order_number, o.user_id, o.plan_id, o.pack, o.amount, o.status,
	o.payment_method, o.transaction_id, o.billing_email, o.billing_name,
	o.created_at, o.completed_at, COALESCE(p.title, '')`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &o.PlanID, &o.Pack, &o.Amount, &o.Status,
		&o.PaymentMethod, &o.TransactionID, &o.BillingEmail, &o.BillingName,
		&o.CreatedAt, &o.CompletedAt, &o.PlanTitle,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// Create inserts an order.
func (r *OrderRepository) Create(ctx context.Context, o *model.Order) error {
	err := r.repo.pool.QueryRow(ctx, `
		INSERT INTO orders (order_number, user_id, plan_id, pack, amount, status,
			payment_method, transaction_id, billing_email, billing_name, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`,
		o.OrderNumber, o.UserID, o.PlanID, int(o.Pack), o.Amount, string(o.Status),
		o.PaymentMethod, o.TransactionID, o.BillingEmail, o.BillingName, o.CreatedAt, o.CompletedAt,
	).Scan(&o.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateTransaction
		}
		if isForeignKeyViolation(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// GetByTransaction finds an order by payment provider transaction id.
func (r *OrderRepository) GetByTransaction(ctx context.Context, method, transactionID string) (*model.Order, error) {
	o, err := scanOrder(r.repo.pool.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders o LEFT JOIN house_plans p ON p.id = o.plan_id
		WHERE o.payment_method = $1 AND o.transaction_id = $2`, method, transactionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return o, nil
}

// List returns a page of orders, newest first. An empty status lists all.
func (r *OrderRepository) List(ctx context.Context, status model.OrderStatus, page Page) (*OrderPage, error) {
	page = page.Normalize(20, 100)

	var total int64
	if err := r.repo.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM orders WHERE ($1 = '' OR status = $1)`, string(status),
	).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}

	rows, err := r.repo.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders o LEFT JOIN house_plans p ON p.id = o.plan_id
		WHERE ($1 = '' OR o.status = $1)
		ORDER BY o.created_at DESC, o.id DESC
		LIMIT $2 OFFSET $3`, string(status), page.PerPage, page.Offset())
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []*model.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return &OrderPage{Orders: orders, Total: total, Page: page.Number, PerPage: page.PerPage}, nil
}

// UpdateStatus moves an order to status, stamping completion time when completed.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id int64, status model.OrderStatus) error {
	result, err := r.repo.pool.Exec(ctx, `
		UPDATE orders
		SET status = $2,
		    completed_at = CASE WHEN $2 = 'completed' THEN COALESCE(completed_at, NOW()) ELSE completed_at END
		WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats returns order counts and completed revenue.
func (r *OrderRepository) Stats(ctx context.Context) (OrderStats, error) {
	var s OrderStats
	err := r.repo.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'completed'),
		       COUNT(*) FILTER (WHERE status = 'refunded'),
		       COALESCE(SUM(amount) FILTER (WHERE status = 'completed'), 0)
		FROM orders`,
	).Scan(&s.Total, &s.Completed, &s.Refunded, &s.Revenue)
	if err != nil {
		return s, fmt.Errorf("failed to load order stats: %w", err)
	}
	return s, nil
}

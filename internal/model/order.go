package model

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusFailed    OrderStatus = "failed"
	OrderStatusRefunded  OrderStatus = "refunded"
)

// IsValid reports whether s is a known status.
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusCompleted, OrderStatusFailed, OrderStatusRefunded:
		return true
	}
	return false
}

// Order records a sale of a plan pack.
type Order struct {
	ID            int64           `json:"id"`
	OrderNumber   string          `json:"order_number"`
	UserID        *int64          `json:"user_id,omitempty"`
	PlanID        int64           `json:"plan_id"`
	Pack          Pack            `json:"pack"`
	Amount        decimal.Decimal `json:"amount"`
	Status        OrderStatus     `json:"status"`
	PaymentMethod string          `json:"payment_method"`
	TransactionID string          `json:"transaction_id"`
	BillingEmail  string          `json:"billing_email"`
	BillingName   string          `json:"billing_name,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`

	// PlanTitle is joined in by listing queries.
	PlanTitle string `json:"plan_title,omitempty"`
}

// NewOrderNumber returns a unique, time sortable order number.
func NewOrderNumber(now time.Time) string {
	id := ulid.MustNew(ulid.Timestamp(now), rand.Reader)
	return "ORD-" + strings.ToUpper(id.String())
}

// MarkCompleted completes the order at now.
func (o *Order) MarkCompleted(now time.Time) {
	o.Status = OrderStatusCompleted
	o.CompletedAt = &now
}

// MarkRefunded flags the order as refunded.
func (o *Order) MarkRefunded() {
	o.Status = OrderStatusRefunded
}

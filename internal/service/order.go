package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/myfreehouseplans/catalog/internal/auth"
	"github.com/myfreehouseplans/catalog/internal/metrics"
	"github.com/myfreehouseplans/catalog/internal/model"
	"github.com/myfreehouseplans/catalog/internal/repository"
)

// PaymentMethodGumroad marks orders recorded from Gumroad pings.
const PaymentMethodGumroad = "gumroad"

// GumroadPing is the subset of the Gumroad sale ping the catalog uses.
type GumroadPing struct {
	SaleID           string
	ProductPermalink string
	Permalink        string
	PriceCents       int64
	Email            string
	FullName         string
	Refunded         bool
	Test             bool
}

// OrderService lists orders and records Gumroad sales.
type OrderService struct {
	orders       OrderStore
	plans        PlanStore
	webhookToken string
	perPage      int
	logger       *slog.Logger
	metrics      metrics.Recorder
	now          func() time.Time
}

// NewOrderService creates a new OrderService. An empty webhookToken rejects every ping.
func NewOrderService(orders OrderStore, plans PlanStore, webhookToken string, perPage int, logger *slog.Logger, recorder metrics.Recorder) *OrderService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &OrderService{
		orders:       orders,
		plans:        plans,
		webhookToken: webhookToken,
		perPage:      perPage,
		logger:       logger.With("component", "service.order"),
		metrics:      recorder,
		now:          time.Now,
	}
}

// List returns a page of orders, optionally filtered by status.
func (s *OrderService) List(ctx context.Context, status model.OrderStatus, page int) (*repository.OrderPage, error) {
	if status != "" && !status.IsValid() {
		status = ""
	}
	result, err := s.orders.List(ctx, status, repository.Page{Number: page, PerPage: s.perPage})
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return result, nil
}

// Stats returns order counts and revenue.
func (s *OrderService) Stats(ctx context.Context) (repository.OrderStats, error) {
	stats, err := s.orders.Stats(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to load order stats: %w", err)
	}
	return stats, nil
}

// RecordGumroadSale stores the order behind a Gumroad ping. Pings are
// idempotent on the sale id; a refunded ping marks the known order refunded.
func (s *OrderService) RecordGumroadSale(ctx context.Context, token string, ping GumroadPing) (*model.Order, error) {
	if s.webhookToken == "" || !auth.TokensEqual(token, s.webhookToken) {
		return nil, ErrInvalidWebhookToken
	}
	ping.SaleID = strings.TrimSpace(ping.SaleID)
	if ping.SaleID == "" {
		return nil, fieldError("sale_id", "This field is required.")
	}

	existing, err := s.orders.GetByTransaction(ctx, PaymentMethodGumroad, ping.SaleID)
	switch {
	case err == nil:
		return s.replay(ctx, existing, ping)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("failed to look up sale: %w", err)
	}

	permalink := GumroadPermalink(ping.ProductPermalink)
	if permalink == "" {
		permalink = strings.TrimSpace(ping.Permalink)
	}
	if permalink == "" {
		s.metrics.IncGumroadSale("unmatched")
		return nil, ErrPlanNotFound
	}
	plan, pack, err := s.plans.FindByGumroadPermalink(ctx, permalink)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.IncGumroadSale("unmatched")
			s.logger.Warn("gumroad sale for unknown product", "sale_id", ping.SaleID, "permalink", permalink)
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("failed to match plan: %w", err)
	}

	now := s.now().UTC()
	order := &model.Order{
		OrderNumber:   model.NewOrderNumber(now),
		PlanID:        plan.ID,
		Pack:          pack,
		Amount:        decimal.New(ping.PriceCents, -2),
		PaymentMethod: PaymentMethodGumroad,
		TransactionID: ping.SaleID,
		BillingEmail:  strings.TrimSpace(ping.Email),
		BillingName:   strings.TrimSpace(ping.FullName),
		CreatedAt:     now,
		PlanTitle:     plan.Title,
	}
	order.MarkCompleted(now)
	status := "completed"
	if ping.Refunded {
		order.MarkRefunded()
		status = "refunded"
	}

	if err := s.orders.Create(ctx, order); err != nil {
		if errors.Is(err, repository.ErrDuplicateTransaction) {
			// A concurrent ping stored the sale first.
			existing, getErr := s.orders.GetByTransaction(ctx, PaymentMethodGumroad, ping.SaleID)
			if getErr != nil {
				return nil, fmt.Errorf("failed to load concurrent sale: %w", getErr)
			}
			return s.replay(ctx, existing, ping)
		}
		return nil, fmt.Errorf("failed to store order: %w", err)
	}

	s.metrics.IncGumroadSale(status)
	s.logger.Info("gumroad sale recorded",
		"order_number", order.OrderNumber,
		"plan_id", plan.ID,
		"pack", int(pack),
		"amount", order.Amount.StringFixed(2),
		"test", ping.Test,
	)
	return order, nil
}

// replay handles a ping for a sale that is already stored.
func (s *OrderService) replay(ctx context.Context, order *model.Order, ping GumroadPing) (*model.Order, error) {
	if !ping.Refunded || order.Status == model.OrderStatusRefunded {
		s.metrics.IncGumroadSale("duplicate")
		return order, nil
	}
	if err := s.orders.UpdateStatus(ctx, order.ID, model.OrderStatusRefunded); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to refund order: %w", err)
	}
	order.MarkRefunded()
	s.metrics.IncGumroadSale("refunded")
	s.logger.Info("gumroad sale refunded", "order_number", order.OrderNumber)
	return order, nil
}

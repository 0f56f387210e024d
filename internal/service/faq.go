package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/myfreehouseplans/catalog/internal/model"
	"github.com/myfreehouseplans/catalog/internal/repository"
)

// FAQInput is the FAQ form of a plan.
type FAQInput struct {
	Question    string `form:"question" validate:"required,max=300"`
	Answer      string `form:"answer" validate:"required,max=5000"`
	PackContext string `form:"pack_context" validate:"omitempty,oneof=free pro ultimate"`
	Position    int    `form:"position" validate:"gte=0"`
}

// FAQService manages the questions shown on a plan page.
type FAQService struct {
	store  FAQStore
	plans  PlanStore
	logger *slog.Logger
}

// NewFAQService creates a new FAQService.
func NewFAQService(store FAQStore, plans PlanStore, logger *slog.Logger) *FAQService {
	return &FAQService{
		store:  store,
		plans:  plans,
		logger: logger.With("component", "service.faq"),
	}
}

// List returns the FAQs of a plan in display order.
func (s *FAQService) List(ctx context.Context, planID int64) ([]*model.PlanFAQ, error) {
	if _, err := s.plan(ctx, planID); err != nil {
		return nil, err
	}
	faqs, err := s.store.ListByPlan(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to list faqs: %w", err)
	}
	return faqs, nil
}

// Get loads one FAQ of a plan.
func (s *FAQService) Get(ctx context.Context, planID, id int64) (*model.PlanFAQ, error) {
	f, err := s.store.Get(ctx, planID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrFAQNotFound
		}
		return nil, fmt.Errorf("failed to load faq: %w", err)
	}
	return f, nil
}

// Create appends an FAQ to a plan.
func (s *FAQService) Create(ctx context.Context, planID int64, in FAQInput) (*model.PlanFAQ, error) {
	in = normalizeFAQ(in)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if _, err := s.plan(ctx, planID); err != nil {
		return nil, err
	}

	f := &model.PlanFAQ{
		PlanID:      planID,
		Question:    in.Question,
		Answer:      in.Answer,
		PackContext: in.PackContext,
		Position:    in.Position,
	}
	if err := s.store.Create(ctx, f); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("failed to create faq: %w", err)
	}
	return f, nil
}

// Update rewrites an FAQ.
func (s *FAQService) Update(ctx context.Context, planID, id int64, in FAQInput) (*model.PlanFAQ, error) {
	in = normalizeFAQ(in)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	f, err := s.Get(ctx, planID, id)
	if err != nil {
		return nil, err
	}
	f.Question = in.Question
	f.Answer = in.Answer
	f.PackContext = in.PackContext
	f.Position = in.Position

	if err := s.store.Update(ctx, f); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrFAQNotFound
		}
		return nil, fmt.Errorf("failed to update faq: %w", err)
	}
	return f, nil
}

// Delete removes an FAQ.
func (s *FAQService) Delete(ctx context.Context, planID, id int64) error {
	if err := s.store.Delete(ctx, planID, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrFAQNotFound
		}
		return fmt.Errorf("failed to delete faq: %w", err)
	}
	s.logger.Info("faq deleted", "plan_id", planID, "faq_id", id)
	return nil
}

// Reorder stores a new display order. ids must all belong to the plan.
func (s *FAQService) Reorder(ctx context.Context, planID int64, ids []int64) error {
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return fieldError("order", "Each question may appear once.")
		}
		seen[id] = true
	}
	if err := s.store.Reorder(ctx, planID, ids); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrFAQNotFound
		}
		return fmt.Errorf("failed to reorder faqs: %w", err)
	}
	return nil
}

func (s *FAQService) plan(ctx context.Context, planID int64) (*model.HousePlan, error) {
	plan, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}
	return plan, nil
}

func normalizeFAQ(in FAQInput) FAQInput {
	in.Question = strings.TrimSpace(in.Question)
	in.Answer = strings.TrimSpace(in.Answer)
	in.PackContext = strings.ToLower(strings.TrimSpace(in.PackContext))
	return in
}

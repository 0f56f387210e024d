package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/myfreehouseplans/catalog/internal/model"
	"github.com/myfreehouseplans/catalog/internal/repository"
	"github.com/myfreehouseplans/catalog/internal/slug"
)

// maxCodeAttempts bounds retries when a concurrent save takes the same reference code.
const maxCodeAttempts = 5

var longFormPolicy = bluemonday.UGCPolicy()

// ErrPublicCodeConflict is returned when neither the derived nor the id based code is free.
var ErrPublicCodeConflict = errors.New("public plan code conflict")

// PlanInput is the editable part of a plan plus its category links.
type PlanInput struct {
	Plan        model.HousePlan
	CategoryIDs []int64
}

type planRules struct {
	Title            string `form:"title" validate:"required,max=200"`
	Description      string `form:"description" validate:"required"`
	ShortDescription string `form:"short_description" validate:"max=300"`
	PlanType         string `form:"plan_type" validate:"omitempty,oneof=family rental luxury"`
	Complexity       string `form:"construction_complexity" validate:"omitempty,oneof=low medium high"`
	RoofType         string `form:"roof_type" validate:"max=100"`
	StructureType    string `form:"structure_type" validate:"max=100"`
	FoundationType   string `form:"foundation_type" validate:"max=100"`
	SEOTitle         string `form:"seo_title" validate:"max=200"`
	SEODescription   string `form:"seo_description" validate:"max=500"`
	SEOKeywords      string `form:"seo_keywords" validate:"max=500"`
}

// PlanService handles admin side plan management.
type PlanService struct {
	plans  PlanStore
	cache  PlanCache
	logger *slog.Logger
	now    func() time.Time
}

// NewPlanService creates a new PlanService. cache may be nil for offline tools.
func NewPlanService(plans PlanStore, cache PlanCache, logger *slog.Logger) *PlanService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlanService{
		plans:  plans,
		cache:  cache,
		logger: logger.With("component", "service.plan"),
		now:    time.Now,
	}
}

// ValidatePlan checks the form rules of a plan.
func ValidatePlan(p *model.HousePlan) error {
	rules := planRules{
		Title:            p.Title,
		Description:      p.Description,
		ShortDescription: p.ShortDescription,
		PlanType:         string(p.PlanType),
		Complexity:       string(p.ConstructionComplexity),
		RoofType:         p.RoofType,
		StructureType:    p.StructureType,
		FoundationType:   p.FoundationType,
		SEOTitle:         p.SEOTitle,
		SEODescription:   p.SEODescription,
		SEOKeywords:      p.SEOKeywords,
	}

	fields := map[string]string{}
	if p.PricePack1.IsNegative() {
		fields["price_pack_1"] = "Price cannot be negative."
	}
	if p.PricePack2 != nil && p.PricePack2.IsNegative() {
		fields["price_pack_2"] = "Price cannot be negative."
	}
	if p.PricePack3 != nil && p.PricePack3.IsNegative() {
		fields["price_pack_3"] = "Price cannot be negative."
	}
	if p.Price.IsNegative() {
		fields["price"] = "Price cannot be negative."
	}
	if p.SalePrice != nil && p.SalePrice.IsNegative() {
		fields["sale_price"] = "Price cannot be negative."
	}
	if p.EstimatedCostLow != nil && p.EstimatedCostHigh != nil && p.EstimatedCostLow.GreaterThan(*p.EstimatedCostHigh) {
		fields["estimated_cost_low"] = "Low estimate must not exceed the high estimate."
	}
	if p.GumroadPack2URL != "" && !IsAllowedGumroadURL(p.GumroadPack2URL) {
		fields["gumroad_pack_2_url"] = "Use an http(s) Gumroad link."
	}
	if p.GumroadPack3URL != "" && !IsAllowedGumroadURL(p.GumroadPack3URL) {
		fields["gumroad_pack_3_url"] = "Use an http(s) Gumroad link."
	}

	var extra error
	if len(fields) > 0 {
		extra = &ValidationError{Fields: fields}
	}
	return mergeValidation(validateStruct(rules), extra)
}

// Create stores a new plan with a fresh slug, reference code and public code.
func (s *PlanService) Create(ctx context.Context, in PlanInput, creatorID *int64) (*model.HousePlan, error) {
	plan := in.Plan
	plan.ID = 0
	plan.PublicPlanCode = ""
	plan.CreatedByID = creatorID
	plan.ViewsCount = 0

	if err := ValidatePlan(&plan); err != nil {
		return nil, err
	}
	sanitizePlanHTML(&plan)
	if plan.ShortDescription == "" {
		plan.ShortDescription = model.AutoShortDescription(plan.Description)
	}

	year := s.now().Year()
	for attempt := 1; ; attempt++ {
		var err error
		plan.Slug, err = s.uniqueSlug(ctx, plan.Title, 0)
		if err != nil {
			return nil, err
		}
		seq, err := s.plans.NextReferenceSequence(ctx, year)
		if err != nil {
			return nil, fmt.Errorf("failed to allocate reference code: %w", err)
		}
		plan.ReferenceCode = model.ReferenceCode(seq, year)

		err = s.plans.Create(ctx, &plan, in.CategoryIDs)
		if err == nil {
			break
		}
		retryable := errors.Is(err, repository.ErrDuplicateCode) || errors.Is(err, repository.ErrDuplicateSlug)
		if !retryable || attempt >= maxCodeAttempts {
			return nil, fmt.Errorf("failed to create plan: %w", err)
		}
		s.logger.Debug("plan save raced, retrying", "attempt", attempt, "error", err)
	}

	if err := s.assignPublicCode(ctx, &plan); err != nil {
		// The plan is saved; a missing public code is repaired by backfill.
		s.logger.Warn("failed to assign public code", "plan_id", plan.ID, "error", err)
	}
	s.invalidate(ctx, plan.Slug)

	s.logger.Info("plan created", "plan_id", plan.ID, "reference", plan.ReferenceCode)
	return &plan, nil
}

// Update rewrites a plan. A changed title yields a new slug.
func (s *PlanService) Update(ctx context.Context, id int64, in PlanInput) (*model.HousePlan, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	plan := in.Plan
	plan.ID = existing.ID
	plan.ReferenceCode = existing.ReferenceCode
	plan.PublicPlanCode = existing.PublicPlanCode
	plan.Slug = existing.Slug
	plan.ViewsCount = existing.ViewsCount
	plan.CreatedByID = existing.CreatedByID
	plan.CreatedAt = existing.CreatedAt

	if err := ValidatePlan(&plan); err != nil {
		return nil, err
	}
	sanitizePlanHTML(&plan)
	if plan.ShortDescription == "" {
		plan.ShortDescription = model.AutoShortDescription(plan.Description)
	}
	if plan.Title != existing.Title {
		if plan.Slug, err = s.uniqueSlug(ctx, plan.Title, plan.ID); err != nil {
			return nil, err
		}
	}

	if err := s.plans.Update(ctx, &plan, in.CategoryIDs); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		if errors.Is(err, repository.ErrDuplicateSlug) {
			return nil, fieldError("title", "Another plan already uses this title.")
		}
		return nil, fmt.Errorf("failed to update plan: %w", err)
	}

	if plan.PublicPlanCode == "" {
		if err := s.assignPublicCode(ctx, &plan); err != nil {
			s.logger.Warn("failed to assign public code", "plan_id", plan.ID, "error", err)
		}
	}

	s.invalidate(ctx, existing.Slug, plan.Slug)
	return &plan, nil
}

// Delete removes a plan. Plans with orders cannot be deleted.
func (s *PlanService) Delete(ctx context.Context, id int64) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.plans.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return ErrPlanNotFound
		case errors.Is(err, repository.ErrInUse):
			return ErrPlanInUse
		}
		return fmt.Errorf("failed to delete plan: %w", err)
	}
	s.invalidate(ctx, existing.Slug)
	s.logger.Info("plan deleted", "plan_id", id)
	return nil
}

// Get loads a plan for the admin, published or not.
func (s *PlanService) Get(ctx context.Context, id int64) (*model.HousePlan, error) {
	plan, err := s.plans.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}
	return plan, nil
}

// List returns a page of plans for the admin table.
func (s *PlanService) List(ctx context.Context, filter repository.PlanFilter) (*repository.PlanPage, error) {
	filter.PublishedOnly = false
	page, err := s.plans.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return page, nil
}

// TogglePublish flips publication and returns the new state.
func (s *PlanService) TogglePublish(ctx context.Context, id int64) (bool, error) {
	plan, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	next := !plan.IsPublished
	if err := s.plans.SetPublished(ctx, id, next); err != nil {
		return false, fmt.Errorf("failed to toggle publish: %w", err)
	}
	s.invalidate(ctx, plan.Slug)
	return next, nil
}

// ToggleFeatured flips the featured flag and returns the new state.
func (s *PlanService) ToggleFeatured(ctx context.Context, id int64) (bool, error) {
	plan, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	next := !plan.IsFeatured
	if err := s.plans.SetFeatured(ctx, id, next); err != nil {
		return false, fmt.Errorf("failed to toggle featured: %w", err)
	}
	s.invalidate(ctx, plan.Slug)
	return next, nil
}

// BackfillResult summarises a public code backfill.
type BackfillResult struct {
	Assigned  map[int64]string
	Conflicts []string
}

// BackfillPublicCodes assigns codes to every plan missing one.
// With dryRun set nothing is written.
func (s *PlanService) BackfillPublicCodes(ctx context.Context, dryRun bool) (*BackfillResult, error) {
	plans, err := s.plans.ListMissingPublicCodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans without codes: %w", err)
	}

	result := &BackfillResult{Assigned: make(map[int64]string, len(plans))}
	for _, plan := range plans {
		code, err := s.freePublicCode(ctx, plan)
		if err != nil {
			if errors.Is(err, ErrPublicCodeConflict) {
				result.Conflicts = append(result.Conflicts, fmt.Sprintf("plan %d: %v", plan.ID, err))
				continue
			}
			return result, err
		}
		if !dryRun {
			if err := s.plans.SetPublicCode(ctx, plan.ID, code); err != nil {
				if errors.Is(err, repository.ErrDuplicateCode) {
					result.Conflicts = append(result.Conflicts, fmt.Sprintf("plan %d: %s taken", plan.ID, code))
					continue
				}
				return result, fmt.Errorf("failed to set public code: %w", err)
			}
			s.invalidate(ctx, plan.Slug)
		}
		result.Assigned[plan.ID] = code
	}
	return result, nil
}

func (s *PlanService) assignPublicCode(ctx context.Context, plan *model.HousePlan) error {
	code, err := s.freePublicCode(ctx, plan)
	if err != nil {
		return err
	}
	if err := s.plans.SetPublicCode(ctx, plan.ID, code); err != nil {
		return fmt.Errorf("failed to set public code: %w", err)
	}
	plan.PublicPlanCode = code
	return nil
}

// freePublicCode tries the code derived from the reference, then the id based code.
func (s *PlanService) freePublicCode(ctx context.Context, plan *model.HousePlan) (string, error) {
	candidates := []string{
		model.DerivePublicCode(plan.ReferenceCode, plan.ID),
		model.DerivePublicCode("", plan.ID),
	}
	for _, code := range candidates {
		taken, err := s.plans.PublicCodeExists(ctx, code, plan.ID)
		if err != nil {
			return "", fmt.Errorf("failed to check public code: %w", err)
		}
		if !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("%w: %s and %s are taken", ErrPublicCodeConflict, candidates[0], candidates[1])
}

func (s *PlanService) uniqueSlug(ctx context.Context, title string, excludeID int64) (string, error) {
	out, err := slug.Unique(ctx, slug.Make(title), func(ctx context.Context, candidate string) (bool, error) {
		return s.plans.SlugExists(ctx, candidate, excludeID)
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate slug: %w", err)
	}
	return out, nil
}

// sanitizePlanHTML cleans the fields rendered as HTML on the plan page.
func sanitizePlanHTML(p *model.HousePlan) {
	for _, field := range []*string{
		&p.Description,
		&p.MainFeatures,
		&p.RoomDetails,
		&p.ConstructionNotes,
		&p.DesignPhilosophy,
		&p.LifestyleSuitability,
		&p.CustomizationPotential,
	} {
		*field = longFormPolicy.Sanitize(*field)
	}
}

func (s *PlanService) invalidate(ctx context.Context, slugs ...string) {
	if s.cache == nil {
		return
	}
	for _, sl := range slugs {
		if sl == "" {
			continue
		}
		if err := s.cache.InvalidatePlan(ctx, sl); err != nil {
			s.logger.Warn("failed to invalidate plan cache", "slug", sl, "error", err)
		}
	}
}

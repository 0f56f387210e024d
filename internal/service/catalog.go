package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/myfreehouseplans/catalog/internal/cache"
	"github.com/myfreehouseplans/catalog/internal/metrics"
	"github.com/myfreehouseplans/catalog/internal/model"
	"github.com/myfreehouseplans/catalog/internal/repository"
)

// Public page sizes.
const (
	HomeFeaturedLimit = 6
	HomeRecentLimit   = 8
	RelatedPlansLimit = 4
)

// VisibilitySource supplies the site-wide pack switches.
type VisibilitySource interface {
	PackVisibility(ctx context.Context) model.PackVisibility
}

// CatalogConfig holds the public catalog settings.
type CatalogConfig struct {
	PlansPerPage int
	PlanCacheTTL time.Duration
	ProtectedDir string
}

// CatalogService serves the public plan pages.
type CatalogService struct {
	plans      PlanStore
	categories CategoryStore
	faqs       FAQStore
	cache      PlanCache
	visibility VisibilitySource
	cfg        CatalogConfig
	logger     *slog.Logger
	metrics    metrics.Recorder
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(
	plans PlanStore,
	categories CategoryStore,
	faqs FAQStore,
	planCache PlanCache,
	visibility VisibilitySource,
	cfg CatalogConfig,
	logger *slog.Logger,
	recorder metrics.Recorder,
) *CatalogService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if cfg.PlansPerPage <= 0 {
		cfg.PlansPerPage = 12
	}
	if cfg.PlanCacheTTL <= 0 {
		cfg.PlanCacheTTL = cache.DefaultPlanTTL
	}
	return &CatalogService{
		plans:      plans,
		categories: categories,
		faqs:       faqs,
		cache:      planCache,
		visibility: visibility,
		cfg:        cfg,
		logger:     logger.With("component", "service.catalog"),
		metrics:    recorder,
	}
}

// HomePage is the data of the landing page.
type HomePage struct {
	Featured   []*model.HousePlan
	Recent     []*model.HousePlan
	Categories []*model.Category
}

// Home loads featured plans, recent plans and categories in parallel.
func (s *CatalogService) Home(ctx context.Context) (*HomePage, error) {
	var page HomePage
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		page.Featured, err = s.plans.Featured(gctx, HomeFeaturedLimit)
		return err
	})
	g.Go(func() error {
		var err error
		page.Recent, err = s.plans.Recent(gctx, HomeRecentLimit)
		return err
	})
	g.Go(func() error {
		var err error
		page.Categories, err = s.categories.List(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load home page: %w", err)
	}
	return &page, nil
}

// BrowsePage is one page of the public listing.
type BrowsePage struct {
	*repository.PlanPage
	Category   *model.Category
	Categories []*model.Category
	Filter     repository.PlanFilter
}

// Browse lists published plans matching filter.
func (s *CatalogService) Browse(ctx context.Context, filter repository.PlanFilter) (*BrowsePage, error) {
	filter.PublishedOnly = true
	filter.Page.PerPage = s.cfg.PlansPerPage

	var (
		page       BrowsePage
		categories []*model.Category
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		page.PlanPage, err = s.plans.List(gctx, filter)
		return err
	})
	g.Go(func() error {
		var err error
		categories, err = s.categories.List(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to browse plans: %w", err)
	}

	page.Categories = categories
	page.Filter = filter
	if filter.CategorySlug != "" {
		for _, c := range categories {
			if c.Slug == filter.CategorySlug {
				page.Category = c
				break
			}
		}
		if page.Category == nil {
			return nil, ErrCategoryNotFound
		}
	}
	return &page, nil
}

// Category lists published plans of one category.
func (s *CatalogService) Category(ctx context.Context, categorySlug string, filter repository.PlanFilter) (*BrowsePage, error) {
	filter.CategorySlug = categorySlug
	return s.Browse(ctx, filter)
}

// PlanDetail is everything the plan page renders.
type PlanDetail struct {
	Plan          *model.HousePlan
	Tiers         []model.PackTier
	StartingPrice *decimal.Decimal
	Related       []*model.HousePlan
	FAQs          []model.PlanFAQ
	DefaultFAQs   bool
	Visibility    model.PackVisibility
}

// PlanDetail loads a published plan by slug, counting the view.
func (s *CatalogService) PlanDetail(ctx context.Context, slug string) (*PlanDetail, error) {
	plan, err := s.publishedPlan(ctx, slug)
	if err != nil {
		return nil, err
	}

	var (
		related []*model.HousePlan
		faqs    []*model.PlanFAQ
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		related, err = s.plans.Related(gctx, plan, RelatedPlansLimit)
		return err
	})
	g.Go(func() error {
		var err error
		faqs, err = s.faqs.ListByPlan(gctx, plan.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load plan page: %w", err)
	}

	visibility := s.visibility.PackVisibility(ctx)
	detail := &PlanDetail{
		Plan:       plan,
		Related:    related,
		Visibility: visibility,
	}
	tiers := plan.PricingTiers()
	detail.Tiers = visibility.FilterTiers(tiers)
	detail.StartingPrice = visibility.VisibleStartingPrice(tiers)
	detail.FAQs = visibleFAQs(faqs, visibility)
	if len(detail.FAQs) == 0 {
		detail.FAQs = plan.DefaultFAQs()
		detail.DefaultFAQs = true
	}

	s.metrics.IncPlanView()
	if err := s.cache.IncrementViews(ctx, plan.ID); err != nil {
		s.logger.Warn("failed to count plan view", "plan_id", plan.ID, "error", err)
	}
	return detail, nil
}

// visibleFAQs drops questions tied to a hidden pack.
func visibleFAQs(faqs []*model.PlanFAQ, v model.PackVisibility) []model.PlanFAQ {
	out := make([]model.PlanFAQ, 0, len(faqs))
	for _, f := range faqs {
		if f.PackContext != "" {
			hidden := false
			for _, p := range []model.Pack{model.PackFree, model.PackPro, model.PackUltimate} {
				if p.FAQContext() == f.PackContext && !v.IsActive(p) {
					hidden = true
				}
			}
			if hidden {
				continue
			}
		}
		out = append(out, *f)
	}
	return out
}

// publishedPlan reads through the plan cache, remembering misses briefly.
func (s *CatalogService) publishedPlan(ctx context.Context, slug string) (*model.HousePlan, error) {
	cached, err := s.cache.GetPlan(ctx, slug)
	if err == nil {
		s.metrics.IncPlanCacheHit()
		return cached, nil
	}
	if errors.Is(err, cache.ErrCacheMiss) {
		s.metrics.IncPlanCacheMiss()
		if negative, _ := s.cache.IsNegativelyCached(ctx, slug); negative {
			return nil, ErrPlanNotFound
		}
	} else {
		s.logger.Warn("plan cache unavailable", "slug", slug, "error", err)
	}

	plan, err := s.plans.GetBySlug(ctx, slug, true)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_ = s.cache.SetNegativeCache(ctx, slug)
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}

	if err := s.cache.SetPlan(ctx, plan, s.cfg.PlanCacheTTL); err != nil {
		s.logger.Warn("failed to cache plan", "slug", slug, "error", err)
	}
	return plan, nil
}

// PlanByCode finds a published plan by its public MFP code.
func (s *CatalogService) PlanByCode(ctx context.Context, code string) (*model.HousePlan, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !model.PublicCodePattern.MatchString(code) {
		return nil, ErrPlanNotFound
	}
	plan, err := s.plans.GetByPublicCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("failed to load plan by code: %w", err)
	}
	if !plan.IsPublished {
		return nil, ErrPlanNotFound
	}
	return plan, nil
}

// PlanCard is the compact plan view used by the filter endpoint.
type PlanCard struct {
	ID               int64            `json:"id"`
	Title            string           `json:"title"`
	Slug             string           `json:"slug"`
	URL              string           `json:"url"`
	Code             string           `json:"code"`
	ImageURL         string           `json:"image_url,omitempty"`
	ShortDescription string           `json:"short_description,omitempty"`
	StartingPrice    *decimal.Decimal `json:"starting_price,omitempty"`
	AreaM2           *float64         `json:"area_m2,omitempty"`
	AreaSqft         *float64         `json:"area_sqft,omitempty"`
	Bedrooms         *int             `json:"bedrooms,omitempty"`
	Bathrooms        *float64         `json:"bathrooms,omitempty"`
	Floors           *int             `json:"floors,omitempty"`
	IsFeatured       bool             `json:"is_featured"`
}

// FilterResult is the JSON body of the filter endpoint, minus the rendered HTML.
type FilterResult struct {
	Plans []PlanCard         `json:"plans"`
	Total int64              `json:"total"`
	Page  int                `json:"page"`
	Pages int                `json:"pages"`
	Raw   []*model.HousePlan `json:"-"`
}

// FilterJSON runs a listing query for the client side filters.
func (s *CatalogService) FilterJSON(ctx context.Context, filter repository.PlanFilter) (*FilterResult, error) {
	filter.PublishedOnly = true
	filter.Page.PerPage = s.cfg.PlansPerPage

	page, err := s.plans.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to filter plans: %w", err)
	}

	visibility := s.visibility.PackVisibility(ctx)
	result := &FilterResult{
		Plans: make([]PlanCard, 0, len(page.Plans)),
		Total: page.Total,
		Page:  page.Page,
		Pages: page.Pages(),
		Raw:   page.Plans,
	}
	for _, p := range page.Plans {
		result.Plans = append(result.Plans, NewPlanCard(p, visibility))
	}
	return result, nil
}

// NewPlanCard projects a plan onto its card view.
func NewPlanCard(p *model.HousePlan, v model.PackVisibility) PlanCard {
	price := v.VisibleStartingPrice(p.PricingTiers())
	if price == nil {
		price = p.StartingPaidPrice()
	}
	return PlanCard{
		ID:               p.ID,
		Title:            p.Title,
		Slug:             p.Slug,
		URL:              "/plan/" + p.Slug,
		Code:             p.DisplayCode(),
		ImageURL:         p.ImageURL(),
		ShortDescription: p.ShortDescription,
		StartingPrice:    price,
		AreaM2:           p.AreaM2(),
		AreaSqft:         p.AreaSqft(),
		Bedrooms:         p.BedroomCount(),
		Bathrooms:        p.BathroomCount(),
		Floors:           p.FloorCount(),
		IsFeatured:       p.IsFeatured,
	}
}

// GumroadURL returns the checkout link for a paid pack of a published plan.
func (s *CatalogService) GumroadURL(ctx context.Context, slug string, pack model.Pack) (string, error) {
	if !pack.IsPaid() {
		return "", ErrInvalidPack
	}
	plan, err := s.publishedPlan(ctx, slug)
	if err != nil {
		return "", err
	}
	if !s.visibility.PackVisibility(ctx).IsActive(pack) {
		return "", ErrPackUnavailable
	}

	target := plan.GumroadURL(pack)
	if target == "" {
		return "", ErrPackUnavailable
	}
	if !IsAllowedGumroadURL(target) {
		s.logger.Warn("blocked non-Gumroad redirect", "plan_id", plan.ID, "pack", int(pack))
		return "", ErrDisallowedURL
	}

	s.metrics.IncGumroadRedirect()
	return target, nil
}

// FreeDownload resolves the protected path of a plan's free PDF.
func (s *CatalogService) FreeDownload(ctx context.Context, planID int64) (string, error) {
	plan, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrPlanNotFound
		}
		return "", fmt.Errorf("failed to load plan: %w", err)
	}
	if !plan.IsPublished || !plan.HasFreeDownload() {
		return "", ErrNoFreeFile
	}
	if !s.visibility.PackVisibility(ctx).IsActive(model.PackFree) {
		return "", ErrNoFreeFile
	}

	path, err := ProtectedPath(s.cfg.ProtectedDir, plan.FreePDFFile)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", ErrNoFreeFile
	}
	return path, nil
}

// ProtectedPath joins rel onto base, refusing paths that escape base.
func ProtectedPath(base, rel string) (string, error) {
	if rel == "" || filepath.IsAbs(rel) {
		return "", ErrUnsafePath
	}
	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("failed to resolve download folder: %w", err)
	}
	full := filepath.Join(absBase, filepath.FromSlash(rel))
	inside, err := filepath.Rel(absBase, full)
	if err != nil || inside == ".." || strings.HasPrefix(inside, ".."+string(filepath.Separator)) || inside == "." {
		return "", ErrUnsafePath
	}
	return full, nil
}

//go:build integration

package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/myfreehouseplans/catalog/internal/model"
	"github.com/myfreehouseplans/catalog/internal/testutil"
)

// ============================================================================
// Repository Integration Tests
// ============================================================================

func newTestRepository(t *testing.T) (context.Context, *Repository) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	dbURL := testutil.RequireEnv(t, "TEST_DATABASE_URL")

	repo, err := New(ctx, dbURL, PoolOptions{})
	if err != nil {
		t.Fatalf("create repository: %v", err)
	}
	t.Cleanup(repo.Close)

	unlock, err := testutil.AcquireDBLock(ctx, repo.Pool())
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_ = unlock()
	})

	if err := testutil.ResetSchema(ctx, repo.Pool()); err != nil {
		t.Fatalf("reset schema: %v", err)
	}
	return ctx, repo
}

func TestIntegrationPlanRepository_CreateAndGet(t *testing.T) {
	ctx, repo := newTestRepository(t)
	plans := NewPlanRepository(repo)
	categories := NewCategoryRepository(repo)

	cat := &model.Category{Name: "Modern", Slug: "modern"}
	if err := categories.Create(ctx, cat); err != nil {
		t.Fatalf("create category: %v", err)
	}

	plan := testutil.NewTestPlan(t, "Courtyard House")
	if err := plans.Create(ctx, plan, []int64{cat.ID}); err != nil {
		t.Fatalf("create plan: %v", err)
	}
	if plan.ID == 0 || plan.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamps to be set, got %+v", plan)
	}

	loaded, err := plans.GetBySlug(ctx, plan.Slug, true)
	if err != nil {
		t.Fatalf("get by slug: %v", err)
	}
	if loaded.Title != plan.Title || loaded.ReferenceCode != plan.ReferenceCode {
		t.Errorf("loaded plan mismatch: %+v", loaded)
	}
	if loaded.PricePack2 == nil || !loaded.PricePack2.Equal(decimal.NewFromInt(49)) {
		t.Errorf("pack 2 price not round-tripped: %v", loaded.PricePack2)
	}
	if loaded.SalePrice != nil {
		t.Errorf("expected nil sale price, got %v", loaded.SalePrice)
	}
	if len(loaded.Categories) != 1 || loaded.Categories[0].Slug != "modern" {
		t.Errorf("expected modern category, got %+v", loaded.Categories)
	}

	byCode, err := plans.GetByPublicCode(ctx, plan.PublicPlanCode)
	if err != nil {
		t.Fatalf("get by public code: %v", err)
	}
	if byCode.ID != plan.ID {
		t.Errorf("public code lookup returned plan %d, want %d", byCode.ID, plan.ID)
	}

	duplicate := testutil.NewTestPlan(t, "Copy")
	duplicate.Slug = plan.Slug
	if err := plans.Create(ctx, duplicate, nil); !errors.Is(err, ErrDuplicateSlug) {
		t.Errorf("expected ErrDuplicateSlug, got %v", err)
	}
}

func TestIntegrationPlanRepository_UnpublishedHidden(t *testing.T) {
	ctx, repo := newTestRepository(t)
	plans := NewPlanRepository(repo)

	plan := testutil.NewTestPlan(t, "Draft House")
	plan.IsPublished = false
	if err := plans.Create(ctx, plan, nil); err != nil {
		t.Fatalf("create plan: %v", err)
	}

	if _, err := plans.GetBySlug(ctx, plan.Slug, true); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for draft, got %v", err)
	}
	if _, err := plans.GetBySlug(ctx, plan.Slug, false); err != nil {
		t.Errorf("admin lookup should see drafts: %v", err)
	}
}

func TestIntegrationPlanRepository_ListFilters(t *testing.T) {
	ctx, repo := newTestRepository(t)
	plans := NewPlanRepository(repo)

	small := testutil.NewTestPlan(t, "Small Cabin")
	two := 2
	small.NumberOfBedrooms = &two
	small.Price = decimal.NewFromInt(30)

	large := testutil.NewTestPlan(t, "Large Villa")
	five := 5
	large.NumberOfBedrooms = &five
	large.Price = decimal.NewFromInt(300)

	for _, p := range []*model.HousePlan{small, large} {
		if err := plans.Create(ctx, p, nil); err != nil {
			t.Fatalf("create plan: %v", err)
		}
	}

	minBeds := 3
	page, err := plans.List(ctx, PlanFilter{PublishedOnly: true, MinBedrooms: &minBeds})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 1 || page.Plans[0].ID != large.ID {
		t.Errorf("bedroom filter returned %d plans", page.Total)
	}

	page, err = plans.List(ctx, PlanFilter{PublishedOnly: true, Sort: SortPriceLow})
	if err != nil {
		t.Fatalf("list sorted: %v", err)
	}
	if len(page.Plans) != 2 || page.Plans[0].ID != small.ID {
		t.Errorf("price_low should list the cabin first")
	}

	page, err = plans.List(ctx, PlanFilter{Query: "villa"})
	if err != nil {
		t.Fatalf("list query: %v", err)
	}
	if page.Total != 1 {
		t.Errorf("query filter matched %d plans, want 1", page.Total)
	}
}

func TestIntegrationPlanRepository_ReferenceSequence(t *testing.T) {
	ctx, repo := newTestRepository(t)
	plans := NewPlanRepository(repo)

	year := time.Now().Year()
	next, err := plans.NextReferenceSequence(ctx, year)
	if err != nil {
		t.Fatalf("next sequence: %v", err)
	}
	if next != 1 {
		t.Fatalf("expected first sequence to be 1, got %d", next)
	}

	plan := testutil.NewTestPlan(t, "Sequenced")
	plan.ReferenceCode = model.ReferenceCode(7, year)
	if err := plans.Create(ctx, plan, nil); err != nil {
		t.Fatalf("create plan: %v", err)
	}

	next, err = plans.NextReferenceSequence(ctx, year)
	if err != nil {
		t.Fatalf("next sequence: %v", err)
	}
	if next != 8 {
		t.Errorf("expected sequence 8, got %d", next)
	}
}

func TestIntegrationPlanRepository_FindByGumroadPermalink(t *testing.T) {
	ctx, repo := newTestRepository(t)
	plans := NewPlanRepository(repo)

	plan := testutil.NewTestPlan(t, "Gumroad House")
	plan.GumroadPack3URL = "https://store.gumroad.com/l/house-cad"
	if err := plans.Create(ctx, plan, nil); err != nil {
		t.Fatalf("create plan: %v", err)
	}

	found, pack, err := plans.FindByGumroadPermalink(ctx, "house-cad")
	if err != nil {
		t.Fatalf("find by permalink: %v", err)
	}
	if found.ID != plan.ID || pack != model.PackUltimate {
		t.Errorf("got plan %d pack %d, want plan %d pack 3", found.ID, pack, plan.ID)
	}

	checkout := testutil.NewTestPlan(t, "Checkout House")
	checkout.GumroadPack2URL = "https://gum.co/xyz?wanted=true"
	checkout.GumroadPack3URL = "https://store.gumroad.com/l/xyz-cad?option=pdf#buy"
	if err := plans.Create(ctx, checkout, nil); err != nil {
		t.Fatalf("create plan: %v", err)
	}

	for permalink, want := range map[string]model.Pack{"xyz": model.PackPro, "xyz-cad": model.PackUltimate} {
		found, pack, err := plans.FindByGumroadPermalink(ctx, permalink)
		if err != nil {
			t.Fatalf("find %q: %v", permalink, err)
		}
		if found.ID != checkout.ID || pack != want {
			t.Errorf("%s: got plan %d pack %d, want plan %d pack %d", permalink, found.ID, pack, checkout.ID, want)
		}
	}

	if _, _, err := plans.FindByGumroadPermalink(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestIntegrationCategoryRepository_DeleteInUse(t *testing.T) {
	ctx, repo := newTestRepository(t)
	plans := NewPlanRepository(repo)
	categories := NewCategoryRepository(repo)

	cat := &model.Category{Name: "Bungalow", Slug: "bungalow"}
	if err := categories.Create(ctx, cat); err != nil {
		t.Fatalf("create category: %v", err)
	}
	if err := plans.Create(ctx, testutil.NewTestPlan(t, "Bungalow One"), []int64{cat.ID}); err != nil {
		t.Fatalf("create plan: %v", err)
	}

	if err := categories.Delete(ctx, cat.ID); !errors.Is(err, ErrInUse) {
		t.Errorf("expected ErrInUse, got %v", err)
	}

	list, err := categories.List(ctx)
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	if len(list) != 1 || list[0].PlanCount != 1 {
		t.Errorf("expected one category with one plan, got %+v", list)
	}
}

func TestIntegrationOrderRepository_DuplicateTransaction(t *testing.T) {
	ctx, repo := newTestRepository(t)
	plans := NewPlanRepository(repo)
	orders := NewOrderRepository(repo)

	plan := testutil.NewTestPlan(t, "Sold House")
	if err := plans.Create(ctx, plan, nil); err != nil {
		t.Fatalf("create plan: %v", err)
	}

	now := time.Now().UTC()
	order := &model.Order{
		OrderNumber:   model.NewOrderNumber(now),
		PlanID:        plan.ID,
		Pack:          model.PackPro,
		Amount:        decimal.RequireFromString("49.00"),
		Status:        model.OrderStatusCompleted,
		PaymentMethod: "gumroad",
		TransactionID: "sale-1",
		BillingEmail:  "buyer@example.com",
		CreatedAt:     now,
		CompletedAt:   &now,
	}
	if err := orders.Create(ctx, order); err != nil {
		t.Fatalf("create order: %v", err)
	}

	again := *order
	again.OrderNumber = model.NewOrderNumber(now.Add(time.Millisecond))
	if err := orders.Create(ctx, &again); !errors.Is(err, ErrDuplicateTransaction) {
		t.Errorf("expected ErrDuplicateTransaction, got %v", err)
	}

	stats, err := orders.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Completed != 1 || !stats.Revenue.Equal(decimal.NewFromInt(49)) {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestIntegrationContactRepository_ListOpen(t *testing.T) {
	ctx, repo := newTestRepository(t)
	contacts := NewContactRepository(repo)

	open := testutil.NewTestMessage(t, "Question about MFP-001")
	closed := testutil.NewTestMessage(t, "Thanks")
	closed.Status = model.MessageStatusArchived
	for _, m := range []*model.ContactMessage{open, closed} {
		if err := contacts.Create(ctx, m); err != nil {
			t.Fatalf("create message: %v", err)
		}
	}

	page, err := contacts.List(ctx, ContactFilter{Status: StatusOpen})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 1 || page.Messages[0].ID != open.ID {
		t.Errorf("open filter returned %d messages", page.Total)
	}

	counts, err := contacts.StatusCounts(ctx)
	if err != nil {
		t.Fatalf("status counts: %v", err)
	}
	if counts[model.MessageStatusNew] != 1 || counts[model.MessageStatusArchived] != 1 {
		t.Errorf("unexpected counts: %v", counts)
	}
}

func TestIntegrationSettingsRepository_PackVisibility(t *testing.T) {
	ctx, repo := newTestRepository(t)
	settings := NewSettingsRepository(repo)

	v, err := settings.PackVisibility(ctx)
	if err != nil {
		t.Fatalf("load visibility: %v", err)
	}
	if !v.IsActive(model.PackUltimate) {
		t.Fatalf("packs should default to visible")
	}

	v[model.PackUltimate] = false
	if err := settings.SavePackVisibility(ctx, v); err != nil {
		t.Fatalf("save visibility: %v", err)
	}

	reloaded, err := settings.PackVisibility(ctx)
	if err != nil {
		t.Fatalf("reload visibility: %v", err)
	}
	if reloaded.IsActive(model.PackUltimate) || !reloaded.IsActive(model.PackPro) {
		t.Errorf("unexpected visibility after save: %v", reloaded)
	}
}

func TestIntegrationRequestLogRepository_BatchAndRetention(t *testing.T) {
	ctx, repo := newTestRepository(t)
	logs := NewRequestLogRepository(repo)

	now := time.Now().UTC()
	batch := []*model.RequestLog{
		{Timestamp: now, Route: "/plans", Method: "GET", StatusCode: 200, Kind: model.LogKindVisitor},
		{Timestamp: now.AddDate(0, 0, -40), Route: "/", Method: "GET", StatusCode: 200, Kind: model.LogKindVisitor},
	}
	if err := logs.InsertBatch(ctx, batch); err != nil {
		t.Fatalf("insert batch: %v", err)
	}

	visits, err := logs.DailyVisits(ctx, 7, now)
	if err != nil {
		t.Fatalf("daily visits: %v", err)
	}
	if len(visits) != 7 || visits[6].Visits != 1 {
		t.Errorf("expected 7 days with today's visit last, got %+v", visits)
	}

	removed, err := logs.DeleteOlderThan(ctx, now.AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("delete old logs: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected one log removed, got %d", removed)
	}
}

package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/myfreehouseplans/catalog/internal/metrics"
	"github.com/myfreehouseplans/catalog/internal/model"
	"github.com/myfreehouseplans/catalog/internal/repository"
)

func price(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func catalogPlan() *model.HousePlan {
	return &model.HousePlan{
		ID:              3,
		Title:           "Lake House",
		Slug:            "lake-house",
		ReferenceCode:   "MYFREEHOUSEPLANS-003/2025",
		PublicPlanCode:  "MFP-003",
		Description:     "Two bedroom lake house.",
		IsPublished:     true,
		FreePDFFile:     "plans/lake-house.pdf",
		PricePack2:      price("49.00"),
		PricePack3:      price("99.00"),
		GumroadPack2URL: "https://store.gumroad.com/l/lake-pro",
		GumroadPack3URL: "https://evil.example/l/lake-ultimate",
	}
}

type catalogFixture struct {
	svc      *CatalogService
	plans    *fakePlanStore
	cache    *fakePlanCache
	recorder *metrics.InMemoryRecorder
}

func newCatalogFixture(t *testing.T, visibility model.PackVisibility, faqs map[int64][]*model.PlanFAQ, plans ...*model.HousePlan) catalogFixture {
	t.Helper()
	store := newFakePlanStore(plans...)
	c := newFakePlanCache()
	recorder := metrics.NewInMemory()
	svc := NewCatalogService(
		store,
		&fakeCategoryStore{categories: []*model.Category{{ID: 1, Name: "Cottages", Slug: "cottages"}}},
		&fakeFAQStore{faqs: faqs},
		c,
		staticVisibility(visibility),
		CatalogConfig{PlansPerPage: 12, ProtectedDir: t.TempDir()},
		testLogger(),
		recorder,
	)
	return catalogFixture{svc: svc, plans: store, cache: c, recorder: recorder}
}

func TestCatalogPlanDetailCachesAndCountsViews(t *testing.T) {
	t.Parallel()

	f := newCatalogFixture(t, nil, nil, catalogPlan())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		detail, err := f.svc.PlanDetail(ctx, "lake-house")
		if err != nil {
			t.Fatalf("PlanDetail: %v", err)
		}
		if !detail.DefaultFAQs || len(detail.FAQs) == 0 {
			t.Fatalf("expected default FAQs, got %+v", detail.FAQs)
		}
		if len(detail.Tiers) != 3 {
			t.Fatalf("expected 3 tiers, got %d", len(detail.Tiers))
		}
	}

	snap := f.recorder.Snapshot()
	if snap.PlanCacheMisses != 1 || snap.PlanCacheHits != 1 {
		t.Fatalf("expected 1 miss and 1 hit, got %d/%d", snap.PlanCacheMisses, snap.PlanCacheHits)
	}
	if snap.PlanViews != 2 {
		t.Fatalf("expected 2 views, got %d", snap.PlanViews)
	}
	if f.cache.views[3] != 2 {
		t.Fatalf("expected 2 buffered views, got %d", f.cache.views[3])
	}
}

func TestCatalogPlanDetailHidesPacks(t *testing.T) {
	t.Parallel()

	faqs := map[int64][]*model.PlanFAQ{
		3: {
			{ID: 1, PlanID: 3, Question: "General?", Answer: "Yes."},
			{ID: 2, PlanID: 3, Question: "Ultimate?", Answer: "Yes.", PackContext: model.PackUltimate.FAQContext()},
		},
	}
	visibility := model.PackVisibility{model.PackUltimate: false}
	f := newCatalogFixture(t, visibility, faqs, catalogPlan())

	detail, err := f.svc.PlanDetail(context.Background(), "lake-house")
	if err != nil {
		t.Fatalf("PlanDetail: %v", err)
	}
	for _, tier := range detail.Tiers {
		if tier.Pack == model.PackUltimate {
			t.Fatal("ultimate tier should be hidden")
		}
	}
	if detail.DefaultFAQs || len(detail.FAQs) != 1 || detail.FAQs[0].ID != 1 {
		t.Fatalf("expected only the general FAQ, got %+v", detail.FAQs)
	}
	if detail.StartingPrice == nil || !detail.StartingPrice.Equal(decimal.RequireFromString("49")) {
		t.Fatalf("expected starting price 49, got %v", detail.StartingPrice)
	}
}

func TestCatalogPlanDetailNegativeCache(t *testing.T) {
	t.Parallel()

	draft := catalogPlan()
	draft.IsPublished = false
	f := newCatalogFixture(t, nil, nil, draft)

	_, err := f.svc.PlanDetail(context.Background(), "lake-house")
	if !errors.Is(err, ErrPlanNotFound) {
		t.Fatalf("expected ErrPlanNotFound, got %v", err)
	}
	if !f.cache.negative["lake-house"] {
		t.Fatal("expected the miss to be remembered")
	}
}

func TestCatalogGumroadURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		visibility model.PackVisibility
		pack       model.Pack
		want       string
		wantErr    error
	}{
		{"pro", nil, model.PackPro, "https://store.gumroad.com/l/lake-pro", nil},
		{"free_is_not_paid", nil, model.PackFree, "", ErrInvalidPack},
		{"hidden_pack", model.PackVisibility{model.PackPro: false}, model.PackPro, "", ErrPackUnavailable},
		{"foreign_host", nil, model.PackUltimate, "", ErrDisallowedURL},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			f := newCatalogFixture(t, test.visibility, nil, catalogPlan())
			got, err := f.svc.GumroadURL(context.Background(), "lake-house", test.pack)
			if !errors.Is(err, test.wantErr) {
				t.Fatalf("expected %v, got %v", test.wantErr, err)
			}
			if got != test.want {
				t.Fatalf("expected %q, got %q", test.want, got)
			}
		})
	}
}

func TestCatalogFreeDownload(t *testing.T) {
	t.Parallel()

	f := newCatalogFixture(t, nil, nil, catalogPlan())
	dir := f.svc.cfg.ProtectedDir
	if err := os.MkdirAll(filepath.Join(dir, "plans"), 0o755); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if _, err := f.svc.FreeDownload(ctx, 3); !errors.Is(err, ErrNoFreeFile) {
		t.Fatalf("expected ErrNoFreeFile before the file exists, got %v", err)
	}

	want := filepath.Join(dir, "plans", "lake-house.pdf")
	if err := os.WriteFile(want, []byte("%PDF-1.4"), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err := f.svc.FreeDownload(ctx, 3)
	if err != nil {
		t.Fatalf("FreeDownload: %v", err)
	}
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}

	hidden := newCatalogFixture(t, model.PackVisibility{model.PackFree: false}, nil, catalogPlan())
	if _, err := hidden.svc.FreeDownload(ctx, 3); !errors.Is(err, ErrNoFreeFile) {
		t.Fatalf("expected ErrNoFreeFile when the free pack is hidden, got %v", err)
	}
}

func TestProtectedPath(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	tests := []struct {
		name    string
		rel     string
		wantErr error
	}{
		{"nested", "plans/a.pdf", nil},
		{"empty", "", ErrUnsafePath},
		{"absolute", "/etc/passwd", ErrUnsafePath},
		{"parent", "../secret.pdf", ErrUnsafePath},
		{"sneaky_parent", "plans/../../secret.pdf", ErrUnsafePath},
		{"base_itself", ".", ErrUnsafePath},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := ProtectedPath(base, test.rel)
			if !errors.Is(err, test.wantErr) {
				t.Fatalf("expected %v, got %v", test.wantErr, err)
			}
			if err == nil && filepath.Dir(got) != filepath.Join(base, "plans") {
				t.Fatalf("unexpected path %s", got)
			}
		})
	}
}

func TestCatalogPlanByCode(t *testing.T) {
	t.Parallel()

	f := newCatalogFixture(t, nil, nil, catalogPlan())
	ctx := context.Background()

	plan, err := f.svc.PlanByCode(ctx, " mfp-003 ")
	if err != nil {
		t.Fatalf("PlanByCode: %v", err)
	}
	if plan.ID != 3 {
		t.Fatalf("expected plan 3, got %d", plan.ID)
	}
	if _, err := f.svc.PlanByCode(ctx, "ABC-003"); !errors.Is(err, ErrPlanNotFound) {
		t.Fatalf("expected ErrPlanNotFound for a malformed code, got %v", err)
	}
}

func TestCatalogBrowseUnknownCategory(t *testing.T) {
	t.Parallel()

	f := newCatalogFixture(t, nil, nil, catalogPlan())
	_, err := f.svc.Category(context.Background(), "castles", repository.PlanFilter{})
	if !errors.Is(err, ErrCategoryNotFound) {
		t.Fatalf("expected ErrCategoryNotFound, got %v", err)
	}

	page, err := f.svc.Category(context.Background(), "cottages", repository.PlanFilter{Page: repository.Page{Number: 1, PerPage: 500}})
	if err != nil {
		t.Fatalf("Category: %v", err)
	}
	if page.Category == nil || page.Category.Slug != "cottages" {
		t.Fatalf("expected the cottages category, got %+v", page.Category)
	}
	if page.Filter.Page.PerPage != 12 || !page.Filter.PublishedOnly {
		t.Fatalf("expected forced published listing of 12, got %+v", page.Filter)
	}
}

func TestCatalogFilterJSON(t *testing.T) {
	t.Parallel()

	draft := &model.HousePlan{ID: 9, Title: "Draft", Slug: "draft"}
	f := newCatalogFixture(t, nil, nil, catalogPlan(), draft)

	result, err := f.svc.FilterJSON(context.Background(), repository.PlanFilter{})
	if err != nil {
		t.Fatalf("FilterJSON: %v", err)
	}
	if result.Total != 1 || len(result.Plans) != 1 {
		t.Fatalf("expected one published plan, got %+v", result)
	}
	card := result.Plans[0]
	if card.URL != "/plan/lake-house" || card.Code != "MFP-003" {
		t.Fatalf("unexpected card %+v", card)
	}
}

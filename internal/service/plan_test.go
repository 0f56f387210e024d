package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myfreehouseplans/catalog/internal/model"
)

func newTestPlanService(store *fakePlanStore, c *fakePlanCache) *PlanService {
	var pc PlanCache
	if c != nil {
		pc = c
	}
	svc := NewPlanService(store, pc, testLogger())
	svc.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func validPlan(title string) model.HousePlan {
	return model.HousePlan{
		Title:       title,
		Description: "<p>Open plan living with a <b>wide</b> terrace.</p><script>alert(1)</script>",
		PricePack1:  decimal.Zero,
	}
}

func TestPlanServiceCreateAssignsCodes(t *testing.T) {
	t.Parallel()

	store := newFakePlanStore()
	svc := newTestPlanService(store, newFakePlanCache())

	plan, err := svc.Create(context.Background(), PlanInput{Plan: validPlan("Modern Villa")}, nil)
	require.NoError(t, err)

	assert.Equal(t, "modern-villa", plan.Slug)
	assert.Equal(t, "MYFREEHOUSEPLANS-001/2025", plan.ReferenceCode)
	assert.Equal(t, "MFP-001", plan.PublicPlanCode)
	assert.NotContains(t, plan.Description, "<script>")
	assert.NotEmpty(t, plan.ShortDescription)
	assert.Equal(t, "MFP-001", store.get(plan.ID).PublicPlanCode)
}

func TestPlanServiceCreateClearsNegativeCache(t *testing.T) {
	t.Parallel()

	pc := newFakePlanCache()
	require.NoError(t, pc.SetNegativeCache(context.Background(), "modern-villa"))
	svc := newTestPlanService(newFakePlanStore(), pc)

	plan, err := svc.Create(context.Background(), PlanInput{Plan: validPlan("Modern Villa")}, nil)
	require.NoError(t, err)

	missing, err := pc.IsNegativelyCached(context.Background(), plan.Slug)
	require.NoError(t, err)
	assert.False(t, missing, "a new plan must not stay cached as missing")
	assert.Contains(t, pc.invalidated, "modern-villa")
}

func TestPlanServiceCreateUniqueSlug(t *testing.T) {
	t.Parallel()

	store := newFakePlanStore()
	svc := newTestPlanService(store, nil)
	ctx := context.Background()

	first, err := svc.Create(ctx, PlanInput{Plan: validPlan("Modern Villa")}, nil)
	require.NoError(t, err)
	second, err := svc.Create(ctx, PlanInput{Plan: validPlan("Modern Villa")}, nil)
	require.NoError(t, err)

	assert.Equal(t, "modern-villa", first.Slug)
	assert.Equal(t, "modern-villa-1", second.Slug)
	assert.NotEqual(t, first.ReferenceCode, second.ReferenceCode)
}

func TestPlanServiceCreatePublicCodeFallsBackToID(t *testing.T) {
	t.Parallel()

	store := newFakePlanStore(&model.HousePlan{ID: 4, Slug: "existing", PublicPlanCode: "MFP-100"})
	store.codeTaken["MFP-001"] = true
	svc := newTestPlanService(store, nil)

	plan, err := svc.Create(context.Background(), PlanInput{Plan: validPlan("Cabin")}, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 5, plan.ID)
	assert.Equal(t, "MFP-005", plan.PublicPlanCode)
}

func TestPlanServiceCreateValidation(t *testing.T) {
	t.Parallel()

	low := decimal.NewFromInt(200000)
	high := decimal.NewFromInt(100000)
	negative := decimal.NewFromInt(-5)

	tests := []struct {
		name  string
		plan  model.HousePlan
		field string
	}{
		{"missing_title", model.HousePlan{Description: "x"}, "title"},
		{"missing_description", model.HousePlan{Title: "Villa"}, "description"},
		{"bad_plan_type", model.HousePlan{Title: "Villa", Description: "x", PlanType: "castle"}, "plan_type"},
		{"negative_pack", model.HousePlan{Title: "Villa", Description: "x", PricePack2: &negative}, "price_pack_2"},
		{"cost_range", model.HousePlan{Title: "Villa", Description: "x", EstimatedCostLow: &low, EstimatedCostHigh: &high}, "estimated_cost_low"},
		{"foreign_checkout", model.HousePlan{Title: "Villa", Description: "x", GumroadPack2URL: "https://evil.example/l/abc"}, "gumroad_pack_2_url"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			svc := newTestPlanService(newFakePlanStore(), nil)
			_, err := svc.Create(context.Background(), PlanInput{Plan: test.plan}, nil)
			require.ErrorIs(t, err, ErrValidation)
			assert.Contains(t, FieldErrors(err), test.field)
		})
	}
}

func TestPlanServiceUpdateRenamesSlug(t *testing.T) {
	t.Parallel()

	store := newFakePlanStore(&model.HousePlan{
		ID:             7,
		Title:          "Old Title",
		Slug:           "old-title",
		ReferenceCode:  "MYFREEHOUSEPLANS-007/2024",
		PublicPlanCode: "MFP-007",
		ViewsCount:     42,
		Description:    "x",
	})
	c := newFakePlanCache()
	svc := newTestPlanService(store, c)

	in := validPlan("New Title")
	in.ReferenceCode = "tampered"
	plan, err := svc.Update(context.Background(), 7, PlanInput{Plan: in})
	require.NoError(t, err)

	assert.Equal(t, "new-title", plan.Slug)
	assert.Equal(t, "MYFREEHOUSEPLANS-007/2024", plan.ReferenceCode)
	assert.Equal(t, "MFP-007", plan.PublicPlanCode)
	assert.EqualValues(t, 42, plan.ViewsCount)
	assert.ElementsMatch(t, []string{"old-title", "new-title"}, c.invalidated)
}

func TestPlanServiceUpdateNotFound(t *testing.T) {
	t.Parallel()

	svc := newTestPlanService(newFakePlanStore(), nil)
	_, err := svc.Update(context.Background(), 99, PlanInput{Plan: validPlan("X")})
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestPlanServiceTogglePublish(t *testing.T) {
	t.Parallel()

	store := newFakePlanStore(&model.HousePlan{ID: 1, Title: "A", Slug: "a"})
	c := newFakePlanCache()
	svc := newTestPlanService(store, c)

	published, err := svc.TogglePublish(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, published)
	assert.True(t, store.get(1).IsPublished)
	assert.Equal(t, []string{"a"}, c.invalidated)
}

func TestPlanServiceBackfillPublicCodes(t *testing.T) {
	t.Parallel()

	newStore := func() *fakePlanStore {
		store := newFakePlanStore(
			&model.HousePlan{ID: 1, Slug: "a", ReferenceCode: "MYFREEHOUSEPLANS-004/2024"},
			&model.HousePlan{ID: 2, Slug: "b", ReferenceCode: "MYFREEHOUSEPLANS-009/2024"},
			&model.HousePlan{ID: 3, Slug: "c", PublicPlanCode: "MFP-003"},
		)
		// Both candidates of plan 2 are taken.
		store.codeTaken["MFP-009"] = true
		store.codeTaken["MFP-002"] = true
		return store
	}

	t.Run("dry_run", func(t *testing.T) {
		store := newStore()
		svc := newTestPlanService(store, nil)

		result, err := svc.BackfillPublicCodes(context.Background(), true)
		require.NoError(t, err)
		assert.Equal(t, map[int64]string{1: "MFP-004"}, result.Assigned)
		require.Len(t, result.Conflicts, 1)
		assert.Contains(t, result.Conflicts[0], "plan 2")
		assert.Empty(t, store.get(1).PublicPlanCode)
	})

	t.Run("apply", func(t *testing.T) {
		store := newStore()
		svc := newTestPlanService(store, nil)

		result, err := svc.BackfillPublicCodes(context.Background(), false)
		require.NoError(t, err)
		assert.Equal(t, map[int64]string{1: "MFP-004"}, result.Assigned)
		assert.Equal(t, "MFP-004", store.get(1).PublicPlanCode)
		assert.Empty(t, store.get(2).PublicPlanCode)
		assert.Equal(t, "MFP-003", store.get(3).PublicPlanCode)
	})
}

func TestFreePublicCodeConflict(t *testing.T) {
	t.Parallel()

	store := newFakePlanStore()
	store.codeTaken["MFP-012"] = true
	store.codeTaken["MFP-005"] = true
	svc := newTestPlanService(store, nil)

	_, err := svc.freePublicCode(context.Background(), &model.HousePlan{ID: 5, ReferenceCode: "MYFREEHOUSEPLANS-012/2025"})
	if !errors.Is(err, ErrPublicCodeConflict) {
		t.Fatalf("expected ErrPublicCodeConflict, got %v", err)
	}
}

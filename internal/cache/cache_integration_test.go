//go:build integration

package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/myfreehouseplans/catalog/internal/model"
	"github.com/myfreehouseplans/catalog/internal/testutil"
)

func newTestCache(t *testing.T) (context.Context, *Cache) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	c, err := New(ctx, testutil.RequireEnv(t, "TEST_REDIS_URL"), Options{})
	if err != nil {
		t.Fatalf("connect redis: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	if err := testutil.FlushRedis(ctx, c.Client()); err != nil {
		t.Fatalf("flush redis: %v", err)
	}
	return ctx, c
}

func TestIntegrationCache_PlanRoundTrip(t *testing.T) {
	ctx, c := newTestCache(t)

	if _, err := c.GetPlan(ctx, "missing"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}

	plan := &model.HousePlan{ID: 7, Slug: "courtyard", Title: "Courtyard", FreePDFFile: "free/courtyard.pdf"}
	if err := c.SetPlan(ctx, plan, time.Minute); err != nil {
		t.Fatalf("set plan: %v", err)
	}

	got, err := c.GetPlan(ctx, "courtyard")
	if err != nil {
		t.Fatalf("get plan: %v", err)
	}
	if got.ID != 7 || got.FreePDFFile != "free/courtyard.pdf" {
		t.Errorf("unexpected cached plan: %+v", got)
	}

	if err := c.InvalidatePlan(ctx, "courtyard"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := c.GetPlan(ctx, "courtyard"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expected miss after invalidate, got %v", err)
	}
}

func TestIntegrationCache_NegativeEntry(t *testing.T) {
	ctx, c := newTestCache(t)

	if err := c.SetNegativeCache(ctx, "ghost"); err != nil {
		t.Fatalf("set negative: %v", err)
	}
	neg, err := c.IsNegativelyCached(ctx, "ghost")
	if err != nil || !neg {
		t.Fatalf("expected negative entry, got %v %v", neg, err)
	}

	if err := c.SetPlan(ctx, &model.HousePlan{Slug: "ghost"}, time.Minute); err != nil {
		t.Fatalf("set plan: %v", err)
	}
	if neg, _ := c.IsNegativelyCached(ctx, "ghost"); neg {
		t.Error("caching the plan should clear the negative entry")
	}
}

func TestIntegrationCache_DrainViews(t *testing.T) {
	ctx, c := newTestCache(t)

	for i := 0; i < 3; i++ {
		if err := c.IncrementViews(ctx, 11); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}
	if err := c.IncrementViews(ctx, 12); err != nil {
		t.Fatalf("increment: %v", err)
	}

	drained, err := c.DrainViews(ctx)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if drained[11] != 3 || drained[12] != 1 {
		t.Errorf("unexpected drained counts: %v", drained)
	}

	again, err := c.DrainViews(ctx)
	if err != nil {
		t.Fatalf("second drain: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("expected counters reset, got %v", again)
	}
}

func TestIntegrationCache_Sessions(t *testing.T) {
	ctx, c := newTestCache(t)

	s, err := c.CreateSession(ctx, 5, "csrf-token", time.Minute)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	got, err := c.GetSession(ctx, s.Token)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.UserID != 5 || got.CSRFToken != "csrf-token" {
		t.Errorf("unexpected session: %+v", got)
	}

	if err := c.DeleteSession(ctx, s.Token); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, err := c.GetSession(ctx, s.Token); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := c.GetSession(ctx, "not-a-uuid"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("malformed token should be rejected, got %v", err)
	}
}

func TestIntegrationCache_FixedWindow(t *testing.T) {
	ctx, c := newTestCache(t)

	key := IPKey("contact", "203.0.113.9")
	for i := 1; i <= 3; i++ {
		res, err := c.CheckRateLimit(ctx, key, 3, time.Minute)
		if err != nil {
			t.Fatalf("check: %v", err)
		}
		if !res.Allowed {
			t.Fatalf("hit %d should be allowed", i)
		}
	}

	res, err := c.CheckRateLimit(ctx, key, 3, time.Minute)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if res.Allowed || res.RetryAfter <= 0 {
		t.Errorf("fourth hit should be limited, got %+v", res)
	}
}

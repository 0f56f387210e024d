package web

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/myfreehouseplans/catalog/internal/model"
	"github.com/myfreehouseplans/catalog/internal/repository"
	"github.com/myfreehouseplans/catalog/internal/service"
)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer(slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	return r
}

func testPlan() *model.HousePlan {
	area := 142.5
	beds := 3
	pro := decimal.RequireFromString("49")
	return &model.HousePlan{
		ID:               3,
		Title:            "Lake <House>",
		Slug:             "lake-house",
		PublicPlanCode:   "MFP-003",
		Description:      "<p>Open plan.</p>",
		TotalAreaM2:      &area,
		NumberOfBedrooms: &beds,
		PricePack2:       &pro,
		GumroadPack2URL:  "https://store.gumroad.com/l/lake-pro",
		IsPublished:      true,
	}
}

func TestRendererLoadsEveryPage(t *testing.T) {
	r := newTestRenderer(t)
	for _, name := range []string{
		"home", "plans", "plan_detail", "contact", "about", "privacy", "terms",
		"blog_index", "blog_post", "analyzer", "error",
		"admin/login", "admin/dashboard", "admin/plans", "admin/plan_form", "admin/faqs",
		"admin/categories", "admin/category_form", "admin/messages", "admin/message_detail",
		"admin/orders", "admin/blog", "admin/blog_form", "admin/packs",
	} {
		if !r.Has(name) {
			t.Errorf("missing page %q", name)
		}
	}
}

func TestRenderPlanDetail(t *testing.T) {
	r := newTestRenderer(t)
	plan := testPlan()

	page := Page{
		Meta:    service.Meta{Title: "Lake House | Site", SiteName: "Site", CanonicalURL: "https://example.com/plan/lake-house"},
		Schemas: []map[string]any{{"@type": "Product", "name": "Lake </script> House"}},
		Data: &service.PlanDetail{
			Plan:  plan,
			Tiers: plan.PricingTiers(),
			FAQs:  plan.DefaultFAQs(),
		},
		Now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	rec := httptest.NewRecorder()
	r.Render(rec, http.StatusOK, "plan_detail", page)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("unexpected content type %q", ct)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"Lake &lt;House&gt;",
		"<p>Open plan.</p>",
		"/go/lake-house/2",
		"MFP-003",
		`rel="canonical"`,
		"Can I modify this house plan?",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected body to contain %q", want)
		}
	}
	if strings.Contains(body, "Lake </script> House") {
		t.Error("structured data must be escaped")
	}
}

func TestRenderUnknownPage(t *testing.T) {
	r := newTestRenderer(t)
	rec := httptest.NewRecorder()
	r.Render(rec, http.StatusOK, "nope", Page{})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestRenderBrowseWithPagination(t *testing.T) {
	r := newTestRenderer(t)
	query := url.Values{"q": {"lake"}, "page": {"2"}}
	page := Page{
		Path:  "/plans",
		Query: query,
		Data: &service.BrowsePage{
			PlanPage: &repository.PlanPage{Plans: []*model.HousePlan{testPlan()}, Total: 30, Page: 2, PerPage: 12},
		},
	}

	rec := httptest.NewRecorder()
	r.Render(rec, http.StatusOK, "plans", page)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, "30 plans") {
		t.Error("expected the result count")
	}
	if !strings.Contains(body, "/plans?page=3&amp;q=lake") {
		t.Error("expected a next page link keeping the query")
	}
}

func TestFragmentPlanCards(t *testing.T) {
	r := newTestRenderer(t)
	html, err := r.Fragment("plan_cards", []*model.HousePlan{testPlan()})
	if err != nil {
		t.Fatalf("Fragment: %v", err)
	}
	if !strings.Contains(html, `href="/plan/lake-house"`) || !strings.Contains(html, "From $49.00") {
		t.Fatalf("unexpected fragment: %s", html)
	}
}

func TestPageURL(t *testing.T) {
	q := url.Values{"q": {"villa"}, "page": {"4"}}
	if got := pageURL("/plans", q, 1); got != "/plans?q=villa" {
		t.Fatalf("unexpected first page URL %q", got)
	}
	if got := pageURL("/plans", nil, 2); got != "/plans?page=2" {
		t.Fatalf("unexpected URL %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate(5, "héllo world"); got != "héllo…" {
		t.Fatalf("unexpected %q", got)
	}
	if got := truncate(50, "short"); got != "short" {
		t.Fatalf("unexpected %q", got)
	}
}

func TestStaticServesAssets(t *testing.T) {
	srv := httptest.NewServer(http.StripPrefix("/static/", Static()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/static/js/filters.js")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

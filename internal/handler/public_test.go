package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/myfreehouseplans/catalog/internal/handler/dto"
	"github.com/myfreehouseplans/catalog/internal/model"
	"github.com/myfreehouseplans/catalog/internal/repository"
	"github.com/myfreehouseplans/catalog/internal/service"
)

// mockCatalog is a mock implementation of Catalog for testing.
type mockCatalog struct {
	plan       *model.HousePlan
	gumroadURL string
	gumroadErr error
	freePath   string
	freeErr    error
	filter     *service.FilterResult
	lastFilter repository.PlanFilter
}

func (m *mockCatalog) Home(ctx context.Context) (*service.HomePage, error) {
	return &service.HomePage{}, nil
}

func (m *mockCatalog) Browse(ctx context.Context, filter repository.PlanFilter) (*service.BrowsePage, error) {
	m.lastFilter = filter
	return &service.BrowsePage{}, nil
}

func (m *mockCatalog) Category(ctx context.Context, categorySlug string, filter repository.PlanFilter) (*service.BrowsePage, error) {
	return nil, service.ErrCategoryNotFound
}

func (m *mockCatalog) PlanDetail(ctx context.Context, slug string) (*service.PlanDetail, error) {
	return nil, service.ErrPlanNotFound
}

func (m *mockCatalog) PlanByCode(ctx context.Context, code string) (*model.HousePlan, error) {
	if m.plan == nil || m.plan.PublicPlanCode != code {
		return nil, service.ErrPlanNotFound
	}
	return m.plan, nil
}

func (m *mockCatalog) FilterJSON(ctx context.Context, filter repository.PlanFilter) (*service.FilterResult, error) {
	m.lastFilter = filter
	return m.filter, nil
}

func (m *mockCatalog) GumroadURL(ctx context.Context, slug string, pack model.Pack) (string, error) {
	return m.gumroadURL, m.gumroadErr
}

func (m *mockCatalog) FreeDownload(ctx context.Context, planID int64) (string, error) {
	return m.freePath, m.freeErr
}

func newPublicRouter(t *testing.T, catalog *mockCatalog) *chi.Mux {
	t.Helper()
	h := NewPublicHandler(newTestBase(t), catalog)

	r := chi.NewRouter()
	r.NotFound(h.NotFound)
	r.Get("/plan/code/{code}", h.PlanByCode)
	r.Get("/plans/category/{slug}", h.Category)
	r.Get("/go/{slug}/{pack}", h.GumroadRedirect)
	r.Get("/download/free/{id}", h.FreeDownload)
	r.Get("/api/plans/filter", h.FilterPlans)
	return r
}

func TestPublicHandler_GumroadRedirect(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		url        string
		err        error
		wantStatus int
	}{
		{"redirects", "/go/casa-lina/2", "https://shop.gumroad.com/l/casa", nil, http.StatusFound},
		{"unknown_pack", "/go/casa-lina/9", "", nil, http.StatusBadRequest},
		{"free_pack", "/go/casa-lina/1", "", service.ErrInvalidPack, http.StatusBadRequest},
		{"disallowed_host", "/go/casa-lina/3", "", service.ErrDisallowedURL, http.StatusBadRequest},
		{"hidden_pack", "/go/casa-lina/3", "", service.ErrPackUnavailable, http.StatusNotFound},
		{"missing_plan", "/go/nope/2", "", service.ErrPlanNotFound, http.StatusNotFound},
		{"store_failure", "/go/casa-lina/2", "", errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newPublicRouter(t, &mockCatalog{gumroadURL: tt.url, gumroadErr: tt.err})

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if tt.wantStatus == http.StatusFound {
				if loc := rec.Header().Get("Location"); loc != tt.url {
					t.Errorf("expected Location %q, got %q", tt.url, loc)
				}
				if cc := rec.Header().Get("Cache-Control"); !strings.Contains(cc, "private") {
					t.Errorf("expected private Cache-Control, got %q", cc)
				}
			}
		})
	}
}

func TestPublicHandler_PlanByCode(t *testing.T) {
	router := newPublicRouter(t, &mockCatalog{plan: &model.HousePlan{Slug: "casa-lina", PublicPlanCode: "MF-014"}})

	req := httptest.NewRequest(http.MethodGet, "/plan/code/MF-014", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusMovedPermanently {
		t.Fatalf("expected status 301, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/plan/casa-lina" {
		t.Errorf("unexpected Location: %s", loc)
	}

	req = httptest.NewRequest(http.MethodGet, "/plan/code/MF-999", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}
}

func TestPublicHandler_CategoryNotFound(t *testing.T) {
	router := newPublicRouter(t, &mockCatalog{})

	req := httptest.NewRequest(http.MethodGet, "/plans/category/missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}
}

func TestPublicHandler_FreeDownload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "casa-lina-free.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.7"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	router := newPublicRouter(t, &mockCatalog{freePath: path})

	req := httptest.NewRequest(http.MethodGet, "/download/free/4", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename="casa-lina-free.pdf"` {
		t.Errorf("unexpected Content-Disposition: %s", cd)
	}
	if rec.Body.String() != "%PDF-1.7" {
		t.Errorf("unexpected body: %q", rec.Body.String())
	}
}

func TestPublicHandler_FreeDownloadMissing(t *testing.T) {
	tests := map[string]error{
		"no_file":     service.ErrNoFreeFile,
		"unsafe_path": service.ErrUnsafePath,
		"no_plan":     service.ErrPlanNotFound,
	}
	for name, err := range tests {
		t.Run(name, func(t *testing.T) {
			router := newPublicRouter(t, &mockCatalog{freeErr: err})

			req := httptest.NewRequest(http.MethodGet, "/download/free/4", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusNotFound {
				t.Errorf("expected status 404, got %d", rec.Code)
			}
		})
	}
}

func TestPublicHandler_FilterPlans(t *testing.T) {
	bedrooms := 3
	plan := &model.HousePlan{ID: 4, Title: "Casa Lina", Slug: "casa-lina", PublicPlanCode: "MF-004", NumberOfBedrooms: &bedrooms}
	catalog := &mockCatalog{filter: &service.FilterResult{
		Plans: []service.PlanCard{{ID: 4, Title: "Casa Lina", Slug: "casa-lina"}},
		Total: 1,
		Page:  1,
		Pages: 1,
		Raw:   []*model.HousePlan{plan},
	}}
	router := newPublicRouter(t, catalog)

	req := httptest.NewRequest(http.MethodGet, "/api/plans/filter?bedrooms=3&max_price=abc&plan_type=nope&sort=price_low&page=2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var response dto.FilterResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Total != 1 || len(response.Plans) != 1 {
		t.Errorf("unexpected result: %+v", response)
	}
	if !strings.Contains(response.HTML, `data-plan-slug="casa-lina"`) {
		t.Errorf("expected rendered card, got %q", response.HTML)
	}

	f := catalog.lastFilter
	if f.MinBedrooms == nil || *f.MinBedrooms != 3 {
		t.Errorf("expected bedrooms filter 3, got %v", f.MinBedrooms)
	}
	if f.MaxPrice != nil {
		t.Errorf("invalid max_price should be ignored, got %v", f.MaxPrice)
	}
	if f.PlanType != "" {
		t.Errorf("invalid plan_type should be ignored, got %q", f.PlanType)
	}
	if f.Sort != repository.SortPriceLow || f.Page.Number != 2 {
		t.Errorf("unexpected sort/page: %s/%d", f.Sort, f.Page.Number)
	}
}

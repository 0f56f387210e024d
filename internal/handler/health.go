package handler

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"
)

// readyTimeout bounds all dependency checks of one readiness probe.
const readyTimeout = 3 * time.Second

// HealthChecker is a dependency the site needs to serve pages.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	names  []string
	checks map[string]HealthChecker
}

// NewHealthHandler creates a HealthHandler for the named dependencies.
// A nil checker is reported as not configured and never fails the probe.
func NewHealthHandler(checks map[string]HealthChecker) *HealthHandler {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return &HealthHandler{names: names, checks: checks}
}

// HealthResponse is the probe body.
type HealthResponse struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult is the outcome of one dependency check.
// Error text is never exposed.
type CheckResult struct {
	Status    string  `json:"status"`
	LatencyMs float64 `json:"latency_ms,omitempty"`
}

// Healthz answers 200 while the process serves requests.
//
// GET /healthz
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Readyz pings every dependency concurrently and answers 503 when any fails.
//
// GET /readyz
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	results := make([]CheckResult, len(h.names))
	var wg sync.WaitGroup
	for i, name := range h.names {
		dep := h.checks[name]
		if dep == nil {
			results[i] = CheckResult{Status: "not configured"}
			continue
		}
		wg.Add(1)
		go func(i int, dep HealthChecker) {
			defer wg.Done()
			start := time.Now()
			status := "ok"
			if err := dep.Ping(ctx); err != nil {
				status = "error"
			}
			results[i] = CheckResult{
				Status:    status,
				LatencyMs: float64(time.Since(start).Microseconds()) / 1000,
			}
		}(i, dep)
	}
	wg.Wait()

	resp := HealthResponse{Status: "ok", Checks: make(map[string]CheckResult, len(h.names))}
	code := http.StatusOK
	for i, name := range h.names {
		resp.Checks[name] = results[i]
		if results[i].Status == "error" {
			resp.Status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, code, resp)
}

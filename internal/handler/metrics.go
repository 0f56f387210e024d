package handler

import (
	"net/http"
	"sort"

	"github.com/myfreehouseplans/catalog/internal/metrics"
)

// MetricsHandler serves the admin metrics snapshot.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
	pools       map[string]metrics.PoolReporter
}

// NewMetricsHandler creates a MetricsHandler. pools may be nil.
func NewMetricsHandler(snapshotter metrics.Snapshotter, pools map[string]metrics.PoolReporter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter, pools: pools}
}

// MetricsResponse is the body of GET /admin/metrics.
type MetricsResponse struct {
	Counters metrics.Snapshot             `json:"counters"`
	Pools    map[string]metrics.PoolStats `json:"pools,omitempty"`
}

// Metrics handles GET /admin/metrics.
// ?section=counters or ?section=pools narrows the body.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		writeErrorJSON(w, http.StatusServiceUnavailable, "METRICS_DISABLED", "metrics are not collected")
		return
	}

	section := r.URL.Query().Get("section")
	w.Header().Set("Cache-Control", "no-store")

	switch section {
	case "":
		writeJSON(w, http.StatusOK, MetricsResponse{Counters: h.snapshotter.Snapshot(), Pools: h.poolStats()})
	case "counters":
		writeJSON(w, http.StatusOK, h.snapshotter.Snapshot())
	case "pools":
		writeJSON(w, http.StatusOK, h.poolStats())
	default:
		writeErrorJSON(w, http.StatusBadRequest, "INVALID_SECTION", "section must be counters or pools")
	}
}

func (h *MetricsHandler) poolStats() map[string]metrics.PoolStats {
	if len(h.pools) == 0 {
		return nil
	}
	names := make([]string, 0, len(h.pools))
	for name := range h.pools {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]metrics.PoolStats, len(names))
	for _, name := range names {
		if p := h.pools[name]; p != nil {
			out[name] = p.PoolStats()
		}
	}
	return out
}

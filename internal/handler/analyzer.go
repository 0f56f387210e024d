package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/myfreehouseplans/catalog/internal/analyzer"
	"github.com/myfreehouseplans/catalog/internal/handler/dto"
)

// analyzerRows is the number of room rows the empty form shows.
const analyzerRows = 6

// AnalyzerHandler serves the floor plan analyzer tool.
type AnalyzerHandler struct {
	*Handler
}

// NewAnalyzerHandler creates a new AnalyzerHandler.
func NewAnalyzerHandler(base *Handler) *AnalyzerHandler {
	return &AnalyzerHandler{Handler: base}
}

// Form handles GET /tools/floor-plan-analyzer.
func (h *AnalyzerHandler) Form(w http.ResponseWriter, r *http.Request) {
	h.renderTool(w, r, http.StatusOK, nil, nil, nil)
}

// Analyze handles POST /tools/floor-plan-analyzer.
func (h *AnalyzerHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.errorPage(w, r, http.StatusBadRequest, "Bad request", "The form could not be read.")
		return
	}

	in := analyzerInput(r.PostForm)
	report, err := analyzer.Analyze(in)
	if err != nil {
		if errors.Is(err, analyzer.ErrInvalidInput) {
			h.renderTool(w, r, http.StatusUnprocessableEntity, in.Rooms, nil, map[string]string{"rooms": analyzerMessage(err)})
			return
		}
		h.serverError(w, r, err)
		return
	}
	h.renderTool(w, r, http.StatusOK, in.Rooms, report, nil)
}

// AnalyzeJSON handles POST /api/floor-plan-analyzer.
func (h *AnalyzerHandler) AnalyzeJSON(w http.ResponseWriter, r *http.Request) {
	var in analyzer.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	report, err := analyzer.Analyze(in)
	if err != nil {
		if errors.Is(err, analyzer.ErrInvalidInput) {
			writeErrorJSON(w, http.StatusUnprocessableEntity, "INVALID_INPUT", analyzerMessage(err))
			return
		}
		h.logger.Error("analyzer failed", "error", err)
		writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
		return
	}
	writeJSON(w, http.StatusOK, dto.AnalyzeResponse{Report: report})
}

func (h *AnalyzerHandler) renderTool(w http.ResponseWriter, r *http.Request, status int, rooms []analyzer.Room, report *analyzer.Report, errs map[string]string) {
	rows := append([]analyzer.Room(nil), rooms...)
	for len(rows) < analyzerRows || len(rows) < len(rooms)+2 {
		rows = append(rows, analyzer.Room{})
	}

	meta := h.meta("Floor plan analyzer", "Check room sizes against common standards and estimate the cost of wasted space.", "/tools/floor-plan-analyzer")
	p := h.page(w, r, meta, map[string]any{
		"Regions": analyzer.Regions(),
		"Groups":  analyzer.RoomTypeOptions(),
		"Rows":    rows,
		"Report":  report,
	})
	p.Form = r.PostForm
	if p.Form == nil {
		p.Form = map[string][]string{"unit_system": {string(analyzer.Metric)}, "country": {analyzer.DefaultRegion}}
	}
	p.Errors = errs
	h.render(w, status, "analyzer", p)
}

// analyzerInput reads the repeated room_type/length/width columns.
// Blank rows are dropped.
func analyzerInput(form map[string][]string) analyzer.Input {
	in := analyzer.Input{
		UnitSystem: analyzer.UnitSystem(first(form["unit_system"])),
		Country:    strings.TrimSpace(first(form["country"])),
	}
	if b, err := strconv.ParseFloat(strings.TrimSpace(first(form["budget"])), 64); err == nil {
		in.Budget = &b
	}

	types, lengths, widths := form["room_type"], form["length"], form["width"]
	for i, t := range types {
		room := analyzer.Room{
			Type:   strings.TrimSpace(t),
			Length: parseFloatAt(lengths, i),
			Width:  parseFloatAt(widths, i),
		}
		if room.Type == "" && room.Length == 0 && room.Width == 0 {
			continue
		}
		in.Rooms = append(in.Rooms, room)
	}
	return in
}

func analyzerMessage(err error) string {
	return strings.TrimPrefix(err.Error(), analyzer.ErrInvalidInput.Error()+": ")
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func parseFloatAt(values []string, i int) float64 {
	if i >= len(values) {
		return 0
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(values[i]), 64)
	if err != nil {
		return 0
	}
	return f
}

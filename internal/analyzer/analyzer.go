package analyzer

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidInput is returned for analysis requests that cannot be scored.
var ErrInvalidInput = errors.New("invalid floor plan input")

const (
	// MinRooms is the smallest plan the scores are meaningful for.
	MinRooms = 3
	// MaxRooms bounds a single analysis request.
	MaxRooms = 60
	// MetersPerFoot converts imperial input.
	MetersPerFoot = 0.3048
)

// UnitSystem selects how room dimensions are entered.
type UnitSystem string

const (
	Metric   UnitSystem = "metric"
	Imperial UnitSystem = "imperial"
)

// Level grades a single check.
type Level string

const (
	LevelOptimal  Level = "optimal"
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
)

// Status is the traffic light of a room.
type Status string

const (
	StatusGreen  Status = "green"
	StatusOrange Status = "orange"
	StatusRed    Status = "red"
)

// Room is one room as entered by the user.
type Room struct {
	Type   string  `json:"room_type"`
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
}

// Validation is the verdict for one room.
type Validation struct {
	Status        Status  `json:"status"`
	AreaStatus    Level   `json:"area_status"`
	WidthStatus   Level   `json:"width_status"`
	Feedback      string  `json:"feedback"`
	WidthFeedback string  `json:"width_feedback,omitempty"`
	WasteLevel    float64 `json:"waste_level"`
	OptimalRange  string  `json:"optimal_range"`
}

// RoomResult is a room converted to metric with its verdict.
type RoomResult struct {
	Room
	LengthM    float64    `json:"length_m"`
	WidthM     float64    `json:"width_m"`
	AreaM2     float64    `json:"area_m2"`
	Validation Validation `json:"validation"`
}

// RoomArea pairs a room type with an area for waste listings.
type RoomArea struct {
	Type  string  `json:"type"`
	Area  float64 `json:"area"`
	Waste float64 `json:"waste,omitempty"`
}

// WasteAnalysis summarises oversizing and circulation across the plan.
type WasteAnalysis struct {
	TotalAreaM2           float64    `json:"total_area_m2"`
	WastedAreaM2          float64    `json:"wasted_area_m2"`
	WastePercentage       float64    `json:"waste_percentage"`
	CirculationAreaM2     float64    `json:"circulation_area_m2"`
	CirculationPercentage float64    `json:"circulation_percentage"`
	CirculationWarning    bool       `json:"circulation_warning"`
	OversizedRooms        []RoomArea `json:"oversized_rooms"`
	UndersizedRooms       []RoomArea `json:"undersized_rooms"`
}

// HasIssues reports whether anything needs attention.
func (w WasteAnalysis) HasIssues() bool {
	return len(w.OversizedRooms) > 0 || len(w.UndersizedRooms) > 0 || w.CirculationWarning
}

// Scores are 0-100 efficiency grades.
type Scores struct {
	Financial   int `json:"financial_efficiency"`
	Comfort     int `json:"comfort_efficiency"`
	Circulation int `json:"circulation_efficiency"`
	Overall     int `json:"overall"`
}

// CostMode tells whether costs derive from the user's budget.
type CostMode string

const (
	CostModeStandard CostMode = "standard"
	CostModeBudget   CostMode = "user_budget"
)

// CostEstimate is the financial impact of wasted area.
type CostEstimate struct {
	Mode               CostMode `json:"mode"`
	CostPerM2          float64  `json:"cost_per_m2"`
	StandardCostPerM2  float64  `json:"standard_cost_per_m2"`
	TotalAreaM2        float64  `json:"total_area_m2"`
	WastedAreaM2       float64  `json:"wasted_area_m2"`
	WastedMoney        float64  `json:"wasted_money"`
	CurrentTotalCost   float64  `json:"current_total_cost"`
	OptimizedTotalCost float64  `json:"optimized_total_cost"`
	SavingsPercentage  float64  `json:"savings_percentage"`
}

// Input is a complete analysis request.
type Input struct {
	UnitSystem UnitSystem `json:"unit_system"`
	Country    string     `json:"country"`
	Budget     *float64   `json:"budget,omitempty"`
	Rooms      []Room     `json:"rooms"`
}

// Report is the full analysis result.
type Report struct {
	UnitSystem    UnitSystem    `json:"unit_system"`
	Rooms         []RoomResult  `json:"rooms"`
	TotalAreaM2   float64       `json:"total_built_area"`
	WasteAnalysis WasteAnalysis `json:"waste_analysis"`
	Scores        Scores        `json:"scores"`
	Cost          CostEstimate  `json:"cost_analysis"`
}

// ToMetric converts entered length and width to metres.
func ToMetric(length, width float64, unit UnitSystem) (float64, float64) {
	if unit == Imperial {
		return length * MetersPerFoot, width * MetersPerFoot
	}
	return length, width
}

// FormatLength renders a metric length in the user's unit system.
func FormatLength(m float64, unit UnitSystem) string {
	if unit == Imperial {
		return fmt.Sprintf("%.1f ft", m/MetersPerFoot)
	}
	return fmt.Sprintf("%.2f m", m)
}

// ValidateRoom grades a room's width and area against its standard.
func ValidateRoom(roomType string, widthM, areaM2 float64) Validation {
	s := StandardFor(roomType)
	v := Validation{
		AreaStatus:   LevelOptimal,
		WidthStatus:  LevelOptimal,
		OptimalRange: fmt.Sprintf("%.0f-%.0f m²", s.OptimalMinArea, s.OptimalMaxArea),
	}

	switch {
	case widthM < s.MinWidth:
		v.WidthStatus = LevelCritical
		v.WidthFeedback = fmt.Sprintf("Width is below minimum standard (%.1fm).", s.MinWidth)
	case widthM < s.OptimalWidthLow:
		v.WidthStatus = LevelWarning
		v.WidthFeedback = fmt.Sprintf("Width is narrower than optimal range (%.1f-%.1fm).", s.OptimalWidthLow, s.OptimalWidthHigh)
	case widthM > s.OptimalWidthHigh*1.3:
		v.WidthStatus = LevelWarning
		v.WidthFeedback = "Width is excessive. Every extra meter adds cost without benefit."
	}

	switch {
	case s.OptimalMaxArea == 0:
		// circulation is judged on width alone
		v.Feedback = widthFeedback(s, v.WidthStatus, widthM)
	case areaM2 < s.MinArea:
		v.AreaStatus = LevelCritical
		v.Feedback = s.Undersized
	case areaM2 < s.OptimalMinArea:
		v.AreaStatus = LevelWarning
		v.Feedback = "This space is slightly below recommended standards."
	case areaM2 <= s.OptimalMaxArea:
		v.Feedback = s.Optimal
	case areaM2 <= s.OversizedArea:
		v.AreaStatus = LevelWarning
		v.Feedback = s.Oversized
		v.WasteLevel = (areaM2 - s.OptimalMaxArea) / areaM2
	default:
		v.AreaStatus = LevelCritical
		v.Feedback = s.Oversized
		v.WasteLevel = (areaM2 - s.OptimalMaxArea) / areaM2
	}

	switch {
	case v.AreaStatus == LevelCritical || v.WidthStatus == LevelCritical:
		v.Status = StatusRed
	case v.AreaStatus == LevelWarning || v.WidthStatus == LevelWarning:
		v.Status = StatusOrange
	default:
		v.Status = StatusGreen
	}
	return v
}

func widthFeedback(s Standard, level Level, widthM float64) string {
	switch {
	case level == LevelOptimal:
		return s.Optimal
	case widthM < s.OptimalWidthLow:
		return s.Undersized
	default:
		return s.Oversized
	}
}

// DetectWastedSpace totals oversizing and circulation across rooms.
func DetectWastedSpace(rooms []RoomResult) WasteAnalysis {
	w := WasteAnalysis{
		OversizedRooms:  []RoomArea{},
		UndersizedRooms: []RoomArea{},
	}

	for _, r := range rooms {
		w.TotalAreaM2 += r.AreaM2
		if circulationTypes[r.Type] {
			w.CirculationAreaM2 += r.AreaM2
		}
		if r.Validation.WasteLevel > 0 {
			waste := r.AreaM2 * r.Validation.WasteLevel
			w.WastedAreaM2 += waste
			w.OversizedRooms = append(w.OversizedRooms, RoomArea{Type: r.Type, Area: r.AreaM2, Waste: waste})
		} else if r.Validation.AreaStatus == LevelCritical {
			w.UndersizedRooms = append(w.UndersizedRooms, RoomArea{Type: r.Type, Area: r.AreaM2})
		}
	}

	if w.TotalAreaM2 > 0 {
		w.CirculationPercentage = w.CirculationAreaM2 / w.TotalAreaM2 * 100
		w.WastePercentage = w.WastedAreaM2 / w.TotalAreaM2 * 100
	}
	w.CirculationWarning = w.CirculationPercentage > 15
	return w
}

// ScoreEfficiency grades finance, comfort and circulation.
func ScoreEfficiency(rooms []RoomResult, w WasteAnalysis) Scores {
	financial := math.Max(0, 100-w.WastePercentage*2)

	comfort := 50.0
	if n := len(rooms); n > 0 {
		var sum float64
		for _, r := range rooms {
			switch r.Validation.Status {
			case StatusGreen:
				sum += 100
			case StatusOrange:
				sum += 60
			case StatusRed:
				sum += 20
			}
		}
		comfort = sum / float64(n)
	}

	pct := w.CirculationPercentage
	var circulation float64
	switch {
	case pct < 10:
		circulation = 90
	case pct < 15:
		circulation = 75
	case pct < 20:
		circulation = 50
	default:
		circulation = 30
	}
	if pct > 10 {
		circulation = math.Max(0, circulation-math.Min(30, pct-10))
	}

	return Scores{
		Financial:   int(financial),
		Comfort:     int(comfort),
		Circulation: int(circulation),
		Overall:     int((financial + comfort + circulation) / 3),
	}
}

// EstimateCost prices the plan and its wasted area. A positive budget
// switches the per-m² rate to the user's own figure.
func EstimateCost(totalM2, wastedM2 float64, budget *float64, country string) CostEstimate {
	standard, ok := regionalCostPerM2[country]
	if !ok {
		standard = regionalCostPerM2[DefaultRegion]
	}

	c := CostEstimate{
		Mode:              CostModeStandard,
		CostPerM2:         standard,
		StandardCostPerM2: standard,
		TotalAreaM2:       totalM2,
		WastedAreaM2:      wastedM2,
	}
	if budget != nil && *budget > 0 && totalM2 > 0 {
		c.Mode = CostModeBudget
		c.CostPerM2 = *budget / totalM2
	}

	c.WastedMoney = wastedM2 * c.CostPerM2
	c.CurrentTotalCost = totalM2 * c.CostPerM2
	c.OptimizedTotalCost = (totalM2 - wastedM2) * c.CostPerM2
	if c.CurrentTotalCost > 0 {
		c.SavingsPercentage = c.WastedMoney / c.CurrentTotalCost * 100
	}
	return c
}

// EvaluateRoom converts and validates a single room.
func EvaluateRoom(r Room, unit UnitSystem) (RoomResult, error) {
	r.Type = strings.TrimSpace(r.Type)
	if r.Type == "" {
		return RoomResult{}, fmt.Errorf("%w: room type is required", ErrInvalidInput)
	}
	if r.Length <= 0 || r.Width <= 0 || math.IsNaN(r.Length) || math.IsNaN(r.Width) ||
		math.IsInf(r.Length, 0) || math.IsInf(r.Width, 0) {
		return RoomResult{}, fmt.Errorf("%w: %s dimensions must be positive", ErrInvalidInput, r.Type)
	}

	lengthM, widthM := ToMetric(r.Length, r.Width, unit)
	area := lengthM * widthM
	return RoomResult{
		Room:       r,
		LengthM:    lengthM,
		WidthM:     widthM,
		AreaM2:     area,
		Validation: ValidateRoom(r.Type, widthM, area),
	}, nil
}

// Analyze runs the full pipeline over a plan.
func Analyze(in Input) (*Report, error) {
	unit := in.UnitSystem
	if unit != Imperial {
		unit = Metric
	}
	if len(in.Rooms) < MinRooms {
		return nil, fmt.Errorf("%w: add at least %d rooms", ErrInvalidInput, MinRooms)
	}
	if len(in.Rooms) > MaxRooms {
		return nil, fmt.Errorf("%w: at most %d rooms", ErrInvalidInput, MaxRooms)
	}
	if in.Budget != nil && *in.Budget < 0 {
		return nil, fmt.Errorf("%w: budget must not be negative", ErrInvalidInput)
	}

	results := make([]RoomResult, 0, len(in.Rooms))
	var total float64
	for _, r := range in.Rooms {
		res, err := EvaluateRoom(r, unit)
		if err != nil {
			return nil, err
		}
		total += res.AreaM2
		results = append(results, res)
	}

	waste := DetectWastedSpace(results)
	country := in.Country
	if country == "" {
		country = DefaultRegion
	}

	return &Report{
		UnitSystem:    unit,
		Rooms:         results,
		TotalAreaM2:   total,
		WasteAnalysis: waste,
		Scores:        ScoreEfficiency(results, waste),
		Cost:          EstimateCost(total, waste.WastedAreaM2, in.Budget, country),
	}, nil
}

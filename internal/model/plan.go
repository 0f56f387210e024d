// Package model defines domain entities for the application.
package model

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SqftPerM2 converts square metres to square feet.
const SqftPerM2 = 10.7639

// ReferencePrefix starts every internal plan reference code.
const ReferencePrefix = "MYFREEHOUSEPLANS"

// PublicCodePattern matches public plan codes such as MFP-007 or MFP-1204.
var PublicCodePattern = regexp.MustCompile(`^MFP-\d{3,}$`)

var firstDigits = regexp.MustCompile(`\d+`)

// PlanType is the editorial market segment of a plan.
type PlanType string

const (
	PlanTypeFamily PlanType = "family"
	PlanTypeRental PlanType = "rental"
	PlanTypeLuxury PlanType = "luxury"
)

// PlanTypes lists the plan types in display order.
func PlanTypes() []PlanType {
	return []PlanType{PlanTypeFamily, PlanTypeRental, PlanTypeLuxury}
}

// IsValid reports whether t is a known plan type.
func (t PlanType) IsValid() bool {
	switch t {
	case PlanTypeFamily, PlanTypeRental, PlanTypeLuxury:
		return true
	}
	return false
}

// Complexity is the construction complexity grade.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// Complexities lists the complexity grades in display order.
func Complexities() []Complexity {
	return []Complexity{ComplexityLow, ComplexityMedium, ComplexityHigh}
}

// HousePlan is a catalog listing. Optional values are pointers; nil means
// the field was never provided, which templates treat differently from zero.
type HousePlan struct {
	ID             int64  `json:"id"`
	Title          string `json:"title"`
	Slug           string `json:"slug"`
	ReferenceCode  string `json:"reference_code"`
	PublicPlanCode string `json:"public_plan_code"`

	Description      string `json:"description"`
	ShortDescription string `json:"short_description,omitempty"`

	PlanType               PlanType   `json:"plan_type,omitempty"`
	TotalAreaM2            *float64   `json:"total_area_m2,omitempty"`
	TotalAreaSqft          *float64   `json:"total_area_sqft,omitempty"`
	NumberOfBedrooms       *int       `json:"number_of_bedrooms,omitempty"`
	NumberOfBathrooms      *float64   `json:"number_of_bathrooms,omitempty"`
	NumberOfFloors         *int       `json:"number_of_floors,omitempty"`
	ParkingSpaces          *int       `json:"parking_spaces,omitempty"`
	BuildingWidth          *float64   `json:"building_width,omitempty"`
	BuildingLength         *float64   `json:"building_length,omitempty"`
	RoofType               string     `json:"roof_type,omitempty"`
	StructureType          string     `json:"structure_type,omitempty"`
	FoundationType         string     `json:"foundation_type,omitempty"`
	CeilingHeight          *float64   `json:"ceiling_height,omitempty"`
	ConstructionComplexity Complexity `json:"construction_complexity,omitempty"`
	CostNote               string     `json:"estimated_construction_cost_note,omitempty"`
	SuitableClimate        string     `json:"suitable_climate,omitempty"`
	IdealFor               string     `json:"ideal_for,omitempty"`

	MainFeatures           string `json:"main_features,omitempty"`
	RoomDetails            string `json:"room_details,omitempty"`
	ConstructionNotes      string `json:"construction_notes,omitempty"`
	DesignPhilosophy       string `json:"design_philosophy,omitempty"`
	LifestyleSuitability   string `json:"lifestyle_suitability,omitempty"`
	CustomizationPotential string `json:"customization_potential,omitempty"`

	TargetBuyer            string `json:"target_buyer,omitempty"`
	BudgetCategory         string `json:"budget_category,omitempty"`
	KeySellingPoint        string `json:"key_selling_point,omitempty"`
	ProblemsThisPlanSolves string `json:"problems_this_plan_solves,omitempty"`
	ArchitecturalStyle     string `json:"architectural_style,omitempty"`

	LivingRooms  *int `json:"living_rooms,omitempty"`
	Kitchens     *int `json:"kitchens,omitempty"`
	Offices      *int `json:"offices,omitempty"`
	Terraces     *int `json:"terraces,omitempty"`
	StorageRooms *int `json:"storage_rooms,omitempty"`

	MinPlotWidth         *float64         `json:"min_plot_width,omitempty"`
	MinPlotLength        *float64         `json:"min_plot_length,omitempty"`
	ClimateCompatibility string           `json:"climate_compatibility,omitempty"`
	EstimatedBuildTime   string           `json:"estimated_build_time,omitempty"`
	EstimatedCostLow     *decimal.Decimal `json:"estimated_cost_low,omitempty"`
	EstimatedCostHigh    *decimal.Decimal `json:"estimated_cost_high,omitempty"`

	FreePDFFile      string           `json:"-"`
	PricePack1       decimal.Decimal  `json:"price_pack_1"`
	PricePack2       *decimal.Decimal `json:"price_pack_2,omitempty"`
	PricePack3       *decimal.Decimal `json:"price_pack_3,omitempty"`
	GumroadPack2URL  string           `json:"gumroad_pack_2_url,omitempty"`
	GumroadPack3URL  string           `json:"gumroad_pack_3_url,omitempty"`
	Pack1Description string           `json:"pack1_description,omitempty"`
	Pack2Description string           `json:"pack2_description,omitempty"`
	Pack3Description string           `json:"pack3_description,omitempty"`

	Price     decimal.Decimal  `json:"price"`
	SalePrice *decimal.Decimal `json:"sale_price,omitempty"`

	CoverImage string `json:"cover_image,omitempty"`
	MainImage  string `json:"main_image,omitempty"`

	// Legacy columns kept for older listings.
	Bedrooms   *int     `json:"bedrooms,omitempty"`
	Bathrooms  *float64 `json:"bathrooms,omitempty"`
	SquareFeet *int     `json:"square_feet,omitempty"`
	Stories    *int     `json:"stories,omitempty"`
	Garage     *int     `json:"garage,omitempty"`

	SEOTitle       string `json:"seo_title,omitempty"`
	SEODescription string `json:"seo_description,omitempty"`
	SEOKeywords    string `json:"seo_keywords,omitempty"`

	IsFeatured  bool       `json:"is_featured"`
	IsPublished bool       `json:"is_published"`
	ViewsCount  int64      `json:"views_count"`
	CreatedByID *int64     `json:"created_by_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Categories  []Category `json:"categories,omitempty"`
}

// CurrentPrice returns the sale price when it undercuts the regular price.
func (p *HousePlan) CurrentPrice() decimal.Decimal {
	if p.IsOnSale() {
		return *p.SalePrice
	}
	return p.Price
}

// IsOnSale reports whether a sale price below the regular price is set.
func (p *HousePlan) IsOnSale() bool {
	return p.SalePrice != nil && p.SalePrice.LessThan(p.Price)
}

// ImageURL returns the cover image, falling back to the main image.
func (p *HousePlan) ImageURL() string {
	if p.CoverImage != "" {
		return p.CoverImage
	}
	return p.MainImage
}

// HasFreeDownload reports whether a free PDF is attached.
func (p *HousePlan) HasFreeDownload() bool {
	return p.FreePDFFile != ""
}

// PricingTiers returns the three packs in display order.
func (p *HousePlan) PricingTiers() []PackTier {
	free := p.PricePack1
	return []PackTier{
		{
			Pack:        PackFree,
			Label:       PackFree.Label(),
			Price:       &free,
			IsFree:      free.IsZero(),
			Available:   p.FreePDFFile != "",
			Description: firstNonEmpty(p.Pack1Description, PackFree.DefaultDescription()),
		},
		{
			Pack:        PackPro,
			Label:       PackPro.Label(),
			Price:       p.PricePack2,
			Available:   p.GumroadPack2URL != "",
			Description: firstNonEmpty(p.Pack2Description, PackPro.DefaultDescription()),
		},
		{
			Pack:        PackUltimate,
			Label:       PackUltimate.Label(),
			Price:       p.PricePack3,
			Available:   p.GumroadPack3URL != "",
			Description: firstNonEmpty(p.Pack3Description, PackUltimate.DefaultDescription()),
		},
	}
}

// GumroadURL returns the checkout link of a paid pack.
func (p *HousePlan) GumroadURL(pack Pack) string {
	switch pack {
	case PackPro:
		return p.GumroadPack2URL
	case PackUltimate:
		return p.GumroadPack3URL
	default:
		return ""
	}
}

// StartingPaidPrice is the lowest positive price among sale, pack 2, pack 3
// and the display price. Nil when nothing is priced.
func (p *HousePlan) StartingPaidPrice() *decimal.Decimal {
	price := p.Price
	return lowestPositive(p.SalePrice, p.PricePack2, p.PricePack3, &price)
}

// AreaSqft prefers the editorial sq ft value, then legacy square feet, then converted m².
func (p *HousePlan) AreaSqft() *float64 {
	switch {
	case positive(p.TotalAreaSqft):
		return p.TotalAreaSqft
	case p.SquareFeet != nil && *p.SquareFeet > 0:
		v := float64(*p.SquareFeet)
		return &v
	case positive(p.TotalAreaM2):
		v := *p.TotalAreaM2 * SqftPerM2
		return &v
	}
	return nil
}

// AreaM2 prefers the editorial m² value, then converts from sq ft.
func (p *HousePlan) AreaM2() *float64 {
	switch {
	case positive(p.TotalAreaM2):
		return p.TotalAreaM2
	case positive(p.TotalAreaSqft):
		v := *p.TotalAreaSqft / SqftPerM2
		return &v
	case p.SquareFeet != nil && *p.SquareFeet > 0:
		v := float64(*p.SquareFeet) / SqftPerM2
		return &v
	}
	return nil
}

// BedroomCount falls back to the legacy column.
func (p *HousePlan) BedroomCount() *int {
	if p.NumberOfBedrooms != nil {
		return p.NumberOfBedrooms
	}
	return p.Bedrooms
}

// BathroomCount falls back to the legacy column.
func (p *HousePlan) BathroomCount() *float64 {
	if p.NumberOfBathrooms != nil {
		return p.NumberOfBathrooms
	}
	return p.Bathrooms
}

// FloorCount falls back to the legacy column.
func (p *HousePlan) FloorCount() *int {
	if p.NumberOfFloors != nil {
		return p.NumberOfFloors
	}
	return p.Stories
}

// ParkingCount falls back to the legacy garage column.
func (p *HousePlan) ParkingCount() *int {
	if p.ParkingSpaces != nil {
		return p.ParkingSpaces
	}
	return p.Garage
}

// DimensionsSummary describes the building footprint, or "" when unknown.
func (p *HousePlan) DimensionsSummary() string {
	w, l := positive(p.BuildingWidth), positive(p.BuildingLength)
	switch {
	case w && l:
		return fmt.Sprintf("%s m × %s m", FormatNumber(*p.BuildingWidth), FormatNumber(*p.BuildingLength))
	case w:
		return "Width " + FormatNumber(*p.BuildingWidth) + " m"
	case l:
		return "Length " + FormatNumber(*p.BuildingLength) + " m"
	}
	return ""
}

// DefaultArchitecturalSummary is used when a plan has no describable facts.
const DefaultArchitecturalSummary = "A well-balanced house plan designed for comfortable living and clear, buildable documentation."

// ArchitecturalSummary is the hero sentence of the detail page.
func (p *HousePlan) ArchitecturalSummary() string {
	if strings.TrimSpace(p.ShortDescription) != "" {
		return p.ShortDescription
	}

	var parts []string
	if n := p.FloorCount(); n != nil && *n > 0 {
		parts = append(parts, strconv.Itoa(*n)+"-level")
	}
	if n := p.BedroomCount(); n != nil && *n > 0 {
		parts = append(parts, strconv.Itoa(*n)+"-bed")
	}
	if n := p.BathroomCount(); n != nil && *n > 0 {
		parts = append(parts, FormatNumber(*n)+"-bath")
	}
	if roof := strings.TrimSpace(p.RoofType); roof != "" {
		parts = append(parts, strings.ToLower(roof)+" roof")
	}
	if len(parts) == 0 {
		return DefaultArchitecturalSummary
	}
	return "A practical " + strings.Join(parts, ", ") +
		" layout designed for straightforward construction and comfortable day-to-day living."
}

// MetaTitle returns the SEO title or the plan title.
func (p *HousePlan) MetaTitle() string {
	return firstNonEmpty(p.SEOTitle, p.Title)
}

// MetaDescription returns the SEO description or the short description.
func (p *HousePlan) MetaDescription() string {
	return firstNonEmpty(p.SEODescription, p.ShortDescription)
}

// MetaKeywords returns the SEO keywords.
func (p *HousePlan) MetaKeywords() string {
	return p.SEOKeywords
}

// DisplayCode is the public code when assigned, else the internal reference.
func (p *HousePlan) DisplayCode() string {
	return firstNonEmpty(p.PublicPlanCode, p.ReferenceCode)
}

// CategoryIDs lists the ids of the attached categories.
func (p *HousePlan) CategoryIDs() []int64 {
	ids := make([]int64, 0, len(p.Categories))
	for _, c := range p.Categories {
		ids = append(ids, c.ID)
	}
	return ids
}

// ReferenceCode formats the internal reference for a yearly sequence.
func ReferenceCode(seq, year int) string {
	return fmt.Sprintf("%s-%03d/%d", ReferencePrefix, seq, year)
}

// ParseReferenceSequence extracts the sequence number of a reference code.
// Malformed codes yield 0.
func ParseReferenceSequence(code string) int {
	_, rest, ok := strings.Cut(code, "-")
	if !ok {
		return 0
	}
	num, _, _ := strings.Cut(rest, "/")
	n, err := strconv.Atoi(num)
	if err != nil {
		return 0
	}
	return n
}

// DerivePublicCode builds the MFP code from the first digit run of the
// reference code, falling back to the database id.
func DerivePublicCode(referenceCode string, id int64) string {
	if digits := firstDigits.FindString(referenceCode); digits != "" {
		if n, err := strconv.ParseInt(digits, 10, 64); err == nil {
			return fmt.Sprintf("MFP-%03d", n)
		}
	}
	return fmt.Sprintf("MFP-%03d", id)
}

// AutoShortDescription trims a description to the 300 rune summary limit.
func AutoShortDescription(description string) string {
	d := strings.TrimSpace(description)
	runes := []rune(d)
	if len(runes) <= 300 {
		return d
	}
	return string(runes[:297]) + "..."
}

// FormatNumber renders a float without trailing zeros or exponent.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func positive(v *float64) bool {
	return v != nil && *v > 0
}

func lowestPositive(values ...*decimal.Decimal) *decimal.Decimal {
	var lowest *decimal.Decimal
	for _, v := range values {
		if v == nil || !v.IsPositive() {
			continue
		}
		if lowest == nil || v.LessThan(*lowest) {
			c := *v
			lowest = &c
		}
	}
	return lowest
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

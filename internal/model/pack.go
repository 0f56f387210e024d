package model

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// Pack identifies a deliverable tier of a plan.
type Pack int

const (
	PackFree     Pack = 1
	PackPro      Pack = 2
	PackUltimate Pack = 3
)

// ParsePack parses a pack number from a URL segment.
func ParsePack(s string) (Pack, bool) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	p := Pack(n)
	return p, p.IsValid()
}

// IsValid reports whether the pack is one of the three tiers.
func (p Pack) IsValid() bool {
	return p >= PackFree && p <= PackUltimate
}

// IsPaid reports whether the pack is sold through Gumroad.
func (p Pack) IsPaid() bool {
	return p == PackPro || p == PackUltimate
}

// Label is the customer facing pack name.
func (p Pack) Label() string {
	switch p {
	case PackFree:
		return "Free Pack"
	case PackPro:
		return "PDF Pro Pack"
	case PackUltimate:
		return "Ultimate CAD Pack"
	}
	return ""
}

// FAQContext is the FAQ pack_context value for the pack.
func (p Pack) FAQContext() string {
	switch p {
	case PackFree:
		return "free"
	case PackPro:
		return "pro"
	case PackUltimate:
		return "ultimate"
	}
	return ""
}

// DefaultDescription is shown when the admin left the pack description empty.
func (p Pack) DefaultDescription() string {
	switch p {
	case PackFree:
		return "Preview PDF with the floor plans, key dimensions and elevations."
	case PackPro:
		return "Complete PDF documentation: plans, sections, elevations and construction details."
	case PackUltimate:
		return "Everything in the PDF Pro Pack plus editable CAD (DWG) files for your architect or contractor."
	}
	return ""
}

// PackTier is the rendered view of one pack on a plan page.
type PackTier struct {
	Pack        Pack             `json:"pack"`
	Label       string           `json:"label"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	IsFree      bool             `json:"is_free"`
	Available   bool             `json:"available"`
	Description string           `json:"description"`
}

// PackVisibility switches whole tiers on or off site-wide.
type PackVisibility map[Pack]bool

// DefaultPackVisibility shows every pack.
func DefaultPackVisibility() PackVisibility {
	return PackVisibility{PackFree: true, PackPro: true, PackUltimate: true}
}

// IsActive reports whether a pack is visible. Unknown packs default to visible.
func (v PackVisibility) IsActive(p Pack) bool {
	active, ok := v[p]
	return !ok || active
}

// Normalize fills missing entries with the default.
func (v PackVisibility) Normalize() PackVisibility {
	out := DefaultPackVisibility()
	for p := range out {
		if active, ok := v[p]; ok {
			out[p] = active
		}
	}
	return out
}

// FilterTiers drops tiers whose pack is hidden.
func (v PackVisibility) FilterTiers(tiers []PackTier) []PackTier {
	out := make([]PackTier, 0, len(tiers))
	for _, t := range tiers {
		if v.IsActive(t.Pack) {
			out = append(out, t)
		}
	}
	return out
}

// VisibleStartingPrice is the lowest positive price among visible tiers.
func (v PackVisibility) VisibleStartingPrice(tiers []PackTier) *decimal.Decimal {
	prices := make([]*decimal.Decimal, 0, len(tiers))
	for _, t := range v.FilterTiers(tiers) {
		prices = append(prices, t.Price)
	}
	return lowestPositive(prices...)
}

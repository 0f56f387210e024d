// Package units converts between metric and imperial measures and formats
// them for dual-unit display. Values are stored metric.
package units

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	SqftPerM2     = 10.7639
	FeetPerMeter  = 3.28084
	MetersPerFoot = 0.3048
)

var printer = message.NewPrinter(language.English)

// M2ToSqft converts square metres to square feet.
func M2ToSqft(m2 float64) float64 { return m2 * SqftPerM2 }

// SqftToM2 converts square feet to square metres.
func SqftToM2(sqft float64) float64 { return sqft / SqftPerM2 }

// MetersToFeet converts metres to feet.
func MetersToFeet(m float64) float64 { return m * FeetPerMeter }

// FeetToMeters converts feet to metres.
func FeetToMeters(ft float64) float64 { return ft / FeetPerMeter }

// FormatAreaDual renders "120 m² (1,292 sq ft)". Nil renders "".
func FormatAreaDual(m2 *float64, precision int) string {
	if m2 == nil {
		return ""
	}
	return grouped(*m2, precision) + " m² (" + grouped(M2ToSqft(*m2), precision) + " sq ft)"
}

// FormatDimensionDual renders "12.5 m (41.0 ft)". Nil renders "".
func FormatDimensionDual(m *float64, precision int) string {
	if m == nil {
		return ""
	}
	return fixed(*m, precision) + " m (" + fixed(MetersToFeet(*m), precision) + " ft)"
}

// FormatDimensionsBox renders "12.5 m × 15.0 m (41.0 ft × 49.2 ft)".
// Both sides are required.
func FormatDimensionsBox(width, length *float64, precision int) string {
	if width == nil || length == nil {
		return ""
	}
	return fmt.Sprintf("%s m × %s m (%s ft × %s ft)",
		fixed(*width, precision), fixed(*length, precision),
		fixed(MetersToFeet(*width), precision), fixed(MetersToFeet(*length), precision))
}

// FormatCostRange renders an estimate such as "$50,000 - $75,000 USD".
func FormatCostRange(low, high *decimal.Decimal, currency string) string {
	if currency == "" {
		currency = "USD"
	}
	switch {
	case low != nil && high != nil:
		return fmt.Sprintf("$%s - $%s %s", money(*low), money(*high), currency)
	case low != nil:
		return fmt.Sprintf("$%s+ %s", money(*low), currency)
	case high != nil:
		return fmt.Sprintf("Up to $%s %s", money(*high), currency)
	}
	return ""
}

// FormatMoney renders a price with two decimals and grouping, e.g. "1,250.00".
func FormatMoney(d decimal.Decimal) string {
	f, _ := d.Round(2).Float64()
	return grouped(f, 2)
}

func money(d decimal.Decimal) string {
	f, _ := d.Round(0).Float64()
	return grouped(f, 0)
}

func grouped(v float64, precision int) string {
	return printer.Sprintf(fmt.Sprintf("%%.%df", clampPrecision(precision)), v)
}

func fixed(v float64, precision int) string {
	return fmt.Sprintf("%.*f", clampPrecision(precision), v)
}

func clampPrecision(p int) int {
	if p < 0 {
		return 0
	}
	if p > 6 {
		return 6
	}
	return p
}

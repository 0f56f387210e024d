package units

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func f(v float64) *float64 { return &v }

func d(s string) *decimal.Decimal {
	v := decimal.RequireFromString(s)
	return &v
}

func TestConversions(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1076.39, M2ToSqft(100), 1e-9)
	assert.InDelta(t, 100, SqftToM2(1076.39), 1e-9)
	assert.InDelta(t, 32.8084, MetersToFeet(10), 1e-9)
	assert.InDelta(t, 10, FeetToMeters(32.8084), 1e-9)
}

func TestFormatAreaDual(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "120 m² (1,292 sq ft)", FormatAreaDual(f(120), 0))
	assert.Equal(t, "85.5 m² (920.3 sq ft)", FormatAreaDual(f(85.5), 1))
	assert.Equal(t, "1,200 m² (12,917 sq ft)", FormatAreaDual(f(1200), 0))
	assert.Equal(t, "", FormatAreaDual(nil, 0))
}

func TestFormatDimensionDual(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "12.5 m (41.0 ft)", FormatDimensionDual(f(12.5), 1))
	assert.Equal(t, "8.0 m (26.2 ft)", FormatDimensionDual(f(8), 1))
	assert.Equal(t, "", FormatDimensionDual(nil, 1))
}

func TestFormatDimensionsBox(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "12.5 m × 15.0 m (41.0 ft × 49.2 ft)", FormatDimensionsBox(f(12.5), f(15), 1))
	assert.Equal(t, "", FormatDimensionsBox(nil, f(15), 1))
}

func TestFormatCostRange(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "$50,000 - $75,000 USD", FormatCostRange(d("50000"), d("75000"), ""))
	assert.Equal(t, "$50,000+ USD", FormatCostRange(d("50000"), nil, "USD"))
	assert.Equal(t, "Up to $75,000 EUR", FormatCostRange(nil, d("75000"), "EUR"))
	assert.Equal(t, "", FormatCostRange(nil, nil, "USD"))
}

func TestTemplateFuncs_AcceptModelTypes(t *testing.T) {
	t.Parallel()

	funcs := TemplateFuncs()
	area := funcs["area"].(func(any, ...int) string)
	n := 3

	assert.Equal(t, "120 m² (1,292 sq ft)", area(f(120)))
	assert.Equal(t, "120 m² (1,292 sq ft)", area(120.0))
	assert.Equal(t, "3 m² (32 sq ft)", area(&n))
	assert.Equal(t, "", area((*float64)(nil)))
	assert.Equal(t, "", area("nope"))

	money := funcs["money"].(func(any) string)
	assert.Equal(t, "1,250.50", money(decimal.RequireFromString("1250.5")))
	assert.Equal(t, "", money(nil))
}

package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func intPtr(v int) *int { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestHousePlan_CurrentPrice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		price  string
		sale   *decimal.Decimal
		want   string
		onSale bool
	}{
		{name: "no sale", price: "120", want: "120"},
		{name: "sale below price", price: "120", sale: dec("99"), want: "99", onSale: true},
		{name: "sale above price is ignored", price: "120", sale: dec("150"), want: "120"},
		{name: "sale equal to price", price: "120", sale: dec("120"), want: "120"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := &HousePlan{Price: decimal.RequireFromString(tt.price), SalePrice: tt.sale}
			assert.True(t, p.CurrentPrice().Equal(decimal.RequireFromString(tt.want)))
			assert.Equal(t, tt.onSale, p.IsOnSale())
		})
	}
}

func TestHousePlan_PricingTiers(t *testing.T) {
	t.Parallel()

	p := &HousePlan{
		FreePDFFile:     "plan-12.pdf",
		PricePack2:      dec("49"),
		GumroadPack2URL: "https://myfreehouseplans.gumroad.com/l/pro12",
	}

	tiers := p.PricingTiers()
	require.Len(t, tiers, 3)

	assert.Equal(t, PackFree, tiers[0].Pack)
	assert.Equal(t, "Free Pack", tiers[0].Label)
	assert.True(t, tiers[0].IsFree)
	assert.True(t, tiers[0].Available)

	assert.Equal(t, "PDF Pro Pack", tiers[1].Label)
	assert.True(t, tiers[1].Available)
	assert.False(t, tiers[1].IsFree)

	assert.Equal(t, "Ultimate CAD Pack", tiers[2].Label)
	assert.False(t, tiers[2].Available)
	assert.Equal(t, PackUltimate.DefaultDescription(), tiers[2].Description)
}

func TestHousePlan_StartingPaidPrice(t *testing.T) {
	t.Parallel()

	p := &HousePlan{Price: decimal.RequireFromString("150"), PricePack2: dec("49"), PricePack3: dec("0")}
	got := p.StartingPaidPrice()
	require.NotNil(t, got)
	assert.True(t, got.Equal(decimal.RequireFromString("49")))

	free := &HousePlan{Price: decimal.Zero}
	assert.Nil(t, free.StartingPaidPrice())
}

func TestHousePlan_AreaFallbacks(t *testing.T) {
	t.Parallel()

	p := &HousePlan{TotalAreaM2: floatPtr(100)}
	require.NotNil(t, p.AreaSqft())
	assert.InDelta(t, 1076.39, *p.AreaSqft(), 0.001)
	assert.Equal(t, 100.0, *p.AreaM2())

	legacy := &HousePlan{SquareFeet: intPtr(1500)}
	assert.Equal(t, 1500.0, *legacy.AreaSqft())
	assert.InDelta(t, 139.354, *legacy.AreaM2(), 0.001)

	both := &HousePlan{TotalAreaM2: floatPtr(100), SquareFeet: intPtr(1200)}
	assert.Equal(t, 1200.0, *both.AreaSqft(), "entered square feet beat a conversion")
	assert.Equal(t, 100.0, *both.AreaM2())

	empty := &HousePlan{}
	assert.Nil(t, empty.AreaM2())
	assert.Nil(t, empty.AreaSqft())
}

func TestHousePlan_CountFallbacks(t *testing.T) {
	t.Parallel()

	p := &HousePlan{Bedrooms: intPtr(3), NumberOfBedrooms: intPtr(4), Stories: intPtr(2), Garage: intPtr(1)}
	assert.Equal(t, 4, *p.BedroomCount())
	assert.Equal(t, 2, *p.FloorCount())
	assert.Equal(t, 1, *p.ParkingCount())
	assert.Nil(t, p.BathroomCount())
}

func TestHousePlan_DimensionsSummary(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "12.5 m × 18 m", (&HousePlan{BuildingWidth: floatPtr(12.5), BuildingLength: floatPtr(18)}).DimensionsSummary())
	assert.Equal(t, "Width 10 m", (&HousePlan{BuildingWidth: floatPtr(10)}).DimensionsSummary())
	assert.Equal(t, "Length 9.2 m", (&HousePlan{BuildingLength: floatPtr(9.2)}).DimensionsSummary())
	assert.Equal(t, "", (&HousePlan{}).DimensionsSummary())
}

func TestHousePlan_ArchitecturalSummary(t *testing.T) {
	t.Parallel()

	p := &HousePlan{
		NumberOfFloors:    intPtr(2),
		NumberOfBedrooms:  intPtr(3),
		NumberOfBathrooms: floatPtr(2.5),
		RoofType:          " Hip ",
	}
	assert.Equal(t,
		"A practical 2-level, 3-bed, 2.5-bath, hip roof layout designed for straightforward construction and comfortable day-to-day living.",
		p.ArchitecturalSummary())

	assert.Equal(t, DefaultArchitecturalSummary, (&HousePlan{}).ArchitecturalSummary())
	assert.Equal(t, "Custom text", (&HousePlan{ShortDescription: "Custom text"}).ArchitecturalSummary())
}

func TestReferenceCodes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "MYFREEHOUSEPLANS-007/2026", ReferenceCode(7, 2026))
	assert.Equal(t, 7, ParseReferenceSequence("MYFREEHOUSEPLANS-007/2026"))
	assert.Equal(t, 1204, ParseReferenceSequence("MYFREEHOUSEPLANS-1204/2025"))
	assert.Equal(t, 0, ParseReferenceSequence("garbage"))
	assert.Equal(t, 0, ParseReferenceSequence("MYFREEHOUSEPLANS-abc/2025"))
}

func TestDerivePublicCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "MFP-007", DerivePublicCode("MYFREEHOUSEPLANS-007/2026", 99))
	assert.Equal(t, "MFP-1204", DerivePublicCode("MYFREEHOUSEPLANS-1204/2026", 99))
	assert.Equal(t, "MFP-042", DerivePublicCode("", 42))
	assert.Regexp(t, PublicCodePattern, DerivePublicCode("", 5))
}

func TestAutoShortDescription(t *testing.T) {
	t.Parallel()

	short := "A compact two bedroom home."
	assert.Equal(t, short, AutoShortDescription(short))

	long := make([]rune, 350)
	for i := range long {
		long[i] = 'é'
	}
	got := []rune(AutoShortDescription(string(long)))
	assert.Len(t, got, 300)
	assert.Equal(t, "...", string(got[297:]))
}

func TestDefaultFAQs_ReferenceDisplayCode(t *testing.T) {
	t.Parallel()

	p := &HousePlan{ID: 3, PublicPlanCode: "MFP-003", ReferenceCode: "MYFREEHOUSEPLANS-003/2026"}
	faqs := p.DefaultFAQs()
	require.Len(t, faqs, 8)
	assert.Contains(t, faqs[0].Answer, "MFP-003")
	assert.Equal(t, int64(3), faqs[7].PlanID)
}

func TestPackVisibility(t *testing.T) {
	t.Parallel()

	p := &HousePlan{
		Price:      decimal.RequireFromString("0"),
		PricePack2: dec("39"),
		PricePack3: dec("129"),
	}
	v := PackVisibility{PackPro: false}.Normalize()

	tiers := v.FilterTiers(p.PricingTiers())
	require.Len(t, tiers, 2)
	assert.Equal(t, PackFree, tiers[0].Pack)
	assert.Equal(t, PackUltimate, tiers[1].Pack)

	lowest := v.VisibleStartingPrice(p.PricingTiers())
	require.NotNil(t, lowest)
	assert.True(t, lowest.Equal(decimal.RequireFromString("129")))

	assert.True(t, PackVisibility{}.IsActive(PackPro))
}

func TestParsePack(t *testing.T) {
	t.Parallel()

	p, ok := ParsePack("2")
	assert.True(t, ok)
	assert.True(t, p.IsPaid())

	_, ok = ParsePack("4")
	assert.False(t, ok)
	_, ok = ParsePack("x")
	assert.False(t, ok)
}

package units

import (
	"html/template"

	"github.com/shopspring/decimal"
)

// TemplateFuncs exposes the formatters to html/template. Arguments may be
// plain numbers, pointers or decimals so templates can pass model fields as is.
func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"area": func(v any, precision ...int) string {
			return FormatAreaDual(ToFloat(v), optPrecision(precision, 0))
		},
		"dimension": func(v any, precision ...int) string {
			return FormatDimensionDual(ToFloat(v), optPrecision(precision, 1))
		},
		"dimensionsBox": func(w, l any) string {
			return FormatDimensionsBox(ToFloat(w), ToFloat(l), 1)
		},
		"costRange": func(low, high any) string {
			return FormatCostRange(toDecimal(low), toDecimal(high), "USD")
		},
		"money": func(v any) string {
			d := toDecimal(v)
			if d == nil {
				return ""
			}
			return FormatMoney(*d)
		},
	}
}

// ToFloat normalises template arguments to *float64. Unsupported or nil
// values yield nil.
func ToFloat(v any) *float64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case *float64:
		if x == nil {
			return nil
		}
		f = *x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case *int:
		if x == nil {
			return nil
		}
		f = float64(*x)
	case int64:
		f = float64(x)
	case decimal.Decimal:
		f = x.InexactFloat64()
	case *decimal.Decimal:
		if x == nil {
			return nil
		}
		f = x.InexactFloat64()
	default:
		return nil
	}
	return &f
}

func toDecimal(v any) *decimal.Decimal {
	switch x := v.(type) {
	case decimal.Decimal:
		return &x
	case *decimal.Decimal:
		return x
	}
	if f := ToFloat(v); f != nil {
		d := decimal.NewFromFloat(*f)
		return &d
	}
	return nil
}

func optPrecision(p []int, def int) int {
	if len(p) > 0 {
		return p[0]
	}
	return def
}

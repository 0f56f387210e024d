package handler

import (
	"errors"
	"net/url"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/go-playground/form/v4"
	"github.com/shopspring/decimal"
)

// formCodec decodes and encodes structs by one struct tag.
type formCodec struct {
	tag string
	dec *form.Decoder
	enc *form.Encoder
}

func newFormCodec(tag string) *formCodec {
	dec := form.NewDecoder()
	dec.SetTagName(tag)
	dec.SetMode(form.ModeExplicit)
	dec.RegisterCustomTypeFunc(func(vals []string) (interface{}, error) {
		return decimal.NewFromString(vals[0])
	}, decimal.Decimal{})

	enc := form.NewEncoder()
	enc.SetTagName(tag)
	enc.SetMode(form.ModeExplicit)
	enc.RegisterCustomTypeFunc(func(x interface{}) ([]string, error) {
		return []string{x.(decimal.Decimal).String()}, nil
	}, decimal.Decimal{})

	return &formCodec{tag: tag, dec: dec, enc: enc}
}

// Plans bind through their json tags, service inputs through form tags.
var codecs = map[string]*formCodec{
	"json": newFormCodec("json"),
	"form": newFormCodec("form"),
}

// decodeForm copies values into the tagged fields of the struct dst points to.
// tag selects the struct tag carrying the field name ("form" or "json").
// Absent booleans become false, matching unchecked checkboxes. Other absent
// fields keep their value, so an edit form can decode over a loaded record.
// Empty values reset the field, clearing pointers.
// The returned map holds a message per field that failed to parse.
func decodeForm(values url.Values, dst any, tag string, skip ...string) map[string]string {
	v := reflect.ValueOf(dst).Elem()
	clean := url.Values{}

	for name, i := range taggedFields(v.Type(), tag) {
		if slices.Contains(skip, name) {
			continue
		}
		fv := v.Field(i)
		raw, present := values[name]
		s := ""
		if len(raw) > 0 {
			s = strings.TrimSpace(raw[0])
		}
		switch {
		case !present:
			if fv.Kind() == reflect.Bool {
				fv.SetBool(false)
			}
		case s == "":
			fv.Set(reflect.Zero(fv.Type()))
		default:
			clean.Set(name, s)
		}
	}

	errs := make(map[string]string)
	err := codecs[tag].dec.Decode(dst, clean)
	var fieldErrs form.DecodeErrors
	switch {
	case errors.As(err, &fieldErrs):
		for name := range fieldErrs {
			errs[name] = "Enter a valid number."
		}
	case err != nil:
		errs["form"] = "The form could not be read."
	}
	return errs
}

// encodeForm is the reverse of decodeForm, used to prefill edit forms.
// Nil pointers are left out.
func encodeForm(src any, tag string) url.Values {
	values, err := codecs[tag].enc.Encode(src)
	if err != nil {
		return url.Values{}
	}
	return values
}

// taggedFields maps tag names to field indexes of struct type t.
func taggedFields(t reflect.Type, tag string) map[string]int {
	out := make(map[string]int, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(sf.Tag.Get(tag), ",")
		if name != "" && name != "-" {
			out[name] = i
		}
	}
	return out
}

// parseIDs reads repeated numeric values such as category_ids, ignoring junk.
func parseIDs(values []string) []int64 {
	ids := make([]int64, 0, len(values))
	for _, raw := range values {
		if id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64); err == nil && id > 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

package dicomfile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"

	"github.com/opencmr/dicomdir/internal/catalog"
)

// Extract returns the normalized value of the named attribute, or Absent
// when the tag is missing or the keyword is unknown. It never fails:
// extraction is a pure function of (record, keyword).
//
// Normalization precedence:
//  1. byte-string values are decoded and split on the `\` separator into an
//     ordered string sequence;
//  2. numeric values (binary ints/floats, and decimal-string tags marked
//     Numeric in the spec table) become a float or an ordered float sequence;
//  3. everything else passes through as a string or string sequence.
func (r *Record) Extract(keyword string) catalog.Value {
	spec, ok := specsByKeyword[keyword]
	if !ok {
		return catalog.Absent()
	}
	el, err := r.ds.FindElementByTag(spec.Tag)
	if err != nil {
		return catalog.Absent()
	}

	switch el.Value.ValueType() {
	case dicom.Bytes:
		raw, _ := el.Value.GetValue().([]byte)
		return catalog.NewStrings(splitByteString(raw))

	case dicom.Ints:
		ints, _ := el.Value.GetValue().([]int)
		return floatsValue(intsToFloats(ints))

	case dicom.Floats:
		fs, _ := el.Value.GetValue().([]float64)
		return floatsValue(fs)

	case dicom.Strings:
		ss, _ := el.Value.GetValue().([]string)
		trimmed := make([]string, len(ss))
		for i, s := range ss {
			trimmed[i] = strings.TrimRight(s, " \x00")
		}
		if spec.Numeric {
			if fs, ok := parseFloats(trimmed); ok {
				return floatsValue(fs)
			}
		}
		if len(trimmed) == 1 {
			return catalog.NewString(trimmed[0])
		}
		return catalog.NewStrings(trimmed)

	default:
		// Sequences and pixel data are outside the catalog's tag set; keep
		// a string rendering rather than dropping the value.
		return catalog.NewString(fmt.Sprint(el.Value.GetValue()))
	}
}

// ExtractWithFallback reads the primary keyword, falling back to the retired
// unqualified variant when the primary tag is absent. Both absent → Absent.
func (r *Record) ExtractWithFallback(primary string) catalog.Value {
	v := r.Extract(primary)
	if !v.IsAbsent() {
		return v
	}
	if fallback, ok := GeometryFallbacks[primary]; ok {
		return r.Extract(fallback)
	}
	return v
}

// StringTag extracts a tag expected to hold a single string, such as a UID.
// Empty string means absent or not a single string.
func (r *Record) StringTag(keyword string) string {
	v := r.Extract(keyword)
	if s, ok := v.AsString(); ok {
		return s
	}
	if ss, ok := v.AsStrings(); ok && len(ss) > 0 {
		return ss[0]
	}
	if f, ok := v.AsFloat(); ok {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return ""
}

func splitByteString(raw []byte) []string {
	s := strings.TrimRight(string(raw), " \x00")
	return strings.Split(s, `\`)
}

func parseFloats(ss []string) ([]float64, bool) {
	out := make([]float64, len(ss))
	for i, s := range ss {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}

func intsToFloats(ints []int) []float64 {
	out := make([]float64, len(ints))
	for i, n := range ints {
		out[i] = float64(n)
	}
	return out
}

func floatsValue(fs []float64) catalog.Value {
	if len(fs) == 1 {
		return catalog.NewFloat(fs[0])
	}
	return catalog.NewFloats(fs)
}

package catalog

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ValueKind discriminates the normalized forms a tag value can take.
type ValueKind int

const (
	KindAbsent ValueKind = iota
	KindString
	KindStrings
	KindFloat
	KindFloats
)

// Value is the normalized form of a DICOM tag value. It is a tagged variant:
// exactly one of the shapes below is populated according to Kind. Absent means
// the tag was not present on the record; it is a regular value, not an error.
type Value struct {
	kind ValueKind
	str  string
	strs []string
	num  float64
	nums []float64
}

// Absent is the value of a tag that was not present.
func Absent() Value { return Value{kind: KindAbsent} }

// NewString wraps a single string value.
func NewString(s string) Value { return Value{kind: KindString, str: s} }

// NewStrings wraps an ordered multi-component string value.
func NewStrings(ss []string) Value { return Value{kind: KindStrings, strs: ss} }

// NewFloat wraps a single numeric value.
func NewFloat(f float64) Value { return Value{kind: KindFloat, num: f} }

// NewFloats wraps an ordered numeric vector (e.g. pixel spacing, orientation).
func NewFloats(fs []float64) Value { return Value{kind: KindFloats, nums: fs} }

// Kind reports which shape this value holds.
func (v Value) Kind() ValueKind { return v.kind }

// IsAbsent reports whether the tag was missing from the record.
func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// AsString returns the string form and whether the value is a single string.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// AsStrings returns the component strings and whether the value is a string list.
func (v Value) AsStrings() ([]string, bool) {
	if v.kind != KindStrings {
		return nil, false
	}
	return v.strs, true
}

// AsFloat returns the numeric form and whether the value is a single number.
func (v Value) AsFloat() (float64, bool) {
	if v.kind != KindFloat {
		return 0, false
	}
	return v.num, true
}

// AsFloats returns the numeric vector and whether the value is a number list.
func (v Value) AsFloats() ([]float64, bool) {
	if v.kind != KindFloats {
		return nil, false
	}
	return v.nums, true
}

// Equal reports deep equality between two values.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindAbsent:
		return true
	case KindString:
		return v.str == o.str
	case KindFloat:
		return v.num == o.num
	case KindStrings:
		if len(v.strs) != len(o.strs) {
			return false
		}
		for i := range v.strs {
			if v.strs[i] != o.strs[i] {
				return false
			}
		}
		return true
	case KindFloats:
		if len(v.nums) != len(o.nums) {
			return false
		}
		for i := range v.nums {
			if v.nums[i] != o.nums[i] {
				return false
			}
		}
		return true
	}
	return false
}

// String renders the value for human-readable summaries.
func (v Value) String() string {
	switch v.kind {
	case KindAbsent:
		return "<absent>"
	case KindString:
		return v.str
	case KindStrings:
		return strings.Join(v.strs, "\\")
	case KindFloat:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindFloats:
		parts := make([]string, len(v.nums))
		for i, f := range v.nums {
			parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return ""
}

// MarshalJSON encodes the value into the snapshot schema: Absent is null,
// single values are JSON scalars, multi-component values are JSON arrays.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindAbsent:
		return []byte("null"), nil
	case KindString:
		return json.Marshal(v.str)
	case KindStrings:
		return json.Marshal(v.strs)
	case KindFloat:
		return json.Marshal(v.num)
	case KindFloats:
		return json.Marshal(v.nums)
	}
	return nil, fmt.Errorf("unknown value kind %d", v.kind)
}

// UnmarshalJSON restores a value from its snapshot form. Arrays must be
// homogeneous; an array of numbers restores as KindFloats, an array of
// strings as KindStrings.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	switch t := raw.(type) {
	case nil:
		*v = Absent()
	case string:
		*v = NewString(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return err
		}
		*v = NewFloat(f)
	case []interface{}:
		if len(t) == 0 {
			*v = NewStrings(nil)
			return nil
		}
		switch t[0].(type) {
		case string:
			ss := make([]string, len(t))
			for i, e := range t {
				s, ok := e.(string)
				if !ok {
					return fmt.Errorf("mixed-type array in tag value")
				}
				ss[i] = s
			}
			*v = NewStrings(ss)
		case json.Number:
			fs := make([]float64, len(t))
			for i, e := range t {
				n, ok := e.(json.Number)
				if !ok {
					return fmt.Errorf("mixed-type array in tag value")
				}
				f, err := n.Float64()
				if err != nil {
					return err
				}
				fs[i] = f
			}
			*v = NewFloats(fs)
		default:
			return fmt.Errorf("unsupported array element in tag value")
		}
	default:
		return fmt.Errorf("unsupported tag value %T", raw)
	}
	return nil
}

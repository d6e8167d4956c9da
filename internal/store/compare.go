package store

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Fold returns the case-folded form of s used for case-insensitive matching.
// Casers are stateful, so each call builds its own.
func Fold(s string) string {
	return cases.Fold().String(s)
}

// ToFloat coerces a column value to a number. Numeric strings convert;
// nil, booleans and non-numeric strings do not.
func ToFloat(v any) (float64, bool) {
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case float32:
		f = float64(val)
	case int:
		f = float64(val)
	case int8:
		f = float64(val)
	case int16:
		f = float64(val)
	case int32:
		f = float64(val)
	case int64:
		f = float64(val)
	case uint:
		f = float64(val)
	case uint8:
		f = float64(val)
	case uint16:
		f = float64(val)
	case uint32:
		f = float64(val)
	case uint64:
		f = float64(val)
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case []byte:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(string(val)), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func isNumberKind(v any) bool {
	switch v.(type) {
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, json.Number:
		return true
	}
	return false
}

// Compare orders two column values. nil sorts after every non-nil value.
// Numbers compare numerically (a numeric string against a number too),
// strings lexicographically, false before true, times chronologically.
// Mismatched kinds fall back to their string forms.
func Compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}

	if isNumberKind(a) || isNumberKind(b) {
		fa, okA := ToFloat(a)
		fb, okB := ToFloat(b)
		if okA && okB {
			return compareFloats(fa, fb)
		}
	}

	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0
			case !av:
				return -1
			default:
				return 1
			}
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	}

	return strings.Compare(stringOf(a), stringOf(b))
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func stringOf(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v)
	}
}

// Equal reports whether two column values are equal, optionally ignoring case.
func Equal(a, b any, foldCase bool) bool {
	if a == nil || b == nil {
		return false
	}
	if foldCase {
		if as, ok := a.(string); ok {
			if bs, ok := b.(string); ok {
				return Fold(as) == Fold(bs)
			}
		}
	}
	return Compare(a, b) == 0
}

// Contains reports whether value contains the substring needle.
func Contains(value, needle any, foldCase bool) bool {
	if value == nil || needle == nil {
		return false
	}
	hay, pat := stringOf(value), stringOf(needle)
	if foldCase {
		hay, pat = Fold(hay), Fold(pat)
	}
	return strings.Contains(hay, pat)
}

package plan

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Value is the sealed union of filter values.
// Only String, Number, Bool, Array and Subquery implement it.
type Value interface {
	filterValue()
}

// Scalar is a single string, number or boolean value.
type Scalar interface {
	Value
	// Native returns the Go value (string, float64 or bool).
	Native() any
}

// String is a string scalar.
type String string

func (String) filterValue() {}

// Native implements Scalar.
func (s String) Native() any { return string(s) }

// Number is a numeric scalar. JSON numbers have no integer kind, so every
// number is carried as float64.
type Number float64

func (Number) filterValue() {}

// Native implements Scalar.
func (n Number) Native() any { return float64(n) }

// Bool is a boolean scalar.
type Bool bool

func (Bool) filterValue() {}

// Native implements Scalar.
func (b Bool) Native() any { return bool(b) }

// Array is the value of an in / not_in filter.
type Array []Scalar

func (Array) filterValue() {}

// Natives returns the elements as Go values.
func (a Array) Natives() []any {
	out := make([]any, len(a))
	for i, s := range a {
		out[i] = s.Native()
	}
	return out
}

// Subquery wraps a nested plan whose result provides the identifiers of an
// in / not_in filter.
type Subquery struct {
	Plan *QueryPlan
}

func (Subquery) filterValue() {}

// ScalarOf converts a Go value into a Scalar.
func ScalarOf(v any) (Scalar, error) {
	switch val := v.(type) {
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case float64:
		return Number(val), nil
	case float32:
		return Number(val), nil
	case int:
		return Number(val), nil
	case int32:
		return Number(val), nil
	case int64:
		return Number(val), nil
	case uint64:
		return Number(val), nil
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", val.String(), err)
		}
		return Number(f), nil
	case String, Number, Bool:
		return val.(Scalar), nil
	case nil:
		return nil, fmt.Errorf("null is not a valid filter value")
	default:
		return nil, fmt.Errorf("unsupported scalar type %T", v)
	}
}

// ValueOf converts a decoded JSON/YAML value into a Value.
// Lists become Array; a map must be a {"subquery": plan} wrapper.
func ValueOf(v any) (Value, error) {
	switch val := v.(type) {
	case []any:
		arr := make(Array, 0, len(val))
		for i, elem := range val {
			s, err := ScalarOf(elem)
			if err != nil {
				return nil, fmt.Errorf("array element %d: %w", i, err)
			}
			arr = append(arr, s)
		}
		return arr, nil
	case []string:
		arr := make(Array, len(val))
		for i, s := range val {
			arr[i] = String(s)
		}
		return arr, nil
	case map[string]any:
		raw, ok := val["subquery"]
		if !ok || len(val) != 1 {
			return nil, fmt.Errorf("object values must be a {\"subquery\": plan} wrapper")
		}
		// Round-trip through JSON so nested filters are decoded by FieldFilter.
		data, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("encode subquery: %w", err)
		}
		var nested QueryPlan
		if err := json.Unmarshal(data, &nested); err != nil {
			return nil, fmt.Errorf("decode subquery: %w", err)
		}
		return Subquery{Plan: &nested}, nil
	case Value:
		return val, nil
	default:
		return ScalarOf(v)
	}
}

// NativeOf converts a Value back into plain Go data for encoding.
func NativeOf(v Value) any {
	switch val := v.(type) {
	case Scalar:
		return val.Native()
	case Array:
		return val.Natives()
	case Subquery:
		return map[string]any{"subquery": val.Plan}
	default:
		return nil
	}
}

// Float returns the numeric value of a scalar. Numbers convert directly;
// strings convert when they parse as a finite float.
func Float(s Scalar) (float64, bool) {
	switch val := s.(type) {
	case Number:
		return float64(val), true
	case String:
		f, err := strconv.ParseFloat(string(val), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Describe renders a value for error messages and logs.
func Describe(v Value) string {
	switch val := v.(type) {
	case String:
		return strconv.Quote(string(val))
	case Number:
		return strconv.FormatFloat(float64(val), 'f', -1, 64)
	case Bool:
		return strconv.FormatBool(bool(val))
	case Array:
		return fmt.Sprintf("array(%d)", len(val))
	case Subquery:
		if val.Plan != nil && val.Plan.Intent != "" {
			return fmt.Sprintf("subquery(%q)", val.Plan.Intent)
		}
		return "subquery"
	case nil:
		return "<none>"
	default:
		return fmt.Sprintf("%T", v)
	}
}

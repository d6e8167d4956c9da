package harness

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/planq/internal/engine"
)

// CheckExpect compares res with e and returns one message per mismatch.
func CheckExpect(e *Expect, res *engine.QueryResult) []string {
	var failures []string
	fail := func(format string, args ...any) {
		failures = append(failures, fmt.Sprintf(format, args...))
	}

	if e.Success != nil && *e.Success != res.Success {
		fail("expected success=%t, got %t (code=%s error=%q)", *e.Success, res.Success, res.Code, res.Error)
		return failures
	}
	if e.Code != "" && string(res.Code) != e.Code {
		fail("expected code %s, got %q (error=%q)", e.Code, res.Code, res.Error)
	}
	if e.ErrorContains != "" && !strings.Contains(res.Error, e.ErrorContains) {
		fail("expected error containing %q, got %q", e.ErrorContains, res.Error)
	}
	if e.RowCount != nil && *e.RowCount != res.RowCount {
		fail("expected row_count %d, got %d", *e.RowCount, res.RowCount)
	}
	if e.Warnings != nil && *e.Warnings != len(res.Warnings) {
		fail("expected %d warnings, got %d: %v", *e.Warnings, len(res.Warnings), res.Warnings)
	}

	if e.IDs != nil {
		got := make([]any, len(res.Data))
		for i, row := range res.Data {
			got[i] = row["id"]
		}
		if !valuesEqual(got, e.IDs) {
			fail("expected ids %v, got %v", e.IDs, got)
		}
	}

	if e.Rows != nil {
		if len(e.Rows) != len(res.Data) {
			fail("expected %d rows, got %d", len(e.Rows), len(res.Data))
		} else {
			for i, want := range e.Rows {
				if !matchFields(res.Data[i], want) {
					fail("row %d: expected fields %v, got %v", i, want, map[string]any(res.Data[i]))
				}
			}
		}
	}

	if e.Aggregated != nil {
		if !res.IsAggregate {
			fail("expected an aggregated result")
		} else if !valuesEqual(res.Aggregated, e.Aggregated) {
			fail("expected aggregated %v, got %v", e.Aggregated, res.Aggregated)
		}
	}

	return failures
}

// matchFields reports whether every expected key is present in actual with
// an equal value. Extra keys in actual are OK, also in nested joined rows.
func matchFields(actual map[string]any, expected map[string]any) bool {
	for key, expectedVal := range expected {
		actualVal, exists := actual[key]
		if !exists {
			return false
		}
		if nested, ok := expectedVal.(map[string]any); ok {
			actualNested, ok := normalize(actualVal).(map[string]any)
			if !ok || !matchFields(actualNested, nested) {
				return false
			}
			continue
		}
		if !valuesEqual(actualVal, expectedVal) {
			return false
		}
	}
	return true
}

// valuesEqual compares values after normalizing both through JSON, so YAML
// integers equal store floats and store.Row equals a plain map.
func valuesEqual(actual, expected any) bool {
	return reflect.DeepEqual(normalize(actual), normalize(expected))
}

func normalize(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

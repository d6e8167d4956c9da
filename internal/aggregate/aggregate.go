// Package aggregate computes count, sum, avg, min and max over the rows a
// store returned, with optional grouping, having, sort and limit.
//
// Aggregation always runs over the full materialized row set. The backing
// store is never asked to aggregate: the grouped contract (having on the
// aggregate value, sort by an aggregate name, default limit) is defined
// here, and every backend must produce the same answer for the same rows.
package aggregate

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/planq/internal/plan"
	"github.com/roach88/planq/internal/schema"
	"github.com/roach88/planq/internal/store"
)

// DefaultGroupLimit caps grouped results when the plan sets no limit.
const DefaultGroupLimit = 10

var (
	// ErrMissingField: the function reduces a column but none was named.
	ErrMissingField = errors.New("aggregation field is required")

	// ErrNoNumericValues: an ungrouped reduction found nothing to reduce.
	ErrNoNumericValues = errors.New("no numeric values to aggregate")
)

// Spec describes one aggregation over rows of Tables[0].
type Spec struct {
	Aggregation plan.Aggregation
	Sort        *plan.SortConfig
	Limit       *int
	Tables      []string
}

// Group is one grouped result row: the group-by fields under their bare
// names plus the function name mapped to the aggregate value.
type Group map[string]any

// Result is the outcome of Apply.
type Result struct {
	Function plan.AggFunc
	Grouped  bool

	// Scalar is the ungrouped value; nil when having rejected it.
	Scalar any

	// Groups holds grouped rows after having, sort and limit.
	Groups []Group

	// TotalGroups counts groups before having and limit.
	TotalGroups int
}

// Value returns the aggregated payload: the group rows when grouped,
// otherwise the scalar.
func (r *Result) Value() any {
	if r.Grouped {
		return r.Groups
	}
	return r.Scalar
}

// Apply aggregates rows according to spec.
func Apply(rows []store.Row, spec Spec) (*Result, error) {
	agg := spec.Aggregation
	if agg.Function.RequiresField() && agg.Field == "" {
		return nil, fmt.Errorf("%s: %w", agg.Function, ErrMissingField)
	}
	if !plan.IsAggFuncName(string(agg.Function)) {
		return nil, fmt.Errorf("unknown aggregation function %q", agg.Function)
	}

	x := extractor{tables: spec.Tables}
	having, err := newHaving(agg.Having, agg.Function)
	if err != nil {
		return nil, err
	}

	if len(agg.GroupBy) == 0 {
		return applyScalar(rows, agg, x, having)
	}
	return applyGrouped(rows, spec, x, having)
}

func applyScalar(rows []store.Row, agg plan.Aggregation, x extractor, having *havingFilter) (*Result, error) {
	b := newBucket(nil)
	for _, r := range rows {
		b.add(r, agg.Field, x)
	}

	value := b.value(agg.Function)
	if agg.Function != plan.AggCount && b.numeric == 0 {
		return nil, fmt.Errorf("%s(%s) over %d rows: %w", agg.Function, agg.Field, len(rows), ErrNoNumericValues)
	}

	res := &Result{Function: agg.Function, Scalar: value}
	if having != nil && !having.keep(b, nil) {
		res.Scalar = nil
	}
	return res, nil
}

func applyGrouped(rows []store.Row, spec Spec, x extractor, having *havingFilter) (*Result, error) {
	agg := spec.Aggregation
	keys := make([]string, len(agg.GroupBy))
	for i, g := range agg.GroupBy {
		keys[i] = bareName(g)
	}

	buckets := make(map[string]*bucket)
	var order []string
	for _, r := range rows {
		values := make([]any, len(agg.GroupBy))
		parts := make([]string, len(agg.GroupBy))
		for i, g := range agg.GroupBy {
			values[i] = x.value(r, g)
			parts[i] = fmt.Sprintf("%T:%v", values[i], values[i])
		}
		key := strings.Join(parts, "\x00")
		b, ok := buckets[key]
		if !ok {
			b = newBucket(values)
			buckets[key] = b
			order = append(order, key)
		}
		b.add(r, agg.Field, x)
	}

	kept := make([]*bucket, 0, len(order))
	for _, key := range order {
		b := buckets[key]
		if having == nil || having.keep(b, keys) {
			kept = append(kept, b)
		}
	}

	sortKey := sortValue(spec.Sort, agg.Function, keys)
	desc := spec.Sort == nil || spec.Sort.Descending()
	slices.SortStableFunc(kept, func(a, b *bucket) int {
		va, vb := sortKey(a), sortKey(b)
		switch {
		case va == nil && vb == nil:
			return 0
		case va == nil:
			return 1
		case vb == nil:
			return -1
		}
		c := store.Compare(va, vb)
		if desc {
			return -c
		}
		return c
	})

	limit := DefaultGroupLimit
	if spec.Limit != nil && *spec.Limit > 0 {
		limit = *spec.Limit
	}
	if len(kept) > limit {
		kept = kept[:limit]
	}

	res := &Result{Function: agg.Function, Grouped: true, TotalGroups: len(order), Groups: make([]Group, len(kept))}
	for i, b := range kept {
		g := make(Group, len(keys)+1)
		for j, k := range keys {
			g[k] = b.groupValues[j]
		}
		g[string(agg.Function)] = b.value(agg.Function)
		res.Groups[i] = g
	}
	return res, nil
}

// sortValue picks what groups are ordered by: the named aggregate, a
// group-by field, or by default the aggregate value itself.
func sortValue(sort *plan.SortConfig, fn plan.AggFunc, keys []string) func(*bucket) any {
	if sort != nil && sort.Field != "" {
		if plan.IsAggFuncName(sort.Field) {
			named := plan.AggFunc(sort.Field)
			return func(b *bucket) any { return b.value(named) }
		}
		if i := slices.Index(keys, bareName(sort.Field)); i >= 0 {
			return func(b *bucket) any { return b.groupValues[i] }
		}
	}
	return func(b *bucket) any { return b.value(fn) }
}

func bareName(ref string) string {
	if _, field, ok := schema.SplitField(ref); ok {
		return field
	}
	return ref
}

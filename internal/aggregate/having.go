package aggregate

import (
	"fmt"
	"slices"

	"github.com/roach88/planq/internal/plan"
	"github.com/roach88/planq/internal/store"
)

// havingFilter keeps or drops buckets. A filter naming an aggregate function
// tests that statistic and one naming a group-by column tests the bucket's
// value for it. Any other column stands for the aggregated value.
type havingFilter struct {
	aggregate plan.AggFunc
	fn        plan.AggFunc
	field     string
	pred      store.Predicate
}

func newHaving(f *plan.FieldFilter, fn plan.AggFunc) (*havingFilter, error) {
	if f == nil {
		return nil, nil
	}
	h := &havingFilter{fn: fn}
	if plan.IsAggFuncName(f.Field) {
		h.aggregate = plan.AggFunc(f.Field)
	} else {
		h.field = bareName(f.Field)
	}

	switch f.Operator {
	case plan.OpEq, plan.OpNeq, plan.OpGt, plan.OpGte, plan.OpLt, plan.OpLte:
		s, ok := f.Value.(plan.Scalar)
		if !ok {
			return nil, fmt.Errorf("having %s: %s requires a scalar", f.Field, f.Operator)
		}
		h.pred = store.Predicate{Op: store.Op(f.Operator), Value: s.Native()}
	case plan.OpLike:
		s, ok := f.Value.(plan.String)
		if !ok {
			return nil, fmt.Errorf("having %s: like requires a string", f.Field)
		}
		h.pred = store.Predicate{Op: store.OpContains, Value: string(s)}
	case plan.OpIn, plan.OpNotIn:
		arr, ok := f.Value.(plan.Array)
		if !ok {
			return nil, fmt.Errorf("having %s: %s requires an array", f.Field, f.Operator)
		}
		h.pred = store.Predicate{Op: store.Op(f.Operator), Values: arr.Natives()}
	default:
		return nil, fmt.Errorf("having %s: unsupported operator %q", f.Field, f.Operator)
	}
	return h, nil
}

func (h *havingFilter) keep(b *bucket, keys []string) bool {
	if h.aggregate != "" {
		return store.Match(h.pred, b.value(h.aggregate))
	}
	if i := slices.Index(keys, h.field); i >= 0 {
		return store.Match(h.pred, b.groupValues[i])
	}
	return store.Match(h.pred, b.value(h.fn))
}

package aggregate

import (
	"github.com/roach88/planq/internal/plan"
	"github.com/roach88/planq/internal/schema"
	"github.com/roach88/planq/internal/store"
)

// bucket accumulates every statistic at once so having and sort may name
// any aggregate function.
type bucket struct {
	groupValues []any
	rows        int
	numeric     int
	sum         float64
	min         float64
	max         float64
}

func newBucket(groupValues []any) *bucket {
	return &bucket{groupValues: groupValues}
}

// add counts the row and folds its numeric field value, if any, into the
// reductions. Missing and non-numeric values are excluded, not zeroed.
func (b *bucket) add(r store.Row, field string, x extractor) {
	b.rows++
	if field == "" {
		return
	}
	f, ok := store.ToFloat(x.value(r, field))
	if !ok {
		return
	}
	if b.numeric == 0 || f < b.min {
		b.min = f
	}
	if b.numeric == 0 || f > b.max {
		b.max = f
	}
	b.sum += f
	b.numeric++
}

// value returns the statistic for fn. avg, min and max are nil when no
// numeric value was seen.
func (b *bucket) value(fn plan.AggFunc) any {
	switch fn {
	case plan.AggCount:
		return b.rows
	case plan.AggSum:
		return b.sum
	case plan.AggAvg:
		if b.numeric == 0 {
			return nil
		}
		return b.sum / float64(b.numeric)
	case plan.AggMin:
		if b.numeric == 0 {
			return nil
		}
		return b.min
	case plan.AggMax:
		if b.numeric == 0 {
			return nil
		}
		return b.max
	default:
		return nil
	}
}

// extractor reads plan field references out of store rows.
type extractor struct {
	tables []string
}

// value resolves "table.field" against the primary columns or the nested
// joined table, and a bare field against the primary table first, then the
// joined tables in plan order.
func (x extractor) value(r store.Row, ref string) any {
	primary := ""
	if len(x.tables) > 0 {
		primary = x.tables[0]
	}
	if table, field, ok := schema.SplitField(ref); ok {
		v, _ := r.Lookup(primary, table, field)
		return v
	}
	if v, ok := r[ref]; ok {
		if _, nested := v.(store.Row); !nested {
			return v
		}
	}
	for _, t := range x.tables[min(1, len(x.tables)):] {
		if v, ok := r.Lookup(primary, t, ref); ok {
			return v
		}
	}
	return nil
}

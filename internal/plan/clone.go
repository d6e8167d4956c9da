package plan

import "slices"

// Clone returns a deep copy of the plan, nested subquery plans included.
func (p *QueryPlan) Clone() *QueryPlan {
	if p == nil {
		return nil
	}
	out := &QueryPlan{
		Intent: p.Intent,
		Tables: slices.Clone(p.Tables),
		Joins:  slices.Clone(p.Joins),
	}
	if p.Filters != nil {
		out.Filters = make([]FieldFilter, len(p.Filters))
		for i, f := range p.Filters {
			out.Filters[i] = f.Clone()
		}
	}
	if p.Aggregation != nil {
		agg := *p.Aggregation
		agg.GroupBy = slices.Clone(p.Aggregation.GroupBy)
		if p.Aggregation.Having != nil {
			having := p.Aggregation.Having.Clone()
			agg.Having = &having
		}
		out.Aggregation = &agg
	}
	if p.Sort != nil {
		sort := *p.Sort
		out.Sort = &sort
	}
	if p.Limit != nil {
		out.Limit = IntPtr(*p.Limit)
	}
	return out
}

// Clone returns a deep copy of the filter.
func (f FieldFilter) Clone() FieldFilter {
	out := f
	switch v := f.Value.(type) {
	case Array:
		out.Value = slices.Clone(v)
	case Subquery:
		out.Value = Subquery{Plan: v.Plan.Clone()}
	}
	return out
}

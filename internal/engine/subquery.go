package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/planq/internal/metrics"
	"github.com/roach88/planq/internal/plan"
	"github.com/roach88/planq/internal/schema"
)

// resolveSubqueries replaces every subquery value in p with the identifier
// array its nested plan yields. Nested plans were validated with their
// parent. Filters resolve in order, one at a time.
// An empty not_in set drops the filter; an empty in set is kept and
// matches nothing.
func (e *Executor) resolveSubqueries(ctx context.Context, x *execution, p *plan.QueryPlan, depth int) error {
	filters := p.Filters[:0:0]
	for _, f := range p.Filters {
		if f.Operator == plan.OpNotIn {
			if arr, ok := f.Value.(plan.Array); ok && len(arr) == 0 {
				x.log.Debug("empty exclusion dropped", "field", f.Field, "depth", depth)
				continue
			}
		}

		sub, ok := f.Value.(plan.Subquery)
		if !ok {
			filters = append(filters, f)
			continue
		}

		ids, err := e.resolveSubquery(ctx, x, f.Field, sub, depth+1)
		if err != nil {
			e.metrics.SubqueryResolved(string(CodeSubqueryFailed))
			return err
		}
		e.metrics.SubqueryResolved(metrics.OutcomeOK)
		x.log.Debug("subquery resolved",
			"field", f.Field,
			"operator", f.Operator,
			"ids", len(ids),
			"depth", depth+1)

		if len(ids) == 0 && f.Operator == plan.OpNotIn {
			continue
		}
		f.Value = ids
		filters = append(filters, f)
	}
	p.Filters = filters
	return nil
}

func (e *Executor) resolveSubquery(ctx context.Context, x *execution, field string, sub plan.Subquery, depth int) (plan.Array, error) {
	if depth > e.maxDepth {
		return nil, NewDepthExceeded(field, depth, e.maxDepth)
	}
	if err := ctx.Err(); err != nil {
		return nil, NewSubqueryFailed(field, intentOf(sub.Plan), contextError(err))
	}
	if sub.Plan == nil {
		return nil, NewSubqueryFailed(field, "", NewSchemaViolation(field, "subquery has no plan"))
	}

	out, err := e.run(ctx, x, sub.Plan, depth, true)
	if err != nil {
		return nil, NewSubqueryFailed(field, sub.Plan.Intent, err)
	}

	ids, err := e.identifiers(sub.Plan, out)
	if err != nil {
		return nil, NewSubqueryFailed(field, sub.Plan.Intent, err)
	}
	return ids, nil
}

// identifiers extracts the flat, de-duplicated identifier set of a nested
// result: the first group-by column of a grouped aggregation, otherwise
// the first result column named id or ending in _id. The owner column is
// skipped; it is constant for the caller.
func (e *Executor) identifiers(p *plan.QueryPlan, out *outcome) (plan.Array, error) {
	var values []any

	if out.agg != nil {
		if !out.agg.Grouped {
			return nil, &QueryError{
				Code:    CodeSubqueryFailed,
				Message: "an ungrouped aggregation yields a single value, not identifiers",
			}
		}
		key := p.Aggregation.GroupBy[0]
		if _, bare, ok := schema.SplitField(key); ok {
			key = bare
		}
		for _, g := range out.agg.Groups {
			values = append(values, g[key])
		}
	} else {
		column := e.idColumn(out.columns)
		if column == "" {
			return nil, &QueryError{
				Code:    CodeSubqueryFailed,
				Message: fmt.Sprintf("result of %s has no identifier column", p.PrimaryTable()),
			}
		}
		for _, r := range out.rows {
			values = append(values, r[column])
		}
	}

	ids := plan.Array{}
	seen := make(map[any]bool, len(values))
	for _, v := range values {
		if v == nil {
			continue
		}
		s, err := plan.ScalarOf(v)
		if err != nil {
			s = plan.String(fmt.Sprint(v))
		}
		if seen[s] {
			continue
		}
		seen[s] = true
		ids = append(ids, s)
	}
	return ids, nil
}

func (e *Executor) idColumn(columns []string) string {
	owner := e.registry.OwnerField()
	for _, c := range columns {
		if c == owner {
			continue
		}
		if c == "id" || strings.HasSuffix(c, "_id") {
			return c
		}
	}
	return ""
}

func intentOf(p *plan.QueryPlan) string {
	if p == nil {
		return ""
	}
	return p.Intent
}

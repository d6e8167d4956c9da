package engine

import (
	"fmt"
	"slices"

	"github.com/roach88/planq/internal/plan"
	"github.com/roach88/planq/internal/schema"
	"github.com/roach88/planq/internal/store"
)

// buildQuery turns a resolved, secured plan into a store query.
//
// The primary table is Tables[0]. Joins attach in plan order to whichever
// side is already part of the query; every other plan table must end up
// joined. Projections are every queryable field of each table.
func (e *Executor) buildQuery(p *plan.QueryPlan, forSubquery bool) (store.Query, error) {
	primary := p.PrimaryTable()
	q := store.Query{
		Table:   primary,
		Columns: e.registry.FieldsOf(primary),
	}

	joins, err := e.buildJoins(p)
	if err != nil {
		return store.Query{}, err
	}

	joined := make([]string, len(joins))
	for i, j := range joins {
		joined[i] = j.Table
	}
	for _, t := range p.Tables[1:] {
		if t != primary && !slices.Contains(joined, t) {
			return store.Query{}, &QueryError{
				Code:    CodeExecutionFailed,
				Field:   t,
				Message: fmt.Sprintf("table %s is listed in the plan but never joined to %s", t, primary),
			}
		}
	}

	part, err := e.translator.Partition(p.Filters, primary, joined)
	if err != nil {
		return store.Query{}, &QueryError{Code: CodeExecutionFailed, Message: err.Error(), Err: err}
	}
	q.Predicates = part.Primary
	for i := range joins {
		joins[i].Predicates = part.Joined[joins[i].Table]
	}
	q.Joins = joins

	if p.Aggregation == nil && p.Sort != nil {
		if table, field, ok := schema.SplitField(p.Sort.Field); ok {
			q.Order = []store.Order{{Table: table, Field: field, Desc: p.Sort.Descending()}}
		}
	}

	q.Limit = e.storeLimit(p, forSubquery)
	return q, nil
}

// storeLimit is the row limit sent to the store. Raw reads use the plan
// limit or the soft default, capped at the hard ceiling; aggregations
// fetch up to the aggregation row ceiling and apply the plan limit to
// groups instead.
func (e *Executor) storeLimit(p *plan.QueryPlan, forSubquery bool) int {
	if p.Aggregation != nil {
		return e.rowCeiling
	}
	limit := e.softLimit
	if forSubquery {
		limit = e.hardLimit
	}
	if p.Limit != nil && *p.Limit > 0 {
		limit = *p.Limit
	}
	return min(limit, e.hardLimit)
}

func (e *Executor) buildJoins(p *plan.QueryPlan) ([]store.Join, error) {
	primary := p.PrimaryTable()
	known := map[string]bool{primary: true}
	pending := append([]plan.TableJoin(nil), p.Joins...)
	var joins []store.Join

	for len(pending) > 0 {
		progressed := false
		rest := pending[:0]
		for _, tj := range pending {
			j, ok, err := e.attach(tj, known)
			if err != nil {
				return nil, err
			}
			if !ok {
				rest = append(rest, tj)
				continue
			}
			known[j.Table] = true
			joins = append(joins, j)
			progressed = true
		}
		pending = rest
		if !progressed {
			tj := pending[0]
			return nil, &QueryError{
				Code:    CodeExecutionFailed,
				Field:   tj.From + "-" + tj.To,
				Message: fmt.Sprintf("join %s-%s is not connected to %s", tj.From, tj.To, primary),
			}
		}
	}
	return joins, nil
}

// attach orients tj so its new table hangs off a table already in the
// query. ok is false when neither side is known yet.
func (e *Executor) attach(tj plan.TableJoin, known map[string]bool) (store.Join, bool, error) {
	jt := store.JoinInner
	if tj.Type == plan.JoinLeft {
		jt = store.JoinLeft
	}

	switch {
	case known[tj.From] && known[tj.To]:
		return store.Join{}, false, &QueryError{
			Code:    CodeExecutionFailed,
			Field:   tj.From + "-" + tj.To,
			Message: fmt.Sprintf("join %s-%s links two tables already in the query", tj.From, tj.To),
		}
	case known[tj.From]:
		return store.Join{
			Table:        tj.To,
			Type:         jt,
			Columns:      e.registry.FieldsOf(tj.To),
			LocalTable:   tj.From,
			LocalField:   tj.FromField,
			ForeignField: tj.ToField,
		}, true, nil
	case known[tj.To]:
		return store.Join{
			Table:        tj.From,
			Type:         jt,
			Columns:      e.registry.FieldsOf(tj.From),
			LocalTable:   tj.To,
			LocalField:   tj.ToField,
			ForeignField: tj.FromField,
		}, true, nil
	default:
		return store.Join{}, false, nil
	}
}


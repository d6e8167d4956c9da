package engine

import (
	"github.com/roach88/planq/internal/plan"
	"github.com/roach88/planq/internal/schema"
)

// Injection reasons.
const (
	InjectionMissing = "missing"
	InjectionRebound = "rebound"
)

// Injection records one owner filter the injector added.
type Injection struct {
	Table  string
	Reason string
}

// InjectSecurityFilters binds every tenant-scoped table of p to caller.
//
// For each tenant table an existing `owner eq caller` filter is kept in
// place. Owner filters bound to another principal or using any other
// operator are removed, so a plan can never widen its own scope. If no
// acceptable filter remains, `{table.owner eq caller}` is appended.
//
// p is modified in place; callers pass the executor's working copy.
// Nested subquery plans are not visited: they are secured when they execute.
func InjectSecurityFilters(p *plan.QueryPlan, reg *schema.Registry, caller string) []Injection {
	var injections []Injection
	seen := make(map[string]bool, len(p.Tables))

	for _, table := range p.Tables {
		if seen[table] || !reg.IsTenantScoped(table) {
			continue
		}
		seen[table] = true
		ref := schema.QualifiedField(table, reg.OwnerField())

		kept := false
		removed := false
		filters := p.Filters[:0:0]
		for _, f := range p.Filters {
			if f.Field != ref {
				filters = append(filters, f)
				continue
			}
			if !kept && isBoundTo(f, caller) {
				kept = true
				filters = append(filters, f)
				continue
			}
			if !isBoundTo(f, caller) {
				removed = true
			}
			// Duplicate bindings to the caller are dropped silently.
		}

		if !kept {
			filters = append(filters, plan.FieldFilter{
				Field:    ref,
				Operator: plan.OpEq,
				Value:    plan.String(caller),
			})
			reason := InjectionMissing
			if removed {
				reason = InjectionRebound
			}
			injections = append(injections, Injection{Table: table, Reason: reason})
		} else if removed {
			injections = append(injections, Injection{Table: table, Reason: InjectionRebound})
		}
		p.Filters = filters
	}
	return injections
}

func isBoundTo(f plan.FieldFilter, caller string) bool {
	if f.Operator != plan.OpEq {
		return false
	}
	s, ok := f.Value.(plan.String)
	return ok && string(s) == caller
}

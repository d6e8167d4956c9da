package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/planq/internal/plan"
	"github.com/roach88/planq/internal/schema"
)

func TestInjectSecurityFilters_AppendsWhenMissing(t *testing.T) {
	p := &plan.QueryPlan{
		Tables:  []string{"accounts"},
		Filters: []plan.FieldFilter{filter("accounts.city", plan.OpEq, plan.String("Verona"))},
	}

	injections := InjectSecurityFilters(p, schema.Default(), "u1")

	assert.Equal(t, []Injection{{Table: "accounts", Reason: InjectionMissing}}, injections)
	assert.Equal(t, []plan.FieldFilter{
		filter("accounts.city", plan.OpEq, plan.String("Verona")),
		filter("accounts.user_id", plan.OpEq, plan.String("u1")),
	}, p.Filters)
}

func TestInjectSecurityFilters_KeepsCallerBinding(t *testing.T) {
	p := &plan.QueryPlan{
		Tables: []string{"accounts"},
		Filters: []plan.FieldFilter{
			filter("accounts.user_id", plan.OpEq, plan.String("u1")),
			filter("accounts.city", plan.OpEq, plan.String("Verona")),
		},
	}

	injections := InjectSecurityFilters(p, schema.Default(), "u1")

	assert.Empty(t, injections)
	assert.Equal(t, "accounts.user_id", p.Filters[0].Field)
	assert.Len(t, p.Filters, 2)
}

func TestInjectSecurityFilters_CannotWidenScope(t *testing.T) {
	tests := []struct {
		name   string
		filter plan.FieldFilter
	}{
		{"other principal", filter("accounts.user_id", plan.OpEq, plan.String("u2"))},
		{"neq", filter("accounts.user_id", plan.OpNeq, plan.String("u1"))},
		{"in list", filter("accounts.user_id", plan.OpIn, plan.Array{plan.String("u1"), plan.String("u2")})},
		{"like", filter("accounts.user_id", plan.OpLike, plan.String("u"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &plan.QueryPlan{Tables: []string{"accounts"}, Filters: []plan.FieldFilter{tt.filter}}

			injections := InjectSecurityFilters(p, schema.Default(), "u1")

			assert.Equal(t, []Injection{{Table: "accounts", Reason: InjectionRebound}}, injections)
			assert.Equal(t, []plan.FieldFilter{filter("accounts.user_id", plan.OpEq, plan.String("u1"))}, p.Filters)
		})
	}
}

func TestInjectSecurityFilters_RemovesExtraOwnerFiltersNextToBinding(t *testing.T) {
	p := &plan.QueryPlan{
		Tables: []string{"accounts"},
		Filters: []plan.FieldFilter{
			filter("accounts.user_id", plan.OpEq, plan.String("u1")),
			filter("accounts.user_id", plan.OpNeq, plan.String("u3")),
			filter("accounts.user_id", plan.OpEq, plan.String("u1")),
		},
	}

	injections := InjectSecurityFilters(p, schema.Default(), "u1")

	assert.Equal(t, []Injection{{Table: "accounts", Reason: InjectionRebound}}, injections)
	assert.Equal(t, []plan.FieldFilter{filter("accounts.user_id", plan.OpEq, plan.String("u1"))}, p.Filters)
}

func TestInjectSecurityFilters_EveryTenantTable(t *testing.T) {
	p := &plan.QueryPlan{
		Tables: []string{"visits", "accounts", "products", "visits"},
	}

	injections := InjectSecurityFilters(p, schema.Default(), "u1")

	assert.Equal(t, []Injection{
		{Table: "visits", Reason: InjectionMissing},
		{Table: "accounts", Reason: InjectionMissing},
	}, injections)
	assert.Equal(t, []plan.FieldFilter{
		filter("visits.user_id", plan.OpEq, plan.String("u1")),
		filter("accounts.user_id", plan.OpEq, plan.String("u1")),
	}, p.Filters)
}

func TestInjectSecurityFilters_SharedTableUntouched(t *testing.T) {
	p := &plan.QueryPlan{Tables: []string{"products"}}

	assert.Empty(t, InjectSecurityFilters(p, schema.Default(), "u1"))
	assert.Empty(t, p.Filters)
}

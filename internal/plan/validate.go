package plan

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/planq/internal/schema"
)

// Row ceilings for Limit. Limits above the soft ceiling are accepted with a
// warning; limits above the hard ceiling are rejected.
const (
	DefaultSoftLimit = 100
	DefaultHardLimit = 1000
)

// RejectionCode categorizes why a plan was rejected.
type RejectionCode string

const (
	// CodeSchemaViolation: unknown table, field or operator, or a malformed filter.
	CodeSchemaViolation RejectionCode = "SCHEMA_VIOLATION"

	// CodeAggregationError: an aggregation is missing a field it needs.
	CodeAggregationError RejectionCode = "AGGREGATION_ERROR"
)

// ValidationResult is the outcome of Validate.
type ValidationResult struct {
	Valid    bool          `json:"valid"`
	Error    string        `json:"error,omitempty"`
	Code     RejectionCode `json:"code,omitempty"`
	Field    string        `json:"field,omitempty"`
	Warnings []string      `json:"warnings,omitempty"`
}

// ValidateOption configures Validate.
type ValidateOption func(*validator)

// WithLimits overrides the soft and hard limit ceilings.
func WithLimits(soft, hard int) ValidateOption {
	return func(v *validator) {
		if soft > 0 {
			v.softLimit = soft
		}
		if hard > 0 {
			v.hardLimit = hard
		}
	}
}

// Validate checks a plan against the registry.
//
// Checks run in order: tables, filters (subquery plans recursively),
// aggregation, joins, sort, limit. The first failure rejects the plan.
// A tenant-scoped table without an owner filter only produces a warning:
// the executor injects the filter before anything reaches the store.
//
// Validate is a pure function with no side effects.
func Validate(p *QueryPlan, reg *schema.Registry, opts ...ValidateOption) ValidationResult {
	v := &validator{
		reg:       reg,
		softLimit: DefaultSoftLimit,
		hardLimit: DefaultHardLimit,
	}
	for _, opt := range opts {
		opt(v)
	}

	if p == nil {
		return ValidationResult{Valid: false, Code: CodeSchemaViolation, Error: "plan is empty"}
	}

	if rej := v.validatePlan(p, ""); rej != nil {
		return ValidationResult{
			Valid:    false,
			Error:    rej.message,
			Code:     rej.code,
			Field:    rej.field,
			Warnings: v.warnings,
		}
	}
	return ValidationResult{Valid: true, Warnings: v.warnings}
}

type rejection struct {
	code    RejectionCode
	field   string
	message string
}

// validator accumulates warnings during traversal.
type validator struct {
	reg       *schema.Registry
	softLimit int
	hardLimit int
	warnings  []string
}

func (v *validator) addWarning(prefix, format string, args ...any) {
	v.warnings = append(v.warnings, prefix+fmt.Sprintf(format, args...))
}

func reject(prefix, field, format string, args ...any) *rejection {
	return &rejection{
		code:    CodeSchemaViolation,
		field:   field,
		message: prefix + fmt.Sprintf(format, args...),
	}
}

func (v *validator) validatePlan(p *QueryPlan, prefix string) *rejection {
	// (a) tables
	if len(p.Tables) == 0 {
		return reject(prefix, "", "plan must reference at least one table")
	}
	for _, t := range p.Tables {
		if !v.reg.IsValidTable(t) {
			return reject(prefix, t, "unknown table %q", t)
		}
	}

	// (b) filters
	for _, f := range p.Filters {
		if rej := v.validateFilter(p, f, prefix); rej != nil {
			return rej
		}
	}

	// (c) aggregation
	if p.Aggregation != nil {
		if rej := v.validateAggregation(p, prefix); rej != nil {
			return rej
		}
	}

	// (d) joins
	for _, j := range p.Joins {
		if rej := v.validateJoin(p, j, prefix); rej != nil {
			return rej
		}
	}

	// (e) sort
	if p.Sort != nil {
		if rej := v.validateSort(p, prefix); rej != nil {
			return rej
		}
	}

	// (f) limit
	if p.Limit != nil {
		n := *p.Limit
		if n <= 0 {
			return reject(prefix, "limit", "limit must be a positive integer, got %d", n)
		}
		if n > v.hardLimit {
			return reject(prefix, "limit", "limit %d exceeds the maximum of %d", n, v.hardLimit)
		}
		if n > v.softLimit {
			v.addWarning(prefix, "limit %d is above the recommended maximum of %d", n, v.softLimit)
		}
	}

	owner := v.reg.OwnerField()
	for _, t := range p.Tables {
		if v.reg.IsTenantScoped(t) && !HasOwnerFilter(p.Filters, t, owner) {
			v.addWarning(prefix, "missing security filter on %s; it will be injected", schema.QualifiedField(t, owner))
		}
	}

	return nil
}

// validateColumn checks a qualified "table.field" reference whose table
// must be one of the plan tables.
func (v *validator) validateColumn(p *QueryPlan, ref, prefix string) *rejection {
	table, field, ok := schema.SplitField(ref)
	if !ok {
		return reject(prefix, ref, "invalid field reference %q: expected \"table.field\"", ref)
	}
	if !v.reg.IsValidTable(table) {
		return reject(prefix, ref, "unknown table %q in field %q", table, ref)
	}
	if !p.HasTable(table) {
		return reject(prefix, ref, "field %q references table %q, which is not one of the plan tables", ref, table)
	}
	if v.reg.IsEncryptedField(field) {
		return reject(prefix, ref, "field %q holds encrypted data and cannot be queried", ref)
	}
	if !v.reg.IsValidField(table, field) {
		return reject(prefix, ref, "unknown field %q", ref)
	}
	return nil
}

func (v *validator) validateFilter(p *QueryPlan, f FieldFilter, prefix string) *rejection {
	if rej := v.validateColumn(p, f.Field, prefix); rej != nil {
		return rej
	}
	if !v.reg.IsValidOperator(string(f.Operator)) {
		return reject(prefix, f.Field, "unknown operator %q on field %q", f.Operator, f.Field)
	}

	switch val := f.Value.(type) {
	case nil:
		return reject(prefix, f.Field, "filter on %q has no value", f.Field)
	case Array:
		if !f.Operator.IsSetOperator() {
			return reject(prefix, f.Field, "operator %q on %q requires a scalar value, got an array", f.Operator, f.Field)
		}
	case Subquery:
		if !f.Operator.IsSetOperator() {
			return reject(prefix, f.Field, "operator %q on %q does not accept a subquery", f.Operator, f.Field)
		}
		if val.Plan == nil {
			return reject(prefix, f.Field, "subquery on %q has no plan", f.Field)
		}
		nested := fmt.Sprintf("%ssubquery for %s: ", prefix, f.Field)
		if rej := v.validatePlan(val.Plan, nested); rej != nil {
			return rej
		}
	case Scalar:
		if f.Operator.IsSetOperator() {
			return reject(prefix, f.Field, "operator %q on %q requires an array or subquery value", f.Operator, f.Field)
		}
		if f.Operator == OpLike {
			if _, ok := val.(String); !ok {
				return reject(prefix, f.Field, "operator like on %q requires a string value", f.Field)
			}
		}
	}
	return nil
}

func (v *validator) validateAggregation(p *QueryPlan, prefix string) *rejection {
	agg := p.Aggregation
	if !v.reg.IsValidAggregation(string(agg.Function)) {
		return reject(prefix, string(agg.Function), "unknown aggregation function %q", agg.Function)
	}
	if agg.Function.RequiresField() && agg.Field == "" {
		return &rejection{
			code:    CodeAggregationError,
			field:   string(agg.Function),
			message: prefix + fmt.Sprintf("aggregation %s requires a field", agg.Function),
		}
	}
	if agg.Field != "" {
		if rej := v.validateColumn(p, agg.Field, prefix); rej != nil {
			return rej
		}
	}

	for _, g := range agg.GroupBy {
		if strings.Contains(g, ".") {
			if rej := v.validateColumn(p, g, prefix); rej != nil {
				return rej
			}
			continue
		}
		if !v.isPlanField(p, g) {
			return reject(prefix, g, "unknown groupBy field %q", g)
		}
	}

	if agg.Having == nil {
		return nil
	}
	having := *agg.Having
	if len(agg.GroupBy) == 0 {
		v.addWarning(prefix, "having on %q without groupBy is applied to the single aggregate", having.Field)
	}

	switch {
	case IsAggFuncName(having.Field):
		if !having.Operator.IsComparison() {
			return reject(prefix, having.Field, "having on %q requires a comparison operator, got %q", having.Field, having.Operator)
		}
		s, ok := having.Value.(Scalar)
		if !ok {
			return reject(prefix, having.Field, "having on %q requires a numeric value", having.Field)
		}
		if _, ok := Float(s); !ok {
			return reject(prefix, having.Field, "having on %q requires a numeric value, got %s", having.Field, Describe(s))
		}
		if AggFunc(having.Field).RequiresField() && agg.Field == "" {
			return &rejection{
				code:    CodeAggregationError,
				field:   having.Field,
				message: prefix + fmt.Sprintf("having on %s requires an aggregation field", having.Field),
			}
		}
	case strings.Contains(having.Field, "."):
		if rej := v.validateFilter(p, having, prefix); rej != nil {
			return rej
		}
	default:
		return reject(prefix, having.Field, "having field %q is neither a column nor an aggregate function", having.Field)
	}
	return nil
}

// isPlanField reports whether a bare field name belongs to one of the plan tables.
func (v *validator) isPlanField(p *QueryPlan, field string) bool {
	for _, t := range p.Tables {
		if v.reg.IsValidField(t, field) {
			return true
		}
	}
	return false
}

func (v *validator) validateJoin(p *QueryPlan, j TableJoin, prefix string) *rejection {
	if !p.HasTable(j.From) {
		return reject(prefix, j.From, "join source %q is not one of the plan tables", j.From)
	}
	if !p.HasTable(j.To) {
		return reject(prefix, j.To, "join target %q is not one of the plan tables", j.To)
	}
	if j.From == j.To {
		return reject(prefix, j.From, "table %q cannot be joined to itself", j.From)
	}
	if !v.reg.IsValidField(j.From, j.FromField) {
		ref := schema.QualifiedField(j.From, j.FromField)
		return reject(prefix, ref, "unknown join field %q", ref)
	}
	if !v.reg.IsValidField(j.To, j.ToField) {
		ref := schema.QualifiedField(j.To, j.ToField)
		return reject(prefix, ref, "unknown join field %q", ref)
	}
	switch j.Type {
	case "", JoinInner, JoinLeft:
	default:
		return reject(prefix, string(j.Type), "unknown join type %q", j.Type)
	}
	return nil
}

func (v *validator) validateSort(p *QueryPlan, prefix string) *rejection {
	s := p.Sort
	switch s.Order {
	case "", SortAsc, SortDesc:
	default:
		return reject(prefix, s.Field, "unknown sort order %q", s.Order)
	}

	if IsAggFuncName(s.Field) {
		if p.Aggregation == nil {
			return reject(prefix, s.Field, "sort by %q requires an aggregation", s.Field)
		}
		return nil
	}
	agg := p.Aggregation
	if agg != nil && !strings.Contains(s.Field, ".") && slices.Contains(agg.GroupBy, s.Field) {
		return nil
	}
	if rej := v.validateColumn(p, s.Field, prefix); rej != nil {
		return rej
	}
	if agg != nil && len(agg.GroupBy) > 0 && !isGroupKey(agg.GroupBy, s.Field) {
		v.addWarning(prefix, "sort on %q is not a groupBy field; groups are ordered by %s", s.Field, agg.Function)
	}
	return nil
}

// isGroupKey reports whether a qualified column is one of the groupBy
// entries, given either qualified or bare.
func isGroupKey(groupBy []string, ref string) bool {
	_, field, _ := schema.SplitField(ref)
	for _, g := range groupBy {
		if g == ref || g == field {
			return true
		}
	}
	return false
}

// HasOwnerFilter reports whether filters contain an eq filter on the owner
// field of table.
func HasOwnerFilter(filters []FieldFilter, table, owner string) bool {
	ref := schema.QualifiedField(table, owner)
	for _, f := range filters {
		if f.Field == ref && f.Operator == OpEq {
			return true
		}
	}
	return false
}

// Package translate turns resolved plan filters into store predicates.
//
// Translation handles three concerns for each concrete filter: relative
// date tokens on temporal columns are resolved against the translator's
// clock, the plan operator is mapped onto a store operator, and textual
// columns in the case-insensitive set compare without regard to letter case
// for eq and like. String values are normalized to Unicode NFC so composed
// and decomposed spellings of the same text compare equal.
package translate

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/planq/internal/dates"
	"github.com/roach88/planq/internal/plan"
	"github.com/roach88/planq/internal/schema"
	"github.com/roach88/planq/internal/store"
)

// Translator converts plan filters into store predicates.
type Translator struct {
	now             func() time.Time
	caseInsensitive map[string]bool
}

// Option configures a Translator.
type Option func(*Translator)

// WithClock sets the reference time source for relative dates.
func WithClock(now func() time.Time) Option {
	return func(t *Translator) {
		if now != nil {
			t.now = now
		}
	}
}

// WithCaseInsensitiveFields replaces the set of bare field names compared
// case-insensitively.
func WithCaseInsensitiveFields(fields []string) Option {
	return func(t *Translator) {
		t.caseInsensitive = make(map[string]bool, len(fields))
		for _, f := range fields {
			t.caseInsensitive[f] = true
		}
	}
}

// New creates a Translator. Without options it uses time.Now and no
// case-insensitive fields.
func New(opts ...Option) *Translator {
	t := &Translator{
		now:             time.Now,
		caseInsensitive: map[string]bool{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// IsCaseInsensitive reports whether eq and like on field ignore case.
func (t *Translator) IsCaseInsensitive(field string) bool {
	return t.caseInsensitive[field]
}

// Predicate translates one filter. Subquery values must be resolved first.
func (t *Translator) Predicate(f plan.FieldFilter) (store.Predicate, error) {
	table, field, ok := schema.SplitField(f.Field)
	if !ok {
		return store.Predicate{}, fmt.Errorf("filter field %q is not table.field", f.Field)
	}
	p := store.Predicate{Table: table, Field: field}
	temporal := dates.IsTemporalField(field)

	if f.Operator.IsSetOperator() {
		arr, ok := f.Value.(plan.Array)
		if !ok {
			if _, isSub := f.Value.(plan.Subquery); isSub {
				return store.Predicate{}, fmt.Errorf("filter %s: subquery not resolved", f.Field)
			}
			return store.Predicate{}, fmt.Errorf("filter %s: %s requires an array, got %s", f.Field, f.Operator, plan.Describe(f.Value))
		}
		p.Op = store.OpIn
		if f.Operator == plan.OpNotIn {
			p.Op = store.OpNotIn
		}
		p.Values = make([]any, len(arr))
		for i, s := range arr {
			p.Values[i] = t.scalar(s, temporal)
		}
		return p, nil
	}

	s, ok := f.Value.(plan.Scalar)
	if !ok {
		return store.Predicate{}, fmt.Errorf("filter %s: %s requires a scalar, got %s", f.Field, f.Operator, plan.Describe(f.Value))
	}

	switch f.Operator {
	case plan.OpEq:
		p.Op = store.OpEq
		p.FoldCase = t.caseInsensitive[field]
	case plan.OpNeq:
		p.Op = store.OpNeq
	case plan.OpGt:
		p.Op = store.OpGt
	case plan.OpGte:
		p.Op = store.OpGte
	case plan.OpLt:
		p.Op = store.OpLt
	case plan.OpLte:
		p.Op = store.OpLte
	case plan.OpLike:
		str, ok := s.(plan.String)
		if !ok {
			return store.Predicate{}, fmt.Errorf("filter %s: like requires a string, got %s", f.Field, plan.Describe(s))
		}
		p.Op = store.OpContains
		p.Value = likeNeedle(norm.NFC.String(string(str)))
		p.FoldCase = t.caseInsensitive[field]
		return p, nil
	default:
		return store.Predicate{}, fmt.Errorf("filter %s: unsupported operator %q", f.Field, f.Operator)
	}

	p.Value = t.scalar(s, temporal)
	return p, nil
}

// scalar converts a plan scalar to a store value, resolving relative dates
// on temporal columns and normalizing strings.
func (t *Translator) scalar(s plan.Scalar, temporal bool) any {
	str, ok := s.(plan.String)
	if !ok {
		return s.Native()
	}
	if temporal {
		if resolved, ok := dates.ResolveString(string(str), t.now()); ok {
			return resolved
		}
	}
	return norm.NFC.String(string(str))
}

// likeNeedle strips the leading and trailing % a caller may have written
// around a like value. Containment is implied either way.
func likeNeedle(v string) string {
	return strings.TrimSuffix(strings.TrimPrefix(v, "%"), "%")
}

// Partition holds translated predicates split by the table they apply to.
type Partition struct {
	Primary []store.Predicate
	Joined  map[string][]store.Predicate
}

// Partition translates filters and splits them between the primary table
// and joined tables. A filter on any other table is an error.
func (t *Translator) Partition(filters []plan.FieldFilter, primary string, joined []string) (Partition, error) {
	part := Partition{Joined: make(map[string][]store.Predicate, len(joined))}
	isJoined := make(map[string]bool, len(joined))
	for _, j := range joined {
		isJoined[j] = true
	}

	for _, f := range filters {
		p, err := t.Predicate(f)
		if err != nil {
			return Partition{}, err
		}
		switch {
		case p.Table == primary:
			part.Primary = append(part.Primary, p)
		case isJoined[p.Table]:
			part.Joined[p.Table] = append(part.Joined[p.Table], p)
		default:
			return Partition{}, fmt.Errorf("filter %s targets table %s, which is neither the primary table nor joined", f.Field, p.Table)
		}
	}
	return part, nil
}

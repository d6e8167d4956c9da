package store

import (
	"context"
	"fmt"
)

// Op is a predicate operator understood by every backend.
type Op string

const (
	OpEq       Op = "eq"
	OpNeq      Op = "neq"
	OpGt       Op = "gt"
	OpGte      Op = "gte"
	OpLt       Op = "lt"
	OpLte      Op = "lte"
	OpContains Op = "contains" // substring containment
	OpIn       Op = "in"
	OpNotIn    Op = "not_in"
)

// Predicate compares one column with a value.
//
// OpIn and OpNotIn use Values; every other operator uses Value. With FoldCase
// the comparison ignores letter case (OpEq and OpContains only).
type Predicate struct {
	Table    string
	Field    string
	Op       Op
	Value    any
	Values   []any
	FoldCase bool
}

func (p Predicate) String() string {
	if p.Op == OpIn || p.Op == OpNotIn {
		return fmt.Sprintf("%s.%s %s %v", p.Table, p.Field, p.Op, p.Values)
	}
	if p.FoldCase {
		return fmt.Sprintf("%s.%s %s %v (case-insensitive)", p.Table, p.Field, p.Op, p.Value)
	}
	return fmt.Sprintf("%s.%s %s %v", p.Table, p.Field, p.Op, p.Value)
}

// JoinType selects inner or left join semantics.
type JoinType string

const (
	JoinInner JoinType = "inner"
	JoinLeft  JoinType = "left"
)

// Join attaches Table to a table already present in the query, matching
// LocalTable.LocalField = Table.ForeignField. Predicates restrict the joined
// rows: with an inner join they also drop unmatched parents, with a left join
// the parent is kept and the nested entry is nil.
type Join struct {
	Table        string
	Type         JoinType
	Columns      []string
	LocalTable   string
	LocalField   string
	ForeignField string
	Predicates   []Predicate
}

// Order sorts by one column. Nulls sort last in both directions.
type Order struct {
	Table string
	Field string
	Desc  bool
}

// Query is one structured read. Predicates apply to the primary table.
// Limit 0 means no limit.
type Query struct {
	Table      string
	Columns    []string
	Joins      []Join
	Predicates []Predicate
	Order      []Order
	Limit      int
}

// Row is one result row.
type Row map[string]any

// ResultSet holds the rows of a query. Columns lists the primary-table
// projection in order, followed by the joined table names.
type ResultSet struct {
	Columns []string
	Rows    []Row
}

// Backend executes structured queries. Implementations must honor ctx
// cancellation where their driver allows it.
type Backend interface {
	Select(ctx context.Context, q Query) (*ResultSet, error)
}

// Validate checks structural consistency of q before it is handed to a backend.
func (q Query) Validate() error {
	if q.Table == "" {
		return fmt.Errorf("query has no table")
	}
	if len(q.Columns) == 0 {
		return fmt.Errorf("query on %s selects no columns", q.Table)
	}
	if q.Limit < 0 {
		return fmt.Errorf("negative limit %d", q.Limit)
	}
	known := map[string]bool{q.Table: true}
	for _, j := range q.Joins {
		if j.Table == "" || j.LocalTable == "" || j.LocalField == "" || j.ForeignField == "" {
			return fmt.Errorf("incomplete join on %q", j.Table)
		}
		if !known[j.LocalTable] {
			return fmt.Errorf("join %s references %s before it is joined", j.Table, j.LocalTable)
		}
		if known[j.Table] {
			return fmt.Errorf("table %s joined twice", j.Table)
		}
		if len(j.Columns) == 0 {
			return fmt.Errorf("join %s selects no columns", j.Table)
		}
		known[j.Table] = true
		for _, p := range j.Predicates {
			if p.Table != j.Table {
				return fmt.Errorf("predicate on %s attached to join %s", p.Table, j.Table)
			}
		}
	}
	for _, p := range q.Predicates {
		if !known[p.Table] {
			return fmt.Errorf("predicate on %s.%s references a table outside the query", p.Table, p.Field)
		}
	}
	for _, o := range q.Order {
		if !known[o.Table] {
			return fmt.Errorf("order by %s.%s references a table outside the query", o.Table, o.Field)
		}
	}
	return nil
}

// Lookup reads table.field from a row: primary columns directly, joined
// columns from the nested table entry.
func (r Row) Lookup(primary, table, field string) (any, bool) {
	if table == "" || table == primary {
		v, ok := r[field]
		return v, ok
	}
	nested, ok := r[table].(Row)
	if !ok {
		if m, isMap := r[table].(map[string]any); isMap {
			nested = m
		} else {
			return nil, false
		}
	}
	v, ok := nested[field]
	return v, ok
}

package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
)

// Memory is an in-process Backend over rows held in memory. It evaluates
// queries with the same semantics as the SQL backends and is used as the
// fake store in tests.
//
// Thread-safety: Memory is safe for concurrent use.
type Memory struct {
	mu     sync.RWMutex
	tables map[string][]Row

	// calls records every query received, in order.
	calls []Query
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{tables: make(map[string][]Row)}
}

// Insert appends rows to table. Rows are copied.
func (m *Memory) Insert(table string, rows ...Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		m.tables[table] = append(m.tables[table], maps.Clone(r))
	}
}

// Calls returns the queries received so far.
func (m *Memory) Calls() []Query {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.calls)
}

// Select implements Backend.
func (m *Memory) Select(ctx context.Context, q Query) (*ResultSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.calls = append(m.calls, q)
	m.mu.Unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()

	source, ok := m.tables[q.Table]
	if !ok {
		return nil, fmt.Errorf("relation %q does not exist", q.Table)
	}

	// Working rows keep every primary column so joins and predicates can see
	// fields outside the projection; projection happens last.
	type working struct {
		full   Row
		joined map[string]Row
	}

	rows := make([]working, 0, len(source))
	for _, r := range source {
		rows = append(rows, working{full: r, joined: map[string]Row{}})
	}

	lookup := func(w working, table, field string) any {
		if table == q.Table {
			return w.full[field]
		}
		if jr := w.joined[table]; jr != nil {
			return jr[field]
		}
		return nil
	}

	for _, j := range q.Joins {
		joinRows, ok := m.tables[j.Table]
		if !ok {
			return nil, fmt.Errorf("relation %q does not exist", j.Table)
		}
		var next []working
		for _, w := range rows {
			local := lookup(w, j.LocalTable, j.LocalField)
			matched := false
			for _, candidate := range joinRows {
				if !Equal(local, candidate[j.ForeignField], false) {
					continue
				}
				if !matchAll(j.Predicates, func(p Predicate) any { return candidate[p.Field] }) {
					continue
				}
				matched = true
				joined := maps.Clone(w.joined)
				joined[j.Table] = candidate
				next = append(next, working{full: w.full, joined: joined})
			}
			if !matched && j.Type == JoinLeft {
				joined := maps.Clone(w.joined)
				joined[j.Table] = nil
				next = append(next, working{full: w.full, joined: joined})
			}
		}
		rows = next
	}

	filtered := rows[:0:0]
	for _, w := range rows {
		if matchAll(q.Predicates, func(p Predicate) any { return lookup(w, p.Table, p.Field) }) {
			filtered = append(filtered, w)
		}
	}

	if len(q.Order) > 0 {
		sort.SliceStable(filtered, func(a, b int) bool {
			for _, o := range q.Order {
				va, vb := lookup(filtered[a], o.Table, o.Field), lookup(filtered[b], o.Table, o.Field)
				c := Compare(va, vb)
				if c == 0 {
					continue
				}
				// Compare already puts nil last; only reverse non-nil pairs.
				if o.Desc && va != nil && vb != nil {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}

	if q.Limit > 0 && len(filtered) > q.Limit {
		filtered = filtered[:q.Limit]
	}

	result := &ResultSet{Columns: slices.Clone(q.Columns)}
	for _, j := range q.Joins {
		result.Columns = append(result.Columns, j.Table)
	}
	result.Rows = make([]Row, 0, len(filtered))
	for _, w := range filtered {
		out := make(Row, len(q.Columns)+len(q.Joins))
		for _, c := range q.Columns {
			out[c] = w.full[c]
		}
		for _, j := range q.Joins {
			jr := w.joined[j.Table]
			if jr == nil {
				out[j.Table] = nil
				continue
			}
			nested := make(Row, len(j.Columns))
			for _, c := range j.Columns {
				nested[c] = jr[c]
			}
			out[j.Table] = nested
		}
		result.Rows = append(result.Rows, out)
	}
	return result, nil
}

func matchAll(preds []Predicate, value func(Predicate) any) bool {
	for _, p := range preds {
		if !Match(p, value(p)) {
			return false
		}
	}
	return true
}

// Match evaluates one predicate against a column value with SQL semantics:
// a nil value satisfies no predicate.
func Match(p Predicate, v any) bool {
	if v == nil {
		return false
	}
	switch p.Op {
	case OpEq:
		return Equal(v, p.Value, p.FoldCase)
	case OpNeq:
		return p.Value != nil && !Equal(v, p.Value, false)
	case OpGt:
		return p.Value != nil && Compare(v, p.Value) > 0
	case OpGte:
		return p.Value != nil && Compare(v, p.Value) >= 0
	case OpLt:
		return p.Value != nil && Compare(v, p.Value) < 0
	case OpLte:
		return p.Value != nil && Compare(v, p.Value) <= 0
	case OpContains:
		return Contains(v, p.Value, p.FoldCase)
	case OpIn:
		for _, candidate := range p.Values {
			if Equal(v, candidate, p.FoldCase) {
				return true
			}
		}
		return false
	case OpNotIn:
		for _, candidate := range p.Values {
			if Equal(v, candidate, p.FoldCase) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

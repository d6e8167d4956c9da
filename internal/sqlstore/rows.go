package sqlstore

import (
	"regexp"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/roach88/planq/internal/querysql"
	"github.com/roach88/planq/internal/store"
)

var identRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func identifier(name string) bool {
	return identRegex.MatchString(name)
}

func newResultSet(q store.Query) *store.ResultSet {
	columns := make([]string, 0, len(q.Columns)+len(q.Joins))
	columns = append(columns, q.Columns...)
	for _, j := range q.Joins {
		columns = append(columns, j.Table)
	}
	return &store.ResultSet{Columns: columns, Rows: []store.Row{}}
}

// reshape turns one flat result row into a store row with joined columns
// nested under their table name.
func reshape(q store.Query, cols []querysql.Column, values []any) store.Row {
	row := make(store.Row, len(q.Columns)+len(q.Joins))
	nested := make(map[string]store.Row, len(q.Joins))
	matched := make(map[string]bool, len(q.Joins))

	for i, col := range cols {
		v := normalize(values[i])
		if !col.Joined(q.Table) {
			row[col.Field] = v
			continue
		}
		if nested[col.Table] == nil {
			nested[col.Table] = make(store.Row)
		}
		nested[col.Table][col.Field] = v
		if v != nil {
			matched[col.Table] = true
		}
	}

	for _, j := range q.Joins {
		if j.Type == store.JoinLeft && !matched[j.Table] {
			row[j.Table] = nil
			continue
		}
		row[j.Table] = nested[j.Table]
	}
	return row
}

// normalize converts driver values into the plain types the engine compares.
func normalize(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case pgtype.Numeric:
		f, err := x.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	default:
		return v
	}
}

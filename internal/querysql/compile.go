// Package querysql compiles structured store queries into parameterized SQL.
package querysql

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/planq/internal/store"
)

// Dialect selects placeholder style and dialect-specific predicates.
type Dialect int

const (
	// SQLite uses ? placeholders.
	SQLite Dialect = iota
	// Postgres uses $1, $2, ... placeholders.
	Postgres
)

func (d Dialect) String() string {
	switch d {
	case SQLite:
		return "sqlite"
	case Postgres:
		return "postgres"
	default:
		return fmt.Sprintf("dialect(%d)", int(d))
	}
}

// FoldFunction is the SQL function SQLite connections register for Unicode
// case folding. SQLite's built-in LOWER folds ASCII only.
const FoldFunction = "planq_fold"

// JoinedAliasSeparator separates table and column in the alias of a joined
// column: accounts.city is selected AS "accounts__city".
const JoinedAliasSeparator = "__"

var identRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Column is one selected column and the alias it is returned under.
type Column struct {
	Table string
	Field string
	Alias string
}

// Joined reports whether the column belongs to a joined table.
func (c Column) Joined(primary string) bool {
	return c.Table != primary
}

// Projection lists the selected columns of q in SELECT order: primary
// columns first, then each join's columns.
func Projection(q store.Query) []Column {
	cols := make([]Column, 0, len(q.Columns))
	for _, f := range q.Columns {
		cols = append(cols, Column{Table: q.Table, Field: f, Alias: f})
	}
	for _, j := range q.Joins {
		for _, f := range j.Columns {
			cols = append(cols, Column{Table: j.Table, Field: f, Alias: j.Table + JoinedAliasSeparator + f})
		}
	}
	return cols
}

// SQLCompiler compiles a store.Query into a SELECT statement.
//
// CRITICAL: All values are parameterized, never interpolated.
// Every statement ends in a deterministic ORDER BY: requested orders first,
// then the primary key as tiebreaker when it is selected.
type SQLCompiler struct {
	Dialect Dialect

	args []any
}

// NewSQLCompiler creates a compiler for the given dialect.
func NewSQLCompiler(d Dialect) *SQLCompiler {
	return &SQLCompiler{Dialect: d}
}

// Compile converts q to SQL. Returns (sql, params, error).
func (c *SQLCompiler) Compile(q store.Query) (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, fmt.Errorf("invalid query: %w", err)
	}
	c.args = nil

	cols := Projection(q)
	selectParts := make([]string, 0, len(cols))
	for _, col := range cols {
		ref, err := c.columnRef(col.Table, col.Field)
		if err != nil {
			return "", nil, err
		}
		alias, err := quoteIdent(col.Alias)
		if err != nil {
			return "", nil, err
		}
		selectParts = append(selectParts, ref+" AS "+alias)
	}

	from, err := quoteIdent(q.Table)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(selectParts, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(from)

	for _, j := range q.Joins {
		joinSQL, err := c.compileJoin(j)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(joinSQL)
	}

	if len(q.Predicates) > 0 {
		where, err := c.compilePredicates(q.Predicates)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	}

	orderBy, err := c.compileOrder(q)
	if err != nil {
		return "", nil, err
	}
	if orderBy != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(orderBy)
	}

	if q.Limit > 0 {
		sb.WriteString(" LIMIT ")
		sb.WriteString(c.bind(q.Limit))
	}

	return sb.String(), c.args, nil
}

func (c *SQLCompiler) compileJoin(j store.Join) (string, error) {
	keyword := " INNER JOIN "
	switch j.Type {
	case store.JoinLeft:
		keyword = " LEFT JOIN "
	case store.JoinInner, "":
	default:
		return "", fmt.Errorf("unsupported join type %q", j.Type)
	}

	table, err := quoteIdent(j.Table)
	if err != nil {
		return "", err
	}
	local, err := c.columnRef(j.LocalTable, j.LocalField)
	if err != nil {
		return "", err
	}
	foreign, err := c.columnRef(j.Table, j.ForeignField)
	if err != nil {
		return "", err
	}

	on := local + " = " + foreign
	if len(j.Predicates) > 0 {
		preds, err := c.compilePredicates(j.Predicates)
		if err != nil {
			return "", fmt.Errorf("compile join %s: %w", j.Table, err)
		}
		on += " AND " + preds
	}
	return keyword + table + " ON " + on, nil
}

// compilePredicates joins predicates with AND.
func (c *SQLCompiler) compilePredicates(preds []store.Predicate) (string, error) {
	parts := make([]string, 0, len(preds))
	for _, p := range preds {
		sql, err := c.compilePredicate(p)
		if err != nil {
			return "", err
		}
		parts = append(parts, sql)
	}
	return strings.Join(parts, " AND "), nil
}

func (c *SQLCompiler) compilePredicate(p store.Predicate) (string, error) {
	col, err := c.columnRef(p.Table, p.Field)
	if err != nil {
		return "", err
	}

	switch p.Op {
	case store.OpEq:
		if p.FoldCase {
			return fmt.Sprintf("%s = %s", c.fold(col), c.fold(c.bind(p.Value))), nil
		}
		return fmt.Sprintf("%s = %s", col, c.bind(p.Value)), nil
	case store.OpNeq:
		return fmt.Sprintf("%s <> %s", col, c.bind(p.Value)), nil
	case store.OpGt:
		return fmt.Sprintf("%s > %s", col, c.bind(p.Value)), nil
	case store.OpGte:
		return fmt.Sprintf("%s >= %s", col, c.bind(p.Value)), nil
	case store.OpLt:
		return fmt.Sprintf("%s < %s", col, c.bind(p.Value)), nil
	case store.OpLte:
		return fmt.Sprintf("%s <= %s", col, c.bind(p.Value)), nil
	case store.OpContains:
		return c.compileContains(col, p)
	case store.OpIn, store.OpNotIn:
		return c.compileSet(col, p), nil
	default:
		return "", fmt.Errorf("unsupported operator %q on %s.%s", p.Op, p.Table, p.Field)
	}
}

// fold wraps expr in the dialect's case-folding function.
func (c *SQLCompiler) fold(expr string) string {
	if c.Dialect == SQLite {
		return FoldFunction + "(" + expr + ")"
	}
	return "LOWER(" + expr + ")"
}

// compileContains renders substring containment. SQLite's LIKE ignores ASCII
// case, so SQLite uses instr() for both variants.
func (c *SQLCompiler) compileContains(col string, p store.Predicate) (string, error) {
	needle, ok := p.Value.(string)
	if !ok {
		return "", fmt.Errorf("contains on %s.%s requires a string, got %T", p.Table, p.Field, p.Value)
	}
	if c.Dialect == SQLite {
		if p.FoldCase {
			return fmt.Sprintf("instr(%s, %s) > 0", c.fold(col), c.fold(c.bind(needle))), nil
		}
		return fmt.Sprintf("instr(%s, %s) > 0", col, c.bind(needle)), nil
	}
	pattern := "%" + escapeLike(needle) + "%"
	if p.FoldCase {
		return fmt.Sprintf(`%s ILIKE %s ESCAPE '\'`, col, c.bind(pattern)), nil
	}
	return fmt.Sprintf(`%s LIKE %s ESCAPE '\'`, col, c.bind(pattern)), nil
}

// compileSet renders IN / NOT IN. An empty IN matches nothing, an empty
// NOT IN excludes nothing.
func (c *SQLCompiler) compileSet(col string, p store.Predicate) string {
	if len(p.Values) == 0 {
		if p.Op == store.OpIn {
			return "1 = 0"
		}
		return "1 = 1"
	}

	target := col
	placeholders := make([]string, len(p.Values))
	for i, v := range p.Values {
		if p.FoldCase {
			placeholders[i] = c.fold(c.bind(v))
		} else {
			placeholders[i] = c.bind(v)
		}
	}
	if p.FoldCase {
		target = c.fold(col)
	}

	keyword := " IN ("
	if p.Op == store.OpNotIn {
		keyword = " NOT IN ("
	}
	return target + keyword + strings.Join(placeholders, ", ") + ")"
}

func (c *SQLCompiler) compileOrder(q store.Query) (string, error) {
	var parts []string
	var ordered []string
	for _, o := range q.Order {
		ref, err := c.columnRef(o.Table, o.Field)
		if err != nil {
			return "", err
		}
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		parts = append(parts, ref+" "+dir+" NULLS LAST")
		ordered = append(ordered, o.Table+"."+o.Field)
	}

	// Deterministic tiebreaker on the primary key.
	if slices.Contains(q.Columns, "id") && !slices.Contains(ordered, q.Table+".id") {
		ref, err := c.columnRef(q.Table, "id")
		if err != nil {
			return "", err
		}
		parts = append(parts, ref+" ASC")
	}
	return strings.Join(parts, ", "), nil
}

// bind records a parameter and returns its placeholder.
func (c *SQLCompiler) bind(v any) string {
	c.args = append(c.args, v)
	if c.Dialect == Postgres {
		return "$" + strconv.Itoa(len(c.args))
	}
	return "?"
}

func (c *SQLCompiler) columnRef(table, field string) (string, error) {
	t, err := quoteIdent(table)
	if err != nil {
		return "", err
	}
	f, err := quoteIdent(field)
	if err != nil {
		return "", err
	}
	return t + "." + f, nil
}

// quoteIdent double-quotes an identifier after checking it is a plain name.
func quoteIdent(name string) (string, error) {
	if !identRegex.MatchString(name) {
		return "", fmt.Errorf("invalid identifier %q", name)
	}
	return `"` + name + `"`, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

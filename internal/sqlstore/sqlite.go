package sqlstore

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"slices"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/planq/internal/querysql"
	"github.com/roach88/planq/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Reference CRM schema
const currentSchemaVersion = 1

// driverName is go-sqlite3 with the case-folding function registered on
// every connection.
const driverName = "sqlite3_planq"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc(querysql.FoldFunction, foldValue, true)
		},
	})
}

// foldValue folds text the way the in-memory backend does. NULL arrives as
// a nil byte slice and stays NULL; other values pass through.
func foldValue(v any) any {
	switch val := v.(type) {
	case string:
		return store.Fold(val)
	case []byte:
		if val == nil {
			return nil
		}
		return store.Fold(string(val))
	default:
		return v
	}
}

// SQLite is a store.Backend over a SQLite database.
type SQLite struct {
	db *sql.DB
}

var _ store.Backend = (*SQLite)(nil)

// Open creates or opens a SQLite database at the given path and applies the
// reference CRM schema.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// This function is idempotent - safe to call multiple times.
func Open(path string) (*SQLite, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB.
func (s *SQLite) DB() *sql.DB {
	return s.db
}

// Select compiles q and runs it.
func (s *SQLite) Select(ctx context.Context, q store.Query) (*store.ResultSet, error) {
	query, args, err := querysql.NewSQLCompiler(querysql.SQLite).Compile(q)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Table, err)
	}
	defer rows.Close()

	cols := querysql.Projection(q)
	rs := newResultSet(q)
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", q.Table, err)
		}
		rs.Rows = append(rs.Rows, reshape(q, cols, values))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", q.Table, err)
	}
	return rs, nil
}

// Seed inserts rows into table inside one transaction. The column list is
// the union of the row keys, in sorted order; missing keys insert NULL.
func (s *SQLite) Seed(ctx context.Context, table string, rows []map[string]any) error {
	if len(rows) == 0 {
		return nil
	}
	if !identifier(table) {
		return fmt.Errorf("invalid table name %q", table)
	}

	var columns []string
	seen := make(map[string]bool)
	for _, r := range rows {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}
	slices.Sort(columns)
	for _, c := range columns {
		if !identifier(c) {
			return fmt.Errorf("invalid column name %q in %s", c, table)
		}
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ", "), placeholders)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed %s: %w", table, err)
	}
	defer tx.Rollback()

	for i, r := range rows {
		args := make([]any, len(columns))
		for j, c := range columns {
			args[j] = r[c]
		}
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("seed %s row %d: %w", table, i, err)
		}
	}
	return tx.Commit()
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates the CRM tables if they don't exist.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

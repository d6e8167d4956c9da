package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roach88/planq/internal/querysql"
	"github.com/roach88/planq/internal/store"
)

// Postgres is a store.Backend over a PostgreSQL connection pool.
type Postgres struct {
	Pool *pgxpool.Pool
}

var _ store.Backend = (*Postgres)(nil)

// OpenPostgres creates a pool for dsn and verifies it with a ping.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Postgres{Pool: pool}, nil
}

// Close closes the pool.
func (p *Postgres) Close() {
	p.Pool.Close()
}

// Select compiles q for PostgreSQL and runs it.
func (p *Postgres) Select(ctx context.Context, q store.Query) (*store.ResultSet, error) {
	query, args, err := querysql.NewSQLCompiler(querysql.Postgres).Compile(q)
	if err != nil {
		return nil, err
	}

	rows, err := p.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Table, err)
	}
	defer rows.Close()

	cols := querysql.Projection(q)
	rs := newResultSet(q)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", q.Table, err)
		}
		if len(values) != len(cols) {
			return nil, fmt.Errorf("scan %s: got %d columns, want %d", q.Table, len(values), len(cols))
		}
		rs.Rows = append(rs.Rows, reshape(q, cols, values))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", q.Table, err)
	}
	return rs, nil
}

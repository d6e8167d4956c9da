package engine

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/roach88/planq/internal/plan"
	"github.com/roach88/planq/internal/schema"
	"github.com/roach88/planq/internal/store"
	"github.com/roach88/planq/internal/testutil"
)

// newCRM returns an in-memory backend with two sales representatives.
func newCRM() *store.Memory {
	m := store.NewMemory()
	m.Insert("accounts",
		store.Row{"id": "a1", "user_id": "u1", "name": "Bar Centrale", "city": "Verona"},
		store.Row{"id": "a2", "user_id": "u1", "name": "Trattoria da Gino", "city": "verona"},
		store.Row{"id": "a3", "user_id": "u1", "name": "Hotel Adige", "city": "Padova"},
		store.Row{"id": "a4", "user_id": "u2", "name": "Caffe Milano", "city": "Verona"},
	)
	m.Insert("visits",
		store.Row{"id": "v1", "user_id": "u1", "account_id": "a1", "visit_date": "2026-03-02T10:00:00Z", "outcome": "won", "importo_vendita": 500.0},
		store.Row{"id": "v2", "user_id": "u1", "account_id": "a1", "visit_date": "2026-03-10T10:00:00Z", "outcome": "won", "importo_vendita": 700.0},
		store.Row{"id": "v3", "user_id": "u1", "account_id": "a2", "visit_date": "2026-02-20T15:00:00Z", "outcome": "lost", "importo_vendita": 0.0},
		store.Row{"id": "v4", "user_id": "u1", "account_id": "a3", "visit_date": "2026-03-12T11:00:00Z", "outcome": "won", "importo_vendita": 300.0},
		store.Row{"id": "v5", "user_id": "u2", "account_id": "a4", "visit_date": "2026-03-05T09:30:00Z", "outcome": "won", "importo_vendita": 900.0},
	)
	return m
}

// newTestExecutor creates an executor with a frozen clock and fixed IDs.
func newTestExecutor(t *testing.T, backend store.Backend, opts ...Option) *Executor {
	t.Helper()
	clock := testutil.NewFixedClock(testutil.ReferenceTime)
	base := []Option{
		WithClock(clock.Now),
		WithIDGenerator(testutil.NewFixedIDGenerator("exec-test")),
		WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))),
	}
	return New(backend, schema.Default(), append(base, opts...)...)
}

func filter(field string, op plan.Operator, v plan.Value) plan.FieldFilter {
	return plan.FieldFilter{Field: field, Operator: op, Value: v}
}

func subquery(p *plan.QueryPlan) plan.Subquery {
	return plan.Subquery{Plan: p}
}

func ids(rows []store.Row) []any {
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = r["id"]
	}
	return out
}

func ownerPredicate(table, caller string) store.Predicate {
	return store.Predicate{Table: table, Field: "user_id", Op: store.OpEq, Value: caller}
}

// blockingBackend waits for the context to end.
type blockingBackend struct{}

func (blockingBackend) Select(ctx context.Context, _ store.Query) (*store.ResultSet, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// failingBackend fails every query on one table.
type failingBackend struct {
	*store.Memory
	table string
}

func (b failingBackend) Select(ctx context.Context, q store.Query) (*store.ResultSet, error) {
	if q.Table == b.table {
		return nil, fmt.Errorf("relation %q does not exist", q.Table)
	}
	return b.Memory.Select(ctx, q)
}

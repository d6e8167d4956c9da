package sqlstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/planq/internal/store"
)

// createTestStore opens a fresh database seeded with the demo fixtures.
func createTestStore(t *testing.T) *SQLite {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.SeedFixtures(context.Background(), DemoFixtures()))
	return s
}

func ids(rs *store.ResultSet) []any {
	out := make([]any, len(rs.Rows))
	for i, r := range rs.Rows {
		out[i] = r["id"]
	}
	return out
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	var version int
	require.NoError(t, s2.DB().QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)

	var mode string
	require.NoError(t, s2.DB().QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestSelect_FilterAndOrder(t *testing.T) {
	s := createTestStore(t)

	rs, err := s.Select(context.Background(), store.Query{
		Table:   "visits",
		Columns: []string{"id", "importo_vendita", "outcome"},
		Predicates: []store.Predicate{
			{Table: "visits", Field: "user_id", Op: store.OpEq, Value: "u1"},
			{Table: "visits", Field: "outcome", Op: store.OpEq, Value: "WON", FoldCase: true},
		},
		Order: []store.Order{{Table: "visits", Field: "importo_vendita", Desc: true}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "importo_vendita", "outcome"}, rs.Columns)
	assert.Equal(t, []any{"v2", "v1", "v4"}, ids(rs))
	assert.Equal(t, 700.0, rs.Rows[0]["importo_vendita"])
}

func TestSelect_CaseSensitiveContains(t *testing.T) {
	s := createTestStore(t)

	query := func(needle string, fold bool) []any {
		rs, err := s.Select(context.Background(), store.Query{
			Table:      "accounts",
			Columns:    []string{"id"},
			Predicates: []store.Predicate{{Table: "accounts", Field: "name", Op: store.OpContains, Value: needle, FoldCase: fold}},
		})
		require.NoError(t, err)
		return ids(rs)
	}

	assert.Equal(t, []any{"a1"}, query("Centrale", false))
	assert.Empty(t, query("centrale", false))
	assert.Equal(t, []any{"a1"}, query("centrale", true))
}

func TestSelect_LeftJoinNestsColumns(t *testing.T) {
	s := createTestStore(t)

	rs, err := s.Select(context.Background(), store.Query{
		Table:   "visits",
		Columns: []string{"id", "account_id"},
		Joins: []store.Join{{
			Table:        "contacts",
			Type:         store.JoinLeft,
			Columns:      []string{"id", "last_name"},
			LocalTable:   "visits",
			LocalField:   "contact_id",
			ForeignField: "id",
		}},
		Predicates: []store.Predicate{{Table: "visits", Field: "user_id", Op: store.OpEq, Value: "u1"}},
	})
	require.NoError(t, err)
	require.Len(t, rs.Rows, 4)

	assert.Equal(t, []string{"id", "account_id", "contacts"}, rs.Columns)
	assert.Equal(t, store.Row{"id": "c1", "last_name": "Bianchi"}, rs.Rows[0]["contacts"])
	// v3 has no contact.
	assert.Equal(t, "v3", rs.Rows[2]["id"])
	assert.Nil(t, rs.Rows[2]["contacts"])
}

func TestSelect_InnerJoinPredicates(t *testing.T) {
	s := createTestStore(t)

	rs, err := s.Select(context.Background(), store.Query{
		Table:   "visits",
		Columns: []string{"id"},
		Joins: []store.Join{{
			Table:        "accounts",
			Type:         store.JoinInner,
			Columns:      []string{"city"},
			LocalTable:   "visits",
			LocalField:   "account_id",
			ForeignField: "id",
			Predicates: []store.Predicate{
				{Table: "accounts", Field: "city", Op: store.OpEq, Value: "Verona", FoldCase: true},
			},
		}},
		Predicates: []store.Predicate{{Table: "visits", Field: "user_id", Op: store.OpEq, Value: "u1"}},
	})
	require.NoError(t, err)

	assert.Equal(t, []any{"v1", "v2", "v3"}, ids(rs))
}

func TestSelect_SetsAndLimit(t *testing.T) {
	s := createTestStore(t)

	rs, err := s.Select(context.Background(), store.Query{
		Table:   "accounts",
		Columns: []string{"id"},
		Predicates: []store.Predicate{
			{Table: "accounts", Field: "id", Op: store.OpNotIn, Values: []any{"a2"}},
		},
		Limit: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"a1", "a3"}, ids(rs))

	rs, err = s.Select(context.Background(), store.Query{
		Table:      "accounts",
		Columns:    []string{"id"},
		Predicates: []store.Predicate{{Table: "accounts", Field: "id", Op: store.OpIn}},
	})
	require.NoError(t, err)
	assert.Empty(t, rs.Rows)
}

func TestSelect_ContextCanceled(t *testing.T) {
	s := createTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Select(ctx, store.Query{Table: "accounts", Columns: []string{"id"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSelect_UnknownColumn(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Select(context.Background(), store.Query{Table: "accounts", Columns: []string{"ssn"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query accounts")
}

func TestSelect_FoldCaseMatchesMemoryForNonASCII(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer s.Close()

	rows := []map[string]any{
		{"id": "a1", "user_id": "u1", "name": "Enoteca", "city": "ÀREZZO"},
		{"id": "a2", "user_id": "u1", "name": "Osteria", "city": "Verona"},
		{"id": "a3", "user_id": "u1", "name": "Caffè", "city": nil},
	}
	require.NoError(t, s.Seed(context.Background(), "accounts", rows))

	mem := store.NewMemory()
	for _, r := range rows {
		mem.Insert("accounts", store.Row(r))
	}

	testCases := []struct {
		name string
		pred store.Predicate
		want []any
	}{
		{"eq", store.Predicate{Table: "accounts", Field: "city", Op: store.OpEq, Value: "àrezzo", FoldCase: true}, []any{"a1"}},
		{"contains", store.Predicate{Table: "accounts", Field: "city", Op: store.OpContains, Value: "àre", FoldCase: true}, []any{"a1"}},
		{"in", store.Predicate{Table: "accounts", Field: "city", Op: store.OpIn, Values: []any{"àrezzo", "VERONA"}, FoldCase: true}, []any{"a1", "a2"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			q := store.Query{
				Table:      "accounts",
				Columns:    []string{"id"},
				Predicates: []store.Predicate{tc.pred},
				Order:      []store.Order{{Table: "accounts", Field: "id"}},
			}

			got, err := s.Select(context.Background(), q)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ids(got))

			fromMemory, err := mem.Select(context.Background(), q)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ids(fromMemory))
		})
	}
}

func TestSeed_Errors(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	assert.NoError(t, s.Seed(ctx, "accounts", nil))
	assert.ErrorContains(t, s.Seed(ctx, "accounts; DROP", []map[string]any{{"id": "x"}}), "invalid table name")
	assert.ErrorContains(t, s.Seed(ctx, "accounts", []map[string]any{{"bad col": "x"}}), "invalid column name")
	assert.ErrorContains(t, s.Seed(ctx, "nope", []map[string]any{{"id": "x"}}), "seed nope row 0")
}

func TestParseFixtures(t *testing.T) {
	f, err := ParseFixtures([]byte("accounts:\n  - {id: a1, user_id: u1, name: Rossi}\n"))
	require.NoError(t, err)
	assert.Equal(t, "Rossi", f["accounts"][0]["name"])

	_, err = ParseFixtures([]byte("accounts: [unterminated"))
	assert.Error(t, err)

	demo := DemoFixtures()
	assert.Len(t, demo["visits"], 5)
}

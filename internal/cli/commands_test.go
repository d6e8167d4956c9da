package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const veronaPlanYAML = `intent: accounts in Verona
tables: [accounts]
filters:
  - {field: accounts.city, operator: eq, value: Verona}
`

const visitsPerAccountJSON = `{
  "intent": "visits per account",
  "tables": ["visits"],
  "filters": [],
  "aggregation": {"function": "count", "groupBy": ["visits.account_id"]}
}`

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *CLIError       `json:"error"`
}

func decodeEnvelope(t *testing.T, out string) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal([]byte(out), &env), out)
	return env
}

func TestValidate_Valid(t *testing.T) {
	env := newTestEnv(t)
	path := env.writeFile(t, "plan.yaml", veronaPlanYAML)

	out, _, err := env.run(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ plan valid")
	assert.Contains(t, out, "warning:", "missing owner filter is reported")
}

func TestValidate_Invalid(t *testing.T) {
	env := newTestEnv(t)
	path := env.writeFile(t, "plan.json", `{"tables": ["users"], "filters": []}`)

	out, _, err := env.run(t, "--format", "json", "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeEnvelope(t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "SCHEMA_VIOLATION", resp.Error.Code)
}

func TestValidate_MissingFile(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.run(t, "validate", filepath.Join(env.dir, "nope.json"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSeedAndExec(t *testing.T) {
	env := newTestEnv(t)

	out, _, err := env.run(t, "seed", "--db", env.dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "seeded 4 accounts")
	assert.Contains(t, out, "seeded 5 visits")

	path := env.writeFile(t, "plan.yaml", veronaPlanYAML)
	out, _, err = env.run(t, "--format", "json", "exec", "--caller", "u1", path)
	require.NoError(t, err)

	resp := decodeEnvelope(t, out)
	require.Equal(t, "ok", resp.Status)

	var result struct {
		Success  bool             `json:"success"`
		Data     []map[string]any `json:"data"`
		RowCount int              `json:"rowCount"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.RowCount)
	require.Len(t, result.Data, 2)
	assert.Equal(t, "a1", result.Data[0]["id"])
	assert.Equal(t, "a2", result.Data[1]["id"])
	for _, row := range result.Data {
		assert.Equal(t, "u1", row["user_id"])
	}
}

func TestExec_Aggregation(t *testing.T) {
	env := newTestEnv(t)
	_, _, err := env.run(t, "seed", "--db", env.dbPath)
	require.NoError(t, err)

	path := env.writeFile(t, "plan.json", visitsPerAccountJSON)
	out, _, err := env.run(t, "--format", "json", "exec", "--caller", "u1", path)
	require.NoError(t, err)

	var result struct {
		Aggregated []map[string]any `json:"aggregated"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, out).Data, &result))
	assert.Equal(t, []map[string]any{
		{"account_id": "a1", "count": float64(2)},
		{"account_id": "a2", "count": float64(1)},
		{"account_id": "a3", "count": float64(1)},
	}, result.Aggregated)

	out, _, err = env.run(t, "exec", "--caller", "u1", path)
	require.NoError(t, err)
	assert.Contains(t, out, "account_id")
	assert.Contains(t, out, "(4 rows scanned)")
}

func TestExec_Failure(t *testing.T) {
	env := newTestEnv(t)
	path := env.writeFile(t, "plan.json", `{"tables": ["visits"], "filters": [], "aggregation": {"function": "sum"}}`)

	out, _, err := env.run(t, "--format", "json", "exec", "--caller", "u1", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeEnvelope(t, out)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "AGGREGATION_ERROR", resp.Error.Code)
}

func TestExec_RequiresCaller(t *testing.T) {
	env := newTestEnv(t)
	path := env.writeFile(t, "plan.yaml", veronaPlanYAML)

	_, _, err := env.run(t, "exec", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "caller")
}

func TestSchema(t *testing.T) {
	env := newTestEnv(t)

	out, _, err := env.run(t, "schema")
	require.NoError(t, err)
	assert.Contains(t, out, "accounts (tenant-scoped by user_id)")
	assert.Contains(t, out, "products (shared)")
	assert.NotContains(t, out, "vat_number_enc")
}

func TestSeed_BadFixtures(t *testing.T) {
	env := newTestEnv(t)
	path := env.writeFile(t, "fixtures.yaml", "accounts: [[[")

	_, _, err := env.run(t, "seed", "--db", env.dbPath, "--file", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

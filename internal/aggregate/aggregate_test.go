package aggregate

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/planq/internal/plan"
	"github.com/roach88/planq/internal/store"
)

func visit(id, account string, amount any) store.Row {
	return store.Row{"id": id, "account_id": account, "importo_vendita": amount}
}

func sumByAccount() Spec {
	return Spec{
		Aggregation: plan.Aggregation{
			Function: plan.AggSum,
			Field:    "visits.importo_vendita",
			GroupBy:  []string{"visits.account_id"},
		},
		Tables: []string{"visits"},
	}
}

func TestApply_GroupedSumScenario(t *testing.T) {
	rows := []store.Row{
		visit("v1", "A", 200.0),
		visit("v2", "B", 700.0),
		visit("v3", "A", 300.0),
		visit("v4", "C", 300.0),
		visit("v5", "B", 500.0),
	}

	res, err := Apply(rows, sumByAccount())
	require.NoError(t, err)

	assert.True(t, res.Grouped)
	assert.Equal(t, []Group{
		{"account_id": "B", "sum": 1200.0},
		{"account_id": "A", "sum": 500.0},
		{"account_id": "C", "sum": 300.0},
	}, res.Value())
}

func TestApply_DefaultsToTenGroupsDescending(t *testing.T) {
	var rows []store.Row
	for i := range 15 {
		rows = append(rows, visit(fmt.Sprintf("v%d", i), fmt.Sprintf("acc%02d", i), float64(i*10)))
	}

	res, err := Apply(rows, sumByAccount())
	require.NoError(t, err)

	require.Len(t, res.Groups, DefaultGroupLimit)
	assert.Equal(t, 15, res.TotalGroups)
	assert.Equal(t, "acc14", res.Groups[0]["account_id"])
	for i := 1; i < len(res.Groups); i++ {
		assert.GreaterOrEqual(t, res.Groups[i-1]["sum"], res.Groups[i]["sum"])
	}
}

func TestApply_HavingFiltersAfterAggregation(t *testing.T) {
	var rows []store.Row
	counts := map[string]int{"A": 5, "B": 3, "C": 4, "D": 1}
	for _, acc := range []string{"A", "B", "C", "D"} {
		for i := range counts[acc] {
			rows = append(rows, visit(fmt.Sprintf("%s%d", acc, i), acc, 1.0))
		}
	}

	spec := Spec{
		Aggregation: plan.Aggregation{
			Function: plan.AggCount,
			GroupBy:  []string{"visits.account_id"},
			Having:   &plan.FieldFilter{Field: "count", Operator: plan.OpGt, Value: plan.Number(3)},
		},
		Limit:  plan.IntPtr(100),
		Tables: []string{"visits"},
	}

	res, err := Apply(rows, spec)
	require.NoError(t, err)

	assert.Equal(t, []Group{
		{"account_id": "A", "count": 5},
		{"account_id": "C", "count": 4},
	}, res.Groups)
	for _, g := range res.Groups {
		assert.Greater(t, g["count"], 3)
	}
}

func TestApply_SortAndLimitFromPlan(t *testing.T) {
	rows := []store.Row{
		visit("v1", "B", 10.0),
		visit("v2", "A", 30.0),
		visit("v3", "C", 20.0),
	}

	spec := sumByAccount()
	spec.Sort = &plan.SortConfig{Field: "visits.account_id", Order: plan.SortAsc}
	spec.Limit = plan.IntPtr(2)

	res, err := Apply(rows, spec)
	require.NoError(t, err)
	assert.Equal(t, []Group{
		{"account_id": "A", "sum": 30.0},
		{"account_id": "B", "sum": 10.0},
	}, res.Groups)

	spec.Sort = &plan.SortConfig{Field: "sum", Order: plan.SortAsc}
	res, err = Apply(rows, spec)
	require.NoError(t, err)
	assert.Equal(t, "B", res.Groups[0]["account_id"])
	assert.Equal(t, "C", res.Groups[1]["account_id"])
}

func TestApply_GroupedAvgMinMax(t *testing.T) {
	rows := []store.Row{
		visit("v1", "A", 10.0),
		visit("v2", "A", 30.0),
		visit("v3", "B", "n/a"),
	}

	for fn, want := range map[plan.AggFunc]any{plan.AggAvg: 20.0, plan.AggMin: 10.0, plan.AggMax: 30.0} {
		t.Run(string(fn), func(t *testing.T) {
			spec := sumByAccount()
			spec.Aggregation.Function = fn

			res, err := Apply(rows, spec)
			require.NoError(t, err)
			require.Len(t, res.Groups, 2)
			assert.Equal(t, Group{"account_id": "A", string(fn): want}, res.Groups[0])
			// B has no numeric value and sorts last.
			assert.Equal(t, Group{"account_id": "B", string(fn): nil}, res.Groups[1])
		})
	}
}

func TestApply_UngroupedCount(t *testing.T) {
	rows := []store.Row{visit("v1", "A", nil), visit("v2", "A", 4.0)}

	res, err := Apply(rows, Spec{Aggregation: plan.Aggregation{Function: plan.AggCount}, Tables: []string{"visits"}})
	require.NoError(t, err)
	assert.False(t, res.Grouped)
	assert.Equal(t, 2, res.Value())
}

func TestApply_UngroupedReductionsExcludeNonNumeric(t *testing.T) {
	rows := []store.Row{
		visit("v1", "A", 10.0),
		visit("v2", "A", nil),
		visit("v3", "A", "abc"),
		visit("v4", "A", "20"),
		{"id": "v5"},
	}

	tests := []struct {
		fn   plan.AggFunc
		want any
	}{
		{plan.AggSum, 30.0},
		{plan.AggAvg, 15.0},
		{plan.AggMin, 10.0},
		{plan.AggMax, 20.0},
	}
	for _, tt := range tests {
		t.Run(string(tt.fn), func(t *testing.T) {
			res, err := Apply(rows, Spec{
				Aggregation: plan.Aggregation{Function: tt.fn, Field: "visits.importo_vendita"},
				Tables:      []string{"visits"},
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Scalar)
		})
	}
}

func TestApply_NoNumericValues(t *testing.T) {
	rows := []store.Row{visit("v1", "A", nil), visit("v2", "A", "x")}

	_, err := Apply(rows, Spec{
		Aggregation: plan.Aggregation{Function: plan.AggAvg, Field: "visits.importo_vendita"},
		Tables:      []string{"visits"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoNumericValues)

	_, err = Apply(nil, Spec{Aggregation: plan.Aggregation{Function: plan.AggSum, Field: "visits.importo_vendita"}})
	assert.ErrorIs(t, err, ErrNoNumericValues)
}

func TestApply_MissingField(t *testing.T) {
	_, err := Apply(nil, Spec{Aggregation: plan.Aggregation{Function: plan.AggMax}})
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestApply_UngroupedHaving(t *testing.T) {
	rows := []store.Row{visit("v1", "A", 1.0), visit("v2", "A", 2.0)}
	spec := Spec{
		Aggregation: plan.Aggregation{
			Function: plan.AggCount,
			Having:   &plan.FieldFilter{Field: "count", Operator: plan.OpGte, Value: plan.Number(5)},
		},
		Tables: []string{"visits"},
	}

	res, err := Apply(rows, spec)
	require.NoError(t, err)
	assert.Nil(t, res.Scalar)

	spec.Aggregation.Having.Value = plan.Number(2)
	res, err = Apply(rows, spec)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Scalar)
}

func TestApply_GroupByJoinedColumn(t *testing.T) {
	rows := []store.Row{
		{"id": "v1", "importo_vendita": 100.0, "accounts": store.Row{"city": "Verona"}},
		{"id": "v2", "importo_vendita": 50.0, "accounts": store.Row{"city": "Padova"}},
		{"id": "v3", "importo_vendita": 70.0, "accounts": store.Row{"city": "Verona"}},
		{"id": "v4", "importo_vendita": 10.0, "accounts": nil},
	}

	spec := Spec{
		Aggregation: plan.Aggregation{
			Function: plan.AggSum,
			Field:    "visits.importo_vendita",
			GroupBy:  []string{"accounts.city"},
		},
		Tables: []string{"visits", "accounts"},
	}

	res, err := Apply(rows, spec)
	require.NoError(t, err)
	assert.Equal(t, []Group{
		{"city": "Verona", "sum": 170.0},
		{"city": "Padova", "sum": 50.0},
		{"city": nil, "sum": 10.0},
	}, res.Groups)

	// A bare group-by field falls back to joined tables.
	spec.Aggregation.GroupBy = []string{"city"}
	res, err = Apply(rows, spec)
	require.NoError(t, err)
	assert.Equal(t, "Verona", res.Groups[0]["city"])
}

func TestApply_HavingOnGroupColumn(t *testing.T) {
	rows := []store.Row{visit("v1", "A", 1.0), visit("v2", "B", 2.0)}
	spec := sumByAccount()
	spec.Aggregation.Having = &plan.FieldFilter{Field: "visits.account_id", Operator: plan.OpIn, Value: plan.Array{plan.String("B")}}

	res, err := Apply(rows, spec)
	require.NoError(t, err)
	assert.Equal(t, []Group{{"account_id": "B", "sum": 2.0}}, res.Groups)
}

func TestApply_HavingOnAggregatedColumn(t *testing.T) {
	rows := []store.Row{
		visit("v1", "A", 200.0),
		visit("v2", "B", 700.0),
		visit("v3", "A", 300.0),
		visit("v4", "C", 300.0),
		visit("v5", "B", 500.0),
	}
	spec := sumByAccount()
	spec.Aggregation.Having = &plan.FieldFilter{Field: "visits.importo_vendita", Operator: plan.OpGt, Value: plan.Number(400)}

	res, err := Apply(rows, spec)
	require.NoError(t, err)
	assert.Equal(t, []Group{
		{"account_id": "B", "sum": 1200.0},
		{"account_id": "A", "sum": 500.0},
	}, res.Groups)
}

func TestApply_GroupKeysDoNotCollide(t *testing.T) {
	rows := []store.Row{
		{"a": "x|y", "b": "z", "n": 1.0},
		{"a": "x", "b": "y|z", "n": 2.0},
		{"a": 1, "b": "z", "n": 3.0},
		{"a": "1", "b": "z", "n": 4.0},
	}
	spec := Spec{
		Aggregation: plan.Aggregation{Function: plan.AggCount, GroupBy: []string{"t.a", "t.b"}},
		Tables:      []string{"t"},
	}

	res, err := Apply(rows, spec)
	require.NoError(t, err)
	assert.Equal(t, 4, res.TotalGroups)
	for _, g := range res.Groups {
		assert.Equal(t, 1, g["count"])
	}
}

func TestApply_HavingErrors(t *testing.T) {
	spec := sumByAccount()
	spec.Aggregation.Having = &plan.FieldFilter{Field: "sum", Operator: plan.OpIn, Value: plan.Number(1)}

	_, err := Apply(nil, spec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires an array")
}

func TestApply_TiesKeepInsertionOrder(t *testing.T) {
	rows := []store.Row{visit("v1", "X", 5.0), visit("v2", "Y", 5.0), visit("v3", "Z", 5.0)}

	res, err := Apply(rows, sumByAccount())
	require.NoError(t, err)

	assert.Equal(t, "X", res.Groups[0]["account_id"])
	assert.Equal(t, "Y", res.Groups[1]["account_id"])
	assert.Equal(t, "Z", res.Groups[2]["account_id"])
}

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/roach88/planq/internal/aggregate"
	"github.com/roach88/planq/internal/store"
)

func renderRows(w io.Writer, columns []string, rows []store.Row) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "no rows")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(columns, "\t"))
	for _, row := range rows {
		cells := make([]string, len(columns))
		for i, col := range columns {
			cells[i] = cell(row[col])
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	_ = tw.Flush()
}

func renderAggregate(w io.Writer, value any) {
	groups, ok := value.([]aggregate.Group)
	if !ok {
		fmt.Fprintf(w, "result: %s\n", cell(value))
		return
	}
	if len(groups) == 0 {
		fmt.Fprintln(w, "no groups")
		return
	}

	// Group keys are identical across groups.
	keys := make([]string, 0, len(groups[0]))
	for k := range groups[0] {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(keys, "\t"))
	for _, g := range groups {
		cells := make([]string, len(keys))
		for i, k := range keys {
			cells[i] = cell(g[k])
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	_ = tw.Flush()
}

// cell renders a value for a text table. Nested joined rows print as JSON.
func cell(v any) string {
	switch val := v.(type) {
	case nil:
		return "-"
	case string:
		return val
	case store.Row, map[string]any:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	default:
		return fmt.Sprint(val)
	}
}

package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/planq/internal/engine"
)

// ExecOptions holds flags for the exec command.
type ExecOptions struct {
	*RootOptions
	Caller string
	DSN    string
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "exec <plan-file|->",
		Short: "Execute a query plan on behalf of a caller",
		Long: `Execute a JSON or YAML query plan against the configured store.

Rows of tenant-scoped tables are always restricted to the caller given
with --caller, whatever owner filters the plan carries.

Example:
  planq exec --caller u1 plans/verona.yaml
  planq exec --caller u1 --db ./demo.db --format json -`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Caller, "caller", "", "caller identity (required)")
	cmd.Flags().StringVar(&opts.DSN, "db", "", "database DSN, overrides the config file")
	_ = cmd.MarkFlagRequired("caller")

	return cmd
}

func runExec(opts *ExecOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	p, err := loadPlan(path, cmd)
	if err != nil {
		_ = formatter.Error(ErrCodeInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read plan", err)
	}

	rt, err := opts.openRuntime(cmd.Context(), cmd.ErrOrStderr(), opts.DSN, true)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return err
	}
	defer rt.Close()

	res := rt.executor().Execute(cmd.Context(), p, opts.Caller)
	formatter.VerboseLog("execution %s: success=%t rows=%d", res.ExecutionID, res.Success, res.RowCount)

	if !res.Success {
		details := map[string]string{"executionId": res.ExecutionID}
		if res.Field != "" {
			details["field"] = res.Field
		}
		_ = formatter.Error(string(res.Code), res.Error, details)
		return NewExitError(ExitFailure, fmt.Sprintf("%s: %s", res.Code, res.Error))
	}
	return formatter.Success(res, func(w io.Writer) {
		renderResult(w, res)
	})
}

func renderResult(w io.Writer, res *engine.QueryResult) {
	if res.IsAggregate {
		renderAggregate(w, res.Aggregated)
	} else {
		renderRows(w, res.Columns, res.Data)
	}
	fmt.Fprintf(w, "(%d rows scanned)\n", res.RowCount)
	printWarnings(w, res.Warnings)
}

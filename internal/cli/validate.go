package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/planq/internal/plan"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <plan-file|->",
		Short: "Validate a query plan without executing it",
		Long: `Validate a JSON or YAML query plan against the schema registry.

Checks tables, fields, operators, filter value shapes, aggregation,
joins, sort and limit. Nested subquery plans are validated too.
Warnings (missing tenant filter, large limit) do not fail validation.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	p, err := loadPlan(path, cmd)
	if err != nil {
		_ = formatter.Error(ErrCodeInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read plan", err)
	}

	rt, err := opts.openRuntime(cmd.Context(), cmd.ErrOrStderr(), "", false)
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return err
	}
	defer rt.Close()

	vr := rt.executor().Validate(p)
	formatter.VerboseLog("validated plan %q: valid=%t warnings=%d", p.Intent, vr.Valid, len(vr.Warnings))

	if !vr.Valid {
		_ = formatter.Error(string(vr.Code), vr.Error, fieldDetails(vr.Field))
		return NewExitError(ExitFailure, fmt.Sprintf("%s: %s", vr.Code, vr.Error))
	}
	return formatter.Success(vr, func(w io.Writer) {
		fmt.Fprintln(w, "✓ plan valid")
		printWarnings(w, vr.Warnings)
	})
}

func loadPlan(path string, cmd *cobra.Command) (*plan.QueryPlan, error) {
	data, err := readInput(path, cmd.InOrStdin())
	if err != nil {
		return nil, err
	}
	return plan.Decode(data)
}

func fieldDetails(field string) any {
	if field == "" {
		return nil
	}
	return map[string]string{"field": field}
}

func printWarnings(w io.Writer, warnings []string) {
	for _, warning := range warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
}

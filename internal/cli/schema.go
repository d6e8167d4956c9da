package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/planq/internal/schema"
)

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "schema",
		Short:         "Print the schema registry",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			rt, err := rootOpts.openRuntime(cmd.Context(), cmd.ErrOrStderr(), "", false)
			if err != nil {
				_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
				return err
			}
			defer rt.Close()

			d := rt.registry.Describe()
			return formatter.Success(d, func(w io.Writer) { renderSchema(w, d) })
		},
	}
}

func renderSchema(w io.Writer, d schema.Description) {
	for _, t := range d.Tables {
		scope := "shared"
		if t.TenantScoped {
			scope = "tenant-scoped by " + d.OwnerField
		}
		fmt.Fprintf(w, "%s (%s)\n", t.Name, scope)
		fmt.Fprintf(w, "  %s\n", strings.Join(t.Fields, ", "))
	}
	fmt.Fprintf(w, "operators: %s\n", strings.Join(d.Operators, ", "))
	fmt.Fprintf(w, "aggregations: %s\n", strings.Join(d.Aggregations, ", "))
	fmt.Fprintf(w, "case-insensitive: %s\n", strings.Join(d.CaseInsensitiveFields, ", "))
}

package cli

import (
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/planq/internal/sqlstore"
)

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	*RootOptions
	Database string
	File     string
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create a SQLite CRM database and load fixtures",
		Long: `Create (or open) a SQLite database with the reference CRM schema and
insert fixture rows. Without --file the built-in demo data set is loaded.

Example:
  planq seed --db ./demo.db
  planq seed --db ./demo.db --file fixtures.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "YAML fixtures file (default: demo data)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runSeed(opts *SeedOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	fixtures := sqlstore.DemoFixtures()
	if opts.File != "" {
		data, err := readInput(opts.File, cmd.InOrStdin())
		if err != nil {
			_ = formatter.Error(ErrCodeInput, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to read fixtures", err)
		}
		fixtures, err = sqlstore.ParseFixtures(data)
		if err != nil {
			_ = formatter.Error(ErrCodeInput, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to parse fixtures", err)
		}
	}

	db, err := sqlstore.Open(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer db.Close()

	if err := db.SeedFixtures(cmd.Context(), fixtures); err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to seed database", err)
	}

	counts := make(map[string]int, len(fixtures))
	for table, rows := range fixtures {
		counts[table] = len(rows)
	}
	return formatter.Success(counts, func(w io.Writer) {
		tables := make([]string, 0, len(counts))
		for table := range counts {
			tables = append(tables, table)
		}
		slices.Sort(tables)
		for _, table := range tables {
			fmt.Fprintf(w, "seeded %d %s\n", counts[table], table)
		}
	})
}

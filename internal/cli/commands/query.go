package commands

import (
	"context"
	"fmt"

	"github.com/go-mizu/fsql"
	"github.com/spf13/cobra"
)

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Format string
	Named  []string
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query SQL [SQL...]",
		Short: "Run one or more SELECT statements",
		Long: `Run SELECT statements and print their rows.

Several statements run concurrently, bounded by --parallelism, and are printed
in the order given. Positional ? markers cannot be filled from the command
line; use :name markers with --param name=value instead.`,
		Example: `  fsql query "SELECT * FROM people WHERE id IN (:ids)" --param ids=1,2,3
  fsql query "SELECT count(*) FROM a" "SELECT count(*) FROM b" --format csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "table", "Output format: table, json, yaml, csv, md")
	cmd.Flags().StringArrayVarP(&opts.Named, "param", "p", nil, "named parameter name=value (comma separated values expand to a list)")

	return cmd
}

func runQuery(cmd *cobra.Command, statements []string, opts *QueryOptions) error {
	params, err := parseParams(opts.Named)
	if err != nil {
		return err
	}

	db, err := openDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	results := make([]resultSet, len(statements))
	units := make([]func(ctx context.Context) error, len(statements))
	for i, text := range statements {
		units[i] = func(ctx context.Context) error {
			rows, err := selectFor(db, text, params).Execute(ctx)
			if err != nil {
				return fmt.Errorf("statement %d: %w", i+1, err)
			}
			rs, err := readRows(rows)
			if err != nil {
				return fmt.Errorf("statement %d: %w", i+1, err)
			}
			results[i] = rs
			return nil
		}
	}
	if err := db.Parallel(cmd.Context(), units...); err != nil {
		return err
	}

	for i, rs := range results {
		if i > 0 && opts.Format != "json" {
			_, _ = fmt.Fprintln(cmd.OutOrStdout())
		}
		if err := render(cmd.OutOrStdout(), rs, opts.Format); err != nil {
			return err
		}
	}
	return nil
}

func selectFor(db *fsql.DB, text string, params map[string]any) *fsql.SelectQuery {
	if len(params) > 0 {
		return db.SelectNamed(text, params)
	}
	return db.Select(text)
}

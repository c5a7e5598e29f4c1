package commands

import (
	"github.com/go-mizu/fsql"
	"github.com/spf13/cobra"
)

// NewDriversCommand creates the drivers command.
func NewDriversCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "drivers",
		Short: "List registered drivers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rs := resultSet{cols: []string{"name", "placeholder", "native batch"}}
			for _, name := range fsql.Drivers() {
				d, _ := fsql.Lookup(name)
				rs.rows = append(rs.rows, []any{name, d.Placeholder.String(), d.Batch != nil})
			}
			return render(cmd.OutOrStdout(), rs, format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table, json, csv, md")

	return cmd
}

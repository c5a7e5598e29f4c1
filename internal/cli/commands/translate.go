package commands

import (
	"fmt"

	"github.com/go-mizu/fsql"
	"github.com/spf13/cobra"
)

// NewTranslateCommand creates the translate command.
func NewTranslateCommand() *cobra.Command {
	var named []string

	cmd := &cobra.Command{
		Use:   "translate SQL",
		Short: "Show the driver text and arguments for a statement",
		Long: `Rewrite :name markers and ? markers into the placeholder style of the
configured driver without touching the database.`,
		Example: `  fsql translate "SELECT * FROM t WHERE id IN (:ids)" -p ids=1,2,3 --driver postgres`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(named)
			if err != nil {
				return err
			}
			ph, err := placeholderFor(cmd)
			if err != nil {
				return err
			}
			var bind []any
			if len(params) > 0 {
				bind = []any{params}
			}
			text, out, err := fsql.Rebind(args[0], ph, bind...)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(w, text)
			for i, a := range out {
				_, _ = fmt.Fprintf(w, "  %d: %s\n", i+1, formatValue(a))
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&named, "param", "p", nil, "named parameter name=value")

	return cmd
}

// placeholderFor resolves the placeholder style without connecting: the
// configured placeholder, else the registered driver's, else the style
// guessed from the driver name.
func placeholderFor(cmd *cobra.Command) (fsql.Placeholder, error) {
	e, err := fromContext(cmd.Context())
	if err != nil {
		return 0, err
	}
	if e.cfg.Placeholder != "" {
		return fsql.ParsePlaceholder(e.cfg.Placeholder)
	}
	if d, ok := fsql.Lookup(e.cfg.Driver); ok {
		return d.Placeholder, nil
	}
	return fsql.PlaceholderFor(e.cfg.Driver), nil
}

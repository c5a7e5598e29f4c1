package commands

import (
	"fmt"

	"github.com/go-mizu/fsql"
	"github.com/spf13/cobra"
)

// NewClassifyCommand creates the classify command.
func NewClassifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "classify SQL",
		Short: "Print whether a statement is a select, an update or a call",
		Long: `Print the statement kind fsql detects. For procedure calls the parsed
procedure name, its marker count and the driver text are shown as well.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			kind := fsql.Classify(args[0])
			_, _ = fmt.Fprintln(w, kind)
			if kind != fsql.KindCall {
				return nil
			}
			spec, _ := fsql.NewCallMatcher().Parse(args[0])
			_, _ = fmt.Fprintf(w, "procedure: %s\n", spec.Proc)
			_, _ = fmt.Fprintf(w, "parameters: %d\n", spec.Params())
			_, _ = fmt.Fprintf(w, "returns: %t\n", spec.Returns)
			ph, err := placeholderFor(cmd)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(w, "renders: %s\n", spec.Render(ph))
			return nil
		},
	}
}

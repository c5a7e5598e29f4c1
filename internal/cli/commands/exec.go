package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-mizu/fsql"
	"github.com/spf13/cobra"
)

// ExecOptions holds options for the exec command.
type ExecOptions struct {
	Named []string
	Sets  []string
	Keys  bool
}

// NewExecCommand creates the exec command.
func NewExecCommand() *cobra.Command {
	opts := &ExecOptions{}

	cmd := &cobra.Command{
		Use:   "exec SQL [ARG...]",
		Short: "Run an INSERT, UPDATE, DELETE or DDL statement",
		Long: `Run a data-changing statement and print the number of affected rows.

Positional arguments fill ? markers. --param fills :name markers. Each --set
is one comma separated parameter set; two or more sets run as a batch inside
one transaction.`,
		Example: `  fsql exec "DELETE FROM people WHERE id = ?" 3
  fsql exec "UPDATE people SET age = :age WHERE id = :id" -p age=40 -p id=1
  fsql exec "INSERT INTO people (id, name) VALUES (?, ?)" --set 1,ann --set 2,bob --keys`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(cmd, args[0], args[1:], opts)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Named, "param", "p", nil, "named parameter name=value")
	cmd.Flags().StringArrayVar(&opts.Sets, "set", nil, "comma separated parameter set (repeatable)")
	cmd.Flags().BoolVar(&opts.Keys, "keys", false, "print generated keys")

	return cmd
}

func runExec(cmd *cobra.Command, text string, positional []string, opts *ExecOptions) error {
	if err := exclusiveInputs(positional, opts); err != nil {
		return err
	}
	params, err := parseParams(opts.Named)
	if err != nil {
		return err
	}

	db, err := openDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	q := updateFor(db, text, positional, params, opts.Sets)

	var (
		n    int64
		keys []int64
	)
	if opts.Keys {
		n, err = q.ExecuteKeys(cmd.Context(), func(ks fsql.Keys) error {
			for k, err := range ks {
				if err != nil {
					return err
				}
				keys = append(keys, k)
			}
			return nil
		})
	} else {
		n, err = q.Execute(cmd.Context())
	}
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d rows affected\n", n)
	if opts.Keys {
		strs := make([]string, len(keys))
		for i, k := range keys {
			strs[i] = fmt.Sprint(k)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "keys: %s\n", strings.Join(strs, ", "))
	}
	return nil
}

func exclusiveInputs(positional []string, opts *ExecOptions) error {
	used := 0
	for _, on := range []bool{len(positional) > 0, len(opts.Named) > 0, len(opts.Sets) > 0} {
		if on {
			used++
		}
	}
	if used > 1 {
		return errors.New("positional arguments, --param and --set are mutually exclusive")
	}
	return nil
}

func updateFor(db *fsql.DB, text string, positional []string, params map[string]any, rawSets []string) *fsql.UpdateQuery {
	switch {
	case len(params) > 0:
		return db.UpdateNamed(text, params)
	case len(rawSets) > 0:
		sets := make([][]any, len(rawSets))
		for i, s := range rawSets {
			sets[i] = parseArgs(strings.Split(s, ","))
		}
		return db.UpdateBatch(text, sets)
	default:
		return db.Update(text, parseArgs(positional)...)
	}
}

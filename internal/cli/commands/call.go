package commands

import (
	"fmt"
	"strings"

	"github.com/go-mizu/fsql"
	"github.com/spf13/cobra"
)

// CallOptions holds options for the call command.
type CallOptions struct {
	Format     string
	ResultSets bool
}

// NewCallCommand creates the call command.
func NewCallCommand() *cobra.Command {
	opts := &CallOptions{}

	cmd := &cobra.Command{
		Use:   "call SQL [PARAM...]",
		Short: "Invoke a stored procedure",
		Long: `Invoke a stored procedure written in call syntax and print its parameters.

Each PARAM declares one ? marker in order:
  in:VALUE          input parameter (a bare VALUE means the same)
  out:TYPE          output parameter
  inout:VALUE:TYPE  input/output parameter

TYPE is one of any, int64, float64, string, bool, time, bytes. For the
{?= call f(...)} form the first PARAM receives the return value and must be
out. With --result-sets the rows of every result set are printed instead.`,
		Example: `  fsql call "{?= call abs(?)}" out:int64 in:-5
  fsql call "{call monthly_report(?)}" 2024 --result-sets`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(cmd, args[0], args[1:], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "table", "Output format: table, json, yaml, csv, md")
	cmd.Flags().BoolVar(&opts.ResultSets, "result-sets", false, "print result sets instead of parameters")

	return cmd
}

func runCall(cmd *cobra.Command, text string, specs []string, opts *CallOptions) error {
	params := make([]fsql.Param, len(specs))
	for i, s := range specs {
		p, err := parseParam(s)
		if err != nil {
			return fmt.Errorf("parameter %d: %w", i+1, err)
		}
		params[i] = p
	}

	db, err := openDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	q := db.Call(text, params...)
	if opts.ResultSets {
		return printResultSets(cmd, q, opts.Format)
	}

	outs, err := fsql.Invoke(cmd.Context(), q, func(o fsql.Outs) (resultSet, error) {
		rs := resultSet{cols: []string{"#", "mode", "value"}}
		for i := 1; i <= o.Len(); i++ {
			v := o.Get(i)
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			rs.rows = append(rs.rows, []any{i, params[i-1].Dir.String(), v})
		}
		return rs, nil
	}).Get()
	if err != nil {
		return err
	}
	return render(cmd.OutOrStdout(), outs, opts.Format)
}

func printResultSets(cmd *cobra.Command, q *fsql.CallQuery, format string) error {
	sets, err := q.ResultSets(cmd.Context())
	if err != nil {
		return err
	}
	defer sets.Close()

	n := 0
	for {
		rows, ok := sets.Next()
		if !ok {
			break
		}
		rs, err := readRows(rows)
		if err != nil {
			return err
		}
		if n > 0 && format != "json" && format != "yaml" {
			_, _ = fmt.Fprintln(cmd.OutOrStdout())
		}
		if err := render(cmd.OutOrStdout(), rs, format); err != nil {
			return err
		}
		n++
	}
	return sets.Err()
}

var sqlTypes = map[string]fsql.SQLType{
	"any":     fsql.TypeAny,
	"int64":   fsql.TypeInt64,
	"float64": fsql.TypeFloat64,
	"string":  fsql.TypeString,
	"bool":    fsql.TypeBool,
	"time":    fsql.TypeTime,
	"bytes":   fsql.TypeBytes,
}

func parseSQLType(s string) (fsql.SQLType, error) {
	t, ok := sqlTypes[strings.ToLower(s)]
	if !ok {
		return 0, fmt.Errorf("unknown type %q", s)
	}
	return t, nil
}

// parseParam reads in:VALUE, out:TYPE, inout:VALUE:TYPE or a bare value.
func parseParam(s string) (fsql.Param, error) {
	mode, rest, ok := strings.Cut(s, ":")
	if !ok {
		return fsql.In(parseValue(s)), nil
	}
	switch strings.ToLower(mode) {
	case "in":
		return fsql.In(parseValue(rest)), nil
	case "out":
		t, err := parseSQLType(rest)
		if err != nil {
			return fsql.Param{}, err
		}
		return fsql.Out(t), nil
	case "inout":
		i := strings.LastIndex(rest, ":")
		if i < 0 {
			return fsql.Param{}, fmt.Errorf("inout wants VALUE:TYPE, got %q", rest)
		}
		t, err := parseSQLType(rest[i+1:])
		if err != nil {
			return fsql.Param{}, err
		}
		return fsql.InOut(parseValue(rest[:i]), t), nil
	default:
		return fsql.In(parseValue(s)), nil
	}
}

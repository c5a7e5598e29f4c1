package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/go-mizu/fsql"
	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"
)

// resultSet is a fully read result, ready to print.
type resultSet struct {
	cols []string
	rows [][]any
}

func readRows(rows *fsql.Rows) (resultSet, error) {
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return resultSet{}, err
	}
	rs := resultSet{cols: cols}
	for row, err := range rows.All() {
		if err != nil {
			return resultSet{}, err
		}
		vals := make([]any, len(cols))
		for i := range cols {
			v, err := row.Value(i + 1)
			if err != nil {
				return resultSet{}, err
			}
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			vals[i] = v
		}
		rs.rows = append(rs.rows, vals)
	}
	return rs, nil
}

func render(w io.Writer, rs resultSet, format string) error {
	switch format {
	case "json":
		return renderJSON(w, rs)
	case "yaml":
		return renderYAML(w, rs)
	case "csv", "md", "markdown", "table", "":
	default:
		return fmt.Errorf("unknown output format %q (table, csv, md, json, yaml)", format)
	}

	if len(rs.rows) == 0 && (format == "table" || format == "") {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(rs.cols))
	for i, col := range rs.cols {
		header[i] = col
	}
	t.AppendHeader(header)
	for _, vals := range rs.rows {
		row := make(table.Row, len(vals))
		for i, v := range vals {
			row[i] = formatValue(v)
		}
		t.AppendRow(row)
	}

	switch format {
	case "csv":
		t.RenderCSV()
	case "md", "markdown":
		t.RenderMarkdown()
	default:
		t.Render()
		_, _ = fmt.Fprintf(w, "(%d rows)\n", len(rs.rows))
	}
	return nil
}

func (rs resultSet) records() []map[string]any {
	out := make([]map[string]any, 0, len(rs.rows))
	for _, vals := range rs.rows {
		m := make(map[string]any, len(rs.cols))
		for i, col := range rs.cols {
			m[col] = vals[i]
		}
		out = append(out, m)
	}
	return out
}

func renderJSON(w io.Writer, rs resultSet) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rs.records())
}

func renderYAML(w io.Writer, rs resultSet) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rs.records()); err != nil {
		return err
	}
	return enc.Close()
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case time.Time:
		return v.Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("%v", v)
	}
}

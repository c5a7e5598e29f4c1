package commands

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-mizu/fsql"
	"github.com/go-mizu/fsql/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/go-mizu/fsql/drivers/sqlite"
)

// run executes cmd with args against a configuration built from flags.
func run(t *testing.T, cmd *cobra.Command, flags []string, args ...string) (string, error) {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	require.NoError(t, fs.Parse(flags))
	cfg, err := config.Load("", fs)
	require.NoError(t, err)

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err = cmd.ExecuteContext(WithConfig(context.Background(), cfg, nil))
	return buf.String(), err
}

func sqliteFlags(t *testing.T) []string {
	t.Helper()
	return []string{"--driver", "sqlite", "--dsn", "file:" + filepath.Join(t.TempDir(), "cli.db")}
}

func TestExecAndQuery(t *testing.T) {
	flags := sqliteFlags(t)

	_, err := run(t, NewExecCommand(), flags, "CREATE TABLE people (id INTEGER PRIMARY KEY, name TEXT)")
	require.NoError(t, err)

	out, err := run(t, NewExecCommand(), flags, "INSERT INTO people (name) VALUES (?)", "--set", "ann", "--set", "bob", "--keys")
	require.NoError(t, err)
	assert.Contains(t, out, "2 rows affected")
	assert.Contains(t, out, "keys: 1, 2")

	out, err = run(t, NewExecCommand(), flags, "UPDATE people SET name = :name WHERE id = :id", "-p", "name=cy", "-p", "id=2")
	require.NoError(t, err)
	assert.Contains(t, out, "1 rows affected")

	out, err = run(t, NewQueryCommand(), flags, "SELECT id, name FROM people WHERE id IN (:ids) ORDER BY id", "-p", "ids=1,2", "--format", "csv")
	require.NoError(t, err)
	assert.Contains(t, strings.ToLower(out), "id,name")
	assert.Contains(t, out, "1,ann")
	assert.Contains(t, out, "2,cy")
}

func TestQuery_Parallel(t *testing.T) {
	flags := append(sqliteFlags(t), "--parallelism", "2")

	out, err := run(t, NewQueryCommand(), flags, "SELECT 1 AS a", "SELECT 2 AS b", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"a": 1`)
	assert.Contains(t, out, `"b": 2`)
}

func TestQuery_YAML(t *testing.T) {
	out, err := run(t, NewQueryCommand(), sqliteFlags(t), "SELECT 1 AS a, 'x' AS b", "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "- a: 1\n  b: x\n")
}

func TestQuery_UnknownFormat(t *testing.T) {
	_, err := run(t, NewQueryCommand(), sqliteFlags(t), "SELECT 1", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestQuery_Empty(t *testing.T) {
	out, err := run(t, NewQueryCommand(), sqliteFlags(t), "SELECT 1 WHERE 1 = 0")
	require.NoError(t, err)
	assert.Contains(t, out, "(0 rows)")
}

func TestExec_ExclusiveInputs(t *testing.T) {
	_, err := run(t, NewExecCommand(), sqliteFlags(t), "DELETE FROM t WHERE id = ?", "1", "--set", "2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestCall_ReturnValue(t *testing.T) {
	out, err := run(t, NewCallCommand(), sqliteFlags(t), "{?= call abs(?)}", "out:int64", "in:-5", "--format", "csv")
	require.NoError(t, err)
	assert.Contains(t, out, "1,OUT,5")
	assert.Contains(t, out, "2,IN,-5")
}

func TestClassify(t *testing.T) {
	flags := []string{"--driver", "postgres"}

	out, err := run(t, NewClassifyCommand(), flags, "{?= call pkg.total(?, ?)}")
	require.NoError(t, err)
	assert.Contains(t, out, "call")
	assert.Contains(t, out, "procedure: pkg.total")
	assert.Contains(t, out, "renders: SELECT pkg.total($1,$2)")

	out, err = run(t, NewClassifyCommand(), flags, "WITH x AS (SELECT 1) SELECT * FROM x")
	require.NoError(t, err)
	assert.Equal(t, "select\n", out)
}

func TestTranslate(t *testing.T) {
	out, err := run(t, NewTranslateCommand(), []string{"--placeholder", "dollar"},
		"SELECT * FROM t WHERE a = :a AND id IN (:ids)", "-p", "a=x", "-p", "ids=1,2")
	require.NoError(t, err)
	assert.Contains(t, out, "SELECT * FROM t WHERE a = $1 AND id IN ($2,$3)")
	assert.Contains(t, out, "  1: x")
	assert.Contains(t, out, "  3: 2")
}

func TestDrivers(t *testing.T) {
	out, err := run(t, NewDriversCommand(), nil, "--format", "csv")
	require.NoError(t, err)
	assert.Contains(t, out, "sqlite,question,false")
}

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"a=1", "b=x", "c=1,2", "d=null", "e=true", "f=1.5"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"a": int64(1),
		"b": "x",
		"c": []any{int64(1), int64(2)},
		"d": nil,
		"e": true,
		"f": 1.5,
	}, params)

	_, err = parseParams([]string{"novalue"})
	require.Error(t, err)
	_, err = parseParams([]string{"a=1", "a=2"})
	require.Error(t, err)
}

func TestParseParam(t *testing.T) {
	tests := []struct {
		in   string
		want fsql.Param
	}{
		{"7", fsql.In(int64(7))},
		{"in:abc", fsql.In("abc")},
		{"out:float64", fsql.Out(fsql.TypeFloat64)},
		{"inout:3:int64", fsql.InOut(int64(3), fsql.TypeInt64)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseParam(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := parseParam("out:decimal")
	require.Error(t, err)
	_, err = parseParam("inout:3")
	require.Error(t, err)
}

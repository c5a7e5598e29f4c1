package fsql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRewriteEscapes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"date", `SELECT * FROM t WHERE d = {d '2024-01-31'}`, `SELECT * FROM t WHERE d = '2024-01-31'`},
		{"time", `SELECT {t '10:00:00'}`, `SELECT '10:00:00'`},
		{"timestamp", `SELECT {ts '2024-01-31 10:00:00'}`, `SELECT '2024-01-31 10:00:00'`},
		{"function", `SELECT {fn ucase(name)} FROM t`, `SELECT ucase(name) FROM t`},
		{"nested", `SELECT {fn concat({fn ucase(a)}, b)}`, `SELECT concat(ucase(a), b)`},
		{"outer join", `SELECT * FROM {oj a LEFT OUTER JOIN b ON a.id = b.id}`, `SELECT * FROM a LEFT OUTER JOIN b ON a.id = b.id`},
		{"escape", `SELECT * FROM t WHERE a LIKE 'x!_%' {escape '!'}`, `SELECT * FROM t WHERE a LIKE 'x!_%' ESCAPE '!'`},
		{"limit", `SELECT * FROM t {limit 10}`, `SELECT * FROM t LIMIT 10`},
		{"upper case keyword", `SELECT {FN lcase(a)}`, `SELECT lcase(a)`},
		{"call untouched", `{call p(?)}`, `{call p(?)}`},
		{"return call untouched", `{?= call f(?)}`, `{?= call f(?)}`},
		{"unknown untouched", `SELECT {weird x}`, `SELECT {weird x}`},
		{"braces in string", `SELECT '{fn x()}'`, `SELECT '{fn x()}'`},
		{"braces in comment", `SELECT 1 -- {d '2024-01-01'}`, `SELECT 1 -- {d '2024-01-01'}`},
		{"unbalanced", `SELECT {fn x(`, `SELECT {fn x(`},
		{"no braces", `SELECT 1`, `SELECT 1`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := rewriteEscapes(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRewriteEscapes_Unterminated(t *testing.T) {
	_, err := rewriteEscapes(`SELECT {d '2024}`)
	require.ErrorIs(t, err, ErrTranslation)
}

package fsql

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var reDollarToken = regexp.MustCompile(`\$\d+`)

type baseEmb struct {
	Tenant int `db:"tenant"`
}

type argStruct struct {
	baseEmb
	Status string    `db:"status"`
	IDs    []int64   `db:"ids"`
	Since  time.Time `db:"since"`
	Skip   string    `db:"-"`
}

func TestRebind_NamedStruct_Postgres(t *testing.T) {
	a := argStruct{
		baseEmb: baseEmb{Tenant: 42},
		Status:  "active",
		IDs:     []int64{7, 8, 9},
		Since:   time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	in := `
SELECT id
FROM users
WHERE tenant=:tenant AND status=:status
  AND id IN (:ids) AND created_at >= :since
-- :in_comment
/* :in_block */
$tag$ :in_dollar $tag$
`
	out, args, err := Rebind(in, PlaceholderDollar, a)
	require.NoError(t, err)
	assert.Len(t, reDollarToken.FindAllString(out, -1), 6)
	assert.Equal(t, []any{42, "active", int64(7), int64(8), int64(9), a.Since}, args)
	assert.NotContains(t, out, ":tenant")
	assert.Contains(t, out, "-- :in_comment")
	assert.Contains(t, out, "$tag$ :in_dollar $tag$")
}

func TestRebind_NamedMap_SQLServer_EmptySliceToNULL(t *testing.T) {
	params := map[string]any{"status": "x", "ids": []int{}}
	out, args, err := Rebind(`SELECT 1 WHERE status=:status AND id IN (:ids)`, PlaceholderAtP, params)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1 WHERE status=@p1 AND id IN (NULL)", out)
	assert.Equal(t, []any{"x"}, args)
}

func TestRebind_NamedMap_BytesAndArray(t *testing.T) {
	blob := []byte("hi")
	params := map[string]any{"b": blob, "nums": [2]int{5, 6}}
	out, args, err := Rebind(`SELECT 1 WHERE b=:b AND n IN (:nums)`, PlaceholderDollar, params)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1 WHERE b=$1 AND n IN ($2,$3)", out)
	assert.Equal(t, []any{blob, 5, 6}, args)
}

func TestRebind_RepeatedNames_Numbering(t *testing.T) {
	type P struct {
		X   int   `db:"x"`
		Arr []int `db:"arr"`
	}
	out, args, err := Rebind(`WHERE a=:x OR b=:x OR c IN (:arr) OR d=:x`, PlaceholderDollar, P{X: 9, Arr: []int{1}})
	require.NoError(t, err)
	assert.Equal(t, "WHERE a=$1 OR b=$2 OR c IN ($3) OR d=$4", out)
	assert.Equal(t, []any{9, 9, 1, 9}, args)
}

func TestRebind_PositionalPassthrough_Oracle(t *testing.T) {
	out, args, err := Rebind(`SELECT * FROM t WHERE a=? AND b IN (?,?) -- ? in comment`, PlaceholderColonNum, "aa", 2, 3)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM t WHERE a=:1 AND b IN (:2,:3) -- ? in comment", out)
	assert.Equal(t, []any{"aa", 2, 3}, args)
}

func TestRebind_NoParams_QuestionUnchanged(t *testing.T) {
	in := "SELECT ? AS x, '--' AS y"
	out, args, err := Rebind(in, PlaceholderQuestion)
	require.NoError(t, err)
	assert.Equal(t, in, out)
	assert.Empty(t, args)
}

func TestRebind_SkipsStringsCommentsDollarQuoted(t *testing.T) {
	in := `SELECT '?', $$ ? $$, $z$ ? $z$, "?" -- ? line
/* ? block */ ? AS bind, $1 AS already`
	out, _, err := Rebind(in, PlaceholderDollar, 1)
	require.NoError(t, err)
	assert.Equal(t, `SELECT '?', $$ ? $$, $z$ ? $z$, "?" -- ? line
/* ? block */ $1 AS bind, $1 AS already`, out)
}

func TestRebind_PostgresCastIsNotAMarker(t *testing.T) {
	out, args, err := Rebind(`SELECT :v::text, x::int FROM t`, PlaceholderDollar, map[string]any{"v": "a"})
	require.NoError(t, err)
	assert.Equal(t, `SELECT $1::text, x::int FROM t`, out)
	assert.Equal(t, []any{"a"}, args)
}

func TestRebind_TimeIsPositional(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	out, args, err := Rebind(`SELECT * FROM t WHERE at > ?`, PlaceholderDollar, ts)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM t WHERE at > $1`, out)
	assert.Equal(t, []any{ts}, args)
}

func TestRebind_Errors(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		params []any
		kind   error
		param  string
	}{
		{"missing name", `SELECT :a, :b`, []any{map[string]any{"a": 1}}, ErrMissingParameter, "b"},
		{"mixed markers", `SELECT :a, ?`, []any{map[string]any{"a": 1}}, ErrTranslation, "a"},
		{"named with positional args", `SELECT :a`, []any{1, 2}, ErrTranslation, "a"},
		{"named without params", `SELECT 1 WHERE id = :id`, nil, ErrMissingParameter, "id"},
		{"unterminated quote", `SELECT 'abc`, nil, ErrTranslation, ""},
		{"unterminated comment", `SELECT /* x`, nil, ErrTranslation, ""},
		{"unterminated dollar", `SELECT $q$ x`, nil, ErrTranslation, ""},
		{"nil struct pointer", `SELECT :a`, []any{(*argStruct)(nil)}, ErrTranslation, "a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Rebind(tt.query, PlaceholderQuestion, tt.params...)
			require.ErrorIs(t, err, tt.kind)
			if tt.param != "" {
				var fe *Error
				require.ErrorAs(t, err, &fe)
				assert.Equal(t, tt.param, fe.Param)
			}
		})
	}
}

func TestTranslate(t *testing.T) {
	out, args, err := Translate(`UPDATE t SET a = :a WHERE id IN (:ids)`, map[string]any{"a": "x", "ids": []string{"p", "q"}})
	require.NoError(t, err)
	assert.Equal(t, `UPDATE t SET a = ? WHERE id IN (?,?)`, out)
	assert.Equal(t, []any{"x", "p", "q"}, args)

	_, _, err = Translate(`SELECT :a`, 5)
	require.ErrorIs(t, err, ErrTranslation)

	_, _, err = Translate(`SELECT :a`, nil)
	require.ErrorIs(t, err, ErrTranslation)
}

func TestTranslate_NoMarkers(t *testing.T) {
	out, args, err := Translate(`SELECT 1`, map[string]any{"unused": 1})
	require.NoError(t, err)
	assert.Equal(t, `SELECT 1`, out)
	assert.Empty(t, args)
}

func TestTranslate_CaseCollision(t *testing.T) {
	params := map[string]any{"name": "a", "Name": "b"}

	_, _, err := Translate(`SELECT :name, :Name`, params)
	require.ErrorIs(t, err, ErrDuplicateParameter)

	out, args, err := Translate(`SELECT :Name`, params)
	require.NoError(t, err)
	assert.Equal(t, `SELECT ?`, out)
	assert.Equal(t, []any{"b"}, args)

	_, _, err = Translate(`SELECT :name, :NAME`, params)
	require.ErrorIs(t, err, ErrMissingParameter)
}

func TestTranslate_DuplicateStructKeys(t *testing.T) {
	type Dup struct {
		A string `db:"x"`
		B string `db:"x"`
	}
	_, _, err := Translate(`SELECT :x`, Dup{})
	require.ErrorIs(t, err, ErrDuplicateParameter)
}

func TestTranslate_StructNames(t *testing.T) {
	type Inner struct {
		Zone string `db:"zone,omitempty"`
	}
	type P struct {
		*Inner
		Plain  int
		hidden int
	}
	p := P{Inner: &Inner{Zone: "eu"}, Plain: 3, hidden: 1}
	out, args, err := Translate(`SELECT :zone, :Plain`, p)
	require.NoError(t, err)
	assert.Equal(t, `SELECT ?, ?`, out)
	assert.Equal(t, []any{"eu", 3}, args)

	_, _, err = Translate(`SELECT :hidden`, p)
	require.ErrorIs(t, err, ErrMissingParameter)
}

func TestTranslate_TypedMap(t *testing.T) {
	out, args, err := Translate(`SELECT :a`, map[string]int{"a": 7})
	require.NoError(t, err)
	assert.Equal(t, `SELECT ?`, out)
	assert.Equal(t, []any{7}, args)
}

func TestPlaceholderFor(t *testing.T) {
	assert.Equal(t, PlaceholderDollar, PlaceholderFor("pgx"))
	assert.Equal(t, PlaceholderDollar, PlaceholderFor("Postgres"))
	assert.Equal(t, PlaceholderAtP, PlaceholderFor("sqlserver"))
	assert.Equal(t, PlaceholderColonNum, PlaceholderFor("godror"))
	assert.Equal(t, PlaceholderQuestion, PlaceholderFor("sqlite"))
}

func TestParsePlaceholder(t *testing.T) {
	for _, ph := range []Placeholder{PlaceholderQuestion, PlaceholderDollar, PlaceholderAtP, PlaceholderColonNum} {
		got, err := ParsePlaceholder(ph.String())
		require.NoError(t, err)
		assert.Equal(t, ph, got)
	}
	got, err := ParsePlaceholder("$")
	require.NoError(t, err)
	assert.Equal(t, PlaceholderDollar, got)

	_, err = ParsePlaceholder("percent")
	require.Error(t, err)
}

package fsql

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCallMatcher_Parse(t *testing.T) {
	tests := []struct {
		sql  string
		ok   bool
		want CallSpec
	}{
		{"{call p()}", true, CallSpec{Proc: "p"}},
		{"call p()", true, CallSpec{Proc: "p"}},
		{"{call p}", true, CallSpec{Proc: "p"}},
		{"call p", true, CallSpec{Proc: "p"}},
		{"{?=call p()}", true, CallSpec{Returns: true, Proc: "p"}},
		{"?=call p()", true, CallSpec{Returns: true, Proc: "p"}},
		{"{ ? = call p(?) }", true, CallSpec{Returns: true, Proc: "p", Args: 1}},
		{"{call p(?)}", true, CallSpec{Proc: "p", Args: 1}},
		{"{call p(?, ?,?)}", true, CallSpec{Proc: "p", Args: 3}},
		{"{call p(?,?)}", true, CallSpec{Proc: "p", Args: 2}},
		{"call p(?, ?, ?, ?)", true, CallSpec{Proc: "p", Args: 4}},
		{"{call p(?,?,?,?,?)}", true, CallSpec{Proc: "p", Args: 5}},
		{"call p(?,?,?,?,?)", true, CallSpec{Proc: "p", Args: 5}},
		{"{?=call p(?,?)}", true, CallSpec{Returns: true, Proc: "p", Args: 2}},
		{"?=call p(?,?,?)", true, CallSpec{Returns: true, Proc: "p", Args: 3}},
		{"{?=call p(?, ?, ?, ?)}", true, CallSpec{Returns: true, Proc: "p", Args: 4}},
		{"? = call p(?,?,?,?,?)", true, CallSpec{Returns: true, Proc: "p", Args: 5}},
		{"{call p(?,)}", false, CallSpec{}},
		{"call p(??)", false, CallSpec{}},
		{"CALL Pkg.Proc_1(?)", true, CallSpec{Proc: "Pkg.Proc_1", Args: 1}},
		{"  {call p()}  ", true, CallSpec{Proc: "p"}},
		{"{}", false, CallSpec{}},
		{"call ", false, CallSpec{}},
		{"{call}", false, CallSpec{}},
		{"{call p()", false, CallSpec{}},
		{"call p()}", false, CallSpec{}},
		{"call p(x)", false, CallSpec{}},
		{"callp()", false, CallSpec{}},
		{"SELECT p()", false, CallSpec{}},
		{"call 1p()", false, CallSpec{}},
	}
	m := NewCallMatcher()
	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			got, ok := m.Parse(tt.sql)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, m.Match(tt.sql))
		})
	}
}

func TestCallMatcher_ZeroValue(t *testing.T) {
	var m CallMatcher
	assert.True(t, m.Match("{call p}"))
}

func TestCallSpec_Render(t *testing.T) {
	tests := []struct {
		spec CallSpec
		ph   Placeholder
		want string
	}{
		{CallSpec{Proc: "p"}, PlaceholderQuestion, "CALL p()"},
		{CallSpec{Proc: "p", Args: 2}, PlaceholderQuestion, "CALL p(?,?)"},
		{CallSpec{Proc: "s.p", Args: 2}, PlaceholderDollar, "CALL s.p($1,$2)"},
		{CallSpec{Returns: true, Proc: "f", Args: 1}, PlaceholderAtP, "SELECT f(@p1)"},
		{CallSpec{Returns: true, Proc: "f", Args: 2}, PlaceholderColonNum, "SELECT f(:1,:2)"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.spec.Render(tt.ph))
		})
	}
}

func TestCallSpec_Params(t *testing.T) {
	assert.Equal(t, 2, CallSpec{Args: 2}.Params())
	assert.Equal(t, 3, CallSpec{Returns: true, Args: 2}.Params())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		sql  string
		want Kind
	}{
		{"SELECT 1", KindSelect},
		{"  select * from t", KindSelect},
		{"(SELECT 1) UNION (SELECT 2)", KindSelect},
		{"-- note\nWITH x AS (SELECT 1) SELECT * FROM x", KindSelect},
		{"/* hint */ VALUES (1)", KindSelect},
		{"PRAGMA table_info(t)", KindSelect},
		{"EXPLAIN SELECT 1", KindSelect},
		{"INSERT INTO t VALUES (1)", KindUpdate},
		{"update t set a = 1", KindUpdate},
		{"DELETE FROM t", KindUpdate},
		{"CREATE TABLE t (a int)", KindUpdate},
		{"", KindUpdate},
		{"{call p(?)}", KindCall},
		{"{?= call f()}", KindCall},
	}
	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.sql))
		})
	}
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "select", KindSelect.String())
	assert.Equal(t, "update", KindUpdate.String())
	assert.Equal(t, "call", KindCall.String())
}

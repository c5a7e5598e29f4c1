package fsql

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// Kind is the statement classification that picks an executor.
type Kind int

const (
	KindSelect Kind = iota
	KindUpdate
	KindCall
)

func (k Kind) String() string {
	switch k {
	case KindSelect:
		return "select"
	case KindCall:
		return "call"
	default:
		return "update"
	}
}

// callGrammar matches
//
//	['{'] ['?' '=' ] 'call' ident ['(' ['?' {',' '?'}] ')'] ['}']
//
// with optional whitespace between tokens. Brace balance is checked by the
// caller since RE2 has no backreferences.
var callGrammar = sync.OnceValue(func() *regexp.Regexp {
	return regexp.MustCompile(`^\s*(\{)?\s*(\?\s*=\s*)?(?i:call)\s+` +
		`([A-Za-z_][\w$]*(?:\.[A-Za-z_][\w$]*)*)\s*` +
		`(?:\(\s*(\?(?:\s*,\s*\?)*)?\s*\)\s*)?` +
		`(\})?\s*$`)
})

// CallSpec is a parsed stored procedure invocation.
type CallSpec struct {
	Returns bool   // "?=call" form: the procedure's return value is the first parameter
	Proc    string // possibly schema-qualified name
	Args    int    // number of ? markers inside the parentheses
}

// Params is the total number of bind slots, counting the return slot.
func (c CallSpec) Params() int {
	if c.Returns {
		return c.Args + 1
	}
	return c.Args
}

// Render produces driver text for the call. Procedures with a return value
// become a SELECT of the function, everything else a CALL statement.
func (c CallSpec) Render(ph Placeholder) string {
	var b strings.Builder
	if c.Returns {
		b.WriteString("SELECT ")
	} else {
		b.WriteString("CALL ")
	}
	b.WriteString(c.Proc)
	b.WriteByte('(')
	for i := 1; i <= c.Args; i++ {
		if i > 1 {
			b.WriteByte(',')
		}
		switch ph {
		case PlaceholderDollar:
			b.WriteString("$" + strconv.Itoa(i))
		case PlaceholderAtP:
			b.WriteString("@p" + strconv.Itoa(i))
		case PlaceholderColonNum:
			b.WriteString(":" + strconv.Itoa(i))
		default:
			b.WriteByte('?')
		}
	}
	b.WriteByte(')')
	return b.String()
}

// CallMatcher recognizes stored procedure call syntax. The zero value is
// ready to use and safe for concurrent use; the grammar is compiled once per
// process.
type CallMatcher struct{}

// NewCallMatcher returns a CallMatcher.
func NewCallMatcher() *CallMatcher { return &CallMatcher{} }

// Match reports whether sql is a stored procedure call.
func (m *CallMatcher) Match(sql string) bool {
	_, ok := m.Parse(sql)
	return ok
}

// Parse extracts the call shape from sql.
//
//	spec, ok := fsql.NewCallMatcher().Parse("{?= call pkg.total(?, ?)}")
//	// spec => {Returns: true, Proc: "pkg.total", Args: 2}
func (m *CallMatcher) Parse(sql string) (CallSpec, bool) {
	g := callGrammar().FindStringSubmatch(sql)
	if g == nil {
		return CallSpec{}, false
	}
	if (g[1] == "") != (g[5] == "") {
		return CallSpec{}, false
	}
	return CallSpec{
		Returns: g[2] != "",
		Proc:    g[3],
		Args:    strings.Count(g[4], "?"),
	}, true
}

var selectKeywords = map[string]bool{
	"select":   true,
	"with":     true,
	"values":   true,
	"show":     true,
	"explain":  true,
	"pragma":   true,
	"describe": true,
	"table":    true,
}

// Classify decides which executor a template belongs to. Call syntax is
// checked first; otherwise the leading keyword decides between a row
// producing statement and an update.
func Classify(sql string) Kind {
	var m CallMatcher
	if m.Match(sql) {
		return KindCall
	}
	if selectKeywords[strings.ToLower(leadingKeyword(sql))] {
		return KindSelect
	}
	return KindUpdate
}

// leadingKeyword skips whitespace, comments and opening parentheses and
// returns the first word.
func leadingKeyword(s string) string {
	i := 0
	for i < len(s) {
		switch c := s[i]; {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '(':
			i++
		case strings.HasPrefix(s[i:], "--"):
			i = skipLineComment(s, i+2)
		case strings.HasPrefix(s[i:], "/*"):
			j, err := skipBlockComment(s, i+2)
			if err != nil {
				return ""
			}
			i = j
		default:
			j := i
			for j < len(s) && isIdentByte(s[j]) {
				j++
			}
			return s[i:j]
		}
	}
	return ""
}

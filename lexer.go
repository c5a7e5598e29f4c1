package fsql

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// span is a byte range of a SQL template. Literal spans are quoted strings,
// quoted identifiers, comments and dollar-quoted blocks: markers inside them
// are never interpreted.
type span struct {
	start, end int
	literal    bool
}

// splitSQL cuts query into alternating code and literal spans.
func splitSQL(query string) ([]span, error) {
	var out []span
	codeStart := 0
	emit := func(start, end int) {
		if codeStart < start {
			out = append(out, span{start: codeStart, end: start})
		}
		out = append(out, span{start: start, end: end, literal: true})
		codeStart = end
	}

	i := 0
	for i < len(query) {
		c := query[i]
		var (
			j   int
			ok  = true
			err error
		)
		switch {
		case c == '\'' || c == '"' || c == '`':
			j, err = skipQuoted(query, i+1, c)
		case c == '-' && strings.HasPrefix(query[i:], "--"):
			j = skipLineComment(query, i+2)
		case c == '/' && strings.HasPrefix(query[i:], "/*"):
			j, err = skipBlockComment(query, i+2)
		case c == '$':
			j, ok, err = skipDollarQuoted(query, i)
		default:
			ok = false
		}
		if err != nil {
			return nil, &Error{Kind: ErrTranslation, Op: "scan", Err: err}
		}
		if !ok {
			i++
			continue
		}
		emit(i, j)
		i = j
	}
	if codeStart < len(query) {
		out = append(out, span{start: codeStart, end: len(query)})
	}
	return out, nil
}

// skipQuoted returns the index just past the closing quote q, treating a
// doubled quote as an escaped one.
func skipQuoted(s string, i int, q byte) (int, error) {
	for i < len(s) {
		if s[i] == q {
			if i+1 < len(s) && s[i+1] == q {
				i += 2
				continue
			}
			return i + 1, nil
		}
		i++
	}
	switch q {
	case '\'':
		return 0, fmt.Errorf("unterminated single-quoted string")
	case '"':
		return 0, fmt.Errorf("unterminated double-quoted identifier")
	default:
		return 0, fmt.Errorf("unterminated backtick-quoted identifier")
	}
}

func skipLineComment(s string, i int) int {
	if j := strings.IndexByte(s[i:], '\n'); j >= 0 {
		return i + j + 1
	}
	return len(s)
}

func skipBlockComment(s string, i int) (int, error) {
	if j := strings.Index(s[i:], "*/"); j >= 0 {
		return i + j + 2, nil
	}
	return 0, fmt.Errorf("unterminated block comment")
}

// skipDollarQuoted handles $$...$$ and $tag$...$tag$ (PostgreSQL). A '$' that
// does not open such a block (for example $1) is reported as not ok.
func skipDollarQuoted(s string, i int) (int, bool, error) {
	j := i + 1
	for j < len(s) && isIdentByte(s[j]) {
		j++
	}
	if j >= len(s) || s[j] != '$' {
		return 0, false, nil
	}
	if j > i+1 && s[i+1] >= '0' && s[i+1] <= '9' {
		return 0, false, nil
	}
	tag := s[i : j+1]
	k := strings.Index(s[j+1:], tag)
	if k < 0 {
		return 0, true, fmt.Errorf("unterminated dollar-quoted string")
	}
	return j + 1 + k + len(tag), true, nil
}

func isIdentByte(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

// parseIdent reads an identifier starting at i: a letter or underscore
// followed by letters, digits and underscores.
func parseIdent(s string, i int) (string, int) {
	start := i
	for i < len(s) {
		r, w := utf8.DecodeRuneInString(s[i:])
		if r == '_' || unicode.IsLetter(r) || (i > start && unicode.IsDigit(r)) {
			i += w
			continue
		}
		break
	}
	return s[start:i], i
}

package fsql

import (
	"strings"
)

// rewriteEscapes expands JDBC style escape clauses found outside literals:
//
//	{d '2024-01-31'}          → '2024-01-31'
//	{t '10:00:00'}            → '10:00:00'
//	{ts '2024-01-31 10:00'}   → '2024-01-31 10:00'
//	{fn ucase(name)}          → ucase(name)
//	{oj a LEFT JOIN b ON ..}  → a LEFT JOIN b ON ..
//	{escape '\'}              → ESCAPE '\'
//	{limit 10}                → LIMIT 10
//
// Anything else in braces, including call syntax, is left untouched.
func rewriteEscapes(query string) (string, error) {
	if strings.IndexByte(query, '{') < 0 {
		return query, nil
	}
	spans, err := splitSQL(query)
	if err != nil {
		return "", err
	}
	// Blank out literals so braces inside strings and comments are inert.
	mask := []byte(query)
	for _, sp := range spans {
		if !sp.literal {
			continue
		}
		for i := sp.start; i < sp.end; i++ {
			mask[i] = ' '
		}
	}
	return expandEscapes(query, string(mask), 0, len(query)), nil
}

func expandEscapes(query, mask string, from, to int) string {
	var b strings.Builder
	last := from
	for i := from; i < to; i++ {
		if mask[i] != '{' {
			continue
		}
		end := matchBrace(mask, i, to)
		if end < 0 {
			break
		}
		repl, ok := expandEscape(query, mask, i+1, end)
		if !ok {
			continue
		}
		b.WriteString(query[last:i])
		b.WriteString(repl)
		last = end + 1
		i = end
	}
	b.WriteString(query[last:to])
	return b.String()
}

// matchBrace returns the index of the '}' closing the '{' at open, or -1.
func matchBrace(mask string, open, to int) int {
	depth := 0
	for i := open; i < to; i++ {
		switch mask[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func expandEscape(query, mask string, start, end int) (string, bool) {
	i := start
	for i < end && isSpace(mask[i]) {
		i++
	}
	kwStart := i
	for i < end && isIdentByte(mask[i]) {
		i++
	}
	if i == kwStart || i == end || !isSpace(mask[i]) {
		return "", false
	}
	body := func() string {
		return strings.TrimSpace(expandEscapes(query, mask, i, end))
	}
	switch strings.ToLower(query[kwStart:i]) {
	case "d", "t", "ts":
		return strings.TrimSpace(query[i:end]), true
	case "fn", "oj":
		return body(), true
	case "escape":
		return "ESCAPE " + strings.TrimSpace(query[i:end]), true
	case "limit":
		return "LIMIT " + body(), true
	}
	return "", false
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

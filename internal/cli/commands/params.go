package commands

import (
	"fmt"
	"strconv"
	"strings"
)

// parseParams turns name=value pairs into a named parameter map. A value
// with commas becomes a list, so it can fill an IN (:name) clause.
func parseParams(pairs []string) (map[string]any, error) {
	params := make(map[string]any, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid parameter %q, want name=value", p)
		}
		if _, dup := params[name]; dup {
			return nil, fmt.Errorf("parameter %q given twice", name)
		}
		if strings.Contains(value, ",") {
			var list []any
			for v := range strings.SplitSeq(value, ",") {
				list = append(list, parseValue(strings.TrimSpace(v)))
			}
			params[name] = list
			continue
		}
		params[name] = parseValue(value)
	}
	return params, nil
}

// parseValue reads integers, floats, booleans and the word NULL; anything
// else stays a string.
func parseValue(s string) any {
	if strings.EqualFold(s, "null") {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil && (s == "true" || s == "false") {
		return b
	}
	return s
}

// parseArgs converts positional command line values.
func parseArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = parseValue(v)
	}
	return args
}

package fsql

import (
	"database/sql/driver"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Placeholder selects the positional parameter style for a target database.
//
// Common choices:
//   - PlaceholderQuestion   → "?"           (MySQL, SQLite, DuckDB)
//   - PlaceholderDollar     → "$1, $2, …"  (PostgreSQL)
//   - PlaceholderAtP        → "@p1, @p2…"  (SQL Server)
//   - PlaceholderColonNum   → ":1, :2, …"  (Oracle)
type Placeholder int

const (
	PlaceholderQuestion Placeholder = iota
	PlaceholderDollar
	PlaceholderAtP
	PlaceholderColonNum
)

func (p Placeholder) String() string {
	switch p {
	case PlaceholderDollar:
		return "dollar"
	case PlaceholderAtP:
		return "atp"
	case PlaceholderColonNum:
		return "colon"
	default:
		return "question"
	}
}

// ParsePlaceholder is the inverse of Placeholder.String. It also accepts the
// marker itself ("?", "$", "@p", ":").
func ParsePlaceholder(s string) (Placeholder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "question", "?":
		return PlaceholderQuestion, nil
	case "dollar", "$":
		return PlaceholderDollar, nil
	case "atp", "@p":
		return PlaceholderAtP, nil
	case "colon", ":":
		return PlaceholderColonNum, nil
	}
	return 0, fmt.Errorf("fsql: unknown placeholder style %q", s)
}

// PlaceholderFor picks a Placeholder based on a driver name string.
//
//	ph := fsql.PlaceholderFor("pgx")       // => PlaceholderDollar
//	ph := fsql.PlaceholderFor("sqlserver") // => PlaceholderAtP
//	ph := fsql.PlaceholderFor("sqlite")    // => PlaceholderQuestion
func PlaceholderFor(driverName string) Placeholder {
	switch strings.ToLower(driverName) {
	case "pgx", "postgres", "postgresql", "lib/pq", "pg":
		return PlaceholderDollar
	case "sqlserver", "mssql":
		return PlaceholderAtP
	case "godror", "oracle", "goracle":
		return PlaceholderColonNum
	default:
		return PlaceholderQuestion
	}
}

// Rebind resolves :named parameters (if applicable) and rewrites placeholders.
//
// Named style takes exactly one map[string]any (or other string-keyed map)
// or struct:
//
//	q, args, err := fsql.Rebind(
//	    `SELECT * FROM users WHERE status=:status AND id IN (:ids)`,
//	    fsql.PlaceholderDollar,
//	    map[string]any{"status": "active", "ids": []int{1, 2, 3}},
//	)
//	// q    => SELECT * FROM users WHERE status=$1 AND id IN ($2,$3,$4)
//	// args => ["active", 1, 2, 3]
//
// Slices and arrays expand; []byte is scalar; an empty slice renders NULL.
// Any other params shape is positional passthrough and only placeholder
// rewriting is applied. Names are case sensitive.
func Rebind(query string, ph Placeholder, params ...any) (string, []any, error) {
	spans, err := splitSQL(query)
	if err != nil {
		return "", nil, err
	}
	var args []any
	if len(params) == 1 && looksBindable(params[0]) {
		query, args, err = bindNamed(query, spans, params[0])
		if err != nil {
			return "", nil, err
		}
		if spans, err = splitSQL(query); err != nil {
			return "", nil, err
		}
	} else {
		if err := checkPositional(query, spans, len(params)); err != nil {
			return "", nil, err
		}
		args = params
	}
	return rewritePlaceholders(query, spans, ph), args, nil
}

// Translate rewrites every :name marker of query into positional ? markers
// and returns the values in placeholder order. params must be a string-keyed
// map or a struct.
func Translate(query string, params any) (string, []any, error) {
	if !looksBindable(params) {
		return "", nil, &Error{Kind: ErrTranslation, Op: "translate",
			Err: fmt.Errorf("params must be a string-keyed map or struct, got %T", params)}
	}
	spans, err := splitSQL(query)
	if err != nil {
		return "", nil, err
	}
	return bindNamed(query, spans, params)
}

type nameToken struct {
	name       string
	start, end int
}

// scanMarkers lists the :name markers and counts the ? markers found in
// code spans.
func scanMarkers(query string, spans []span) ([]nameToken, int) {
	var (
		toks       []nameToken
		positional int
	)
	for _, sp := range spans {
		if sp.literal {
			continue
		}
		for i := sp.start; i < sp.end; i++ {
			switch query[i] {
			case '?':
				positional++
			case ':':
				if i+1 < sp.end && query[i+1] == ':' {
					i++ // PG cast
					continue
				}
				name, end := parseIdent(query[:sp.end], i+1)
				if name != "" {
					toks = append(toks, nameToken{name: name, start: i, end: end})
					i = end - 1
				}
			}
		}
	}
	return toks, positional
}

func checkPositional(query string, spans []span, nargs int) error {
	toks, positional := scanMarkers(query, spans)
	if len(toks) == 0 {
		return nil
	}
	if positional > 0 {
		return &Error{Kind: ErrTranslation, Op: "translate", Param: toks[0].name,
			Err: fmt.Errorf("template mixes ? and :name markers")}
	}
	if nargs > 0 {
		return &Error{Kind: ErrTranslation, Op: "translate", Param: toks[0].name,
			Err: fmt.Errorf("named markers need a map or struct, got %d positional args", nargs)}
	}
	return &Error{Kind: ErrMissingParameter, Op: "translate", Param: toks[0].name,
		Err: fmt.Errorf("no binding for :%s", toks[0].name)}
}

func bindNamed(query string, spans []span, params any) (string, []any, error) {
	if params == nil {
		return "", nil, &Error{Kind: ErrTranslation, Op: "translate", Err: fmt.Errorf("nil params")}
	}
	toks, positional := scanMarkers(query, spans)
	if len(toks) == 0 {
		return query, nil, nil
	}
	if positional > 0 {
		return "", nil, &Error{Kind: ErrTranslation, Op: "translate", Param: toks[0].name,
			Err: fmt.Errorf("template mixes ? and :name markers")}
	}

	lut, err := buildParamLookup(params)
	if err != nil {
		return "", nil, err
	}
	if err := checkCaseCollisions(toks, lut); err != nil {
		return "", nil, err
	}

	var b strings.Builder
	b.Grow(len(query))
	args := make([]any, 0, len(toks))
	last := 0
	for _, t := range toks {
		b.WriteString(query[last:t.start])
		val, ok := lut[t.name]
		if !ok {
			return "", nil, &Error{Kind: ErrMissingParameter, Op: "translate", Param: t.name}
		}
		if rv := reflect.ValueOf(val); isSliceOrArray(rv) {
			n := rv.Len()
			if n == 0 {
				b.WriteString("NULL")
			}
			for i := 0; i < n; i++ {
				if i > 0 {
					b.WriteByte(',')
				}
				b.WriteByte('?')
				args = append(args, rv.Index(i).Interface())
			}
		} else {
			b.WriteByte('?')
			args = append(args, val)
		}
		last = t.end
	}
	b.WriteString(query[last:])
	return b.String(), args, nil
}

// checkCaseCollisions rejects templates that reference two names equal
// under case folding (":id" and ":ID") while both are bound. Referencing
// only one spelling is fine, lookups are exact.
func checkCaseCollisions(toks []nameToken, lut map[string]any) error {
	first := make(map[string]string, len(toks))
	for _, t := range toks {
		folded := strings.ToLower(t.name)
		prev, seen := first[folded]
		if !seen {
			first[folded] = t.name
			continue
		}
		if prev == t.name {
			continue
		}
		_, a := lut[prev]
		_, b := lut[t.name]
		if a && b {
			return &Error{Kind: ErrDuplicateParameter, Op: "translate", Param: t.name,
				Err: fmt.Errorf("collides with :%s", prev)}
		}
	}
	return nil
}

// rebindPositional rewrites the ? markers of an already translated query.
func rebindPositional(query string, ph Placeholder) (string, error) {
	if ph == PlaceholderQuestion {
		return query, nil
	}
	spans, err := splitSQL(query)
	if err != nil {
		return "", err
	}
	return rewritePlaceholders(query, spans, ph), nil
}

func rewritePlaceholders(query string, spans []span, ph Placeholder) string {
	if ph == PlaceholderQuestion {
		return query
	}
	out := make([]byte, 0, len(query)+16)
	arg := 1
	for _, sp := range spans {
		if sp.literal {
			out = append(out, query[sp.start:sp.end]...)
			continue
		}
		for i := sp.start; i < sp.end; i++ {
			c := query[i]
			if c != '?' {
				out = append(out, c)
				continue
			}
			switch ph {
			case PlaceholderDollar:
				out = append(out, '$')
			case PlaceholderAtP:
				out = append(out, '@', 'p')
			case PlaceholderColonNum:
				out = append(out, ':')
			}
			out = strconv.AppendInt(out, int64(arg), 10)
			arg++
		}
	}
	return string(out)
}

var (
	timeType   = reflect.TypeOf(time.Time{})
	valuerType = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
)

// looksBindable reports whether v is a named-parameter source: a struct or a
// string-keyed map. Values the driver binds directly (time.Time, Valuers)
// are not.
func looksBindable(v any) bool {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Type().Implements(valuerType) {
		return false
	}
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		return rv.Type().Key().Kind() == reflect.String
	case reflect.Struct:
		return rv.Type() != timeType && !reflect.PointerTo(rv.Type()).Implements(valuerType)
	}
	return false
}

func buildParamLookup(params any) (map[string]any, error) {
	if m, ok := params.(map[string]any); ok {
		return m, nil
	}
	rv := reflect.ValueOf(params)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, &Error{Kind: ErrTranslation, Op: "translate", Err: fmt.Errorf("nil params")}
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return m, nil
	case reflect.Struct:
		m := make(map[string]any)
		if err := addStructFields(m, rv); err != nil {
			return nil, err
		}
		return m, nil
	}
	return nil, &Error{Kind: ErrTranslation, Op: "translate",
		Err: fmt.Errorf("params must be a string-keyed map or struct, got %T", params)}
}

func addStructFields(dst map[string]any, v reflect.Value) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" && !f.Anonymous {
			continue
		}
		tag := f.Tag.Get("db")
		if tag == "-" {
			continue
		}

		// Embedded structs flatten; nil embedded pointers contribute nothing.
		if f.Anonymous && tag == "" {
			fv := v.Field(i)
			for fv.Kind() == reflect.Pointer && !fv.IsNil() {
				fv = fv.Elem()
			}
			if fv.Kind() == reflect.Struct {
				if err := addStructFields(dst, fv); err != nil {
					return err
				}
				continue
			}
			if fv.Kind() == reflect.Pointer {
				continue
			}
		}
		if f.PkgPath != "" {
			continue
		}

		name, _, _ := parseTag(tag)
		if name == "" {
			name = f.Name
		}
		if _, exists := dst[name]; exists {
			return &Error{Kind: ErrDuplicateParameter, Op: "translate", Param: name,
				Err: fmt.Errorf("declared by more than one struct field")}
		}
		dst[name] = v.Field(i).Interface()
	}
	return nil
}

func isSliceOrArray(v reflect.Value) bool {
	if !v.IsValid() {
		return false
	}
	switch v.Kind() {
	case reflect.Slice:
		return v.Type().Elem().Kind() != reflect.Uint8 // []byte → scalar
	case reflect.Array:
		return v.Type().Elem().Kind() != reflect.Uint8
	default:
		return false
	}
}

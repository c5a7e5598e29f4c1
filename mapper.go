package fsql

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// RowMapper turns the current row into a value.
type RowMapper[T any] func(*Row) (T, error)

// Into returns a RowMapper that scans a row into T.
//
// T may be a struct, a primitive, or any type implementing sql.Scanner.
// Struct fields bind by `db:"name"` first, otherwise by case-insensitive
// field name; `db:"-"` skips a field and `db:",inline"` (or plain
// embedding) flattens a nested struct. Extra columns are ignored, missing
// columns leave zero values. Non-struct targets need exactly one column.
//
//	type User struct {
//	    ID    int64  `db:"id"`
//	    Email string `db:"email"`
//	}
//	users, err := fsql.Collect(ctx, db.Select(`SELECT id, email FROM users`), fsql.Into[User]())
func Into[T any]() RowMapper[T] {
	return func(r *Row) (T, error) {
		var out T
		if err := r.live("map"); err != nil {
			return out, err
		}
		dests, err := planFor(reflect.TypeOf(&out).Elem(), r.Columns()).dests(reflect.ValueOf(&out).Elem())
		if err != nil {
			return out, err
		}
		if err := r.rs.cur.Scan(dests...); err != nil {
			return out, newError(ErrBind, "map", err)
		}
		return out, nil
	}
}

type planKey struct {
	rt   reflect.Type
	cols string
}

// plan says, per column, which field path receives the value. A nil path
// drops the column; whole means T itself is the destination.
type plan struct {
	paths [][]int
	whole bool
	err   error
}

var (
	plans       sync.Map // planKey -> *plan
	structIndex sync.Map // reflect.Type -> map[string][]int
	scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
)

func planFor(rt reflect.Type, cols []string) *plan {
	key := planKey{rt: rt, cols: strings.Join(cols, "\x00")}
	if p, ok := plans.Load(key); ok {
		return p.(*plan)
	}
	p := buildPlan(rt, cols)
	plans.Store(key, p)
	return p
}

func buildPlan(rt reflect.Type, cols []string) *plan {
	if !mapsByField(rt) {
		if len(cols) != 1 {
			return &plan{err: &Error{Kind: ErrBind, Op: "map",
				Err: fmt.Errorf("cannot map %d columns into %s; use a struct", len(cols), rt)}}
		}
		return &plan{whole: true}
	}
	idx := fieldsOf(rt)
	p := &plan{paths: make([][]int, len(cols))}
	for i, c := range cols {
		p.paths[i] = idx[normalizeColumn(c)]
	}
	return p
}

// mapsByField reports whether rows scan field by field into rt rather than
// into rt as a whole.
func mapsByField(rt reflect.Type) bool {
	return rt.Kind() == reflect.Struct && rt != timeType && !reflect.PointerTo(rt).Implements(scannerType)
}

func (p *plan) dests(root reflect.Value) ([]any, error) {
	if p.err != nil {
		return nil, p.err
	}
	if p.whole {
		return []any{root.Addr().Interface()}, nil
	}
	dests := make([]any, len(p.paths))
	for i, path := range p.paths {
		if path == nil {
			dests[i] = new(any)
			continue
		}
		dests[i] = fieldAt(root, path).Addr().Interface()
	}
	return dests, nil
}

// fieldAt walks path, allocating nil embedded pointers on the way.
func fieldAt(v reflect.Value, path []int) reflect.Value {
	for _, i := range path {
		if v.Kind() == reflect.Pointer {
			if v.IsNil() {
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(i)
	}
	return v
}

// fieldsOf indexes the bindable fields of a struct by lower-case name. On a
// name clash the field declared first wins.
func fieldsOf(rt reflect.Type) map[string][]int {
	if idx, ok := structIndex.Load(rt); ok {
		return idx.(map[string][]int)
	}
	idx := make(map[string][]int)
	var walk func(t reflect.Type, base []int)
	walk = func(t reflect.Type, base []int) {
		for t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			if sf.PkgPath != "" && !sf.Anonymous {
				continue
			}
			tag := sf.Tag.Get("db")
			name, inline, omit := parseTag(tag)
			if omit {
				continue
			}
			path := append(append([]int(nil), base...), i)
			ft := sf.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if (inline || (sf.Anonymous && tag == "")) && mapsByField(ft) {
				if sf.PkgPath != "" && sf.Type.Kind() == reflect.Pointer {
					continue // cannot be allocated through reflection
				}
				walk(ft, path)
				continue
			}
			if sf.PkgPath != "" {
				continue
			}
			if name == "" {
				name = sf.Name
			}
			if _, taken := idx[strings.ToLower(name)]; !taken {
				idx[strings.ToLower(name)] = path
			}
		}
	}
	walk(rt, nil)
	structIndex.Store(rt, idx)
	return idx
}

// parseTag splits a db tag: "-", "col", ",inline", "col,inline".
func parseTag(tag string) (name string, inline, omit bool) {
	if tag == "-" {
		return "", false, true
	}
	for part := range strings.SplitSeq(tag, ",") {
		switch {
		case part == "inline":
			inline = true
		case part != "" && name == "":
			name = part
		}
	}
	return name, inline, false
}

// normalizeColumn strips identifier quoting and lower-cases.
func normalizeColumn(s string) string {
	if l := len(s); l >= 2 {
		switch {
		case s[0] == '"' && s[l-1] == '"', s[0] == '`' && s[l-1] == '`', s[0] == '[' && s[l-1] == ']':
			s = s[1 : l-1]
		}
	}
	return strings.ToLower(s)
}

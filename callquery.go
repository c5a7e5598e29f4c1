package fsql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/go-mizu/fsql/try"
)

// Direction is the mode of a stored procedure parameter.
type Direction int

const (
	DirIn Direction = iota
	DirOut
	DirInOut
)

func (d Direction) String() string {
	switch d {
	case DirOut:
		return "OUT"
	case DirInOut:
		return "INOUT"
	default:
		return "IN"
	}
}

// SQLType declares the Go type an OUT parameter is read into.
type SQLType int

const (
	TypeAny SQLType = iota
	TypeInt64
	TypeFloat64
	TypeString
	TypeBool
	TypeTime
	TypeBytes
)

// alloc returns a destination pointer for the type, holding v when set.
func (t SQLType) alloc(v any) (any, error) {
	var dest reflect.Value
	switch t {
	case TypeInt64:
		dest = reflect.New(reflect.TypeFor[int64]())
	case TypeFloat64:
		dest = reflect.New(reflect.TypeFor[float64]())
	case TypeString:
		dest = reflect.New(reflect.TypeFor[string]())
	case TypeBool:
		dest = reflect.New(reflect.TypeFor[bool]())
	case TypeTime:
		dest = reflect.New(timeType)
	case TypeBytes:
		dest = reflect.New(reflect.TypeFor[[]byte]())
	default:
		dest = reflect.New(reflect.TypeFor[any]())
	}
	if v == nil {
		return dest.Interface(), nil
	}
	in := reflect.ValueOf(v)
	if t != TypeAny && !in.Type().ConvertibleTo(dest.Elem().Type()) {
		return nil, fmt.Errorf("cannot hold %T in a %s parameter", v, dest.Elem().Type())
	}
	if t == TypeAny {
		dest.Elem().Set(in)
	} else {
		dest.Elem().Set(in.Convert(dest.Elem().Type()))
	}
	return dest.Interface(), nil
}

// Param is one stored procedure parameter in declaration order.
type Param struct {
	Dir   Direction
	Value any     // input value for IN and INOUT
	Type  SQLType // OUT and INOUT destination type
}

// In declares an input parameter.
func In(v any) Param { return Param{Dir: DirIn, Value: v} }

// Out declares an output parameter read back as t.
func Out(t SQLType) Param { return Param{Dir: DirOut, Type: t} }

// InOut declares a parameter that sends v and reads back a t.
func InOut(v any, t SQLType) Param { return Param{Dir: DirInOut, Value: v, Type: t} }

// CallQuery invokes a stored procedure written in call syntax:
//
//	{call proc(?, ?)}   call proc   {?= call func(?)}
//
// The markers are positional; each is matched by a Param.
type CallQuery struct {
	query[*CallQuery]
	params []Param
}

// Call prepares a stored procedure invocation.
func (db *DB) Call(text string, params ...Param) *CallQuery {
	q := &CallQuery{params: params}
	q.init(q, db, text, nil, nil)
	return q
}

// Outs holds the parameter values after an invocation, indexed from 1 in
// declaration order. IN parameters read as the value sent.
type Outs struct {
	vals []any
}

// Len returns the number of parameters.
func (o Outs) Len() int { return len(o.vals) }

// Get returns parameter i, or nil when i is out of range.
func (o Outs) Get(i int) any {
	if i < 1 || i > len(o.vals) {
		return nil
	}
	return o.vals[i-1]
}

// Int64 returns parameter i as an int64.
func (o Outs) Int64(i int) (int64, error) { return outAs[int64](o, i) }

// Float64 returns parameter i as a float64.
func (o Outs) Float64(i int) (float64, error) { return outAs[float64](o, i) }

// String returns parameter i as a string.
func (o Outs) String(i int) (string, error) { return outAs[string](o, i) }

func outAs[T any](o Outs, i int) (T, error) {
	var v sql.Null[T]
	if i < 1 || i > len(o.vals) {
		return v.V, &Error{Kind: ErrBind, Op: "out", Slot: i, Err: fmt.Errorf("no parameter %d", i)}
	}
	if err := v.Scan(o.vals[i-1]); err != nil {
		return v.V, &Error{Kind: ErrBind, Op: "out", Slot: i, Err: err}
	}
	return v.V, nil
}

// compile renders the call and builds driver arguments with a destination
// per OUT slot. For the ?= form the first param receives the return value
// and is not sent.
func (q *CallQuery) compile() (statement, []any, error) {
	var m CallMatcher
	if !m.Match(q.text) {
		return statement{}, nil, &Error{Kind: ErrTranslation, Op: "call",
			Err: fmt.Errorf("not a procedure call: %q", q.text)}
	}
	st, err := q.render(nil)
	if err != nil {
		return st, nil, err
	}
	if n := st.call.Params(); n != len(q.params) {
		return st, nil, &Error{Kind: ErrBind, Op: "call",
			Err: fmt.Errorf("%s declares %d parameters, got %d", st.call.Proc, n, len(q.params))}
	}
	dests, args, err := callArgs(st.call, q.params)
	if err != nil {
		return st, nil, err
	}
	st.args = args
	return st, dests, nil
}

func callArgs(spec *CallSpec, params []Param) (dests, args []any, err error) {
	if spec.Returns && len(params) > 0 && params[0].Dir == DirIn {
		return nil, nil, &Error{Kind: ErrBind, Op: "call", Slot: 1,
			Err: errors.New("the return value parameter must be OUT")}
	}
	dests = make([]any, len(params))
	for i, p := range params {
		slot := i + 1
		if p.Dir == DirIn {
			v, err := bindValue(p.Value)
			if err != nil {
				return nil, nil, &Error{Kind: ErrBind, Op: "call", Slot: slot, Err: err}
			}
			args = append(args, v)
			continue
		}
		dest, err := p.Type.alloc(p.Value)
		if err != nil {
			return nil, nil, &Error{Kind: ErrBind, Op: "call", Slot: slot, Err: err}
		}
		dests[i] = dest
		if spec.Returns && i == 0 {
			continue
		}
		args = append(args, sql.Out{Dest: dest, In: p.Dir == DirInOut})
	}
	return dests, args, nil
}

func (q *CallQuery) outs(dests []any) Outs {
	vals := make([]any, len(q.params))
	for i, p := range q.params {
		if dests[i] == nil {
			vals[i] = p.Value
			continue
		}
		vals[i] = reflect.ValueOf(dests[i]).Elem().Interface()
	}
	return Outs{vals: vals}
}

// Invoke runs a call that produces no result sets and maps its OUT values.
// A ?= call reads the return value from the single row the driver produces.
//
//	total := fsql.Invoke(ctx, db.Call(`{?= call order_total(?)}`, fsql.Out(fsql.TypeFloat64), fsql.In(42)),
//	    func(o fsql.Outs) (float64, error) { return o.Float64(1) })
func Invoke[T any](ctx context.Context, q *CallQuery, mapper func(Outs) (T, error)) try.Try[T] {
	return try.Of(func() (T, error) {
		var zero T
		outs, err := q.invoke(ctx)
		if err != nil {
			return zero, err
		}
		return mapper(outs)
	})
}

func (q *CallQuery) invoke(ctx context.Context) (outs Outs, err error) {
	if err := q.begin("invoke"); err != nil {
		return outs, err
	}
	st, dests, err := q.compile()
	if err != nil {
		return outs, err
	}
	ctx, cancel := q.withTimeout(ctx)
	defer cancel()
	stmt, release, err := q.prepare(ctx, st, nil)
	if err != nil {
		return outs, err
	}
	defer func() {
		if cerr := release(); cerr != nil && err == nil {
			q.warn(st, "fsql: closing statement", slog.Any("error", cerr))
		}
	}()

	started := time.Now()
	if st.call.Returns {
		err = stmt.QueryRowContext(ctx, st.args...).Scan(dests[0])
	} else {
		_, err = stmt.ExecContext(ctx, st.args...)
	}
	if err != nil {
		return outs, q.fail(ctx, "call", err)
	}
	q.trace(st, KindCall, started)
	return q.outs(dests), nil
}

// ResultSets runs a call that produces result sets and returns them in
// declaration order. OUT parameters are not available on this path.
func (q *CallQuery) ResultSets(ctx context.Context) (*ResultSets, error) {
	if err := q.begin("result sets"); err != nil {
		return nil, err
	}
	st, _, err := q.compile()
	if err != nil {
		return nil, err
	}
	ctx, cancel := q.withTimeout(ctx)
	stmt, release, err := q.prepare(ctx, st, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	started := time.Now()
	cur, err := stmt.QueryContext(ctx, st.args...)
	if err != nil {
		_ = release()
		cancel()
		return nil, q.fail(ctx, "call", err)
	}
	return &ResultSets{
		ctx:  ctx,
		cur:  cur,
		fail: q.fail,
		release: func() error {
			err := errors.Join(cur.Close(), release())
			cancel()
			q.trace(st, KindCall, started)
			return err
		},
	}, nil
}

// ResultSets walks the result sets of one call. Each set is a Rows sharing
// the call's cursor: moving to the next set finishes the previous one.
type ResultSets struct {
	ctx     context.Context
	cur     *sql.Rows
	fail    func(ctx context.Context, op string, err error) error
	release func() error
	current *Rows
	started bool
	err     error
	closed  bool
}

// Next returns the next result set, or false when there are no more.
func (s *ResultSets) Next() (*Rows, bool) {
	if s.closed {
		return nil, false
	}
	if s.started {
		if s.current != nil {
			_ = s.current.Close()
		}
		if !s.cur.NextResultSet() {
			if err := s.cur.Err(); err != nil {
				s.err = s.fail(s.ctx, "next result set", err)
			}
			_ = s.Close()
			return nil, false
		}
	}
	s.started = true
	cur := s.cur
	s.current = &Rows{
		ctx:    s.ctx,
		shared: true,
		fail:   s.fail,
		open:   func(context.Context) (*sql.Rows, error) { return cur, nil },
	}
	return s.current, true
}

// Err returns the error that ended the walk, if any.
func (s *ResultSets) Err() error { return s.err }

// Close releases the cursor and the statement. It is idempotent.
func (s *ResultSets) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.current != nil {
		_ = s.current.Close()
	}
	if err := s.release(); err != nil {
		return newError(ErrExecution, "close", err)
	}
	return nil
}

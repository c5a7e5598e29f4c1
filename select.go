package fsql

import (
	"context"
	"database/sql"
	"iter"
	"log/slog"
	"time"
)

// SelectQuery is a row producing statement. Create it with DB.Select or
// DB.SelectNamed, configure it with the chained setters, then run it once
// with Execute or one of the terminal helpers (Single, Collect, Each).
type SelectQuery struct {
	query[*SelectQuery]
}

// Select prepares a query with positional ? arguments.
func (db *DB) Select(text string, args ...any) *SelectQuery {
	q := &SelectQuery{}
	q.init(q, db, text, args, nil)
	return q
}

// SelectNamed prepares a query with :name markers bound from params, a
// string-keyed map or a struct.
//
//	rows, err := db.SelectNamed(
//	    `SELECT * FROM users WHERE id IN (:ids) OR name = :name`,
//	    map[string]any{"ids": []int{1, 2}, "name": "ann"},
//	).Execute(ctx)
func (db *DB) SelectNamed(text string, params any) *SelectQuery {
	q := &SelectQuery{}
	if params == nil {
		params = map[string]any{}
	}
	q.init(q, db, text, nil, params)
	return q
}

// Execute translates and prepares the statement, then returns the rows
// without sending the query: that happens on the first Rows.Next. Template
// and preparation errors are returned here with nothing left open.
func (q *SelectQuery) Execute(ctx context.Context) (*Rows, error) {
	if err := q.begin("execute"); err != nil {
		return nil, err
	}
	st, err := q.render(q.args)
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
	rows := &Rows{
		ctx:  ctx,
		fail: q.fail,
		warn: func(msg string, attrs ...any) { q.warn(st, msg, attrs...) },
	}
	rows.open = func(ctx context.Context) (*sql.Rows, error) {
		return stmt.QueryContext(ctx, st.args...)
	}
	rows.release = []func() error{
		release,
		func() error {
			cancel()
			q.trace(st, KindSelect, started, slog.Int("rows", rows.n))
			return nil
		},
	}
	return rows, nil
}

// Single runs q and maps at most one row. The bool is false when the query
// produced no rows; rows after the first are not read.
func Single[T any](ctx context.Context, q *SelectQuery, m RowMapper[T]) (out T, ok bool, err error) {
	rows, err := q.Execute(ctx)
	if err != nil {
		return out, false, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if !rows.Next() {
		return out, false, rows.Err()
	}
	out, err = m(rows.Row())
	if err != nil {
		return out, false, err
	}
	return out, true, nil
}

// Collect runs q and maps every row, failing on the first mapping error.
func Collect[T any](ctx context.Context, q *SelectQuery, m RowMapper[T]) (out []T, err error) {
	rows, err := q.Execute(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	for rows.Next() {
		v, err := m(rows.Row())
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Each runs q and calls fn for every row, stopping at the first error.
func Each(ctx context.Context, q *SelectQuery, fn func(*Row) error) (err error) {
	rows, err := q.Execute(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	for rows.Next() {
		if err := fn(rows.Row()); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Step is the outcome of mapping one row in Stream: a value to emit, a row
// to skip, or a failure that ends the stream.
type Step[T any] struct {
	v    T
	err  error
	skip bool
}

func Emit[T any](v T) Step[T] { return Step[T]{v: v} }
func Skip[T any]() Step[T] { return Step[T]{skip: true} }
func Fail[T any](err error) Step[T] { return Step[T]{err: err} }

// Stream maps rows lazily. fn decides per row: Emit yields a value, Skip
// drops the row and continues, Fail yields the error and stops. Cursor
// errors are yielded the same way. The rows are closed when the stream
// ends or the consumer stops early.
//
//	for v, err := range fsql.Stream(rows, func(r *fsql.Row) fsql.Step[int64] {
//	    n, err := r.Int64(1)
//	    if err != nil {
//	        return fsql.Skip[int64]() // tolerate bad rows
//	    }
//	    return fsql.Emit(n)
//	}) {
//	    ...
//	}
func Stream[T any](rows *Rows, fn func(*Row) Step[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		defer rows.Close()
		var zero T
		for rows.Next() {
			s := fn(rows.Row())
			switch {
			case s.err != nil:
				yield(zero, s.err)
				return
			case s.skip:
				continue
			}
			if !yield(s.v, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(zero, err)
		}
	}
}

package fsql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"
)

// Rows is a lazy, single pass sequence over a result cursor. The cursor is
// opened by the first call to Next; once Next reports false the sequence is
// finished for good and every resource behind it has been released. Close
// releases early and may be called any number of times.
//
//	rows, err := db.Select(`SELECT id, name FROM users WHERE id > ?`, 10).Execute(ctx)
//	if err != nil {
//	    return err
//	}
//	defer rows.Close()
//	for rows.Next() {
//	    row := rows.Row()
//	    id, _ := row.Int64(1)
//	    name, _ := row.StringByName("name")
//	}
//	return rows.Err()
type Rows struct {
	ctx     context.Context
	open    func(ctx context.Context) (*sql.Rows, error)
	fail    func(ctx context.Context, op string, err error) error
	warn    func(msg string, attrs ...any)
	release []func() error
	shared  bool // cursor belongs to a ResultSets

	cur    *sql.Rows
	cols   []string
	row    *Row
	gen    uint64
	n      int
	err    error
	done   bool
	closed bool
}

// Next advances to the next row. It returns false when the rows are
// exhausted or an error occurred; check Err afterwards.
func (r *Rows) Next() bool {
	if r.done {
		return false
	}
	if err := r.ensureOpen(); err != nil {
		r.err = err
		r.finish()
		return false
	}
	r.gen++
	if !r.cur.Next() {
		if err := r.cur.Err(); err != nil {
			r.err = r.fail(r.ctx, "next", err)
		}
		r.finish()
		return false
	}
	r.n++
	r.row = &Row{rs: r, gen: r.gen}
	return true
}

// Row returns the current row. It is nil before the first successful Next.
func (r *Rows) Row() *Row { return r.row }

// Err returns the error, if any, that ended the iteration.
func (r *Rows) Err() error { return r.err }

// Count returns how many rows Next has produced so far.
func (r *Rows) Count() int { return r.n }

// Columns returns the column names. It opens the cursor if needed.
func (r *Rows) Columns() ([]string, error) {
	if r.cols != nil {
		return r.cols, nil
	}
	if r.done {
		return nil, newError(ErrQueryClosed, "columns", r.err)
	}
	if err := r.ensureOpen(); err != nil {
		r.err = err
		r.finish()
		return nil, err
	}
	return r.cols, nil
}

// All adapts the rows to a range loop. The rows are closed when the loop
// ends, including on break. An iteration error is yielded last with a nil
// row.
func (r *Rows) All() iter.Seq2[*Row, error] {
	return func(yield func(*Row, error) bool) {
		defer r.Close()
		for r.Next() {
			if !yield(r.row, nil) {
				return
			}
		}
		if r.err != nil {
			yield(nil, r.err)
		}
	}
}

// Close releases the cursor, the statement unless it is cached, and the
// timeout context. It is idempotent.
func (r *Rows) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.done = true
	r.gen++
	var errs []error
	if r.cur != nil && !r.shared {
		errs = append(errs, r.cur.Close())
	}
	for _, rel := range r.release {
		errs = append(errs, rel())
	}
	if err := errors.Join(errs...); err != nil {
		return newError(ErrExecution, "close", err)
	}
	return nil
}

func (r *Rows) ensureOpen() error {
	if r.cur != nil {
		return nil
	}
	cur, err := r.open(r.ctx)
	if err != nil {
		return r.fail(r.ctx, "query", err)
	}
	cols, err := cur.Columns()
	if err != nil {
		_ = cur.Close()
		return r.fail(r.ctx, "columns", err)
	}
	r.cur, r.cols = cur, cols
	return nil
}

// finish ends the sequence. A close failure after a clean iteration is only
// worth a warning; the rows were delivered.
func (r *Rows) finish() {
	if err := r.Close(); err != nil {
		if r.err == nil && r.warn != nil {
			r.warn("fsql: releasing rows", "error", err)
		}
	}
}

func (r *Rows) columnIndex(name string) (int, error) {
	for i, c := range r.cols {
		if c == name {
			return i + 1, nil
		}
	}
	for i, c := range r.cols {
		if strings.EqualFold(c, name) {
			return i + 1, nil
		}
	}
	return 0, &Error{Kind: ErrExecution, Op: "column", Err: fmt.Errorf("no column named %q", name)}
}

// Row reads the current row of a Rows. It is valid until the sequence
// advances or closes; after that every read fails with ErrStaleRow. Columns
// are numbered from 1. NULL reads as the zero value; use Value or Scan with
// sql.Null types to tell NULL apart.
type Row struct {
	rs  *Rows
	gen uint64
}

func (r *Row) live(op string) error {
	if r.rs.done || r.rs.gen != r.gen {
		return newError(ErrStaleRow, op, nil)
	}
	return nil
}

// Columns returns the column names of the row.
func (r *Row) Columns() []string { return r.rs.cols }

// Scan copies the row's columns into dest, as sql.Rows.Scan does.
func (r *Row) Scan(dest ...any) error {
	if err := r.live("scan"); err != nil {
		return err
	}
	if err := r.rs.cur.Scan(dest...); err != nil {
		return newError(ErrBind, "scan", err)
	}
	return nil
}

func (r *Row) scanColumn(op string, i int, dest any) error {
	if err := r.live(op); err != nil {
		return err
	}
	n := len(r.rs.cols)
	if i < 1 || i > n {
		return &Error{Kind: ErrExecution, Op: op, Err: fmt.Errorf("column %d out of range [1,%d]", i, n)}
	}
	dests := make([]any, n)
	for j := range dests {
		if j == i-1 {
			dests[j] = dest
		} else {
			dests[j] = new(any)
		}
	}
	if err := r.rs.cur.Scan(dests...); err != nil {
		return &Error{Kind: ErrBind, Op: op, Param: r.rs.cols[i-1], Err: err}
	}
	return nil
}

func readColumn[T any](r *Row, op string, i int) (T, error) {
	var v sql.Null[T]
	if err := r.scanColumn(op, i, &v); err != nil {
		return v.V, err
	}
	return v.V, nil
}

func readNamed[T any](r *Row, op, name string) (T, error) {
	if err := r.live(op); err != nil {
		var zero T
		return zero, err
	}
	i, err := r.rs.columnIndex(name)
	if err != nil {
		var zero T
		return zero, err
	}
	return readColumn[T](r, op, i)
}

// Value returns column i as the driver produced it; NULL is nil.
func (r *Row) Value(i int) (any, error) {
	var v any
	err := r.scanColumn("value", i, &v)
	return v, err
}

func (r *Row) Int64(i int) (int64, error) { return readColumn[int64](r, "int64", i) }
func (r *Row) Float64(i int) (float64, error) { return readColumn[float64](r, "float64", i) }
func (r *Row) String(i int) (string, error) { return readColumn[string](r, "string", i) }
func (r *Row) Bool(i int) (bool, error) { return readColumn[bool](r, "bool", i) }
func (r *Row) Time(i int) (time.Time, error) { return readColumn[time.Time](r, "time", i) }
func (r *Row) Bytes(i int) ([]byte, error) { return readColumn[[]byte](r, "bytes", i) }
func (r *Row) ValueByName(name string) (any, error) { return readNamed[any](r, "value", name) }
func (r *Row) Int64ByName(name string) (int64, error) {
	return readNamed[int64](r, "int64", name)
}
func (r *Row) Float64ByName(name string) (float64, error) {
	return readNamed[float64](r, "float64", name)
}
func (r *Row) StringByName(name string) (string, error) {
	return readNamed[string](r, "string", name)
}
func (r *Row) BoolByName(name string) (bool, error) { return readNamed[bool](r, "bool", name) }
func (r *Row) TimeByName(name string) (time.Time, error) {
	return readNamed[time.Time](r, "time", name)
}
func (r *Row) BytesByName(name string) ([]byte, error) {
	return readNamed[[]byte](r, "bytes", name)
}

// A Row is read only. The cursor moving and mutating operations below exist
// so callers porting scrollable-cursor code get an explicit error instead of
// silently diverging state.

func (r *Row) Next() error { return newError(ErrUnsupportedOperation, "next", nil) }
func (r *Row) Previous() error { return newError(ErrUnsupportedOperation, "previous", nil) }
func (r *Row) Absolute(int) error { return newError(ErrUnsupportedOperation, "absolute", nil) }
func (r *Row) Relative(int) error { return newError(ErrUnsupportedOperation, "relative", nil) }
func (r *Row) BeforeFirst() error { return newError(ErrUnsupportedOperation, "before first", nil) }
func (r *Row) AfterLast() error { return newError(ErrUnsupportedOperation, "after last", nil) }
func (r *Row) Update(int, any) error { return newError(ErrUnsupportedOperation, "update", nil) }

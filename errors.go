package fsql

import (
	"context"
	"errors"
	"strconv"
	"strings"
)

// Error kinds. Every failure returned by fsql matches exactly one of these
// with errors.Is; the driver error that caused it stays reachable through
// errors.Unwrap and errors.As.
var (
	// ErrTranslation reports a malformed template: unterminated quotes or
	// comments, mixed ? and :name markers, or an unsupported params shape.
	ErrTranslation = errors.New("fsql: translation failed")

	// ErrMissingParameter is returned when a :name marker has no binding.
	ErrMissingParameter = errors.New("fsql: missing parameter")

	// ErrDuplicateParameter is returned when two bindings for one template
	// collide: two referenced names that differ only in case, or two struct
	// fields resolving to the same name.
	ErrDuplicateParameter = errors.New("fsql: duplicate parameter")

	// ErrBind reports a value that cannot be bound to its slot, including
	// slot count mismatches rejected by the driver.
	ErrBind = errors.New("fsql: bind failed")

	// ErrExecution wraps a driver failure during prepare or execute.
	ErrExecution = errors.New("fsql: execution failed")

	// ErrTimeout is returned when the configured statement timeout elapses.
	ErrTimeout = errors.New("fsql: statement timeout")

	// ErrUnsupportedOperation is returned by every cursor-moving or mutating
	// method of a Row.
	ErrUnsupportedOperation = errors.New("fsql: unsupported operation on read-only row")

	// ErrTransaction reports a transaction that was rolled back.
	ErrTransaction = errors.New("fsql: transaction rolled back")
)

// Lifecycle and accounting errors.
var (
	// ErrQueryClosed is returned by a terminal operation on a query object
	// that has already been executed.
	ErrQueryClosed = errors.New("fsql: query already executed")

	// ErrStaleRow is returned when a Row is read after its sequence moved on.
	ErrStaleRow = errors.New("fsql: row is no longer current")

	// ErrCountOverflow is returned when an affected-row total exceeds the
	// 32-bit range and the query was not configured with Large(true).
	ErrCountOverflow = errors.New("fsql: affected row count overflows 32 bits")

	// ErrBatchUnsupported is returned by a BatchFunc that cannot serve the
	// connection it was handed; the executor then runs sets one by one.
	ErrBatchUnsupported = errors.New("fsql: driver batch not supported")
)

// Error carries the kind of a failure together with the operation and the
// parameter or slot involved.
type Error struct {
	Kind  error  // one of the Err* kinds above
	Op    string // "translate", "bind", "prepare", "query", "exec", "commit", ...
	Param string // named parameter, when relevant
	Slot  int    // 1-based bind slot, when relevant
	Err   error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Op != "" {
		b.WriteString(" (")
		b.WriteString(e.Op)
		b.WriteByte(')')
	}
	if e.Param != "" {
		b.WriteString(": :")
		b.WriteString(e.Param)
	}
	if e.Slot > 0 {
		b.WriteString(": slot ")
		b.WriteString(strconv.Itoa(e.Slot))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the error kind, so errors.Is(err, ErrBind) works on any *Error
// of that kind regardless of its cause.
func (e *Error) Is(target error) bool { return e.Kind == target }

func newError(kind error, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// classify maps a driver error from prepare/query/exec onto an fsql kind.
// database/sql reports argument conversion and count problems with fixed
// message prefixes, which become ErrBind.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(ErrTimeout, op, err)
	}
	msg := err.Error()
	if strings.HasPrefix(msg, "sql: expected ") || strings.HasPrefix(msg, "sql: converting argument") {
		return newError(ErrBind, op, err)
	}
	return newError(ErrExecution, op, err)
}

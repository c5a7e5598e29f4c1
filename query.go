package fsql

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// query holds what every query object shares: the template, its bindings,
// the settings and the executed-once flag. Q is the embedding type so the
// chained setters return it.
type query[Q any] struct {
	self   Q
	db     *DB
	text   string
	args   []any
	params any // named bindings, nil in positional mode
	set    Settings
	done   bool
}

func (q *query[Q]) init(self Q, db *DB, text string, args []any, params any) {
	q.self = self
	q.db = db
	q.text = text
	q.args = args
	q.params = params
	q.set = db.defaults
}

// Timeout bounds preparation and execution. Zero disables it.
func (q *query[Q]) Timeout(d time.Duration) Q {
	q.set.Timeout = d
	return q.self
}

// Poolable keeps the prepared statement in the DB's statement cache.
func (q *query[Q]) Poolable(on bool) Q {
	q.set.Poolable = on
	return q.self
}

// Escaped toggles escape clause expansion ({d ..}, {fn ..}, ...).
func (q *query[Q]) Escaped(on bool) Q {
	q.set.Escaped = on
	return q.self
}

// SuppressWarnings silences warn level logging for this query.
func (q *query[Q]) SuppressWarnings(on bool) Q {
	q.set.SuppressWarnings = on
	return q.self
}

// Settings returns the effective settings.
func (q *query[Q]) Settings() Settings { return q.set }

// begin marks the query executed. Terminal operations call it first.
func (q *query[Q]) begin(op string) error {
	if q.done {
		return newError(ErrQueryClosed, op, nil)
	}
	q.done = true
	return nil
}

// statement is a template rendered for the driver.
type statement struct {
	id   string
	text string
	args []any
	call *CallSpec
}

// render turns a template plus bindings into driver text. Nothing is
// prepared here, so a failure leaves nothing open.
func (q *query[Q]) render(args []any) (statement, error) {
	st := statement{id: uuid.NewString()}
	text := q.text
	var err error
	if q.set.Escaped {
		if text, err = rewriteEscapes(text); err != nil {
			return st, err
		}
	}

	if q.params != nil {
		text, args, err = Translate(text, q.params)
		if err != nil {
			return st, err
		}
	} else {
		spans, err := splitSQL(text)
		if err != nil {
			return st, err
		}
		if err := checkPositional(text, spans, len(args)); err != nil {
			return st, err
		}
	}

	var m CallMatcher
	if spec, ok := m.Parse(text); ok {
		st.call = &spec
		st.text = spec.Render(q.db.ph)
	} else if st.text, err = rebindPositional(text, q.db.ph); err != nil {
		return st, err
	}

	if st.args, err = Bind(args...); err != nil {
		return st, err
	}
	return st, nil
}

// withTimeout derives the execution context.
func (q *query[Q]) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if q.set.Timeout > 0 {
		return context.WithTimeout(ctx, q.set.Timeout)
	}
	return context.WithCancel(ctx)
}

// fail classifies err, turning an expired statement timeout into ErrTimeout
// whatever the driver reported.
func (q *query[Q]) fail(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if q.set.Timeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		var fe *Error
		if !errors.As(err, &fe) || fe.Kind != ErrTimeout {
			return newError(ErrTimeout, op, err)
		}
	}
	return classify(op, err)
}

func (q *query[Q]) warn(st statement, msg string, attrs ...any) {
	if q.set.SuppressWarnings {
		return
	}
	q.db.log.Warn(msg, append([]any{slog.String("query_id", st.id)}, attrs...)...)
}

func (q *query[Q]) trace(st statement, kind Kind, started time.Time, attrs ...any) {
	q.db.log.Debug("fsql: executed",
		append([]any{
			slog.String("query_id", st.id),
			slog.String("kind", kind.String()),
			slog.String("sql", st.text),
			slog.Duration("duration", time.Since(started)),
		}, attrs...)...)
}

// prepare returns a statement for st and the func that releases it. The
// statement is bound to tx, or to the DB's own transaction when tx is nil.
// Poolable statements come from the DB cache and are only closed on release
// once evicted. A transaction uses the cache only when the statement is
// already there: preparing on the pool would need a second connection.
func (q *query[Q]) prepare(ctx context.Context, st statement, tx *sql.Tx) (*sql.Stmt, func() error, error) {
	db := q.db
	if tx == nil {
		tx = db.tx
	}
	if q.set.Poolable && db.stmts != nil {
		if tx == nil {
			stmt, release, err := db.stmts.acquire(ctx, db.sql, st.text)
			if err != nil {
				return nil, nil, q.fail(ctx, "prepare", err)
			}
			return stmt, release, nil
		}
		if stmt, release, ok := db.stmts.acquireCached(st.text); ok {
			ts := tx.StmtContext(ctx, stmt)
			return ts, func() error { return errors.Join(ts.Close(), release()) }, nil
		}
	}

	var (
		stmt *sql.Stmt
		err  error
	)
	if tx != nil {
		stmt, err = tx.PrepareContext(ctx, st.text)
	} else {
		stmt, err = db.sql.PrepareContext(ctx, st.text)
	}
	if err != nil {
		return nil, nil, q.fail(ctx, "prepare", err)
	}
	return stmt, stmt.Close, nil
}

package fsql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"math"
	"time"
)

// UpdateQuery is a statement that changes rows: INSERT, UPDATE, DELETE, DDL,
// or any other statement without a result set. It runs once, for one
// parameter set or for a batch of them.
type UpdateQuery struct {
	query[*UpdateQuery]
	sets [][]any // batch parameter sets; nil means the single set in args
}

// Keys yields the generated key of every executed parameter set. It stops
// producing once the reducer handed to ExecuteKeys has returned.
type Keys = iter.Seq2[int64, error]

// Update prepares a statement with positional ? arguments.
func (db *DB) Update(text string, args ...any) *UpdateQuery {
	q := &UpdateQuery{}
	q.init(q, db, text, args, nil)
	return q
}

// UpdateNamed prepares a statement with :name markers bound from params.
func (db *DB) UpdateNamed(text string, params any) *UpdateQuery {
	q := &UpdateQuery{}
	if params == nil {
		params = map[string]any{}
	}
	q.init(q, db, text, nil, params)
	return q
}

// UpdateBatch prepares a statement executed once per parameter set. More
// than one set always runs inside a single transaction: either every set is
// applied or none is.
//
//	n, err := db.UpdateBatch(`INSERT INTO t (id, name) VALUES (?, ?)`, [][]any{
//	    {1, "a"},
//	    {2, "b"},
//	}).Batch(true).Execute(ctx)
func (db *DB) UpdateBatch(text string, sets [][]any) *UpdateQuery {
	q := &UpdateQuery{}
	if sets == nil {
		sets = [][]any{}
	}
	q.init(q, db, text, nil, nil)
	q.sets = sets
	return q
}

// Large allows affected row totals beyond 32 bits. Without it such a total
// fails with ErrCountOverflow.
func (q *UpdateQuery) Large(on bool) *UpdateQuery {
	q.set.Large = on
	return q
}

// Batch sends all parameter sets in one round trip when the driver has a
// batch capability. Otherwise the sets run one after the other.
func (q *UpdateQuery) Batch(on bool) *UpdateQuery {
	q.set.Batch = on
	return q
}

// Execute runs the statement and returns the total affected row count.
func (q *UpdateQuery) Execute(ctx context.Context) (int64, error) {
	return q.run(ctx, nil)
}

// ExecuteKeys runs the statement like Execute and hands the generated keys
// to reduce. Keys come from the driver's LastInsertId, one per executed
// set; drivers without it yield none and log a warning.
func (q *UpdateQuery) ExecuteKeys(ctx context.Context, reduce func(Keys) error) (int64, error) {
	if reduce == nil {
		return 0, newError(ErrExecution, "keys", errors.New("nil reducer"))
	}
	return q.run(ctx, reduce)
}

// outcome is what executing the parameter sets produced. results is nil
// when a driver batch ran the sets.
type outcome struct {
	counts  []int64
	results []sql.Result
}

func (q *UpdateQuery) run(ctx context.Context, reduce func(Keys) error) (int64, error) {
	if err := q.begin("execute"); err != nil {
		return 0, err
	}
	sets := q.sets
	if sets == nil {
		sets = [][]any{q.args}
	}
	var first []any
	if len(sets) > 0 {
		first = sets[0]
	}
	st, err := q.render(first)
	if err != nil {
		return 0, err
	}
	if len(sets) == 0 {
		return 0, nil
	}
	bound := make([][]any, len(sets))
	bound[0] = st.args
	for i := 1; i < len(sets); i++ {
		if bound[i], err = Bind(sets[i]...); err != nil {
			return 0, fmt.Errorf("set %d: %w", i+1, err)
		}
	}

	ctx, cancel := q.withTimeout(ctx)
	defer cancel()
	started := time.Now()

	var out outcome
	if len(bound) == 1 {
		out, err = q.execSets(ctx, st, bound, nil)
	} else {
		out, err = q.execBatch(ctx, st, bound)
	}
	if err != nil {
		return 0, err
	}
	total, err := q.total(out.counts)
	q.trace(st, KindUpdate, started, slog.Int64("rows", total), slog.Int("sets", len(bound)))
	if err != nil {
		return total, err
	}

	if reduce != nil {
		keys, done := q.keys(st, out)
		err := reduce(keys)
		done()
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// execBatch runs several sets in one transaction, rolling everything back
// when any set fails. Inside InTx the enclosing transaction owns commit and
// rollback.
func (q *UpdateQuery) execBatch(ctx context.Context, st statement, sets [][]any) (outcome, error) {
	if q.db.tx != nil {
		return q.execSets(ctx, st, sets, nil)
	}
	conn, err := q.db.sql.Conn(ctx)
	if err != nil {
		return outcome{}, q.fail(ctx, "conn", err)
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return outcome{}, q.fail(ctx, "begin", err)
	}
	out, err := q.execInTx(ctx, conn, tx, st, sets)
	if err == nil {
		// Refuse to commit a total the caller cannot receive.
		_, err = q.total(out.counts)
	}
	if err != nil {
		rbErr := tx.Rollback()
		if rbErr != nil {
			rbErr = fmt.Errorf("rollback: %w", rbErr)
		}
		return outcome{}, &Error{Kind: ErrTransaction, Op: "batch", Err: errors.Join(err, rbErr)}
	}
	if err := tx.Commit(); err != nil {
		return outcome{}, &Error{Kind: ErrTransaction, Op: "commit", Err: q.fail(ctx, "commit", err)}
	}
	return out, nil
}

func (q *UpdateQuery) execInTx(ctx context.Context, conn *sql.Conn, tx *sql.Tx, st statement, sets [][]any) (outcome, error) {
	if q.set.Batch && q.db.batch != nil {
		counts, err := q.db.batch(ctx, conn, st.text, sets)
		if err == nil {
			return outcome{counts: counts}, nil
		}
		if !errors.Is(err, ErrBatchUnsupported) {
			return outcome{}, q.fail(ctx, "batch", err)
		}
		q.warn(st, "fsql: driver batch unavailable, running sets one by one")
	}
	return q.execSets(ctx, st, sets, tx)
}

// execSets runs every set through one prepared statement.
func (q *UpdateQuery) execSets(ctx context.Context, st statement, sets [][]any, tx *sql.Tx) (out outcome, err error) {
	stmt, release, err := q.prepare(ctx, st, tx)
	if err != nil {
		return out, err
	}
	defer func() {
		if cerr := release(); cerr != nil {
			if err == nil {
				q.warn(st, "fsql: closing statement", slog.Any("error", cerr))
			}
		}
	}()
	for i, args := range sets {
		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			err = q.fail(ctx, "exec", err)
			if len(sets) > 1 {
				err = fmt.Errorf("set %d: %w", i+1, err)
			}
			return outcome{}, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			q.warn(st, "fsql: affected row count unavailable", slog.Any("error", err))
			n = 0
		}
		out.counts = append(out.counts, n)
		out.results = append(out.results, res)
	}
	return out, nil
}

// total sums the per-set counts in 64 bits.
func (q *UpdateQuery) total(counts []int64) (int64, error) {
	var n int64
	for _, c := range counts {
		n += c
	}
	if !q.set.Large && n > math.MaxInt32 {
		return n, &Error{Kind: ErrCountOverflow, Op: "count",
			Err: fmt.Errorf("%d rows affected, enable Large to receive it", n)}
	}
	return n, nil
}

// keys exposes the generated keys lazily. The returned func closes the
// sequence; iterating afterwards yields nothing.
func (q *UpdateQuery) keys(st statement, out outcome) (Keys, func()) {
	closed := false
	seq := func(yield func(int64, error) bool) {
		if closed {
			return
		}
		if out.results == nil {
			q.warn(st, "fsql: generated keys are not reported by driver batches")
			return
		}
		for _, res := range out.results {
			if closed {
				return
			}
			id, err := res.LastInsertId()
			if err != nil {
				q.warn(st, "fsql: generated keys unavailable", slog.Any("error", err))
				return
			}
			if !yield(id, nil) {
				return
			}
		}
	}
	return seq, func() { closed = true }
}

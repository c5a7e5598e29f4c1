/*
Package fsql is a functional-style layer over database/sql. Queries are
built as values, configured with chained setters, and run exactly once by a
terminal operation that owns every resource it opens.

# Overview

A DB wraps a *sql.DB together with the placeholder style of its driver. From
it come three kinds of query objects:

  - SelectQuery for statements that return rows (Select, SelectNamed).
  - UpdateQuery for statements that change rows, alone or as a batch
    (Update, UpdateNamed, UpdateBatch).
  - CallQuery for stored procedures written in call syntax (Call).

Templates use either positional ? markers or :name markers bound from a map
or a struct. Named markers are rewritten to the driver's placeholder style;
a list value expands to one placeholder per element, an empty list to NULL.
Markers inside quotes, quoted identifiers and comments are left alone, and
:: casts are not markers.

# Rows

Execute on a SelectQuery returns Rows, a lazy single pass sequence: nothing
touches the database until the first Next, and the cursor, the statement
and the timeout context are released as soon as the rows are exhausted or
Close is called. A Row is only valid while it is current; reading it after
the sequence moved on fails with ErrStaleRow. Single, Collect, Each and
Stream cover the common shapes and release everything before they return.

# Mapping rules

  - Fields bind by `db:"name"` first; otherwise by normalized field name.
  - Nested structs can be flattened with `db:",inline"`.
  - If a destination type (or field) implements sql.Scanner, its Scan method receives the driver value.
  - Primitives (bool, numbers, string, []byte, time.Time) map from a single column.
  - Extra columns are ignored; missing columns yield zero values.

Plans for a (Type, ColumnSet) pair are built once and cached in a sync.Map.

# Batches and transactions

An UpdateQuery with more than one parameter set runs inside one transaction:
either every set is applied or none is. Drivers with a native batch (see
Driver.Batch) send all sets in one round trip when Batch(true) is set. InTx
binds a DB to a transaction so that every query built from it joins.

# Error handling

Every failure matches one error kind with errors.Is (ErrTranslation,
ErrMissingParameter, ErrDuplicateParameter, ErrBind, ErrExecution,
ErrTimeout, ErrUnsupportedOperation, ErrTransaction). The driver error that
caused it remains reachable through errors.As. Stored procedure results come
back as a try.Try, so mapping and recovery compose without intermediate
error checks.

# Drivers

Driver packages under drivers/ register themselves by name; import one for
its side effect and call Open:

	import _ "github.com/go-mizu/fsql/drivers/postgres"

	db, err := fsql.Open(ctx, "postgres", dsn)
*/
package fsql

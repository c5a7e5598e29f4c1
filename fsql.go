package fsql

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"
)

// Settings are the per-statement execution toggles. A DB carries defaults
// that every new query object starts from; chained setters override them.
type Settings struct {
	Large            bool          // report counts above 32 bits instead of failing
	Batch            bool          // send parameter sets in one round trip when the driver can
	Poolable         bool          // keep the prepared statement in the DB's cache
	Escaped          bool          // expand {d ..}, {fn ..} and similar escapes
	Timeout          time.Duration // 0 means no timeout
	SuppressWarnings bool          // do not log non-fatal conditions
}

// DefaultSettings returns the settings a DB starts with.
func DefaultSettings() Settings {
	return Settings{Escaped: true}
}

// Provider returns a live connection pool or fails.
type Provider func(ctx context.Context) (*sql.DB, error)

// DB runs query objects against a *sql.DB, or against one transaction when
// obtained through InTx. It is safe for concurrent use; the query objects it
// creates are not.
type DB struct {
	sql         *sql.DB
	tx          *sql.Tx
	ph          Placeholder
	batch       BatchFunc
	log         *slog.Logger
	stmts       *stmtCache
	cacheSize   int
	defaults    Settings
	parallelism int
}

// Option configures a DB.
type Option func(*DB)

// WithLogger sets the logger. Executions are logged at debug level and
// warnings at warn level. A nil logger discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(db *DB) {
		if l == nil {
			l = slog.New(slog.DiscardHandler)
		}
		db.log = l
	}
}

// WithPlaceholder sets the placeholder style of the final driver text.
func WithPlaceholder(ph Placeholder) Option {
	return func(db *DB) { db.ph = ph }
}

// WithBatch installs a native batch capability.
func WithBatch(fn BatchFunc) Option {
	return func(db *DB) { db.batch = fn }
}

// WithDriver applies a registered driver's placeholder style and batch
// capability.
func WithDriver(d Driver) Option {
	return func(db *DB) {
		db.ph = d.Placeholder
		db.batch = d.Batch
	}
}

// WithStatementCache enables caching of poolable statements, holding at
// most size of them. Without it Poolable is only a hint.
func WithStatementCache(size int) Option {
	return func(db *DB) {
		if size <= 0 {
			size = DefaultStatementCacheSize
		}
		db.cacheSize = size
	}
}

// WithDefaults replaces the settings new query objects start from.
func WithDefaults(s Settings) Option {
	return func(db *DB) { db.defaults = s }
}

// WithParallelism bounds DB.Parallel. Zero or less means unbounded.
func WithParallelism(n int) Option {
	return func(db *DB) { db.parallelism = n }
}

// New wraps an open pool.
func New(pool *sql.DB, opts ...Option) (*DB, error) {
	db := &DB{
		sql:      pool,
		log:      slog.New(slog.DiscardHandler),
		defaults: DefaultSettings(),
	}
	for _, opt := range opts {
		opt(db)
	}
	if db.cacheSize > 0 {
		c, err := newStmtCache(db.cacheSize, db.log)
		if err != nil {
			return nil, err
		}
		db.stmts = c
	}
	return db, nil
}

// Connect obtains a pool from p, checks it with a ping and wraps it.
func Connect(ctx context.Context, p Provider, opts ...Option) (*DB, error) {
	pool, err := p(ctx)
	if err != nil {
		return nil, newError(ErrExecution, "connect", err)
	}
	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, newError(ErrExecution, "ping", err)
	}
	db, err := New(pool, opts...)
	if err != nil {
		_ = pool.Close()
		return nil, err
	}
	return db, nil
}

// SQL returns the underlying pool.
func (db *DB) SQL() *sql.DB { return db.sql }

// Placeholder returns the placeholder style of the final driver text.
func (db *DB) Placeholder() Placeholder { return db.ph }

// Defaults returns the settings new query objects start from.
func (db *DB) Defaults() Settings { return db.defaults }

// Close releases cached statements and closes the pool. Calling Close on a
// DB handed to an InTx callback is an error.
func (db *DB) Close() error {
	if db.tx != nil {
		return newError(ErrUnsupportedOperation, "close", errors.New("DB is bound to a transaction"))
	}
	if db.stmts != nil {
		db.stmts.close()
	}
	return db.sql.Close()
}

package fsql

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultStatementCacheSize is used when WithStatementCache gets a size <= 0.
const DefaultStatementCacheSize = 128

// stmtCache keeps poolable statements prepared on the pool, keyed by the
// final driver text. Every user of a cached statement holds a reference;
// an evicted statement is closed once the last reference is released.
type stmtCache struct {
	mu  sync.Mutex // guards lru and every entry's refs and evicted
	lru *lru.Cache[string, *cachedStmt]
	log *slog.Logger
}

type cachedStmt struct {
	query   string
	stmt    *sql.Stmt
	refs    int
	evicted bool
}

func newStmtCache(size int, log *slog.Logger) (*stmtCache, error) {
	if size <= 0 {
		size = DefaultStatementCacheSize
	}
	c := &stmtCache{log: log}
	cache, err := lru.NewWithEvict(size, c.evict)
	if err != nil {
		return nil, err
	}
	c.lru = cache
	return c, nil
}

// evict runs inside lru calls, with c.mu already held by the caller.
func (c *stmtCache) evict(_ string, e *cachedStmt) {
	e.evicted = true
	if e.refs == 0 {
		c.closeStmt(e.query, e.stmt)
	}
}

func (c *stmtCache) closeStmt(query string, stmt *sql.Stmt) {
	if err := stmt.Close(); err != nil {
		c.log.Warn("fsql: closing cached statement", slog.String("query", query), slog.Any("error", err))
	}
}

// acquire returns the cached statement for query, preparing it on db when
// missing, together with the func that drops the reference.
func (c *stmtCache) acquire(ctx context.Context, db *sql.DB, query string) (*sql.Stmt, func() error, error) {
	if stmt, release, ok := c.acquireCached(query); ok {
		return stmt, release, nil
	}
	stmt, err := db.PrepareContext(ctx, query)
	if err != nil {
		return nil, nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Another goroutine may have prepared the same text meanwhile.
	if e, ok := c.lru.Get(query); ok {
		c.closeStmt(query, stmt)
		e.refs++
		return e.stmt, c.releaser(e), nil
	}
	e := &cachedStmt{query: query, stmt: stmt, refs: 1}
	c.lru.Add(query, e)
	return stmt, c.releaser(e), nil
}

// acquireCached is acquire without preparing. Transactions use it: their
// connection is taken, so preparing on the pool could wait forever.
func (c *stmtCache) acquireCached(query string) (*sql.Stmt, func() error, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.lru.Get(query)
	if !ok {
		return nil, nil, false
	}
	e.refs++
	return e.stmt, c.releaser(e), true
}

func (c *stmtCache) releaser(e *cachedStmt) func() error {
	var once sync.Once
	return func() (err error) {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			e.refs--
			if e.evicted && e.refs == 0 {
				err = e.stmt.Close()
			}
		})
		return err
	}
}

func (c *stmtCache) len() int { return c.lru.Len() }

// close evicts everything. Statements still in use close on their last
// release.
func (c *stmtCache) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

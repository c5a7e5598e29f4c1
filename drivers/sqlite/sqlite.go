// Package sqlite registers the pure Go SQLite driver (modernc.org/sqlite)
// with fsql under the name "sqlite".
//
//	import _ "github.com/go-mizu/fsql/drivers/sqlite"
//
//	db, err := fsql.Open(ctx, "sqlite", "file:app.db")
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-mizu/fsql"
	_ "modernc.org/sqlite" // sqlite driver
)

// Name is the registry name.
const Name = "sqlite"

// DefaultBusyTimeout is added to DSNs that do not set one, in milliseconds.
const DefaultBusyTimeout = 5000

func init() {
	fsql.Register(fsql.Driver{
		Name:        Name,
		Placeholder: fsql.PlaceholderQuestion,
		Open:        Open,
	})
}

// Open opens a SQLite database. In-memory databases are limited to one
// connection, since each connection would otherwise see its own database.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", NormalizeDSN(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if isMemory(dsn) {
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// NormalizeDSN adds a busy timeout pragma unless the DSN sets one.
func NormalizeDSN(dsn string) string {
	if dsn == "" {
		dsn = ":memory:"
	}
	if strings.Contains(dsn, "busy_timeout") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout(%d)", dsn, sep, DefaultBusyTimeout)
}

func isMemory(dsn string) bool {
	return dsn == "" || strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// Package duckdb registers DuckDB through marcboeker/go-duckdb with fsql
// under the name "duckdb". An empty DSN opens an in-memory database.
//
//	import _ "github.com/go-mizu/fsql/drivers/duckdb"
package duckdb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-mizu/fsql"
	"github.com/marcboeker/go-duckdb"
)

// Name is the registry name.
const Name = "duckdb"

func init() {
	fsql.Register(fsql.Driver{
		Name:        Name,
		Placeholder: fsql.PlaceholderQuestion,
		Open:        Open,
	})
}

// Open opens a DuckDB database file, or memory when dsn is empty.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	conn, err := duckdb.NewConnector(dsn, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb database: %w", err)
	}
	db := sql.OpenDB(conn)
	if dsn == "" {
		// Every connection to "" would get a fresh in-memory database.
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

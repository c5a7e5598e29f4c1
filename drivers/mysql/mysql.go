// Package mysql registers MySQL and MariaDB through go-sql-driver/mysql with
// fsql under the name "mysql".
//
//	import _ "github.com/go-mizu/fsql/drivers/mysql"
//
//	db, err := fsql.Open(ctx, "mysql", "app:secret@tcp(localhost:3306)/app")
package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-mizu/fsql"
	"github.com/go-sql-driver/mysql"
)

// Name is the registry name.
const Name = "mysql"

func init() {
	fsql.Register(fsql.Driver{
		Name:        Name,
		Placeholder: fsql.PlaceholderQuestion,
		Open:        Open,
	})
}

// Open parses dsn, applies NormalizeConfig and opens a pool on a connector.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse mysql dsn: %w", err)
	}
	NormalizeConfig(cfg)
	conn, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create mysql connector: %w", err)
	}
	return sql.OpenDB(conn), nil
}

// NormalizeConfig turns on the settings row reading relies on: DATETIME
// columns scan into time.Time and stored procedures may return several
// result sets.
func NormalizeConfig(cfg *mysql.Config) {
	cfg.ParseTime = true
	if cfg.Params == nil {
		cfg.Params = map[string]string{}
	}
	if _, ok := cfg.Params["sql_mode"]; !ok {
		cfg.Params["sql_mode"] = "'ANSI_QUOTES,STRICT_ALL_TABLES'"
	}
}

// NormalizeDSN is NormalizeConfig applied to a DSN string.
func NormalizeDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", err
	}
	NormalizeConfig(cfg)
	return cfg.FormatDSN(), nil
}

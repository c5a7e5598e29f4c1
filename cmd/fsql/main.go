// Command fsql runs SQL through the fsql query layer from the shell.
package main

import (
	"os"

	"github.com/go-mizu/fsql/internal/cli"

	_ "github.com/go-mizu/fsql/drivers/duckdb"
	_ "github.com/go-mizu/fsql/drivers/mysql"
	_ "github.com/go-mizu/fsql/drivers/postgres"
	_ "github.com/go-mizu/fsql/drivers/sqlite"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

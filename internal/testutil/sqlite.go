package testutil

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite" // sqlite driver
)

// PeopleSchema creates the people table used across tests.
const PeopleSchema = `CREATE TABLE people (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	age INTEGER NOT NULL,
	email TEXT
)`

// OpenSQLite returns a pool on a file database in t.TempDir with the people
// table holding n rows: id i, name "name_i", age 20+i and email NULL on
// even ids. The pool is closed when the test ends.
func OpenSQLite(t testing.TB, n int) *sql.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(PeopleSchema)
	require.NoError(t, err)
	for i := 1; i <= n; i++ {
		var email any
		if i%2 == 1 {
			email = fmt.Sprintf("user%d@example.com", i)
		}
		_, err := db.Exec("INSERT INTO people (id, name, age, email) VALUES (?, ?, ?, ?)",
			i, fmt.Sprintf("name_%d", i), 20+i, email)
		require.NoError(t, err)
	}
	return db
}

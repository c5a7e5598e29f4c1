package fsql

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noBatch(context.Context, *sql.Conn, string, [][]any) ([]int64, error) {
	return nil, ErrBatchUnsupported
}

func TestRegister_RequiresNameAndOpen(t *testing.T) {
	assert.Panics(t, func() { Register(Driver{Name: "x"}) })
	assert.Panics(t, func() {
		Register(Driver{Open: func(context.Context, string) (*sql.DB, error) { return nil, nil }})
	})
}

func TestOpen_RegisteredDriver(t *testing.T) {
	var dsn string
	Register(Driver{
		Name:        "fsql-test-mock",
		Placeholder: PlaceholderDollar,
		Batch:       noBatch,
		Open: func(_ context.Context, d string) (*sql.DB, error) {
			dsn = d
			pool, _, err := sqlmock.New()
			return pool, err
		},
	})

	d, ok := Lookup("fsql-test-mock")
	require.True(t, ok)
	assert.Equal(t, PlaceholderDollar, d.Placeholder)

	db, err := Open(context.Background(), "fsql-test-mock", "mock://x", WithStatementCache(2))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.SQL().Close() })

	assert.Equal(t, "mock://x", dsn)
	assert.Equal(t, PlaceholderDollar, db.Placeholder())
	assert.NotNil(t, db.batch)
	assert.NotNil(t, db.stmts)

	names := Drivers()
	assert.Contains(t, names, "fsql-test-mock")
	assert.True(t, sort.StringsAreSorted(names))
}

func TestOpen_OptionsOverrideDriver(t *testing.T) {
	Register(Driver{
		Name:        "fsql-test-override",
		Placeholder: PlaceholderDollar,
		Open: func(context.Context, string) (*sql.DB, error) {
			pool, _, err := sqlmock.New()
			return pool, err
		},
	})
	db, err := Open(context.Background(), "fsql-test-override", "", WithPlaceholder(PlaceholderAtP))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.SQL().Close() })
	assert.Equal(t, PlaceholderAtP, db.Placeholder())
}

func TestOpen_PingFailure(t *testing.T) {
	var mock sqlmock.Sqlmock
	Register(Driver{
		Name: "fsql-test-down",
		Open: func(context.Context, string) (*sql.DB, error) {
			pool, m, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
			mock = m
			return pool, err
		},
	})
	// No ExpectPing: a monitored ping without one fails.
	_, err := Open(context.Background(), "fsql-test-down", "")
	require.ErrorIs(t, err, ErrExecution)
	assert.Contains(t, err.Error(), "ping")
	require.NotNil(t, mock)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "nope", "")
	var ue *UnknownDriverError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "nope", ue.Name)
	assert.Equal(t, Drivers(), ue.Available)
	assert.Contains(t, err.Error(), `unknown driver "nope"`)
}

package fsql

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
)

// BatchFunc sends every parameter set of a statement in one round trip on
// conn, which already has a transaction open. It returns the affected row
// count per set. A BatchFunc that cannot serve conn returns
// ErrBatchUnsupported and the sets run one by one instead.
type BatchFunc func(ctx context.Context, conn *sql.Conn, query string, sets [][]any) ([]int64, error)

// Driver describes a database backend: its placeholder style, how to open
// it, and an optional native batch capability.
type Driver struct {
	Name        string
	Placeholder Placeholder
	Open        func(ctx context.Context, dsn string) (*sql.DB, error)
	Batch       BatchFunc
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Driver)
)

// Register makes a driver available by name. Driver packages call it from
// init. Registering a name twice replaces the previous entry.
func Register(d Driver) {
	if d.Name == "" || d.Open == nil {
		panic("fsql: Register needs a name and an Open func")
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[d.Name] = d
}

// Lookup returns the driver registered under name.
func Lookup(name string) (Driver, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	d, ok := registry[name]
	return d, ok
}

// Drivers returns the registered driver names, sorted.
func Drivers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnknownDriverError is returned by Open for a name nobody registered.
type UnknownDriverError struct {
	Name      string
	Available []string
}

func (e *UnknownDriverError) Error() string {
	return fmt.Sprintf("fsql: unknown driver %q (available: %v); import the driver package, e.g. _ \"github.com/go-mizu/fsql/drivers/sqlite\"", e.Name, e.Available)
}

// Open connects through a registered driver and returns a DB configured with
// the driver's placeholder style and batch capability. opts are applied
// after the driver defaults.
func Open(ctx context.Context, name, dsn string, opts ...Option) (*DB, error) {
	d, ok := Lookup(name)
	if !ok {
		return nil, &UnknownDriverError{Name: name, Available: Drivers()}
	}
	provider := func(ctx context.Context) (*sql.DB, error) { return d.Open(ctx, dsn) }
	return Connect(ctx, provider, append([]Option{WithDriver(d)}, opts...)...)
}

package fsql

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Parallel runs independent units of work concurrently, at most limit at a
// time (no bound when limit <= 0). Each unit should build and run its own
// query objects; no ordering between units is guaranteed. The first error
// cancels the context handed to the others and is returned.
//
//	var (
//	    users   []User
//	    touched int64
//	)
//	err := fsql.Parallel(ctx, 4,
//	    func(ctx context.Context) (err error) {
//	        users, err = fsql.Collect(ctx, db.Select(qUsers), fsql.Into[User]())
//	        return err
//	    },
//	    func(ctx context.Context) (err error) {
//	        touched, err = db.Update(qTouch).Execute(ctx)
//	        return err
//	    },
//	)
func Parallel(ctx context.Context, limit int, units ...func(ctx context.Context) error) error {
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, unit := range units {
		g.Go(func() error { return unit(ctx) })
	}
	return g.Wait()
}

// Parallel runs units with the DB's configured parallelism.
func (db *DB) Parallel(ctx context.Context, units ...func(ctx context.Context) error) error {
	return Parallel(ctx, db.parallelism, units...)
}

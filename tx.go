package fsql

import (
	"context"
	"errors"
	"fmt"
)

// InTx runs fn with a DB bound to one transaction. Every query object
// created from that DB runs inside it, and multi-set batches do not open a
// transaction of their own. The transaction commits when fn returns nil;
// otherwise it is rolled back and InTx fails with ErrTransaction wrapping
// fn's error. Nested calls join the outer transaction.
//
//	err := db.InTx(ctx, func(tx *fsql.DB) error {
//	    if _, err := tx.Update(`UPDATE accounts SET balance = balance - ? WHERE id = ?`, 10, 1).Execute(ctx); err != nil {
//	        return err
//	    }
//	    _, err := tx.Update(`UPDATE accounts SET balance = balance + ? WHERE id = ?`, 10, 2).Execute(ctx)
//	    return err
//	})
func (db *DB) InTx(ctx context.Context, fn func(*DB) error) (err error) {
	if db.tx != nil {
		return fn(db)
	}
	tx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return classify("begin", err)
	}
	bound := *db
	bound.tx = tx

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&bound); err != nil {
		var rbErr error
		if rb := tx.Rollback(); rb != nil {
			rbErr = fmt.Errorf("rollback: %w", rb)
		}
		return &Error{Kind: ErrTransaction, Op: "tx", Err: errors.Join(err, rbErr)}
	}
	if err := tx.Commit(); err != nil {
		return &Error{Kind: ErrTransaction, Op: "commit", Err: classify("commit", err)}
	}
	return nil
}

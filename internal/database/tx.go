package database

import (
	"context"
	"database/sql"
	"fmt"
)

// TxRunner is the unit of work: fn's writes across every repository commit
// together or not at all.
//
// Units of work that take row locks take them in one order: payment, then
// booking, then time slot. Any other order can deadlock against a
// concurrent callback or sweep.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// SQLTxRunner runs units of work on a *sql.DB.
type SQLTxRunner struct {
	db *sql.DB
}

// NewTxRunner returns a TxRunner bound to db.
func NewTxRunner(db *sql.DB) *SQLTxRunner { return &SQLTxRunner{db: db} }

// WithinTx begins a transaction, runs fn and commits when fn returns nil.
// Any error from fn, or a panic, rolls the transaction back.
func (r *SQLTxRunner) WithinTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

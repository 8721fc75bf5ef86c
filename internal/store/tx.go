package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const DefaultMaxRetries = 5

// WithTx runs fn inside a transaction. The transaction is committed only when
// fn returns nil; every other exit path, panics included, rolls it back.
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// TxRunner executes serializable units of work, retrying the whole unit when
// Postgres reports a serialization failure or deadlock.
type TxRunner struct {
	db         *sql.DB
	maxRetries uint64
	newBackOff func() backoff.BackOff
}

func NewTxRunner(db *sql.DB, maxRetries uint64) *TxRunner {
	return &TxRunner{
		db:         db,
		maxRetries: maxRetries,
		newBackOff: defaultBackOff,
	}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond
	b.MaxElapsedTime = 5 * time.Second
	return b
}

func (r *TxRunner) Serializable(ctx context.Context, fn func(tx *sql.Tx) error) error {
	opts := &sql.TxOptions{Isolation: sql.LevelSerializable}

	policy := backoff.WithContext(backoff.WithMaxRetries(r.newBackOff(), r.maxRetries), ctx)

	return backoff.Retry(func() error {
		err := WithTx(ctx, r.db, opts, fn)
		if err != nil && !IsSerializationFailure(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}

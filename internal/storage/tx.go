package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// Tx is a unit of work. Work registered with OnCommit runs only after the
// transaction commits and is discarded on rollback.
type Tx struct {
	tx *sql.Tx
	Queries
	hooks []func()
}

// OnCommit registers fn to run after a successful commit.
func (t *Tx) OnCommit(fn func()) {
	t.hooks = append(t.hooks, fn)
}

// WithTx runs fn inside a transaction. If fn returns an error or panics the
// transaction is rolled back and no commit hooks run.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	tx := &Tx{tx: sqlTx, Queries: Queries{q: sqlTx}}

	defer func() {
		if p := recover(); p != nil {
			sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	for _, hook := range tx.hooks {
		hook()
	}
	return nil
}

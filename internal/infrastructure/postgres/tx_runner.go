package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// beginner lo implementan *pgxpool.Pool y pgx.Tx (este último con savepoint).
type beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// inTx ejecuta fn dentro de una transacción y hace Commit o Rollback.
// Si q no puede abrir transacciones, fn corre directo sobre q.
func inTx(ctx context.Context, q Querier, fn func(q Querier) error) error {
	b, ok := q.(beginner)
	if !ok {
		return fn(q)
	}
	tx, err := b.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

package repo

import (
	"context"
	"fmt"

	"github.com/flexcp/flexcp/internal/apierr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the shared connection pool every repository is constructed over.
// A single pool is shared by all tasks (spec 5: "DB pool ... Connections
// acquired per operation; no long-held connections across awaits except
// inside a transaction").
type DB struct {
	Pool *pgxpool.Pool
}

func Open(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, apierr.ServiceUnavailable(fmt.Sprintf("connecting to database: %v", err))
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, apierr.ServiceUnavailable(fmt.Sprintf("pinging database: %v", err))
	}
	return &DB{Pool: pool}, nil
}

func (d *DB) Close() { d.Pool.Close() }

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, letting repository
// methods run either standalone or inside a caller-managed transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgx.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// WithTx runs fn inside a single transaction (spec 4.2: "Multi-entity
// operations ... run in one transaction"). A cancelled fn that has not
// committed is rolled back; pgx's Rollback-after-Commit is a no-op, which
// is what makes the defer safe regardless of which branch fn takes.
func (d *DB) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := d.Pool.Begin(ctx)
	if err != nil {
		return apierr.Wrap(apierr.KindServiceUnavailable, "beginning transaction", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return apierr.Wrap(apierr.KindInternal, "committing transaction", err)
	}
	return nil
}

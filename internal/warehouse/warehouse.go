// Package warehouse provides the Postgres-backed bronze/silver persistence
// layer: staged anti-join merges for append-mostly tables and windowed
// delete-then-insert backfills for derived tables.
package warehouse

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// validIdent allow-lists dynamic table names before they are interpolated
// into SQL. Values always travel as bind parameters.
var validIdent = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PgxPool is the subset of pgxpool.Pool the warehouse uses. pgxmock
// satisfies it, which keeps the SQL layer testable without a live server.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Warehouse wraps a Postgres connection pool. Construct one per process and
// inject it into the pipeline stages that need it; the caller owns Close.
type Warehouse struct {
	pool   PgxPool
	logger *zap.Logger
}

// New connects to Postgres and verifies the connection is alive.
func New(ctx context.Context, dsn string, logger *zap.Logger) (*Warehouse, error) {
	if dsn == "" {
		return nil, fmt.Errorf("warehouse.dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Warehouse{pool: pool, logger: logger}, nil
}

// NewWithPool constructs a Warehouse from an existing pool (primarily for
// testing with pgxmock).
func NewWithPool(pool PgxPool, logger *zap.Logger) (*Warehouse, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Warehouse{pool: pool, logger: logger}, nil
}

// Close releases the underlying pool resources.
func (w *Warehouse) Close() {
	if w == nil || w.pool == nil {
		return
	}
	w.pool.Close()
}

func validateIdent(name string) error {
	if !validIdent.MatchString(name) {
		return fmt.Errorf("invalid identifier %q", name)
	}
	return nil
}

// withTx runs fn inside a transaction: full commit or full rollback, no
// intermediate state visible outside.
func (w *Warehouse) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			w.logger.Error("Rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

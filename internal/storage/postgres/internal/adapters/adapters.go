// Package adapters narrows the three supported database access layers
// (pgxpool, sqlx, database/sql) down to the tiny surface the storage
// engine actually needs: run a query, run a statement, count affected
// rows.
package adapters

import "context"

// Driver executes finished SQL strings against a database.
type Driver interface {
	Query(ctx context.Context, sql string) (Rows, error)
	Exec(ctx context.Context, sql string) (Result, error)
}

// Rows iterates over a query result.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
}

// Result reports the outcome of a statement.
type Result interface {
	RowsAffected() (int64, error)
}

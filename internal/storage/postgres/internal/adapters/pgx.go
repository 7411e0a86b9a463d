package adapters

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGXDriver implements Driver on a pgx connection pool.
type PGXDriver struct {
	pool *pgxpool.Pool
}

// NewPGXDriver creates a Driver backed by a pgx pool.
func NewPGXDriver(pool *pgxpool.Pool) *PGXDriver {
	return &PGXDriver{pool: pool}
}

// Query runs a query on the pool.
func (d *PGXDriver) Query(ctx context.Context, sql string) (Rows, error) {
	rows, err := d.pool.Query(ctx, sql)
	if err != nil {
		return nil, err
	}

	return &pgxRows{rows: rows}, nil
}

// Exec runs a statement on the pool.
func (d *PGXDriver) Exec(ctx context.Context, sql string) (Result, error) {
	tag, err := d.pool.Exec(ctx, sql)
	if err != nil {
		return nil, err
	}

	return pgxResult{tag: tag}, nil
}

type pgxRows struct {
	rows pgx.Rows
}

func (r *pgxRows) Next() bool {
	return r.rows.Next()
}

func (r *pgxRows) Scan(dest ...any) error {
	return r.rows.Scan(dest...)
}

func (r *pgxRows) Close() error {
	r.rows.Close()
	return nil
}

type pgxResult struct {
	tag pgconn.CommandTag
}

func (r pgxResult) RowsAffected() (int64, error) {
	return r.tag.RowsAffected(), nil
}

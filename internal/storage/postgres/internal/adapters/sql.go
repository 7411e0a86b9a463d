package adapters

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// SQLDriver implements Driver on a database/sql handle.
type SQLDriver struct {
	db *sql.DB
}

// NewSQLDriver creates a Driver backed by a database/sql handle.
func NewSQLDriver(db *sql.DB) *SQLDriver {
	return &SQLDriver{db: db}
}

// Query runs a query on the handle.
func (d *SQLDriver) Query(ctx context.Context, sqlQuery string) (Rows, error) {
	rows, err := d.db.QueryContext(ctx, sqlQuery)
	if err != nil {
		return nil, err
	}

	return stdRows{rows: rows}, nil
}

// Exec runs a statement on the handle.
func (d *SQLDriver) Exec(ctx context.Context, sqlQuery string) (Result, error) {
	result, err := d.db.ExecContext(ctx, sqlQuery)
	if err != nil {
		return nil, err
	}

	return result, nil
}

// SQLXDriver implements Driver on a sqlx handle. sqlx adds nothing over
// database/sql for plain string queries, but accepting the handle keeps
// the wiring symmetric for callers already using it.
type SQLXDriver struct {
	db *sqlx.DB
}

// NewSQLXDriver creates a Driver backed by a sqlx handle.
func NewSQLXDriver(db *sqlx.DB) *SQLXDriver {
	return &SQLXDriver{db: db}
}

// Query runs a query on the handle.
func (d *SQLXDriver) Query(ctx context.Context, sqlQuery string) (Rows, error) {
	rows, err := d.db.QueryContext(ctx, sqlQuery)
	if err != nil {
		return nil, err
	}

	return stdRows{rows: rows}, nil
}

// Exec runs a statement on the handle.
func (d *SQLXDriver) Exec(ctx context.Context, sqlQuery string) (Result, error) {
	result, err := d.db.ExecContext(ctx, sqlQuery)
	if err != nil {
		return nil, err
	}

	return result, nil
}

// stdRows adapts *sql.Rows, shared by the database/sql and sqlx drivers.
type stdRows struct {
	rows *sql.Rows
}

func (r stdRows) Next() bool {
	return r.rows.Next()
}

func (r stdRows) Scan(dest ...any) error {
	return r.rows.Scan(dest...)
}

func (r stdRows) Close() error {
	return r.rows.Close()
}

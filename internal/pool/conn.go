package pool

import (
	"context"
	"database/sql"
	"fmt"
)

// Querier is the statement surface shared by a leased connection and a
// transaction on one, letting a helper run inside a caller-owned
// transaction or on a bare connection alike.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Conn is a leased database handle, owned exclusively by the borrower until
// Release. The underlying *sql.DB is pinned to a single connection, so
// statements and transactions on a Conn never interleave with other holders.
type Conn struct {
	db     *sql.DB
	tx     *Tx
	pooled bool // false for degraded-mode direct connections
}

// Tx wraps *sql.Tx so the pool can roll back a transaction the borrower
// left open at release time.
type Tx struct {
	*sql.Tx
	conn *Conn
}

func (c *Conn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.db.ExecContext(ctx, query, args...)
}

func (c *Conn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.db.QueryContext(ctx, query, args...)
}

func (c *Conn) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return c.db.QueryRowContext(ctx, query, args...)
}

// BeginTx starts a transaction on the leased connection. Only one
// transaction may be open at a time; an unfinished transaction is rolled
// back when the Conn is released.
func (c *Conn) BeginTx(ctx context.Context) (*Tx, error) {
	if c.tx != nil {
		return nil, fmt.Errorf("transaction already open on this connection")
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	c.tx = &Tx{Tx: tx, conn: c}
	return c.tx, nil
}

// Commit commits and detaches the transaction from its connection.
func (t *Tx) Commit() error {
	t.conn.tx = nil
	return t.Tx.Commit()
}

// Rollback rolls back and detaches the transaction. Calling it after Commit
// is a no-op error from database/sql, matching the usual defer pattern.
func (t *Tx) Rollback() error {
	t.conn.tx = nil
	return t.Tx.Rollback()
}

// validate runs the cheap liveness probe.
func (c *Conn) validate(ctx context.Context) bool {
	var one int
	return c.db.QueryRowContext(ctx, "SELECT 1").Scan(&one) == nil
}

// close discards the underlying handle.
func (c *Conn) close() {
	if c.tx != nil {
		_ = c.tx.Rollback()
	}
	_ = c.db.Close()
}

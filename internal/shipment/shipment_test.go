package shipment

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shipfloor/shipfloor/internal/pool"
	"github.com/shipfloor/shipfloor/internal/sqlite"
	"github.com/shipfloor/shipfloor/pkg/types"
)

// newTestPool builds a pool over a fresh temp database with the schema
// applied.
func newTestPool(t *testing.T) *pool.Pool {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shipfloor.db")
	ctx := context.Background()

	db, err := sqlite.OpenConn(ctx, path, 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, sqlite.EnsureSchema(ctx, db))
	require.NoError(t, db.Close())

	cfg := types.DefaultConfig(path)
	cfg.PoolMin = 1
	cfg.PoolMax = 4
	cfg.BorrowTimeout = 5 * time.Second
	cfg.ConnTimeout = 5 * time.Second

	p, err := pool.New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func queryInt(t *testing.T, p *pool.Pool, query string, args ...any) int {
	t.Helper()
	var n int
	err := p.WithConn(context.Background(), func(c *pool.Conn) error {
		return c.QueryRowContext(context.Background(), query, args...).Scan(&n)
	})
	require.NoError(t, err)
	return n
}

func queryString(t *testing.T, p *pool.Pool, query string, args ...any) string {
	t.Helper()
	var s string
	err := p.WithConn(context.Background(), func(c *pool.Conn) error {
		return c.QueryRowContext(context.Background(), query, args...).Scan(&s)
	})
	require.NoError(t, err)
	return s
}

func exec(t *testing.T, p *pool.Pool, query string, args ...any) {
	t.Helper()
	err := p.WithConn(context.Background(), func(c *pool.Conn) error {
		_, err := c.ExecContext(context.Background(), query, args...)
		return err
	})
	require.NoError(t, err)
}

func testHeader(orderNo string, pkgs int) HeaderInput {
	return HeaderInput{
		OrderNo:      orderNo,
		TripDate:     "2026-03-02",
		PkgsTotal:    pkgs,
		CustomerCode: "C100",
		CustomerName: "Harbor Supply Co",
		Region:       "North",
		Address:      "Dock 4",
		InvoiceRoot:  "INV-" + orderNo,
	}
}

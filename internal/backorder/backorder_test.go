package backorder

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

func setStock(t *testing.T, p *pool.Pool, warehouseID int, itemCode string, onhand float64) {
	t.Helper()
	err := p.WithConn(context.Background(), func(c *pool.Conn) error {
		_, err := c.ExecContext(context.Background(), `
            INSERT INTO stock_levels (warehouse_id, item_code, onhand)
            VALUES (?,?,?)
            ON CONFLICT (warehouse_id, item_code) DO UPDATE SET onhand = excluded.onhand`,
			warehouseID, itemCode, onhand)
		return err
	})
	require.NoError(t, err)
}

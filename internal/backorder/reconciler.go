package backorder

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shipfloor/shipfloor/internal/pool"
	"github.com/shipfloor/shipfloor/pkg/types"
)

// StockReader answers live on-hand stock queries. The default
// implementation reads the stock_levels table; deployments against the ERP
// substitute their own view.
type StockReader interface {
	OnHand(ctx context.Context, itemCode string, warehouseID int) (decimal.Decimal, error)
}

// Notifier receives one event per closed backorder group.
type Notifier interface {
	FulfillmentClosed(f types.Fulfillment)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(types.Fulfillment)

func (fn NotifierFunc) FulfillmentClosed(f types.Fulfillment) { fn(f) }

// tableStock reads on-hand quantities from stock_levels.
type tableStock struct {
	pool *pool.Pool
}

func (s tableStock) OnHand(ctx context.Context, itemCode string, warehouseID int) (decimal.Decimal, error) {
	var onhand float64
	err := s.pool.WithConn(ctx, func(c *pool.Conn) error {
		err := c.QueryRowContext(ctx,
			"SELECT onhand FROM stock_levels WHERE warehouse_id = ? AND item_code = ?",
			warehouseID, itemCode,
		).Scan(&onhand)
		if err == sql.ErrNoRows {
			onhand = 0
			return nil
		}
		return err
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("stock query %s@%d: %w", itemCode, warehouseID, err)
	}
	return decimal.NewFromFloat(onhand), nil
}

// Reconciler periodically closes open backorders whose stock has arrived.
type Reconciler struct {
	records *Records
	stock   StockReader
	notify  Notifier
	log     *slog.Logger
}

// NewReconciler builds a reconciler. stock and notify may be nil: stock
// defaults to the stock_levels table, notify to a log-only notifier.
func NewReconciler(p *pool.Pool, records *Records, stock StockReader, notify Notifier, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	if stock == nil {
		stock = tableStock{pool: p}
	}
	r := &Reconciler{records: records, stock: stock, log: log}
	if notify == nil {
		notify = NotifierFunc(func(f types.Fulfillment) {
			log.Info("backorder fulfilled",
				"order", f.OrderNo, "item", f.ItemCode,
				"warehouse", f.WarehouseID, "qty", f.QtyClosed)
		})
	}
	r.notify = notify
	return r
}

// group keys open backorders so each (order, item, warehouse) costs one
// stock query per pass.
type groupKey struct {
	orderNo     string
	itemCode    string
	warehouseID int
}

type group struct {
	need decimal.Decimal
	ids  []int64
}

// RunOnce performs a single reconciliation pass. A failure on one group is
// logged and that group alone skipped; the pass continues. Either all rows
// of a satisfied group close or none do.
func (r *Reconciler) RunOnce(ctx context.Context) error {
	pending, err := r.records.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("backorder pass: %w", err)
	}
	if len(pending) == 0 {
		r.log.Info("backorder pass: nothing open")
		return nil
	}

	groups := make(map[groupKey]*group)
	var order []groupKey
	for _, b := range pending {
		key := groupKey{b.OrderNo, b.ItemCode, b.WarehouseID}
		g, ok := groups[key]
		if !ok {
			g = &group{need: decimal.Zero}
			groups[key] = g
			order = append(order, key)
		}
		g.need = g.need.Add(b.QtyMissing)
		g.ids = append(g.ids, b.ID)
	}
	r.log.Info("backorder pass starting", "groups", len(groups))

	for _, key := range order {
		g := groups[key]
		free, err := r.stock.OnHand(ctx, key.itemCode, key.warehouseID)
		if err != nil {
			r.log.Error("stock query failed, skipping group",
				"order", key.orderNo, "item", key.itemCode, "error", err)
			continue
		}
		if free.LessThan(g.need) {
			r.log.Debug("insufficient stock",
				"order", key.orderNo, "item", key.itemCode,
				"free", free, "need", g.need)
			continue
		}

		if err := r.closeGroup(ctx, g.ids); err != nil {
			r.log.Error("closing group failed",
				"order", key.orderNo, "item", key.itemCode, "error", err)
			continue
		}
		r.notify.FulfillmentClosed(types.Fulfillment{
			OrderNo:     key.orderNo,
			ItemCode:    key.itemCode,
			WarehouseID: key.warehouseID,
			QtyClosed:   g.need,
		})
	}
	return nil
}

// closeGroup marks every row of a group fulfilled in one transaction.
func (r *Reconciler) closeGroup(ctx context.Context, ids []int64) error {
	return r.records.pool.WithConn(ctx, func(c *pool.Conn) error {
		tx, err := c.BeginTx(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		now := time.Now().UTC().Format(time.RFC3339)
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx,
				"UPDATE backorders SET fulfilled = 1, fulfilled_at = ? WHERE id = ?",
				now, id); err != nil {
				return fmt.Errorf("marking backorder %d fulfilled: %w", id, err)
			}
		}
		return tx.Commit()
	})
}

// RunLoop runs RunOnce every interval until ctx is canceled. Cancellation
// is honored at the top of each iteration; a failed pass is logged and the
// loop proceeds to the next tick.
func (r *Reconciler) RunLoop(ctx context.Context, interval time.Duration) {
	r.log.Info("backorder watcher running", "interval", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("backorder watcher stopped")
			return
		default:
		}

		if err := r.RunOnce(ctx); err != nil {
			r.log.Error("backorder pass failed", "error", err)
		}

		select {
		case <-ctx.Done():
			r.log.Info("backorder watcher stopped")
			return
		case <-ticker.C:
		}
	}
}

// Package backorder records shortages and cumulative shipments, and runs
// the reconciliation loop that closes shortages once stock arrives.
package backorder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shipfloor/shipfloor/internal/pool"
	"github.com/shipfloor/shipfloor/pkg/types"
)

// Records is the write/read surface over the backorders and shipment_lines
// tables.
type Records struct {
	pool *pool.Pool
	log  *slog.Logger
}

func NewRecords(p *pool.Pool, log *slog.Logger) *Records {
	if log == nil {
		log = slog.Default()
	}
	return &Records{pool: p, log: log}
}

// RecordShortage registers a missing quantity for (order, item). An open
// row for the pair has its qty_missing REPLACED with the new value; it is
// never accumulated. At most one open row per pair exists.
func (r *Records) RecordShortage(ctx context.Context, orderNo string, lineID int64, warehouseID int, itemCode string, qtyMissing decimal.Decimal) error {
	return r.pool.WithConn(ctx, func(c *pool.Conn) error {
		return r.RecordShortageTx(ctx, c, orderNo, lineID, warehouseID, itemCode, qtyMissing)
	})
}

// RecordShortageTx is RecordShortage against a caller-owned transaction.
func (r *Records) RecordShortageTx(ctx context.Context, q pool.Querier, orderNo string, lineID int64, warehouseID int, itemCode string, qtyMissing decimal.Decimal) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := q.ExecContext(ctx, `
        UPDATE backorders SET qty_missing = ?, last_update = ?
         WHERE fulfilled = 0 AND order_no = ? AND item_code = ?`,
		qtyMissing.InexactFloat64(), now, orderNo, itemCode)
	if err != nil {
		return fmt.Errorf("updating backorder: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	_, err = q.ExecContext(ctx, `
        INSERT INTO backorders
            (order_no, line_id, warehouse_id, item_code, qty_missing,
             fulfilled, created_at, last_update)
        VALUES (?,?,?,?,?,0,?,?)`,
		orderNo, lineID, warehouseID, itemCode,
		qtyMissing.InexactFloat64(), now, now)
	if err != nil {
		return fmt.Errorf("inserting backorder: %w", err)
	}
	return nil
}

// RecordShipment accumulates the shipped quantity for
// (trip date, order, item) in one atomic upsert, creating the line on first
// shipment.
func (r *Records) RecordShipment(ctx context.Context, orderNo, tripDate, itemCode string, warehouseID int, invoicedQty, qtyDelta decimal.Decimal) error {
	return r.pool.WithConn(ctx, func(c *pool.Conn) error {
		return r.RecordShipmentTx(ctx, c, orderNo, tripDate, itemCode, warehouseID, invoicedQty, qtyDelta)
	})
}

// RecordShipmentTx is RecordShipment against a caller-owned transaction.
func (r *Records) RecordShipmentTx(ctx context.Context, q pool.Querier, orderNo, tripDate, itemCode string, warehouseID int, invoicedQty, qtyDelta decimal.Decimal) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := q.ExecContext(ctx, `
        INSERT INTO shipment_lines
            (trip_date, order_no, item_code, warehouse_id,
             invoiced_qty, qty_sent, loaded, last_update)
        VALUES (?,?,?,?,?,?,0,?)
        ON CONFLICT (trip_date, order_no, item_code) DO UPDATE SET
            qty_sent    = shipment_lines.qty_sent + excluded.qty_sent,
            last_update = excluded.last_update`,
		tripDate, orderNo, itemCode, warehouseID,
		invoicedQty.InexactFloat64(), qtyDelta.InexactFloat64(), now)
	if err != nil {
		return fmt.Errorf("recording shipment line: %w", err)
	}
	return nil
}

// ListPending returns every open backorder.
func (r *Records) ListPending(ctx context.Context) ([]types.Backorder, error) {
	var out []types.Backorder
	err := r.pool.WithConn(ctx, func(c *pool.Conn) error {
		rows, err := c.QueryContext(ctx, `
            SELECT id, order_no, line_id, warehouse_id, item_code, qty_missing
              FROM backorders
             WHERE fulfilled = 0
             ORDER BY order_no, item_code`)
		if err != nil {
			return fmt.Errorf("listing open backorders: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var b types.Backorder
			var missing float64
			if err := rows.Scan(&b.ID, &b.OrderNo, &b.LineID,
				&b.WarehouseID, &b.ItemCode, &missing); err != nil {
				return fmt.Errorf("scanning backorder: %w", err)
			}
			b.QtyMissing = decimal.NewFromFloat(missing)
			out = append(out, b)
		}
		return rows.Err()
	})
	return out, err
}

// ListFulfilled returns closed backorders, optionally filtered to one
// fulfillment day (YYYY-MM-DD).
func (r *Records) ListFulfilled(ctx context.Context, onDate string) ([]types.Backorder, error) {
	query := `
        SELECT id, order_no, line_id, warehouse_id, item_code, qty_missing, fulfilled_at
          FROM backorders
         WHERE fulfilled = 1`
	args := []any{}
	if onDate != "" {
		query += " AND date(fulfilled_at) = ?"
		args = append(args, onDate)
	}

	var out []types.Backorder
	err := r.pool.WithConn(ctx, func(c *pool.Conn) error {
		rows, err := c.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("listing fulfilled backorders: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var b types.Backorder
			var missing float64
			var fulfilledAt *string
			if err := rows.Scan(&b.ID, &b.OrderNo, &b.LineID,
				&b.WarehouseID, &b.ItemCode, &missing, &fulfilledAt); err != nil {
				return fmt.Errorf("scanning backorder: %w", err)
			}
			b.QtyMissing = decimal.NewFromFloat(missing)
			b.Fulfilled = true
			if fulfilledAt != nil {
				if t, err := time.Parse(time.RFC3339, *fulfilledAt); err == nil {
					b.FulfilledAt = &t
				}
			}
			out = append(out, b)
		}
		return rows.Err()
	})
	return out, err
}

// Package pickqueue resolves scanned barcodes to order lines and advances
// the persisted qty_sent counters. Resolution results are memoized in a
// bounded TTL cache to absorb scan bursts; counters only ever move through
// single-statement guarded increments.
package pickqueue

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/shipfloor/shipfloor/internal/cache"
	"github.com/shipfloor/shipfloor/internal/pool"
	"github.com/shipfloor/shipfloor/pkg/types"
)

// memoKey scopes cached resolutions to the order being picked, so stations
// working different orders never share entries.
type memoKey struct {
	orderID int64
	barcode string
}

// Tracker is the pick-side component used by the scanning stations.
type Tracker struct {
	pool      *pool.Pool
	log       *slog.Logger
	tolerance decimal.Decimal
	memo      *cache.Cache[memoKey, types.Match]

	mu          sync.Mutex
	activeOrder int64
}

func NewTracker(p *pool.Pool, cfg types.Config, log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{
		pool:      p,
		log:       log,
		tolerance: cfg.OverScanTolerance,
		memo:      cache.New[memoKey, types.Match](cfg.CacheSize, cfg.CacheTTL),
	}
}

// SetActiveOrder invalidates the memo when the station switches orders.
// The cache holds lookup results only, never counters, so dropping it is
// always safe.
func (t *Tracker) SetActiveOrder(orderID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.activeOrder != orderID {
		t.activeOrder = orderID
		t.memo.Reset()
	}
}

// CacheStats exposes the memo hit counters.
func (t *Tracker) CacheStats() cache.Stats { return t.memo.Stats() }

// Lines loads the pick queue lines for an order.
func (t *Tracker) Lines(ctx context.Context, orderID int64) ([]types.PickLine, error) {
	var out []types.PickLine
	err := t.pool.WithConn(ctx, func(c *pool.Conn) error {
		rows, err := c.QueryContext(ctx, `
            SELECT order_id, item_code, warehouse_id, qty_ordered, qty_sent
              FROM pick_queue
             WHERE order_id = ?
             ORDER BY item_code`, orderID)
		if err != nil {
			return fmt.Errorf("loading pick lines: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var l types.PickLine
			var ordered, sent float64
			if err := rows.Scan(&l.OrderID, &l.ItemCode, &l.WarehouseID, &ordered, &sent); err != nil {
				return fmt.Errorf("scanning pick line: %w", err)
			}
			l.QtyOrdered = decimal.NewFromFloat(ordered)
			l.QtySent = decimal.NewFromFloat(sent)
			out = append(out, l)
		}
		return rows.Err()
	})
	return out, err
}

// Resolve maps a scanned barcode onto one of the order's lines. Strategies
// run in order, first match wins:
//
//  1. exact item-code match;
//  2. item code derived from the line warehouse's barcode prefix;
//  3. cross-reference lookup scoped to the order's warehouses;
//  4. unscoped cross-reference lookup.
//
// Hits are memoized per (order, barcode) until the TTL or the next order
// switch. Returns ErrLineNotFound when no strategy matches.
func (t *Tracker) Resolve(ctx context.Context, barcode string, lines []types.PickLine, warehouses map[int]bool) (types.Match, error) {
	if len(lines) == 0 {
		return types.Match{}, fmt.Errorf("barcode %q: %w", barcode, types.ErrLineNotFound)
	}
	key := memoKey{orderID: lines[0].OrderID, barcode: barcode}
	if m, ok := t.memo.Get(key); ok {
		return m, nil
	}

	// 1) Direct item code match.
	for _, ln := range lines {
		if strings.EqualFold(ln.ItemCode, barcode) {
			return t.remember(key, ln, decimal.NewFromInt(1)), nil
		}
	}

	// 2) Warehouse prefix derivation.
	for _, ln := range lines {
		code, err := t.prefixDerive(ctx, barcode, ln.WarehouseID)
		if err != nil {
			return types.Match{}, err
		}
		if code != "" && code == ln.ItemCode {
			return t.remember(key, ln, decimal.NewFromInt(1)), nil
		}
	}

	// 3) Scoped cross-reference lookup, one warehouse at a time. A lookup
	// failure in one warehouse is logged and the next one tried.
	for wh := range warehouses {
		code, mult, err := t.xrefLookup(ctx, barcode, &wh)
		if err != nil {
			t.log.Warn("barcode xref lookup failed",
				"barcode", barcode, "warehouse", wh, "error", err)
			continue
		}
		if code == "" {
			continue
		}
		for _, ln := range lines {
			if ln.ItemCode == code && ln.WarehouseID == wh {
				return t.remember(key, ln, mult), nil
			}
		}
	}

	// 4) Unscoped cross-reference lookup.
	code, mult, err := t.xrefLookup(ctx, barcode, nil)
	if err != nil {
		return types.Match{}, err
	}
	if code != "" {
		for _, ln := range lines {
			if ln.ItemCode == code {
				return t.remember(key, ln, mult), nil
			}
		}
	}

	return types.Match{}, fmt.Errorf("barcode %q: %w", barcode, types.ErrLineNotFound)
}

func (t *Tracker) remember(key memoKey, ln types.PickLine, mult decimal.Decimal) types.Match {
	m := types.Match{Line: ln, Multiplier: mult}
	t.memo.Put(key, m)
	return m
}

// prefixDerive strips the warehouse's configured barcode prefix, yielding
// the bare item code, or "" when the prefix does not apply.
func (t *Tracker) prefixDerive(ctx context.Context, barcode string, warehouseID int) (string, error) {
	var prefix string
	err := t.pool.WithConn(ctx, func(c *pool.Conn) error {
		err := c.QueryRowContext(ctx,
			"SELECT prefix FROM warehouse_prefix WHERE warehouse_id = ?",
			warehouseID,
		).Scan(&prefix)
		if err == sql.ErrNoRows {
			prefix = ""
			return nil
		}
		return err
	})
	if err != nil {
		return "", fmt.Errorf("prefix lookup for warehouse %d: %w", warehouseID, err)
	}
	if prefix == "" || !strings.HasPrefix(barcode, prefix) {
		return "", nil
	}
	return strings.TrimPrefix(barcode, prefix), nil
}

// xrefLookup resolves a barcode through the cross-reference table,
// optionally scoped to one warehouse. When several rows share the barcode
// the lowest item code wins, so repeated scans resolve the same way.
// Returns ("", 1) when unmatched.
func (t *Tracker) xrefLookup(ctx context.Context, barcode string, warehouseID *int) (string, decimal.Decimal, error) {
	query := "SELECT item_code, multiplier FROM barcode_xref WHERE barcode = ?"
	args := []any{barcode}
	if warehouseID != nil {
		query += " AND warehouse_id = ?"
		args = append(args, *warehouseID)
	}
	query += " ORDER BY item_code, multiplier LIMIT 1"

	var code string
	var mult float64
	err := t.pool.WithConn(ctx, func(c *pool.Conn) error {
		err := c.QueryRowContext(ctx, query, args...).Scan(&code, &mult)
		if err == sql.ErrNoRows {
			code, mult = "", 1
			return nil
		}
		return err
	})
	if err != nil {
		return "", decimal.Zero, fmt.Errorf("xref lookup %q: %w", barcode, err)
	}
	if mult == 0 {
		mult = 1
	}
	return code, decimal.NewFromFloat(mult), nil
}

// Increment advances qty_sent by delta as one guarded atomic update: the
// over-scan check rides in the statement's WHERE clause, so concurrent
// stations can neither lose an increment nor push past
// qty_ordered + tolerance. A violation surfaces as ErrOverScan, never a
// silent clamp.
func (t *Tracker) Increment(ctx context.Context, orderID int64, itemCode string, delta decimal.Decimal) (types.ScanResult, error) {
	result := types.ScanResult{OrderID: orderID, ItemCode: itemCode}

	err := t.pool.WithConn(ctx, func(c *pool.Conn) error {
		d := delta.InexactFloat64()
		res, err := c.ExecContext(ctx, `
            UPDATE pick_queue
               SET qty_sent = qty_sent + ?
             WHERE order_id = ? AND item_code = ?
               AND qty_sent + ? <= qty_ordered + ?`,
			d, orderID, itemCode, d, t.tolerance.InexactFloat64())
		if err != nil {
			return fmt.Errorf("incrementing pick counter: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("reading affected rows: %w", err)
		}

		var sent, ordered float64
		scanErr := c.QueryRowContext(ctx,
			"SELECT qty_sent, qty_ordered FROM pick_queue WHERE order_id = ? AND item_code = ?",
			orderID, itemCode,
		).Scan(&sent, &ordered)

		if n == 0 {
			if scanErr == sql.ErrNoRows {
				result.Message = fmt.Sprintf("item not on order: %s", itemCode)
				return fmt.Errorf("order %d item %s: %w", orderID, itemCode, types.ErrLineNotFound)
			}
			if scanErr != nil {
				return fmt.Errorf("reading pick counter: %w", scanErr)
			}
			limit := decimal.NewFromFloat(ordered).Add(t.tolerance)
			result.NewQtySent = decimal.NewFromFloat(sent)
			result.Message = fmt.Sprintf("allowed %s, currently %s", limit, result.NewQtySent)
			return fmt.Errorf("order %d item %s: %w", orderID, itemCode, types.ErrOverScan)
		}

		if scanErr != nil {
			return fmt.Errorf("reading pick counter: %w", scanErr)
		}
		result.OK = true
		result.NewQtySent = decimal.NewFromFloat(sent)
		result.Message = fmt.Sprintf("scanned %s", itemCode)
		return nil
	})
	return result, err
}

package shipment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shipfloor/shipfloor/internal/backorder"
	"github.com/shipfloor/shipfloor/internal/pool"
	"github.com/shipfloor/shipfloor/pkg/types"
)

// Completer runs the order-completion pipeline: establish the trip header
// and its package set, record what was shipped and what is missing per
// line, and clear the order from the pick queue.
type Completer struct {
	pool    *pool.Pool
	headers *Headers
	records *backorder.Records
	log     *slog.Logger
}

func NewCompleter(p *pool.Pool, headers *Headers, records *backorder.Records, log *slog.Logger) *Completer {
	if log == nil {
		log = slog.Default()
	}
	return &Completer{pool: p, headers: headers, records: records, log: log}
}

// CompletionLine is one order line at completion time.
type CompletionLine struct {
	LineID      int64
	ItemCode    string
	WarehouseID int
	QtyOrdered  decimal.Decimal
	QtySent     decimal.Decimal
}

// CompletionInput describes the finished order.
type CompletionInput struct {
	OrderID  int64
	Header   HeaderInput
	Lines    []CompletionLine
	Username string
}

// CompletionResult reports the outcome.
type CompletionResult struct {
	OK              bool
	Message         string
	OrderNo         string
	TripID          int64
	PackagesCreated int
	Shortages       int
}

// Complete finishes a picked order. Every fully or partially sent line gets
// a cumulative shipment record; every short line gets an open backorder
// (replace semantics). The header upsert, package sync, line records, and
// pick-queue clear all ride one transaction: a failure anywhere rolls the
// whole completion back, so a retry never double-accumulates qty_sent.
func (cp *Completer) Complete(ctx context.Context, in CompletionInput) (CompletionResult, error) {
	result := CompletionResult{OrderNo: in.Header.OrderNo}
	sync := NewSynchronizer(cp.pool, cp.log)

	var tripID int64
	var shortages int
	err := cp.pool.WithConn(ctx, func(c *pool.Conn) error {
		tx, err := c.BeginTx(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		tripID, err = cp.headers.upsert(ctx, tx, in.Header)
		if err != nil {
			return err
		}
		var syncRes types.SyncResult
		if err := sync.apply(ctx, tx, tripID, in.Header.PkgsTotal, &syncRes); err != nil {
			return fmt.Errorf("package sync for %s: %w", in.Header.OrderNo, err)
		}

		shortages = 0
		for _, line := range in.Lines {
			missing := line.QtyOrdered.Sub(line.QtySent)

			if line.QtySent.IsPositive() {
				err := cp.records.RecordShipmentTx(ctx, tx,
					in.Header.OrderNo, in.Header.TripDate, line.ItemCode,
					line.WarehouseID, line.QtyOrdered, line.QtySent)
				if err != nil {
					return fmt.Errorf("completing %s: %w", in.Header.OrderNo, err)
				}
			}
			if missing.IsPositive() {
				err := cp.records.RecordShortageTx(ctx, tx,
					in.Header.OrderNo, line.LineID, line.WarehouseID,
					line.ItemCode, missing)
				if err != nil {
					return fmt.Errorf("completing %s: %w", in.Header.OrderNo, err)
				}
				shortages++
			}
		}

		if _, err := tx.ExecContext(ctx,
			"DELETE FROM pick_queue WHERE order_id = ?", in.OrderID); err != nil {
			return fmt.Errorf("clearing pick queue: %w", err)
		}
		now := time.Now().UTC().Format(time.RFC3339)
		if _, err := tx.ExecContext(ctx, `
            INSERT INTO user_activity (username, action, details, order_no, created_at)
            VALUES (?,?,?,?,?)`,
			in.Username, "ORDER_COMPLETED",
			fmt.Sprintf("packages: %d, shortages: %d", in.Header.PkgsTotal, shortages),
			in.Header.OrderNo, now); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		result.Message = err.Error()
		return result, err
	}
	result.TripID = tripID
	result.PackagesCreated = in.Header.PkgsTotal
	result.Shortages = shortages

	cp.log.Info("order completed",
		"order", in.Header.OrderNo, "by", in.Username,
		"packages", in.Header.PkgsTotal, "shortages", result.Shortages)
	result.OK = true
	result.Message = fmt.Sprintf("order %s completed", in.Header.OrderNo)
	return result, nil
}

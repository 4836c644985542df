// Package shipment manages trip headers and their package rows: header
// upsert and closing, package-count reconciliation, and the exactly-once
// load transition recorded from the scanning stations.
package shipment

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shipfloor/shipfloor/internal/pool"
	"github.com/shipfloor/shipfloor/pkg/types"
)

// Headers owns the shipment_header lifecycle. One row per
// (order, trip date); headers are upserted, closed, and listed, never
// deleted.
type Headers struct {
	pool *pool.Pool
	log  *slog.Logger
}

func NewHeaders(p *pool.Pool, log *slog.Logger) *Headers {
	if log == nil {
		log = slog.Default()
	}
	return &Headers{pool: p, log: log}
}

// HeaderInput carries the fields written on header upsert.
type HeaderInput struct {
	OrderNo      string
	TripDate     string // YYYY-MM-DD
	PkgsTotal    int
	CustomerCode string
	CustomerName string
	Region       string
	Address      string
	InvoiceRoot  string
}

// Upsert inserts or updates the header for (trip date, order). On update
// the declared package count and customer fields are refreshed and the trip
// re-opened, while invoice_root, qr_token, and pkgs_original keep their
// first-written values. The package set is synchronized to the new count in
// the same transaction; a sync failure rolls the header write back.
func (h *Headers) Upsert(ctx context.Context, in HeaderInput) (tripID int64, err error) {
	sync := NewSynchronizer(h.pool, h.log)
	var res types.SyncResult

	err = h.pool.WithConn(ctx, func(c *pool.Conn) error {
		tx, err := c.BeginTx(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		tripID, err = h.upsert(ctx, tx, in)
		if err != nil {
			return err
		}
		if err := sync.apply(ctx, tx, tripID, in.PkgsTotal, &res); err != nil {
			return fmt.Errorf("package sync for %s: %w", in.OrderNo, err)
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, err
	}
	for _, change := range res.Changes {
		h.log.Debug("package set updated", "order", in.OrderNo, "change", change)
	}
	return tripID, nil
}

// upsert writes the header row against q and returns its id. Used by both
// Upsert and the completion pipeline's transaction.
func (h *Headers) upsert(ctx context.Context, q pool.Querier, in HeaderInput) (int64, error) {
	if in.PkgsTotal <= 0 || in.PkgsTotal > types.MaxPackages {
		return 0, fmt.Errorf("%w: pkgs_total %d outside 1..%d",
			types.ErrInvalidPackageCount, in.PkgsTotal, types.MaxPackages)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := q.ExecContext(ctx, `
        INSERT INTO shipment_header
            (trip_date, order_no, pkgs_total, pkgs_original,
             customer_code, customer_name, region, address1,
             invoice_root, qr_token, created_at)
        VALUES (?,?,?,?,?,?,?,?,?,?,?)
        ON CONFLICT (trip_date, order_no) DO UPDATE SET
            pkgs_total    = excluded.pkgs_total,
            customer_code = excluded.customer_code,
            customer_name = excluded.customer_name,
            region        = excluded.region,
            address1      = excluded.address1,
            closed        = 0,
            invoice_root  = CASE WHEN shipment_header.invoice_root = ''
                                 THEN excluded.invoice_root
                                 ELSE shipment_header.invoice_root END,
            pkgs_original = COALESCE(shipment_header.pkgs_original, excluded.pkgs_original)`,
		in.TripDate, in.OrderNo, in.PkgsTotal, in.PkgsTotal,
		in.CustomerCode, in.CustomerName, in.Region, in.Address,
		in.InvoiceRoot, uuid.NewString(), now,
	)
	if err != nil {
		return 0, fmt.Errorf("upserting header: %w", err)
	}

	var tripID int64
	err = q.QueryRowContext(ctx,
		"SELECT id FROM shipment_header WHERE trip_date = ? AND order_no = ?",
		in.TripDate, in.OrderNo,
	).Scan(&tripID)
	if err != nil {
		return 0, fmt.Errorf("reading header id: %w", err)
	}
	return tripID, nil
}

// Close marks the trip closed, stamps loaded_at, and records an activity
// row that distinguishes a fully loaded closure from an incomplete one.
func (h *Headers) Close(ctx context.Context, tripID int64, username string) error {
	return h.pool.WithConn(ctx, func(c *pool.Conn) error {
		now := time.Now().UTC().Format(time.RFC3339)
		res, err := c.ExecContext(ctx,
			"UPDATE shipment_header SET closed = 1, loaded_at = ? WHERE id = ?",
			now, tripID)
		if err != nil {
			return fmt.Errorf("closing trip %d: %w", tripID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("trip %d: %w", tripID, types.ErrNotFound)
		}

		var loaded, total int
		var orderNo string
		err = c.QueryRowContext(ctx,
			"SELECT pkgs_loaded, pkgs_total, order_no FROM shipment_header WHERE id = ?",
			tripID,
		).Scan(&loaded, &total, &orderNo)
		if err != nil {
			return fmt.Errorf("reading closed trip %d: %w", tripID, err)
		}

		action := "TRIP_AUTO_CLOSED"
		if loaded != total {
			action = "TRIP_MANUAL_CLOSED_INCOMPLETE"
		}
		_, err = c.ExecContext(ctx, `
            INSERT INTO user_activity (username, action, details, order_no, created_at)
            VALUES (?,?,?,?,?)`,
			username, action, fmt.Sprintf("%d/%d", loaded, total), orderNo, now)
		if err != nil {
			return fmt.Errorf("recording trip closure: %w", err)
		}
		return nil
	})
}

// ByBarcode finds the oldest open, not-fully-loaded header for an invoice
// root, optionally restricted to a creation day (YYYY-MM-DD).
func (h *Headers) ByBarcode(ctx context.Context, invoiceRoot, day string) (*types.TripHeader, error) {
	query := `
        SELECT id, pkgs_total, pkgs_loaded, order_no, trip_date
          FROM shipment_header
         WHERE invoice_root = ? AND closed = 0 AND pkgs_loaded < pkgs_total`
	args := []any{invoiceRoot}
	if day != "" {
		query += " AND date(created_at) = ?"
		args = append(args, day)
	}
	query += " ORDER BY id LIMIT 1"

	var hdr types.TripHeader
	err := h.pool.WithConn(ctx, func(c *pool.Conn) error {
		err := c.QueryRowContext(ctx, query, args...).Scan(
			&hdr.ID, &hdr.PkgsTotal, &hdr.PkgsLoaded, &hdr.OrderNo, &hdr.TripDate)
		if err == sql.ErrNoRows {
			return fmt.Errorf("invoice root %q: %w", invoiceRoot, types.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("looking up trip by barcode: %w", err)
		}
		hdr.InvoiceRoot = invoiceRoot
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &hdr, nil
}

// List returns the headers for one trip date, newest first.
func (h *Headers) List(ctx context.Context, tripDate string) ([]types.TripHeader, error) {
	return h.list(ctx,
		"WHERE trip_date = ?", tripDate)
}

// ListRange returns the headers between two trip dates inclusive.
func (h *Headers) ListRange(ctx context.Context, start, end string) ([]types.TripHeader, error) {
	return h.list(ctx,
		"WHERE trip_date BETWEEN ? AND ?", start, end)
}

func (h *Headers) list(ctx context.Context, where string, args ...any) ([]types.TripHeader, error) {
	var out []types.TripHeader
	err := h.pool.WithConn(ctx, func(c *pool.Conn) error {
		rows, err := c.QueryContext(ctx, `
            SELECT id, trip_date, order_no, customer_code, customer_name,
                   region, address1, pkgs_total, pkgs_loaded, closed,
                   invoice_root, qr_token
              FROM shipment_header `+where+`
             ORDER BY id DESC`, args...)
		if err != nil {
			return fmt.Errorf("listing headers: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var hd types.TripHeader
			var closed int
			if err := rows.Scan(&hd.ID, &hd.TripDate, &hd.OrderNo,
				&hd.CustomerCode, &hd.CustomerName, &hd.Region, &hd.Address,
				&hd.PkgsTotal, &hd.PkgsLoaded, &closed,
				&hd.InvoiceRoot, &hd.QRToken); err != nil {
				return fmt.Errorf("scanning header: %w", err)
			}
			hd.Closed = closed == 1
			out = append(out, hd)
		}
		return rows.Err()
	})
	return out, err
}

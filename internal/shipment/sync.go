package shipment

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/shipfloor/shipfloor/internal/pool"
	"github.com/shipfloor/shipfloor/pkg/types"
)

// Synchronizer reconciles a trip's package rows to a declared total without
// ever discarding physically confirmed work. The whole reconciliation runs
// in one transaction: either every insert/delete lands or none does.
type Synchronizer struct {
	pool *pool.Pool
	log  *slog.Logger
}

func NewSynchronizer(p *pool.Pool, log *slog.Logger) *Synchronizer {
	if log == nil {
		log = slog.Default()
	}
	return &Synchronizer{pool: p, log: log}
}

// Sync brings the package set of tripID to exactly {1..newTotal}.
//
// Hard guard: a newTotal below the highest loaded package number is
// rejected outright with ErrInvalidPackageCount and no mutation. Missing
// numbers are inserted unloaded; extras are deleted only while unloaded —
// a loaded extra aborts the transaction with ErrIntegrityViolation.
// Calling Sync twice with the same total on an unchanged trip yields an
// empty change list.
func (s *Synchronizer) Sync(ctx context.Context, tripID int64, newTotal int) (types.SyncResult, error) {
	result := types.SyncResult{OK: true}

	if newTotal <= 0 || newTotal > types.MaxPackages {
		result.OK = false
		result.Message = fmt.Sprintf("package count %d outside 1..%d", newTotal, types.MaxPackages)
		return result, fmt.Errorf("%s: %w", result.Message, types.ErrInvalidPackageCount)
	}

	err := s.pool.WithConn(ctx, func(c *pool.Conn) error {
		tx, err := c.BeginTx(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if err := s.apply(ctx, tx, tripID, newTotal, &result); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		if result.Message == "" {
			result.OK = false
			result.Message = err.Error()
		}
		return result, err
	}

	if len(result.Changes) > 0 {
		result.Message = fmt.Sprintf("packages updated: %d changes", len(result.Changes))
	} else {
		result.Message = "no changes, packages already in sync"
	}
	return result, nil
}

// apply runs the reconciliation statements against q, which is either
// Sync's own transaction or one owned by a larger pipeline. The caller has
// already validated newTotal.
func (s *Synchronizer) apply(ctx context.Context, q pool.Querier, tripID int64, newTotal int, result *types.SyncResult) error {
	var totalRows, loadedCount, maxLoaded int
	err := q.QueryRowContext(ctx, `
            SELECT COUNT(*),
                   COALESCE(SUM(loaded), 0),
                   COALESCE(MAX(CASE WHEN loaded = 1 THEN pkg_no END), 0)
              FROM shipment_loaded
             WHERE trip_id = ?`, tripID,
		).Scan(&totalRows, &loadedCount, &maxLoaded)
	if err != nil {
		return fmt.Errorf("reading package state: %w", err)
	}
	result.LoadedCount = loadedCount

	// The watermark is the loaded package NUMBER, not the count.
	if newTotal < maxLoaded {
		result.OK = false
		result.Message = fmt.Sprintf(
			"package #%d is already loaded; at least %d packages required", maxLoaded, maxLoaded)
		return fmt.Errorf("%s: %w", result.Message, types.ErrInvalidPackageCount)
	}

	existing := make(map[int]bool) // pkg_no -> loaded
	rows, err := q.QueryContext(ctx,
		"SELECT pkg_no, loaded FROM shipment_loaded WHERE trip_id = ? ORDER BY pkg_no", tripID)
	if err != nil {
		return fmt.Errorf("listing packages: %w", err)
	}
	for rows.Next() {
		var no, loaded int
		if err := rows.Scan(&no, &loaded); err != nil {
			rows.Close()
			return fmt.Errorf("scanning package row: %w", err)
		}
		existing[no] = loaded == 1
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	// Fill the gaps: every expected number without a row.
	var missing []int
	for no := 1; no <= newTotal; no++ {
		if _, ok := existing[no]; !ok {
			missing = append(missing, no)
		}
	}
	for _, no := range missing {
		_, err := q.ExecContext(ctx, `
            INSERT INTO shipment_loaded (trip_id, pkg_no, loaded, loaded_by, loaded_time)
            VALUES (?, ?, 0, NULL, NULL)`, tripID, no)
		if err != nil {
			return fmt.Errorf("inserting package %d: %w", no, err)
		}
		result.Changes = append(result.Changes, fmt.Sprintf("package #%d created", no))
	}

	// Drop the extras, unloaded ones only. A loaded extra is a
	// conflict that must surface, not be resolved silently.
	var extras []int
	for no := range existing {
		if no > newTotal {
			extras = append(extras, no)
		}
	}
	sort.Ints(extras)
	for _, no := range extras {
		if existing[no] {
			result.OK = false
			result.Message = fmt.Sprintf("package #%d is loaded and cannot be deleted", no)
			return fmt.Errorf("%s: %w", result.Message, types.ErrIntegrityViolation)
		}
		_, err := q.ExecContext(ctx,
			"DELETE FROM shipment_loaded WHERE trip_id = ? AND pkg_no = ?", tripID, no)
		if err != nil {
			return fmt.Errorf("deleting package %d: %w", no, err)
		}
		result.Changes = append(result.Changes, fmt.Sprintf("package #%d deleted", no))
	}
	return nil
}

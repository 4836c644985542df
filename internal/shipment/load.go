package shipment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shipfloor/shipfloor/internal/pool"
	"github.com/shipfloor/shipfloor/pkg/types"
)

// Recorder records "package N of trip T has been physically loaded" exactly
// once across concurrently scanning stations. The decision is a single
// conditional upsert; its affected-row count is the race arbiter, never a
// separate check-then-update.
type Recorder struct {
	pool *pool.Pool
	log  *slog.Logger
}

func NewRecorder(p *pool.Pool, log *slog.Logger) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{pool: p, log: log}
}

// Load transitions (tripID, pkgNo) to loaded. The first successful caller
// observes NewlyLoaded and pkgs_loaded moves by exactly one; every other
// caller observes AlreadyLoaded with no state change. A missing row is
// inserted pre-loaded. itemCode optionally marks the matching cumulative
// shipment line as loaded; pass "" to skip.
func (r *Recorder) Load(ctx context.Context, tripID int64, pkgNo int, operator, itemCode string) (types.LoadOutcome, error) {
	if pkgNo <= 0 || pkgNo > types.MaxPackages {
		return types.AlreadyLoaded, fmt.Errorf("%w: package number %d outside 1..%d",
			types.ErrInvalidPackageCount, pkgNo, types.MaxPackages)
	}

	outcome := types.AlreadyLoaded
	err := r.pool.WithConn(ctx, func(c *pool.Conn) error {
		tx, err := c.BeginTx(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		now := time.Now().UTC().Format(time.RFC3339)
		res, err := tx.ExecContext(ctx, `
            INSERT INTO shipment_loaded (trip_id, pkg_no, loaded, loaded_by, loaded_time)
            VALUES (?, ?, 1, ?, ?)
            ON CONFLICT (trip_id, pkg_no) DO UPDATE SET
                loaded      = 1,
                loaded_by   = excluded.loaded_by,
                loaded_time = excluded.loaded_time
            WHERE shipment_loaded.loaded = 0`,
			tripID, pkgNo, operator, now)
		if err != nil {
			return fmt.Errorf("recording load: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("reading affected rows: %w", err)
		}
		if n == 0 {
			// Duplicate scan: defined outcome, nothing to commit.
			return tx.Commit()
		}

		if _, err := tx.ExecContext(ctx,
			"UPDATE shipment_header SET pkgs_loaded = pkgs_loaded + 1 WHERE id = ?",
			tripID); err != nil {
			return fmt.Errorf("bumping pkgs_loaded: %w", err)
		}

		if itemCode != "" {
			_, err := tx.ExecContext(ctx, `
                UPDATE shipment_lines SET loaded = 1
                 WHERE order_no = (SELECT order_no FROM shipment_header WHERE id = ?)
                   AND item_code = ?`, tripID, itemCode)
			if err != nil {
				return fmt.Errorf("marking shipment line loaded: %w", err)
			}
		}

		if err := tx.Commit(); err != nil {
			return err
		}
		outcome = types.NewlyLoaded
		return nil
	})
	if err != nil {
		return types.AlreadyLoaded, err
	}
	if outcome == types.NewlyLoaded {
		r.log.Info("package loaded", "trip", tripID, "pkg", pkgNo, "by", operator)
	} else {
		r.log.Debug("duplicate package scan", "trip", tripID, "pkg", pkgNo, "by", operator)
	}
	return outcome, nil
}

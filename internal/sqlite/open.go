package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	_ "modernc.org/sqlite"

	"github.com/shipfloor/shipfloor/pkg/types"
)

// Dial retry bounds. The backoff doubles per attempt starting at
// dialBackoff; after dialAttempts failures the error surfaces as
// types.ErrConnectivity.
const (
	dialAttempts = 3
	dialBackoff  = 500 * time.Millisecond
)

// DSN builds the driver DSN for path. busy_timeout keeps concurrent
// single-statement writers from failing with SQLITE_BUSY; WAL lets readers
// proceed during a write.
func DSN(path string) string {
	return fmt.Sprintf("file:%s?%s", path, url.Values{
		"_pragma": []string{
			"busy_timeout(10000)",
			"journal_mode(WAL)",
			"foreign_keys(1)",
		},
	}.Encode())
}

// OpenConn opens one pinned database handle: a *sql.DB capped at a single
// underlying connection, so the pool above it hands out exclusive handles.
// The handle is pinged within connTimeout before being returned.
func OpenConn(ctx context.Context, path string, connTimeout time.Duration) (*sql.DB, error) {
	db, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pingCtx, cancel := context.WithTimeout(ctx, connTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// OpenConnRetry dials with bounded retries and backoff before surfacing a
// fatal connectivity error.
func OpenConnRetry(ctx context.Context, path string, connTimeout time.Duration, log *slog.Logger) (*sql.DB, error) {
	if log == nil {
		log = slog.Default()
	}

	var lastErr error
	backoff := dialBackoff
	for attempt := 1; attempt <= dialAttempts; attempt++ {
		db, err := OpenConn(ctx, path, connTimeout)
		if err == nil {
			return db, nil
		}
		lastErr = err
		log.Warn("database dial failed",
			"attempt", attempt, "of", dialAttempts, "error", err)

		if attempt == dialAttempts {
			break
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", types.ErrConnectivity, ctx.Err())
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("%w: %v", types.ErrConnectivity, lastErr)
}

// EnsureSchema creates the fulfillment tables and indexes if missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, ddl := range schemaDDL {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	for _, ddl := range indexDDL {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

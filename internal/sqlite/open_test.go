package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shipfloor/shipfloor/pkg/types"
)

func TestDSNCarriesPragmas(t *testing.T) {
	dsn := DSN("warehouse.db")
	for _, want := range []string{"busy_timeout", "journal_mode", "foreign_keys"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("DSN missing pragma %q: %s", want, dsn)
		}
	}
}

func TestEnsureSchemaIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db, err := OpenConn(ctx, filepath.Join(t.TempDir(), "schema.db"), 5*time.Second)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	if err := EnsureSchema(ctx, db); err != nil {
		t.Fatalf("first EnsureSchema: %v", err)
	}
	if err := EnsureSchema(ctx, db); err != nil {
		t.Fatalf("second EnsureSchema: %v", err)
	}

	tables := []string{
		"shipment_header", "shipment_loaded", "backorders", "shipment_lines",
		"pick_queue", "barcode_xref", "warehouse_prefix", "stock_levels",
		"user_activity",
	}
	for _, table := range tables {
		var name string
		err := db.QueryRowContext(ctx,
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
			table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not created: %v", table, err)
		}
	}
}

func TestOpenConnRetrySurfacesConnectivityError(t *testing.T) {
	ctx := context.Background()
	_, err := OpenConnRetry(ctx,
		filepath.Join(t.TempDir(), "no-such-dir", "x.db"), time.Second, nil)
	if !errors.Is(err, types.ErrConnectivity) {
		t.Fatalf("expected ErrConnectivity, got %v", err)
	}
}

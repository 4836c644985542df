package shipment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shipfloor/shipfloor/pkg/types"
)

func TestUpsertCreatesHeaderAndPackages(t *testing.T) {
	p := newTestPool(t)
	h := NewHeaders(p, nil)
	ctx := context.Background()

	tripID, err := h.Upsert(ctx, testHeader("ORD-1", 3))
	require.NoError(t, err)
	require.Greater(t, tripID, int64(0))

	require.Equal(t, 3, queryInt(t, p,
		"SELECT COUNT(*) FROM shipment_loaded WHERE trip_id = ?", tripID))
	require.Equal(t, 0, queryInt(t, p,
		"SELECT COALESCE(SUM(loaded), 0) FROM shipment_loaded WHERE trip_id = ?", tripID))
	require.NotEmpty(t, queryString(t, p,
		"SELECT qr_token FROM shipment_header WHERE id = ?", tripID))
}

func TestUpsertIsOneRowPerOrderAndDate(t *testing.T) {
	p := newTestPool(t)
	h := NewHeaders(p, nil)
	ctx := context.Background()

	first, err := h.Upsert(ctx, testHeader("ORD-1", 3))
	require.NoError(t, err)
	second, err := h.Upsert(ctx, testHeader("ORD-1", 5))
	require.NoError(t, err)
	require.Equal(t, first, second)

	require.Equal(t, 1, queryInt(t, p,
		"SELECT COUNT(*) FROM shipment_header WHERE order_no = 'ORD-1'"))
	require.Equal(t, 5, queryInt(t, p,
		"SELECT pkgs_total FROM shipment_header WHERE id = ?", first))
}

func TestUpsertPreservesFirstWrittenFields(t *testing.T) {
	p := newTestPool(t)
	h := NewHeaders(p, nil)
	ctx := context.Background()

	in := testHeader("ORD-1", 3)
	in.InvoiceRoot = "INV-FIRST"
	tripID, err := h.Upsert(ctx, in)
	require.NoError(t, err)
	firstToken := queryString(t, p,
		"SELECT qr_token FROM shipment_header WHERE id = ?", tripID)

	in.InvoiceRoot = "INV-SECOND"
	in.PkgsTotal = 7
	_, err = h.Upsert(ctx, in)
	require.NoError(t, err)

	require.Equal(t, "INV-FIRST", queryString(t, p,
		"SELECT invoice_root FROM shipment_header WHERE id = ?", tripID))
	require.Equal(t, firstToken, queryString(t, p,
		"SELECT qr_token FROM shipment_header WHERE id = ?", tripID))
	require.Equal(t, 3, queryInt(t, p,
		"SELECT pkgs_original FROM shipment_header WHERE id = ?", tripID))
	require.Equal(t, 7, queryInt(t, p,
		"SELECT pkgs_total FROM shipment_header WHERE id = ?", tripID))
}

func TestUpsertReopensClosedTrip(t *testing.T) {
	p := newTestPool(t)
	h := NewHeaders(p, nil)
	ctx := context.Background()

	tripID, err := h.Upsert(ctx, testHeader("ORD-1", 2))
	require.NoError(t, err)
	require.NoError(t, h.Close(ctx, tripID, "dispatcher"))
	require.Equal(t, 1, queryInt(t, p,
		"SELECT closed FROM shipment_header WHERE id = ?", tripID))

	_, err = h.Upsert(ctx, testHeader("ORD-1", 2))
	require.NoError(t, err)
	require.Equal(t, 0, queryInt(t, p,
		"SELECT closed FROM shipment_header WHERE id = ?", tripID))
}

func TestUpsertRejectsBadCount(t *testing.T) {
	p := newTestPool(t)
	h := NewHeaders(p, nil)
	ctx := context.Background()

	for _, pkgs := range []int{0, -1, types.MaxPackages + 1} {
		_, err := h.Upsert(ctx, testHeader("ORD-1", pkgs))
		require.ErrorIs(t, err, types.ErrInvalidPackageCount, "pkgs=%d", pkgs)
	}
	require.Equal(t, 0, queryInt(t, p, "SELECT COUNT(*) FROM shipment_header"))
}

func TestCloseRecordsActivity(t *testing.T) {
	p := newTestPool(t)
	h := NewHeaders(p, nil)
	rec := NewRecorder(p, nil)
	ctx := context.Background()

	t.Run("incomplete closure", func(t *testing.T) {
		tripID, err := h.Upsert(ctx, testHeader("ORD-1", 2))
		require.NoError(t, err)
		require.NoError(t, h.Close(ctx, tripID, "dispatcher"))

		action := queryString(t, p,
			"SELECT action FROM user_activity WHERE order_no = 'ORD-1' ORDER BY id DESC LIMIT 1")
		require.Equal(t, "TRIP_MANUAL_CLOSED_INCOMPLETE", action)
	})

	t.Run("fully loaded closure", func(t *testing.T) {
		tripID, err := h.Upsert(ctx, testHeader("ORD-2", 2))
		require.NoError(t, err)
		for pkg := 1; pkg <= 2; pkg++ {
			_, err := rec.Load(ctx, tripID, pkg, "scanner-1", "")
			require.NoError(t, err)
		}
		require.NoError(t, h.Close(ctx, tripID, "dispatcher"))

		action := queryString(t, p,
			"SELECT action FROM user_activity WHERE order_no = 'ORD-2' ORDER BY id DESC LIMIT 1")
		require.Equal(t, "TRIP_AUTO_CLOSED", action)
	})

	t.Run("unknown trip", func(t *testing.T) {
		err := h.Close(ctx, 99999, "dispatcher")
		require.ErrorIs(t, err, types.ErrNotFound)
	})
}

func TestByBarcode(t *testing.T) {
	p := newTestPool(t)
	h := NewHeaders(p, nil)
	rec := NewRecorder(p, nil)
	ctx := context.Background()

	_, err := h.ByBarcode(ctx, "INV-NONE", "")
	require.ErrorIs(t, err, types.ErrNotFound)

	in := testHeader("ORD-1", 2)
	in.InvoiceRoot = "INV-X"
	tripID, err := h.Upsert(ctx, in)
	require.NoError(t, err)

	got, err := h.ByBarcode(ctx, "INV-X", "")
	require.NoError(t, err)
	require.Equal(t, tripID, got.ID)
	require.Equal(t, "ORD-1", got.OrderNo)

	// Fully loaded trips stop matching.
	for pkg := 1; pkg <= 2; pkg++ {
		_, err := rec.Load(ctx, tripID, pkg, "scanner-1", "")
		require.NoError(t, err)
	}
	_, err = h.ByBarcode(ctx, "INV-X", "")
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestListRange(t *testing.T) {
	p := newTestPool(t)
	h := NewHeaders(p, nil)
	ctx := context.Background()

	for i, date := range []string{"2026-03-01", "2026-03-02", "2026-03-05"} {
		in := testHeader("ORD-1", 1)
		in.OrderNo = in.OrderNo + string(rune('A'+i))
		in.TripDate = date
		_, err := h.Upsert(ctx, in)
		require.NoError(t, err)
	}

	day, err := h.List(ctx, "2026-03-02")
	require.NoError(t, err)
	require.Len(t, day, 1)

	ranged, err := h.ListRange(ctx, "2026-03-01", "2026-03-02")
	require.NoError(t, err)
	require.Len(t, ranged, 2)
}

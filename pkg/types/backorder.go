package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Backorder is a recorded shortage for one (order, item) pair awaiting
// stock. At most one open (unfulfilled) row exists per pair; recording the
// same pair again replaces QtyMissing, it does not accumulate it.
type Backorder struct {
	ID          int64
	OrderNo     string
	LineID      int64
	WarehouseID int
	ItemCode    string
	QtyMissing  decimal.Decimal
	Fulfilled   bool
	CreatedAt   time.Time
	FulfilledAt *time.Time
}

// ShipmentLine is the cumulative shipped quantity per (trip date, order,
// item). QtySent grows additively as partial shipments occur.
type ShipmentLine struct {
	ID          int64
	TripDate    string
	OrderNo     string
	ItemCode    string
	WarehouseID int
	InvoicedQty decimal.Decimal
	QtySent     decimal.Decimal
	Loaded      bool
}

// Fulfillment describes one closed backorder group, emitted to the
// reconciler's notifier.
type Fulfillment struct {
	OrderNo     string
	ItemCode    string
	WarehouseID int
	QtyClosed   decimal.Decimal
}

package types

import "github.com/shopspring/decimal"

// PickLine is one (order, item, warehouse) line of the persistent pick
// queue. QtyOrdered is immutable once the order is picked; QtySent only
// moves through atomic increments.
type PickLine struct {
	OrderID     int64
	ItemCode    string
	WarehouseID int
	QtyOrdered  decimal.Decimal
	QtySent     decimal.Decimal
}

// Remaining returns the quantity still to be picked.
func (l PickLine) Remaining() decimal.Decimal {
	return l.QtyOrdered.Sub(l.QtySent)
}

// Match is a resolved barcode: the order line it maps to and the quantity
// multiplier carried by the barcode (1 unless a cross-reference says
// otherwise).
type Match struct {
	Line       PickLine
	Multiplier decimal.Decimal
}

// ScanResult reports a guarded pick increment.
type ScanResult struct {
	OK         bool
	Message    string
	OrderID    int64
	ItemCode   string
	NewQtySent decimal.Decimal
}

// Package sqlite opens database handles for the fulfillment core and owns
// the schema DDL. All statements use IF NOT EXISTS so bootstrap is
// idempotent against an existing database.
package sqlite

// Schema DDL for the fulfillment tables.
const (
	createShipmentHeader = `CREATE TABLE IF NOT EXISTS shipment_header (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    trip_date      TEXT    NOT NULL,
    order_no       TEXT    NOT NULL,
    customer_code  TEXT    DEFAULT '',
    customer_name  TEXT    DEFAULT '',
    region         TEXT    DEFAULT '',
    address1       TEXT    DEFAULT '',
    pkgs_total     INTEGER NOT NULL,
    pkgs_original  INTEGER,
    pkgs_loaded    INTEGER NOT NULL DEFAULT 0,
    closed         INTEGER NOT NULL DEFAULT 0,
    loaded_at      TEXT,
    invoice_root   TEXT    DEFAULT '',
    qr_token       TEXT    DEFAULT '',
    created_at     TEXT    NOT NULL,
    UNIQUE (trip_date, order_no)
);`

	createShipmentLoaded = `CREATE TABLE IF NOT EXISTS shipment_loaded (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    trip_id     INTEGER NOT NULL REFERENCES shipment_header(id),
    pkg_no      INTEGER NOT NULL,
    loaded      INTEGER NOT NULL DEFAULT 0,
    loaded_by   TEXT,
    loaded_time TEXT,
    UNIQUE (trip_id, pkg_no)
);`

	createBackorders = `CREATE TABLE IF NOT EXISTS backorders (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    order_no     TEXT    NOT NULL,
    line_id      INTEGER NOT NULL DEFAULT 0,
    warehouse_id INTEGER NOT NULL,
    item_code    TEXT    NOT NULL,
    qty_missing  REAL    NOT NULL,
    fulfilled    INTEGER NOT NULL DEFAULT 0,
    created_at   TEXT    NOT NULL,
    fulfilled_at TEXT,
    last_update  TEXT    NOT NULL
);`

	createShipmentLines = `CREATE TABLE IF NOT EXISTS shipment_lines (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    trip_date    TEXT    NOT NULL,
    order_no     TEXT    NOT NULL,
    item_code    TEXT    NOT NULL,
    warehouse_id INTEGER NOT NULL DEFAULT 0,
    invoiced_qty REAL    NOT NULL DEFAULT 0,
    qty_sent     REAL    NOT NULL DEFAULT 0,
    loaded       INTEGER NOT NULL DEFAULT 0,
    last_update  TEXT    NOT NULL,
    UNIQUE (trip_date, order_no, item_code)
);`

	createPickQueue = `CREATE TABLE IF NOT EXISTS pick_queue (
    order_id     INTEGER NOT NULL,
    item_code    TEXT    NOT NULL,
    warehouse_id INTEGER NOT NULL DEFAULT 0,
    qty_ordered  REAL    NOT NULL,
    qty_sent     REAL    NOT NULL DEFAULT 0,
    PRIMARY KEY (order_id, item_code)
);`

	createBarcodeXref = `CREATE TABLE IF NOT EXISTS barcode_xref (
    barcode      TEXT    NOT NULL,
    warehouse_id INTEGER,
    item_code    TEXT    NOT NULL,
    multiplier   REAL    NOT NULL DEFAULT 1
);`

	createWarehousePrefix = `CREATE TABLE IF NOT EXISTS warehouse_prefix (
    warehouse_id INTEGER PRIMARY KEY,
    prefix       TEXT    NOT NULL
);`

	createStockLevels = `CREATE TABLE IF NOT EXISTS stock_levels (
    warehouse_id INTEGER NOT NULL,
    item_code    TEXT    NOT NULL,
    onhand       REAL    NOT NULL DEFAULT 0,
    PRIMARY KEY (warehouse_id, item_code)
);`

	createUserActivity = `CREATE TABLE IF NOT EXISTS user_activity (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    username   TEXT NOT NULL,
    action     TEXT NOT NULL,
    details    TEXT DEFAULT '',
    order_no   TEXT DEFAULT '',
    created_at TEXT NOT NULL
);`
)

// Index DDL for the hot lookups.
const (
	idxHeaderRoot     = `CREATE INDEX IF NOT EXISTS idx_header_invoice_root ON shipment_header(invoice_root, closed);`
	idxLoadedTrip     = `CREATE INDEX IF NOT EXISTS idx_loaded_trip ON shipment_loaded(trip_id);`
	idxBackordersOpen = `CREATE INDEX IF NOT EXISTS idx_backorders_open ON backorders(fulfilled, order_no, item_code);`
	idxXrefBarcode    = `CREATE INDEX IF NOT EXISTS idx_xref_barcode ON barcode_xref(barcode, warehouse_id);`
)

// schemaDDL lists all CREATE TABLE statements in dependency order.
var schemaDDL = []string{
	createShipmentHeader,
	createShipmentLoaded,
	createBackorders,
	createShipmentLines,
	createPickQueue,
	createBarcodeXref,
	createWarehousePrefix,
	createStockLevels,
	createUserActivity,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxHeaderRoot,
	idxLoadedTrip,
	idxBackordersOpen,
	idxXrefBarcode,
}

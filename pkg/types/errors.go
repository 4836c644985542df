package types

import "errors"

// Error taxonomy for the fulfillment core. Callers match with errors.Is;
// lower layers wrap these with fmt.Errorf("...: %w", err).
var (
	// ErrPoolExhausted is returned when a borrow times out because every
	// connection is in use.
	ErrPoolExhausted = errors.New("connection pool exhausted")

	// ErrConnectivity is returned once the bounded dial retries are spent.
	ErrConnectivity = errors.New("database connectivity failure")

	// ErrInvalidPackageCount rejects a declared package count below the
	// loaded watermark, non-positive, or above the sane ceiling.
	ErrInvalidPackageCount = errors.New("invalid package count")

	// ErrIntegrityViolation means a sync would have deleted a loaded
	// package; the whole operation is aborted with no partial mutation.
	ErrIntegrityViolation = errors.New("sync would delete a loaded package")

	// ErrOverScan means an increment would exceed the ordered quantity
	// plus the configured tolerance.
	ErrOverScan = errors.New("over-scan: quantity exceeds ordered plus tolerance")

	// ErrLineNotFound means the (order, item) pick line does not exist.
	ErrLineNotFound = errors.New("pick line not found")

	// ErrNotFound is the generic missing-row error.
	ErrNotFound = errors.New("not found")
)

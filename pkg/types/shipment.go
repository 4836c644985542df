package types

import "time"

// MaxPackages is the sane ceiling on a declared package count.
const MaxPackages = 9999

// TripHeader is one outbound shipment: one row per (order, trip date).
// Created when picking completes, mutated by package sync and closing,
// never deleted.
type TripHeader struct {
	ID           int64
	TripDate     string // YYYY-MM-DD
	OrderNo      string
	CustomerCode string
	CustomerName string
	Region       string
	Address      string
	PkgsTotal    int
	PkgsOriginal int
	PkgsLoaded   int
	Closed       bool
	LoadedAt     *time.Time
	InvoiceRoot  string
	QRToken      string
	CreatedAt    time.Time
}

// Package is one physical parcel within a trip, keyed by (trip, 1-based
// number). A loaded package is never deleted or renumbered.
type Package struct {
	TripID     int64
	PkgNo      int
	Loaded     bool
	LoadedBy   string
	LoadedTime *time.Time
}

// LoadOutcome is the result of recording a package scan. AlreadyLoaded is a
// defined outcome, not an error: it distinguishes a duplicate scan from a
// genuine failure.
type LoadOutcome int

const (
	NewlyLoaded LoadOutcome = iota
	AlreadyLoaded
)

func (o LoadOutcome) String() string {
	if o == NewlyLoaded {
		return "newly_loaded"
	}
	return "already_loaded"
}

// SyncResult reports a package-count reconciliation. Changes holds one
// human-readable line per insert or delete for logging; an unchanged trip
// yields an empty list.
type SyncResult struct {
	OK          bool
	Message     string
	LoadedCount int
	Changes     []string
}

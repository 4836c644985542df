package types

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds the tunables for the fulfillment core. Values map 1:1 to the
// configuration surface loaded by cmd/shipfloor (config.yaml plus
// environment overrides).
type Config struct {
	// DBPath is the SQLite database file. ":memory:" is accepted for tests.
	DBPath string `mapstructure:"db_path" yaml:"db_path"`

	// Pool sizing and timeouts.
	PoolMin       int           `mapstructure:"pool_min" yaml:"pool_min"`
	PoolMax       int           `mapstructure:"pool_max" yaml:"pool_max"`
	BorrowTimeout time.Duration `mapstructure:"borrow_timeout" yaml:"borrow_timeout"`
	ConnTimeout   time.Duration `mapstructure:"conn_timeout" yaml:"conn_timeout"`

	// OverScanTolerance is how far qty_sent may exceed qty_ordered before
	// a scan is rejected.
	OverScanTolerance decimal.Decimal `mapstructure:"-" yaml:"-"`

	// WatcherInterval is the period of the backorder reconciliation loop.
	WatcherInterval time.Duration `mapstructure:"watcher_interval" yaml:"watcher_interval"`

	// Barcode memo cache bounds.
	CacheSize int           `mapstructure:"cache_size" yaml:"cache_size"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
}

// Config validation errors.
var (
	ErrDBPathEmpty        = errors.New("db_path must not be empty")
	ErrPoolSizeInvalid    = errors.New("pool_min must be positive and pool_max >= pool_min")
	ErrTimeoutInvalid     = errors.New("timeouts must be positive")
	ErrIntervalInvalid    = errors.New("watcher_interval must be positive")
	ErrCacheBoundsInvalid = errors.New("cache_size and cache_ttl must be positive")
	ErrToleranceNegative  = errors.New("over_scan_tolerance must not be negative")
)

// DefaultConfig returns the defaults matching the historical deployment:
// a 2..10 connection pool, 30s borrow wait, 10s dial timeout, a 30 minute
// reconciliation interval, and a 500-entry / 5 minute barcode memo.
func DefaultConfig(dbPath string) Config {
	return Config{
		DBPath:            dbPath,
		PoolMin:           2,
		PoolMax:           10,
		BorrowTimeout:     30 * time.Second,
		ConnTimeout:       10 * time.Second,
		OverScanTolerance: decimal.Zero,
		WatcherInterval:   30 * time.Minute,
		CacheSize:         500,
		CacheTTL:          5 * time.Minute,
	}
}

// Validate checks that the Config is well-formed, returning a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.DBPath == "" {
		return ErrDBPathEmpty
	}
	if c.PoolMin <= 0 || c.PoolMax < c.PoolMin {
		return ErrPoolSizeInvalid
	}
	if c.BorrowTimeout <= 0 || c.ConnTimeout <= 0 {
		return ErrTimeoutInvalid
	}
	if c.WatcherInterval <= 0 {
		return ErrIntervalInvalid
	}
	if c.CacheSize <= 0 || c.CacheTTL <= 0 {
		return ErrCacheBoundsInvalid
	}
	if c.OverScanTolerance.IsNegative() {
		return ErrToleranceNegative
	}
	return nil
}

// Config loading for the shipfloor CLI.
package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/shipfloor/shipfloor/pkg/types"
)

const (
	configFileName = "shipfloor"
	configFileType = "yaml"
)

// Config keys. The DB_* environment aliases match the names the historical
// deployment already exports, so existing stations keep working.
const (
	cfgKeyDBPath        = "db_path"
	cfgKeyPoolMin       = "pool.min"
	cfgKeyPoolMax       = "pool.max"
	cfgKeyBorrowTimeout = "pool.borrow_timeout"
	cfgKeyConnTimeout   = "pool.conn_timeout"
	cfgKeyTolerance     = "scan.over_scan_tolerance"
	cfgKeyInterval      = "watcher.interval"
	cfgKeyCacheSize     = "cache.size"
	cfgKeyCacheTTL      = "cache.ttl"
)

var envAliases = map[string]string{
	cfgKeyDBPath:        "SHIPFLOOR_DB",
	cfgKeyPoolMin:       "DB_POOL_MIN_CONNECTIONS",
	cfgKeyPoolMax:       "DB_POOL_MAX_CONNECTIONS",
	cfgKeyBorrowTimeout: "DB_POOL_TIMEOUT",
	cfgKeyConnTimeout:   "DB_CONN_TIMEOUT",
	cfgKeyTolerance:     "SCAN_OVER_SCAN_TOLERANCE",
	cfgKeyInterval:      "BACKORDER_INTERVAL",
	cfgKeyCacheSize:     "BARCODE_CACHE_SIZE",
	cfgKeyCacheTTL:      "BARCODE_CACHE_TTL",
}

// loadConfig reads the config file (optional) and environment into a
// validated Config. Flag overrides are applied by the caller before
// validation.
func loadConfig(configFile, dbOverride string) (types.Config, error) {
	def := types.DefaultConfig("shipfloor.db")

	v := viper.New()
	v.SetDefault(cfgKeyDBPath, def.DBPath)
	v.SetDefault(cfgKeyPoolMin, def.PoolMin)
	v.SetDefault(cfgKeyPoolMax, def.PoolMax)
	v.SetDefault(cfgKeyBorrowTimeout, def.BorrowTimeout)
	v.SetDefault(cfgKeyConnTimeout, def.ConnTimeout)
	v.SetDefault(cfgKeyTolerance, 0.0)
	v.SetDefault(cfgKeyInterval, def.WatcherInterval)
	v.SetDefault(cfgKeyCacheSize, def.CacheSize)
	v.SetDefault(cfgKeyCacheTTL, def.CacheTTL)

	for key, env := range envAliases {
		if err := v.BindEnv(key, env); err != nil {
			return types.Config{}, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return types.Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType(configFileType)
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			// A missing default config file is not an error.
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return types.Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := types.Config{
		DBPath:            v.GetString(cfgKeyDBPath),
		PoolMin:           v.GetInt(cfgKeyPoolMin),
		PoolMax:           v.GetInt(cfgKeyPoolMax),
		BorrowTimeout:     durationOrSeconds(v, cfgKeyBorrowTimeout),
		ConnTimeout:       durationOrSeconds(v, cfgKeyConnTimeout),
		OverScanTolerance: decimal.NewFromFloat(v.GetFloat64(cfgKeyTolerance)),
		WatcherInterval:   durationOrSeconds(v, cfgKeyInterval),
		CacheSize:         v.GetInt(cfgKeyCacheSize),
		CacheTTL:          durationOrSeconds(v, cfgKeyCacheTTL),
	}
	if dbOverride != "" {
		cfg.DBPath = dbOverride
	}

	if err := cfg.Validate(); err != nil {
		return types.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// durationOrSeconds accepts either a Go duration string ("30s", "500ms") or
// a bare number of seconds, which is what the legacy environment variables
// carry. Only a value that parses as a bare integer gets the seconds
// interpretation.
func durationOrSeconds(v *viper.Viper, key string) time.Duration {
	if s := v.GetString(key); s != "" {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return v.GetDuration(key)
}

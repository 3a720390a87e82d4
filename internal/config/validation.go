package config

import (
	"fmt"

	"github.com/openmrkt/marketd/internal/core/currency"
	"github.com/openmrkt/marketd/internal/storage/marketstore"
	"github.com/openmrkt/marketd/internal/storage/saledb"
)

// Validate checks a loaded configuration for inconsistencies that would only
// surface later as runtime failures.
func Validate(cfg *Config) error {
	if cfg.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required")
	}
	if cfg.Server.QueryCacheSize < 0 {
		return fmt.Errorf("server.query_cache_size must not be negative")
	}

	if cfg.Market.Owner == "" {
		return fmt.Errorf("market.owner is required")
	}
	if !currency.ValidBps(cfg.Market.FeeBps) {
		return fmt.Errorf("market.fee_bps %d exceeds %d", cfg.Market.FeeBps, currency.MaxBps)
	}
	if cfg.Market.FeeBps > 0 && cfg.Market.FeeRecipient == "" {
		return fmt.Errorf("market.fee_recipient is required when market.fee_bps is set")
	}

	switch cfg.Store.Backend {
	case marketstore.BackendPebble, marketstore.BackendLevelDB, marketstore.BackendMemory:
	default:
		return fmt.Errorf("store.backend %q is not one of pebble, leveldb, memory", cfg.Store.Backend)
	}
	if cfg.Store.Backend != marketstore.BackendMemory && cfg.Store.Path == "" {
		return fmt.Errorf("store.path is required for backend %q", cfg.Store.Backend)
	}

	if cfg.SaleDB.Enabled {
		switch cfg.SaleDB.Driver {
		case saledb.DriverSQLite, saledb.DriverPostgres:
		default:
			return fmt.Errorf("sale_db.driver %q is not one of sqlite, postgres", cfg.SaleDB.Driver)
		}
		if cfg.SaleDB.DSN == "" {
			return fmt.Errorf("sale_db.dsn is required when sale_db.enabled is set")
		}
	}

	return nil
}

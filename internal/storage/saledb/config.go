// Package saledb records completed sales and the event journal in a
// relational database, for history queries that outlive the in-memory books.
// SQLite backs the default single-node deployment; PostgreSQL is available
// for shared setups.
package saledb

import (
	"fmt"
	"time"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds connection settings for the sale database.
type Config struct {
	Driver string
	// DSN is a file path for sqlite or a connection string for postgres.
	DSN string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	DefaultTimeout  time.Duration
}

// DefaultConfig returns a sqlite configuration writing to path.
func DefaultConfig(path string) Config {
	return Config{
		Driver:          DriverSQLite,
		DSN:             path,
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
		DefaultTimeout:  5 * time.Second,
	}
}

// DefaultConfigWith is DefaultConfig with an explicit driver and DSN.
func DefaultConfigWith(driver, dsn string) Config {
	cfg := DefaultConfig(dsn)
	cfg.Driver = driver
	return cfg
}

func (c Config) Validate() error {
	switch c.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("saledb: unsupported driver %q", c.Driver)
	}
	if c.DSN == "" {
		return fmt.Errorf("saledb: empty DSN")
	}
	if c.DefaultTimeout <= 0 {
		return fmt.Errorf("saledb: non-positive default timeout")
	}
	return nil
}

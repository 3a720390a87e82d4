// Package config loads marketd configuration from defaults, an optional TOML
// file, and MARKETD_-prefixed environment variables, in that priority order.
package config

import "time"

// Config is the complete marketd configuration.
type Config struct {
	Server ServerConfig `toml:"server" mapstructure:"server"`
	Market MarketConfig `toml:"market" mapstructure:"market"`
	Store  StoreConfig  `toml:"store" mapstructure:"store"`
	SaleDB SaleDBConfig `toml:"sale_db" mapstructure:"sale_db"`
	Log    LogConfig    `toml:"log" mapstructure:"log"`

	configPath string `toml:"-" mapstructure:"-"`
}

// GetConfigPath returns the path the configuration was loaded from, empty when
// running on defaults and environment only.
func (c *Config) GetConfigPath() string {
	return c.configPath
}

// ServerConfig covers the JSON-RPC and websocket listener.
type ServerConfig struct {
	ListenAddr string `toml:"listen_addr" mapstructure:"listen_addr"`
	// WebsocketEnabled turns the /ws event stream on.
	WebsocketEnabled bool `toml:"websocket_enabled" mapstructure:"websocket_enabled"`
	// QueryCacheSize is the LRU entry count for read query responses.
	// Zero disables the cache.
	QueryCacheSize  int           `toml:"query_cache_size" mapstructure:"query_cache_size"`
	ReadTimeout     time.Duration `toml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `toml:"write_timeout" mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// MarketConfig seeds the engine's admin configuration. FeeBps and the
// recipient can be changed at runtime by the owner.
type MarketConfig struct {
	Owner        string `toml:"owner" mapstructure:"owner"`
	FeeBps       uint32 `toml:"fee_bps" mapstructure:"fee_bps"`
	FeeRecipient string `toml:"fee_recipient" mapstructure:"fee_recipient"`
}

// StoreConfig covers the key-value book store.
type StoreConfig struct {
	Backend  string `toml:"backend" mapstructure:"backend"`
	Path     string `toml:"path" mapstructure:"path"`
	Compress bool   `toml:"compress" mapstructure:"compress"`
}

// SaleDBConfig covers the relational sale history.
type SaleDBConfig struct {
	Enabled bool   `toml:"enabled" mapstructure:"enabled"`
	Driver  string `toml:"driver" mapstructure:"driver"`
	DSN     string `toml:"dsn" mapstructure:"dsn"`
}

// LogConfig covers process logging.
type LogConfig struct {
	// Path of the JSON log file; empty logs to console only.
	Path  string `toml:"path" mapstructure:"path"`
	Debug bool   `toml:"debug" mapstructure:"debug"`
}

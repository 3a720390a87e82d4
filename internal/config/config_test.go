package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MARKETD_MARKET_OWNER", "admin")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7256", cfg.Server.ListenAddr)
	assert.True(t, cfg.Server.WebsocketEnabled)
	assert.Equal(t, 1024, cfg.Server.QueryCacheSize)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "pebble", cfg.Store.Backend)
	assert.True(t, cfg.Store.Compress)
	assert.Equal(t, "sqlite", cfg.SaleDB.Driver)
	assert.Equal(t, "admin", cfg.Market.Owner)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "marketd.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
listen_addr = "0.0.0.0:9000"
websocket_enabled = false

[market]
owner = "admin"
fee_bps = 250
fee_recipient = "vault"

[store]
backend = "leveldb"
path = "/var/lib/marketd/books"

[sale_db]
enabled = false
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Server.ListenAddr)
	assert.False(t, cfg.Server.WebsocketEnabled)
	assert.Equal(t, uint32(250), cfg.Market.FeeBps)
	assert.Equal(t, "vault", cfg.Market.FeeRecipient)
	assert.Equal(t, "leveldb", cfg.Store.Backend)
	assert.False(t, cfg.SaleDB.Enabled)
	assert.Equal(t, path, cfg.GetConfigPath())
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "marketd.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[market]
owner = "admin"

[server]
listen_addr = "127.0.0.1:7000"
`), 0644))

	t.Setenv("MARKETD_SERVER_LISTEN_ADDR", "127.0.0.1:8000")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8000", cfg.Server.ListenAddr)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/marketd.toml")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Server: ServerConfig{ListenAddr: "127.0.0.1:7256", QueryCacheSize: 16},
			Market: MarketConfig{Owner: "admin", FeeBps: 250, FeeRecipient: "vault"},
			Store:  StoreConfig{Backend: "memory"},
			SaleDB: SaleDBConfig{Enabled: false},
		}
	}

	assert.NoError(t, Validate(base()))

	noOwner := base()
	noOwner.Market.Owner = ""
	assert.Error(t, Validate(noOwner))

	feeTooHigh := base()
	feeTooHigh.Market.FeeBps = 10001
	assert.Error(t, Validate(feeTooHigh))

	feeWithoutRecipient := base()
	feeWithoutRecipient.Market.FeeRecipient = ""
	assert.Error(t, Validate(feeWithoutRecipient))

	badBackend := base()
	badBackend.Store.Backend = "rocksdb"
	assert.Error(t, Validate(badBackend))

	diskWithoutPath := base()
	diskWithoutPath.Store.Backend = "pebble"
	diskWithoutPath.Store.Path = ""
	assert.Error(t, Validate(diskWithoutPath))

	saleNoDSN := base()
	saleNoDSN.SaleDB = SaleDBConfig{Enabled: true, Driver: "sqlite"}
	assert.Error(t, Validate(saleNoDSN))
}

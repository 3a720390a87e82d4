package config

import "github.com/spf13/viper"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", "127.0.0.1:7256")
	v.SetDefault("server.websocket_enabled", true)
	v.SetDefault("server.query_cache_size", 1024)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("market.owner", "")
	v.SetDefault("market.fee_bps", 0)
	v.SetDefault("market.fee_recipient", "")

	v.SetDefault("store.backend", "pebble")
	v.SetDefault("store.path", "data/marketstore")
	v.SetDefault("store.compress", true)

	v.SetDefault("sale_db.enabled", true)
	v.SetDefault("sale_db.driver", "sqlite")
	v.SetDefault("sale_db.dsn", "data/sales.db")

	v.SetDefault("log.path", "")
	v.SetDefault("log.debug", false)
}

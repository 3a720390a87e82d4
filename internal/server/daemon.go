// Package server assembles the marketd daemon: engine, persistence, sale
// history and the RPC front end, with coordinated startup and shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/openmrkt/marketd/internal/config"
	"github.com/openmrkt/marketd/internal/core/market"
	"github.com/openmrkt/marketd/internal/rpc"
	"github.com/openmrkt/marketd/internal/storage/marketstore"
	"github.com/openmrkt/marketd/internal/storage/saledb"
)

// Daemon is a fully wired marketd node.
type Daemon struct {
	cfg *config.Config
	log *zap.Logger

	registry *market.MemoryRegistry
	funds    *market.MemoryFunds
	mkt      *market.Marketplace
	store    *marketstore.Store
	sales    *saledb.Store
	httpSrv  *http.Server
}

// New builds the daemon from configuration. Book state is restored from the
// marketstore before the engine accepts calls.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Daemon, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &Daemon{
		cfg:      cfg,
		log:      logger,
		registry: market.NewMemoryRegistry(),
		funds:    market.NewMemoryFunds(),
	}

	db, err := marketstore.Open(cfg.Store.Backend, cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	store, err := marketstore.NewStore(db, marketstore.StoreOptions{Compress: cfg.Store.Compress})
	if err != nil {
		db.Close()
		return nil, err
	}
	d.store = store

	if cfg.SaleDB.Enabled {
		sales, err := saledb.NewStore(saledb.DefaultConfigWith(cfg.SaleDB.Driver, cfg.SaleDB.DSN))
		if err != nil {
			d.closePartial()
			return nil, err
		}
		if err := sales.Open(ctx); err != nil {
			d.closePartial()
			return nil, err
		}
		d.sales = sales
	}

	cache, err := rpc.NewQueryCache(cfg.Server.QueryCacheSize)
	if err != nil {
		d.closePartial()
		return nil, err
	}

	var ws *rpc.WebSocketServer
	if cfg.Server.WebsocketEnabled {
		ws = rpc.NewWebSocketServer(logger)
	}

	fanout := rpc.NewFanout()
	if cache != nil {
		fanout.Attach(cache)
	}
	if ws != nil {
		fanout.Attach(ws)
	}

	d.mkt = market.NewMarketplace(market.Options{
		Registry:     d.registry,
		Funds:        d.funds,
		Owner:        market.AccountID(cfg.Market.Owner),
		FeeBps:       cfg.Market.FeeBps,
		FeeRecipient: market.AccountID(cfg.Market.FeeRecipient),
		Publisher:    fanout,
		State:        store,
		Logger:       logger,
	})

	// The journal needs the engine for sale enrichment, so it attaches after
	// construction.
	if d.sales != nil {
		fanout.Attach(saledb.NewJournal(d.sales, d.mkt, logger))
	}

	if err := d.restore(ctx); err != nil {
		d.closePartial()
		return nil, err
	}

	rpcServer := rpc.NewServer(rpc.ServerOptions{
		Market:      d.mkt,
		Sales:       d.sales,
		Cache:       cache,
		WebSocket:   ws,
		Logger:      logger,
		DevRegistry: d.registry,
		DevFunds:    d.funds,
	})

	d.httpSrv = &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      rpcServer.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return d, nil
}

// restore reloads persisted books into the engine.
func (d *Daemon) restore(ctx context.Context) error {
	listings, err := d.store.LoadListings(ctx)
	if err != nil {
		return fmt.Errorf("restore listings: %w", err)
	}
	auctions, err := d.store.LoadAuctions(ctx)
	if err != nil {
		return fmt.Errorf("restore auctions: %w", err)
	}
	d.mkt.Restore(listings, auctions)

	if len(listings) > 0 || len(auctions) > 0 {
		d.log.Info("restored book state",
			zap.Int("listings", len(listings)),
			zap.Int("auctions", len(auctions)))
	}
	return nil
}

// Run serves until ctx is cancelled, then shuts down in order: HTTP first,
// storage last.
func (d *Daemon) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		d.log.Info("marketd listening",
			zap.String("addr", d.cfg.Server.ListenAddr),
			zap.Bool("websocket", d.cfg.Server.WebsocketEnabled))
		if err := d.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), d.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := d.httpSrv.Shutdown(shutdownCtx); err != nil {
			d.log.Warn("http shutdown failed", zap.Error(err))
		}
		return nil
	})

	err := g.Wait()
	d.closePartial()
	return err
}

func (d *Daemon) closePartial() {
	if d.sales != nil {
		if err := d.sales.Close(); err != nil {
			d.log.Warn("sale db close failed", zap.Error(err))
		}
		d.sales = nil
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			d.log.Warn("marketstore close failed", zap.Error(err))
		}
		d.store = nil
	}
}

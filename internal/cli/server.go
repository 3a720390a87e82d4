package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openmrkt/marketd/internal/config"
	"github.com/openmrkt/marketd/internal/log"
	"github.com/openmrkt/marketd/internal/server"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the marketplace daemon",
	Long: `Start marketd, which provides:
- HTTP JSON-RPC endpoints for listings, auctions, settlement and admin
- WebSocket event streams (listings, auctions, admin)
- Persistent book state and relational sale history`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)

	// server is the default command.
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runServer(cmd, args)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	logger, err := log.Setup(cfg.Log.Path, debug || cfg.Log.Debug)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	daemon, err := server.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("daemon startup failed", zap.Error(err))
		return err
	}

	return daemon.Run(ctx)
}

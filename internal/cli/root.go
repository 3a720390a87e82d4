// Package cli defines the marketd command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "marketd",
	Short: "marketd - NFT marketplace escrow and settlement daemon",
	Long: `marketd runs a custodial NFT marketplace engine: fixed-price listings,
ascending auctions with bid escrow, and atomic fee/royalty/seller settlement.
It exposes a JSON-RPC API and a websocket event stream.`,
	Version: "0.1.0-dev",
}

// Execute runs the command tree. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "conf", "", "configuration file path")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable normally suppressed debug logging")
}

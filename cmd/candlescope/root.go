package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"candlescope/config"
	"candlescope/internal/logger"
)

const serviceName = "candlescope"

var cfgFile string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "candlescope",
		Short: "Aggregate intraday ticks into candles, detect patterns and render charts",
		Long: `candlescope turns a day of raw ticks for one instrument into interval
candles, finds Hammer, Dragonfly Doji, Rising Window and Three White Soldiers
patterns, and renders candlestick, line or volume charts.

Ticks are imported into SQLite once and then served over HTTP and websocket,
or analysed directly from a JSON file.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (overrides CONFIG_FILE)")

	root.AddCommand(
		newServeCmd(),
		newImportCmd(),
		newDetectCmd(),
		newRenderCmd(),
		newDatesCmd(),
	)
	return root
}

// loadConfig loads config and initialises the default logger from it.
func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		os.Setenv("CONFIG_FILE", cfgFile)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger.Init(serviceName, logger.ParseLevel(cfg.LogLevel))
	return cfg, nil
}

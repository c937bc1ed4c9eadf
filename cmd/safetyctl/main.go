// Command safetyctl is the operator CLI for the safety map service: grid
// lookups, polyline encoding, bulk report import and offline queries
// against the configured report store.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"safemap/internal/config"
	"safemap/internal/scoring"
	"safemap/internal/store"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "safetyctl",
	Short:         "Operate the safety map engine from the command line",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("SAFEMAP_CONFIG"), "Path to YAML config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

// openEngine opens the configured store and builds an engine without a
// cache or route providers. The returned close func releases the store.
func openEngine(ctx context.Context, cfg *config.Config) (*scoring.Engine, func(), error) {
	base, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, nil, err
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	if cfg.Log.Level == "debug" {
		log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	e, err := scoring.NewEngine(cfg.Safety, store.NewTimed(base, cfg.Store.QueryTimeout), nil, nil, log)
	if err != nil {
		_ = base.Close()
		return nil, nil, err
	}
	return e, func() { _ = base.Close() }, nil
}

// Package main is the AssetDNA registry server: the asset inventory API with
// BOM history, import jobs and the audit trail, backed by SQLite, PostgreSQL
// or MySQL.
package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/assetdna/registry/pkg/inventory"
)

var stdout io.Writer = os.Stdout

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "assetdna-server",
		Short:        "Serve the AssetDNA registry API",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := newViper(cmd.Flags())
			if err != nil {
				return err
			}
			cfg, err := loadServerConfig(v)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	bindFlags(cmd.Flags())
	// glog flags (-v, -logtostderr) stay available.
	cmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)
	return cmd
}

func run(ctx context.Context, cfg *serverConfig) error {
	logger := cfg.newLogger()
	logger.Info("starting assetdna server",
		"listen", cfg.Listen,
		"db", cfg.DB.Dialect,
		"actorMode", cfg.ActorMode,
	)

	invCfg, err := inventory.LoadConfig(cfg.InventoryConfig)
	if err != nil {
		glog.Fatalf("Failed to load inventory config: %v", err)
	}

	reg, err := newRegistry(ctx, cfg, invCfg, logger)
	if err != nil {
		glog.Fatalf("Failed to initialize registry: %v", err)
	}
	defer func() {
		if err := reg.close(); err != nil {
			logger.Error("database close error", "error", err)
		}
	}()

	err = reg.serve(ctx)
	logger.Info("assetdna server stopped")
	return err
}

func main() {
	_ = flag.Set("logtostderr", "true")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		glog.Errorf("%v", err)
		glog.Flush()
		os.Exit(1)
	}
}

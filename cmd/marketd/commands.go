// File: cmd/marketd/commands.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"deals_marketplace/internal/app"
	"deals_marketplace/internal/config"
	"deals_marketplace/internal/platform/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

// runtimeEnv is what every subcommand works with.
type runtimeEnv struct {
	cfg    *config.Config
	logger *zap.Logger
	market *app.Marketplace
}

// withMarketplace loads configuration, wires the marketplace, runs fn and
// releases everything afterwards.
func withMarketplace(cmd *cobra.Command, fn func(ctx context.Context, env *runtimeEnv) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	appLogger, err := logger.New(cfg)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() { _ = appLogger.Sync() }()

	market, cleanup, err := initializeMarketplace(cfg, appLogger)
	if err != nil {
		appLogger.Error("Failed to initialize marketplace", zap.Error(err))
		return err
	}
	defer cleanup()

	return fn(cmd.Context(), &runtimeEnv{cfg: cfg, logger: appLogger, market: market})
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "marketd",
		Short: "Deals marketplace catalog daemon",
		Long: `marketd runs the deals marketplace catalog: products, ratings, favorites and
seller aggregates, with a scheduled sweep of expired products.

Configuration is read from the environment and an optional .env file.`,
		SilenceUsage: true,
	}
	root.AddCommand(
		newRunCmd(),
		newMigrateCmd(),
		newSweepCmd(),
		newSeedCmd(),
		newSyncProductsCmd(),
	)
	return root
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Migrate, then run the expiry scheduler until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMarketplace(cmd, func(ctx context.Context, env *runtimeEnv) error {
				if err := env.market.Migrate(ctx); err != nil {
					return err
				}
				if err := env.market.BeforeRequest(ctx); err != nil {
					env.logger.Warn("Initial sweep failed, scheduler will retry", zap.Error(err))
				}
				if err := env.market.Start(ctx); err != nil {
					return err
				}

				quit := make(chan os.Signal, 1)
				signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
				sig := <-quit
				env.logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))

				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := env.market.Shutdown(shutdownCtx); err != nil {
					env.logger.Error("Marketplace forced to shutdown", zap.Error(err))
					return err
				}
				env.logger.Info("Marketplace shutdown complete")
				return nil
			})
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMarketplace(cmd, func(ctx context.Context, env *runtimeEnv) error {
				if err := env.market.Migrate(ctx); err != nil {
					return err
				}
				env.logger.Info("Migrations applied")
				return nil
			})
		},
	}
}

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete products older than the retention window once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMarketplace(cmd, func(ctx context.Context, env *runtimeEnv) error {
				n, err := env.market.Sweep(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d expired products removed\n", n)
				return nil
			})
		},
	}
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert sample users and products",
		Long: fmt.Sprintf(`Insert sample users and products into an empty catalog.

Every sample account uses the password %q; the administrator is %s.`, app.SeedPassword, app.SeedAdminEmail),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMarketplace(cmd, func(ctx context.Context, env *runtimeEnv) error {
				if err := env.market.Migrate(ctx); err != nil {
					return err
				}
				return env.market.Seed(ctx)
			})
		},
	}
}

func newSyncProductsCmd() *cobra.Command {
	var (
		batchSize int
		esRefresh string
	)
	cmd := &cobra.Command{
		Use:   "sync-products",
		Short: "Re-index every product into Elasticsearch",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMarketplace(cmd, func(ctx context.Context, env *runtimeEnv) error {
				stats, err := env.market.SyncSearch(ctx, batchSize, esRefresh)
				fmt.Fprintf(cmd.OutOrStdout(), "batches=%d synced=%d failed=%d\n", stats.Batches, stats.Synced, stats.Failed)
				return err
			})
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", 100, "Batch size for syncing products")
	cmd.Flags().StringVar(&esRefresh, "es-refresh", "false", "Elasticsearch refresh policy (true, false, wait_for)")
	return cmd
}

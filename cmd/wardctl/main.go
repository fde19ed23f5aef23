package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"stealthcompany.com/wardbook/internal/config"
	"stealthcompany.com/wardbook/internal/dal"
	"stealthcompany.com/wardbook/internal/orchestrator"
	"stealthcompany.com/wardbook/internal/storage"
	"stealthcompany.com/wardbook/pkg/zerolog_config"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "wardctl",
		Short:         "Operational tasks for the wardbook record store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(setupCmd())
	rootCmd.AddCommand(reconcileCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("wardctl failed")
		os.Exit(1)
	}
}

// loadConfig reads the environment and configures logging for a command
func loadConfig() (*config.Config, error) {
	config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	zerolog_config.SetAppPrefix("wardctl")
	if err := zerolog_config.StartupWithEnv(cfg.ElasticsearchURL, "logs", cfg.LogLevel); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Create the table, keyspace and secondary indexes for the configured engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := orchestrator.ShutdownContext(cmd.Context())
			defer stop()

			log.Info().Str("engine", cfg.StoreEngine).Str("table", cfg.TableName).Msg("Running store setup")
			if err := storage.Setup(ctx, cfg); err != nil {
				return fmt.Errorf("setup %s: %w", cfg.StoreEngine, err)
			}
			log.Info().Msg("Store setup complete")
			return nil
		},
	}
}

func reconcileCmd() *cobra.Command {
	var (
		owner    string
		workers  int
		pageSize int
		leaseTTL time.Duration
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Recompute patient and doctor classification keys and repair stale ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := orchestrator.ShutdownContext(cmd.Context())
			defer stop()

			engine, err := storage.Open(ctx, cfg)
			if err != nil {
				return err
			}
			defer engine.Close()

			svc, err := dal.NewService(engine.Store, dal.Options{MaxPageSize: cfg.MaxPageSize})
			if err != nil {
				return err
			}
			svc.Reconciler.Workers = workers
			svc.Reconciler.PageSize = pageSize
			svc.Reconciler.LeaseTTL = leaseTTL

			if owner == "" {
				host, _ := os.Hostname()
				owner = fmt.Sprintf("wardctl@%s-%d", host, os.Getpid())
			}

			report, err := svc.Reconciler.Sweep(ctx, owner)
			if errors.Is(err, dal.ErrLeaseHeld) {
				return fmt.Errorf("another reconcile sweep holds the lease")
			}
			if report != nil {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if encErr := enc.Encode(report); encErr != nil {
					return encErr
				}
			}
			return err
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "lease owner name (defaults to host and pid)")
	cmd.Flags().IntVar(&workers, "workers", 8, "concurrent repairs per page")
	cmd.Flags().IntVar(&pageSize, "page-size", 100, "records read per scan page")
	cmd.Flags().DurationVar(&leaseTTL, "lease-ttl", 10*time.Minute, "how long the sweep holds the lease")
	return cmd
}

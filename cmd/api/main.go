package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/wardbook/internal/api"
	"stealthcompany.com/wardbook/internal/config"
	"stealthcompany.com/wardbook/internal/cursor"
	"stealthcompany.com/wardbook/internal/dal"
	"stealthcompany.com/wardbook/internal/metrics"
	"stealthcompany.com/wardbook/internal/orchestrator"
	"stealthcompany.com/wardbook/internal/storage"
	"stealthcompany.com/wardbook/pkg/zerolog_config"
)

func main() {
	config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	zerolog_config.SetAppPrefix(cfg.AppName)
	if err := zerolog_config.StartupWithEnv(cfg.ElasticsearchURL, "logs", cfg.LogLevel); err != nil {
		log.Fatal().Err(err).Msg("Failed to configure logging")
	}

	log.Info().Str("engine", cfg.StoreEngine).Msg("Starting wardbook API service")

	ctx, stop := orchestrator.ShutdownContext(context.Background())
	defer stop()

	metrics.Enable(cfg.EnableBusinessMetrics, cfg.EnableSystemMetrics)
	metrics.StartSystemMetrics(ctx, cfg.SystemMetricsInterval)

	engine, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	metrics.SetStoreEngine(engine.Name, cfg.TableName)
	defer func() {
		if err := engine.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close store")
		}
	}()

	cursors, err := cursor.New(cfg.CursorSecret, cfg.CursorTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create cursor codec")
	}
	svc, err := dal.NewService(engine.Store, dal.Options{
		Cursors:         cursors,
		DefaultPageSize: cfg.DefaultPageSize,
		MaxPageSize:     cfg.MaxPageSize,
		ChecklistTTL:    cfg.ChecklistCacheTTL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create service")
	}
	svc.Reconciler.Workers = cfg.ReconcileWorkers

	router := api.NewServer(svc, api.Options{
		CDNDomain:       cfg.CDNDomain,
		RequireIdentity: cfg.RequireIdentity,
		RateLimitRPS:    cfg.RateLimitRPS,
		RateLimitBurst:  cfg.RateLimitBurst,
	}).SetupRoutes()

	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sm := orchestrator.NewServiceManager(server, cfg.ShutdownTimeout)
	sm.AddJob(orchestrator.Job{
		Name:     "reconcile",
		Interval: cfg.ReconcileInterval,
		Run: func(ctx context.Context) error {
			_, err := svc.Reconciler.Sweep(ctx, instanceName())
			if errors.Is(err, dal.ErrLeaseHeld) {
				log.Info().Msg("Reconcile sweep already running elsewhere")
				return nil
			}
			return err
		},
	})

	if err := sm.Run(ctx); err != nil {
		log.Error().Err(err).Msg("API service stopped with error")
		return
	}
	log.Info().Msg("API service shutdown complete")
}

// instanceName identifies this process as a lease owner
func instanceName() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}

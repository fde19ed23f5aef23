// Package orchestrator runs the API process: the HTTP server and its
// background jobs share one lifecycle and stop together.
package orchestrator

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Job is a background task run on a fixed interval
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// ServiceManager manages the lifecycle of the HTTP server and background jobs
type ServiceManager struct {
	server          *http.Server
	shutdownTimeout time.Duration
	jobs            []Job
}

// NewServiceManager creates a manager for server. shutdownTimeout bounds how
// long in-flight requests may take once shutdown starts.
func NewServiceManager(server *http.Server, shutdownTimeout time.Duration) *ServiceManager {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	return &ServiceManager{server: server, shutdownTimeout: shutdownTimeout}
}

// AddJob registers a periodic job. Jobs with a non-positive interval are ignored.
func (sm *ServiceManager) AddJob(job Job) {
	if job.Interval <= 0 {
		log.Info().Str("job", job.Name).Msg("Background job disabled")
		return
	}
	sm.jobs = append(sm.jobs, job)
}

// Run serves until ctx is cancelled or the server fails, then shuts the
// server down gracefully and waits for every job to return
func (sm *ServiceManager) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", sm.server.Addr).Msg("Server starting")
		if err := sm.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), sm.shutdownTimeout)
		defer cancel()
		if err := sm.server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown failed")
			return err
		}
		log.Info().Msg("Server stopped")
		return nil
	})

	for _, job := range sm.jobs {
		g.Go(func() error {
			runPeriodic(gctx, job)
			return nil
		})
	}

	return g.Wait()
}

// runPeriodic runs job every interval until ctx is done. Failures are logged
// and the job keeps its schedule.
func runPeriodic(ctx context.Context, job Job) {
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	log.Info().Str("job", job.Name).Dur("interval", job.Interval).Msg("Background job scheduled")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			if err := job.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Str("job", job.Name).Msg("Background job failed")
				continue
			}
			log.Debug().Str("job", job.Name).Dur("duration", time.Since(start)).Msg("Background job finished")
		}
	}
}

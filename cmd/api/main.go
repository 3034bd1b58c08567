package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dvloznov/spend-tracker/internal/api"
	"github.com/dvloznov/spend-tracker/internal/app"
	"github.com/dvloznov/spend-tracker/internal/jobs/inmemory"
	"github.com/dvloznov/spend-tracker/internal/logger"
)

const sessionIdleTimeout = 24 * time.Hour

func main() {
	// Parse command-line flags
	var (
		configPath = flag.String("config", os.Getenv("SPEND_CONFIG"), "Path to a config file (or set SPEND_CONFIG)")
		port       = flag.Int("port", 0, "HTTP server port (overrides config)")
	)
	flag.Parse()

	cfg, log, err := app.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if *port != 0 {
		cfg.Port = *port
	}

	ctx := logger.WithContext(context.Background(), log)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize tracker")
	}
	defer a.Close()

	if a.Objects == nil {
		log.Warn().Msg("No export bucket configured - CSV export jobs will fail")
	}
	if a.Totals == nil {
		log.Warn().Msg("No BigQuery project configured - daily totals snapshots will fail")
	}

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	log.Info().Msg("Starting export worker")
	if err := jobQueue.Start(workerCtx, a.Runner().Handle); err != nil {
		log.Fatal().Err(err).Msg("Failed to start export worker")
	}

	// Drop sessions nobody has used for a day
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				if n := a.Sessions.Prune(sessionIdleTimeout); n > 0 {
					log.Info().Int("pruned", n).Int("active", a.Sessions.Len()).Msg("Pruned idle sessions")
				}
			}
		}
	}()

	handler := api.NewRouter(api.Deps{
		Tracker:   a.Service,
		Sessions:  a.Sessions,
		Publisher: jobQueue,
		Jobs:      jobStore,
		APIKey:    cfg.APIKey,
		Log:       log,
	})

	// Create HTTP server
	addr := ":" + strconv.Itoa(cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}

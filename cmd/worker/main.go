package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dvloznov/spend-tracker/internal/app"
	"github.com/dvloznov/spend-tracker/internal/jobs"
	"github.com/dvloznov/spend-tracker/internal/jobs/inmemory"
	"github.com/dvloznov/spend-tracker/internal/logger"
)

// The worker periodically enqueues export jobs over the whole ledger and
// runs them in-process.
func main() {
	var (
		configPath = flag.String("config", os.Getenv("SPEND_CONFIG"), "Path to a config file (or set SPEND_CONFIG)")
		interval   = flag.Duration("interval", 24*time.Hour, "Time between export runs")
		types      = flag.String("types", string(jobs.JobTypeSnapshotDailyTotals), "Comma-separated job types to schedule")
	)
	flag.Parse()

	cfg, log, err := app.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	var scheduled []jobs.JobType
	for _, t := range strings.Split(*types, ",") {
		jt := jobs.JobType(strings.TrimSpace(t))
		if !jt.Valid() {
			log.Fatal().Str("type", string(jt)).Msg("Unknown job type")
		}
		scheduled = append(scheduled, jt)
	}

	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize tracker")
	}
	defer a.Close()

	if a.Totals != nil {
		if err := a.Totals.EnsureTable(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to ensure daily totals table")
		}
	}

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(len(scheduled)*2, jobStore).WithWorkers(1).WithBackoff(30 * time.Second)

	if err := jobQueue.Start(ctx, a.Runner().Handle); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	enqueue := func() {
		for _, jt := range scheduled {
			job := &jobs.ExportJob{Type: jt}
			if err := jobQueue.PublishExport(ctx, job); err != nil {
				log.Error().Err(err).Str("type", string(jt)).Msg("Failed to enqueue export job")
				continue
			}
			log.Info().Str("job_id", job.JobID).Str("type", string(jt)).Msg("Export job enqueued")
		}
	}

	log.Info().Dur("interval", *interval).Msg("Worker service started")
	enqueue()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

loop:
	for {
		select {
		case <-ticker.C:
			enqueue()
		case <-quit:
			break loop
		}
	}

	log.Info().Msg("Shutting down worker service...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop the queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}
	cancel()

	log.Info().Msg("Worker service exited")
}

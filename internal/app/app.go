// Package app wires configuration into the tracker service and its export sinks.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/spend-tracker/internal/cache"
	"github.com/dvloznov/spend-tracker/internal/config"
	"github.com/dvloznov/spend-tracker/internal/export"
	infraBQ "github.com/dvloznov/spend-tracker/internal/infra/bigquery"
	"github.com/dvloznov/spend-tracker/internal/logger"
	"github.com/dvloznov/spend-tracker/internal/sheets"
	"github.com/dvloznov/spend-tracker/internal/tracker"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// App holds the long-lived dependencies shared by the commands.
type App struct {
	Config   *config.Config
	Log      zerolog.Logger
	Service  *tracker.Service
	Sessions *tracker.SessionStore

	// Objects and Totals are nil when their destination is not configured.
	Objects *export.GCSStore
	Totals  *infraBQ.DailyTotalsRepository

	closers []func() error
}

// LoadConfig reads and validates configuration and builds the logger it names.
func LoadConfig(path string) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, logger.New(), err
	}
	if err := cfg.Validate(); err != nil {
		return nil, logger.New(), err
	}
	log, err := logger.NewWithLevel(cfg.LogLevel)
	if err != nil {
		return nil, logger.New(), err
	}
	return cfg, log, nil
}

// New connects to Sheets and, when configured, to Cloud Storage and BigQuery.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	creds, err := cfg.Credentials()
	if err != nil {
		return nil, &config.ConfigurationError{Key: "credentials_file", Err: err}
	}
	sheetOpts, err := sheets.CredentialOptions(ctx, creds)
	if err != nil {
		return nil, &config.ConfigurationError{Key: "credentials", Err: err}
	}

	client, err := sheets.NewClient(ctx, sheetOpts...)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:   cfg,
		Log:      log,
		Sessions: tracker.NewSessionStore(),
	}
	a.Service = tracker.NewService(tracker.Options{
		SpreadsheetID: cfg.SheetID,
		HistoryRange:  cfg.HistoryRange,
		AppendRange:   cfg.AppendRange,
		CacheTTL:      cfg.CacheTTL,
		Location:      loc,
	}, client, client.Appender(cfg.HistoryRange), cache.New(), log)

	var cloudOpts []option.ClientOption
	if len(creds) > 0 {
		cloudOpts = append(cloudOpts, option.WithCredentialsJSON(creds))
	}

	if cfg.Export.Bucket != "" {
		store, err := export.NewGCSStore(ctx, cloudOpts...)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("New: %w", err)
		}
		a.Objects = store
		a.closers = append(a.closers, store.Close)
	}

	if cfg.BigQuery.Project != "" {
		repo, err := infraBQ.NewDailyTotalsRepository(ctx, cfg.BigQuery.Project, cfg.BigQuery.Dataset, cfg.BigQuery.Table, cloudOpts...)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("New: %w", err)
		}
		a.Totals = repo
		a.closers = append(a.closers, repo.Close)
	}

	log.Info().
		Str("sheet_id", cfg.SheetID).
		Str("range", cfg.HistoryRange).
		Str("append_range", cfg.AppendRange).
		Bool("gcs_export", a.Objects != nil).
		Bool("bigquery_export", a.Totals != nil).
		Msg("Tracker initialized")

	return a, nil
}

// Runner builds an export runner over whichever destinations are configured.
func (a *App) Runner() *export.Runner {
	var objects export.ObjectStore
	if a.Objects != nil {
		objects = a.Objects
	}
	var totals export.DailyTotalsWriter
	if a.Totals != nil {
		totals = a.Totals
	}
	return export.NewRunner(export.Config{
		SpreadsheetID: a.Config.SheetID,
		Bucket:        a.Config.Export.Bucket,
		Prefix:        a.Config.Export.Prefix,
	}, a.Service, objects, totals, a.Sessions, a.Log)
}

// Close releases every client opened by New.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

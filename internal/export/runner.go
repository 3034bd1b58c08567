package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/spend-tracker/internal/infra/bigquery"
	"github.com/dvloznov/spend-tracker/internal/jobs"
	"github.com/dvloznov/spend-tracker/internal/ledger"
	"github.com/dvloznov/spend-tracker/internal/logger"
	"github.com/dvloznov/spend-tracker/internal/tracker"
	"github.com/rs/zerolog"
)

// ErrNotConfigured is returned for an export whose destination is not set up.
var ErrNotConfigured = errors.New("export destination not configured")

// Dashboard is the part of the tracker service exports read from.
type Dashboard interface {
	Fetch(ctx context.Context, sess *tracker.Session) (*tracker.Snapshot, error)
	BuildView(snap *tracker.Snapshot, sess *tracker.Session, q tracker.Query) *tracker.View
}

// DailyTotalsWriter stores daily totals snapshots.
type DailyTotalsWriter interface {
	InsertDailyTotals(ctx context.Context, rows []*bigquery.DailyTotalRow) error
	TableID() string
}

// Config names the export destinations.
type Config struct {
	SpreadsheetID string
	Bucket        string
	Prefix        string
}

// Runner executes export jobs against fresh snapshots.
type Runner struct {
	cfg       Config
	dashboard Dashboard
	objects   ObjectStore
	totals    DailyTotalsWriter
	sessions  *tracker.SessionStore
	own       *tracker.Session
	log       zerolog.Logger
	now       func() time.Time
}

// NewRunner creates a runner. objects and totals may be nil, in which case the
// matching job type fails with ErrNotConfigured. sessions may be nil.
func NewRunner(cfg Config, dashboard Dashboard, objects ObjectStore, totals DailyTotalsWriter, sessions *tracker.SessionStore, log zerolog.Logger) *Runner {
	return &Runner{
		cfg:       cfg,
		dashboard: dashboard,
		objects:   objects,
		totals:    totals,
		sessions:  sessions,
		own:       tracker.NewSession(),
		log:       logger.WithComponent(log, "export"),
		now:       time.Now,
	}
}

// Handle implements jobs.JobHandler.
func (r *Runner) Handle(ctx context.Context, job jobs.Job) error {
	export, ok := job.(*jobs.ExportJob)
	if !ok {
		return fmt.Errorf("unexpected job type: %T", job)
	}

	log := r.log.With().Str("job_id", export.JobID).Str("type", string(export.Type)).Int("attempt", export.RetryCount+1).Logger()
	log.Info().Msg("Processing export job")

	var err error
	switch export.Type {
	case jobs.JobTypeExportCSV:
		err = r.ExportCSV(ctx, export)
	case jobs.JobTypeSnapshotDailyTotals:
		err = r.SnapshotDailyTotals(ctx, export)
	default:
		err = fmt.Errorf("unknown job type %q", export.Type)
	}
	if err != nil {
		log.Error().Err(err).Msg("Export job failed")
		return err
	}

	log.Info().Str("result_uri", export.ResultURI).Int("rows", export.Rows).Msg("Export job completed")
	return nil
}

// ExportCSV writes the job's selection as a CSV object.
func (r *Runner) ExportCSV(ctx context.Context, job *jobs.ExportJob) error {
	if r.objects == nil || r.cfg.Bucket == "" {
		return fmt.Errorf("ExportCSV: %w: bucket", ErrNotConfigured)
	}

	view, err := r.view(ctx, job)
	if err != nil {
		return fmt.Errorf("ExportCSV: %w", err)
	}

	var buf bytes.Buffer
	if err := ledger.WriteCSV(&buf, view.Rows); err != nil {
		return fmt.Errorf("ExportCSV: %w", err)
	}

	object := ObjectName(r.cfg.Prefix, r.now(), job.JobID)
	if _, err := r.objects.WriteObject(ctx, r.cfg.Bucket, object, "text/csv", &buf); err != nil {
		return fmt.Errorf("ExportCSV: %w", err)
	}

	job.ResultURI = GCSURI(r.cfg.Bucket, object)
	job.Rows = len(view.Rows)
	return nil
}

// SnapshotDailyTotals writes the daily totals of the job's selection.
func (r *Runner) SnapshotDailyTotals(ctx context.Context, job *jobs.ExportJob) error {
	if r.totals == nil {
		return fmt.Errorf("SnapshotDailyTotals: %w: bigquery", ErrNotConfigured)
	}

	view, err := r.view(ctx, job)
	if err != nil {
		return fmt.Errorf("SnapshotDailyTotals: %w", err)
	}

	days := make([]ledger.DailyTotal, 0, len(view.Daily))
	for _, d := range view.Daily {
		if view.Range.Contains(d.Date) {
			days = append(days, d)
		}
	}

	rows := bigquery.RowsFromDaily(job.JobID, r.cfg.SpreadsheetID, r.now(), days)
	if err := r.totals.InsertDailyTotals(ctx, rows); err != nil {
		return fmt.Errorf("SnapshotDailyTotals: %w", err)
	}

	job.ResultURI = "bq://" + r.totals.TableID()
	job.Rows = len(rows)
	return nil
}

// view fetches a snapshot for the job's session. A degraded snapshot is an
// error so the job is retried instead of exporting partial data.
func (r *Runner) view(ctx context.Context, job *jobs.ExportJob) (*tracker.View, error) {
	sess := r.own
	if job.SessionID != "" && r.sessions != nil {
		sess = r.sessions.Get(job.SessionID)
	}

	snap, err := r.dashboard.Fetch(ctx, sess)
	if err != nil {
		return nil, err
	}
	for _, src := range snap.Sources {
		if !src.Available() {
			return nil, fmt.Errorf("%w: %s: %s", ledger.ErrSourceUnavailable, src.Range, src.Error)
		}
	}

	return r.dashboard.BuildView(snap, sess, tracker.Query{
		Banks: job.Banks,
		Mode:  tracker.ModeRange,
		Start: job.Start,
		End:   job.End,
	}), nil
}

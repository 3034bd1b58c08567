package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/spend-tracker/internal/app"
	"github.com/dvloznov/spend-tracker/internal/jobs"
	"github.com/dvloznov/spend-tracker/internal/ledger"
	"github.com/dvloznov/spend-tracker/internal/logger"
	"github.com/dvloznov/spend-tracker/internal/tracker"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

const commandTimeout = 5 * time.Minute

type rootOptions struct {
	configPath string
	out        io.Writer
	errOut     io.Writer
}

// queryFlags are shared by every command that reads a selection.
type queryFlags struct {
	banks []string
	mode  string
	day   string
	start string
	end   string
	top   int
}

func (f *queryFlags) register(cmd *cobra.Command, defaultMode string) {
	cmd.Flags().StringSliceVar(&f.banks, "bank", nil, "bank to include (repeatable, default all)")
	cmd.Flags().StringVar(&f.mode, "mode", defaultMode, "single or range")
	cmd.Flags().StringVar(&f.day, "day", "", "day for single mode (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&f.start, "start", "", "first day for range mode (default first day with data)")
	cmd.Flags().StringVar(&f.end, "end", "", "last day for range mode (default last day with data)")
	cmd.Flags().IntVar(&f.top, "top", tracker.DefaultTopN, "number of top categories")
}

func (f *queryFlags) query() (tracker.Query, error) {
	mode, err := tracker.ParseMode(f.mode)
	if err != nil {
		return tracker.Query{}, err
	}
	q := tracker.Query{Banks: f.banks, Mode: mode, TopN: f.top}
	for _, p := range []struct {
		name, value string
		dst         *civil.Date
	}{
		{"day", f.day, &q.Day},
		{"start", f.start, &q.Start},
		{"end", f.end, &q.End},
	} {
		if p.value == "" {
			continue
		}
		d, err := civil.ParseDate(p.value)
		if err != nil {
			return tracker.Query{}, fmt.Errorf("invalid --%s: %w", p.name, err)
		}
		*p.dst = d
	}
	return q, nil
}

func newRootCommand(out, errOut io.Writer) *cobra.Command {
	opts := &rootOptions{out: out, errOut: errOut}

	rootCmd := &cobra.Command{
		Use:   "spend",
		Short: "Inspect and extend a Google Sheets spend ledger",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("SPEND_CONFIG"), "path to a config file (or set SPEND_CONFIG)")

	rootCmd.AddCommand(
		newSummaryCommand(opts),
		newDailyCommand(opts),
		newRowsCommand(opts),
		newBanksCommand(opts),
		newAddCommand(opts),
		newExportCommand(opts),
		newBigQueryCommand(opts),
	)
	return rootCmd
}

// withApp loads configuration, opens the tracker and runs fn with a bounded context.
func (o *rootOptions) withApp(fn func(ctx context.Context, a *app.App) error) error {
	cfg, log, err := app.LoadConfig(o.configPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(logger.WithContext(context.Background(), log), commandTimeout)
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

func (o *rootOptions) view(ctx context.Context, a *app.App, f *queryFlags) (*tracker.View, error) {
	q, err := f.query()
	if err != nil {
		return nil, err
	}
	view, err := a.Service.Dashboard(ctx, tracker.NewSession(), q)
	if err != nil {
		return nil, err
	}
	warnDegraded(o.errOut, view)
	return view, nil
}

func newSummaryCommand(opts *rootOptions) *cobra.Command {
	var f queryFlags
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print credit, debit and net totals for the selection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(ctx context.Context, a *app.App) error {
				view, err := opts.view(ctx, a, &f)
				if err != nil {
					return err
				}
				return renderSummary(opts.out, view)
			})
		},
	}
	f.register(cmd, string(tracker.ModeSingle))
	return cmd
}

func newDailyCommand(opts *rootOptions) *cobra.Command {
	var f queryFlags
	var monthly bool
	cmd := &cobra.Command{
		Use:   "daily",
		Short: "Print per-day spend and credit for the selected banks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(ctx context.Context, a *app.App) error {
				view, err := opts.view(ctx, a, &f)
				if err != nil {
					return err
				}
				if monthly {
					return renderMonthly(opts.out, view.Monthly)
				}
				return renderDaily(opts.out, view.Daily)
			})
		},
	}
	f.register(cmd, string(tracker.ModeRange))
	cmd.Flags().BoolVar(&monthly, "monthly", false, "roll days up to calendar months")
	return cmd
}

func newRowsCommand(opts *rootOptions) *cobra.Command {
	var f queryFlags
	cmd := &cobra.Command{
		Use:   "rows",
		Short: "Print the transactions in the selection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(ctx context.Context, a *app.App) error {
				view, err := opts.view(ctx, a, &f)
				if err != nil {
					return err
				}
				return renderRows(opts.out, view.Rows)
			})
		},
	}
	f.register(cmd, string(tracker.ModeSingle))
	return cmd
}

func newBanksCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "banks",
		Short: "List the banks present in the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(ctx context.Context, a *app.App) error {
				view, err := opts.view(ctx, a, &queryFlags{mode: string(tracker.ModeRange)})
				if err != nil {
					return err
				}
				for _, b := range view.Banks {
					fmt.Fprintln(opts.out, b)
				}
				return nil
			})
		},
	}
}

func newAddCommand(opts *rootOptions) *cobra.Command {
	var date, bank, kind, amount, message string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Append a transaction to the append range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, err := parseEntry(date, bank, kind, amount, message)
			if err != nil {
				return err
			}
			return opts.withApp(func(ctx context.Context, a *app.App) error {
				res, err := a.Service.Append(ctx, tracker.NewSession(), entry)
				if err != nil {
					var failure *ledger.AppendFailure
					if errors.As(err, &failure) {
						return fmt.Errorf("append failed: %s", failure.Detail)
					}
					return err
				}
				fmt.Fprintf(opts.out, "Appended to %s\n", res.UpdatedRange)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "transaction day (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&bank, "bank", "", "bank name (required)")
	cmd.Flags().StringVar(&kind, "type", "debit", "credit or debit")
	cmd.Flags().StringVar(&amount, "amount", "", "non-negative amount (required)")
	cmd.Flags().StringVar(&message, "message", "", "free-text note")
	_ = cmd.MarkFlagRequired("bank")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

// parseEntry builds an entry from flag values. Validation beyond parsing is
// left to the append coordinator.
func parseEntry(date, bank, kind, amount, message string) (ledger.Entry, error) {
	e := ledger.Entry{Bank: bank, Type: kind, Message: message}

	if date == "" {
		e.Date = civil.DateOf(time.Now())
	} else {
		d, err := civil.ParseDate(date)
		if err != nil {
			return e, fmt.Errorf("invalid --date: %w", err)
		}
		e.Date = d
	}

	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return e, fmt.Errorf("invalid --amount: %w", err)
	}
	e.Amount = amt
	return e, nil
}

func newExportCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the selection to CSV or BigQuery",
	}
	cmd.AddCommand(newExportCSVCommand(opts), newExportBigQueryCommand(opts))
	return cmd
}

func newExportCSVCommand(opts *rootOptions) *cobra.Command {
	var f queryFlags
	var outPath string
	var toGCS bool
	cmd := &cobra.Command{
		Use:   "csv",
		Short: "Write the selected transactions as CSV to a file, stdout or Cloud Storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(ctx context.Context, a *app.App) error {
				if toGCS {
					job, err := exportJob(jobs.JobTypeExportCSV, &f)
					if err != nil {
						return err
					}
					if err := a.Runner().ExportCSV(ctx, job); err != nil {
						return err
					}
					fmt.Fprintf(opts.out, "Wrote %d rows to %s\n", job.Rows, job.ResultURI)
					return nil
				}

				view, err := opts.view(ctx, a, &f)
				if err != nil {
					return err
				}
				if outPath == "" || outPath == "-" {
					return ledger.WriteCSV(opts.out, view.Rows)
				}
				file, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("creating %s: %w", outPath, err)
				}
				if err := ledger.WriteCSV(file, view.Rows); err != nil {
					file.Close()
					return err
				}
				if err := file.Close(); err != nil {
					return err
				}
				fmt.Fprintf(opts.errOut, "Wrote %d rows to %s\n", len(view.Rows), outPath)
				return nil
			})
		},
	}
	f.register(cmd, string(tracker.ModeRange))
	cmd.Flags().StringVarP(&outPath, "out", "o", "-", "output file, - for stdout")
	cmd.Flags().BoolVar(&toGCS, "gcs", false, "upload to the configured export bucket instead")
	return cmd
}

func newExportBigQueryCommand(opts *rootOptions) *cobra.Command {
	var f queryFlags
	cmd := &cobra.Command{
		Use:   "bigquery",
		Short: "Insert the daily totals of the selection as a BigQuery snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(ctx context.Context, a *app.App) error {
				job, err := exportJob(jobs.JobTypeSnapshotDailyTotals, &f)
				if err != nil {
					return err
				}
				if err := a.Runner().SnapshotDailyTotals(ctx, job); err != nil {
					return err
				}
				fmt.Fprintf(opts.out, "Snapshot %s: %d days to %s\n", job.JobID, job.Rows, job.ResultURI)
				return nil
			})
		},
	}
	f.register(cmd, string(tracker.ModeRange))
	return cmd
}

func exportJob(t jobs.JobType, f *queryFlags) (*jobs.ExportJob, error) {
	q, err := f.query()
	if err != nil {
		return nil, err
	}
	return &jobs.ExportJob{
		JobID:     uuid.NewString(),
		Type:      t,
		Banks:     q.Banks,
		Start:     q.Start,
		End:       q.End,
		Status:    jobs.JobStatusRunning,
		CreatedAt: time.Now(),
	}, nil
}

func newBigQueryCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bigquery",
		Short: "Manage the daily totals snapshot table",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the dataset and day-partitioned daily totals table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(ctx context.Context, a *app.App) error {
				if a.Totals == nil {
					return errors.New("bigquery.project is not configured")
				}
				if err := a.Totals.EnsureTable(ctx); err != nil {
					return err
				}
				fmt.Fprintf(opts.out, "Table %s ready\n", a.Totals.TableID())
				return nil
			})
		},
	})

	var snapshotID string
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the rows of one snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(ctx context.Context, a *app.App) error {
				if a.Totals == nil {
					return errors.New("bigquery.project is not configured")
				}
				rows, err := a.Totals.QuerySnapshot(ctx, snapshotID)
				if err != nil {
					return err
				}
				return renderSnapshot(opts.out, rows)
			})
		},
	}
	show.Flags().StringVar(&snapshotID, "snapshot", "", "snapshot ID (required)")
	_ = show.MarkFlagRequired("snapshot")

	drop := &cobra.Command{
		Use:   "delete",
		Short: "Delete the rows of one snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(ctx context.Context, a *app.App) error {
				if a.Totals == nil {
					return errors.New("bigquery.project is not configured")
				}
				if err := a.Totals.DeleteSnapshot(ctx, snapshotID); err != nil {
					return err
				}
				fmt.Fprintf(opts.out, "Deleted snapshot %s\n", snapshotID)
				return nil
			})
		},
	}
	drop.Flags().StringVar(&snapshotID, "snapshot", "", "snapshot ID (required)")
	_ = drop.MarkFlagRequired("snapshot")

	cmd.AddCommand(show, drop)
	return cmd
}

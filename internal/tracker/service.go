// Package tracker runs the read-merge-normalize cycle against the spreadsheet
// and builds the views served to the presentation layer.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/spend-tracker/internal/cache"
	"github.com/dvloznov/spend-tracker/internal/ledger"
	"github.com/dvloznov/spend-tracker/internal/logger"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// SnapshotStatus describes what a fetch cycle found.
type SnapshotStatus string

const (
	// StatusOK means at least one visible row.
	StatusOK SnapshotStatus = "ok"
	// StatusEmpty means both ranges returned no data rows.
	StatusEmpty SnapshotStatus = "empty"
	// StatusNoVisibleRows means every row was soft-deleted.
	StatusNoVisibleRows SnapshotStatus = "no_visible_rows"
)

// SourceStatus reports how one range read went.
type SourceStatus struct {
	Source ledger.Source `json:"source"`
	Range  string        `json:"range"`
	Rows   int           `json:"rows"`
	Error  string        `json:"error,omitempty"`
}

// Available reports whether the range was read.
func (s SourceStatus) Available() bool {
	return s.Error == ""
}

// Snapshot is the immutable result of one fetch cycle.
type Snapshot struct {
	FetchedAt     time.Time                        `json:"fetched_at"`
	ReloadCounter uint64                           `json:"reload_counter"`
	Status        SnapshotStatus                   `json:"status"`
	Sources       []SourceStatus                   `json:"sources"`
	Stats         ledger.MergeStats                `json:"stats"`
	Columns       []string                         `json:"columns"`
	Transactions  []ledger.Transaction             `json:"-"`
	Daily         map[civil.Date]ledger.DailyTotal `json:"-"`
}

// Degraded reports whether any range could not be read.
func (s *Snapshot) Degraded() bool {
	for _, src := range s.Sources {
		if !src.Available() {
			return true
		}
	}
	return false
}

// Err returns ledger.ErrEmptyLedger when the snapshot has no visible rows.
func (s *Snapshot) Err() error {
	if s.Status == StatusOK {
		return nil
	}
	return fmt.Errorf("%w: %s", ledger.ErrEmptyLedger, s.Status)
}

// Options locates the ledger and tunes the fetch cycle.
type Options struct {
	SpreadsheetID string
	HistoryRange  string
	AppendRange   string
	CacheTTL      time.Duration
	Location      *time.Location
}

// Service runs fetch cycles and appends for any number of sessions. It holds
// no per-session state.
type Service struct {
	opts        Options
	reader      ledger.RangeReader
	coordinator *ledger.Coordinator
	cache       *cache.Cache
	normalizer  *ledger.Normalizer
	log         zerolog.Logger
	now         func() time.Time
}

// NewService wires a service. c may be shared with other services.
func NewService(opts Options, reader ledger.RangeReader, appender ledger.RecordAppender, c *cache.Cache, log zerolog.Logger) *Service {
	if c == nil {
		c = cache.New()
	}
	return &Service{
		opts:        opts,
		reader:      reader,
		coordinator: ledger.NewCoordinator(appender, opts.SpreadsheetID, opts.AppendRange),
		cache:       c,
		normalizer:  ledger.NewNormalizer(opts.Location),
		log:         logger.WithComponent(log, "tracker"),
		now:         time.Now,
	}
}

// WithClock replaces the time source for fetch times, appends and the default day.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	s.coordinator.WithClock(now)
	return s
}

// Location returns the zone calendar days are derived in.
func (s *Service) Location() *time.Location {
	return s.normalizer.Location()
}

// CacheKey identifies the cached snapshot for a session's reload counter.
// Counters start at zero in every session, so the session id scopes the key.
func (s *Service) CacheKey(sessionID string, reload uint64) string {
	return strings.Join([]string{
		sessionID,
		s.opts.SpreadsheetID,
		s.opts.HistoryRange,
		s.opts.AppendRange,
		strconv.FormatUint(reload, 10),
	}, "|")
}

// Fetch returns the snapshot for the session's reload counter, reading the
// spreadsheet on a cache miss. A range that fails to read contributes no rows
// and is reported in Snapshot.Sources; the only error is a cancelled context.
func (s *Service) Fetch(ctx context.Context, sess *Session) (*Snapshot, error) {
	reload := sess.ReloadCounter()
	log := logger.WithSession(s.log, sess.ID(), reload)

	v, hit, err := s.cache.GetOrCompute(s.CacheKey(sess.ID(), reload), s.opts.CacheTTL, func() (any, error) {
		snap, err := s.read(ctx, reload, log)
		if err != nil {
			return nil, err
		}
		if snap.Degraded() {
			// the next cycle reads again
			return cache.NoStore(snap), nil
		}
		return snap, nil
	})
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}

	snap, ok := v.(*Snapshot)
	if !ok {
		return nil, fmt.Errorf("Fetch: unexpected cached value %T", v)
	}

	sess.markRefreshed(snap.FetchedAt)
	log.Debug().Bool("cache_hit", hit).Str("status", string(snap.Status)).Int("rows", len(snap.Transactions)).Msg("snapshot ready")
	return snap, nil
}

// Refresh drops the cached snapshot for the session, bumps its reload counter
// and fetches again.
func (s *Service) Refresh(ctx context.Context, sess *Session) (*Snapshot, error) {
	s.cache.Invalidate(s.CacheKey(sess.ID(), sess.ReloadCounter()))
	reload := s.bump(sess)
	log := logger.WithSession(s.log, sess.ID(), reload)
	log.Info().Msg("manual refresh")
	return s.Fetch(ctx, sess)
}

// Append submits e to the append range. On success the session's reload
// counter is bumped so its next fetch observes the new row. Errors are
// ledger.ErrInvalidEntry or *ledger.AppendFailure.
func (s *Service) Append(ctx context.Context, sess *Session, e ledger.Entry) (ledger.Result, error) {
	log := logger.WithSession(s.log, sess.ID(), sess.ReloadCounter())
	if strings.TrimSpace(e.Bank) == "" {
		err := fmt.Errorf("%w: bank is required", ledger.ErrInvalidEntry)
		return ledger.Result{Status: ledger.StatusError, Detail: err.Error()}, err
	}

	res, err := s.coordinator.Append(ctx, e)
	if err != nil {
		var failure *ledger.AppendFailure
		if errors.As(err, &failure) {
			log.Error().Err(failure.Err).Str("range", s.opts.AppendRange).Msg("append rejected by transport")
		} else {
			log.Warn().Err(err).Msg("append rejected")
		}
		return res, err
	}

	reload := s.bump(sess)
	log.Info().
		Str("updated_range", res.UpdatedRange).
		Str("date", e.Date.String()).
		Str("bank", e.Bank).
		Str("type", e.Type).
		Str("amount", e.Amount.String()).
		Uint64("next_reload", reload).
		Msg("entry appended")
	return res, nil
}

// bump advances the session's counter and drops anything already cached
// under the new key, such as a snapshot left by an earlier session with the
// same id.
func (s *Service) bump(sess *Session) uint64 {
	reload := sess.Bump()
	s.cache.Invalidate(s.CacheKey(sess.ID(), reload))
	return reload
}

func (s *Service) read(ctx context.Context, reload uint64, log zerolog.Logger) (*Snapshot, error) {
	hist := SourceStatus{Source: ledger.SourceHistory, Range: s.opts.HistoryRange}
	app := SourceStatus{Source: ledger.SourceAppend, Range: s.opts.AppendRange}
	var histRows, appRows []ledger.RawRow

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		histRows = s.readSource(gctx, &hist, log)
		return gctx.Err()
	})
	g.Go(func() error {
		appRows = s.readSource(gctx, &app, log)
		return gctx.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l := ledger.Merge(histRows, appRows)
	txs := s.normalizer.NormalizeLedger(l)

	degradedRows := 0
	for _, tx := range txs {
		if len(tx.Diagnostics) > 0 {
			degradedRows++
			for _, d := range tx.Diagnostics {
				log.Debug().Str("source", string(tx.Source)).Int("index", tx.SourceIndex).Str("field", string(d.Field)).Str("value", d.Value).Msg(d.Reason)
			}
		}
	}

	snap := &Snapshot{
		FetchedAt:     s.now().UTC(),
		ReloadCounter: reload,
		Sources:       []SourceStatus{hist, app},
		Stats:         l.Stats,
		Columns:       l.Columns,
		Transactions:  txs,
		Daily:         ledger.Aggregate(txs),
	}
	switch {
	case l.Stats.History+l.Stats.Appended == 0:
		snap.Status = StatusEmpty
	case l.Empty():
		snap.Status = StatusNoVisibleRows
	default:
		snap.Status = StatusOK
	}

	log.Info().
		Int("history", l.Stats.History).
		Int("appended", l.Stats.Appended).
		Int("deleted", l.Stats.Deleted).
		Int("degraded_rows", degradedRows).
		Str("status", string(snap.Status)).
		Msg("ledger fetched")
	return snap, nil
}

func (s *Service) readSource(ctx context.Context, status *SourceStatus, log zerolog.Logger) []ledger.RawRow {
	rows, err := ledger.ReadSource(ctx, s.reader, s.opts.SpreadsheetID, status.Range, status.Source)
	if err != nil {
		if ctx.Err() == nil {
			status.Error = err.Error()
			log.Warn().Err(err).Str("source", string(status.Source)).Str("range", status.Range).Msg("source unavailable, continuing without it")
		}
		return nil
	}
	status.Rows = len(rows)
	return rows
}

package tracker

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/spend-tracker/internal/ledger"
)

// Mode selects how the totals period is chosen.
type Mode string

const (
	// ModeSingle selects one calendar day, today by default.
	ModeSingle Mode = "single"
	// ModeRange selects an inclusive range, the data's bounds by default.
	ModeRange Mode = "range"
)

// DefaultTopN is the number of categories returned when Query.TopN is unset.
const DefaultTopN = 5

// Query narrows a snapshot into a view.
type Query struct {
	// Banks to include. Nil means every bank; a non-nil empty slice means none.
	Banks []string
	Mode  Mode
	// Day is used in ModeSingle.
	Day civil.Date
	// Start and End are used in ModeRange. Either may be left zero to take the
	// corresponding data bound.
	Start civil.Date
	End   civil.Date
	TopN  int
}

// ParseMode maps a mode name to a Mode. Empty means ModeSingle.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeSingle:
		return ModeSingle, nil
	case ModeRange:
		return ModeRange, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// View is everything the presentation layer renders for one query.
type View struct {
	SessionID     string                 `json:"session_id"`
	ReloadCounter uint64                 `json:"reload_counter"`
	LastRefreshed time.Time              `json:"last_refreshed"`
	Status        SnapshotStatus         `json:"status"`
	Sources       []SourceStatus         `json:"sources"`
	Stats         ledger.MergeStats      `json:"stats"`
	Banks         []string               `json:"banks"`
	SelectedBanks []string               `json:"selected_banks"`
	Mode          Mode                   `json:"mode"`
	Bounds        *ledger.DateRange      `json:"bounds"`
	Range         ledger.DateRange       `json:"range"`
	Summary       ledger.Summary         `json:"summary"`
	Rows          []ledger.Transaction   `json:"-"`
	Daily         []ledger.DailyTotal    `json:"-"`
	Monthly       []ledger.MonthlyTotal  `json:"-"`
	TopCategories []ledger.CategoryTotal `json:"-"`
}

// Dashboard fetches the session's snapshot and applies q.
func (s *Service) Dashboard(ctx context.Context, sess *Session, q Query) (*View, error) {
	snap, err := s.Fetch(ctx, sess)
	if err != nil {
		return nil, err
	}
	return s.BuildView(snap, sess, q), nil
}

// BuildView applies q to snap. Daily, monthly and category breakdowns cover
// the bank-filtered rows over all dates; Rows and Summary cover the selected
// period only.
func (s *Service) BuildView(snap *Snapshot, sess *Session, q Query) *View {
	all := ledger.Banks(snap.Transactions)
	selected := q.Banks
	if selected == nil {
		selected = all
	}
	bankSet := ledger.BankSet(selected)
	filtered := ledger.FilterBanks(snap.Transactions, bankSet)
	daily := ledger.Aggregate(filtered)

	view := &View{
		SessionID:     sess.ID(),
		ReloadCounter: snap.ReloadCounter,
		LastRefreshed: sess.LastRefreshed(),
		Status:        snap.Status,
		Sources:       snap.Sources,
		Stats:         snap.Stats,
		Banks:         all,
		SelectedBanks: selected,
		Mode:          q.Mode,
		Daily:         ledger.DailySeries(daily),
		Monthly:       ledger.MonthlyTotals(daily),
		TopCategories: ledger.TopCategories(filtered, topN(q.TopN)),
	}
	if view.Mode == "" {
		view.Mode = ModeSingle
	}

	bounds, ok := ledger.DateBounds(filtered)
	if ok {
		view.Bounds = &bounds
	}
	view.Range = s.period(view.Mode, q, bounds)
	view.Rows, view.Summary = ledger.Select(snap.Transactions, bankSet, view.Range.Start, view.Range.End)
	return view
}

func (s *Service) period(mode Mode, q Query, bounds ledger.DateRange) ledger.DateRange {
	if mode == ModeRange {
		r := ledger.Range(q.Start, q.End)
		if !r.Start.IsValid() {
			r.Start = bounds.Start
		}
		if !r.End.IsValid() {
			r.End = bounds.End
		}
		return r
	}
	day := q.Day
	if !day.IsValid() {
		day = civil.DateOf(s.now().In(s.Location()))
	}
	return ledger.SingleDay(day)
}

func topN(n int) int {
	if n <= 0 {
		return DefaultTopN
	}
	return n
}

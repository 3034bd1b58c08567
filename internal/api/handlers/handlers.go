package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/spend-tracker/internal/api/middleware"
	"github.com/dvloznov/spend-tracker/internal/ledger"
	"github.com/dvloznov/spend-tracker/internal/logger"
	"github.com/dvloznov/spend-tracker/internal/tracker"
	"github.com/rs/zerolog"
)

// Tracker is the part of tracker.Service the HTTP layer uses.
type Tracker interface {
	Dashboard(ctx context.Context, sess *tracker.Session, q tracker.Query) (*tracker.View, error)
	Refresh(ctx context.Context, sess *tracker.Session) (*tracker.Snapshot, error)
	Append(ctx context.Context, sess *tracker.Session, e ledger.Entry) (ledger.Result, error)
}

// TrackerHandler handles dashboard, transaction and refresh endpoints.
type TrackerHandler struct {
	svc Tracker
	log zerolog.Logger
}

// NewTrackerHandler creates a new tracker handler.
func NewTrackerHandler(svc Tracker, log zerolog.Logger) *TrackerHandler {
	return &TrackerHandler{
		svc: svc,
		log: log,
	}
}

// Dashboard handles GET /api/dashboard
func (h *TrackerHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	view, ok := h.view(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, NewDashboardResponse(view))
}

// ListTransactions handles GET /api/transactions
func (h *TrackerHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	view, ok := h.view(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"view":         newViewResponse(view),
		"range":        view.Range,
		"summary":      view.Summary,
		"transactions": transactionResponses(view.Rows),
		"count":        len(view.Rows),
	})
}

// ExportTransactionsCSV handles GET /api/transactions.csv
func (h *TrackerHandler) ExportTransactionsCSV(w http.ResponseWriter, r *http.Request) {
	view, ok := h.view(w, r)
	if !ok {
		return
	}

	filename := fmt.Sprintf("transactions-%s-%s.csv", view.Range.Start, view.Range.End)
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if err := ledger.WriteCSV(w, view.Rows); err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("Failed to write CSV")
	}
}

// DailyTotals handles GET /api/daily-totals
func (h *TrackerHandler) DailyTotals(w http.ResponseWriter, r *http.Request) {
	view, ok := h.view(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"view":    newViewResponse(view),
		"daily":   dailyResponses(view.Daily),
		"monthly": view.Monthly,
		"count":   len(view.Daily),
	})
}

// ListBanks handles GET /api/banks
func (h *TrackerHandler) ListBanks(w http.ResponseWriter, r *http.Request) {
	view, ok := h.view(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"banks": nonNil(view.Banks),
		"count": len(view.Banks),
	})
}

// AppendTransaction handles POST /api/transactions
func (h *TrackerHandler) AppendTransaction(w http.ResponseWriter, r *http.Request) {
	var entry ledger.Entry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx := r.Context()
	sess := middleware.SessionFromContext(ctx)
	res, err := h.svc.Append(ctx, sess, entry)
	if err != nil {
		var failure *ledger.AppendFailure
		switch {
		case errors.Is(err, ledger.ErrInvalidEntry):
			middleware.WriteJSON(w, http.StatusBadRequest, res)
		case errors.As(err, &failure):
			middleware.WriteJSON(w, http.StatusBadGateway, res)
		default:
			log := logger.FromContext(ctx)
			log.Error().Err(err).Msg("Failed to append transaction")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to append transaction")
		}
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"status":         res.Status,
		"updated_range":  res.UpdatedRange,
		"reload_counter": sess.ReloadCounter(),
	})
}

// Refresh handles POST /api/refresh
func (h *TrackerHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := middleware.SessionFromContext(ctx)

	snap, err := h.svc.Refresh(ctx, sess)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Msg("Failed to refresh ledger")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to refresh ledger")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"session_id":     sess.ID(),
		"reload_counter": snap.ReloadCounter,
		"fetched_at":     snap.FetchedAt,
		"status":         snap.Status,
		"sources":        snap.Sources,
		"stats":          snap.Stats,
	})
}

// view parses the query and loads the session's view, writing the error
// response itself when it fails.
func (h *TrackerHandler) view(w http.ResponseWriter, r *http.Request) (*tracker.View, bool) {
	q, err := ParseQuery(r.URL.Query())
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	ctx := r.Context()
	view, err := h.svc.Dashboard(ctx, middleware.SessionFromContext(ctx), q)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Msg("Failed to load ledger")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load ledger")
		return nil, false
	}
	return view, true
}

// ParseQuery reads bank, mode, day, start, end and top. Without any bank
// parameter every bank is selected; bank= alone selects none.
func ParseQuery(values url.Values) (tracker.Query, error) {
	var q tracker.Query

	if raw, ok := values["bank"]; ok {
		q.Banks = []string{}
		for _, b := range raw {
			if b = strings.TrimSpace(b); b != "" {
				q.Banks = append(q.Banks, b)
			}
		}
	}

	mode, err := tracker.ParseMode(values.Get("mode"))
	if err != nil {
		return q, err
	}
	q.Mode = mode

	for _, p := range []struct {
		name string
		dst  *civil.Date
	}{
		{"day", &q.Day},
		{"start", &q.Start},
		{"end", &q.End},
	} {
		if s := values.Get(p.name); s != "" {
			d, err := civil.ParseDate(s)
			if err != nil {
				return q, fmt.Errorf("invalid %s: %q", p.name, s)
			}
			*p.dst = d
		}
	}

	if s := values.Get("top"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return q, fmt.Errorf("invalid top: %q", s)
		}
		q.TopN = n
	}

	return q, nil
}

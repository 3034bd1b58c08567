// Package api assembles the HTTP routes and middleware of the tracker server.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/dvloznov/spend-tracker/internal/api/handlers"
	"github.com/dvloznov/spend-tracker/internal/api/middleware"
	"github.com/dvloznov/spend-tracker/internal/jobs"
	"github.com/dvloznov/spend-tracker/internal/tracker"
	"github.com/rs/zerolog"
)

// Deps are the services behind the routes.
type Deps struct {
	Tracker   handlers.Tracker
	Sessions  *tracker.SessionStore
	Publisher jobs.Publisher
	Jobs      jobs.JobStore
	APIKey    string
	Log       zerolog.Logger
}

// NewRouter returns the full handler chain.
func NewRouter(d Deps) http.Handler {
	trackerHandler := handlers.NewTrackerHandler(d.Tracker, d.Log)
	exportsHandler := handlers.NewExportsHandler(d.Publisher, d.Log)
	jobsHandler := handlers.NewJobsHandler(d.Jobs, d.Log)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/dashboard", get(trackerHandler.Dashboard))
	mux.HandleFunc("/api/banks", get(trackerHandler.ListBanks))
	mux.HandleFunc("/api/daily-totals", get(trackerHandler.DailyTotals))
	mux.HandleFunc("/api/transactions.csv", get(trackerHandler.ExportTransactionsCSV))

	mux.HandleFunc("/api/transactions", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			trackerHandler.ListTransactions(w, r)
		case http.MethodPost:
			trackerHandler.AppendTransaction(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/refresh", post(trackerHandler.Refresh))
	mux.HandleFunc("/api/exports", post(exportsHandler.EnqueueExport))

	// Jobs endpoints
	mux.HandleFunc("/api/jobs", get(jobsHandler.ListJobs))
	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		// Extract job ID from path
		jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
		if jobID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
			return
		}
		jobsHandler.GetJob(w, r, jobID)
	})

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return middleware.Recovery(d.Log)(
		middleware.RequestID(
			middleware.Logger(d.Log)(
				middleware.CORS(
					middleware.Auth(d.APIKey)(
						middleware.Session(d.Sessions)(mux),
					),
				),
			),
		),
	)
}

func get(h http.HandlerFunc) http.HandlerFunc {
	return only(http.MethodGet, h)
}

func post(h http.HandlerFunc) http.HandlerFunc {
	return only(http.MethodPost, h)
}

func only(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h(w, r)
	}
}

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/spend-tracker/internal/api/middleware"
	"github.com/dvloznov/spend-tracker/internal/jobs"
	"github.com/rs/zerolog"
)

// ExportsHandler enqueues export jobs.
type ExportsHandler struct {
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewExportsHandler creates a new exports handler.
func NewExportsHandler(publisher jobs.Publisher, log zerolog.Logger) *ExportsHandler {
	return &ExportsHandler{
		publisher: publisher,
		log:       log,
	}
}

// EnqueueExport handles POST /api/exports
func (h *ExportsHandler) EnqueueExport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type  jobs.JobType `json:"type"`
		Banks []string     `json:"banks"`
		Start string       `json:"start"`
		End   string       `json:"end"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if !req.Type.Valid() {
		middleware.WriteError(w, http.StatusBadRequest, "type must be export_csv or snapshot_daily_totals")
		return
	}

	job := &jobs.ExportJob{
		Type:  req.Type,
		Banks: req.Banks,
	}
	for _, p := range []struct {
		name, value string
		dst         *civil.Date
	}{
		{"start", req.Start, &job.Start},
		{"end", req.End, &job.End},
	} {
		if p.value == "" {
			continue
		}
		d, err := civil.ParseDate(p.value)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid "+p.name+" date")
			return
		}
		*p.dst = d
	}

	ctx := r.Context()
	if sess := middleware.SessionFromContext(ctx); sess != nil {
		job.SessionID = sess.ID()
	}

	if err := h.publisher.PublishExport(ctx, job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue export job")
		status := http.StatusInternalServerError
		if errors.Is(err, jobs.ErrQueueClosed) {
			status = http.StatusServiceUnavailable
		}
		middleware.WriteError(w, status, "Failed to enqueue export job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("type", string(job.Type)).Msg("Export job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"type":   string(job.Type),
		"status": string(job.Status),
	})
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx := r.Context()

	job, err := h.store.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Job not found")
			return
		}
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Parse query parameters
	query := r.URL.Query()
	filter := jobs.JobFilter{
		Type:   jobs.JobType(query.Get("type")),
		Status: jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	if jobsList == nil {
		jobsList = []*jobs.ExportJob{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}

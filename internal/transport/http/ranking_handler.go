package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/kosonkh7/SOPO-Dashboard/internal/config"
	apperrors "github.com/kosonkh7/SOPO-Dashboard/internal/errors"
	"github.com/kosonkh7/SOPO-Dashboard/internal/middleware"
	"github.com/kosonkh7/SOPO-Dashboard/internal/operations"
)

var jobStatuses = []string{
	string(operations.JobStatusPending),
	string(operations.JobStatusRunning),
	string(operations.JobStatusCompleted),
	string(operations.JobStatusFailed),
	string(operations.JobStatusCancelled),
}

// RankingJobsHandler serves asynchronous ranking sweeps
type RankingJobsHandler struct {
	queue         JobQueueInterface
	validator     *middleware.ValidationMiddleware
	query         *middleware.QueryParamValidator
	errorHandler  *apperrors.ErrorHandler
	defaultPeriod int
	logger        *slog.Logger
}

// NewRankingJobsHandler creates a ranking jobs handler
func NewRankingJobsHandler(queue JobQueueInterface, defaultPeriod int, logger *slog.Logger, errorHandler *apperrors.ErrorHandler) *RankingJobsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if !config.IsAllowedPeriod(defaultPeriod) {
		defaultPeriod = config.DefaultPeriodDays
	}
	return &RankingJobsHandler{
		queue:         queue,
		validator:     middleware.NewValidationMiddleware(logger, errorHandler),
		query:         middleware.NewQueryParamValidator(logger, errorHandler),
		errorHandler:  errorHandler,
		defaultPeriod: defaultPeriod,
		logger:        logger.With(slog.String("component", "ranking_jobs_handler")),
	}
}

// Routes returns the ranking job routes
func (h *RankingJobsHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreateJob)
	r.Get("/", h.ListJobs)
	r.Get("/{id}", h.GetJob)
	r.Delete("/{id}", h.CancelJob)

	return r
}

// CreateJob handles POST /api/ranking/jobs
func (h *RankingJobsHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req operations.RankingRequest
	if err := h.validator.DecodeAndValidate(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if req.PeriodDays == 0 {
		req.PeriodDays = h.defaultPeriod
	}

	job, err := h.queue.Enqueue(r.Context(), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, apperrors.ErrQueueUnavailable(err))
		return
	}

	h.logger.InfoContext(r.Context(), "ranking job queued",
		slog.String("job_id", job.ID),
		slog.Int("period_days", req.PeriodDays))

	w.Header().Set("Location", strings.TrimSuffix(r.URL.Path, "/")+"/"+job.ID)
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   job,
	})
}

// ListJobs handles GET /api/ranking/jobs?status=..&limit=..&since=..
func (h *RankingJobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	status, ok := h.query.ValidateEnum(w, r, "status", jobStatuses, "")
	if !ok {
		return
	}
	limit, ok := h.query.ValidateInt(w, r, "limit", 0, 1000, 50)
	if !ok {
		return
	}

	filter := operations.JobFilter{Status: operations.JobStatus(status), Limit: limit}
	if since := r.URL.Query().Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			h.errorHandler.HandleError(w, r, apperrors.ErrValidation("since", "must be an RFC 3339 timestamp"))
			return
		}
		filter.Since = t
	}

	jobs, err := h.queue.ListJobs(filter)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	// Results are large; fetch a single job for its ranking
	summaries := make([]*operations.Job, len(jobs))
	for i, job := range jobs {
		j := *job
		j.Result = nil
		summaries[i] = &j
	}
	respond(w, r, summaries, len(summaries))
}

// GetJob handles GET /api/ranking/jobs/{id}
func (h *RankingJobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.queue.GetJob(chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	respond(w, r, job, 1)
}

// CancelJob handles DELETE /api/ranking/jobs/{id}
func (h *RankingJobsHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := h.queue.GetJob(id); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if err := h.queue.CancelJob(id); err != nil {
		h.errorHandler.HandleError(w, r, apperrors.ErrJobFinished(id, err))
		return
	}

	h.logger.InfoContext(r.Context(), "ranking job cancelled", slog.String("job_id", id))
	render.JSON(w, r, map[string]interface{}{
		"status":  "success",
		"message": "cancellation requested",
		"job_id":  id,
	})
}

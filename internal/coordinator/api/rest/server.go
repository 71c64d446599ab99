package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/nemanja-m/mrstep/internal/backend/local"
	"github.com/nemanja-m/mrstep/internal/shared/config"
	"github.com/nemanja-m/mrstep/internal/shared/logging"
	"github.com/nemanja-m/mrstep/internal/step/core"
	"github.com/nemanja-m/mrstep/pkg/jobs"
)

// JobRunner runs submitted jobs and reports on them.
type JobRunner interface {
	Submit(ctx context.Context, spec core.JobSpec) (core.Handle, error)
	Snapshot(id string) (local.Snapshot, error)
	List() []local.Snapshot
}

type API struct {
	runner JobRunner
	logger logging.Logger
}

func NewAPI(runner JobRunner, logger logging.Logger) *API {
	return &API{
		runner: runner,
		logger: logger,
	}
}

func (a *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/jobs", a.submitJob)
	mux.HandleFunc("GET /api/jobs", a.listJobs)
	mux.HandleFunc("GET /api/jobs/{id}", a.getJob)
	mux.HandleFunc("GET /api/jobs/{id}/counters", a.getJobCounters)
	mux.HandleFunc("GET /healthz", a.health)
}

func (a *API) submitJob(w http.ResponseWriter, r *http.Request) {
	var req SubmitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := a.validateSubmitJobRequest(&req); err != nil {
		a.respondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	handle, err := a.runner.Submit(r.Context(), req.ToJobSpec())
	switch {
	case errors.Is(err, jobs.ErrJobNotFound):
		a.respondError(w, http.StatusBadRequest, "unknown job", err.Error())
		return
	case errors.Is(err, local.ErrClosed):
		a.respondError(w, http.StatusServiceUnavailable, "coordinator is shutting down", "")
		return
	case err != nil:
		a.logger.Error("Failed to submit job", "name", req.Name, "error", err)
		a.respondError(w, http.StatusInternalServerError, "failed to submit job", err.Error())
		return
	}

	job, err := a.runner.Snapshot(handle.ID)
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, "failed to read submitted job", err.Error())
		return
	}

	a.logger.Info("Job submitted", "job_id", job.ID, "name", job.Name)
	a.respondJSON(w, http.StatusCreated, SubmitJobResponse{
		JobID:       job.ID,
		Status:      ToStatus(job.Status, job.Phase),
		SubmittedAt: job.SubmittedAt,
		Links:       jobLinks(job.ID),
	})
}

// getJob handles GET /api/jobs/{id}
func (a *API) getJob(w http.ResponseWriter, r *http.Request) {
	job, ok := a.lookupJob(w, r)
	if !ok {
		return
	}
	a.respondJSON(w, http.StatusOK, ToGetJobResponse(job))
}

// getJobCounters handles GET /api/jobs/{id}/counters
func (a *API) getJobCounters(w http.ResponseWriter, r *http.Request) {
	job, ok := a.lookupJob(w, r)
	if !ok {
		return
	}
	if !job.Status.IsComplete() {
		a.respondError(w, http.StatusConflict, "job not complete", ToStatus(job.Status, job.Phase))
		return
	}
	a.respondJSON(w, http.StatusOK, ToCountersResponse(job))
}

// listJobs handles GET /api/jobs with filters and pagination
func (a *API) listJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	statusFilter := query.Get("status")

	limit := 10
	if limitStr := query.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	offset := 0
	if offsetStr := query.Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	allJobs := make([]JobSummary, 0)
	for _, job := range a.runner.List() {
		summary := ToJobSummary(job)
		if statusFilter != "" && summary.Status != statusFilter {
			continue
		}
		allJobs = append(allJobs, summary)
	}

	total := len(allJobs)
	start := min(offset, total)
	end := min(start+limit, total)

	var nextOffset *int
	if end < total {
		next := end
		nextOffset = &next
	}

	a.respondJSON(w, http.StatusOK, ListJobsResponse{
		Jobs:       allJobs[start:end],
		Total:      total,
		Limit:      limit,
		Offset:     offset,
		NextOffset: nextOffset,
	})
}

func (a *API) health(w http.ResponseWriter, _ *http.Request) {
	a.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) lookupJob(w http.ResponseWriter, r *http.Request) (local.Snapshot, bool) {
	jobID := r.PathValue("id")
	if jobID == "" {
		a.respondError(w, http.StatusBadRequest, "job ID required", "")
		return local.Snapshot{}, false
	}

	job, err := a.runner.Snapshot(jobID)
	if errors.Is(err, local.ErrUnknownJob) {
		a.respondError(w, http.StatusNotFound, "job not found", "")
		return local.Snapshot{}, false
	}
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, "failed to read job", err.Error())
		return local.Snapshot{}, false
	}
	return job, true
}

func (a *API) validateSubmitJobRequest(req *SubmitJobRequest) error {
	if req.Name == "" {
		return fmt.Errorf("job name is required")
	}

	if len(req.Input.Paths) == 0 {
		return fmt.Errorf("at least one input path is required")
	}

	if req.Config.NumReducers < 0 {
		return fmt.Errorf("numReducers must not be negative")
	}

	return nil
}

func (a *API) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		a.logger.Warn("Failed to encode response", "error", err)
	}
}

func (a *API) respondError(w http.ResponseWriter, statusCode int, error string, message string) {
	resp := ErrorResponse{
		Error:   error,
		Message: message,
		Code:    statusCode,
	}
	a.respondJSON(w, statusCode, resp)
}

func NewServer(cfg config.RESTConfig, runner JobRunner, logger logging.Logger) *http.Server {
	api := NewAPI(runner, logger)
	mux := http.NewServeMux()
	api.RegisterRoutes(mux)

	handler := ChainMiddleware(
		mux,
		RecoveryMiddleware(logger),
		RequestIDMiddleware,
		LoggingMiddleware(logger),
	)

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

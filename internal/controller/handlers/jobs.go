package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"

	"outpost/internal/audit"
	"outpost/internal/controller/middleware"
	"outpost/internal/store"
	"outpost/pkg/api"
)

// defaultListLimit bounds job and audit listings when the caller gives none.
const defaultListLimit = 50

// SubmitJob handles POST /jobs.
//
// The job is durably stored in pending before anything is published: the
// executor's first action assumes the record exists. If the store write
// succeeds but the publish fails, the job is returned with a queue_error
// detail; it is retrievable but will not execute until reconciled.
func (h *Handlers) SubmitJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.SubmitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Command == "" {
		h.httpError(w, "Command is required", http.StatusBadRequest)
		return
	}
	if !store.ValidAgent(req.Agent) {
		h.httpError(w, "Unknown agent", http.StatusBadRequest)
		return
	}
	if req.Priority == "" {
		req.Priority = "normal"
	}

	identity, ok := middleware.IdentityFromContext(ctx)
	if !ok || !identity.HasScope(store.ScopeJobRun) {
		h.httpError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	job := &store.Job{
		// ULIDs sort by creation time, so job ids double as the
		// submission-order listing key.
		JobID:     ulid.Make().String(),
		TenantID:  identity.TenantID,
		Agent:     store.AgentType(req.Agent),
		Command:   req.Command,
		Status:    store.JobStatusPending,
		Priority:  req.Priority,
		CreatedAt: time.Now().UTC(),
	}

	if err := h.store.CreateJob(ctx, job); err != nil {
		h.logger.Error("failed to persist job", "error", err)
		h.httpError(w, "Failed to create job", http.StatusInternalServerError)
		return
	}

	resp := jobResponse(job)

	payload, _ := json.Marshal(job)
	err := h.queue.Enqueue(ctx, payload, store.MessageAttributes{
		TenantID: job.TenantID,
		JobID:    job.JobID,
		Priority: job.Priority,
	})
	if err != nil {
		// Persist-before-publish: the record exists but is orphaned. No
		// automatic cleanup; surface the degraded outcome to the caller.
		h.logger.Error("job stored but not queued", "job_id", job.JobID, "error", err)
		resp.QueueError = "job accepted but not queued; contact support"
	}

	h.audit.Log(ctx, job.TenantID, audit.ActionSubmitJob, job.JobID, map[string]any{
		"agent":    req.Agent,
		"priority": job.Priority,
	})

	h.respondJson(w, http.StatusCreated, resp)
}

// ListJobs handles GET /jobs. Newest-first, bounded by ?limit (default 50).
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenantID, ok := middleware.TenantIDFromContext(ctx)
	if !ok {
		h.httpError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	jobs, err := h.store.ListJobs(ctx, tenantID, limitParam(r, defaultListLimit))
	if err != nil {
		h.logger.Error("failed to list jobs", "error", err)
		h.httpError(w, "Failed to list jobs", http.StatusInternalServerError)
		return
	}

	resp := make([]api.JobResponse, 0, len(jobs))
	for i := range jobs {
		resp = append(resp, jobResponse(&jobs[i]))
	}
	h.respondJson(w, http.StatusOK, resp)
}

// GetJob handles GET /jobs/{id}.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenantID, ok := middleware.TenantIDFromContext(ctx)
	if !ok {
		h.httpError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	job, err := h.store.GetJob(ctx, tenantID, r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		h.httpError(w, "Job not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to get job", "error", err)
		h.httpError(w, "Failed to get job", http.StatusInternalServerError)
		return
	}

	h.respondJson(w, http.StatusOK, jobResponse(job))
}

// CancelJob handles DELETE /jobs/{id}.
//
// Cancellation is the single conditional transition pending -> cancelled.
// A job that already started, finished, or was cancelled before yields a
// conflict; the record is left untouched.
func (h *Handlers) CancelJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := r.PathValue("id")

	tenantID, ok := middleware.TenantIDFromContext(ctx)
	if !ok {
		h.httpError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	err := h.store.CancelJob(ctx, tenantID, jobID)
	if errors.Is(err, store.ErrConflict) {
		// The zero-row update covers both "wrong state" and "no such job".
		// Look the record up to report the distinction.
		if _, getErr := h.store.GetJob(ctx, tenantID, jobID); errors.Is(getErr, store.ErrNotFound) {
			h.httpError(w, "Job not found", http.StatusNotFound)
			return
		}
		h.httpError(w, "Job is not cancellable", http.StatusConflict)
		return
	}
	if err != nil {
		h.logger.Error("failed to cancel job", "error", err)
		h.httpError(w, "Failed to cancel job", http.StatusInternalServerError)
		return
	}

	h.audit.Log(ctx, tenantID, audit.ActionCancelJob, jobID, nil)

	h.respondJson(w, http.StatusOK, api.CancelJobResponse{
		JobID:  jobID,
		Status: string(store.JobStatusCancelled),
	})
}

func jobResponse(j *store.Job) api.JobResponse {
	return api.JobResponse{
		JobID:          j.JobID,
		TenantID:       j.TenantID,
		Agent:          string(j.Agent),
		Command:        j.Command,
		Status:         string(j.Status),
		Priority:       j.Priority,
		CreatedAt:      j.CreatedAt,
		StartedAt:      j.StartedAt,
		CompletedAt:    j.CompletedAt,
		OutputLocation: j.OutputLocation,
		ErrorMessage:   j.ErrorMessage,
	}
}

// Package httpx provides HTTP handlers and utilities for the agent job API.
package httpx

import (
	"log/slog"
	"net/http"

	"github.com/target/mmk-agent-api/internal/service"
)

// JobHandlers provides HTTP handlers for job submission and polling.
type JobHandlers struct {
	Svc    *service.JobService
	Logger *slog.Logger
}

type runRequest struct {
	Task string `json:"task"`
}

// runResponse carries the id twice: task_id is the key older clients read.
type runResponse struct {
	ID     string `json:"id"`
	TaskID string `json:"task_id"`
}

// Run handles POST /run.
func (h *JobHandlers) Run(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	job, err := h.Svc.Submit(r.Context(), req.Task)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, runResponse{ID: job.ID, TaskID: job.ID})
}

// List handles GET /tasks.
func (h *JobHandlers) List(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.Svc.List(r.Context()))
}

// Get handles GET /tasks/{id}.
func (h *JobHandlers) Get(w http.ResponseWriter, r *http.Request) {
	job, err := h.Svc.GetStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

func (h *JobHandlers) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	if status, _ := ErrorStatus(err); status >= http.StatusInternalServerError && h.Logger != nil {
		h.Logger.ErrorContext(r.Context(), "job request failed", "path", r.URL.Path, "error", err)
	}
	WriteAppError(w, err)
}

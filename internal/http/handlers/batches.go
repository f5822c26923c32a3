package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tryonserver/internal/domain"
	"tryonserver/internal/middleware"
	"tryonserver/internal/queue"
)

type batchResponse struct {
	BatchID       string `json:"batch_id"`
	TotalRequests int    `json:"total_requests"`
	Status        string `json:"status"`
}

// BatchesCreate admits a batch of render requests. The caller gets the batch
// id back immediately; rendering happens asynchronously.
func (a *App) BatchesCreate(w http.ResponseWriter, r *http.Request) {
	businessID := middleware.SubjectFromContext(r.Context())
	if businessID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing business context")
		return
	}
	var req queue.BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	batch, err := a.Admitter.Admit(r.Context(), businessID, req)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusAccepted, batchResponse{
		BatchID:       batch.ID,
		TotalRequests: batch.TotalCount,
		Status:        string(batch.Status),
	})
}

type jobView struct {
	ID           string    `json:"id"`
	Kind         string    `json:"kind"`
	Status       string    `json:"status"`
	RetryCount   int       `json:"retry_count"`
	OutputKey    string    `json:"output_key,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// BatchGet returns a batch's aggregate state plus per-job statuses and last
// errors, for polling and support escalation.
func (a *App) BatchGet(w http.ResponseWriter, r *http.Request) {
	businessID := middleware.SubjectFromContext(r.Context())
	if businessID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing business context")
		return
	}
	batchID := chi.URLParam(r, "id")
	if batchID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "batch id required")
		return
	}

	batch, err := a.Batches.GetByID(r.Context(), batchID)
	if err != nil {
		a.fail(w, err)
		return
	}
	if batch.BusinessID != businessID {
		a.fail(w, domain.ErrForbidden)
		return
	}
	jobs, err := a.Batches.ListJobs(r.Context(), batchID)
	if err != nil {
		a.fail(w, err)
		return
	}

	views := make([]jobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, jobView{
			ID:           job.ID,
			Kind:         string(job.Kind),
			Status:       string(job.Status),
			RetryCount:   job.RetryCount,
			OutputKey:    job.OutputKey,
			ErrorMessage: job.ErrorMessage,
			UpdatedAt:    job.UpdatedAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{
		"id":              batch.ID,
		"status":          batch.Status,
		"priority":        batch.Priority,
		"total_count":     batch.TotalCount,
		"completed_count": batch.CompletedCount,
		"failed_count":    batch.FailedCount,
		"created_at":      batch.CreatedAt,
		"completed_at":    batch.CompletedAt,
		"jobs":            views,
	})
}

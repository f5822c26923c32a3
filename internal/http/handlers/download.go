package handlers

import (
	"fmt"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"tryonserver/internal/access"
	"tryonserver/internal/domain"
	"tryonserver/internal/middleware"
	"tryonserver/internal/storage"
	"tryonserver/pkg/zip"
)

// Download serves one job's output with the access gate applied. The stored
// asset is always the unmarked original; what leaves this handler depends on
// the caller's purchases and tier right now.
func (a *App) Download(w http.ResponseWriter, r *http.Request) {
	businessID := middleware.SubjectFromContext(r.Context())
	if businessID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing business context")
		return
	}
	jobID := r.URL.Query().Get("id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "id required")
		return
	}

	job, err := a.Jobs.GetByID(r.Context(), jobID)
	if err != nil {
		a.fail(w, err)
		return
	}
	if kind := r.URL.Query().Get("type"); kind != "" && kind != string(job.Kind) {
		a.error(w, http.StatusBadRequest, "bad_request", "type does not match job kind")
		return
	}

	data, contentType, err := a.gatedOutput(r, businessID, job)
	if err != nil {
		a.fail(w, err)
		return
	}

	a.Logger.Info().
		Str("job_id", job.ID).
		Str("business_id", businessID).
		Str("country", middleware.CountryFromContext(r.Context())).
		Str("locale", middleware.LocaleFromContext(r.Context())).
		Bool("watermarked", contentType == "image/webp").
		Msg("download: served output")

	filename := job.ID + path.Ext(job.OutputKey)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// BatchArchive zips every deliverable output of a batch, applying the gate
// per item. Items the gate rejects are skipped rather than failing the
// archive.
func (a *App) BatchArchive(w http.ResponseWriter, r *http.Request) {
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

	var assets []zip.Asset
	for _, job := range jobs {
		if job.Status != domain.JobStatusCompleted {
			continue
		}
		data, contentType, err := a.gatedOutput(r, businessID, &job)
		if err != nil {
			continue
		}
		assets = append(assets, zip.Asset{
			Filename: job.ID + storage.ExtForMIME(contentType),
			MIME:     contentType,
			Data:     data,
		})
	}
	if len(assets) == 0 {
		a.fail(w, domain.ErrNotFound)
		return
	}

	archive := zip.ArchiveAssets(assets)
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=batch-%s.zip", batchID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

// gatedOutput loads a job's stored bytes and applies the delivery policy.
func (a *App) gatedOutput(r *http.Request, businessID string, job *domain.Job) ([]byte, string, error) {
	business, err := a.Businesses.GetByID(r.Context(), businessID)
	if err != nil {
		return nil, "", err
	}
	decision, err := a.Gate.Authorize(r.Context(), business, job)
	if err != nil {
		return nil, "", err
	}
	data, err := a.Store.Read(r.Context(), job.OutputKey)
	if err != nil {
		return nil, "", err
	}
	if decision.Watermark {
		return accessWatermark(data)
	}
	return data, storage.MIMEForKey(job.OutputKey), nil
}

// accessWatermark is indirected for tests; webp encoding needs cgo.
var accessWatermark = access.Watermark

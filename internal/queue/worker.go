package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"tryonserver/internal/domain"
	"tryonserver/internal/notify"
	"tryonserver/internal/render"
	"tryonserver/internal/storage"
)

// ErrNoBatch signals that no batch is currently claimable.
var ErrNoBatch = errors.New("queue: no batch available")

// Store is the persistence surface the worker drives. Status transitions are
// compare-and-swap on the prior status so competing workers on the same job
// cannot double-count; the boolean results report whether this worker won.
type Store interface {
	ClaimBatch(ctx context.Context, workerID string) (*domain.Batch, error)
	PendingJobs(ctx context.Context, batchID string) ([]domain.Job, error)
	StartJob(ctx context.Context, jobID string) (bool, error)
	CompleteJob(ctx context.Context, jobID, outputKey string) (bool, error)
	RequeueJob(ctx context.Context, jobID string, retryCount int, errMsg string) error
	FailJob(ctx context.Context, jobID string, retryCount int, errMsg string) (bool, error)
	FinalizeBatch(ctx context.Context, batchID string) (*domain.Batch, error)
	ModelReferenceKey(ctx context.Context, modelID string) (string, error)
}

// Renderer is the external composition adapter the worker blocks on.
type Renderer interface {
	Render(ctx context.Context, req render.Request) (*render.Result, error)
}

// Worker drains pending batches one pass at a time. Each pass processes the
// current snapshot of a batch's pending jobs; requeued jobs are picked up on
// a later invocation, which bounds per-pass latency.
type Worker struct {
	id       string
	store    Store
	renderer Renderer
	sink     storage.Sink
	notifier notify.Notifier
	logger   zerolog.Logger
}

// NewWorker wires a drain worker.
func NewWorker(id string, store Store, renderer Renderer, sink storage.Sink, notifier notify.Notifier, logger zerolog.Logger) *Worker {
	return &Worker{id: id, store: store, renderer: renderer, sink: sink, notifier: notifier, logger: logger}
}

// ProcessOne claims the best pending batch (priority first, then oldest) and
// runs one pass over its jobs. It reports false when nothing was claimable.
// A single job's failure never aborts its siblings.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	batch, err := w.store.ClaimBatch(ctx, w.id)
	if err != nil {
		if errors.Is(err, ErrNoBatch) {
			return false, nil
		}
		return false, err
	}

	w.logger.Info().Str("batch_id", batch.ID).Str("worker_id", w.id).Msg("worker: claimed batch")

	jobs, err := w.store.PendingJobs(ctx, batch.ID)
	if err != nil {
		return true, fmt.Errorf("load jobs for batch %s: %w", batch.ID, err)
	}
	for i := range jobs {
		if err := ctx.Err(); err != nil {
			return true, err
		}
		w.processJob(ctx, &jobs[i])
	}

	final, err := w.store.FinalizeBatch(ctx, batch.ID)
	if err != nil {
		return true, fmt.Errorf("finalize batch %s: %w", batch.ID, err)
	}
	w.logger.Info().
		Str("batch_id", final.ID).
		Str("status", string(final.Status)).
		Int("completed", final.CompletedCount).
		Int("failed", final.FailedCount).
		Bool("terminal", final.Terminal()).
		Msg("worker: batch pass done")
	return true, nil
}

// processJob drives one job through the adapter and sink. Errors are
// recorded on the job, never returned: a failed render below the retry cap
// requeues the job, at the cap it fails terminally.
func (w *Worker) processJob(ctx context.Context, job *domain.Job) {
	won, err := w.store.StartJob(ctx, job.ID)
	if err != nil {
		w.logger.Error().Err(err).Str("job_id", job.ID).Msg("worker: start job failed")
		return
	}
	if !won {
		// Another worker holds this job.
		return
	}

	outputKey, err := w.renderJob(ctx, job)
	if err != nil {
		w.recordFailure(ctx, job, err)
		return
	}

	won, err = w.store.CompleteJob(ctx, job.ID, outputKey)
	if err != nil {
		w.logger.Error().Err(err).Str("job_id", job.ID).Msg("worker: complete job failed")
		return
	}
	if won {
		w.notifier.NotifyCompletion(ctx, job.BusinessID, outputKey, job.Kind)
	}
}

// renderJob resolves the subject image, calls the adapter and persists the
// output. Human-model jobs re-validate that the model still has a reference
// image; royalty was already settled at admission so this is a read only.
func (w *Worker) renderJob(ctx context.Context, job *domain.Job) (string, error) {
	subjectKey := job.SubjectKey
	if job.Kind == domain.JobKindHumanModel {
		key, err := w.store.ModelReferenceKey(ctx, job.ModelID)
		if err != nil {
			return "", fmt.Errorf("resolve model reference: %w", err)
		}
		subjectKey = key
	}

	result, err := w.renderer.Render(ctx, render.Request{
		GarmentURL: job.GarmentKey,
		SubjectURL: subjectKey,
		JobID:      job.ID,
	})
	if err != nil {
		return "", err
	}

	key := storage.OutputKey(job.BatchID, job.ID, result.ContentType)
	savedKey, err := w.sink.Write(ctx, key, result.Data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrStorageFailure, err)
	}
	return savedKey, nil
}

// recordFailure increments the retry count and either requeues the job for a
// later pass or fails it terminally at the cap.
func (w *Worker) recordFailure(ctx context.Context, job *domain.Job, cause error) {
	retryCount := job.RetryCount + 1
	msg := cause.Error()

	if retryCount < domain.MaxJobRetries {
		if err := w.store.RequeueJob(ctx, job.ID, retryCount, msg); err != nil {
			w.logger.Error().Err(err).Str("job_id", job.ID).Msg("worker: requeue failed")
			return
		}
		w.logger.Warn().Str("job_id", job.ID).Int("retry_count", retryCount).Str("cause", msg).Msg("worker: job requeued")
		return
	}

	if _, err := w.store.FailJob(ctx, job.ID, retryCount, msg); err != nil {
		w.logger.Error().Err(err).Str("job_id", job.ID).Msg("worker: fail job failed")
		return
	}
	w.logger.Error().Str("job_id", job.ID).Int("retry_count", retryCount).Str("cause", msg).Msg("worker: job failed terminally")
}

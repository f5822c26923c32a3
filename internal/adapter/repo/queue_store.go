package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tryonserver/internal/domain"
	"tryonserver/internal/ledger"
	"tryonserver/internal/queue"
)

// QueueStorePG backs both sides of the job queue: the admission transaction
// and the worker's claim/transition operations. All job and batch status
// changes are conditional on the prior status so competing workers stay
// safe without a global lock.
type QueueStorePG struct {
	pool   *pgxpool.Pool
	ledger *ledger.Ledger
}

// NewQueueStore creates the queue store.
func NewQueueStore(pool *pgxpool.Pool, l *ledger.Ledger) *QueueStorePG {
	return &QueueStorePG{pool: pool, ledger: l}
}

// AdmitBatch commits the batch row, every job row and every ledger effect in
// one transaction. A failure anywhere leaves no trace of the batch.
func (s *QueueStorePG) AdmitBatch(ctx context.Context, batch *domain.Batch, jobs []*domain.Job) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("admit batch: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const insertBatch = `
INSERT INTO batches (id, business_id, priority, status, total_count)
VALUES ($1, $2, $3, $4, $5);
`
	if _, err := tx.Exec(ctx, insertBatch, batch.ID, batch.BusinessID, batch.Priority, batch.Status, batch.TotalCount); err != nil {
		return fmt.Errorf("admit batch: insert batch: %w", err)
	}

	const insertJob = `
INSERT INTO jobs (id, batch_id, business_id, kind, model_id, garment_key, subject_key, status, credits_reserved, royalty_reserved)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
`
	for _, job := range jobs {
		if _, err := tx.Exec(ctx, insertJob,
			job.ID,
			job.BatchID,
			job.BusinessID,
			job.Kind,
			job.ModelID,
			job.GarmentKey,
			job.SubjectKey,
			job.Status,
			job.CreditsReserved,
			job.RoyaltyReserved,
		); err != nil {
			return fmt.Errorf("admit batch: insert job %s: %w", job.ID, err)
		}

		switch job.Kind {
		case domain.JobKindAIAvatar:
			err = s.ledger.DebitCredits(ctx, tx, job.BusinessID, job.CreditsReserved, job.ID)
		case domain.JobKindHumanModel:
			err = s.ledger.AccrueRoyalty(ctx, tx, job.ModelID, job.RoyaltyReserved, job.ID)
		}
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("admit batch: commit: %w", err)
	}
	return nil
}

// ClaimBatch locks the best claimable batch: highest priority first, oldest
// within a priority, skipping batches other workers hold.
func (s *QueueStorePG) ClaimBatch(ctx context.Context, workerID string) (*domain.Batch, error) {
	const query = `
WITH next_batch AS (
    SELECT id
    FROM batches
    WHERE status IN ('pending', 'processing')
      AND EXISTS (
        SELECT 1 FROM jobs
        WHERE jobs.batch_id = batches.id AND jobs.status = 'pending'
      )
    ORDER BY priority DESC, created_at ASC
    FOR UPDATE SKIP LOCKED
    LIMIT 1
)
UPDATE batches b
SET status = 'processing',
    worker_id = $1,
    started_at = COALESCE(b.started_at, NOW()),
    updated_at = NOW()
WHERE b.id IN (SELECT id FROM next_batch)
RETURNING ` + batchColumns + `;
`
	row := s.pool.QueryRow(ctx, query, workerID)
	batch, err := scanBatch(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, queue.ErrNoBatch
		}
		return nil, fmt.Errorf("claim batch: %w", err)
	}
	return batch, nil
}

// PendingJobs returns the batch's currently pending jobs, oldest first.
func (s *QueueStorePG) PendingJobs(ctx context.Context, batchID string) ([]domain.Job, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+jobColumns+` FROM jobs WHERE batch_id = $1 AND status = 'pending' ORDER BY created_at ASC;`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// StartJob moves a job pending→processing and reports whether this worker
// won the transition.
func (s *QueueStorePG) StartJob(ctx context.Context, jobID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE jobs SET status = 'processing', updated_at = NOW() WHERE id = $1 AND status = 'pending';`, jobID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// CompleteJob moves a job processing→completed and bumps the batch's
// completed count only when the swap won, so racing workers cannot
// double-increment.
func (s *QueueStorePG) CompleteJob(ctx context.Context, jobID, outputKey string) (bool, error) {
	const query = `
WITH won AS (
    UPDATE jobs
    SET status = 'completed',
        output_key = $2,
        error_message = '',
        updated_at = NOW()
    WHERE id = $1 AND status = 'processing'
    RETURNING batch_id
)
UPDATE batches
SET completed_count = completed_count + 1,
    updated_at = NOW()
WHERE id IN (SELECT batch_id FROM won);
`
	tag, err := s.pool.Exec(ctx, query, jobID, outputKey)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// RequeueJob returns a failed job to pending with its bumped retry count and
// last error, eligible for a future worker pass.
func (s *QueueStorePG) RequeueJob(ctx context.Context, jobID string, retryCount int, errMsg string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = 'pending', retry_count = $2, error_message = $3, updated_at = NOW() WHERE id = $1 AND status = 'processing';`,
		jobID, retryCount, errMsg)
	return err
}

// FailJob moves a job processing→failed terminally and bumps the batch's
// failed count when the swap won.
func (s *QueueStorePG) FailJob(ctx context.Context, jobID string, retryCount int, errMsg string) (bool, error) {
	const query = `
WITH won AS (
    UPDATE jobs
    SET status = 'failed',
        retry_count = $2,
        error_message = $3,
        updated_at = NOW()
    WHERE id = $1 AND status = 'processing'
    RETURNING batch_id
)
UPDATE batches
SET failed_count = failed_count + 1,
    updated_at = NOW()
WHERE id IN (SELECT batch_id FROM won);
`
	tag, err := s.pool.Exec(ctx, query, jobID, retryCount, errMsg)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// FinalizeBatch recomputes the aggregate status from the jobs themselves so
// the stored status can never drift from its derivation. The counting and the
// update share one transaction; domain.DeriveBatchStatus is the only place
// the derivation rule lives.
func (s *QueueStorePG) FinalizeBatch(ctx context.Context, batchID string) (*domain.Batch, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("finalize batch: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const countJobs = `
SELECT
    COUNT(*) FILTER (WHERE status = 'pending'),
    COUNT(*) FILTER (WHERE status = 'processing'),
    COUNT(*) FILTER (WHERE status = 'completed'),
    COUNT(*) FILTER (WHERE status = 'failed')
FROM jobs
WHERE batch_id = $1;
`
	var nPending, nProcessing, nCompleted, nFailed int
	if err := tx.QueryRow(ctx, countJobs, batchID).Scan(&nPending, &nProcessing, &nCompleted, &nFailed); err != nil {
		return nil, fmt.Errorf("finalize batch: count jobs: %w", err)
	}

	status := domain.DeriveBatchStatus(nPending, nProcessing, nCompleted, nFailed)
	settled := nPending == 0 && nProcessing == 0

	const update = `
UPDATE batches
SET status = $2,
    completed_count = $3,
    failed_count = $4,
    completed_at = CASE WHEN $5 THEN COALESCE(completed_at, NOW()) ELSE completed_at END,
    updated_at = NOW()
WHERE id = $1
RETURNING ` + batchColumns + `;
`
	row := tx.QueryRow(ctx, update, batchID, status, nCompleted, nFailed, settled)
	batch, err := scanBatch(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("finalize batch: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("finalize batch: commit: %w", err)
	}
	return batch, nil
}

// ModelReferenceKey re-resolves the model's first reference image at render
// time. This is a read, not a ledger mutation.
func (s *QueueStorePG) ModelReferenceKey(ctx context.Context, modelID string) (string, error) {
	var key *string
	err := s.pool.QueryRow(ctx, `SELECT reference_keys[1] FROM models WHERE id = $1 AND status = 'active';`, modelID).Scan(&key)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("model %s: %w", modelID, domain.ErrNotFound)
		}
		return "", err
	}
	if key == nil || *key == "" {
		return "", fmt.Errorf("model %s has no reference image", modelID)
	}
	return *key, nil
}

var (
	_ queue.AdmissionStore = (*QueueStorePG)(nil)
	_ queue.Store          = (*QueueStorePG)(nil)
)

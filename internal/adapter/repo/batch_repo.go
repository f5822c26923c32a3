package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tryonserver/internal/domain"
)

const batchColumns = `id, business_id, priority, status, total_count, completed_count, failed_count, worker_id, started_at, completed_at, created_at, updated_at`

const jobColumns = `id, batch_id, business_id, kind, model_id, garment_key, subject_key, status, retry_count, output_key, error_message, credits_reserved, royalty_reserved, created_at, updated_at`

// BatchRepositoryPG implements domain.BatchRepository reads for the API.
type BatchRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewBatchRepository creates a batch repository backed by PostgreSQL.
func NewBatchRepository(pool *pgxpool.Pool) *BatchRepositoryPG {
	return &BatchRepositoryPG{pool: pool}
}

// GetByID fetches a batch by its identifier.
func (r *BatchRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Batch, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+batchColumns+` FROM batches WHERE id = $1;`, id)
	batch, err := scanBatch(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return batch, nil
}

// ListJobs returns a batch's jobs in admission order.
func (r *BatchRepositoryPG) ListJobs(ctx context.Context, batchID string) ([]domain.Job, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+jobColumns+` FROM jobs WHERE batch_id = $1 ORDER BY created_at ASC;`, batchID)
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

// JobRepositoryPG implements domain.JobRepository for the delivery path.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a job repository backed by PostgreSQL.
func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1;`, id)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

func scanBatch(row pgx.Row) (*domain.Batch, error) {
	var b domain.Batch
	if err := row.Scan(
		&b.ID,
		&b.BusinessID,
		&b.Priority,
		&b.Status,
		&b.TotalCount,
		&b.CompletedCount,
		&b.FailedCount,
		&b.WorkerID,
		&b.StartedAt,
		&b.CompletedAt,
		&b.CreatedAt,
		&b.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &b, nil
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var j domain.Job
	if err := row.Scan(
		&j.ID,
		&j.BatchID,
		&j.BusinessID,
		&j.Kind,
		&j.ModelID,
		&j.GarmentKey,
		&j.SubjectKey,
		&j.Status,
		&j.RetryCount,
		&j.OutputKey,
		&j.ErrorMessage,
		&j.CreditsReserved,
		&j.RoyaltyReserved,
		&j.CreatedAt,
		&j.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &j, nil
}

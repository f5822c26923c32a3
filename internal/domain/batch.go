package domain

import "time"

// BatchStatus enumerates batch lifecycle states. The batch status is always
// derivable from its jobs' statuses; the stored column is a cache, never an
// independent source of truth.
type BatchStatus string

const (
	BatchStatusPending    BatchStatus = "pending"
	BatchStatusProcessing BatchStatus = "processing"
	BatchStatusCompleted  BatchStatus = "completed"
	BatchStatusFailed     BatchStatus = "failed"
)

// MaxBatchSize bounds the number of items accepted per submission.
const MaxBatchSize = 50

// Batch groups render jobs submitted together. Batches are append-only: they
// are created at admission and mutated only by workers, never deleted.
type Batch struct {
	ID             string
	BusinessID     string
	Priority       int
	Status         BatchStatus
	TotalCount     int
	CompletedCount int
	FailedCount    int
	WorkerID       string
	StartedAt      *time.Time
	CompletedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Terminal reports whether no further worker pass can change the batch.
func (b Batch) Terminal() bool {
	return b.Status == BatchStatusCompleted || b.Status == BatchStatusFailed
}

// DeriveBatchStatus computes the aggregate status from job status counts.
// A batch with at least one successful job reports completed even when
// siblings failed terminally; it reports failed only when every job did.
func DeriveBatchStatus(pending, processing, completed, failed int) BatchStatus {
	switch {
	case processing > 0:
		return BatchStatusProcessing
	case pending > 0:
		return BatchStatusPending
	case completed > 0:
		return BatchStatusCompleted
	default:
		return BatchStatusFailed
	}
}

package domain

import "time"

// JobKind enumerates the two supported render job variants.
type JobKind string

const (
	JobKindAIAvatar   JobKind = "ai_avatar"
	JobKindHumanModel JobKind = "human_model"
)

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// MaxJobRetries caps automatic retries per job. Once a job fails with
// RetryCount at the cap it stays failed.
const MaxJobRetries = 3

// Job is a single render unit: one garment composited onto one subject.
// ModelID is set only for human_model jobs; SubjectKey points at the avatar
// image or the model's reference image. OutputKey is set iff the job
// completed. Credits or royalty are settled once, at admission.
type Job struct {
	ID              string
	BatchID         string
	BusinessID      string
	Kind            JobKind
	ModelID         string
	GarmentKey      string
	SubjectKey      string
	Status          JobStatus
	RetryCount      int
	OutputKey       string
	ErrorMessage    string
	CreditsReserved int
	RoyaltyReserved int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Validate checks the kind-specific shape of a job request. The switch is
// exhaustive so a new kind cannot slip past admission unvalidated.
func (j Job) Validate() error {
	if j.GarmentKey == "" {
		return ErrValidation
	}
	switch j.Kind {
	case JobKindAIAvatar:
		if j.ModelID != "" || j.SubjectKey == "" {
			return ErrValidation
		}
	case JobKindHumanModel:
		if j.ModelID == "" {
			return ErrValidation
		}
	default:
		return ErrValidation
	}
	return nil
}

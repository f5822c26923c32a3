package domain

import "context"

// BusinessRepository defines access methods for business accounts.
type BusinessRepository interface {
	GetByID(ctx context.Context, id string) (*Business, error)
}

// ModelRepository defines access methods for human models.
type ModelRepository interface {
	GetByID(ctx context.Context, id string) (*HumanModel, error)
}

// ConsentRepository reads consent grants and purchases. Both are owned by
// collaborators; this service never writes them.
type ConsentRepository interface {
	HasApprovedConsent(ctx context.Context, businessID, modelID string) (bool, error)
	HasPurchase(ctx context.Context, businessID, modelID string) (bool, error)
}

// BatchRepository exposes batch reads for the API surface. Mutations happen
// through the queue store, not here.
type BatchRepository interface {
	GetByID(ctx context.Context, id string) (*Batch, error)
	ListJobs(ctx context.Context, batchID string) ([]Job, error)
}

// JobRepository fetches single jobs for the delivery path.
type JobRepository interface {
	GetByID(ctx context.Context, id string) (*Job, error)
}

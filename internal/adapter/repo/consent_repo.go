package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"tryonserver/internal/domain"
)

// ConsentRepositoryPG implements domain.ConsentRepository over tables owned
// by the consent and purchase collaborators. This service never writes them.
type ConsentRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewConsentRepository creates a consent repository backed by PostgreSQL.
func NewConsentRepository(pool *pgxpool.Pool) *ConsentRepositoryPG {
	return &ConsentRepositoryPG{pool: pool}
}

// HasApprovedConsent reports whether a business holds an APPROVED grant for
// the model.
func (r *ConsentRepositoryPG) HasApprovedConsent(ctx context.Context, businessID, modelID string) (bool, error) {
	query := `
SELECT EXISTS (
  SELECT 1 FROM consent_grants
  WHERE business_id = $1 AND model_id = $2 AND status = $3
);
`
	var ok bool
	if err := r.pool.QueryRow(ctx, query, businessID, modelID, domain.ConsentStatusApproved).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

// HasPurchase reports whether a business has purchased full access to the
// model's outputs.
func (r *ConsentRepositoryPG) HasPurchase(ctx context.Context, businessID, modelID string) (bool, error) {
	query := `
SELECT EXISTS (
  SELECT 1 FROM purchases
  WHERE business_id = $1 AND model_id = $2
);
`
	var ok bool
	if err := r.pool.QueryRow(ctx, query, businessID, modelID).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

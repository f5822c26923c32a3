package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tryonserver/internal/domain"
)

// ModelRepositoryPG implements domain.ModelRepository.
type ModelRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewModelRepository creates a model repository backed by PostgreSQL.
func NewModelRepository(pool *pgxpool.Pool) *ModelRepositoryPG {
	return &ModelRepositoryPG{pool: pool}
}

// GetByID fetches a human model with its reference image keys.
func (r *ModelRepositoryPG) GetByID(ctx context.Context, id string) (*domain.HumanModel, error) {
	query := `
SELECT id, display_name, status, available_cents, pending_payout_cents, reference_keys, created_at, updated_at
FROM models
WHERE id = $1;
`
	row := r.pool.QueryRow(ctx, query, id)
	var m domain.HumanModel
	if err := row.Scan(&m.ID, &m.DisplayName, &m.Status, &m.AvailableCents, &m.PendingPayoutCents, &m.ReferenceKeys, &m.CreatedAt, &m.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

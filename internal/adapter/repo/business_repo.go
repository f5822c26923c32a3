package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tryonserver/internal/domain"
)

// BusinessRepositoryPG implements domain.BusinessRepository.
type BusinessRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewBusinessRepository creates a business repository backed by PostgreSQL.
func NewBusinessRepository(pool *pgxpool.Pool) *BusinessRepositoryPG {
	return &BusinessRepositoryPG{pool: pool}
}

// GetByID fetches a business by its identifier.
func (r *BusinessRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Business, error) {
	query := `
SELECT id, name, plan, credits, credits_reset_at, created_at, updated_at
FROM businesses
WHERE id = $1;
`
	row := r.pool.QueryRow(ctx, query, id)
	var b domain.Business
	if err := row.Scan(&b.ID, &b.Name, &b.Plan, &b.Credits, &b.CreditsResetAt, &b.CreatedAt, &b.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

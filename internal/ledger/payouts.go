package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tryonserver/internal/domain"
	"tryonserver/internal/infra"
)

const qInsertPayout = `
INSERT INTO payout_requests (id, model_id, amount_cents, method, status)
VALUES ($1, $2, $3, $4, $5);
`

const qSelectPayoutForUpdate = `
SELECT id, model_id, amount_cents, method, status, created_at, updated_at
FROM payout_requests
WHERE id = $1
FOR UPDATE;
`

const qUpdatePayoutStatus = `
UPDATE payout_requests
SET status = $3, updated_at = NOW()
WHERE id = $1 AND status = $2;
`

const qInsertPayoutEvent = `
INSERT INTO payout_events (id, payout_id, actor, from_status, to_status, reason)
VALUES (gen_random_uuid(), $1, $2, $3, $4, $5);
`

const qListPayoutsByModel = `
SELECT id, model_id, amount_cents, method, status, created_at, updated_at
FROM payout_requests
WHERE model_id = $1
ORDER BY created_at DESC;
`

// Payouts drives payout requests through their lifecycle. Every status
// transition commits together with exactly one paired ledger movement:
// reserve on create, release on reject/fail, settle on complete.
type Payouts struct {
	db     infra.DB
	ledger *Ledger
	logger zerolog.Logger
}

// NewPayouts wires the payout service.
func NewPayouts(db infra.DB, l *Ledger, logger zerolog.Logger) *Payouts {
	return &Payouts{db: db, ledger: l, logger: logger}
}

// Create opens a payout request and reserves the amount out of the model's
// available balance. Amounts below the minimum threshold are rejected.
func (p *Payouts) Create(ctx context.Context, modelID string, cents int64, method string) (*domain.PayoutRequest, error) {
	if cents < domain.MinPayoutCents {
		return nil, fmt.Errorf("%w: payout below minimum of %d cents", domain.ErrValidation, domain.MinPayoutCents)
	}
	if method == "" {
		return nil, fmt.Errorf("%w: payment method is required", domain.ErrValidation)
	}

	req := &domain.PayoutRequest{
		ID:          uuid.NewString(),
		ModelID:     modelID,
		AmountCents: cents,
		Method:      method,
		Status:      domain.PayoutStatusPending,
	}

	tx, err := p.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("payouts: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, qInsertPayout, req.ID, req.ModelID, req.AmountCents, req.Method, req.Status); err != nil {
		return nil, fmt.Errorf("payouts: insert request: %w", err)
	}
	if err := p.ledger.ReservePayout(ctx, tx, modelID, cents, req.ID); err != nil {
		return nil, err
	}
	if err := p.appendEvent(ctx, tx, domain.PayoutEvent{
		PayoutID: req.ID,
		Actor:    modelID,
		To:       req.Status,
		Reason:   "requested",
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("payouts: commit: %w", err)
	}

	p.logger.Info().Str("payout_id", req.ID).Str("model_id", modelID).Int64("amount_cents", cents).Msg("payouts: request created")
	return req, nil
}

// Transition moves a request to a new status, appending a history event and
// applying the paired ledger movement in the same transaction.
func (p *Payouts) Transition(ctx context.Context, payoutID, actor string, to domain.PayoutStatus, reason string) (*domain.PayoutRequest, error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("payouts: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var req domain.PayoutRequest
	row := tx.QueryRow(ctx, qSelectPayoutForUpdate, payoutID)
	if err := row.Scan(&req.ID, &req.ModelID, &req.AmountCents, &req.Method, &req.Status, &req.CreatedAt, &req.UpdatedAt); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("payouts: load request: %w", err)
	}
	if !req.CanTransition(to) {
		return nil, fmt.Errorf("%w: payout %s cannot move from %s to %s", domain.ErrValidation, payoutID, req.Status, to)
	}

	tag, err := tx.Exec(ctx, qUpdatePayoutStatus, payoutID, req.Status, to)
	if err != nil {
		return nil, fmt.Errorf("payouts: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("payouts: payout %s changed concurrently", payoutID)
	}

	switch to {
	case domain.PayoutStatusRejected, domain.PayoutStatusFailed:
		err = p.ledger.ReleasePayout(ctx, tx, req.ModelID, req.AmountCents, payoutID)
	case domain.PayoutStatusCompleted:
		err = p.ledger.SettlePayout(ctx, tx, req.ModelID, req.AmountCents, payoutID)
	case domain.PayoutStatusApproved:
		// Funds stay reserved until completion.
	}
	if err != nil {
		return nil, err
	}

	if err := p.appendEvent(ctx, tx, domain.PayoutEvent{
		PayoutID: payoutID,
		Actor:    actor,
		From:     req.Status,
		To:       to,
		Reason:   reason,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("payouts: commit: %w", err)
	}

	from := req.Status
	req.Status = to
	p.logger.Info().Str("payout_id", payoutID).Str("from", string(from)).Str("to", string(to)).Str("actor", actor).Msg("payouts: transition")
	return &req, nil
}

func (p *Payouts) appendEvent(ctx context.Context, tx infra.DBTX, ev domain.PayoutEvent) error {
	if _, err := tx.Exec(ctx, qInsertPayoutEvent, ev.PayoutID, ev.Actor, ev.From, ev.To, ev.Reason); err != nil {
		return fmt.Errorf("payouts: insert event: %w", err)
	}
	return nil
}

// ListByModel returns a model's payout requests, newest first.
func (p *Payouts) ListByModel(ctx context.Context, modelID string) ([]domain.PayoutRequest, error) {
	rows, err := p.db.Query(ctx, qListPayoutsByModel, modelID)
	if err != nil {
		return nil, fmt.Errorf("payouts: list: %w", err)
	}
	defer rows.Close()

	var items []domain.PayoutRequest
	for rows.Next() {
		var req domain.PayoutRequest
		if err := rows.Scan(&req.ID, &req.ModelID, &req.AmountCents, &req.Method, &req.Status, &req.CreatedAt, &req.UpdatedAt); err != nil {
			return nil, fmt.Errorf("payouts: scan: %w", err)
		}
		items = append(items, req)
	}
	return items, rows.Err()
}

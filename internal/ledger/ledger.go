// Package ledger holds the only code allowed to mutate credit and royalty
// balances. Every mutation is a conditional UPDATE paired with an append-only
// transaction row, and callers pass the pgx transaction the mutation must
// commit with.
package ledger

import (
	"context"
	"fmt"

	"tryonserver/internal/domain"
	"tryonserver/internal/infra"
)

const qDebitCredits = `
UPDATE businesses
SET credits = credits - $2,
    updated_at = NOW()
WHERE id = $1 AND credits >= $2
RETURNING credits;
`

const qLazyFreeReset = `
UPDATE businesses
SET credits = $2,
    credits_reset_at = NOW(),
    updated_at = NOW()
WHERE id = $1
  AND plan = 'free'
  AND credits_reset_at <= NOW() - INTERVAL '30 days';
`

const qAccrueRoyalty = `
UPDATE models
SET available_cents = available_cents + $2,
    updated_at = NOW()
WHERE id = $1
RETURNING available_cents;
`

const qReservePayout = `
UPDATE models
SET available_cents = available_cents - $2,
    pending_payout_cents = pending_payout_cents + $2,
    updated_at = NOW()
WHERE id = $1 AND available_cents >= $2
RETURNING available_cents;
`

const qReleasePayout = `
UPDATE models
SET available_cents = available_cents + $2,
    pending_payout_cents = pending_payout_cents - $2,
    updated_at = NOW()
WHERE id = $1 AND pending_payout_cents >= $2
RETURNING available_cents;
`

const qSettlePayout = `
UPDATE models
SET pending_payout_cents = pending_payout_cents - $2,
    updated_at = NOW()
WHERE id = $1 AND pending_payout_cents >= $2
RETURNING available_cents;
`

const qInsertTransaction = `
INSERT INTO ledger_transactions (id, account, owner_id, amount, balance, reason, ref_id)
VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6);
`

// Ledger applies balance mutations within caller-provided transactions.
type Ledger struct{}

// New returns a Ledger.
func New() *Ledger {
	return &Ledger{}
}

// DebitCredits removes n credits from a business, applying the lazy free-tier
// reset first so a dormant free account catches up before the balance check.
// Returns domain.ErrInsufficientCredits when the balance is short.
func (l *Ledger) DebitCredits(ctx context.Context, tx infra.DBTX, businessID string, n int, refID string) error {
	if n <= 0 {
		return fmt.Errorf("ledger: debit amount must be positive, got %d", n)
	}
	if _, err := tx.Exec(ctx, qLazyFreeReset, businessID, domain.FreeCreditAllotment); err != nil {
		return fmt.Errorf("ledger: free-tier reset: %w", err)
	}
	var balance int64
	if err := tx.QueryRow(ctx, qDebitCredits, businessID, n).Scan(&balance); err != nil {
		if infra.IsNoRows(err) {
			return domain.ErrInsufficientCredits
		}
		return fmt.Errorf("ledger: debit credits: %w", err)
	}
	return l.record(ctx, tx, domain.LedgerTransaction{
		Account: domain.LedgerAccountBusinessCredits,
		OwnerID: businessID,
		Amount:  -int64(n),
		Balance: balance,
		Reason:  "render_admission",
		RefID:   refID,
	})
}

// AccrueRoyalty adds the fixed per-render royalty to a model's available
// balance. Settled at admission; retries never touch it again.
func (l *Ledger) AccrueRoyalty(ctx context.Context, tx infra.DBTX, modelID string, cents int64, refID string) error {
	if cents <= 0 {
		return fmt.Errorf("ledger: royalty amount must be positive, got %d", cents)
	}
	var balance int64
	if err := tx.QueryRow(ctx, qAccrueRoyalty, modelID, cents).Scan(&balance); err != nil {
		if infra.IsNoRows(err) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("ledger: accrue royalty: %w", err)
	}
	return l.record(ctx, tx, domain.LedgerTransaction{
		Account: domain.LedgerAccountModelRoyalty,
		OwnerID: modelID,
		Amount:  cents,
		Balance: balance,
		Reason:  "royalty_admission",
		RefID:   refID,
	})
}

// ReservePayout moves cents from available into pending on payout creation.
// Returns domain.ErrInsufficientBalance when the available balance is short.
func (l *Ledger) ReservePayout(ctx context.Context, tx infra.DBTX, modelID string, cents int64, payoutID string) error {
	var balance int64
	if err := tx.QueryRow(ctx, qReservePayout, modelID, cents).Scan(&balance); err != nil {
		if infra.IsNoRows(err) {
			return domain.ErrInsufficientBalance
		}
		return fmt.Errorf("ledger: reserve payout: %w", err)
	}
	return l.record(ctx, tx, domain.LedgerTransaction{
		Account: domain.LedgerAccountModelRoyalty,
		OwnerID: modelID,
		Amount:  -cents,
		Balance: balance,
		Reason:  "payout_reserve",
		RefID:   payoutID,
	})
}

// ReleasePayout returns reserved cents to available on reject or failure.
func (l *Ledger) ReleasePayout(ctx context.Context, tx infra.DBTX, modelID string, cents int64, payoutID string) error {
	var balance int64
	if err := tx.QueryRow(ctx, qReleasePayout, modelID, cents).Scan(&balance); err != nil {
		if infra.IsNoRows(err) {
			return fmt.Errorf("ledger: release payout: pending balance below %d for model %s", cents, modelID)
		}
		return fmt.Errorf("ledger: release payout: %w", err)
	}
	return l.record(ctx, tx, domain.LedgerTransaction{
		Account: domain.LedgerAccountModelRoyalty,
		OwnerID: modelID,
		Amount:  cents,
		Balance: balance,
		Reason:  "payout_release",
		RefID:   payoutID,
	})
}

// SettlePayout removes reserved cents from the system once paid out.
func (l *Ledger) SettlePayout(ctx context.Context, tx infra.DBTX, modelID string, cents int64, payoutID string) error {
	var balance int64
	if err := tx.QueryRow(ctx, qSettlePayout, modelID, cents).Scan(&balance); err != nil {
		if infra.IsNoRows(err) {
			return fmt.Errorf("ledger: settle payout: pending balance below %d for model %s", cents, modelID)
		}
		return fmt.Errorf("ledger: settle payout: %w", err)
	}
	return l.record(ctx, tx, domain.LedgerTransaction{
		Account: domain.LedgerAccountModelRoyalty,
		OwnerID: modelID,
		Balance: balance,
		Reason:  "payout_settle",
		RefID:   payoutID,
	})
}

func (l *Ledger) record(ctx context.Context, tx infra.DBTX, entry domain.LedgerTransaction) error {
	if _, err := tx.Exec(ctx, qInsertTransaction, entry.Account, entry.OwnerID, entry.Amount, entry.Balance, entry.Reason, entry.RefID); err != nil {
		return fmt.Errorf("ledger: record transaction: %w", err)
	}
	return nil
}

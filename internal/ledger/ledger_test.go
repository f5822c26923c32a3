package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tryonserver/internal/domain"
)

func TestDebitCreditsRecordsTransaction(t *testing.T) {
	tx := &fakeTx{credits: 5}

	err := New().DebitCredits(context.Background(), tx, "biz-1", 2, "batch-1")
	require.NoError(t, err)

	assert.Equal(t, int64(3), tx.credits)
	assert.Equal(t, []string{"render_admission"}, tx.entries)
}

func TestDebitCreditsAppliesDormantResetFirst(t *testing.T) {
	tx := &fakeTx{credits: 0, resetDue: true}

	err := New().DebitCredits(context.Background(), tx, "biz-1", 3, "batch-1")
	require.NoError(t, err, "reset must land before the balance check")

	assert.Equal(t, int64(domain.FreeCreditAllotment-3), tx.credits)
	assert.False(t, tx.resetDue)
	assert.Equal(t, []string{"render_admission"}, tx.entries)
}

func TestDebitCreditsInsufficient(t *testing.T) {
	tx := &fakeTx{credits: 2}

	err := New().DebitCredits(context.Background(), tx, "biz-1", 3, "batch-1")
	assert.ErrorIs(t, err, domain.ErrInsufficientCredits)

	assert.Equal(t, int64(2), tx.credits)
	assert.Empty(t, tx.entries, "failed debit must not append a transaction row")
}

func TestDebitCreditsRejectsNonPositiveAmount(t *testing.T) {
	tx := &fakeTx{credits: 5}

	assert.Error(t, New().DebitCredits(context.Background(), tx, "biz-1", 0, "batch-1"))
	assert.Error(t, New().DebitCredits(context.Background(), tx, "biz-1", -1, "batch-1"))

	assert.Equal(t, int64(5), tx.credits)
	assert.Empty(t, tx.entries)
}

func TestAccrueRoyaltyRecordsTransaction(t *testing.T) {
	tx := &fakeTx{availableCents: 100}

	err := New().AccrueRoyalty(context.Background(), tx, "model-1", domain.RoyaltyPerRenderCents, "job-1")
	require.NoError(t, err)

	assert.Equal(t, 100+domain.RoyaltyPerRenderCents, tx.availableCents)
	assert.Equal(t, []string{"royalty_admission"}, tx.entries)
}

func TestAccrueRoyaltyRejectsNonPositiveAmount(t *testing.T) {
	tx := &fakeTx{}

	assert.Error(t, New().AccrueRoyalty(context.Background(), tx, "model-1", 0, "job-1"))
	assert.Empty(t, tx.entries)
}

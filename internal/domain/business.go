package domain

import "time"

// BusinessPlan enumerates billing plans.
type BusinessPlan string

const (
	BusinessPlanFree BusinessPlan = "free"
	BusinessPlanPro  BusinessPlan = "pro"
)

// FreeCreditAllotment is the balance a free-tier business is reset to once
// its previous reset is at least FreeCreditResetInterval old. The reset is
// evaluated lazily inside the debit path, not on a schedule.
const (
	FreeCreditAllotment     = 10
	FreeCreditResetInterval = 30 * 24 * time.Hour
)

// Business is a customer account holding a credit balance for AI-avatar
// renders.
type Business struct {
	ID             string
	Name           string
	Plan           BusinessPlan
	Credits        int
	CreditsResetAt time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsFree reports whether the business is on the free plan.
func (b Business) IsFree() bool {
	return b.Plan == BusinessPlanFree
}

// EffectiveCredits returns the balance the business would hold after the
// lazy free-tier reset, so admission prechecks see the same balance the
// ledger debit will.
func (b Business) EffectiveCredits(now time.Time) int {
	if b.IsFree() && now.Sub(b.CreditsResetAt) >= FreeCreditResetInterval {
		return FreeCreditAllotment
	}
	return b.Credits
}

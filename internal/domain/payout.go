package domain

import "time"

// PayoutStatus enumerates payout request states.
type PayoutStatus string

const (
	PayoutStatusPending   PayoutStatus = "pending"
	PayoutStatusApproved  PayoutStatus = "approved"
	PayoutStatusRejected  PayoutStatus = "rejected"
	PayoutStatusCompleted PayoutStatus = "completed"
	PayoutStatusFailed    PayoutStatus = "failed"
)

// MinPayoutCents is the smallest amount a model may request.
const MinPayoutCents int64 = 2000

// PayoutRequest moves royalty funds out of a model's available balance. On
// creation the amount is reserved into the pending counter; reject/fail
// release it back, complete settles it out of the system. Requests are never
// deleted.
type PayoutRequest struct {
	ID          string
	ModelID     string
	AmountCents int64
	Method      string
	Status      PayoutStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PayoutEvent is one entry of a request's append-only status history.
type PayoutEvent struct {
	ID        string
	PayoutID  string
	Actor     string
	From      PayoutStatus
	To        PayoutStatus
	Reason    string
	CreatedAt time.Time
}

// CanTransition reports whether a payout status change is allowed.
func (p PayoutRequest) CanTransition(to PayoutStatus) bool {
	switch p.Status {
	case PayoutStatusPending:
		return to == PayoutStatusApproved || to == PayoutStatusRejected
	case PayoutStatusApproved:
		return to == PayoutStatusCompleted || to == PayoutStatusFailed
	default:
		return false
	}
}

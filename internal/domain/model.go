package domain

import "time"

// ModelStatus enumerates human model account states.
type ModelStatus string

const (
	ModelStatusActive   ModelStatus = "active"
	ModelStatusInactive ModelStatus = "inactive"
)

// HumanModel is a consenting person whose reference photos can be composited
// with garment images. Royalties accrue to AvailableCents; amounts reserved
// by open payout requests sit in PendingPayoutCents.
type HumanModel struct {
	ID                 string
	DisplayName        string
	Status             ModelStatus
	AvailableCents     int64
	PendingPayoutCents int64
	ReferenceKeys      []string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// IsActive reports whether the model may be targeted by new jobs.
func (m HumanModel) IsActive() bool {
	return m.Status == ModelStatusActive
}

// PrimaryReferenceKey returns the model's first reference image, or "" when
// the model has none left.
func (m HumanModel) PrimaryReferenceKey() string {
	if len(m.ReferenceKeys) == 0 {
		return ""
	}
	return m.ReferenceKeys[0]
}

// RoyaltyPerRenderCents is the fixed amount accrued to a model per admitted
// human-model job, regardless of eventual render success.
const RoyaltyPerRenderCents int64 = 150

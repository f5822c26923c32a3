// Package queue contains the batch admission path and the worker drain loop.
// Admission settles all ledger effects up front inside one transaction, so
// workers retry jobs without ever touching balances again.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tryonserver/internal/domain"
)

// ItemRequest is one requested render: a garment plus exactly one of an
// avatar image or a human model.
type ItemRequest struct {
	GarmentKey string `json:"garment_key"`
	AvatarKey  string `json:"avatar_key,omitempty"`
	ModelID    string `json:"model_id,omitempty"`
}

// BatchRequest is one submission of up to MaxBatchSize items.
type BatchRequest struct {
	Items    []ItemRequest `json:"requests"`
	Priority int           `json:"priority"`
}

// AdmissionStore commits an admitted batch: every job row plus its ledger
// effect, and the batch row, in a single transaction. A failure anywhere
// rolls the whole admission back.
type AdmissionStore interface {
	AdmitBatch(ctx context.Context, batch *domain.Batch, jobs []*domain.Job) error
}

// Trigger wakes the worker pool after admission. Publishing is best-effort;
// the workers' Postgres poll is the durable fallback.
type Trigger interface {
	WakeWorkers(ctx context.Context, batchID string) error
}

// Admitter validates batch submissions and reserves funds before any render
// work is attempted.
type Admitter struct {
	businesses domain.BusinessRepository
	models     domain.ModelRepository
	consents   domain.ConsentRepository
	store      AdmissionStore
	trigger    Trigger
	logger     zerolog.Logger
	now        func() time.Time
}

// NewAdmitter wires the admission path.
func NewAdmitter(
	businesses domain.BusinessRepository,
	models domain.ModelRepository,
	consents domain.ConsentRepository,
	store AdmissionStore,
	trigger Trigger,
	logger zerolog.Logger,
) *Admitter {
	return &Admitter{
		businesses: businesses,
		models:     models,
		consents:   consents,
		store:      store,
		trigger:    trigger,
		logger:     logger,
		now:        time.Now,
	}
}

// Admit validates every item, then atomically creates all jobs with their
// ledger effects and the batch record. Any invalid item aborts the whole
// batch before a single ledger mutation; there is no partial admission.
func (a *Admitter) Admit(ctx context.Context, businessID string, req BatchRequest) (*domain.Batch, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: batch has no items", domain.ErrValidation)
	}
	if len(req.Items) > domain.MaxBatchSize {
		return nil, fmt.Errorf("%w: batch exceeds %d items", domain.ErrValidation, domain.MaxBatchSize)
	}

	business, err := a.businesses.GetByID(ctx, businessID)
	if err != nil {
		return nil, err
	}

	batchID := uuid.NewString()
	jobs := make([]*domain.Job, 0, len(req.Items))
	avatarItems := 0
	for i, item := range req.Items {
		job, err := a.buildJob(ctx, batchID, businessID, item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		if job.Kind == domain.JobKindAIAvatar {
			avatarItems++
		}
		jobs = append(jobs, job)
	}

	if avatarItems > 0 && business.EffectiveCredits(a.now()) < avatarItems {
		return nil, domain.ErrInsufficientCredits
	}

	batch := &domain.Batch{
		ID:         batchID,
		BusinessID: businessID,
		Priority:   req.Priority,
		Status:     domain.BatchStatusPending,
		TotalCount: len(jobs),
	}
	if err := a.store.AdmitBatch(ctx, batch, jobs); err != nil {
		return nil, err
	}

	if err := a.trigger.WakeWorkers(ctx, batch.ID); err != nil {
		a.logger.Warn().Err(err).Str("batch_id", batch.ID).Msg("admission: worker wake-up failed, relying on poll")
	}

	a.logger.Info().
		Str("batch_id", batch.ID).
		Str("business_id", businessID).
		Int("total", batch.TotalCount).
		Int("priority", batch.Priority).
		Msg("admission: batch admitted")
	return batch, nil
}

// buildJob validates one item and materializes its job record, including the
// admission-time reservation amounts.
func (a *Admitter) buildJob(ctx context.Context, batchID, businessID string, item ItemRequest) (*domain.Job, error) {
	if item.GarmentKey == "" {
		return nil, fmt.Errorf("%w: garment image is required", domain.ErrValidation)
	}
	hasAvatar := item.AvatarKey != ""
	hasModel := item.ModelID != ""
	if hasAvatar == hasModel {
		return nil, fmt.Errorf("%w: exactly one of avatar or model must be set", domain.ErrValidation)
	}

	job := &domain.Job{
		ID:         uuid.NewString(),
		BatchID:    batchID,
		BusinessID: businessID,
		GarmentKey: item.GarmentKey,
		Status:     domain.JobStatusPending,
	}

	if hasAvatar {
		job.Kind = domain.JobKindAIAvatar
		job.SubjectKey = item.AvatarKey
		job.CreditsReserved = 1
		return job, job.Validate()
	}

	model, err := a.models.GetByID(ctx, item.ModelID)
	if err != nil {
		return nil, err
	}
	if !model.IsActive() {
		return nil, fmt.Errorf("%w: model %s is not active", domain.ErrValidation, model.ID)
	}
	if model.PrimaryReferenceKey() == "" {
		return nil, fmt.Errorf("%w: model %s has no reference image", domain.ErrValidation, model.ID)
	}
	approved, err := a.consents.HasApprovedConsent(ctx, businessID, model.ID)
	if err != nil {
		return nil, err
	}
	if !approved {
		return nil, domain.ErrConsentRequired
	}

	job.Kind = domain.JobKindHumanModel
	job.ModelID = model.ID
	job.SubjectKey = model.PrimaryReferenceKey()
	job.RoyaltyReserved = domain.RoyaltyPerRenderCents
	return job, job.Validate()
}

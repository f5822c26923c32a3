package queue

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tryonserver/internal/domain"
)

type fakeBusinesses struct {
	business *domain.Business
	err      error
}

func (f *fakeBusinesses) GetByID(_ context.Context, _ string) (*domain.Business, error) {
	return f.business, f.err
}

type fakeModels struct {
	models map[string]*domain.HumanModel
}

func (f *fakeModels) GetByID(_ context.Context, id string) (*domain.HumanModel, error) {
	m, ok := f.models[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return m, nil
}

type fakeConsents struct {
	approved map[string]bool
}

func (f *fakeConsents) HasApprovedConsent(_ context.Context, _, modelID string) (bool, error) {
	return f.approved[modelID], nil
}

func (f *fakeConsents) HasPurchase(_ context.Context, _, _ string) (bool, error) {
	return false, nil
}

type fakeAdmissionStore struct {
	batch *domain.Batch
	jobs  []*domain.Job
	calls int
	err   error
}

func (f *fakeAdmissionStore) AdmitBatch(_ context.Context, batch *domain.Batch, jobs []*domain.Job) error {
	f.calls++
	f.batch = batch
	f.jobs = jobs
	return f.err
}

type fakeTrigger struct {
	batchIDs []string
	err      error
}

func (f *fakeTrigger) WakeWorkers(_ context.Context, batchID string) error {
	f.batchIDs = append(f.batchIDs, batchID)
	return f.err
}

func newTestAdmitter(business *domain.Business, models *fakeModels, consents *fakeConsents, store *fakeAdmissionStore, trigger *fakeTrigger) *Admitter {
	a := NewAdmitter(&fakeBusinesses{business: business}, models, consents, store, trigger, zerolog.Nop())
	a.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }
	return a
}

func proBusiness(credits int) *domain.Business {
	return &domain.Business{
		ID:      "biz-1",
		Plan:    domain.BusinessPlanPro,
		Credits: credits,
	}
}

func TestAdmitMixedBatch(t *testing.T) {
	store := &fakeAdmissionStore{}
	trigger := &fakeTrigger{}
	models := &fakeModels{models: map[string]*domain.HumanModel{
		"model-1": {
			ID:            "model-1",
			Status:        domain.ModelStatusActive,
			ReferenceKeys: []string{"refs/model-1/front.jpg"},
		},
	}}
	consents := &fakeConsents{approved: map[string]bool{"model-1": true}}
	a := newTestAdmitter(proBusiness(5), models, consents, store, trigger)

	batch, err := a.Admit(context.Background(), "biz-1", BatchRequest{
		Priority: 2,
		Items: []ItemRequest{
			{GarmentKey: "garments/a.jpg", AvatarKey: "avatars/a.jpg"},
			{GarmentKey: "garments/b.jpg", ModelID: "model-1"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.BatchStatusPending, batch.Status)
	assert.Equal(t, 2, batch.TotalCount)
	assert.Equal(t, 2, batch.Priority)

	require.Equal(t, 1, store.calls)
	require.Len(t, store.jobs, 2)

	avatar := store.jobs[0]
	assert.Equal(t, domain.JobKindAIAvatar, avatar.Kind)
	assert.Equal(t, "avatars/a.jpg", avatar.SubjectKey)
	assert.Equal(t, 1, avatar.CreditsReserved)
	assert.Zero(t, avatar.RoyaltyReserved)

	human := store.jobs[1]
	assert.Equal(t, domain.JobKindHumanModel, human.Kind)
	assert.Equal(t, "refs/model-1/front.jpg", human.SubjectKey)
	assert.Equal(t, domain.RoyaltyPerRenderCents, human.RoyaltyReserved)
	assert.Zero(t, human.CreditsReserved)

	assert.Equal(t, []string{batch.ID}, trigger.batchIDs)
}

func TestAdmitInsufficientCredits(t *testing.T) {
	store := &fakeAdmissionStore{}
	a := newTestAdmitter(proBusiness(1), &fakeModels{}, &fakeConsents{}, store, &fakeTrigger{})

	_, err := a.Admit(context.Background(), "biz-1", BatchRequest{Items: []ItemRequest{
		{GarmentKey: "garments/a.jpg", AvatarKey: "avatars/a.jpg"},
		{GarmentKey: "garments/b.jpg", AvatarKey: "avatars/b.jpg"},
	}})
	assert.ErrorIs(t, err, domain.ErrInsufficientCredits)
	assert.Zero(t, store.calls, "rejected batch must not reach the store")
}

func TestAdmitDormantFreeAccountUsesResetAllotment(t *testing.T) {
	store := &fakeAdmissionStore{}
	business := &domain.Business{
		ID:             "biz-1",
		Plan:           domain.BusinessPlanFree,
		Credits:        0,
		CreditsResetAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	a := newTestAdmitter(business, &fakeModels{}, &fakeConsents{}, store, &fakeTrigger{})

	_, err := a.Admit(context.Background(), "biz-1", BatchRequest{Items: []ItemRequest{
		{GarmentKey: "garments/a.jpg", AvatarKey: "avatars/a.jpg"},
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, store.calls)
}

func TestAdmitOneBadItemAbortsWholeBatch(t *testing.T) {
	store := &fakeAdmissionStore{}
	a := newTestAdmitter(proBusiness(10), &fakeModels{}, &fakeConsents{}, store, &fakeTrigger{})

	_, err := a.Admit(context.Background(), "biz-1", BatchRequest{Items: []ItemRequest{
		{GarmentKey: "garments/a.jpg", AvatarKey: "avatars/a.jpg"},
		{GarmentKey: "garments/b.jpg"},
	}})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "item 1")
	assert.Zero(t, store.calls)
}

func TestAdmitConsentRequired(t *testing.T) {
	store := &fakeAdmissionStore{}
	models := &fakeModels{models: map[string]*domain.HumanModel{
		"model-1": {
			ID:            "model-1",
			Status:        domain.ModelStatusActive,
			ReferenceKeys: []string{"refs/model-1/front.jpg"},
		},
	}}
	a := newTestAdmitter(proBusiness(10), models, &fakeConsents{}, store, &fakeTrigger{})

	_, err := a.Admit(context.Background(), "biz-1", BatchRequest{Items: []ItemRequest{
		{GarmentKey: "garments/a.jpg", ModelID: "model-1"},
	}})
	assert.ErrorIs(t, err, domain.ErrConsentRequired)
	assert.Zero(t, store.calls)
}

func TestAdmitInactiveModel(t *testing.T) {
	store := &fakeAdmissionStore{}
	models := &fakeModels{models: map[string]*domain.HumanModel{
		"model-1": {ID: "model-1", Status: domain.ModelStatusInactive},
	}}
	a := newTestAdmitter(proBusiness(10), models, &fakeConsents{approved: map[string]bool{"model-1": true}}, store, &fakeTrigger{})

	_, err := a.Admit(context.Background(), "biz-1", BatchRequest{Items: []ItemRequest{
		{GarmentKey: "garments/a.jpg", ModelID: "model-1"},
	}})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestAdmitModelWithoutReferenceImage(t *testing.T) {
	store := &fakeAdmissionStore{}
	models := &fakeModels{models: map[string]*domain.HumanModel{
		"model-1": {ID: "model-1", Status: domain.ModelStatusActive},
	}}
	a := newTestAdmitter(proBusiness(10), models, &fakeConsents{approved: map[string]bool{"model-1": true}}, store, &fakeTrigger{})

	_, err := a.Admit(context.Background(), "biz-1", BatchRequest{Items: []ItemRequest{
		{GarmentKey: "garments/a.jpg", ModelID: "model-1"},
	}})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "reference image")
	assert.Zero(t, store.calls)
}

func TestAdmitSizeLimits(t *testing.T) {
	a := newTestAdmitter(proBusiness(1000), &fakeModels{}, &fakeConsents{}, &fakeAdmissionStore{}, &fakeTrigger{})

	_, err := a.Admit(context.Background(), "biz-1", BatchRequest{})
	assert.ErrorIs(t, err, domain.ErrValidation)

	items := make([]ItemRequest, domain.MaxBatchSize+1)
	for i := range items {
		items[i] = ItemRequest{GarmentKey: "garments/a.jpg", AvatarKey: "avatars/a.jpg"}
	}
	_, err = a.Admit(context.Background(), "biz-1", BatchRequest{Items: items})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestAdmitTriggerFailureIsNotFatal(t *testing.T) {
	store := &fakeAdmissionStore{}
	trigger := &fakeTrigger{err: assert.AnError}
	a := newTestAdmitter(proBusiness(10), &fakeModels{}, &fakeConsents{}, store, trigger)

	batch, err := a.Admit(context.Background(), "biz-1", BatchRequest{Items: []ItemRequest{
		{GarmentKey: "garments/a.jpg", AvatarKey: "avatars/a.jpg"},
	}})
	require.NoError(t, err)
	assert.NotNil(t, batch)
	assert.Equal(t, 1, store.calls)
}

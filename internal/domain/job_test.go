package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobValidate(t *testing.T) {
	tests := []struct {
		name    string
		job     Job
		wantErr bool
	}{
		{
			name: "avatar job",
			job:  Job{Kind: JobKindAIAvatar, GarmentKey: "garments/g1.png", SubjectKey: "avatars/a1.png"},
		},
		{
			name: "human model job",
			job:  Job{Kind: JobKindHumanModel, GarmentKey: "garments/g1.png", ModelID: "model-1"},
		},
		{
			name:    "missing garment",
			job:     Job{Kind: JobKindAIAvatar, SubjectKey: "avatars/a1.png"},
			wantErr: true,
		},
		{
			name:    "avatar job with model id",
			job:     Job{Kind: JobKindAIAvatar, GarmentKey: "g", SubjectKey: "a", ModelID: "model-1"},
			wantErr: true,
		},
		{
			name:    "human model job without model",
			job:     Job{Kind: JobKindHumanModel, GarmentKey: "g"},
			wantErr: true,
		},
		{
			name:    "unknown kind",
			job:     Job{Kind: "video", GarmentKey: "g", SubjectKey: "a"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.job.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestBusinessEffectiveCredits(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	fresh := Business{Plan: BusinessPlanFree, Credits: 2, CreditsResetAt: now.Add(-24 * time.Hour)}
	assert.Equal(t, 2, fresh.EffectiveCredits(now))

	dormant := Business{Plan: BusinessPlanFree, Credits: 0, CreditsResetAt: now.Add(-31 * 24 * time.Hour)}
	assert.Equal(t, FreeCreditAllotment, dormant.EffectiveCredits(now), "dormant free account catches up lazily")

	pro := Business{Plan: BusinessPlanPro, Credits: 0, CreditsResetAt: now.Add(-365 * 24 * time.Hour)}
	assert.Equal(t, 0, pro.EffectiveCredits(now), "paid plans never auto-reset")
}

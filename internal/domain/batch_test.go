package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveBatchStatus(t *testing.T) {
	tests := []struct {
		name       string
		pending    int
		processing int
		completed  int
		failed     int
		want       BatchStatus
	}{
		{name: "all pending", pending: 3, want: BatchStatusPending},
		{name: "any processing wins", pending: 1, processing: 1, completed: 1, want: BatchStatusProcessing},
		{name: "pending with completed stays pending", pending: 1, completed: 2, want: BatchStatusPending},
		{name: "all completed", completed: 3, want: BatchStatusCompleted},
		{name: "partial failure still completed", completed: 1, failed: 2, want: BatchStatusCompleted},
		{name: "every job failed", failed: 3, want: BatchStatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveBatchStatus(tt.pending, tt.processing, tt.completed, tt.failed)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBatchTerminal(t *testing.T) {
	assert.False(t, Batch{Status: BatchStatusPending}.Terminal())
	assert.False(t, Batch{Status: BatchStatusProcessing}.Terminal())
	assert.True(t, Batch{Status: BatchStatusCompleted}.Terminal())
	assert.True(t, Batch{Status: BatchStatusFailed}.Terminal())
}

func TestDeriveBatchStatus_IsPureOverRepeatedObservations(t *testing.T) {
	// Re-deriving from the same counts can never drift.
	for i := 0; i < 3; i++ {
		assert.Equal(t, BatchStatusCompleted, DeriveBatchStatus(0, 0, 2, 1))
	}
}

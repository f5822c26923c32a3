// Package access enforces the delivery-time policy on rendered outputs. The
// stored asset is always the unmarked original; what a download returns
// depends on the requesting business's purchases and subscription tier at
// the moment of the request.
package access

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"tryonserver/internal/domain"
)

// Decision is the gate's verdict for one download.
type Decision struct {
	// Watermark means the served bytes must be a watermarked derivative.
	Watermark bool
}

// Gate decides whether an output may be served and in what form.
type Gate struct {
	consents domain.ConsentRepository
	logger   zerolog.Logger
}

// NewGate wires the gate against the purchase predicate.
func NewGate(consents domain.ConsentRepository, logger zerolog.Logger) *Gate {
	return &Gate{consents: consents, logger: logger}
}

// Authorize applies the policy for a business downloading a job's output.
// Human-model outputs are binary: a recorded purchase grants the original,
// anything else is rejected outright. AI-avatar outputs are always served,
// watermarked while the business sits on the free tier.
func (g *Gate) Authorize(ctx context.Context, business *domain.Business, job *domain.Job) (Decision, error) {
	if job.BusinessID != business.ID {
		return Decision{}, domain.ErrForbidden
	}
	if job.Status != domain.JobStatusCompleted || job.OutputKey == "" {
		return Decision{}, domain.ErrNotFound
	}

	switch job.Kind {
	case domain.JobKindHumanModel:
		purchased, err := g.consents.HasPurchase(ctx, business.ID, job.ModelID)
		if err != nil {
			return Decision{}, fmt.Errorf("access: purchase lookup: %w", err)
		}
		if !purchased {
			return Decision{}, domain.ErrPurchaseRequired
		}
		return Decision{}, nil
	case domain.JobKindAIAvatar:
		return Decision{Watermark: business.IsFree()}, nil
	default:
		return Decision{}, fmt.Errorf("access: unknown job kind %q", job.Kind)
	}
}

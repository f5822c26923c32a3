// Package notify publishes completion events to the notification
// collaborator. Delivery is fire-and-forget: failures are logged and never
// propagate into the pipeline.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"tryonserver/internal/domain"
	"tryonserver/internal/infra"
)

// Notifier announces finished work. Implementations must never block the
// worker loop or surface errors.
type Notifier interface {
	NotifyCompletion(ctx context.Context, businessID, outputKey string, kind domain.JobKind)
}

type completionEvent struct {
	BusinessID string         `json:"business_id"`
	OutputKey  string         `json:"output_key"`
	Kind       domain.JobKind `json:"kind"`
	At         time.Time      `json:"at"`
}

// AMQPNotifier fans completion events out over RabbitMQ.
type AMQPNotifier struct {
	client   *infra.AMQPClient
	exchange string
	logger   zerolog.Logger
}

// NewAMQPNotifier wires the notifier onto an exchange. A nil client yields a
// notifier that only logs.
func NewAMQPNotifier(client *infra.AMQPClient, exchange string, logger zerolog.Logger) *AMQPNotifier {
	return &AMQPNotifier{client: client, exchange: exchange, logger: logger}
}

// NotifyCompletion publishes one event and swallows any failure.
func (n *AMQPNotifier) NotifyCompletion(ctx context.Context, businessID, outputKey string, kind domain.JobKind) {
	body, err := json.Marshal(completionEvent{BusinessID: businessID, OutputKey: outputKey, Kind: kind, At: time.Now().UTC()})
	if err != nil {
		n.logger.Error().Err(err).Msg("notify: encode event")
		return
	}
	if n.client == nil {
		n.logger.Debug().Str("business_id", businessID).Str("output_key", outputKey).Msg("notify: no broker, event dropped")
		return
	}
	if err := n.client.PublishExchange(ctx, n.exchange, body); err != nil {
		n.logger.Warn().Err(err).Str("business_id", businessID).Msg("notify: publish failed")
	}
}

// Nop is a Notifier that does nothing, for tests.
type Nop struct{}

// NotifyCompletion implements Notifier.
func (Nop) NotifyCompletion(context.Context, string, string, domain.JobKind) {}

package queue

import (
	"context"
	"encoding/json"
	"time"

	"tryonserver/internal/infra"
)

// wakeMessage is the payload published to the batch queue. Workers treat it
// purely as a hint; the claim query decides what actually runs.
type wakeMessage struct {
	BatchID string    `json:"batch_id"`
	At      time.Time `json:"at"`
}

// AMQPTrigger publishes admission wake-ups onto a durable queue so they
// survive process restarts.
type AMQPTrigger struct {
	client *infra.AMQPClient
	queue  string
}

// NewAMQPTrigger wires the trigger. A nil client degrades to a no-op and
// workers run on their poll interval alone.
func NewAMQPTrigger(client *infra.AMQPClient, queue string) *AMQPTrigger {
	return &AMQPTrigger{client: client, queue: queue}
}

// WakeWorkers implements Trigger.
func (t *AMQPTrigger) WakeWorkers(ctx context.Context, batchID string) error {
	if t.client == nil {
		return nil
	}
	body, err := json.Marshal(wakeMessage{BatchID: batchID, At: time.Now().UTC()})
	if err != nil {
		return err
	}
	return t.client.PublishQueue(ctx, t.queue, body)
}

// NopTrigger discards wake-ups, for tests and broker-less deployments.
type NopTrigger struct{}

// WakeWorkers implements Trigger.
func (NopTrigger) WakeWorkers(context.Context, string) error { return nil }

package infra

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const (
	amqpDialAttempts = 5
	amqpDialInterval = 2 * time.Second
)

// AMQPClient wraps a RabbitMQ connection with the declarations this service
// needs: one durable batch wake-up queue and one fanout notification
// exchange. A nil client is a valid no-op: the worker falls back to polling
// Postgres and notifications are skipped.
type AMQPClient struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  zerolog.Logger
}

// NewAMQPClient dials the broker with bounded retries and declares the given
// queue and exchange. An empty URL returns (nil, nil).
func NewAMQPClient(url, queueName, exchangeName string, logger zerolog.Logger) (*AMQPClient, error) {
	if url == "" {
		return nil, nil
	}

	var conn *amqp.Connection
	var err error
	for attempt := 1; attempt <= amqpDialAttempts; attempt++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		logger.Warn().Err(err).Int("attempt", attempt).Msg("amqp: dial failed")
		if attempt < amqpDialAttempts {
			time.Sleep(amqpDialInterval)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("amqp: dial after %d attempts: %w", amqpDialAttempts, err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp: open channel: %w", err)
	}

	if queueName != "" {
		if _, err := channel.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
			channel.Close()
			conn.Close()
			return nil, fmt.Errorf("amqp: declare queue %q: %w", queueName, err)
		}
	}
	if exchangeName != "" {
		if err := channel.ExchangeDeclare(exchangeName, "fanout", true, false, false, false, nil); err != nil {
			channel.Close()
			conn.Close()
			return nil, fmt.Errorf("amqp: declare exchange %q: %w", exchangeName, err)
		}
	}

	return &AMQPClient{conn: conn, channel: channel, logger: logger}, nil
}

// PublishQueue sends a persistent message directly to a queue.
func (c *AMQPClient) PublishQueue(ctx context.Context, queueName string, body []byte) error {
	if c == nil {
		return nil
	}
	return c.channel.PublishWithContext(ctx, "", queueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
}

// PublishExchange sends a message to a fanout exchange.
func (c *AMQPClient) PublishExchange(ctx context.Context, exchangeName string, body []byte) error {
	if c == nil {
		return nil
	}
	return c.channel.PublishWithContext(ctx, exchangeName, "", false, false, amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   time.Now(),
		Body:        body,
	})
}

// Consume starts delivering messages from a queue with manual acks.
func (c *AMQPClient) Consume(queueName, consumerTag string) (<-chan amqp.Delivery, error) {
	if c == nil {
		return nil, nil
	}
	return c.channel.Consume(queueName, consumerTag, false, false, false, false, nil)
}

// Close tears down the channel and connection.
func (c *AMQPClient) Close() {
	if c == nil {
		return
	}
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

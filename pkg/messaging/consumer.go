package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fieldscan/fieldscan-backend/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
)

// maxRedeliveries before a failing message is dead-lettered
const maxRedeliveries = 3

// retryHeader counts how often a failing message was republished
const retryHeader = "x-retry-count"

// MessageHandler is a function that handles a message
type MessageHandler func(ctx context.Context, event *Event) error

// Acknowledger is the subset of amqp.Delivery the dispatcher needs
type Acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
	Reject(requeue bool) error
}

// Consumer dispatches queue deliveries to handlers by event type
type Consumer struct {
	rmq       *RabbitMQ
	queueName string
	handlers  map[string]MessageHandler
	logger    *logger.Logger
	// retry puts a failed body back on the queue tagged with its attempt number
	retry     func(ctx context.Context, body []byte, attempt int) error
}

// NewConsumer declares the topology for queueName bound to routingKeys on exchange
func NewConsumer(rmq *RabbitMQ, exchange, queueName string, routingKeys []string, log *logger.Logger) (*Consumer, error) {
	if err := rmq.DeclareTopology(exchange, queueName, routingKeys...); err != nil {
		return nil, err
	}

	log.Info().
		Str("queue", queueName).
		Str("exchange", exchange).
		Strs("routing_keys", routingKeys).
		Msg("subscribed to exchange")

	c := &Consumer{
		rmq:       rmq,
		queueName: queueName,
		handlers:  make(map[string]MessageHandler),
		logger:    log,
	}
	c.retry = c.republish
	return c, nil
}

// RegisterHandler registers a handler for a specific event type
func (c *Consumer) RegisterHandler(eventType string, handler MessageHandler) {
	c.handlers[eventType] = handler
}

// Start consumes until ctx is done. Returns once the delivery loop is running.
// A closed delivery channel triggers a reconnect and a fresh consume.
func (c *Consumer) Start(ctx context.Context) error {
	msgs, err := c.consume()
	if err != nil {
		return err
	}

	c.logger.Info().Str("queue", c.queueName).Msg("consumer started")

	go c.loop(ctx, msgs)
	return nil
}

func (c *Consumer) consume() (<-chan amqp.Delivery, error) {
	msgs, err := c.rmq.Channel().Consume(c.queueName, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}
	return msgs, nil
}

func (c *Consumer) loop(ctx context.Context, msgs <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Str("queue", c.queueName).Msg("consumer stopped")
			return
		case msg, ok := <-msgs:
			if !ok {
				if ctx.Err() != nil {
					return
				}
				c.logger.Warn().Str("queue", c.queueName).Msg("message channel closed, reconnecting")
				if err := c.rmq.Reconnect(ctx); err != nil {
					c.logger.Error().Err(err).Msg("consumer stopped after failed reconnect")
					return
				}
				next, err := c.consume()
				if err != nil {
					c.logger.Error().Err(err).Msg("consumer stopped")
					return
				}
				msgs = next
				continue
			}
			c.Dispatch(ctx, msg.Body, redeliveries(msg.Headers), msg)
		}
	}
}

// Dispatch decodes body, runs the matching handler and settles the delivery.
// Malformed bodies are rejected and unknown types are acked. A failure is
// republished with its attempt count and the original acked; after
// maxRedeliveries attempts it is dead-lettered.
func (c *Consumer) Dispatch(ctx context.Context, body []byte, redelivered int, ack Acknowledger) {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		c.logger.Error().Err(err).Msg("failed to unmarshal event")
		ack.Reject(false)
		return
	}

	ctx = WithCorrelationID(ctx, event.CorrelationID)

	handler, ok := c.handlers[event.Type]
	if !ok {
		c.logger.Debug().Str("event_type", event.Type).Msg("no handler registered for event type")
		ack.Ack(false)
		return
	}

	if err := handler(ctx, &event); err != nil {
		c.logger.Error().
			Err(err).
			Str("event_type", event.Type).
			Str("event_id", event.ID).
			Int("redelivered", redelivered).
			Msg("failed to process event")

		if redelivered >= maxRedeliveries {
			ack.Reject(false)
			return
		}
		if err := c.retry(ctx, body, redelivered+1); err != nil {
			c.logger.Error().Err(err).Str("event_id", event.ID).Msg("failed to republish event, dead-lettering")
			ack.Reject(false)
			return
		}
		ack.Ack(false)
		return
	}

	ack.Ack(false)
}

func (c *Consumer) republish(ctx context.Context, body []byte, attempt int) error {
	err := c.rmq.Channel().PublishWithContext(ctx, "", c.queueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Headers:      amqp.Table{retryHeader: int32(attempt)},
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to republish to %s: %w", c.queueName, err)
	}
	return nil
}

// redeliveries reads the retry header, falling back to the broker's x-death count
func redeliveries(headers amqp.Table) int {
	if headers == nil {
		return 0
	}

	switch n := headers[retryHeader].(type) {
	case int32:
		return int(n)
	case int64:
		return int(n)
	case int:
		return n
	}

	if deaths, ok := headers["x-death"].([]interface{}); ok {
		for _, death := range deaths {
			if d, ok := death.(amqp.Table); ok {
				if count, ok := d["count"].(int64); ok {
					return int(count)
				}
			}
		}
	}

	return 0
}

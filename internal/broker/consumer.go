package broker

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/wirechat/wirechat/internal/metrics"
)

// Handler processes one job body. Returning an error records the failure;
// the job is not requeued by the consumer (dead-lettering is broker policy).
type Handler func(ctx context.Context, body []byte) error

// Consumer binds one handler to one queue. Its contract is simple: never
// crash the process on a single bad job, never requeue from handler code.
type Consumer struct {
	conn    *Connection
	binding Binding
	handler Handler
	logger  zerolog.Logger
}

// NewConsumer creates a consumer for a binding.
func NewConsumer(conn *Connection, binding Binding, handler Handler, logger zerolog.Logger) *Consumer {
	return &Consumer{
		conn:    conn,
		binding: binding,
		handler: handler,
		logger: logger.With().
			Str("component", "consumer").
			Str("queue", binding.Queue).
			Logger(),
	}
}

// Run consumes deliveries until ctx is cancelled, re-establishing the
// channel after broker hiccups.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		err := c.consume(ctx)
		if ctx.Err() != nil {
			return nil
		}
		c.logger.Warn().Err(err).Msg("consume loop ended, restarting")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(dialBackoffCap):
		}
	}
}

func (c *Consumer) consume(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := c.binding.declare(ch); err != nil {
		return err
	}
	if err := ch.Qos(8, 0, false); err != nil {
		return err
	}

	deliveries, err := ch.Consume(c.binding.Queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	c.logger.Info().Msg("consuming")

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed for %s", c.binding.Queue)
			}
			c.process(ctx, d)
		}
	}
}

// process runs the handler for one delivery and always acknowledges.
// An error or panic is logged with job context; requeueing a job that just
// failed would loop it, so the retry decision stays with broker policy.
func (c *Consumer) process(ctx context.Context, d amqp.Delivery) {
	metrics.JobsConsumed.WithLabelValues(c.binding.RoutingKey).Inc()

	defer func() {
		if r := recover(); r != nil {
			metrics.JobsFailed.WithLabelValues(c.binding.RoutingKey).Inc()
			c.logger.Error().
				Interface("panic", r).
				Str("message_id", d.MessageId).
				Msg("job handler panicked")
		}
		if err := d.Ack(false); err != nil {
			c.logger.Warn().Err(err).Str("message_id", d.MessageId).Msg("ack failed")
		}
	}()

	if err := c.handler(ctx, d.Body); err != nil {
		metrics.JobsFailed.WithLabelValues(c.binding.RoutingKey).Inc()
		c.logger.Error().Err(err).
			Str("routing_key", c.binding.RoutingKey).
			Str("message_id", d.MessageId).
			Int("body_bytes", len(d.Body)).
			Msg("job handler failed")
	}
}

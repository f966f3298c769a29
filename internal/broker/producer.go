package broker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/wirechat/wirechat/internal/models"
)

// Producer publishes jobs to their fixed bindings. Publish failures are
// returned to the caller, never retried silently: job creation fails loudly
// rather than swallowing data loss.
type Producer struct {
	conn   *Connection
	logger zerolog.Logger

	mu sync.Mutex
	ch *amqp.Channel
}

// NewProducer creates a producer and declares the full topology so publishes
// never race queue creation.
func NewProducer(conn *Connection, logger zerolog.Logger) (*Producer, error) {
	p := &Producer{conn: conn, logger: logger.With().Str("component", "producer").Logger()}

	ch, err := p.channel()
	if err != nil {
		return nil, err
	}
	for _, b := range []Binding{EmailBinding, ScanBinding, DigestBinding} {
		if err := b.declare(ch); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// PublishEmail enqueues an email.send job.
func (p *Producer) PublishEmail(ctx context.Context, job models.EmailJob) error {
	if err := job.Validate(); err != nil {
		return err
	}
	return p.publish(ctx, EmailBinding, job)
}

// PublishScan enqueues a scan.url job.
func (p *Producer) PublishScan(ctx context.Context, job models.ScanJob) error {
	if err := job.Validate(); err != nil {
		return err
	}
	return p.publish(ctx, ScanBinding, job)
}

// PublishUnreadDigest enqueues the daily chat.unread.digest trigger.
func (p *Producer) PublishUnreadDigest(ctx context.Context) error {
	return p.publish(ctx, DigestBinding, models.UnreadDigestJob{TriggeredAt: time.Now().UnixMilli()})
}

func (p *Producer) publish(ctx context.Context, b Binding, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	ch, err := p.channel()
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(ctx, b.Exchange, b.RoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ulid.Make().String(),
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		p.dropChannel()
		p.logger.Error().Err(err).
			Str("exchange", b.Exchange).
			Str("routing_key", b.RoutingKey).
			Msg("publish failed")
		return err
	}
	return nil
}

// channel returns the cached publish channel, opening one if needed.
func (p *Producer) channel() (*amqp.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return nil, err
	}
	p.ch = ch
	return ch, nil
}

func (p *Producer) dropChannel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
}

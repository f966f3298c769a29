package broker

import (
	"context"
	"errors"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const (
	dialBackoffBase = 250 * time.Millisecond
	dialBackoffCap  = 3 * time.Second
	dialMaxAttempts = 10
)

// ErrBrokerUnavailable is returned when the broker could not be reached
// within the dial retry ceiling.
var ErrBrokerUnavailable = errors.New("broker: unavailable")

// Connection wraps an AMQP connection with bounded-retry dialing. Channel
// access is serialized; producers and consumers each open their own channel.
type Connection struct {
	mu     sync.Mutex
	conn   *amqp.Connection
	url    string
	logger zerolog.Logger
}

// Dial connects to the broker, retrying with bounded exponential backoff.
// After the retry ceiling it reports ErrBrokerUnavailable rather than
// blocking startup forever.
func Dial(ctx context.Context, url string, logger zerolog.Logger) (*Connection, error) {
	c := &Connection{url: url, logger: logger.With().Str("component", "broker").Logger()}

	for attempt := 1; ; attempt++ {
		conn, err := amqp.Dial(url)
		if err == nil {
			c.conn = conn
			c.logger.Info().Msg("connected to broker")
			return c, nil
		}
		if attempt >= dialMaxAttempts {
			return nil, errors.Join(ErrBrokerUnavailable, err)
		}

		delay := dialBackoffBase << (attempt - 1)
		if delay > dialBackoffCap || delay <= 0 {
			delay = dialBackoffCap
		}
		c.logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", delay).
			Msg("broker dial failed")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

// Channel opens a new channel, redialing the underlying connection if it has
// been closed since the last use.
func (c *Connection) Channel() (*amqp.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || c.conn.IsClosed() {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			return nil, errors.Join(ErrBrokerUnavailable, err)
		}
		c.conn = conn
		c.logger.Info().Msg("reconnected to broker")
	}

	return c.conn.Channel()
}

// NotifyClose registers a listener for connection-level failures.
func (c *Connection) NotifyClose() <-chan *amqp.Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.NotifyClose(make(chan *amqp.Error, 1))
}

// Close shuts down the underlying connection.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || c.conn.IsClosed() {
		return nil
	}
	return c.conn.Close()
}

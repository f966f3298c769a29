// Package broadcast bridges local room broadcasts onto a shared Redis
// pub/sub channel so events reach clients connected to other server
// instances. Each instance publishes every local broadcast tagged with its
// own identity and re-emits everything it receives except its own frames.
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/wirechat/wirechat/internal/metrics"
)

const (
	channelName       = "wirechat:broadcast"
	backoffBase       = 100 * time.Millisecond
	backoffCap        = 3 * time.Second
	maxAttempts       = 12
	keepaliveInterval = 30 * time.Second
)

// ErrChannelUnavailable is reported when the shared channel could not be
// reached within the retry ceiling. Local delivery keeps working; only
// cross-instance delivery is degraded.
var ErrChannelUnavailable = errors.New("broadcast: shared channel unavailable")

// Frame is the wire format relayed over the shared channel. Room is empty
// for frames addressed to every authenticated connection (presence events).
// Exclude names a connection id that only exists on the origin instance, so
// remote instances never match it.
type Frame struct {
	Origin    string          `json:"origin"`
	Namespace string          `json:"ns,omitempty"`
	Room      string          `json:"room,omitempty"`
	Event     string          `json:"event"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Exclude   string          `json:"exclude,omitempty"`
}

// Relay publishes frames to the shared channel. The gateway holds one; the
// Noop implementation serves single-instance deployments without Redis.
type Relay interface {
	Publish(ctx context.Context, f Frame) error
}

// Noop is a Relay that drops every frame. Single-instance mode.
type Noop struct{}

func (Noop) Publish(context.Context, Frame) error { return nil }

// Sink receives frames that originated on other instances.
type Sink interface {
	DeliverRemote(f Frame)
}

// Adapter connects the local gateway to the shared channel. It holds two
// logical handles: a publish-only client and a subscribe-only client, so a
// blocked subscription never delays publishes.
type Adapter struct {
	instanceID string
	pub        *redis.Client
	sub        *redis.Client
	sink       Sink
	logger     zerolog.Logger
}

// New creates an adapter for this instance. The two clients should be
// distinct connections to the same Redis.
func New(instanceID string, pub, sub *redis.Client, sink Sink, logger zerolog.Logger) *Adapter {
	return &Adapter{
		instanceID: instanceID,
		pub:        pub,
		sub:        sub,
		sink:       sink,
		logger:     logger.With().Str("component", "broadcast").Logger(),
	}
}

// Publish mirrors a local broadcast onto the shared channel. Errors are
// returned to the caller; the caller already delivered locally, so a failure
// here degrades cross-instance delivery only.
func (a *Adapter) Publish(ctx context.Context, f Frame) error {
	f.Origin = a.instanceID

	data, err := json.Marshal(f)
	if err != nil {
		return err
	}

	if err := a.pub.Publish(ctx, channelName, data).Err(); err != nil {
		metrics.PubSubPublishErrors.Inc()
		return fmt.Errorf("%w: %v", ErrChannelUnavailable, err)
	}

	metrics.PubSubPublished.Inc()
	return nil
}

// Run subscribes to the shared channel and re-emits received frames to the
// local sink until ctx is cancelled. Reconnection uses bounded exponential
// backoff capped at 3s per attempt; after the retry ceiling it gives up and
// returns ErrChannelUnavailable instead of retrying forever.
func (a *Adapter) Run(ctx context.Context) error {
	attempt := 0
	for {
		ps := a.sub.Subscribe(ctx, channelName)
		if _, err := ps.Receive(ctx); err != nil {
			_ = ps.Close()
			attempt++
			if attempt >= maxAttempts {
				a.logger.Error().Err(err).Int("attempts", attempt).
					Msg("giving up on shared channel")
				return ErrChannelUnavailable
			}
			a.logger.Warn().Err(err).Int("attempt", attempt).
				Msg("subscribe failed, backing off")
			if !sleep(ctx, backoffDelay(attempt)) {
				return nil
			}
			continue
		}

		attempt = 0
		a.logger.Info().Str("channel", channelName).Msg("subscribed to shared channel")

		err := a.consume(ctx, ps)
		_ = ps.Close()
		if ctx.Err() != nil {
			return nil
		}

		attempt++
		if attempt >= maxAttempts {
			a.logger.Error().Err(err).Msg("giving up on shared channel")
			return ErrChannelUnavailable
		}
		a.logger.Warn().Err(err).Msg("subscription lost, reconnecting")
		if !sleep(ctx, backoffDelay(attempt)) {
			return nil
		}
	}
}

// consume pumps frames from an established subscription. Periodic pings keep
// the socket alive through idle-timeout middleboxes.
func (a *Adapter) consume(ctx context.Context, ps *redis.PubSub) error {
	msgs := ps.Channel()
	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-keepalive.C:
			if err := ps.Ping(ctx); err != nil {
				return err
			}
		case m, ok := <-msgs:
			if !ok {
				return errors.New("subscription channel closed")
			}
			a.handle(m.Payload)
		}
	}
}

func (a *Adapter) handle(payload string) {
	metrics.PubSubReceived.Inc()

	var f Frame
	if err := json.Unmarshal([]byte(payload), &f); err != nil {
		a.logger.Warn().Err(err).Msg("dropping malformed frame")
		return
	}

	// Frames we published were already delivered to our own sockets.
	if f.Origin == a.instanceID {
		return
	}

	a.sink.DeliverRemote(f)
}

// backoffDelay returns the exponential delay for the given attempt, capped
// at backoffCap.
func backoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := backoffBase << (attempt - 1)
	if d > backoffCap || d <= 0 {
		return backoffCap
	}
	return d
}

// sleep waits for d or until ctx is cancelled, reporting whether the full
// delay elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

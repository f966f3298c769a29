// Package broker provides typed producers and consumers over a topic-exchange
// message broker. Each job kind owns one fixed exchange/routing-key/queue
// triple so producers and consumers agree on the wire contract without
// sharing code paths.
package broker

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

// Binding is one exchange/routing-key/queue triple.
type Binding struct {
	Exchange   string
	RoutingKey string
	Queue      string
}

// The fixed topology. One binding per job kind, one consumer per binding.
var (
	EmailBinding  = Binding{Exchange: "email.exchange", RoutingKey: "email.send", Queue: "email.send"}
	ScanBinding   = Binding{Exchange: "scan.exchange", RoutingKey: "scan.url", Queue: "scan.url"}
	DigestBinding = Binding{Exchange: "chat.exchange", RoutingKey: "chat.unread.digest", Queue: "chat.unread.digest"}
)

// declare sets up the binding's exchange, durable queue, and routing on the
// given channel. Declarations are idempotent on the broker side.
func (b Binding) declare(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(b.Exchange, "topic", true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(b.Queue, true, false, false, false, nil); err != nil {
		return err
	}
	return ch.QueueBind(b.Queue, b.RoutingKey, b.Exchange, false, nil)
}

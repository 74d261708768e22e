// Package queue contains the RabbitMQ topology, the delay scheduler, the
// domain event publisher and the expiration consumer.
//
// Expiration uses a wait queue with per-message TTL: messages sit in
// reservation.expire.wait until their TTL elapses, then the queue's
// dead-letter exchange routes them into reservation.expire where the
// consumer picks them up.  Delivery is at-least-once; the coordinator's
// expire operation is the sole authority on whether expiration actually
// happens.
package queue

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// EventsExchange is the topic exchange domain events fan out on.  The
	// routing key is the event name (e.g. "reservation.created").
	EventsExchange = "boxoffice.events"

	// ExpireQueue is the work queue the expiration consumer drains.
	ExpireQueue = "reservation.expire"

	// ExpireWaitQueue holds delayed expiration messages until their
	// per-message TTL dead-letters them into ExpireQueue.
	ExpireWaitQueue = "reservation.expire.wait"
)

// Broker wraps one AMQP connection.  Channels are opened per publisher and
// per consumer loop; channels are not safe for concurrent use but the
// connection is.
type Broker struct {
	url  string
	conn *amqp.Connection
}

// Dial connects to the broker and declares the topology.  The declaration
// is idempotent, so every replica can run it at startup.
func Dial(url string) (*Broker, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	b := &Broker{url: url, conn: conn}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	defer func() { _ = ch.Close() }()
	if err := declareTopology(ch); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return b, nil
}

// Channel opens a fresh channel on the shared connection.
func (b *Broker) Channel() (*amqp.Channel, error) {
	return b.conn.Channel()
}

// URL returns the broker URL, used by the consumer's reconnect loop.
func (b *Broker) URL() string { return b.url }

// Close closes the underlying connection.
func (b *Broker) Close() error {
	return b.conn.Close()
}

func declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(
		EventsExchange,
		"topic",
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(
		ExpireQueue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		return err
	}
	// The default exchange routes dead-lettered messages directly to
	// ExpireQueue by name.
	_, err := ch.QueueDeclare(
		ExpireWaitQueue,
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": ExpireQueue,
		},
	)
	return err
}

package queue

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher emits domain events and schedules delayed expirations.  It is
// safe for concurrent use; a single channel is shared under a mutex and
// reopened after errors.  Publish failures are returned so callers can
// decide, but all callers in this service run post-commit and only log them:
// the transaction has already committed, so the failure must not surface.
type Publisher struct {
	broker *Broker
	log    *zap.Logger

	mu sync.Mutex
	ch *amqp.Channel
}

// NewPublisher returns a Publisher on the given broker.
func NewPublisher(b *Broker, log *zap.Logger) *Publisher {
	return &Publisher{broker: b, log: log}
}

// Publish emits one domain event on the events exchange.  Messages are
// persistent so they survive broker restarts.
func (p *Publisher) Publish(ctx context.Context, event string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		p.log.Error("marshal event failed", zap.String("event", event), zap.Error(err))
		return err
	}
	err = p.publish(ctx, EventsExchange, event, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		p.log.Error("publish event failed", zap.String("event", event), zap.Error(err))
	}
	return err
}

// Schedule enqueues an expiration command that becomes deliverable to the
// consumer after roughly delay wall-clock time.  The message is published
// into the wait queue with a per-message TTL; the queue's dead-letter
// routing moves it to the work queue when the TTL elapses.  Durable on both
// sides, so the delay survives broker and service restarts.
func (p *Publisher) Schedule(ctx context.Context, reservationID string, delay time.Duration) error {
	if delay < 0 {
		delay = 0
	}
	body, err := json.Marshal(ExpireMessage{ReservationID: reservationID})
	if err != nil {
		return err
	}
	err = p.publish(ctx, "", ExpireWaitQueue, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Expiration:   strconv.FormatInt(delay.Milliseconds(), 10),
		Body:         body,
	})
	if err != nil {
		p.log.Error("schedule expiration failed",
			zap.String("reservation_id", reservationID),
			zap.Duration("delay", delay),
			zap.Error(err))
	}
	return err
}

func (p *Publisher) publish(ctx context.Context, exchange, key string, msg amqp.Publishing) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil || p.ch.IsClosed() {
		ch, err := p.broker.Channel()
		if err != nil {
			return err
		}
		p.ch = ch
	}
	return p.ch.PublishWithContext(ctx, exchange, key, false, false, msg)
}

// Close closes the publisher channel.  The shared connection is owned by
// the broker.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
}

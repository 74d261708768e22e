package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-box-office/internal/service"
)

// Expirer is the slice of the coordinator the consumer invokes.
type Expirer interface {
	Expire(ctx context.Context, reservationID string) (service.ExpireResult, error)
}

// Scheduler re-enqueues expiration commands whose timer fired early.
type Scheduler interface {
	Schedule(ctx context.Context, reservationID string, delay time.Duration) error
}

// Consumer drains the expiration work queue and invokes the coordinator's
// expire operation.  Messages are accumulated into batches of up to size
// messages or flush interval, whichever comes first, and processed in
// parallel; acknowledgement is per message, keyed to the outcome, so a
// batch of mixed success and failure acks only the successes and requeues
// the rest.
//
// The channel prefetch equals the batch size: a replica can never hoard
// more than one in-flight batch, so multiple replicas drain the queue
// cooperatively, and unacked messages are redelivered if a replica dies.
type Consumer struct {
	url         string
	coordinator Expirer
	scheduler   Scheduler
	batchSize   int
	flush       time.Duration
	log         *zap.Logger
}

// NewConsumer builds a consumer against the broker the given Broker is
// connected to.  The consumer dials its own connection so a broker outage
// is recovered independently of the publishers.
func NewConsumer(b *Broker, coordinator Expirer, scheduler Scheduler, batchSize int, flush time.Duration, log *zap.Logger) *Consumer {
	return &Consumer{
		url:         b.URL(),
		coordinator: coordinator,
		scheduler:   scheduler,
		batchSize:   batchSize,
		flush:       flush,
		log:         log,
	}
}

// Run consumes until ctx is cancelled.  It reconnects with doubling backoff
// after connection loss and logs processing errors while requeueing the
// offending messages, so the service keeps operating through broker
// restarts.
func (c *Consumer) Run(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn("expire-consumer: dial broker failed", zap.Error(err), zap.Duration("retry_in", backoff))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		c.log.Warn("expire-consumer: consume loop ended", zap.Error(err))
		select {
		case <-time.After(2 * time.Second):
		case <-ctx.Done():
			return
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	if err := declareTopology(ch); err != nil {
		return err
	}
	if err := ch.Qos(c.batchSize, 0, false); err != nil {
		return err
	}

	msgs, err := ch.Consume(
		ExpireQueue,
		"",    // consumer tag
		false, // autoAck: manual ack keyed to outcome
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		return err
	}

	b := &batcher{size: c.batchSize, flush: c.flush}
	b.run(ctx, msgs, func(batch []amqp.Delivery) {
		c.processBatch(ctx, batch)
	})
	if ctx.Err() != nil {
		return nil
	}
	return errors.New("deliveries channel closed")
}

func (c *Consumer) processBatch(ctx context.Context, batch []amqp.Delivery) {
	var wg sync.WaitGroup
	for _, d := range batch {
		wg.Add(1)
		go func(d amqp.Delivery) {
			defer wg.Done()
			c.handle(ctx, d)
		}(d)
	}
	wg.Wait()
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	var msg ExpireMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		c.log.Error("expire-consumer: malformed message", zap.Error(err))
		_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
		return
	}

	res, err := c.coordinator.Expire(ctx, msg.ReservationID)
	if err != nil {
		c.log.Error("expire-consumer: expire failed",
			zap.String("reservation_id", msg.ReservationID), zap.Error(err))
		_ = d.Nack(false, true) // requeue for redelivery
		return
	}

	if res.Retry > 0 {
		// The timer fired before the deadline.  Put the command back with
		// the residual delay so the reservation still expires through the
		// timer path; only then acknowledge the early delivery.
		if err := c.scheduler.Schedule(ctx, msg.ReservationID, res.Retry); err != nil {
			_ = d.Nack(false, true)
			return
		}
		c.log.Debug("expire-consumer: rescheduled early timer",
			zap.String("reservation_id", msg.ReservationID),
			zap.Duration("residual", res.Retry))
	}

	if res.Released {
		c.log.Info("expire-consumer: reservation expired",
			zap.String("reservation_id", msg.ReservationID))
	}
	_ = d.Ack(false)
}

package queue

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// batcher accumulates deliveries until either size messages are buffered or
// flush time has passed since the first buffered message, then hands the
// batch to emit.  A partial batch is emitted when the input channel closes
// or the context is cancelled, so no delivery is held indefinitely.
type batcher struct {
	size  int
	flush time.Duration
}

func (b *batcher) run(ctx context.Context, in <-chan amqp.Delivery, emit func([]amqp.Delivery)) {
	var buf []amqp.Delivery
	timer := time.NewTimer(b.flush)
	if !timer.Stop() {
		<-timer.C
	}

	drain := func() {
		if len(buf) == 0 {
			return
		}
		emit(buf)
		buf = nil
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
	}

	for {
		select {
		case d, ok := <-in:
			if !ok {
				drain()
				return
			}
			if len(buf) == 0 {
				timer.Reset(b.flush)
			}
			buf = append(buf, d)
			if len(buf) >= b.size {
				drain()
			}
		case <-timer.C:
			drain()
		case <-ctx.Done():
			drain()
			return
		}
	}
}

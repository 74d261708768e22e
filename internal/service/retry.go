package service

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/cinema-box-office/internal/apperr"
)

// RetryConfig controls the backoff applied to operations that fail with a
// retryable store error.  Attempt k sleeps InitialDelay * Multiplier^k,
// capped at MaxDelay, plus up to half that again of jitter so replicas that
// deadlocked against each other do not retry in lockstep.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   int
	MaxDelay     time.Duration
}

func (c RetryConfig) delay(attempt int) time.Duration {
	d := c.InitialDelay
	for i := 0; i < attempt; i++ {
		d *= time.Duration(c.Multiplier)
		if d >= c.MaxDelay {
			d = c.MaxDelay
			break
		}
	}
	if d <= 0 {
		return 0
	}
	return d + rand.N(d/2+1)
}

// do runs fn up to MaxAttempts times.  Only errors apperr marks retryable
// trigger another attempt; everything else is returned to the caller as-is,
// as is the final retryable error once attempts run out.
func (c RetryConfig) do(ctx context.Context, log *zap.Logger, op string, fn func() error) error {
	var err error
	for attempt := 0; attempt < c.MaxAttempts; attempt++ {
		err = fn()
		if err == nil || !apperr.IsRetryable(err) {
			return err
		}
		if attempt == c.MaxAttempts-1 {
			break
		}
		d := c.delay(attempt)
		log.Warn("retrying after store error",
			zap.String("op", op), zap.Int("attempt", attempt+1),
			zap.Duration("backoff", d), zap.Error(err))
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return apperr.Wrap(apperr.KindTimeout, ctx.Err(), "Operation cancelled while backing off")
		}
	}
	return err
}

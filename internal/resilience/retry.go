// Package resilience guards calls to the embedding service with retry
// backoff and a circuit breaker.
package resilience

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Backoff describes a bounded retry loop with doubling delays.
type Backoff struct {
	// Attempts is the total number of tries, including the first.
	Attempts int

	// Base is the delay before the first retry; it doubles on each
	// subsequent retry.
	Base time.Duration

	// Cap bounds any single delay. Zero means no cap.
	Cap time.Duration

	// Jitter shaves off up to this fraction of each delay at random, so
	// concurrent batches do not retry in lockstep.
	Jitter float64

	// Notify, if set, is called before each retry sleep.
	Notify func(attempt int, wait time.Duration, err error)
}

// EmbedBackoff is tuned for embedding calls made inside a generator
// deadline: a short base delay and a cap well under the per-generator
// timeout, so a retried batch still finishes inside it.
func EmbedBackoff() Backoff {
	return Backoff{
		Attempts: 3,
		Base:     250 * time.Millisecond,
		Cap:      4 * time.Second,
		Jitter:   0.2,
	}
}

// Retry runs fn up to b.Attempts times. Only errors that Retryable accepts
// are tried again; everything else, including ErrCircuitOpen and context
// cancellation, ends the loop with the last error.
func Retry[T any](ctx context.Context, b Backoff, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if b.Attempts < 1 {
		b.Attempts = 1
	}

	delay := b.Base
	for attempt := 1; ; attempt++ {
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		if attempt >= b.Attempts || ctx.Err() != nil || !Retryable(err) {
			return zero, err
		}

		wait := delay
		if b.Cap > 0 && wait > b.Cap {
			wait = b.Cap
		}
		if b.Jitter > 0 {
			wait -= time.Duration(rand.Float64() * b.Jitter * float64(wait))
		}
		if b.Notify != nil {
			b.Notify(attempt, wait, err)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, err
		case <-timer.C:
		}
		delay *= 2
	}
}

// LogRetries returns a Notify hook that records each retry on the global
// logger.
func LogRetries(op string) func(int, time.Duration, error) {
	return func(attempt int, wait time.Duration, err error) {
		zap.L().Warn("retrying "+op,
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}
}

package scanning

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
)

// Retrying wraps a Recognizer and retries transient failures
type Retrying struct {
	next     Recognizer
	attempts uint
	delay    time.Duration
}

// NewRetrying wraps next. An attempt count of zero is treated as one.
func NewRetrying(next Recognizer, attempts uint, delay time.Duration) *Retrying {
	if attempts == 0 {
		attempts = 1
	}
	return &Retrying{next: next, attempts: attempts, delay: delay}
}

// retryable reports whether another attempt could succeed
func retryable(err error) bool {
	return !errors.Is(err, ErrNoText) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

// RecognizeText delegates to the wrapped Recognizer until it succeeds, fails
// permanently or runs out of attempts
func (r *Retrying) RecognizeText(ctx context.Context, imageData []byte, contentType string) (string, error) {
	return retry.DoWithData(
		func() (string, error) {
			return r.next.RecognizeText(ctx, imageData, contentType)
		},
		retry.Context(ctx),
		retry.Attempts(r.attempts),
		retry.Delay(r.delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.OnRetry(func(n uint, err error) {
			slog.Warn("text recognition failed, retrying", "attempt", n+1, "error", err)
		}),
	)
}

// Close closes the wrapped Recognizer
func (r *Retrying) Close() error {
	return r.next.Close()
}

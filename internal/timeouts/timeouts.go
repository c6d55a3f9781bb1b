// Package timeouts bounds workflow steps with a deadline and retries a
// timed-out step exactly once with backoff before giving up.
package timeouts

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/arnavshah/workforce-api/internal/metrics"
	"github.com/arnavshah/workforce-api/pkg/models"
)

type Policy struct {
	Timeout time.Duration
	Backoff time.Duration
}

// Run calls fn with a per-attempt deadline. A deadline hit is retried once;
// if the retry also times out the result is a models Timeout error. Any
// other error is returned as is without retrying. attempt starts at 1.
func Run(ctx context.Context, p Policy, op string, log zerolog.Logger, fn func(ctx context.Context, attempt int) error) error {
	backoff := p.Backoff
	if backoff <= 0 {
		backoff = time.Millisecond
	}
	b := retry.WithMaxRetries(1, retry.NewExponential(backoff))

	attempt := 0
	lastTimedOut := false
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		stepCtx := ctx
		cancel := func() {}
		if p.Timeout > 0 {
			stepCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		}
		defer cancel()

		err := fn(stepCtx, attempt)
		lastTimedOut = err != nil && timedOut(stepCtx, err)
		if lastTimedOut {
			if attempt == 1 {
				metrics.WorkflowRetries.WithLabelValues(op).Inc()
				log.Warn().Err(err).Str("operation", op).Msg("step timed out, retrying")
			}
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil && lastTimedOut {
		return models.Timeout(op, err)
	}
	return err
}

func timedOut(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return ctx.Err() == context.DeadlineExceeded
}

package timeouts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/arnavshah/workforce-api/pkg/models"
)

var policy = Policy{Timeout: 20 * time.Millisecond, Backoff: time.Millisecond}

func TestRun_Success(t *testing.T) {
	calls := 0
	err := Run(context.Background(), policy, "op", zerolog.Nop(), func(ctx context.Context, attempt int) error {
		calls++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRun_RetriesTimeoutOnce(t *testing.T) {
	var attempts []int
	err := Run(context.Background(), policy, "op", zerolog.Nop(), func(ctx context.Context, attempt int) error {
		attempts = append(attempts, attempt)
		if attempt == 1 {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestRun_SurfacesRetryableTimeout(t *testing.T) {
	calls := 0
	err := Run(context.Background(), policy, "resolve request", zerolog.Nop(), func(ctx context.Context, attempt int) error {
		calls++
		<-ctx.Done()
		return ctx.Err()
	})
	assert.Equal(t, 2, calls)
	assert.ErrorIs(t, err, models.ErrTimeout)

	var de *models.Error
	if assert.True(t, errors.As(err, &de)) {
		assert.True(t, de.Retryable())
	}
}

func TestRun_OtherErrorsAreNotRetried(t *testing.T) {
	calls := 0
	boom := models.InvariantViolation("boom")
	err := Run(context.Background(), policy, "op", zerolog.Nop(), func(ctx context.Context, attempt int) error {
		calls++
		return boom
	})
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, models.ErrInvariantViolation)
}

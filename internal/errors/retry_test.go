package errors

import (
	"context"
	stdErrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, BackoffMultiplier: 2}
}

func TestWithRetry_RetriesRetryableErrors(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), fastPolicy(), func() error {
		calls++
		if calls < 3 {
			return NewExternalAPIError("telegram", nil)
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_StopsOnPermanentError(t *testing.T) {
	calls := 0
	permanent := stdErrors.New("permanent")
	err := WithRetry(context.Background(), fastPolicy(), func() error {
		calls++
		return permanent
	})

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_GivesUpAfterMaxRetries(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), fastPolicy(), func() error {
		calls++
		return NewExternalAPIError("telegram", nil)
	})

	assert.Error(t, err)
	assert.Equal(t, 4, calls)
}

package review

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/joescharf/comply/internal/apperr"
)

func TestRetryPolicy_Do(t *testing.T) {
	t.Run("success first try", func(t *testing.T) {
		n, err := fastRetry(3).Do(context.Background(), func(context.Context) error { return nil }, nil)
		assert.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("notify per retry", func(t *testing.T) {
		var notified []int
		n, err := fastRetry(4).Do(context.Background(), func(context.Context) error {
			return apperr.UpstreamUnavailable("x", errors.New("down"))
		}, func(attempt int, _ error, _ time.Duration) {
			notified = append(notified, attempt)
		})
		assert.Error(t, err)
		assert.True(t, apperr.IsUpstreamUnavailable(err))
		assert.Equal(t, 4, n)
		assert.Equal(t, []int{1, 2, 3}, notified)
	})

	t.Run("zero attempts means one", func(t *testing.T) {
		n, err := RetryPolicy{}.Do(context.Background(), func(context.Context) error {
			return apperr.UpstreamUnavailable("x", errors.New("down"))
		}, nil)
		assert.Error(t, err)
		assert.Equal(t, 1, n)
	})
}

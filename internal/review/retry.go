package review

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/joescharf/comply/internal/apperr"
)

// RetryPolicy bounds retries of Reviewer and Composer calls.
type RetryPolicy struct {
	// MaxAttempts includes the first call. Values below 1 mean 1.
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy returns the retry defaults used when none are configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// Do calls op until it succeeds, returns an error that is not
// UpstreamUnavailable, or the attempt budget is spent. It returns the number
// of attempts made and the last error. notify, if non-nil, is called before
// each backoff wait.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error, notify func(attempt int, err error, wait time.Duration)) (int, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	eb := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		eb.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		eb.MaxInterval = p.MaxInterval
	}
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(attempts-1)), ctx)

	n := 0
	err := backoff.RetryNotify(func() error {
		n++
		err := op(ctx)
		if err != nil && !apperr.IsUpstreamUnavailable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b, func(err error, wait time.Duration) {
		if notify != nil {
			notify(n, err, wait)
		}
	})
	return n, err
}

package storage

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	gerrors "github.com/gaiacat/gaiacat/internal/errors"
)

// RetryPolicy bounds the retries of one storage operation.
type RetryPolicy struct {
	// MaxRetries is the number of attempts after the first (default: 3)
	MaxRetries uint64

	// InitialInterval is the first wait between attempts (default: 100ms)
	InitialInterval time.Duration

	// MaxInterval caps the wait between attempts (default: 5s)
	MaxInterval time.Duration
}

// DefaultRetryPolicy returns the default retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	def := DefaultRetryPolicy()
	if p.InitialInterval <= 0 {
		p.InitialInterval = def.InitialInterval
	}
	if p.MaxInterval <= 0 {
		p.MaxInterval = def.MaxInterval
	}
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialInterval
	exp.MaxInterval = p.MaxInterval
	exp.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(exp, p.MaxRetries), ctx)
}

// Retry runs op until it succeeds, the policy is exhausted or ctx ends.
// Classified errors that are not retryable stop it at once; unclassified
// errors are treated as transient.
func Retry(ctx context.Context, policy RetryPolicy, op func() error) error {
	return backoff.Retry(func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		err := op()
		if err != nil && gerrors.GetCode(err) != "" && !gerrors.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy.backOff(ctx))
}

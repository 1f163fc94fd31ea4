package retry

import (
	"context"

	"github.com/cenkalti/backoff/v4"
)

// newBackOff builds the retry schedule for p: exponential delays capped at
// MaxInterval, at most MaxAttempts-1 retries, stopped early by ctx or by
// MaxElapsedTime when set.
func newBackOff(ctx context.Context, p Policy) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		exp.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		exp.MaxInterval = p.MaxInterval
	}
	if p.Multiplier > 0 {
		exp.Multiplier = p.Multiplier
	}
	exp.MaxElapsedTime = p.MaxElapsedTime
	exp.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(p.MaxAttempts-1)), ctx)
}

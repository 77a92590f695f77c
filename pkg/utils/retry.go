package utils

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Retry runs fn up to attempts times while retryable(err) holds, sleeping
// base, 2*base, 4*base... between tries. The last error of fn is returned,
// also when ctx ends the wait.
func Retry(ctx context.Context, attempts int, base time.Duration, retryable func(error) bool, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = base
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0

	var last error
	op := func() error {
		last = fn()
		if last != nil && (retryable == nil || !retryable(last)) {
			return backoff.Permanent(last)
		}
		return last
	}
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(exp, uint64(attempts-1)), ctx)); err != nil {
		return last
	}
	return nil
}

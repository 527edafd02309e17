package storage

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds adapter-level retries of transient failures.
type RetryPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsed      time.Duration
	MaxAttempts     int // 0 means limited only by MaxElapsed
}

// DefaultRetryPolicy is used when a store is built without an explicit policy.
var DefaultRetryPolicy = RetryPolicy{
	InitialInterval: 200 * time.Millisecond,
	MaxInterval:     5 * time.Second,
	MaxElapsed:      30 * time.Second,
	MaxAttempts:     5,
}

// NoRetry disables retries. Tests use it to observe the first failure.
var NoRetry = RetryPolicy{MaxAttempts: -1}

// newBackOff returns a fresh BackOff. BackOff instances are stateful, so
// every operation gets its own.
func (p RetryPolicy) newBackOff(ctx context.Context) backoff.BackOff {
	if p.MaxAttempts < 0 {
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}
	bo := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		bo.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		bo.MaxInterval = p.MaxInterval
	}
	bo.MaxElapsedTime = p.MaxElapsed
	var b backoff.BackOff = bo
	if p.MaxAttempts > 0 {
		// WithMaxRetries counts retries, not attempts.
		b = backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1))
	}
	return backoff.WithContext(b, ctx)
}

// Retry runs op until it succeeds, fails with a non-transient error, or the
// policy gives up. notify, if non-nil, is called before each retry.
func Retry(ctx context.Context, p RetryPolicy, op func() error, notify func(err error, wait time.Duration)) error {
	return backoff.RetryNotify(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if IsTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}, p.newBackOff(ctx), notify)
}

// RetryValue is Retry for operations that return a value.
func RetryValue[T any](ctx context.Context, p RetryPolicy, op func() (T, error), notify func(err error, wait time.Duration)) (T, error) {
	var out T
	err := Retry(ctx, p, func() error {
		v, err := op()
		if err != nil {
			return err
		}
		out = v
		return nil
	}, notify)
	return out, err
}

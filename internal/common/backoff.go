package common

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds retries of a single remote step.
type RetryPolicy struct {
	MaxAttempts     int           // total attempts, including the first
	InitialInterval time.Duration // wait before the first retry
	MaxInterval     time.Duration // cap for any single wait
}

// DefaultRetryPolicy: 5 attempts, 500ms doubling up to 30s
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     5,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     30 * time.Second,
	}
}

// CappedBackOff is an exponential backoff whose randomized waits never exceed
// its maximum interval.
type CappedBackOff struct {
	*backoff.ExponentialBackOff
	max time.Duration
}

// NextBackOff implements backoff.BackOff.
func (b *CappedBackOff) NextBackOff() time.Duration {
	d := b.ExponentialBackOff.NextBackOff()
	if d == backoff.Stop {
		return d
	}
	return min(d, b.max)
}

// NewExponentialBackOff builds an exponential backoff that never gives up on
// its own; callers bound it by attempts or by context. No single wait is
// longer than max.
func NewExponentialBackOff(initial, max time.Duration) *CappedBackOff {
	b := backoff.NewExponentialBackOff()
	if initial > 0 {
		b.InitialInterval = initial
	}
	if max > 0 {
		b.MaxInterval = max
	}
	if b.MaxInterval < b.InitialInterval {
		b.MaxInterval = b.InitialInterval
	}
	b.MaxElapsedTime = 0
	b.Reset()
	return &CappedBackOff{ExponentialBackOff: b, max: b.MaxInterval}
}

// Retry runs op until it succeeds, fails with an error retryable rejects, the
// attempts are used up or ctx ends. The last error is returned. notify, if set,
// is called before every wait.
func Retry(ctx context.Context, p RetryPolicy, retryable func(error) bool, op func(context.Context) error, notify func(err error, wait time.Duration)) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	b := backoff.WithContext(
		backoff.WithMaxRetries(NewExponentialBackOff(p.InitialInterval, p.MaxInterval), uint64(attempts-1)),
		ctx,
	)

	return backoff.RetryNotify(func() error {
		err := op(ctx)
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b, notify)
}

// Sleep waits for d or until ctx ends. It reports whether the full wait elapsed.
func Sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

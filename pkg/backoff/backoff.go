// Package backoff wraps fallible operations with bounded exponential-delay
// retry, built on cenkalti/backoff.
package backoff

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy describes one retry schedule: delays start at Initial, double on
// every attempt and are capped at Max. MaxAttempts zero means retry until
// the operation succeeds, returns a permanent error, or the context is
// cancelled.
type Policy struct {
	Initial     time.Duration
	Max         time.Duration
	MaxAttempts uint64
}

// ConnectPolicy mirrors the connection-acquisition schedule: 1s doubling
// up to 10s, no attempt cap.
func ConnectPolicy() Policy {
	return Policy{Initial: time.Second, Max: 10 * time.Second}
}

// BulkPolicy is the operation-level schedule used for bulk submission:
// 1s doubling up to 300s, at most 1000 retries.
func BulkPolicy() Policy {
	return Policy{Initial: time.Second, Max: 300 * time.Second, MaxAttempts: 1000}
}

// Do runs op, retrying per the policy until it succeeds. Errors wrapped
// with Permanent stop the retries immediately, as does ctx cancellation.
func (p Policy) Do(ctx context.Context, op func() error) error {
	return backoff.Retry(op, p.source(ctx))
}

// Permanent marks err as not retryable.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

func (p Policy) source(ctx context.Context) backoff.BackOff {
	var b backoff.BackOff = p.exponential()
	if p.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, p.MaxAttempts)
	}
	return backoff.WithContext(b, ctx)
}

func (p Policy) exponential() *backoff.ExponentialBackOff {
	e := backoff.NewExponentialBackOff()
	e.InitialInterval = p.Initial
	e.MaxInterval = p.Max
	e.Multiplier = 2
	// No jitter: delays must double deterministically until the cap.
	e.RandomizationFactor = 0
	// Never give up on elapsed time; attempts and ctx bound the loop.
	e.MaxElapsedTime = 0
	e.Reset()
	return e
}

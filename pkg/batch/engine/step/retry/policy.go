// Package retry decides whether and when a failed worker attempt is run again.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/tigerroll/tablesync/pkg/batch/core/config"
	"github.com/tigerroll/tablesync/pkg/batch/support/util/exception"
)

// RetryPolicy is an interface that defines retry logic.
type RetryPolicy interface {
	// ShouldRetry determines if a given error is retryable.
	ShouldRetry(err error) bool
	// GetBackoffInterval returns the wait before the given retry (starting from 1).
	GetBackoffInterval(attempt int) time.Duration
	// GetMaxAttempts returns the number of retries after the first attempt.
	GetMaxAttempts() int
}

// FixedIntervalPolicy retries transient errors a fixed number of times with a constant delay.
type FixedIntervalPolicy struct {
	maxAttempts int
	interval    time.Duration
}

// NewFixedIntervalPolicy creates a FixedIntervalPolicy. Negative values are treated as zero.
func NewFixedIntervalPolicy(maxAttempts int, interval time.Duration) *FixedIntervalPolicy {
	if maxAttempts < 0 {
		maxAttempts = 0
	}
	if interval < 0 {
		interval = 0
	}
	return &FixedIntervalPolicy{maxAttempts: maxAttempts, interval: interval}
}

// NewRetryPolicy creates the worker policy from batch.retry settings.
func NewRetryPolicy(cfg config.RetryConfig) *FixedIntervalPolicy {
	return NewFixedIntervalPolicy(cfg.MaxAttempts, time.Duration(cfg.IntervalMs)*time.Millisecond)
}

// GetMaxAttempts implements RetryPolicy.
func (p *FixedIntervalPolicy) GetMaxAttempts() int {
	return p.maxAttempts
}

// GetBackoffInterval implements RetryPolicy. The interval does not grow.
func (p *FixedIntervalPolicy) GetBackoffInterval(attempt int) time.Duration {
	return p.interval
}

// ShouldRetry implements RetryPolicy.
func (p *FixedIntervalPolicy) ShouldRetry(err error) bool {
	return exception.IsTemporary(err)
}

// Do calls op until it succeeds, fails with an error the policy will not retry, the
// policy's attempts run out or ctx is done. attempt starts at 1. notify, if set, is called
// before each wait. The last error is returned.
func Do(ctx context.Context, policy RetryPolicy, op func(attempt int) error, notify func(err error, wait time.Duration)) error {
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(policy.GetBackoffInterval(1)), uint64(policy.GetMaxAttempts())),
		ctx,
	)
	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		err := op(attempt)
		if err != nil && !policy.ShouldRetry(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b, notify)
}

var _ RetryPolicy = (*FixedIntervalPolicy)(nil)

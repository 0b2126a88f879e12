// Package retry runs an operation under a per-attempt deadline with bounded,
// exponentially spaced retries.
package retry

import (
	"context"
	"errors"
	"time"
)

// Policy bounds a retried operation. The zero value makes a single attempt with no deadline.
type Policy struct {
	MaxAttempts    int           // total attempts including the first; <=1 means no retry
	AttemptTimeout time.Duration // deadline applied to each attempt; 0 disables it
	InitialBackoff time.Duration // wait before the second attempt
	MaxBackoff     time.Duration // cap for the doubled backoff; 0 means uncapped
}

// DefaultPolicy is used by the generation clients.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		AttemptTimeout: 30 * time.Second,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     4 * time.Second,
	}
}

// Do calls fn until it succeeds, returns a non-retryable error, the attempts
// run out, or ctx is done. The last error from fn is returned.
func Do(ctx context.Context, p Policy, retryable func(error) bool, fn func(ctx context.Context, attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := p.InitialBackoff

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = runAttempt(ctx, p.AttemptTimeout, attempt, fn)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		if attempt == attempts || retryable == nil || !retryable(err) {
			return err
		}

		if backoff > 0 {
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return err
			case <-timer.C:
			}
			backoff *= 2
			if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
				backoff = p.MaxBackoff
			}
		}
	}
	return err
}

func runAttempt(ctx context.Context, timeout time.Duration, attempt int, fn func(ctx context.Context, attempt int) error) error {
	if timeout <= 0 {
		return fn(ctx, attempt)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(attemptCtx, attempt)
}

// IsTimeout reports whether err is a deadline expiry of a single attempt.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

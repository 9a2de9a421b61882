// Package retry runs an operation with bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"time"
)

type Policy struct {
	// MaxRetries is the number of retries after the first call.
	MaxRetries int
	// BaseDelay is the wait before the first retry; it doubles after every failure.
	BaseDelay time.Duration
	// Sleep waits d or until ctx is done. Defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry is called before each wait.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Delay is the wait after the given 0-based failed attempt: BaseDelay * 2^attempt.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return p.BaseDelay << attempt
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying; Do returns it unwrapped.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do calls op until it succeeds, returns a Permanent error, or the retries run out. It reports
// how many calls were made and the last error.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) (int, error) {
	sleep := p.Sleep
	if sleep == nil {
		sleep = timerSleep
	}
	retries := max(p.MaxRetries, 0)

	var lastErr error
	for attempt := 0; ; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return attempt + 1, nil
		}
		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return attempt + 1, perm.err
		}
		if attempt >= retries {
			return attempt + 1, lastErr
		}

		d := p.Delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, d, lastErr)
		}
		if err := sleep(ctx, d); err != nil {
			return attempt + 1, errors.Join(lastErr, err)
		}
	}
}

func timerSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Package retry re-runs failing calls with exponential backoff.
package retry

import (
	"context"
	"math/rand/v2"
	"time"
)

// Opts configures retry behavior.
type Opts struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Jitter      bool
	// Retryable decides whether an error is worth another attempt. Nil retries everything.
	Retryable func(error) bool
}

// Default provides the store retry policy.
var Default = Opts{
	MaxAttempts: 3,
	InitialWait: 100 * time.Millisecond,
	MaxWait:     2 * time.Second,
	Jitter:      true,
}

// Do calls f up to MaxAttempts times, sleeping between attempts with
// exponential backoff. onRetry, when set, sees every error that triggers
// another attempt.
func Do[T any](ctx context.Context, opts Opts, f func(context.Context) (T, error), onRetry func(attempt int, err error)) (T, error) {
	var (
		result T
		err    error
	)
	wait := opts.InitialWait
	attempts := max(opts.MaxAttempts, 1)

	for attempt := 1; attempt <= attempts; attempt++ {
		result, err = f(ctx)
		if err == nil {
			return result, nil
		}
		if attempt == attempts || (opts.Retryable != nil && !opts.Retryable(err)) {
			break
		}
		if ctx.Err() != nil {
			return result, err
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}

		sleep := wait
		if opts.Jitter {
			sleep = time.Duration(float64(wait) * (0.5 + rand.Float64()))
		}
		if opts.MaxWait > 0 && sleep > opts.MaxWait {
			sleep = opts.MaxWait
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, err
		case <-timer.C:
		}

		wait *= 2
		if opts.MaxWait > 0 && wait > opts.MaxWait {
			wait = opts.MaxWait
		}
	}
	return result, err
}

// Package retry provides a bounded retry helper with explicit attempt
// and interval limits, parameterized per call site.
package retry

import (
	"context"
	"time"
)

// Config controls retry behavior.
type Config struct {
	// MaxAttempts is the maximum number of attempts before giving up.
	MaxAttempts int

	// Interval is the delay between attempts.
	Interval time.Duration

	// BackoffMultiply scales the interval after each attempt.
	// 1.0 (or 0, which is treated as 1.0) gives a fixed interval.
	BackoffMultiply float64

	// MaxInterval caps the interval when backoff is enabled.
	MaxInterval time.Duration
}

// Result indicates the outcome of a retried operation.
type Result struct {
	// Success indicates if the operation eventually succeeded.
	Success bool

	// Attempts is how many attempts were made.
	Attempts int

	// LastErr is the error from the final failed attempt (if any).
	LastErr error
}

// Do runs operation until it succeeds, attempts run out, or the context
// is cancelled. This is the only place the orchestrator sleeps.
func Do(ctx context.Context, cfg Config, operation func(ctx context.Context) error) Result {
	multiply := cfg.BackoffMultiply
	if multiply <= 0 {
		multiply = 1.0
	}
	interval := cfg.Interval

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := operation(ctx)
		if err == nil {
			return Result{Success: true, Attempts: attempt}
		}
		lastErr = err

		if attempt < cfg.MaxAttempts {
			select {
			case <-ctx.Done():
				return Result{Success: false, Attempts: attempt, LastErr: ctx.Err()}
			case <-time.After(interval):
			}

			interval = time.Duration(float64(interval) * multiply)
			if cfg.MaxInterval > 0 && interval > cfg.MaxInterval {
				interval = cfg.MaxInterval
			}
		}
	}

	return Result{Success: false, Attempts: cfg.MaxAttempts, LastErr: lastErr}
}

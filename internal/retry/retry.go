// Package retry runs an operation again with exponential backoff while it
// fails with a transient error.
//
//	err := retry.Do(ctx, retry.Default, func() error {
//	    return tx.Commit()
//	}, isConflict)
//
// Attempt n waits InitialBackoff * 2^(n-1), capped at MaxBackoff, plus a
// jitter that grows linearly with n. Cancelling ctx stops the loop during a
// wait.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Config defines the backoff schedule. MaxRetries and InitialBackoff must be
// positive.
type Config struct {
	// MaxRetries is the number of times the operation is called at most.
	MaxRetries int
	// InitialBackoff is the wait before the second call.
	InitialBackoff time.Duration
	// MaxBackoff caps a single wait. Zero means no cap.
	MaxBackoff time.Duration
	// Jitter is the fraction of the wait added at the last attempt, in [0, 1].
	Jitter float64
}

// Default suits short DuckDB write transactions.
var Default = Config{
	MaxRetries:     10,
	InitialBackoff: 10 * time.Millisecond,
	MaxBackoff:     500 * time.Millisecond,
	Jitter:         0.1,
}

// ShouldRetryFunc reports whether err is transient. A nil ShouldRetryFunc
// retries every error.
type ShouldRetryFunc func(error) bool

// Do calls fn until it succeeds, fails with a non-transient error, or has been
// called cfg.MaxRetries times. In the last case the returned error wraps the
// last failure.
func Do(ctx context.Context, cfg Config, fn func() error, shouldRetry ShouldRetryFunc) error {
	var lastErr error

	for attempt := 0; attempt < cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff(cfg, attempt)):
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		if shouldRetry != nil && !shouldRetry(err) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("failed after %d retries: %w", cfg.MaxRetries, lastErr)
}

func backoff(cfg Config, attempt int) time.Duration {
	d := time.Duration(math.Pow(2, float64(attempt-1)) * float64(cfg.InitialBackoff))
	if cfg.MaxBackoff > 0 && d > cfg.MaxBackoff {
		d = cfg.MaxBackoff
	}
	if cfg.Jitter > 0 {
		d += time.Duration(float64(d) * cfg.Jitter * float64(attempt) / float64(cfg.MaxRetries))
	}
	return d
}

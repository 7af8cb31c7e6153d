package audio

import (
	"context"
	"time"
)

// retry calls fn until it succeeds or retries extra attempts have failed.
// The wait before attempt n is n*delay. It returns the last error, or the
// context error if ctx ends while waiting.
func retry(ctx context.Context, retries int, delay time.Duration, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(time.Duration(attempt) * delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}

		if lastErr = fn(); lastErr == nil {
			return nil
		}
	}
	return lastErr
}

// Package retry re-runs feed writes that were rate limited, sleeping
// exactly the wait the service signalled. Anything other than a rate
// limit stops the attempt immediately.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cardroom/internal/feed"
)

// DefaultLimit is the attempt ceiling used when a Retrier does not
// set one.
const DefaultLimit = 5

// Retrier runs an operation with bounded rate-limit retries.
type Retrier struct {
	// Limit is the maximum number of attempts. Zero means
	// DefaultLimit.
	Limit int
	// Sleep waits for the signalled duration. Nil means a real
	// context-aware sleep; tests substitute a recorder.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Do runs fn until it succeeds, fails with something other than a
// rate limit, the context ends, or the attempt ceiling is reached.
func (r Retrier) Do(ctx context.Context, fn func() error) error {
	limit := r.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	var err error
	for attempt := 1; attempt <= limit; attempt++ {
		err = fn()
		var rl *feed.RateLimitError
		if !errors.As(err, &rl) {
			return err
		}
		if attempt == limit {
			break
		}
		if serr := sleep(ctx, rl.RetryAfter); serr != nil {
			return serr
		}
	}
	return fmt.Errorf("rate limited %d times, giving up: %w", limit, err)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

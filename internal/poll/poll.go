package poll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chainguard-dev/clog"
)

// ErrTimeout is returned when the awaited condition does not hold within the
// attempt budget. Callers classify it with errors.Is.
var ErrTimeout = errors.New("timed out waiting for condition")

// CheckFunc reports whether the awaited condition holds. A non-nil error
// aborts the loop immediately; the loop never retries a failed call.
type CheckFunc func(ctx context.Context) (bool, error)

// Until calls check up to maxAttempts times with interval between calls.
// The first check runs immediately. Returns nil as soon as check reports
// done; check is never called again after that. Context cancellation during
// the wait returns ctx.Err().
func Until(ctx context.Context, interval time.Duration, maxAttempts int, check CheckFunc) error {
	log := clog.FromContext(ctx)

	for attempt := 1; ; attempt++ {
		done, err := check(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if attempt >= maxAttempts {
			return fmt.Errorf("%w after %d attempts", ErrTimeout, maxAttempts)
		}

		log.Debugf("condition not met, retrying in %s (attempt %d/%d)", interval, attempt, maxAttempts)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

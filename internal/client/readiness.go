package client

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// EnsureReady retries probe with a fixed backoff until it reports true, then
// runs action. Remote mutations can arrive before the viewer finished loading
// what they refer to; without this gate they would target a not-yet-existing
// local object. Exhaustion is ErrNotReady: callers log and abandon, the next
// incoming event gets its own fresh attempt.
func EnsureReady(ctx context.Context, probe func() bool, action func() error, maxAttempts int, backoff time.Duration) error {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if probe() {
			return action()
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "readiness wait canceled")
		case <-time.After(backoff):
		}
	}
	return errors.Wrapf(ErrNotReady, "gave up after %d attempts", maxAttempts)
}

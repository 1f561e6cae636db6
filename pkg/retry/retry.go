// Package retry implements the bounded application-level retry wrapper
// placed around every outermost RPC call: up to types.MaxRetryCount
// attempts, retrying on any error except the "fatal to this call" set
// errs.Fatal distinguishes.
package retry

import (
	"context"
	"time"

	"github.com/oxen-io/session-network-core/pkg/errs"
	"github.com/oxen-io/session-network-core/pkg/log"
	"github.com/oxen-io/session-network-core/pkg/types"
)

// baseBackoff is the delay before the first retry; each subsequent retry
// doubles it, capped at maxBackoff.
const (
	baseBackoff = 50 * time.Millisecond
	maxBackoff  = 2 * time.Second
)

// Do calls fn up to types.MaxRetryCount times, stopping early on success,
// on ctx cancellation, or on an error errs.Fatal reports as terminal for
// this call. It returns the last error seen.
func Do(ctx context.Context, component string, fn func(ctx context.Context) error) error {
	var lastErr error
	backoff := baseBackoff

	for attempt := 1; attempt <= types.MaxRetryCount; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if errs.Fatal(lastErr) {
			return lastErr
		}

		if attempt < types.MaxRetryCount {
			log.WithComponent(component).Debug().
				Int("attempt", attempt).
				Err(lastErr).
				Msg("retrying RPC call")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
	return lastErr
}

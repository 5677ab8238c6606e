// Package retry provides the bounded repeated-attempt primitive shared by
// transaction-confirmation waits and balance reconciliation: run a function,
// and while it reports "not yet", run it again after an interval, up to a
// fixed attempt budget.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted is returned when all attempts were used without success. The
// underlying condition may still resolve later; callers decide whether that
// matters.
var ErrExhausted = errors.New("retry budget exhausted")

// Policy describes a bounded polling schedule. The first attempt runs
// immediately; each subsequent attempt waits Interval, multiplied by
// Multiplier after every attempt (capped at MaxInterval) when Multiplier is
// greater than 1.
type Policy struct {
	MaxAttempts int
	Interval    time.Duration
	Multiplier  float64
	MaxInterval time.Duration
}

// Confirmations returns the default policy for transaction-confirmation
// waits: poll every 2s, up to 30 attempts (~1 minute on a fast chain).
func Confirmations() Policy {
	return Policy{MaxAttempts: 30, Interval: 2 * time.Second}
}

// Reconciliations returns the default policy for post-confirmation balance
// re-reads: an immediate read and then a few spaced ones to mask RPC lag.
func Reconciliations() Policy {
	return Policy{MaxAttempts: 5, Interval: 3 * time.Second}
}

// permanent wraps an error to signal that retrying cannot help.
type permanent struct{ err error }

func (p permanent) Error() string { return p.err.Error() }
func (p permanent) Unwrap() error { return p.err }

// Stop marks err as permanent: Do returns it immediately without consuming
// further attempts.
func Stop(err error) error { return permanent{err: err} }

// Do runs fn until it returns nil, a permanent error, the context is done,
// or MaxAttempts is reached. On exhaustion it returns the last error wrapped
// in ErrExhausted.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}

	interval := p.Interval
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		var perm permanent
		if errors.As(lastErr, &perm) {
			return perm.err
		}

		if attempt == p.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}

		if p.Multiplier > 1 {
			interval = time.Duration(float64(interval) * p.Multiplier)
			if p.MaxInterval > 0 && interval > p.MaxInterval {
				interval = p.MaxInterval
			}
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, p.MaxAttempts, lastErr)
}

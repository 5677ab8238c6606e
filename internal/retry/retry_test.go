package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errNotYet = errors.New("not yet")

func TestDoSucceedsAfterRetries(t *testing.T) {
	p := Policy{MaxAttempts: 5, Interval: time.Millisecond}

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errNotYet
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestDoExhaustsBudget(t *testing.T) {
	p := Policy{MaxAttempts: 4, Interval: time.Millisecond}

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errNotYet
	})
	require.ErrorIs(t, err, ErrExhausted)
	require.ErrorIs(t, err, errNotYet)
	require.Equal(t, 4, calls)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	p := Policy{MaxAttempts: 10, Interval: time.Millisecond}
	fatal := errors.New("reverted")

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Stop(fatal)
	})
	require.ErrorIs(t, err, fatal)
	require.NotErrorIs(t, err, ErrExhausted)
	require.Equal(t, 1, calls)
}

func TestDoRespectsContext(t *testing.T) {
	p := Policy{MaxAttempts: 100, Interval: 50 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := p.Do(ctx, func(ctx context.Context) error {
		calls++
		return errNotYet
	})
	require.ErrorIs(t, err, context.Canceled)
	require.LessOrEqual(t, calls, 2)
}

func TestBackoffIsCapped(t *testing.T) {
	p := Policy{
		MaxAttempts: 4,
		Interval:    time.Millisecond,
		Multiplier:  10,
		MaxInterval: 2 * time.Millisecond,
	}

	start := time.Now()
	_ = p.Do(context.Background(), func(ctx context.Context) error {
		return errNotYet
	})
	// Three waits, each capped at 2ms; without the cap the second wait alone
	// would be 10ms.
	require.Less(t, time.Since(start), 50*time.Millisecond)
}

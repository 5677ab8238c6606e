package bus

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Osiyomeoh/CoreYield-sub001/internal/domain"
)

func newTestBus() *Memory {
	return NewMemory(slog.New(slog.DiscardHandler))
}

func TestPublishReachesTopicSubscribers(t *testing.T) {
	b := newTestBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, err := b.Subscribe(ctx, domain.TopicPositionUpdated)
	require.NoError(t, err)
	claims, err := b.Subscribe(ctx, domain.TopicYieldClaimed)
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, domain.Event{Topic: domain.TopicPositionUpdated, AssetKey: "stcore"}))

	select {
	case evt := <-updates:
		require.Equal(t, "stcore", evt.AssetKey)
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}

	select {
	case <-claims:
		t.Fatal("event leaked across topics")
	default:
	}
}

func TestSubscribeCancelClosesChannel(t *testing.T) {
	b := newTestBus()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := b.Subscribe(ctx, domain.TopicTxRecorded)
	require.NoError(t, err)
	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	// Publishing after unsubscribe must not panic or block.
	require.NoError(t, b.Publish(context.Background(), domain.Event{Topic: domain.TopicTxRecorded}))
}

func TestPublishDoesNotBlockOnFullSubscriber(t *testing.T) {
	b := newTestBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := b.Subscribe(ctx, domain.TopicMarketCreated)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer*2; i++ {
			_ = b.Publish(ctx, domain.Event{Topic: domain.TopicMarketCreated})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on an undrained subscriber")
	}
}

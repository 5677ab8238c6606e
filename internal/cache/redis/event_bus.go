package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/Osiyomeoh/CoreYield-sub001/internal/domain"
)

// channelPrefix namespaces the bus inside a shared Redis instance.
const channelPrefix = "coreyield:events:"

// EventBus implements domain.EventBus over Redis Pub/Sub with JSON payloads,
// so multiple orchestrator instances share one event plane.
type EventBus struct {
	rdb    *redis.Client
	logger *slog.Logger
}

var _ domain.EventBus = (*EventBus)(nil)

// NewEventBus creates an EventBus backed by the given Client.
func NewEventBus(c *Client, logger *slog.Logger) *EventBus {
	return &EventBus{
		rdb:    c.Underlying(),
		logger: logger.With(slog.String("component", "eventbus")),
	}
}

func channelFor(topic domain.Topic) string {
	return channelPrefix + string(topic)
}

// Publish serializes the event and sends it to the topic's channel.
func (b *EventBus) Publish(ctx context.Context, evt domain.Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("redis: marshal event %s: %w", evt.Topic, err)
	}
	if err := b.rdb.Publish(ctx, channelFor(evt.Topic), payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", evt.Topic, err)
	}
	return nil
}

// Subscribe creates a Pub/Sub subscription for one topic and returns a
// channel of decoded events. The subscription is closed when ctx is
// cancelled; the returned channel is closed at that point as well.
func (b *EventBus) Subscribe(ctx context.Context, topic domain.Topic) (<-chan domain.Event, error) {
	pubsub := b.rdb.Subscribe(ctx, channelFor(topic))

	// Verify the subscription is established by receiving the confirmation.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", topic, err)
	}

	out := make(chan domain.Event, 128)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var evt domain.Event
				if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
					b.logger.Warn("dropping undecodable event",
						slog.String("topic", string(topic)),
						slog.String("error", err.Error()),
					)
					continue
				}
				select {
				case out <- evt:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

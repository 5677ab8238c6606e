// Package bus provides the in-process event bus used when Redis is not
// wired in. Delivery is best-effort fan-out: a subscriber that stops
// draining loses events rather than stalling publishers.
package bus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Osiyomeoh/CoreYield-sub001/internal/domain"
)

const subscriberBuffer = 64

// Memory is an in-process domain.EventBus.
type Memory struct {
	logger *slog.Logger

	mu   sync.Mutex
	subs map[domain.Topic][]chan domain.Event
}

var _ domain.EventBus = (*Memory)(nil)

// NewMemory creates an empty in-process bus.
func NewMemory(logger *slog.Logger) *Memory {
	return &Memory{
		logger: logger.With(slog.String("component", "bus")),
		subs:   make(map[domain.Topic][]chan domain.Event),
	}
}

// Publish fans the event out to every subscriber of its topic without
// blocking; full subscriber buffers drop the event.
func (m *Memory) Publish(_ context.Context, evt domain.Event) error {
	m.mu.Lock()
	subs := make([]chan domain.Event, len(m.subs[evt.Topic]))
	copy(subs, m.subs[evt.Topic])
	m.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- evt:
		default:
			m.logger.Warn("subscriber buffer full, dropping event",
				slog.String("topic", string(evt.Topic)),
			)
		}
	}
	return nil
}

// Subscribe registers a new subscriber channel for topic. The subscription
// is removed and the channel closed when ctx is cancelled.
func (m *Memory) Subscribe(ctx context.Context, topic domain.Topic) (<-chan domain.Event, error) {
	ch := make(chan domain.Event, subscriberBuffer)

	m.mu.Lock()
	m.subs[topic] = append(m.subs[topic], ch)
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		subs := m.subs[topic]
		for i, c := range subs {
			if c == ch {
				m.subs[topic] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		m.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}

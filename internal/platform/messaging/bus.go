package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	contractsv1 "merkledrop/contracts/gen/events/v1"
)

// ErrSubscriberBusy is returned when a subscriber's queue stays full for the
// whole publish timeout. The event is not acknowledged, so the outbox relay
// retries it on its next poll.
var ErrSubscriberBusy = errors.New("subscriber queue full")

// Handler consumes one delivered envelope.
type Handler func(ctx context.Context, event contractsv1.Envelope) error

// Bus is the event bus used by the outbox relay. Delivery is in-process
// publish/subscribe; Brokers is recorded for an external broker binding.
type Bus struct {
	mu      sync.RWMutex
	brokers []string
	buffer  int
	// publishTimeout bounds how long Publish waits on one full subscriber queue.
	publishTimeout time.Duration
	subscribers    map[string][]chan contractsv1.Envelope
	logger         *slog.Logger
}

func NewBus(brokers []string, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		brokers:        append([]string(nil), brokers...),
		buffer:         128,
		publishTimeout: 5 * time.Second,
		subscribers:    make(map[string][]chan contractsv1.Envelope),
		logger:         logger,
	}
}

func (b *Bus) Brokers() []string {
	return append([]string(nil), b.brokers...)
}

// Publish rejects malformed envelopes so consumers can rely on routing and
// dedupe fields. A subscriber whose queue stays full fails the publish with
// ErrSubscriberBusy; subscribers served before it may see the event again on
// retry and dedupe by event ID.
func (b *Bus) Publish(ctx context.Context, topic string, event contractsv1.Envelope) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	b.mu.RLock()
	subs := append([]chan contractsv1.Envelope(nil), b.subscribers[topic]...)
	b.mu.RUnlock()

	for _, sub := range subs {
		if err := b.deliver(ctx, sub, event); err != nil {
			b.logger.Warn("subscriber did not accept event",
				"event", "bus_publish_blocked",
				"module", "internal/platform/messaging",
				"layer", "platform",
				"topic", topic,
				"event_id", event.EventID,
				"error", err.Error(),
			)
			return fmt.Errorf("publish %s to %s: %w", event.EventID, topic, err)
		}
	}

	b.logger.Info("event published",
		"event", "bus_publish",
		"module", "internal/platform/messaging",
		"layer", "platform",
		"topic", topic,
		"event_id", event.EventID,
		"event_type", event.EventType,
		"subscribers", len(subs),
	)
	return nil
}

func (b *Bus) deliver(ctx context.Context, sub chan<- contractsv1.Envelope, event contractsv1.Envelope) error {
	select {
	case sub <- event:
		return nil
	default:
	}

	timer := time.NewTimer(b.publishTimeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case sub <- event:
		return nil
	case <-timer.C:
		return ErrSubscriberBusy
	}
}

// Subscribe delivers topic events to handler until ctx is cancelled.
func (b *Bus) Subscribe(ctx context.Context, topic string, consumerGroup string, handler Handler) error {
	if handler == nil {
		return fmt.Errorf("subscribe to %s: nil handler", topic)
	}
	ch := make(chan contractsv1.Envelope, b.buffer)

	b.mu.Lock()
	b.subscribers[topic] = append(b.subscribers[topic], ch)
	b.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				b.removeSubscriber(topic, ch)
				return
			case event := <-ch:
				if err := handler(ctx, event); err != nil {
					b.logger.Error("consumer handler failed",
						"event", "bus_consume_failed",
						"module", "internal/platform/messaging",
						"layer", "platform",
						"topic", topic,
						"consumer_group", consumerGroup,
						"event_id", event.EventID,
						"event_type", event.EventType,
						"error", err.Error(),
					)
				}
			}
		}
	}()
	return nil
}

func (b *Bus) removeSubscriber(topic string, target chan contractsv1.Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()

	items := b.subscribers[topic]
	if len(items) == 0 {
		return
	}
	filtered := make([]chan contractsv1.Envelope, 0, len(items))
	for _, item := range items {
		if item != target {
			filtered = append(filtered, item)
		}
	}
	b.subscribers[topic] = filtered
}

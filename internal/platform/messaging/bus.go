package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"livepoll/contexts/polling/live-poll/ports"
)

const defaultGroupBuffer = 128

// ErrGroupFull is returned by Publish when a consumer group cannot take the
// event. The caller keeps the event and retries later.
var ErrGroupFull = errors.New("consumer group buffer full")

// Bus is the in-process event bus used when no broker is configured.
// Every consumer group on a topic gets its own copy of an event; members of
// one group compete for it, the same way consumers of one RabbitMQ queue do.
// A full group buffer fails Publish, so a retried event may reach the other
// groups twice.
type Bus struct {
	mu     sync.RWMutex
	topics map[string]map[string]*consumerGroup
	buffer int
	logger *slog.Logger
}

type consumerGroup struct {
	events  chan ports.EventEnvelope
	members int
}

func NewBus(logger *slog.Logger) *Bus {
	return NewBufferedBus(logger, defaultGroupBuffer)
}

// NewBufferedBus sets how many undelivered events each consumer group holds.
func NewBufferedBus(logger *slog.Logger, buffer int) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	if buffer <= 0 {
		buffer = defaultGroupBuffer
	}
	return &Bus{
		topics: make(map[string]map[string]*consumerGroup),
		buffer: buffer,
		logger: logger,
	}
}

func (b *Bus) Publish(ctx context.Context, topic string, event ports.EventEnvelope) error {
	b.mu.RLock()
	targets := make(map[string]*consumerGroup, len(b.topics[topic]))
	for name, group := range b.topics[topic] {
		targets[name] = group
	}
	b.mu.RUnlock()

	for name, group := range targets {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case group.events <- event:
		default:
			b.logger.Warn("consumer group is full",
				"event", "bus_publish_group_full",
				"module", "internal/platform/messaging",
				"layer", "platform",
				"topic", topic,
				"consumer_group", name,
				"event_id", event.EventID,
			)
			return fmt.Errorf("publish %s to %s/%s: %w", event.EventID, topic, name, ErrGroupFull)
		}
	}

	b.logger.Debug("event published",
		"event", "bus_publish",
		"module", "internal/platform/messaging",
		"layer", "platform",
		"topic", topic,
		"event_id", event.EventID,
		"consumer_groups", len(targets),
	)
	return nil
}

// Subscribe joins consumerGroup on topic until ctx is cancelled.
func (b *Bus) Subscribe(
	ctx context.Context,
	topic string,
	consumerGroup string,
	handler func(context.Context, ports.EventEnvelope) error,
) error {
	group := b.join(topic, consumerGroup)

	go func() {
		defer b.leave(topic, consumerGroup)
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-group.events:
				if err := handler(ctx, event); err != nil {
					b.logger.Error("consumer handler failed",
						"event", "bus_consume_failed",
						"module", "internal/platform/messaging",
						"layer", "platform",
						"topic", topic,
						"consumer_group", consumerGroup,
						"event_id", event.EventID,
						"error", err.Error(),
					)
				}
			}
		}
	}()
	return nil
}

func (b *Bus) join(topic string, name string) *consumerGroup {
	b.mu.Lock()
	defer b.mu.Unlock()

	groups, ok := b.topics[topic]
	if !ok {
		groups = make(map[string]*consumerGroup)
		b.topics[topic] = groups
	}
	group, ok := groups[name]
	if !ok {
		group = &consumerGroup{events: make(chan ports.EventEnvelope, b.buffer)}
		groups[name] = group
	}
	group.members++
	return group
}

// leave drops the group once its last member is gone. Events still buffered
// for it are discarded.
func (b *Bus) leave(topic string, name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	group, ok := b.topics[topic][name]
	if !ok {
		return
	}
	group.members--
	if group.members > 0 {
		return
	}
	delete(b.topics[topic], name)
	if len(b.topics[topic]) == 0 {
		delete(b.topics, topic)
	}
}

func (b *Bus) groupCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

var _ ports.EventPublisher = (*Bus)(nil)
var _ ports.EventSubscriber = (*Bus)(nil)

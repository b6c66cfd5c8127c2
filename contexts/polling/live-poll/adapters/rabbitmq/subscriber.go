package rabbitmqadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"livepoll/contexts/polling/live-poll/ports"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Subscriber consumes envelopes from the vote queue with manual acks.
// Deliveries whose type does not match the subscribed topic are acked and
// skipped; a failed handler nacks with requeue.
type Subscriber struct {
	channel Channel
	queue   string
	logger  *slog.Logger
}

func NewSubscriber(channel Channel, queue string, logger *slog.Logger) *Subscriber {
	if logger == nil {
		logger = slog.Default()
	}
	queue = strings.TrimSpace(queue)
	if queue == "" {
		queue = DefaultQueue
	}
	return &Subscriber{channel: channel, queue: queue, logger: logger}
}

func (s *Subscriber) Subscribe(
	ctx context.Context,
	topic string,
	consumerGroup string,
	handler func(context.Context, ports.EventEnvelope) error,
) error {
	if _, err := s.channel.QueueDeclare(s.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", s.queue, err)
	}
	deliveries, err := s.channel.Consume(s.queue, consumerGroup, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume queue %s: %w", s.queue, err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case delivery, ok := <-deliveries:
				if !ok {
					s.logger.Warn("rabbitmq delivery channel closed",
						"event", "live_poll_rabbitmq_consume_closed",
						"module", "polling/live-poll",
						"layer", "adapter",
						"queue", s.queue,
					)
					return
				}
				s.handle(ctx, topic, consumerGroup, delivery, handler)
			}
		}
	}()
	return nil
}

func (s *Subscriber) handle(
	ctx context.Context,
	topic string,
	consumerGroup string,
	delivery amqp.Delivery,
	handler func(context.Context, ports.EventEnvelope) error,
) {
	if topic != "" && delivery.Type != "" && delivery.Type != topic {
		_ = delivery.Ack(false)
		return
	}
	var event ports.EventEnvelope
	if err := json.Unmarshal(delivery.Body, &event); err != nil {
		s.logger.Error("rabbitmq delivery decode failed",
			"event", "live_poll_rabbitmq_decode_failed",
			"module", "polling/live-poll",
			"layer", "adapter",
			"queue", s.queue,
			"message_id", delivery.MessageId,
			"error", err.Error(),
		)
		_ = delivery.Nack(false, false)
		return
	}
	if err := handler(ctx, event); err != nil {
		s.logger.Error("consumer handler failed",
			"event", "live_poll_rabbitmq_consume_failed",
			"module", "polling/live-poll",
			"layer", "adapter",
			"queue", s.queue,
			"consumer_group", consumerGroup,
			"event_id", event.EventID,
			"error", err.Error(),
		)
		_ = delivery.Nack(false, true)
		return
	}
	_ = delivery.Ack(false)
}

var _ ports.EventSubscriber = (*Subscriber)(nil)

package rabbitmqadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"livepoll/contexts/polling/live-poll/ports"

	amqp "github.com/rabbitmq/amqp091-go"
)

const DefaultQueue = "votes"

const confirmBuffer = 16

var (
	ErrPublishNacked = errors.New("broker nacked publish")
	errConfirmsGone  = errors.New("publisher confirms channel closed")
)

// Channel is the subset of *amqp.Channel the adapters use.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Confirm(noWait bool) error
	NotifyPublish(confirm chan amqp.Confirmation) chan amqp.Confirmation
}

// Publisher sends vote envelopes to a durable queue. The topic travels as
// the message type so subscribers can filter. The channel runs in confirm
// mode and Publish returns only once the broker acked the message.
type Publisher struct {
	channel  Channel
	queue    string
	logger   *slog.Logger
	confirms chan amqp.Confirmation

	mu  sync.Mutex
	tag uint64
}

func NewPublisher(channel Channel, queue string, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	queue = strings.TrimSpace(queue)
	if queue == "" {
		queue = DefaultQueue
	}
	if _, err := channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	if err := channel.Confirm(false); err != nil {
		return nil, fmt.Errorf("enable publisher confirms: %w", err)
	}
	confirms := channel.NotifyPublish(make(chan amqp.Confirmation, confirmBuffer))
	return &Publisher{channel: channel, queue: queue, logger: logger, confirms: confirms}, nil
}

func (p *Publisher) Publish(ctx context.Context, topic string, event ports.EventEnvelope) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode envelope %s: %w", event.EventID, err)
	}

	p.mu.Lock()
	err = p.channel.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.EventID,
		Type:         topic,
		Timestamp:    event.OccurredAt,
		Body:         body,
	})
	if err == nil {
		p.tag++
		err = p.awaitConfirm(ctx, p.tag)
	}
	p.mu.Unlock()
	if err != nil {
		p.logger.Error("rabbitmq publish failed",
			"event", "live_poll_rabbitmq_publish_failed",
			"module", "polling/live-poll",
			"layer", "adapter",
			"queue", p.queue,
			"topic", topic,
			"event_id", event.EventID,
			"error", err.Error(),
		)
		return fmt.Errorf("publish %s: %w", event.EventID, err)
	}

	p.logger.Debug("rabbitmq event published",
		"event", "live_poll_rabbitmq_published",
		"module", "polling/live-poll",
		"layer", "adapter",
		"queue", p.queue,
		"topic", topic,
		"event_id", event.EventID,
	)
	return nil
}

// awaitConfirm waits for the confirmation of delivery tag. Confirmations for
// earlier tags left behind by a cancelled wait are skipped.
func (p *Publisher) awaitConfirm(ctx context.Context, tag uint64) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case confirm, ok := <-p.confirms:
			if !ok {
				return errConfirmsGone
			}
			if confirm.DeliveryTag < tag {
				continue
			}
			if !confirm.Ack {
				return ErrPublishNacked
			}
			return nil
		}
	}
}

var _ ports.EventPublisher = (*Publisher)(nil)

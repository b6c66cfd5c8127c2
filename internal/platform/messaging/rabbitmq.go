package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQ holds the broker connection and the channel adapters publish on.
type RabbitMQ struct {
	Conn    *amqp.Connection
	Channel *amqp.Channel
}

// ConnectRabbitMQ dials the broker, retrying while it starts up.
func ConnectRabbitMQ(ctx context.Context, url string, attempts int, delay time.Duration, logger *slog.Logger) (*RabbitMQ, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if attempts <= 0 {
		attempts = 5
	}

	var conn *amqp.Connection
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if conn, err = amqp.Dial(url); err == nil {
			break
		}
		logger.Warn("rabbitmq dial failed; retrying",
			"event", "rabbitmq_dial_retry",
			"module", "internal/platform/messaging",
			"layer", "platform",
			"attempt", attempt,
			"error", err.Error(),
		)
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("could not connect to rabbitmq after %d attempts: %w", attempts, err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	logger.Info("rabbitmq connected",
		"event", "rabbitmq_connected",
		"module", "internal/platform/messaging",
		"layer", "platform",
	)
	return &RabbitMQ{Conn: conn, Channel: channel}, nil
}

func (r *RabbitMQ) Close() error {
	if r == nil || r.Conn == nil {
		return nil
	}
	if r.Channel != nil {
		_ = r.Channel.Close()
	}
	return r.Conn.Close()
}

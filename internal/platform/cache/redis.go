package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
)

// ConnectRedis opens a client and verifies it with PING.
func ConnectRedis(ctx context.Context, addr string, db int, logger *slog.Logger) (*redis.Client, error) {
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	logger.Info("redis connected",
		"event", "redis_connected",
		"module", "internal/platform/cache",
		"layer", "platform",
		"addr", addr,
		"db", db,
	)
	return client, nil
}

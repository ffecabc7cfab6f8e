package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	coreconfig "github.com/m3rciful/shopbot/core/config"
	"github.com/m3rciful/shopbot/core/logger"
	"log/slog"
)

// New connects to Redis using the core configuration. A nil client is
// returned when no address is configured; callers must treat that as
// "feature disabled", not as an error.
func New(cfg coreconfig.RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	logger.DB.Info("redis connected",
		slog.String("event", "redis.connect"),
		slog.String("addr", cfg.Addr),
		slog.Int("db", cfg.DB),
	)
	return rdb, nil
}

// RateLimitKey builds the shared rate-limit key for a Telegram user.
func RateLimitKey(userID int64) string {
	return fmt.Sprintf("shopbot:ratelimit:%d", userID)
}

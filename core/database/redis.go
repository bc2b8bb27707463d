package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jakovchuk/socalska-report-bot/core/logger"
)

// ConnectRedis parses a redis:// URL, opens a client and verifies it with PING.
func ConnectRedis(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		logger.DB.Error("redis ping failed",
			slog.String("event", "redis.connect"),
			slog.String("addr", opts.Addr),
			slog.Int("db", opts.DB),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logger.DB.Info("redis connected",
		slog.String("event", "redis.connect"),
		slog.String("addr", opts.Addr),
		slog.Int("db", opts.DB),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return client, nil
}

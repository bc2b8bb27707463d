package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jakovchuk/socalska-report-bot/core/logger"
)

type redisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore returns a Store keeping one JSON document per chat.
// A zero ttl keeps sessions until they are cleared.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) Store {
	if prefix == "" {
		prefix = "report:session"
	}
	return &redisStore{client: client, prefix: prefix, ttl: ttl}
}

func (r *redisStore) key(chatID int64) string {
	return fmt.Sprintf("%s:%d", r.prefix, chatID)
}

func (r *redisStore) Get(ctx context.Context, chatID int64) (Session, error) {
	raw, err := r.client.Get(ctx, r.key(chatID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return NewSession(chatID), nil
	}
	if err != nil {
		return Session{}, fmt.Errorf("get session %d: %w", chatID, err)
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return Session{}, fmt.Errorf("decode session %d: %w", chatID, err)
	}
	return s.Clone(), nil
}

func (r *redisStore) Save(ctx context.Context, s *Session) error {
	if s == nil {
		return ErrNilSession
	}
	if !s.Active() {
		return r.Clear(ctx, s.ChatID)
	}
	s.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := r.client.Set(ctx, r.key(s.ChatID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("set session %d: %w", s.ChatID, err)
	}
	return nil
}

func (r *redisStore) Clear(ctx context.Context, chatID int64) error {
	if err := r.client.Del(ctx, r.key(chatID)).Err(); err != nil {
		return fmt.Errorf("delete session %d: %w", chatID, err)
	}
	return nil
}

func (r *redisStore) InProgress(ctx context.Context, chatID int64) bool {
	s, err := r.Get(ctx, chatID)
	if err != nil {
		logger.Warn(ctx, "store", "session.in_progress",
			slog.String("backend", "redis"),
			slog.Int64("chat_id", chatID),
			slog.String("err", err.Error()),
		)
		return false
	}
	return s.Active()
}

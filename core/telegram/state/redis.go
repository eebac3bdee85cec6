package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "tg:session:"

type redisStore[T any] struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore keeps sessions in Redis as JSON so they survive restarts and
// can be shared by replicas. idle <= 0 disables expiry.
func NewRedisStore[T any](client redis.UniversalClient, prefix string, idle time.Duration) Store[T] {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	if idle < 0 {
		idle = 0
	}
	return &redisStore[T]{client: client, prefix: prefix, ttl: idle}
}

func (r *redisStore[T]) Get(ctx context.Context, userID int64) (Session[T], bool, error) {
	raw, err := r.client.Get(ctx, r.prefix+key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session[T]{State: StateIdle}, false, nil
	}
	if err != nil {
		return Session[T]{State: StateIdle}, false, fmt.Errorf("state: redis get: %w", err)
	}
	var sess Session[T]
	if err := json.Unmarshal(raw, &sess); err != nil {
		return Session[T]{State: StateIdle}, false, fmt.Errorf("state: decode session: %w", err)
	}
	return sess, true, nil
}

func (r *redisStore[T]) Save(ctx context.Context, userID int64, s Session[T]) error {
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now()
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("state: encode session: %w", err)
	}
	if err := r.client.Set(ctx, r.prefix+key(userID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("state: redis set: %w", err)
	}
	return nil
}

func (r *redisStore[T]) Clear(ctx context.Context, userID int64) error {
	if err := r.client.Del(ctx, r.prefix+key(userID)).Err(); err != nil {
		return fmt.Errorf("state: redis del: %w", err)
	}
	return nil
}

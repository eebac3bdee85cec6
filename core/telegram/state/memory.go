package state

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/m3rciful/tunerover/core/logger"
)

type memoryStore[T any] struct {
	items *gocache.Cache
}

// NewMemoryStore constructs an in-process Store. Sessions untouched for idle are
// dropped; idle <= 0 keeps them until cleared or the process exits.
func NewMemoryStore[T any](idle time.Duration) Store[T] {
	ttl, sweep := idle, idle/2
	if idle <= 0 {
		ttl, sweep = gocache.NoExpiration, 0
	}
	if sweep > 0 && sweep < time.Second {
		sweep = time.Second
	}
	return &memoryStore[T]{items: gocache.New(ttl, sweep)}
}

func (m *memoryStore[T]) Get(ctx context.Context, userID int64) (Session[T], bool, error) {
	v, ok := m.items.Get(key(userID))
	if !ok {
		return Session[T]{State: StateIdle}, false, nil
	}
	sess, ok := v.(Session[T])
	if !ok {
		logger.Warn(ctx, "service.sessions", "session.type_mismatch",
			slog.Int64("user_id", userID),
		)
		m.items.Delete(key(userID))
		return Session[T]{State: StateIdle}, false, nil
	}
	return sess, true, nil
}

func (m *memoryStore[T]) Save(_ context.Context, userID int64, s Session[T]) error {
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now()
	}
	m.items.SetDefault(key(userID), s)
	return nil
}

func (m *memoryStore[T]) Clear(_ context.Context, userID int64) error {
	m.items.Delete(key(userID))
	return nil
}

func key(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

package state

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type draft struct {
	Title string  `json:"title"`
	Link  *string `json:"link,omitempty"`
}

const stepTitle State = "title"

func storeContract(t *testing.T, store Store[draft]) {
	t.Helper()
	ctx := context.Background()

	t.Run("Should report idle for unknown users", func(t *testing.T) {
		sess, ok, err := store.Get(ctx, 1)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, StateIdle, sess.State)
		assert.False(t, sess.Active())
	})

	t.Run("Should keep sessions separate per user", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, 10, Session[draft]{State: stepTitle, Data: draft{Title: "Low"}}))
		require.NoError(t, store.Save(ctx, 20, Session[draft]{State: stepTitle, Data: draft{Title: "Heroes"}}))

		a, ok, err := store.Get(ctx, 10)
		require.NoError(t, err)
		require.True(t, ok)
		b, ok, err := store.Get(ctx, 20)
		require.NoError(t, err)
		require.True(t, ok)

		assert.Equal(t, "Low", a.Data.Title)
		assert.Equal(t, "Heroes", b.Data.Title)
		assert.True(t, a.Active())
		assert.False(t, a.UpdatedAt.IsZero())
	})

	t.Run("Should forget cleared sessions", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, 30, Session[draft]{State: stepTitle, Data: draft{Title: "Lodger"}}))
		require.NoError(t, store.Clear(ctx, 30))
		require.NoError(t, store.Clear(ctx, 30))

		sess, ok, err := store.Get(ctx, 30)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, sess.Data.Title)
	})
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore[draft](time.Minute))

	t.Run("Should expire idle sessions", func(t *testing.T) {
		store := NewMemoryStore[draft](20 * time.Millisecond)
		ctx := context.Background()
		require.NoError(t, store.Save(ctx, 1, Session[draft]{State: stepTitle}))
		time.Sleep(60 * time.Millisecond)
		_, ok, err := store.Get(ctx, 1)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Should hand out copies", func(t *testing.T) {
		store := NewMemoryStore[draft](0)
		ctx := context.Background()
		require.NoError(t, store.Save(ctx, 1, Session[draft]{State: stepTitle, Data: draft{Title: "a"}}))
		sess, _, _ := store.Get(ctx, 1)
		sess.Data.Title = "mutated"
		again, _, _ := store.Get(ctx, 1)
		assert.Equal(t, "a", again.Data.Title)
	})
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	storeContract(t, NewRedisStore[draft](client, "", time.Minute))

	t.Run("Should round-trip optional fields", func(t *testing.T) {
		store := NewRedisStore[draft](client, "test:", time.Minute)
		ctx := context.Background()
		link := "https://music.apple.com/album/1"
		require.NoError(t, store.Save(ctx, 5, Session[draft]{State: stepTitle, Data: draft{Link: &link}}))
		sess, ok, err := store.Get(ctx, 5)
		require.NoError(t, err)
		require.True(t, ok)
		require.NotNil(t, sess.Data.Link)
		assert.Equal(t, link, *sess.Data.Link)
		assert.True(t, mr.Exists("test:5"))
	})

	t.Run("Should expire idle sessions", func(t *testing.T) {
		store := NewRedisStore[draft](client, "exp:", time.Minute)
		ctx := context.Background()
		require.NoError(t, store.Save(ctx, 7, Session[draft]{State: stepTitle}))
		mr.FastForward(2 * time.Minute)
		_, ok, err := store.Get(ctx, 7)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Should surface decode failures", func(t *testing.T) {
		require.NoError(t, mr.Set("bad:9", "{not json"))
		store := NewRedisStore[draft](client, "bad:", time.Minute)
		_, _, err := store.Get(context.Background(), 9)
		assert.Error(t, err)
	})
}

package kv

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "sims-auth-storage:p1", []byte(`{"roles":["student"]}`), 0))
	got, err := s.Get(ctx, "sims-auth-storage:p1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"roles":["student"]}`, string(got))

	require.NoError(t, s.Delete(ctx, "sims-auth-storage:p1"))
	_, err = s.Get(ctx, "sims-auth-storage:p1")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, s.Delete(ctx, "never-set"))
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := NewRedisStore(client)
	exerciseStore(t, s)

	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "short", []byte("v"), time.Minute))
	mr.FastForward(2 * time.Minute)
	_, err := s.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	s, err := Connect(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	exerciseStore(t, s)

	_, err = Connect(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	exerciseStore(t, s)

	ctx := context.Background()
	now := time.Now()
	s.now = func() time.Time { return now }
	require.NoError(t, s.Set(ctx, "short", []byte("v"), time.Minute))

	s.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, err := s.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	buf := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", buf, 0))
	buf[0] = 'z'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

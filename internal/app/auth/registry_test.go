package auth

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"sims/internal/app/kv"
	"sims/internal/pkg/logx"
	"sims/internal/pkg/metrics"
)

func TestRegistry(t *testing.T) {
	logx.InitTestLogger(io.Discard)
	store := kv.NewMemoryStore()
	backends := map[string]*fakeBackend{}

	factory := func(portalID string) *Store {
		b := newFakeBackend()
		backends[portalID] = b
		return NewStore(b, newFakeDirectory(), store, Options{PortalID: portalID, Timeout: time.Second})
	}

	m := metrics.New()
	r := NewRegistry(1, time.Hour, factory, m)
	ctx := context.Background()

	a := r.Get(ctx, "a")
	assert.Same(t, a, r.Get(ctx, "a"))
	assert.Equal(t, 1, r.Len())

	b := r.Get(ctx, "b")
	assert.NotSame(t, a, b)
	assert.Equal(t, 1, r.Len())
	assert.True(t, backends["a"].closed.Load(), "evicted portal is closed")

	r.Close()
	assert.True(t, backends["b"].closed.Load())
	assert.Equal(t, 0, r.Len())
}

func TestRegistryExpiresIdlePortals(t *testing.T) {
	logx.InitTestLogger(io.Discard)
	store := kv.NewMemoryStore()
	factory := func(portalID string) *Store {
		return NewStore(newFakeBackend(), newFakeDirectory(), store, Options{PortalID: portalID})
	}

	r := NewRegistry(10, 20*time.Millisecond, factory, nil)
	first := r.Get(context.Background(), "a")

	assert.Eventually(t, func() bool { return r.Len() == 0 }, time.Second, 5*time.Millisecond)
	assert.NotSame(t, first, r.Get(context.Background(), "a"))
}

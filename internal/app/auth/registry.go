package auth

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"sims/internal/pkg/metrics"
)

// Factory builds the Store of a new portal session.
type Factory func(portalID string) *Store

// Registry keeps one Store per portal id. Idle portals expire after ttl and the least
// recently used are evicted beyond size; eviction closes the Store.
type Registry struct {
	mu      sync.Mutex
	cache   *expirable.LRU[string, *Store]
	factory Factory
	metrics *metrics.Metrics
}

// NewRegistry creates a Registry.
func NewRegistry(size int, ttl time.Duration, factory Factory, m *metrics.Metrics) *Registry {
	r := &Registry{factory: factory, metrics: m}
	r.cache = expirable.NewLRU[string, *Store](size, func(_ string, s *Store) {
		s.Close()
	}, ttl)
	return r
}

// Get returns the Store of portalID, creating and restoring it on first use.
func (r *Registry) Get(ctx context.Context, portalID string) *Store {
	r.mu.Lock()
	s, ok := r.cache.Get(portalID)
	if !ok {
		s = r.factory(portalID)
	}
	// Re-adding slides the idle expiry forward.
	r.cache.Add(portalID, s)
	n := r.cache.Len()
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.ActivePortals.Set(float64(n))
	}

	s.Restore(ctx)
	return s
}

// Len returns the number of portal sessions held.
func (r *Registry) Len() int {
	return r.cache.Len()
}

// Close closes every held Store.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Purge()
}

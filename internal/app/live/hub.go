package live

import (
	"sync"

	"github.com/rs/zerolog"

	"sims/internal/pkg/logx"
	"sims/internal/pkg/metrics"
)

// Hub tracks the connected watchers so they can be counted and stopped on shutdown.
type Hub struct {
	mu       sync.Mutex
	watchers map[*Watcher]struct{}
	closed   bool

	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewHub returns an empty Hub. m may be nil.
func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		watchers: make(map[*Watcher]struct{}),
		metrics:  m,
		logger:   logx.Component("live"),
	}
}

// add registers w. It fails once the hub is shut down.
func (h *Hub) add(w *Watcher) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	h.watchers[w] = struct{}{}
	h.metrics.SetLiveClients(len(h.watchers))
	return true
}

func (h *Hub) remove(w *Watcher) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.watchers[w]; ok {
		delete(h.watchers, w)
		h.metrics.SetLiveClients(len(h.watchers))
	}
}

// Len returns the number of connected watchers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watchers)
}

// Shutdown stops every watcher and refuses new ones.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.closed = true
	watchers := make([]*Watcher, 0, len(h.watchers))
	for w := range h.watchers {
		watchers = append(watchers, w)
	}
	h.mu.Unlock()

	for _, w := range watchers {
		w.Stop()
	}
	h.logger.Info().Int("watchers", len(watchers)).Msg("Live hub shut down.")
}

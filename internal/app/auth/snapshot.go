package auth

import (
	"context"
	"encoding/json"
	"errors"
	"slices"

	"sims/internal/app/backend"
	"sims/internal/app/kv"
	"sims/internal/app/user"
)

// StorageKeyPrefix namespaces the persisted snapshot per portal.
const StorageKeyPrefix = "sims-auth-storage:"

// Snapshot is a point-in-time copy of a Store.
type Snapshot struct {
	User          *user.User       `json:"user"`
	Session       *backend.Session `json:"-"`
	Profile       *user.Profile    `json:"profile"`
	Roles         []user.Role      `json:"roles"`
	IsLoading     bool             `json:"is_loading"`
	IsInitialized bool             `json:"is_initialized"`

	// Refreshing is set while a detached profile and role refetch is in flight.
	Refreshing bool `json:"refreshing"`
}

// HasRole reports whether the snapshot's roles include r.
func (s Snapshot) HasRole(r user.Role) bool {
	return slices.Contains(s.Roles, r)
}

// Settled reports whether guards may act on the snapshot.
func (s Snapshot) Settled() bool {
	return s.IsInitialized && !s.IsLoading
}

// persisted is the durable subset of the state. The session never leaves the process
// through it; the backend client stores its own session under a separate key.
type persisted struct {
	User    *user.User    `json:"user"`
	Profile *user.Profile `json:"profile"`
	Roles   []user.Role   `json:"roles"`
}

// Restore loads the persisted subset written by an earlier process. It runs at most once
// and only takes effect before Initialize has settled anything.
func (s *Store) Restore(ctx context.Context) {
	s.restoreOnce.Do(func() {
		raw, err := s.persist.Get(ctx, s.key)
		if errors.Is(err, kv.ErrNotFound) {
			return
		}
		if err != nil {
			s.logger.Warn().Err(err).Msg("Failed to read persisted auth state")
			return
		}

		var p persisted
		if err := json.Unmarshal(raw, &p); err != nil {
			s.logger.Warn().Err(err).Msg("Discarding unreadable persisted auth state")
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.initialized || s.generation > 0 || s.user != nil || p.User == nil {
			return
		}
		s.user = p.User
		s.profile = p.Profile
		s.roles = user.NormalizeRoles(p.Roles)
		s.notifyLocked()
	})
}

// save writes the current persisted subset. persistMu orders concurrent saves so the
// last writer always stores the latest state.
func (s *Store) save(ctx context.Context) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	p := persisted{User: s.user, Profile: s.profile, Roles: slices.Clone(s.roles)}
	raw, err := json.Marshal(p)
	s.mu.Unlock()
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode auth state")
		return
	}

	if err := s.persist.Set(context.WithoutCancel(ctx), s.key, raw, backend.SessionStorageTTL); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to persist auth state")
	}
}

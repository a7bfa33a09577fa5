/*
Package auth is the portal's source of truth for "who is signed in and what may they do".

Every portal session (one browser) owns a Store. The Store follows the backend session
through its change events, caches the matching profile and role rows, and exposes the
loading and initialization flags the route guard waits on. All state lives behind one
mutex; readers take copies through Snapshot or block on WaitFor.
*/
package auth

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"sims/internal/app/backend"
	"sims/internal/app/db"
	"sims/internal/app/kv"
	"sims/internal/app/user"
	"sims/internal/pkg/logx"
	"sims/internal/pkg/metrics"
)

// Role fetch fallback policies.
const (
	FallbackStudent  = "student"
	FallbackPreserve = "preserve"
)

// Directory reads the profile and role rows of a user.
type Directory interface {
	GetProfile(ctx context.Context, userID string) (*user.Profile, error)
	ListRoles(ctx context.Context, userID string) ([]user.Role, error)
}

// Options tunes a Store.
type Options struct {
	PortalID string

	// Timeout bounds every backend and table call.
	Timeout time.Duration

	// RoleFallback is FallbackStudent (default) or FallbackPreserve.
	RoleFallback string

	Metrics *metrics.Metrics
}

// Store holds the auth state of one portal session. It is safe for concurrent use.
type Store struct {
	backend  backend.Auth
	dir      Directory
	persist  kv.Store
	key      string
	timeout  time.Duration
	fallback string
	metrics  *metrics.Metrics
	logger   zerolog.Logger

	mu          sync.Mutex
	user        *user.User
	session     *backend.Session
	profile     *user.Profile
	roles       []user.Role
	pending     int
	initialized bool
	generation  uint64
	refreshing  int
	selfFetch   int
	changed     chan struct{}
	unsubscribe func()
	closed      bool

	initOnce    sync.Once
	initDone    chan struct{}
	restoreOnce sync.Once
	persistMu   sync.Mutex
}

// NewStore creates a Store in its loading, uninitialized state.
func NewStore(auth backend.Auth, dir Directory, persist kv.Store, opts Options) *Store {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RoleFallback == "" {
		opts.RoleFallback = FallbackStudent
	}

	return &Store{
		backend:  auth,
		dir:      dir,
		persist:  persist,
		key:      StorageKeyPrefix + opts.PortalID,
		timeout:  opts.Timeout,
		fallback: opts.RoleFallback,
		metrics:  opts.Metrics,
		logger:   logx.Component("auth").With().Str("portal_id", opts.PortalID).Logger(),
		pending:  1,
		changed:  make(chan struct{}),
		initDone: make(chan struct{}),
	}
}

// Initialize subscribes to session changes and recovers an existing session, once per
// Store. Concurrent and repeated calls share the first run. It returns when that run has
// finished or ctx is done; the run itself is not cancelled by ctx.
func (s *Store) Initialize(ctx context.Context) error {
	s.initOnce.Do(func() {
		go s.runInitialize(context.WithoutCancel(ctx))
	})

	select {
	case <-s.initDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) runInitialize(ctx context.Context) {
	defer func() {
		s.mu.Lock()
		s.pending--
		s.initialized = true
		s.notifyLocked()
		s.mu.Unlock()

		s.save(ctx)
		close(s.initDone)
	}()

	unsubscribe := s.backend.OnSessionChange(s.handleSessionChange)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		unsubscribe()
		return
	}
	s.unsubscribe = unsubscribe
	gen := s.generation
	s.selfFetch++
	s.mu.Unlock()
	defer s.endSelfFetch()

	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	session, err := s.backend.GetSession(opCtx)
	cancel()
	s.metrics.ObserveAuth("recover", err)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Session recovery failed, continuing signed out")
		session = nil
	}

	s.mu.Lock()
	// A session event during recovery (a refreshed token) has already installed the
	// session; the profile and roles are still loaded below.
	if s.generation == gen {
		if session == nil {
			s.clearLocked()
		} else {
			s.adoptLocked(session)
		}
		s.notifyLocked()
	}
	s.mu.Unlock()

	s.loadCurrent(ctx)
}

// loadCurrent fetches the profile and roles of the current user, again if the user
// changed while they were loading. Session events that arrive meanwhile skip their own
// refetch, so this must run before selfFetch is released.
func (s *Store) loadCurrent(ctx context.Context) {
	userID := s.currentUserID()
	for userID != "" {
		s.FetchProfile(ctx)
		s.FetchRoles(ctx)

		next := s.currentUserID()
		if next == userID {
			return
		}
		userID = next
	}
}

// handleSessionChange runs synchronously on the backend's emitting goroutine.
// Profile and role refetches are detached and discarded if another change arrives first.
// Events raised by an in-flight SignIn or session recovery skip the refetch; that caller
// loads the profile and roles itself before it returns.
func (s *Store) handleSessionChange(event backend.Event, session *backend.Session) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.generation++
	gen := s.generation
	refetch := false
	if session == nil {
		s.clearLocked()
	} else {
		s.adoptLocked(session)
		if s.selfFetch == 0 {
			refetch = true
			s.refreshing++
		}
	}
	s.notifyLocked()
	s.mu.Unlock()

	s.logger.Debug().Str("event", string(event)).Uint64("generation", gen).Bool("refetch", refetch).Msg("Session changed")

	go func() {
		ctx := context.Background()
		s.save(ctx)
		if refetch {
			s.refetch(ctx, gen, session.User.ID)
		}
	}()
}

func (s *Store) endSelfFetch() {
	s.mu.Lock()
	s.selfFetch--
	s.mu.Unlock()
}

func (s *Store) refetch(ctx context.Context, gen uint64, userID string) {
	defer func() {
		s.mu.Lock()
		s.refreshing--
		s.notifyLocked()
		s.mu.Unlock()
	}()

	profile, perr := s.loadProfile(ctx, userID)
	roles, rerr := s.loadRoles(ctx, userID)

	s.mu.Lock()
	if s.generation != gen || s.closed {
		s.mu.Unlock()
		s.logger.Debug().Uint64("generation", gen).Msg("Discarding stale profile and roles")
		return
	}
	s.applyProfileLocked(profile, perr)
	s.applyRolesLocked(roles, rerr)
	s.notifyLocked()
	s.mu.Unlock()

	s.save(ctx)
}

// SignIn checks the credentials with the backend and loads the profile and roles of the
// signed-in user. A refused sign-in is returned as an error carrying the reason.
func (s *Store) SignIn(ctx context.Context, email, password string) error {
	s.beginLoading()
	defer s.endLoading()

	s.mu.Lock()
	s.selfFetch++
	s.mu.Unlock()
	defer s.endSelfFetch()

	ctx = context.WithoutCancel(ctx)
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	session, err := s.backend.SignInWithPassword(opCtx, email, password)
	cancel()
	s.metrics.ObserveAuth("sign_in", err)
	if err != nil {
		s.logger.Info().Err(err).Msg("Sign-in refused")
		return err
	}

	s.mu.Lock()
	s.generation++
	s.adoptLocked(session)
	s.notifyLocked()
	s.mu.Unlock()

	s.loadCurrent(ctx)
	return nil
}

// SignUp creates an account with fullName metadata. It does not sign in.
func (s *Store) SignUp(ctx context.Context, email, password, fullName string) error {
	s.beginLoading()
	defer s.endLoading()

	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	err := s.backend.SignUp(opCtx, email, password, fullName)
	s.metrics.ObserveAuth("sign_up", err)
	if err != nil {
		s.logger.Info().Err(err).Msg("Sign-up refused")
	}
	return err
}

// SignOut asks the backend to end the session, then clears the user, session, profile and
// roles whatever the backend answered. The returned error is informational only.
func (s *Store) SignOut(ctx context.Context) error {
	s.beginLoading()

	ctx = context.WithoutCancel(ctx)
	defer func() {
		s.mu.Lock()
		s.generation++
		s.clearLocked()
		s.pending--
		s.notifyLocked()
		s.mu.Unlock()

		s.save(ctx)
	}()

	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.backend.SignOut(opCtx)
	s.metrics.ObserveAuth("sign_out", err)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Backend sign-out failed, clearing local state anyway")
	}
	return err
}

// FetchProfile reloads the profile of the current user. Without a user it does nothing.
// A failed lookup is logged and the cached profile kept.
func (s *Store) FetchProfile(ctx context.Context) {
	userID := s.currentUserID()
	if userID == "" {
		return
	}

	profile, err := s.loadProfile(context.WithoutCancel(ctx), userID)

	s.mu.Lock()
	if s.currentUserIDLocked() != userID {
		s.mu.Unlock()
		return
	}
	s.applyProfileLocked(profile, err)
	s.notifyLocked()
	s.mu.Unlock()

	s.save(ctx)
}

// FetchRoles reloads the roles of the current user. Without a user it does nothing.
// A failed lookup applies the fallback policy.
func (s *Store) FetchRoles(ctx context.Context) {
	userID := s.currentUserID()
	if userID == "" {
		return
	}

	roles, err := s.loadRoles(context.WithoutCancel(ctx), userID)

	s.mu.Lock()
	if s.currentUserIDLocked() != userID {
		s.mu.Unlock()
		return
	}
	s.applyRolesLocked(roles, err)
	s.notifyLocked()
	s.mu.Unlock()

	s.save(ctx)
}

func (s *Store) loadProfile(ctx context.Context, userID string) (*user.Profile, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	profile, err := s.dir.GetProfile(opCtx, userID)
	s.metrics.ObserveAuth("fetch_profile", err)
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}
	return profile, err
}

func (s *Store) loadRoles(ctx context.Context, userID string) ([]user.Role, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	roles, err := s.dir.ListRoles(opCtx, userID)
	s.metrics.ObserveAuth("fetch_roles", err)
	return roles, err
}

func (s *Store) applyProfileLocked(profile *user.Profile, err error) {
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to fetch profile, keeping cached value")
		return
	}
	s.profile = profile
}

func (s *Store) applyRolesLocked(roles []user.Role, err error) {
	if err == nil {
		s.roles = user.NormalizeRoles(roles)
		return
	}

	switch s.fallback {
	case FallbackPreserve:
		s.logger.Warn().Err(err).Interface("roles", s.roles).Msg("Failed to fetch roles, keeping previous roles")
	default:
		s.logger.Warn().Err(err).Msg("Failed to fetch roles, falling back to student")
		s.roles = []user.Role{user.RoleStudent}
	}
}

// adoptLocked installs session. Profile and roles are dropped when the user changes.
func (s *Store) adoptLocked(session *backend.Session) {
	if s.currentUserIDLocked() != session.User.ID {
		s.profile = nil
		s.roles = nil
	}
	u := session.User
	s.user = &u
	s.session = session
}

func (s *Store) clearLocked() {
	s.user = nil
	s.session = nil
	s.profile = nil
	s.roles = nil
}

func (s *Store) beginLoading() {
	s.mu.Lock()
	s.pending++
	s.notifyLocked()
	s.mu.Unlock()
}

func (s *Store) endLoading() {
	s.mu.Lock()
	s.pending--
	s.notifyLocked()
	s.mu.Unlock()
}

// notifyLocked wakes every waiter on the current change channel.
func (s *Store) notifyLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

func (s *Store) currentUserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentUserIDLocked()
}

func (s *Store) currentUserIDLocked() string {
	if s.user == nil {
		return ""
	}
	return s.user.ID
}

// HasRole reports whether the current roles include r.
func (s *Store) HasRole(r user.Role) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Contains(s.roles, r)
}

// HasAnyRole reports whether the current roles include any of want.
func (s *Store) HasAnyRole(want ...user.Role) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return user.Intersects(s.roles, want)
}

func (s *Store) IsAdmin() bool   { return s.HasRole(user.RoleAdmin) }
func (s *Store) IsFaculty() bool { return s.HasRole(user.RoleFaculty) }
func (s *Store) IsStudent() bool { return s.HasRole(user.RoleStudent) }

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Roles:         slices.Clone(s.roles),
		IsLoading:     s.pending > 0,
		IsInitialized: s.initialized,
		Refreshing:    s.refreshing > 0,
	}
	if snap.Roles == nil {
		snap.Roles = []user.Role{}
	}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	if s.session != nil {
		sess := *s.session
		snap.Session = &sess
	}
	if s.profile != nil {
		p := *s.profile
		snap.Profile = &p
	}
	return snap
}

// Changed returns a channel closed at the next state change.
func (s *Store) Changed() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changed
}

// Watch returns the current snapshot and the channel that is closed on the next change.
func (s *Store) Watch() (Snapshot, <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(), s.changed
}

// Closed reports whether Close has been called.
func (s *Store) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// WaitFor blocks until pred holds for a snapshot or ctx is done. It returns the last
// snapshot it evaluated.
func (s *Store) WaitFor(ctx context.Context, pred func(Snapshot) bool) (Snapshot, error) {
	for {
		snap, ch := s.Watch()
		if pred(snap) {
			return snap, nil
		}

		select {
		case <-ch:
		case <-ctx.Done():
			return snap, ctx.Err()
		}
	}
}

// Close detaches the Store from the backend and stops pending refetches from applying.
// The persisted snapshot and stored backend session are kept.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.notifyLocked()
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if c, ok := s.backend.(interface{ Close() }); ok {
		c.Close()
	}
}

package auth

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sims/internal/app/backend"
	"sims/internal/app/db"
	"sims/internal/app/kv"
	"sims/internal/app/user"
	"sims/internal/pkg/logx"
)

type fakeBackend struct {
	mu        sync.Mutex
	session   *backend.Session
	passwords map[string]string
	listeners map[int]backend.Listener
	nextID    int

	getSessionErr error
	signOutErr    error
	signInHang    bool
	recoverGate   chan struct{}

	// refreshOnRecover makes GetSession rotate the stored token and emit
	// EventTokenRefreshed before returning, as the real client does for an expiring session.
	refreshOnRecover bool

	subscribeCalls  atomic.Int32
	getSessionCalls atomic.Int32
	signUpCalls     atomic.Int32
	lastFullName    atomic.Value
	closed          atomic.Bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{passwords: map[string]string{}, listeners: map[int]backend.Listener{}}
}

func sessionFor(email string) *backend.Session {
	return &backend.Session{
		AccessToken:  "at-" + email,
		RefreshToken: "rt-" + email,
		ExpiresAt:    time.Now().Add(time.Hour),
		User:         user.User{ID: "uid-" + email, Email: email},
	}
}

func (f *fakeBackend) GetSession(ctx context.Context) (*backend.Session, error) {
	f.getSessionCalls.Add(1)
	if f.recoverGate != nil {
		select {
		case <-f.recoverGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	if f.getSessionErr != nil {
		f.mu.Unlock()
		return nil, f.getSessionErr
	}
	s, refresh := f.session, f.refreshOnRecover
	f.mu.Unlock()

	if refresh && s != nil {
		rotated := *s
		rotated.AccessToken += "-refreshed"
		rotated.ExpiresAt = time.Now().Add(time.Hour)
		f.emit(backend.EventTokenRefreshed, &rotated)
		return &rotated, nil
	}
	return s, nil
}

func (f *fakeBackend) OnSessionChange(l backend.Listener) func() {
	f.subscribeCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.listeners[id] = l
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.listeners, id)
	}
}

func (f *fakeBackend) emit(event backend.Event, s *backend.Session) {
	f.mu.Lock()
	f.session = s
	listeners := make([]backend.Listener, 0, len(f.listeners))
	for _, l := range f.listeners {
		listeners = append(listeners, l)
	}
	f.mu.Unlock()

	for _, l := range listeners {
		l(event, s)
	}
}

func (f *fakeBackend) SignInWithPassword(ctx context.Context, email, password string) (*backend.Session, error) {
	if f.signInHang {
		<-ctx.Done()
		return nil, backend.ErrTimeout
	}
	f.mu.Lock()
	want, ok := f.passwords[email]
	f.mu.Unlock()
	if !ok || want != password {
		return nil, &backend.AuthError{Status: 400, Code: "invalid_grant", Message: "Invalid login credentials"}
	}
	s := sessionFor(email)
	f.emit(backend.EventSignedIn, s)
	return s, nil
}

func (f *fakeBackend) SignUp(_ context.Context, email, password, fullName string) error {
	f.signUpCalls.Add(1)
	f.lastFullName.Store(fullName)
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.passwords[email]; exists {
		return &backend.AuthError{Status: 422, Code: "user_already_exists", Message: "User already registered"}
	}
	f.passwords[email] = password
	return nil
}

func (f *fakeBackend) SignOut(_ context.Context) error {
	f.emit(backend.EventSignedOut, nil)
	return f.signOutErr
}

func (f *fakeBackend) Close() { f.closed.Store(true) }

type fakeDirectory struct {
	mu         sync.Mutex
	profiles   map[string]*user.Profile
	roles      map[string][]user.Role
	profileErr error
	rolesErr   error
	gates      map[string]chan struct{}

	profileCalls atomic.Int32
	rolesCalls   atomic.Int32
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		profiles: map[string]*user.Profile{},
		roles:    map[string][]user.Role{},
		gates:    map[string]chan struct{}{},
	}
}

func (d *fakeDirectory) set(email, fullName string, roles ...user.Role) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := "uid-" + email
	d.profiles[id] = &user.Profile{ID: id, FullName: fullName, Email: email}
	d.roles[id] = roles
}

func (d *fakeDirectory) failRoles(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rolesErr = err
}

func (d *fakeDirectory) failProfile(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.profileErr = err
}

func (d *fakeDirectory) gate(userID string) chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch := make(chan struct{})
	d.gates[userID] = ch
	return ch
}

func (d *fakeDirectory) GetProfile(_ context.Context, userID string) (*user.Profile, error) {
	d.profileCalls.Add(1)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.profileErr != nil {
		return nil, d.profileErr
	}
	p, ok := d.profiles[userID]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (d *fakeDirectory) ListRoles(ctx context.Context, userID string) ([]user.Role, error) {
	d.rolesCalls.Add(1)
	d.mu.Lock()
	gate := d.gates[userID]
	d.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.rolesErr != nil {
		return nil, d.rolesErr
	}
	return append([]user.Role(nil), d.roles[userID]...), nil
}

var errTable = errors.New("relation unavailable")

type harness struct {
	backend *fakeBackend
	dir     *fakeDirectory
	kv      *kv.MemoryStore
	store   *Store
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	logx.InitTestLogger(io.Discard)

	h := &harness{backend: newFakeBackend(), dir: newFakeDirectory(), kv: kv.NewMemoryStore()}
	if opts.PortalID == "" {
		opts.PortalID = "portal-1"
	}
	if opts.Timeout == 0 {
		opts.Timeout = time.Second
	}
	h.store = NewStore(h.backend, h.dir, h.kv, opts)
	t.Cleanup(h.store.Close)
	return h
}

func (h *harness) initialize(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.store.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
}

// settle waits until no detached refetch is in flight.
func (h *harness) settle(t *testing.T) Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	snap, err := h.store.WaitFor(ctx, func(s Snapshot) bool { return s.Settled() && !s.Refreshing })
	if err != nil {
		t.Fatalf("store did not settle: %v", err)
	}
	return snap
}

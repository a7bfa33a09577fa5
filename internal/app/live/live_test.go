package live

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sims/internal/app/auth"
	"sims/internal/app/user"
	"sims/internal/pkg/logx"
	"sims/internal/pkg/metrics"
)

type fakeSource struct {
	mu      sync.Mutex
	snap    auth.Snapshot
	changed chan struct{}
	closed  bool
}

func newFakeSource(snap auth.Snapshot) *fakeSource {
	return &fakeSource{snap: snap, changed: make(chan struct{})}
}

func (f *fakeSource) Watch() (auth.Snapshot, <-chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap, f.changed
}

func (f *fakeSource) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeSource) set(fn func(*auth.Snapshot)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(&f.snap)
	close(f.changed)
	f.changed = make(chan struct{})
}

func (f *fakeSource) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	close(f.changed)
	f.changed = make(chan struct{})
}

var upgrader = websocket.Upgrader{}

func startServer(t *testing.T, hub *Hub, src Source, req auth.Requirement, path string) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		NewWatcher(hub, src, conn, req, path, "portal-1").Serve()
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

var adminOnly = auth.Requirement{Roles: []user.Role{user.RoleAdmin}}

func TestWatcherPushesDecisionChanges(t *testing.T) {
	logx.InitTestLogger(io.Discard)
	src := newFakeSource(auth.Snapshot{})
	hub := NewHub(metrics.New())

	conn := startServer(t, hub, src, adminOnly, "/admin")

	msg := readMessage(t, conn)
	assert.Equal(t, TypeDecision, msg.Type)
	assert.Equal(t, auth.KindLoading, msg.Decision.Kind)
	assert.Equal(t, "/admin", msg.Path)

	src.set(func(s *auth.Snapshot) {
		s.IsInitialized = true
		s.User = &user.User{ID: "uid-1", Email: "staff@sims.test"}
		s.Roles = []user.Role{user.RoleStudent}
	})
	msg = readMessage(t, conn)
	assert.Equal(t, auth.KindRedirectRole, msg.Decision.Kind)
	assert.Equal(t, "/student", msg.Decision.Location)
	assert.True(t, msg.SignedIn)

	src.set(func(s *auth.Snapshot) { s.Roles = []user.Role{user.RoleAdmin, user.RoleStudent} })
	msg = readMessage(t, conn)
	assert.Equal(t, auth.KindAllow, msg.Decision.Kind)
	assert.Equal(t, []user.Role{user.RoleAdmin, user.RoleStudent}, msg.Roles)

	assert.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 10*time.Millisecond)
}

func TestWatcherSkipsUnchangedDecisions(t *testing.T) {
	logx.InitTestLogger(io.Discard)
	src := newFakeSource(auth.Snapshot{IsInitialized: true})
	hub := NewHub(nil)

	conn := startServer(t, hub, src, adminOnly, "/admin")

	msg := readMessage(t, conn)
	assert.Equal(t, auth.KindRedirectAuth, msg.Decision.Kind)
	assert.Equal(t, "/auth?from=%2Fadmin", msg.Decision.Location)

	// A change that keeps the visitor signed out produces no message.
	src.set(func(s *auth.Snapshot) { s.Roles = nil })
	src.set(func(s *auth.Snapshot) {
		s.User = &user.User{ID: "uid-2"}
		s.Roles = []user.Role{user.RoleAdmin}
	})

	msg = readMessage(t, conn)
	assert.Equal(t, auth.KindAllow, msg.Decision.Kind)
}

func TestWatcherClosesWhenSessionEnds(t *testing.T) {
	logx.InitTestLogger(io.Discard)
	src := newFakeSource(auth.Snapshot{IsInitialized: true})
	hub := NewHub(nil)

	conn := startServer(t, hub, src, adminOnly, "/admin")
	readMessage(t, conn)

	src.close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), err.Error())
	assert.Eventually(t, func() bool { return hub.Len() == 0 }, time.Second, 10*time.Millisecond)
}

func TestHubShutdownStopsWatchers(t *testing.T) {
	logx.InitTestLogger(io.Discard)
	src := newFakeSource(auth.Snapshot{IsInitialized: true})
	hub := NewHub(nil)

	conn := startServer(t, hub, src, adminOnly, "/admin")
	readMessage(t, conn)
	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 10*time.Millisecond)

	hub.Shutdown()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway))

	second := startServer(t, hub, src, adminOnly, "/admin")
	require.NoError(t, second.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = second.ReadMessage()
	assert.Error(t, err)
}

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"sims/internal/app/kv"
	"sims/internal/pkg/logx"
)

const (
	// SessionKeyPrefix namespaces the stored backend session per portal.
	SessionKeyPrefix = "sims-auth-token:"

	// SessionStorageTTL bounds how long an idle stored session is kept.
	SessionStorageTTL = 30 * 24 * time.Hour

	// RefreshMargin is how long before expiry the timer refreshes the access token.
	RefreshMargin = 60 * time.Second

	// ExpiryLeeway is how close to expiry GetSession treats a token as already expired.
	ExpiryLeeway = 10 * time.Second

	// RefreshRetryDelay is the wait before retrying a refresh that failed on the network.
	RefreshRetryDelay = 10 * time.Second
)

// ServiceConfig configures the shared HTTP client.
type ServiceConfig struct {
	BaseURL string
	AnonKey string
	SiteURL string
	Timeout time.Duration
}

// Service holds what all portal Clients share: the HTTP client and the kv store.
type Service struct {
	http    *resty.Client
	store   kv.Store
	siteURL string
	timeout time.Duration
}

// NewService creates the shared resty client used by every portal Client.
func NewService(cfg ServiceConfig, store kv.Store) *Service {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("apikey", cfg.AnonKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetRetryCount(2).
		SetRetryWaitTime(100 * time.Millisecond).
		SetRetryMaxWaitTime(time.Second)

	client.AddRetryCondition(retryCondition)

	return &Service{
		http:    client,
		store:   store,
		siteURL: cfg.SiteURL,
		timeout: cfg.Timeout,
	}
}

// retryCondition retries idempotent reads on network errors and 5xx answers.
// Token grants and sign-up are never replayed.
func retryCondition(r *resty.Response, err error) bool {
	if r == nil || r.Request == nil || r.Request.Method != http.MethodGet {
		return false
	}
	if r.Request.Context().Err() != nil {
		return false
	}
	if err != nil {
		return true
	}
	return r.StatusCode() >= 500
}

// Client returns a new Client bound to portalID.
func (s *Service) Client(portalID string) *Client {
	logger := logx.Component("backend").With().Str("portal_id", portalID).Logger()
	return &Client{
		svc:       s,
		key:       SessionKeyPrefix + portalID,
		logger:    logger,
		listeners: make(map[int]Listener),
		now:       time.Now,
	}
}

// Client is the backend session of one portal. It is safe for concurrent use.
type Client struct {
	svc    *Service
	key    string
	logger zerolog.Logger

	mu         sync.Mutex
	session    *Session
	loaded     bool
	unverified bool
	timer      *time.Timer
	closed     bool
	listeners  map[int]Listener
	nextID     int
	now        func() time.Time

	// emitMu orders state changes with their events; refreshMu serializes refreshes.
	emitMu    sync.Mutex
	refreshMu sync.Mutex
}

// OnSessionChange registers l and returns a function that removes it.
func (c *Client) OnSessionChange(l Listener) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	c.listeners[id] = l

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// GetSession returns the current session, recovering it from the kv store on first use.
// An expiring session is refreshed; a session the backend no longer accepts is dropped
// and nil is returned.
func (c *Client) GetSession(ctx context.Context) (*Session, error) {
	if err := c.load(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	s := c.session.clone()
	verify := c.unverified
	c.unverified = false
	c.mu.Unlock()

	if s == nil {
		return nil, nil
	}

	if s.ExpiresWithin(c.now(), ExpiryLeeway) {
		return c.refresh(ctx, s)
	}

	if verify {
		u, err := c.getUser(ctx, s.AccessToken)
		switch {
		case err == nil:
			s.User = u.toUser()
		case isUnauthorized(err):
			return c.refresh(ctx, s)
		default:
			c.logger.Warn().Err(err).Msg("Could not verify stored session, keeping it")
		}
	}

	return s, nil
}

// load reads the stored session once per Client.
func (c *Client) load(ctx context.Context) error {
	c.mu.Lock()
	loaded := c.loaded
	c.mu.Unlock()
	if loaded {
		return nil
	}

	var stored *Session
	raw, err := c.svc.store.Get(ctx, c.key)
	switch {
	case errors.Is(err, kv.ErrNotFound):
	case err != nil:
		return fmt.Errorf("failed to load stored session: %w", err)
	default:
		stored = &Session{}
		if err := json.Unmarshal(raw, stored); err != nil {
			c.logger.Warn().Err(err).Msg("Discarding unreadable stored session")
			stored = nil
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return nil
	}
	c.loaded = true
	if stored != nil && !c.closed {
		c.session = stored
		c.unverified = true
		c.scheduleLocked(stored)
	}
	return nil
}

// SignInWithPassword exchanges credentials for a session and emits EventSignedIn.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	var tr tokenResponse
	err := c.post(ctx, "/auth/v1/token", map[string]string{"grant_type": "password"}, "",
		map[string]string{"email": email, "password": password}, &tr)
	if err != nil {
		return nil, err
	}

	s := tr.toSession(c.now())
	if err := c.adopt(ctx, s, EventSignedIn); err != nil {
		return nil, err
	}
	return s.clone(), nil
}

// SignUp creates an account carrying full_name metadata. It never adopts a session,
// even when the backend confirms the account immediately.
func (c *Client) SignUp(ctx context.Context, email, password, fullName string) error {
	body := map[string]any{
		"email":    email,
		"password": password,
		"data":     map[string]string{"full_name": fullName},
	}
	query := map[string]string{}
	if c.svc.siteURL != "" {
		query["redirect_to"] = c.svc.siteURL + "/"
	}
	return c.post(ctx, "/auth/v1/signup", query, "", body, nil)
}

// SignOut revokes the session on the backend when possible. The local session is
// dropped and EventSignedOut emitted whatever the backend answers.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	s := c.session.clone()
	c.mu.Unlock()

	var err error
	if s != nil {
		err = c.post(ctx, "/auth/v1/logout", nil, s.AccessToken, nil, nil)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Backend sign-out failed, dropping local session anyway")
		}
	}

	c.drop(context.WithoutCancel(ctx))
	return err
}

// Close stops the refresh timer and detaches all listeners. The stored session is kept.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	clear(c.listeners)
}

// refresh trades s.RefreshToken for a new session. A rejected refresh signs out.
func (c *Client) refresh(ctx context.Context, s *Session) (*Session, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	c.mu.Lock()
	current := c.session.clone()
	c.mu.Unlock()

	if current == nil {
		return nil, nil
	}
	if current.RefreshToken != s.RefreshToken {
		return current, nil
	}

	var tr tokenResponse
	err := c.post(ctx, "/auth/v1/token", map[string]string{"grant_type": "refresh_token"}, "",
		map[string]string{"refresh_token": s.RefreshToken}, &tr)
	if err != nil {
		if IsRejected(err) {
			c.logger.Info().Err(err).Msg("Refresh token rejected, signing out")
			c.drop(context.WithoutCancel(ctx))
			return nil, nil
		}
		return nil, err
	}

	next := tr.toSession(c.now())
	if err := c.adopt(ctx, next, EventTokenRefreshed); err != nil {
		return nil, err
	}
	return next.clone(), nil
}

func (c *Client) autoRefresh() {
	c.mu.Lock()
	s := c.session.clone()
	closed := c.closed
	c.mu.Unlock()
	if s == nil || closed {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.svc.timeout)
	defer cancel()

	if _, err := c.refresh(ctx, s); err != nil {
		c.logger.Warn().Err(err).Dur("retry_in", RefreshRetryDelay).Msg("Session refresh failed")

		c.mu.Lock()
		defer c.mu.Unlock()
		if !c.closed && c.session != nil && c.session.RefreshToken == s.RefreshToken {
			c.stopTimerLocked()
			c.timer = time.AfterFunc(RefreshRetryDelay, c.autoRefresh)
		}
	}
}

// adopt installs s, stores it and emits event, all in emission order.
func (c *Client) adopt(ctx context.Context, s *Session, event Event) error {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.session = s
	c.loaded = true
	c.unverified = false
	c.scheduleLocked(s)
	c.mu.Unlock()

	if raw, err := json.Marshal(s); err == nil {
		if err := c.svc.store.Set(context.WithoutCancel(ctx), c.key, raw, SessionStorageTTL); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to store session")
		}
	}

	c.emitLocked(event, s)
	return nil
}

// drop forgets the session and emits EventSignedOut if there was one.
func (c *Client) drop(ctx context.Context) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	had := c.session != nil
	c.session = nil
	c.loaded = true
	c.unverified = false
	c.stopTimerLocked()
	c.mu.Unlock()

	if err := c.svc.store.Delete(ctx, c.key); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to delete stored session")
	}

	if had {
		c.emitLocked(EventSignedOut, nil)
	}
}

// emitLocked calls every listener. The caller holds emitMu.
func (c *Client) emitLocked(event Event, s *Session) {
	c.mu.Lock()
	listeners := make([]Listener, 0, len(c.listeners))
	for id := 0; id < c.nextID; id++ {
		if l, ok := c.listeners[id]; ok {
			listeners = append(listeners, l)
		}
	}
	c.mu.Unlock()

	for _, l := range listeners {
		l(event, s.clone())
	}
}

func (c *Client) scheduleLocked(s *Session) {
	c.stopTimerLocked()

	// Short-lived tokens are refreshed at half their remaining lifetime.
	remaining := s.ExpiresAt.Sub(c.now())
	d := max(remaining-RefreshMargin, remaining/2, 0)
	c.timer = time.AfterFunc(d, c.autoRefresh)
}

func (c *Client) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Client) getUser(ctx context.Context, accessToken string) (*wireUser, error) {
	var u wireUser
	resp, err := c.svc.http.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetResult(&u).
		Get("/auth/v1/user")
	if err := c.check(ctx, resp, err); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) post(ctx context.Context, path string, query map[string]string, bearer string, body, result any) error {
	r := c.svc.http.R().SetContext(ctx)
	if len(query) > 0 {
		r.SetQueryParams(query)
	}
	if bearer != "" {
		r.SetAuthToken(bearer)
	}
	if body != nil {
		r.SetBody(body)
	}
	if result != nil {
		r.SetResult(result)
	}

	resp, err := r.Post(path)
	return c.check(ctx, resp, err)
}

// check converts transport failures and non-2xx answers into errors.
func (c *Client) check(ctx context.Context, resp *resty.Response, err error) error {
	if err != nil {
		var ne net.Error
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) ||
			(errors.As(err, &ne) && ne.Timeout()) {
			return ErrTimeout
		}
		return fmt.Errorf("auth service request failed: %w", err)
	}
	if resp.IsError() {
		return parseAuthError(resp.StatusCode(), resp.Body())
	}
	return nil
}

func isUnauthorized(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae) && (ae.Status == http.StatusUnauthorized || ae.Status == http.StatusForbidden)
}

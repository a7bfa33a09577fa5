/*
Package backendtest runs an in-process fake of the hosted auth service for tests.

It implements the GoTrue-style endpoints the backend client uses, keeps accounts in
memory and counts calls so tests can assert on traffic.
*/
package backendtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
)

// AnonKey is the apikey the fake server expects.
const AnonKey = "test-anon-key"

type account struct {
	id       string
	email    string
	password string
	fullName string
}

// Server is a fake auth service.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	accounts map[string]*account
	access   map[string]string
	refresh  map[string]string

	// ExpiresIn is the access token lifetime handed out, in seconds.
	ExpiresIn int64
	// FailLogout makes /logout answer 500.
	FailLogout atomic.Bool
	// Delay is applied before every answer.
	Delay atomic.Int64

	SignInCalls  atomic.Int32
	RefreshCalls atomic.Int32
	SignUpCalls  atomic.Int32
	LogoutCalls  atomic.Int32
	UserCalls    atomic.Int32

	lastRedirect atomic.Value
}

// NewServer starts a fake service that is closed when t ends.
func NewServer(t testing.TB) *Server {
	s := &Server{
		accounts:  make(map[string]*account),
		access:    make(map[string]string),
		refresh:   make(map[string]string),
		ExpiresIn: 3600,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/v1/token", s.handleToken)
	mux.HandleFunc("POST /auth/v1/signup", s.handleSignUp)
	mux.HandleFunc("POST /auth/v1/logout", s.handleLogout)
	mux.HandleFunc("GET /auth/v1/user", s.handleUser)

	s.Server = httptest.NewServer(s.withAPIKey(mux))
	t.Cleanup(s.Close)
	return s
}

// AddUser registers an account and returns its id.
func (s *Server) AddUser(email, password, fullName string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := &account{id: uuid.NewString(), email: email, password: password, fullName: fullName}
	s.accounts[email] = a
	return a.id
}

// UserID returns the id of the account registered for email.
func (s *Server) UserID(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a, ok := s.accounts[email]; ok {
		return a.id
	}
	return ""
}

// RevokeAll invalidates every issued access and refresh token.
func (s *Server) RevokeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.access)
	clear(s.refresh)
}

// LastRedirect returns the redirect_to of the last sign-up.
func (s *Server) LastRedirect() string {
	v, _ := s.lastRedirect.Load().(string)
	return v
}

func (s *Server) withAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if d := s.Delay.Load(); d > 0 {
			select {
			case <-time.After(time.Duration(d)):
			case <-r.Context().Done():
				return
			}
		}
		if r.Header.Get("apikey") != AnonKey {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Invalid API key"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email        string `json:"email"`
		Password     string `json:"password"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_request", "error_description": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch r.URL.Query().Get("grant_type") {
	case "password":
		s.SignInCalls.Add(1)
		a, ok := s.accounts[body.Email]
		if !ok || a.password != body.Password {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":             "invalid_grant",
				"error_description": "Invalid login credentials",
			})
			return
		}
		writeJSON(w, http.StatusOK, s.issueLocked(a))

	case "refresh_token":
		s.RefreshCalls.Add(1)
		email, ok := s.refresh[body.RefreshToken]
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":             "invalid_grant",
				"error_description": "Invalid Refresh Token: Refresh Token Not Found",
			})
			return
		}
		delete(s.refresh, body.RefreshToken)
		writeJSON(w, http.StatusOK, s.issueLocked(s.accounts[email]))

	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unsupported_grant_type"})
	}
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	s.SignUpCalls.Add(1)
	s.lastRedirect.Store(r.URL.Query().Get("redirect_to"))

	var body struct {
		Email    string            `json:"email"`
		Password string            `json:"password"`
		Data     map[string]string `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"msg": err.Error()})
		return
	}

	if len(body.Password) < 6 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"code": 422, "error_code": "weak_password", "msg": "Password should be at least 6 characters.",
		})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[body.Email]; exists {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"code": 422, "error_code": "user_already_exists", "msg": "User already registered",
		})
		return
	}

	a := &account{id: uuid.NewString(), email: body.Email, password: body.Password, fullName: body.Data["full_name"]}
	s.accounts[a.email] = a
	writeJSON(w, http.StatusOK, userJSON(a))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.LogoutCalls.Add(1)
	if s.FailLogout.Load() {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"message": "logout unavailable"})
		return
	}

	token := bearer(r)
	s.mu.Lock()
	if email, ok := s.access[token]; ok {
		delete(s.access, token)
		for rt, e := range s.refresh {
			if e == email {
				delete(s.refresh, rt)
			}
		}
	}
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	s.UserCalls.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()

	email, ok := s.access[bearer(r)]
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"code": 401, "error_code": "bad_jwt", "msg": "invalid JWT"})
		return
	}
	writeJSON(w, http.StatusOK, userJSON(s.accounts[email]))
}

func (s *Server) issueLocked(a *account) map[string]any {
	access := "at-" + uuid.NewString()
	refresh := "rt-" + uuid.NewString()
	s.access[access] = a.email
	s.refresh[refresh] = a.email

	return map[string]any{
		"access_token":  access,
		"token_type":    "bearer",
		"expires_in":    s.ExpiresIn,
		"expires_at":    time.Now().Unix() + s.ExpiresIn,
		"refresh_token": refresh,
		"user":          userJSON(a),
	}
}

func userJSON(a *account) map[string]any {
	return map[string]any{
		"id":            a.id,
		"email":         a.email,
		"user_metadata": map[string]any{"full_name": a.fullName},
	}
}

func bearer(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

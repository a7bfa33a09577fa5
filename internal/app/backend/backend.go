/*
Package backend is the portal's client for the hosted auth service.

The service speaks a GoTrue-style REST API (password grant, refresh grant, sign-up,
logout, current user). A Client is bound to one portal session: it owns that browser's
backend session, keeps it in the kv store so it survives a restart, refreshes it before
expiry and notifies listeners of SIGNED_IN, SIGNED_OUT and TOKEN_REFRESHED in the order
they happen.
*/
package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sims/internal/app/user"
)

// Event names a session change.
type Event string

const (
	EventSignedIn       Event = "SIGNED_IN"
	EventSignedOut      Event = "SIGNED_OUT"
	EventTokenRefreshed Event = "TOKEN_REFRESHED"
)

// Listener receives session changes. session is nil after EventSignedOut.
// Listeners run synchronously on the emitting goroutine and must not call back into the Client.
type Listener func(event Event, session *Session)

// Session is the credential bundle issued by the backend.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         user.User `json:"user"`
}

// ExpiresWithin reports whether the access token expires before now+margin.
func (s *Session) ExpiresWithin(now time.Time, margin time.Duration) bool {
	return !s.ExpiresAt.After(now.Add(margin))
}

func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// Auth is the capability set the auth store consumes.
type Auth interface {
	GetSession(ctx context.Context) (*Session, error)
	OnSessionChange(l Listener) (unsubscribe func())
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password, fullName string) error
	SignOut(ctx context.Context) error
}

var (
	// ErrTimeout is returned when the backend does not answer before the deadline.
	ErrTimeout = errors.New("auth service did not respond in time")

	// ErrClosed is returned by a Client after Close.
	ErrClosed = errors.New("auth client closed")
)

// AuthError is a refusal from the backend (bad credentials, duplicate email, ...).
type AuthError struct {
	Status  int
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("auth service: %s (%d %s)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("auth service: %s (%d)", e.Message, e.Status)
}

// Rejected reports whether the backend refused the request itself (4xx),
// as opposed to failing to process it.
func (e *AuthError) Rejected() bool {
	return e.Status >= 400 && e.Status < 500
}

// Reason returns the human-readable failure reason carried by err, if any.
func Reason(err error) string {
	var ae *AuthError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ae):
		return ae.Message
	case errors.Is(err, ErrTimeout):
		return ErrTimeout.Error()
	default:
		return "Auth service unavailable, please try again"
	}
}

// IsRejected reports whether err is a 4xx AuthError.
func IsRejected(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae) && ae.Rejected()
}

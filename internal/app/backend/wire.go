package backend

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"sims/internal/app/user"
)

type wireUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

func (w wireUser) toUser() user.User {
	u := user.User{ID: w.ID, Email: w.Email}
	if name, ok := w.UserMetadata["full_name"].(string); ok {
		u.FullName = name
	}
	return u
}

type tokenResponse struct {
	AccessToken  string   `json:"access_token"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int64    `json:"expires_in"`
	ExpiresAt    int64    `json:"expires_at"`
	RefreshToken string   `json:"refresh_token"`
	User         wireUser `json:"user"`
}

func (t *tokenResponse) toSession(now time.Time) *Session {
	expiresAt := time.Unix(t.ExpiresAt, 0)
	if t.ExpiresAt == 0 {
		expiresAt = now.Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	return &Session{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		ExpiresAt:    expiresAt,
		User:         t.User.toUser(),
	}
}

type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

// parseAuthError builds an AuthError from any of the error shapes the service uses.
func parseAuthError(status int, body []byte) *AuthError {
	ae := &AuthError{Status: status}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		ae.Code = firstNonEmpty(eb.ErrorCode, eb.Error)
		ae.Message = firstNonEmpty(eb.ErrorDescription, eb.Msg, eb.Message)
		if ae.Message == "" && eb.Error != "" {
			ae.Message = eb.Error
		}
	}

	if ae.Message == "" {
		ae.Message = strings.TrimSpace(string(body))
	}
	if ae.Message == "" {
		ae.Message = http.StatusText(status)
	}
	return ae
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

package jwt

import (
	"context"
	"net/http"

	"sims/internal/pkg/logx"
	"sims/internal/pkg/randx"
)

type contextKey string

const (
	// ContextPortalIDKey stores the portal id in the request Context.
	ContextPortalIDKey contextKey = "portal_id"

	// PortalCookieName is the cookie that carries the signed portal token.
	PortalCookieName = "sims_portal"
)

// PortalMiddleware makes sure every request belongs to a portal session.
// A valid cookie is reused; a missing or invalid one is replaced by a fresh portal id.
// It never rejects a request.
func PortalMiddleware(secretKey string, secure bool) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			portalID := ""

			if c, err := r.Cookie(PortalCookieName); err == nil && c.Value != "" {
				payload, err := ParseToken(c.Value, secretKey)
				if err != nil {
					logx.Warn("Invalid portal cookie, issuing a new one", "error", err)
				} else if randx.IsValidPortalID(payload.PortalID) {
					portalID = payload.PortalID
				}
			}

			if portalID == "" {
				portalID = randx.PortalID()
				token, err := GenerateToken(&Payload{PortalID: portalID}, secretKey, PortalCookieExpiration)
				if err != nil {
					logx.Error(err, "Failed to sign portal cookie")
				} else {
					http.SetCookie(w, &http.Cookie{
						Name:     PortalCookieName,
						Value:    token,
						Path:     "/",
						MaxAge:   int(PortalCookieExpiration.Seconds()),
						HttpOnly: true,
						Secure:   secure,
						SameSite: http.SameSiteLaxMode,
					})
				}
			}

			ctx := WithPortalID(r.Context(), portalID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithPortalID returns a copy of ctx carrying portalID.
func WithPortalID(ctx context.Context, portalID string) context.Context {
	return context.WithValue(ctx, ContextPortalIDKey, portalID)
}

// GetPortalIDFromContext returns the portal id set by PortalMiddleware, or "".
func GetPortalIDFromContext(r *http.Request) string {
	id, _ := r.Context().Value(ContextPortalIDKey).(string)
	return id
}

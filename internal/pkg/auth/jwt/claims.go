package jwt

import "github.com/golang-jwt/jwt"

// Payload defines the claims carried by the portal cookie.
// The cookie only names the portal session; identity lives in the session's auth store.
type Payload struct {
	jwt.StandardClaims

	// PortalID selects the server-side portal session (one per browser).
	PortalID string `json:"pid"`
}

package auth

import (
	"net/url"
	"strings"

	"sims/internal/app/user"
)

// DefaultRedirect is where signed-out visitors are sent.
const DefaultRedirect = "/auth"

// Kind is the outcome of a guard decision.
type Kind string

const (
	// KindLoading means the state is not settled; nothing may be decided yet.
	KindLoading Kind = "loading"
	// KindAllow renders the protected content.
	KindAllow Kind = "allow"
	// KindRedirectAuth sends a signed-out visitor to the auth page with the origin recorded.
	KindRedirectAuth Kind = "redirect_auth"
	// KindRedirectRole sends a signed-in user without a required role to their landing dashboard.
	KindRedirectRole Kind = "redirect_role"
	// KindDeny refuses access where a role redirect would point back at the same page.
	KindDeny Kind = "deny"
)

// Requirement describes what a protected route needs.
type Requirement struct {
	// Roles admitted to the route. Empty admits every signed-in user.
	Roles []user.Role

	// RedirectTo is the auth page. Empty means DefaultRedirect.
	RedirectTo string
}

// Decision is what the guard does for one request.
type Decision struct {
	Kind     Kind   `json:"kind"`
	Location string `json:"location,omitempty"`
}

// Decide evaluates snap against req for a request to path. It is pure.
//
// Role redirects go to the highest-priority dashboard the user holds (admin, faculty,
// student) regardless of req.Roles. While a detached role refetch is in flight a role
// redirect is postponed, and a redirect that would land on path itself becomes KindDeny.
func Decide(snap Snapshot, req Requirement, path string) Decision {
	if !snap.Settled() {
		return Decision{Kind: KindLoading}
	}

	if snap.User == nil {
		redirectTo := req.RedirectTo
		if redirectTo == "" {
			redirectTo = DefaultRedirect
		}
		return Decision{Kind: KindRedirectAuth, Location: withFrom(redirectTo, path)}
	}

	if len(req.Roles) == 0 || user.Intersects(snap.Roles, req.Roles) {
		return Decision{Kind: KindAllow}
	}

	if snap.Refreshing {
		return Decision{Kind: KindLoading}
	}

	target := user.LandingPath(snap.Roles)
	if target == path {
		return Decision{Kind: KindDeny}
	}
	return Decision{Kind: KindRedirectRole, Location: target}
}

func withFrom(redirectTo, from string) string {
	if !IsLocalPath(from) {
		return redirectTo
	}
	sep := "?"
	if strings.Contains(redirectTo, "?") {
		sep = "&"
	}
	return redirectTo + sep + "from=" + url.QueryEscape(from)
}

// IsLocalPath reports whether p is a same-origin absolute path safe to redirect to.
func IsLocalPath(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//") && !strings.HasPrefix(p, "/\\")
}

// AfterSignIn picks where a freshly signed-in user goes: the recorded origin when it is a
// local path other than the auth page, else their landing dashboard.
func AfterSignIn(from string, roles []user.Role) string {
	if from != "" && IsLocalPath(from) && !isAuthPage(from) {
		return from
	}
	return user.LandingPath(roles)
}

func isAuthPage(p string) bool {
	return p == DefaultRedirect || strings.HasPrefix(p, DefaultRedirect+"?") || strings.HasPrefix(p, DefaultRedirect+"/")
}

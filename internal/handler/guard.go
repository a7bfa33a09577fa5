package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"sims/internal/app/auth"
	"sims/internal/app/dashboard"
	"sims/internal/app/user"
	"sims/internal/pkg/auth/jwt"
	"sims/internal/pkg/errs"
	"sims/internal/pkg/logx"
	"sims/internal/pkg/resp"
)

// LoadingRetryAfter is the Retry-After sent while a portal session is still settling.
const LoadingRetryAfter = time.Second

// Access requirements of the dashboard areas.
var (
	StudentAccess = auth.Requirement{Roles: []user.Role{user.RoleStudent, user.RoleFaculty, user.RoleAdmin}}
	FacultyAccess = auth.Requirement{Roles: []user.Role{user.RoleFaculty, user.RoleAdmin}}
	AdminAccess   = auth.Requirement{Roles: []user.Role{user.RoleAdmin}}
)

// RequirementFor returns the requirement of the dashboard area path belongs to.
func RequirementFor(path string) (auth.Requirement, bool) {
	switch {
	case underPath(path, "/admin"):
		return AdminAccess, true
	case underPath(path, "/faculty"):
		return FacultyAccess, true
	case underPath(path, "/student"):
		return StudentAccess, true
	}
	return auth.Requirement{}, false
}

func underPath(path, root string) bool {
	return path == root || strings.HasPrefix(path, root+"/")
}

type sessionKey struct{}

type session struct {
	store *auth.Store
	snap  auth.Snapshot
}

// portalStore returns the auth store of the request's portal session.
func portalStore(deps *AppDeps, r *http.Request) *auth.Store {
	return deps.Registry.Get(r.Context(), jwt.GetPortalIDFromContext(r))
}

// currentSession returns the store and snapshot Guard admitted the request with.
func currentSession(r *http.Request) (*auth.Store, auth.Snapshot) {
	s, _ := r.Context().Value(sessionKey{}).(*session)
	if s == nil {
		return nil, auth.Snapshot{}
	}
	return s.store, s.snap
}

// Guard admits requests whose portal session satisfies req.
//
// It waits up to GuardWait for the session to settle. A session still loading after that
// gets 503 with Retry-After; redirects are 303 See Other.
func Guard(deps *AppDeps, req auth.Requirement) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			store := portalStore(deps, r)
			path := r.URL.Path

			ctx, cancel := context.WithTimeout(r.Context(), deps.Config.GuardWait)
			defer cancel()

			if err := store.Initialize(ctx); err != nil {
				logx.Debug("Portal session still initializing", "path", path, "error", err)
			}
			snap, _ := store.WaitFor(ctx, func(s auth.Snapshot) bool {
				return auth.Decide(s, req, path).Kind != auth.KindLoading
			})

			decision := auth.Decide(snap, req, path)
			deps.Metrics.ObserveGuard(string(decision.Kind))

			switch decision.Kind {
			case auth.KindAllow:
				ctx := context.WithValue(r.Context(), sessionKey{}, &session{store: store, snap: snap})
				next.ServeHTTP(w, r.WithContext(ctx))

			case auth.KindRedirectAuth, auth.KindRedirectRole:
				http.Redirect(w, r, decision.Location, http.StatusSeeOther)

			case auth.KindDeny:
				logx.Warn("Guard denied request", "path", path, "roles", snap.Roles)
				resp.RespondError(w, r, errs.NewError(errs.ErrForbidden))

			default:
				resp.RespondLoading(w, r, LoadingRetryAfter)
			}
		})
	}
}

// respondDashboard sends data together with the dashboard shell of the current session.
func respondDashboard(w http.ResponseWriter, r *http.Request, data map[string]any) {
	_, snap := currentSession(r)
	if data == nil {
		data = map[string]any{}
	}
	data["shell"] = dashboard.NewShell(snap, r.URL.Path)
	resp.RespondSuccess(w, r, data)
}

// currentUserID returns the id of the signed-in user admitted by Guard.
func currentUserID(r *http.Request) string {
	_, snap := currentSession(r)
	if snap.User == nil {
		return ""
	}
	return snap.User.ID
}

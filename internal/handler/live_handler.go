package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"sims/internal/app/auth"
	"sims/internal/app/live"
	"sims/internal/app/user"
	"sims/internal/pkg/auth/jwt"
	"sims/internal/pkg/errs"
	"sims/internal/pkg/logx"
	"sims/internal/pkg/resp"
)

// liveRequirement resolves the requirement a live stream is evaluated against: the
// ?roles= list when given, else the dashboard area of path.
func liveRequirement(path, roles string) (auth.Requirement, *errs.CustomError) {
	if roles == "" {
		req, ok := RequirementFor(path)
		if !ok {
			return auth.Requirement{}, errs.NewError(errs.ErrInvalidParams).WithFields(map[string]string{"path": "Not a dashboard page"})
		}
		return req, nil
	}

	var req auth.Requirement
	for _, name := range strings.Split(roles, ",") {
		role, ok := user.ParseRole(strings.TrimSpace(name))
		if !ok {
			return auth.Requirement{}, errs.NewError(errs.ErrInvalidParams).WithFields(map[string]string{"roles": "Unknown role " + name})
		}
		req.Roles = append(req.Roles, role)
	}
	return req, nil
}

// HandleLive upgrades to a websocket that pushes the guard decision for ?path= whenever the
// portal session changes.
func HandleLive(upgrader websocket.Upgrader, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Query().Get("path")
		if !auth.IsLocalPath(path) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams).WithFields(map[string]string{"path": "Must be a local path"}))
			return
		}

		requirement, customErr := liveRequirement(path, r.URL.Query().Get("roles"))
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		portalID := jwt.GetPortalIDFromContext(r)
		store := portalStore(deps, r)
		go func() {
			if err := store.Initialize(context.WithoutCancel(r.Context())); err != nil {
				logx.Warn("Live stream could not initialize portal session", "error", err)
			}
		}()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Warn("WebSocket upgrade failed", "error", err, "path", path)
			return
		}

		live.NewWatcher(deps.Hub, store, conn, requirement, path, portalID).Serve()
	}
}

package handler

import (
	"context"
	"net/http"

	"sims/internal/app/auth"
	"sims/internal/pkg/errs"
	"sims/internal/pkg/logx"
	"sims/internal/pkg/req"
	"sims/internal/pkg/resp"
)

type SignInInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	// From is the page the visitor was sent away from.
	From string `json:"from,omitempty"`
}

type SignUpInput struct {
	FullName        string `json:"full_name" validate:"required,min=2,max=100"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6,max=72"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

// settle waits up to GuardWait for the portal session to finish loading.
func settle(deps *AppDeps, r *http.Request, store *auth.Store) (auth.Snapshot, bool) {
	ctx, cancel := context.WithTimeout(r.Context(), deps.Config.GuardWait)
	defer cancel()

	if err := store.Initialize(ctx); err != nil {
		return store.Snapshot(), false
	}
	snap, err := store.WaitFor(ctx, auth.Snapshot.Settled)
	return snap, err == nil
}

// HandleAuthPage serves the sign-in page state. A signed-in visitor is sent on to the page
// they came from, or to their dashboard.
func HandleAuthPage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store := portalStore(deps, r)
		from := r.URL.Query().Get("from")

		snap, ok := settle(deps, r, store)
		if !ok {
			resp.RespondLoading(w, r, LoadingRetryAfter)
			return
		}

		if snap.User != nil {
			http.Redirect(w, r, auth.AfterSignIn(from, snap.Roles), http.StatusSeeOther)
			return
		}

		if !auth.IsLocalPath(from) {
			from = ""
		}
		resp.RespondSuccess(w, r, map[string]any{
			"signed_in": false,
			"from":      from,
		})
	}
}

// HandleSignIn signs the portal session in and tells the client where to go next.
func HandleSignIn(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input SignInInput
		if customErr := req.Bind(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		store := portalStore(deps, r)
		settle(deps, r, store)

		if err := store.SignIn(r.Context(), input.Email, input.Password); err != nil {
			resp.RespondError(w, r, authError(err, errs.ErrInvalidCredentials))
			return
		}

		snap := store.Snapshot()
		if snap.User != nil {
			logx.Info("User signed in", "user_id", snap.User.ID, "roles", snap.Roles)
		}

		resp.RespondSuccess(w, r, map[string]any{
			"location": auth.AfterSignIn(input.From, snap.Roles),
			"session":  snap,
		})
	}
}

// HandleSignUp creates an account. The visitor still has to confirm and sign in.
func HandleSignUp(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input SignUpInput
		if customErr := req.Bind(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		store := portalStore(deps, r)
		if err := store.SignUp(r.Context(), input.Email, input.Password, input.FullName); err != nil {
			resp.RespondError(w, r, authError(err, errs.ErrSignUpFailed))
			return
		}

		resp.RespondCreated(w, r, map[string]any{
			"email":   input.Email,
			"message": "Account created. Please check your email to confirm it, then sign in.",
		})
	}
}

// HandleSignOut ends the portal session. Local state is cleared even when the auth
// service fails.
func HandleSignOut(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store := portalStore(deps, r)
		if err := store.SignOut(r.Context()); err != nil {
			logx.Warn("Sign-out reached the auth service with an error", "error", err)
		}

		resp.RespondSuccess(w, r, map[string]any{"location": auth.DefaultRedirect})
	}
}

// HandleSession returns the portal session as it stands after at most GuardWait.
func HandleSession(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store := portalStore(deps, r)
		snap, _ := settle(deps, r, store)

		resp.RespondSuccess(w, r, map[string]any{
			"session": snap,
			"settled": snap.Settled(),
		})
	}
}

/*
Package handler provides the HTTP handlers and routing setup for the portal.

This file defines the main Router, applying the shared middleware (CORS, request ids,
logging, the portal cookie) and the per-route rate limiters and role guards before
delegating requests to the handlers.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"

	"sims/internal/pkg/auth/jwt"
	"sims/internal/pkg/errs"
	"sims/internal/pkg/logx"
	"sims/internal/pkg/resp"
)

const (
	SignInRate  = 0.2
	SignInBurst = 5
	SignUpRate  = 0.05
	SignUpBurst = 3
	FormRate    = 0.05
	FormBurst   = 3
)

// Router sets up the main HTTP routing table (chi.Router) for the portal.
// It applies the IP-based rate limiters from deps, configures CORS and the websocket
// upgrader, and mounts the public, auth and guarded dashboard routes.
func Router(deps *AppDeps) http.Handler {
	signInLimiter := deps.Limiters.SignIn
	signUpLimiter := deps.Limiters.SignUp
	formLimiter := deps.Limiters.Form

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	var wsUpgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.IsDevelopment() {
				return true
			}

			origin := r.Header.Get("Origin")
			if origin == "" || origin == deps.Config.SiteURL {
				return true
			}
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{deps.Config.SiteURL}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = append(corsAllowedOrigins, deps.Config.AllowedOrigins...)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-PoW-Token"},
		ExposedHeaders:   []string{"Retry-After", "Location"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		logx.Debug("Health check endpoint hit")

		data := map[string]any{
			"status":  "ok",
			"service": "SIMS Portal",
			"portals": deps.Registry.Len(),
		}
		resp.RespondSuccess(w, r, data)
	})
	r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		resp.RespondError(w, r, errs.NewError(errs.ErrNotFound))
	})

	r.Group(func(portal chi.Router) {
		portal.Use(jwt.PortalMiddleware(deps.Config.PortalSecret, !deps.Config.IsDevelopment()))

		portal.Route("/api", func(api chi.Router) {
			api.Get("/home", HandleHome(deps))
			api.Get("/news", HandleListNews(deps))
			api.Get("/news/{slug}", HandleGetNews(deps))
			api.Get("/gallery", HandleGallery(deps))
			api.Get("/session", HandleSession(deps))

			api.Get("/pow/challenge", HandlePowChallenge(deps))
			api.Post("/pow/verify", HandlePowVerify(deps))

			api.Get("/admissions/catalog", HandleAdmissionCatalog(deps))
			api.With(formLimiter.Middleware).Post("/admissions", HandleSubmitAdmission(deps))
			api.With(formLimiter.Middleware).Post("/contact", HandleContact(deps))
		})

		portal.Route("/auth", func(a chi.Router) {
			a.Get("/", HandleAuthPage(deps))
			a.With(signInLimiter.Middleware).Post("/sign-in", HandleSignIn(deps))
			a.With(signUpLimiter.Middleware).Post("/sign-up", HandleSignUp(deps))
			a.Post("/sign-out", HandleSignOut(deps))
		})

		portal.Route("/student", func(s chi.Router) {
			s.Use(Guard(deps, StudentAccess))
			s.Get("/", HandleStudentDashboard(deps))
		})

		portal.Route("/faculty", func(f chi.Router) {
			f.Use(Guard(deps, FacultyAccess))
			f.Get("/", HandleFacultyDashboard(deps))

			f.Route("/results", func(res chi.Router) {
				res.Get("/", HandleListStudentResults(deps))
				res.Post("/", HandleCreateResult(deps))
				res.Get("/{id}", HandleGetResult(deps))
				res.Put("/{id}", HandleUpdateResult(deps))
				res.Delete("/{id}", HandleDeleteResult(deps))
			})
		})

		portal.Route("/admin", func(a chi.Router) {
			a.Use(Guard(deps, AdminAccess))
			a.Get("/", HandleAdminDashboard(deps))

			a.Route("/news", func(n chi.Router) {
				n.Get("/", HandleAdminListNews(deps))
				n.Post("/", HandleCreateNews(deps))
				n.Post("/cover", HandlePresignCover(deps))
				n.Get("/{id}", HandleAdminGetNews(deps))
				n.Put("/{id}", HandleUpdateNews(deps))
				n.Delete("/{id}", HandleDeleteNews(deps))
				n.Post("/{id}/publish", HandleTogglePublished(deps))
				n.Post("/{id}/feature", HandleToggleFeatured(deps))
			})

			a.Route("/admissions", func(ad chi.Router) {
				ad.Get("/", HandleListAdmissions(deps))
				ad.Get("/{id}", HandleGetAdmission(deps))
				ad.Post("/{id}/review", HandleReviewAdmission(deps))
			})

			a.Route("/gallery", func(g chi.Router) {
				g.Get("/", HandleAdminGallery(deps))
				g.Post("/", HandleUploadGallery(deps))
				g.Delete("/{name}", HandleDeleteGallery(deps))
			})
		})

		portal.Get("/live", HandleLive(wsUpgrader, deps))
	})

	return r
}

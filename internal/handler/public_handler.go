package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"sims/internal/app/admissions"
	"sims/internal/app/news"
	"sims/internal/pkg/errs"
	"sims/internal/pkg/limiter"
	"sims/internal/pkg/logx"
	"sims/internal/pkg/pow"
	"sims/internal/pkg/req"
	"sims/internal/pkg/resp"
)

type PowVerifyInput struct {
	Nonce   string `json:"nonce" validate:"required"`
	Counter string `json:"counter" validate:"required,max=64"`
}

type ContactInput struct {
	Name    string `json:"name" validate:"required,min=2,max=100"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"omitempty,numeric,min=10,max=15"`
	Subject string `json:"subject" validate:"required,max=200"`
	Message string `json:"message" validate:"required,min=10,max=2000"`
}

// queryInt reads an integer query parameter. Missing or malformed values yield fallback.
func queryInt(r *http.Request, key string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return fallback
	}
	return v
}

// newsQuery reads the listing filters shared by the public and admin news lists.
func newsQuery(r *http.Request) news.Query {
	q := r.URL.Query()
	return news.Query{
		Category: q.Get("category"),
		Search:   q.Get("search"),
		Page:     queryInt(r, "page", 1),
		PageSize: queryInt(r, "page_size", news.DefaultPageSize),
	}
}

// HandleHome returns the featured and latest published articles.
func HandleHome(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		home, err := deps.News.Home(r.Context())
		if err != nil {
			respondServiceError(w, r, err, "news.home")
			return
		}
		resp.RespondSuccess(w, r, home)
	}
}

// HandleListNews returns a page of published articles.
func HandleListNews(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := deps.News.ListPublished(r.Context(), newsQuery(r))
		if err != nil {
			respondServiceError(w, r, err, "news.list")
			return
		}
		resp.RespondSuccess(w, r, map[string]any{
			"categories": news.Categories,
			"page":       page,
		})
	}
}

// HandleGetNews returns one published article by slug.
func HandleGetNews(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		article, err := deps.News.GetPublished(r.Context(), chi.URLParam(r, "slug"))
		if err != nil {
			respondServiceError(w, r, err, "news.get")
			return
		}
		resp.RespondSuccess(w, r, article)
	}
}

// HandleGallery lists the gallery photos.
func HandleGallery(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Media == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrMediaDisabled))
			return
		}

		images, err := deps.Media.Gallery(r.Context())
		if err != nil {
			logx.Error(err, "Failed to list gallery")
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}
		resp.RespondSuccess(w, r, map[string]any{"images": images})
	}
}

// HandlePowChallenge issues a proof-of-work challenge for the public forms.
func HandlePowChallenge(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, deps.Pow.NewChallenge())
	}
}

// HandlePowVerify exchanges a solved challenge for a single-use proof token.
func HandlePowVerify(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input PowVerifyInput
		if customErr := req.Bind(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		token, err := deps.Pow.ValidateProof(input.Nonce, input.Counter)
		if err != nil {
			logx.Warn("Proof of work rejected", "error", err, "ip", logx.AnonymizeIP(limiter.ClientIP(r)))
			resp.RespondError(w, r, errs.NewError(errs.ErrPowChallengeInvalid))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"token":      token,
			"header":     pow.TokenHeaderKey,
			"expires_in": int(pow.ProofTokenDuration.Seconds()),
		})
	}
}

// HandleAdmissionCatalog lists the colleges and the programs they admit to.
func HandleAdmissionCatalog(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, map[string]any{"colleges": admissions.Catalog})
	}
}

// HandleSubmitAdmission stores an application. It needs a fresh proof token.
func HandleSubmitAdmission(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Pow.ConsumeProofToken(r); err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrPowChallengeRequired))
			return
		}

		var input admissions.Input
		if customErr := req.Bind(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		a, err := deps.Admissions.Submit(r.Context(), input)
		if err != nil {
			respondServiceError(w, r, err, "admissions.submit")
			return
		}

		resp.RespondCreated(w, r, map[string]any{
			"id":                 a.ID,
			"application_number": a.ApplicationNumber,
			"status":             a.Status,
		})
	}
}

// HandleContact accepts a contact message. Messages are validated and logged only.
func HandleContact(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input ContactInput
		if customErr := req.Bind(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		logx.Info("Contact message received",
			"subject", input.Subject,
			"email", input.Email,
			"message_length", len(input.Message),
		)
		resp.RespondSuccess(w, r, map[string]any{
			"message": "Thank you for reaching out. We will get back to you soon.",
		})
	}
}

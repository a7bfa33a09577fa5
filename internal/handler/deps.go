package handler

import (
	"golang.org/x/time/rate"

	"sims/internal/app/admissions"
	"sims/internal/app/auth"
	"sims/internal/app/dashboard"
	"sims/internal/app/live"
	"sims/internal/app/news"
	"sims/internal/app/results"
	"sims/internal/app/storage"
	"sims/internal/configs"
	"sims/internal/pkg/limiter"
	"sims/internal/pkg/metrics"
	"sims/internal/pkg/pow"
)

// AppDeps carries everything the handlers need.
type AppDeps struct {
	Config   *configs.AppConfig
	Registry *auth.Registry
	Overview dashboard.OverviewSource

	News       *news.Service
	Results    *results.Service
	Admissions *admissions.Service

	// Media is nil when S3 is not configured; media endpoints then answer ErrMediaDisabled.
	Media *storage.Media

	Pow      *pow.Manager
	Limiters *Limiters
	Metrics  *metrics.Metrics
	Hub      *live.Hub
}

// Limiters are the per-IP rate limiters of the sign-in, sign-up and public form routes.
type Limiters struct {
	SignIn *limiter.IPRateLimiter
	SignUp *limiter.IPRateLimiter
	Form   *limiter.IPRateLimiter
}

// NewLimiters starts the route limiters. Stop them on shutdown.
func NewLimiters() *Limiters {
	return &Limiters{
		SignIn: limiter.NewIPRateLimiter("sign-in", rate.Limit(SignInRate), SignInBurst),
		SignUp: limiter.NewIPRateLimiter("sign-up", rate.Limit(SignUpRate), SignUpBurst),
		Form:   limiter.NewIPRateLimiter("public-form", rate.Limit(FormRate), FormBurst),
	}
}

// Stop ends the cleanup loops of every limiter.
func (l *Limiters) Stop() {
	l.SignIn.Stop()
	l.SignUp.Stop()
	l.Form.Stop()
}

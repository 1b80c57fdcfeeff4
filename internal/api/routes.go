// Route registration: public pages and health checks, then the JSON API under
// /api/v1 with optional bearer auth and rate limiting.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matiasleandrokruk/cropdoctor/internal/api/handlers"
	apmiddleware "github.com/matiasleandrokruk/cropdoctor/internal/api/middleware"
	"github.com/matiasleandrokruk/cropdoctor/internal/i18n"
	"github.com/matiasleandrokruk/cropdoctor/internal/infra/logger"
	"github.com/matiasleandrokruk/cropdoctor/internal/infra/metrics"
	"github.com/matiasleandrokruk/cropdoctor/internal/web"
	pkgauth "github.com/matiasleandrokruk/cropdoctor/pkg/auth"
)

// Deps are the services behind the router. Optional features are disabled by
// leaving their field nil.
type Deps struct {
	Diagnosis handlers.DiagnosisService
	Providers handlers.ProviderSource
	Renderer  handlers.Renderer
	Bundle    *i18n.Bundle
	Logger    logger.Logger

	// History enables /history and GET /api/v1/diagnoses.
	History handlers.HistoryStore
	// Metrics enables request metrics and GET /metrics.
	Metrics *metrics.Metrics
	// Auth protects /api/v1 with bearer tokens carrying pkgauth.ScopeDiagnose.
	Auth apmiddleware.TokenParser
	// Limiter throttles every route that calls the provider.
	Limiter *apmiddleware.Limiter
	// Ready lists extra dependencies checked by /ready.
	Ready map[string]handlers.Pinger
	// TrustProxy takes the client address from X-Forwarded-For and
	// X-Real-IP. Leave it off unless a reverse proxy sets those headers.
	TrustProxy bool
}

// NewRouter creates and configures the chi router with all routes.
func NewRouter(d Deps) *chi.Mux {
	if d.Logger == nil {
		d.Logger = logger.NewNoOpLogger()
	}
	if d.Bundle == nil {
		d.Bundle = i18n.Default()
	}

	r := chi.NewRouter()

	// Global middleware (runs on all routes)
	r.Use(middleware.RequestID)
	if d.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(apmiddleware.RequestLogger(d.Logger))
	r.Use(middleware.Recoverer)
	if d.Metrics != nil {
		r.Use(apmiddleware.Metrics(d.Metrics))
	}
	r.Use(apmiddleware.Locale(d.Bundle))

	var onReject func()
	if d.Metrics != nil {
		onReject = d.Metrics.ObserveRateLimited
	}
	apiLimit := apmiddleware.RateLimit(d.Limiter, onReject,
		apmiddleware.JSONError(d.Bundle, http.StatusTooManyRequests, "errorRateLimited"))

	// ===== HEALTH =====

	health := handlers.NewHealthHandler(d.Providers, d.Ready)
	r.Get("/health", health.Live)
	r.Get("/ready", health.Ready)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	// ===== PAGES =====

	pages := handlers.NewPagesHandler(d.Diagnosis, d.Renderer, d.History, d.Logger)
	r.Handle("/static/*", http.StripPrefix("/static/", web.Static()))
	r.Get("/", pages.Landing)
	r.Get("/diagnose", pages.Diagnose)
	pageLimit := apmiddleware.RateLimit(d.Limiter, onReject, http.HandlerFunc(pages.RateLimited))
	r.With(pageLimit).Post("/analyze", pages.Analyze)
	if d.History != nil {
		r.Get("/history", pages.History)
	}

	// ===== JSON API =====

	diagnoses := handlers.NewDiagnosisHandler(d.Diagnosis, d.Bundle)
	r.Route("/api/v1", func(r chi.Router) {
		if d.Auth != nil {
			r.Use(apmiddleware.Auth(d.Auth, pkgauth.ScopeDiagnose, d.Bundle))
		}
		r.Route("/diagnoses", func(r chi.Router) {
			r.With(apiLimit).Post("/", diagnoses.Create) // POST /api/v1/diagnoses
			if d.History != nil {
				hist := handlers.NewHistoryHandler(d.History, d.Bundle)
				r.Get("/", hist.List)    // GET /api/v1/diagnoses
				r.Get("/{id}", hist.Get) // GET /api/v1/diagnoses/{id}
			}
		})
	})

	r.NotFound(handlers.NotFound(d.Bundle))
	return r
}

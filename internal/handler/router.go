package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"votecore/internal/middleware"
	"votecore/internal/service"
	"votecore/pkg/logger"
)

// RouterDeps is everything the HTTP surface needs
type RouterDeps struct {
	Voting         *service.VotingService
	Results        *service.ResultService
	Refresher      *service.Refresher
	Auth           service.AuthService
	RateLimiter    *middleware.RateLimiter // nil disables vote rate limiting
	Health         HealthChecker
	Logger         *logger.Logger
	AllowedOrigins []string
	AdminToken     string
}

// NewRouter configures the chi router with all routes and middleware
func NewRouter(d RouterDeps) *chi.Mux {
	log := d.Logger
	r := chi.NewRouter()

	r.Use(middleware.CORS(middleware.DefaultCORSConfig(d.AllowedOrigins), log))
	r.Use(middleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.StripSlashes)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Compress(5))
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	pollHandler := NewPollHandler(d.Voting, d.Results, log)
	adminHandler := NewAdminHandler(d.Refresher, log)
	healthHandler := NewHealthHandler(d.Health, log)

	r.Get("/health", healthHandler.Check)

	r.Route("/polls", func(r chi.Router) {
		r.Use(middleware.OptionalAuth(d.Auth, log))

		r.Get("/", pollHandler.ListPolls)
		r.With(middleware.Auth(d.Auth, log)).Post("/", pollHandler.CreatePoll)

		r.Route("/{pollId}", func(r chi.Router) {
			r.Get("/", pollHandler.GetPoll)
			r.Get("/results", pollHandler.GetResults)

			r.Group(func(r chi.Router) {
				if d.RateLimiter != nil {
					r.Use(middleware.RateLimit(d.RateLimiter, log))
				}
				r.Post("/vote", pollHandler.CastVote)
			})
		})
	})

	r.Route("/user", func(r chi.Router) {
		r.Use(middleware.Auth(d.Auth, log))
		r.Get("/polls", pollHandler.ListUserPolls)
		r.Get("/votes", pollHandler.ListUserVotes)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireAdminToken(d.AdminToken, log))
		r.Post("/refresh", adminHandler.Refresh)
		r.Post("/polls/{pollId}/reconcile", adminHandler.Reconcile)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"success":false,"error":{"type":"not_found","message":"Endpoint not found"}}`))
	})

	return r
}

// Package api serves the read API, moderator map operations, health and metrics.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	mapservice "github.com/Black-And-White-Club/parkour-bot/app/modules/maps/application"
	playtestservice "github.com/Black-And-White-Club/parkour-bot/app/modules/playtest/application"
	rankservice "github.com/Black-And-White-Club/parkour-bot/app/modules/rank/application"
	userdb "github.com/Black-And-White-Club/parkour-bot/app/modules/user/infrastructure/repositories"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/observability/attr"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/results"
	"github.com/Black-And-White-Club/parkour-bot/pkg/jwt"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// ProgressionReader serves computed progression.
type ProgressionReader interface {
	GetProgression(ctx context.Context, userID string) (*rankservice.ProgressionView, error)
}

// StandingReader serves the snapshot written by the last reconcile.
type StandingReader interface {
	GetStanding(ctx context.Context, userID string) (userdb.Standing, error)
}

// Playtests is the playtest surface the API exposes.
type Playtests interface {
	GetSession(ctx context.Context, mapCode string) (*playtestservice.SessionView, error)
	Finalize(ctx context.Context, mapCode string) (results.OperationResult[playtestservice.FinalizeOutcome, error], error)
}

// HealthCheck is one named dependency check.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Deps groups the API's collaborators.
type Deps struct {
	Progression ProgressionReader
	Standings   StandingReader
	Playtests   Playtests
	Maps        mapservice.Service
	Tokens      jwt.Service
	Gatherer    prometheus.Gatherer
	Checks      []HealthCheck
	Logger      *slog.Logger
	RateLimit   rate.Limit
	RateBurst   int
}

// NewRouter builds the chi router.
func NewRouter(d Deps) chi.Router {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	h := &handlers{deps: d, logger: d.Logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(CorrelationMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.health)
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RateLimitMiddleware(NewIPRateLimiter(d.RateLimit, d.RateBurst)))

		r.Get("/users/{userID}/progression", h.getProgression)
		r.Get("/users/{userID}/standing", h.getStanding)
		r.Get("/playtests/{mapCode}", h.getPlaytest)
		r.Get("/maps/{mapCode}", h.getMap)

		r.Group(func(r chi.Router) {
			r.Use(ModeratorMiddleware(d.Tokens))
			r.Post("/playtests/{mapCode}/finalize", h.finalizePlaytest)
			r.Put("/maps/{mapCode}/difficulty", h.putDifficulty)
			r.Put("/maps/{mapCode}/archived", h.putArchived)
		})
	})
	return r
}

// Server wraps http.Server with the router.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// NewServer creates a Server listening on addr.
func NewServer(addr string, d Deps) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(d),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: d.Logger,
	}
}

// Run serves until Shutdown is called.
func (s *Server) Run() error {
	s.logger.Info("HTTP server listening", attr.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

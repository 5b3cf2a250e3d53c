// Package server wires the HTTP router of the portal API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"community-portal/internal/config"
	"community-portal/internal/guard"
	"community-portal/internal/handler"
	"community-portal/internal/pkg/metrics"
	"community-portal/internal/pkg/ratelimit"
	"community-portal/internal/service"
)

// Server wraps the HTTP listener with application dependencies.
type Server struct {
	cfg    *config.Config
	router *chi.Mux
	http   *http.Server

	metrics   *metrics.Metrics
	authLimit *ratelimit.KeyedRateLimiter
	admins    guard.Guard
	editors   *guard.DirectoryRole

	healthHandler       *handler.HealthHandler
	leaderboardHandler  *handler.LeaderboardHandler
	adminHandler        *handler.AdminHandler
	reactionHandler     *handler.ReactionHandler
	accountHandler      *handler.AccountHandler
	personalFileHandler *handler.PersonalFileHandler
}

// Dependencies holds everything the handlers need.
type Dependencies struct {
	Config              *config.Config
	DB                  handler.Pinger
	Metrics             *metrics.Metrics
	RolloverService     *service.RolloverService
	LeaderboardService  *service.LeaderboardService
	ReactionService     *service.ReactionService
	UserService         *service.UserService
	PersonalFileService *service.PersonalFileService
}

// New creates a Server with all routes registered.
func New(deps *Dependencies) (*Server, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config is required")
	}

	m := deps.Metrics
	if m == nil {
		m = metrics.New()
	}

	cfg := deps.Config
	s := &Server{
		cfg:       cfg,
		router:    chi.NewRouter(),
		metrics:   m,
		authLimit: ratelimit.New(cfg.RateLimit.AuthRPS, cfg.RateLimit.AuthBurst),
		admins:    guard.NewStaticToken(cfg.Admin.Token),
		editors:   guard.NewDirectoryRole(deps.UserService, cfg.Admin.EditorRoles),
	}

	s.healthHandler = handler.NewHealthHandler(deps.DB)
	s.leaderboardHandler = handler.NewLeaderboardHandler(deps.LeaderboardService)
	s.adminHandler = handler.NewAdminHandler(deps.RolloverService, deps.LeaderboardService)
	s.reactionHandler = handler.NewReactionHandler(deps.ReactionService)
	s.accountHandler = handler.NewAccountHandler(deps.UserService, s.editors)
	s.personalFileHandler = handler.NewPersonalFileHandler(deps.PersonalFileService)

	s.registerMiddleware()
	s.registerRoutes()

	s.http = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s, nil
}

// registerMiddleware registers the global middleware chain.
func (s *Server) registerMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", guard.HeaderAdminToken, guard.HeaderUserNick},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	s.router.Use(s.metrics.Middleware)
	s.router.Use(BodyLimitMiddleware(s.cfg.Server.MaxBodyBytes))
}

// registerRoutes registers every endpoint.
func (s *Server) registerRoutes() {
	r := s.router

	r.Get("/", s.healthHandler.HandleRoot)
	r.Get("/health", s.healthHandler.HandleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/leaders", func(r chi.Router) {
			r.Get("/day", s.leaderboardHandler.HandleDay)
			r.Get("/week", s.leaderboardHandler.HandleWeek)
			r.Get("/by-depts", s.leaderboardHandler.HandleByDepartments)
			r.With(guard.Middleware(s.admins)).Post("/bulk", s.leaderboardHandler.HandleBulk)
		})

		// Token-guarded maintenance
		r.Group(func(r chi.Router) {
			r.Use(guard.Middleware(s.admins))
			r.Post("/rollover", s.adminHandler.HandleRollover)
			r.Post("/ash/set", s.adminHandler.HandleSetAsh)
		})

		r.Route("/auth", func(r chi.Router) {
			r.Use(s.authLimit.Middleware)
			r.Post("/register", s.accountHandler.HandleRegister)
			r.Post("/login", s.accountHandler.HandleLogin)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/can-edit", s.accountHandler.HandleCanEdit)
			r.Get("/role", s.accountHandler.HandleRoleByAccount)
			r.Get("/{id}", s.accountHandler.HandleGet)

			r.Group(func(r chi.Router) {
				r.Use(guard.Middleware(s.editors))
				r.Get("/", s.accountHandler.HandleList)
				r.Post("/{id}/role", s.accountHandler.HandleChangeRole)
			})
		})

		r.Route("/personal-files", func(r chi.Router) {
			r.Get("/", s.personalFileHandler.HandleList)
			r.Get("/{id}", s.personalFileHandler.HandleGet)
		})

		r.Route("/reactions", func(r chi.Router) {
			r.Get("/counts", s.reactionHandler.HandleCounts)
			r.Get("/my", s.reactionHandler.HandleMine)
			r.Post("/set", s.reactionHandler.HandleSet)
		})
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start listens until Stop is called.
func (s *Server) Start() error {
	log.Info().Str("addr", s.http.Addr).Msg("Starting HTTP server...")

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Stop drains in-flight requests and releases background workers.
func (s *Server) Stop(ctx context.Context) error {
	log.Info().Msg("Stopping HTTP server...")
	s.authLimit.Stop()
	return s.http.Shutdown(ctx)
}

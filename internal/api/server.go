package api

import (
	"net/http"
	"time"

	"github.com/callgreet/callgreet/internal/api/middleware"
	"github.com/callgreet/callgreet/internal/database"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server holds HTTP handler dependencies and the chi router.
type Server struct {
	router        *chi.Mux
	db            *database.DB
	sessions      database.CallSessionRepository
	consents      database.ConsentRepository
	notifications database.NotificationRepository
	sysConfig     database.SystemConfigRepository
	users         database.AdminUserRepository
	webhooks      http.Handler
	registry      *prometheus.Registry
	jwtSecret     []byte
	startTime     time.Time
}

// NewServer creates the HTTP handler with all routes mounted. webhooks is
// the carrier webhook sub-router; registry carries the metrics collector.
func NewServer(db *database.DB, sessions database.CallSessionRepository, consents database.ConsentRepository, notifications database.NotificationRepository, sysConfig database.SystemConfigRepository, users database.AdminUserRepository, webhooks http.Handler, registry *prometheus.Registry, jwtSecret []byte) *Server {
	s := &Server{
		router:        chi.NewRouter(),
		db:            db,
		sessions:      sessions,
		consents:      consents,
		notifications: notifications,
		sysConfig:     sysConfig,
		users:         users,
		webhooks:      webhooks,
		registry:      registry,
		jwtSecret:     jwtSecret,
		startTime:     time.Now(),
	}

	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routes configures all middleware and mounts all route groups.
func (s *Server) routes() {
	r := s.router

	// Global middleware stack.
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.StructuredLogger)
	r.Use(middleware.Recoverer)

	// Carrier webhooks. Signature validation happens inside the
	// sub-router; no rate limiting, the carrier retries on 429.
	r.Mount("/webhooks/voice", s.webhooks)

	r.Get("/healthz", s.handleHealth)
	if s.registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	// Admin API under /api/v1.
	apiLimiter := middleware.NewIPRateLimiter(middleware.DefaultRateLimitConfig())
	authLimiter := middleware.NewIPRateLimiter(middleware.AuthRateLimitConfig())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(apiLimiter))

		// Unauthenticated routes, tighter rate limit on credential paths.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(authLimiter))
			r.Post("/setup", s.handleSetup)
			r.Post("/auth/login", s.handleLogin)
		})

		// Everything else requires a valid admin token.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(s.jwtSecret))

			r.Get("/auth/me", s.handleMe)

			r.Route("/sessions", func(r chi.Router) {
				r.Get("/", s.handleListSessions)
				r.Get("/{callID}", s.handleGetSession)
			})

			r.Get("/settings", s.handleGetSettings)
			r.Put("/settings", s.handleUpdateSettings)

			r.Get("/stats", s.handleStats)
			r.Post("/purge/run", s.handleRunPurge)
		})
	})
}

// handleHealth reports liveness, including a database ping.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

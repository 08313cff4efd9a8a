// Package api is the HTTP surface of the server: account registration and
// login, authenticated chat history, the health and metrics endpoints, and
// the WebSocket upgrade route for signaling.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/chatterbox-server/chatterbox/internal/api/middleware"
	"github.com/chatterbox-server/chatterbox/internal/config"
	"github.com/chatterbox-server/chatterbox/internal/database"
	"github.com/chatterbox-server/chatterbox/internal/registry"
)

// Server holds HTTP handler dependencies and the chi router.
type Server struct {
	router       *chi.Mux
	users        database.UserRepository
	messages     database.MessageRepository
	registry     *registry.Registry
	jwtSecret    []byte
	historyLimit int
	startedAt    time.Time

	authLimiter *middleware.IPRateLimiter
	apiLimiter  *middleware.IPRateLimiter
}

// NewServer creates the HTTP handler with all routes mounted. wsHandler
// serves the signaling WebSocket; metricsHandler serves /metrics.
func NewServer(
	cfg *config.Config,
	users database.UserRepository,
	messages database.MessageRepository,
	reg *registry.Registry,
	jwtSecret []byte,
	wsHandler http.HandlerFunc,
	metricsHandler http.Handler,
) *Server {
	s := &Server{
		router:       chi.NewRouter(),
		users:        users,
		messages:     messages,
		registry:     reg,
		jwtSecret:    jwtSecret,
		historyLimit: cfg.HistoryLimit,
		startedAt:    time.Now(),
		authLimiter:  middleware.NewIPRateLimiter(middleware.AuthRateLimitConfig()),
		apiLimiter:   middleware.NewIPRateLimiter(middleware.DefaultRateLimitConfig()),
	}

	s.routes(cfg, wsHandler, metricsHandler)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops the background goroutines owned by the server.
func (s *Server) Close() {
	s.authLimiter.Stop()
	s.apiLimiter.Stop()
}

func (s *Server) routes(cfg *config.Config, wsHandler http.HandlerFunc, metricsHandler http.Handler) {
	r := s.router

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.StructuredLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(middleware.ParseCORSOrigins(cfg.CORSOrigins)))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	// The WebSocket route bypasses the rate limiters: one long-lived
	// connection per client.
	r.Get("/ws", wsHandler)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(s.authLimiter))
			r.Post("/register", s.handleRegister)
			r.Post("/login", s.handleLogin)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(s.apiLimiter))
			r.Use(middleware.RequireAuth(s.jwtSecret))
			r.Get("/history", s.handleHistory)
		})
	})
}

// healthResponse is the /health payload.
type healthResponse struct {
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	OnlineUsers int    `json:"online_users"`
}

// handleHealth returns basic liveness info. Unauthenticated.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "running",
		Timestamp:   time.Now().Format(time.RFC3339),
		OnlineUsers: s.registry.OnlineCount(),
	})
}

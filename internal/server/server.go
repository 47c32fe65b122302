// Package server exposes the admin and read-only HTTP surface.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/Shilder25/opinion-arena/internal/config"
	"github.com/Shilder25/opinion-arena/internal/cycle"
	"github.com/Shilder25/opinion-arena/internal/orders"
	"github.com/Shilder25/opinion-arena/internal/store"
)

type cycleRunner interface {
	Run(ctx context.Context) (*cycle.Result, error)
}

type orderMonitor interface {
	Run(ctx context.Context) (orders.Summary, error)
}

// Deps wires the server's collaborators.
type Deps struct {
	Config       *config.Config
	Store        store.DataStore
	Orchestrator cycleRunner
	Monitor      orderMonitor
	Logger       zerolog.Logger
}

// Server is the HTTP front for the trading engine: admin triggers
// behind a shared secret, read-only stats for the dashboard.
type Server struct {
	router  *chi.Mux
	server  *http.Server
	cfg     *config.Config
	store   store.DataStore
	cycles  cycleRunner
	monitor orderMonitor
	log     zerolog.Logger
}

// New creates the HTTP server.
func New(deps Deps) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		cfg:     deps.Config,
		store:   deps.Store,
		cycles:  deps.Orchestrator,
		monitor: deps.Monitor,
		log:     deps.Logger.With().Str("component", "server").Logger(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", deps.Config.Server.Host, deps.Config.Server.Port),
		Handler:      s.router,
		ReadTimeout:  deps.Config.Server.ReadTimeout,
		WriteTimeout: deps.Config.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Monitor-Secret"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	// A cycle run can take the full deadline, so the admin routes skip
	// the request timeout middleware entirely.
	s.router.Route("/admin", func(r chi.Router) {
		r.Use(s.requireSecret)
		r.Post("/run-cycle", s.handleRunCycle)
		r.Post("/monitor-orders", s.handleMonitorOrders)
		r.Post("/initialize-portfolios", s.handleInitPortfolios)
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Get("/leaderboard", s.handleLeaderboard)
		r.Get("/live-metrics", s.handleLiveMetrics)
		r.Get("/active-positions", s.handleActivePositions)
		r.Get("/ai-decisions-history", s.handleDecisionsHistory)
		r.Get("/cancelled-orders", s.handleCancelledOrders)
		r.Get("/recent-trades", s.handleRecentTrades)
		r.Get("/ai-trades/{firm}", s.handleFirmTrades)
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// requireSecret gates admin routes on the shared monitor secret.
func (s *Server) requireSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Monitor.Secret == "" || r.Header.Get("X-Monitor-Secret") != s.cfg.Monitor.Secret {
			s.respondError(w, http.StatusUnauthorized, "invalid or missing secret")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

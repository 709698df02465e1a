// Package server exposes the engine's HTTP API: run dispatch, run lookup,
// a live run-event stream, and operational endpoints (spec §10), structured
// like the teacher's internal/server package (router setup, middleware
// chain, route nesting by concern).
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/exportengine/engine/internal/dispatch"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// Config holds the dependencies the server wires into its handlers.
type Config struct {
	Port    int
	Log     zerolog.Logger
	Runs    RunDispatcher
	Store   RunLookup
	Events  *RunEventBus
	DevMode bool

	// StaleThreshold mirrors the dispatcher's configured staleness
	// threshold (spec §4.8) so GET /api/runs/{runId} reports the same
	// stale=true/false verdict the dispatcher and sweeper agree on. Zero
	// falls back to dispatch.DefaultStaleThreshold.
	StaleThreshold time.Duration
}

// Server is the engine's HTTP API.
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	runs           RunDispatcher
	store          RunLookup
	events         *RunEventBus
	staleThreshold time.Duration
}

// New constructs a Server ready to Start.
func New(cfg Config) *Server {
	staleThreshold := cfg.StaleThreshold
	if staleThreshold <= 0 {
		staleThreshold = dispatch.DefaultStaleThreshold
	}

	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		runs:           cfg.Runs,
		store:          cfg.Store,
		events:         cfg.Events,
		staleThreshold: staleThreshold,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // generous: runs.stream holds the connection open
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/runs", func(r chi.Router) {
			r.Post("/", s.handleCreateRun)
			r.Get("/stream", s.handleRunStream)
			r.Get("/{runId}", s.handleGetRun)
		})
		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.handleSystemStatus)
		})
	})
}

// Start begins serving; it blocks until the server stops or fails.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")
	return s.server.Shutdown(ctx)
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
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

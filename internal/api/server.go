// Package api serves computed territory layers, travel statistics, and run
// reports over HTTP. It is read-only: everything it returns was written by
// the pipeline's stage store.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/rugbymap/rugbymap/internal/geo"
	"github.com/rugbymap/rugbymap/internal/logger"
	"github.com/rugbymap/rugbymap/internal/ratelimit"
	"github.com/rugbymap/rugbymap/internal/stages"
	"github.com/rugbymap/rugbymap/internal/validation"
)

// Config tunes the HTTP surface.
type Config struct {
	AllowedOrigins []string
	// RequestsPerMinute per client IP; zero disables limiting.
	RequestsPerMinute int
	Burst             int
	// Projection is the plane territories were computed in. Defaults to
	// Mercator.
	Projection geo.Projector
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	stages    *stages.Store
	metrics   http.Handler
	validator *validation.Validator
	limiter   *ratelimit.KeyedRateLimiter
	proj      geo.Projector
	router    *chi.Mux
	logger    *slog.Logger
	started   time.Time
}

// NewServer creates a server with all routes configured. metrics may be nil.
func NewServer(cfg Config, st *stages.Store, metrics http.Handler, log *slog.Logger) *Server {
	s := &Server{
		stages:    st,
		metrics:   metrics,
		validator: validation.New(),
		proj:      cfg.Projection,
		router:    chi.NewRouter(),
		logger:    logger.OrDiscard(log),
		started:   time.Now(),
	}
	if s.proj == nil {
		s.proj = geo.Mercator{}
	}
	if cfg.RequestsPerMinute > 0 {
		s.limiter = NewRateLimiter(cfg.RequestsPerMinute, time.Minute, cfg.Burst)
	}

	s.setupMiddleware(cfg)
	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupMiddleware(cfg Config) {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5, "application/json", "application/geo+json"))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealthCheck)
	if s.metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.metrics)
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(RateLimitMiddleware(s.limiter, s.logger))
		}

		r.Route("/seasons/{season}", func(r chi.Router) {
			r.Use(s.requireSeason)
			r.Get("/layers", s.handleListLayers)
			r.Get("/layers/{key}", s.handleGetLayer)
			r.Get("/layers/{key}/cells", s.handleListCells)
			r.Get("/layers/{key}/cells/{team}", s.handleGetCell)
			r.Get("/layers/{key}/leagues", s.handleListLeagues)
			r.Get("/layers/{key}/locate", s.handleLocate)
			r.Get("/travel", s.handleGetTravel)
			r.Get("/reports/{stage}", s.handleGetReport)
		})
	})
}

// requestLogger logs each request through slog once it completes.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

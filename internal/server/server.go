// Package server exposes the redaction pipeline over HTTP.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/veil-sh/veil/internal/batch"
	"github.com/veil-sh/veil/internal/detect"
	"github.com/veil-sh/veil/internal/extract"
	veilotel "github.com/veil-sh/veil/internal/otel"
)

const defaultTimeout = 60 * time.Second

// Server holds all dependencies for the HTTP API.
type Server struct {
	router          *chi.Mux
	detector        detect.Detector
	processor       *batch.Processor
	extractor       *extract.Extractor
	defaultEntities []string
	startTime       time.Time
}

// Option configures the Server.
type Option func(*Server)

// WithDefaultEntities sets the categories used when a request selects none.
func WithDefaultEntities(entities []string) Option {
	return func(s *Server) { s.defaultEntities = entities }
}

// NewServer builds a Server around a detector, batch processor, and extractor.
func NewServer(detector detect.Detector, processor *batch.Processor, extractor *extract.Extractor, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		detector:  detector,
		processor: processor,
		extractor: extractor,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(defaultTimeout))
	r.Use(veilotel.Middleware())

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/entities", s.handleEntities)
		r.Post("/redact", s.handleRedact)
		r.Post("/redact/files", s.handleRedactFiles)
		r.Post("/export", s.handleExport)
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

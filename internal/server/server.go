package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/healthrip/healthrip/internal/normalize"
)

// PointWriter is the outbound time-series write dependency. The real
// implementation is influx.Writer; tests substitute a fake.
type PointWriter interface {
	WritePoints(ctx context.Context, points []normalize.Point) error
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	writer PointWriter
	norm   *normalize.Normalizer
	log    *slog.Logger
	apiKey string
	router chi.Router
}

// New creates a Server with all routes configured. An empty apiKey disables
// the auth check (local development, or tsnet gating access upstream).
func New(writer PointWriter, norm *normalize.Normalizer, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		writer: writer,
		norm:   norm,
		log:    log,
		apiKey: apiKey,
		router: chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))

	// Healthcheck (no auth, no normalizer involvement)
	s.router.Get("/", s.handleHealthcheck)
	s.router.Get("/api/health", s.handleHealthcheck)

	// Ingest endpoints (API key required). The HAE app can only be
	// configured with a bare path, so both spellings are served.
	s.router.Group(func(r chi.Router) {
		r.Use(APIKeyAuth(s.apiKey))
		r.Post("/ingest", s.handleIngest)
		r.Post("/api/ingest", s.handleIngest)
	})
}

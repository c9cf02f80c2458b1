// Package server exposes a measurement Controller over HTTP so a map client
// can drive captures, manage the collection and download exports.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sells-group/fieldmap-cli/internal/measure"
	"github.com/sells-group/fieldmap-cli/internal/store"
)

// Options configures the HTTP API.
type Options struct {
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
	ExportPrefix   string
	Now            func() time.Time
}

// Server routes HTTP requests to a shared Controller. Finished
// measurements and settings changes are written through to the store when
// one is configured.
type Server struct {
	ctrl   *measure.Controller
	store  store.Store
	opts   Options
	router chi.Router
}

// New builds the router. st may be nil for an in-memory server.
func New(ctrl *measure.Controller, st store.Store, opts Options) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}

	s := &Server{ctrl: ctrl, store: st, opts: opts}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))
	if opts.RateLimitRPS > 0 {
		r.Use(rateLimit(opts.RateLimitRPS, opts.RateLimitBurst))
	}

	r.Get("/health", s.handleHealth)

	r.Route("/session", func(r chi.Router) {
		r.Get("/", s.handleSession)
		r.Put("/tool", s.handleSetTool)
		r.Post("/start", s.handleStart)
		r.Post("/points", s.handlePoint)
		r.Post("/undo", s.handleUndo)
		r.Post("/finish", s.handleFinish)
		r.Post("/cancel", s.handleCancel)
	})

	r.Route("/measurements", func(r chi.Router) {
		r.Get("/", s.handleListMeasurements)
		r.Delete("/", s.handleClearMeasurements)
		r.Delete("/{kind}/{id}", s.handleDeleteMeasurement)
	})

	r.Get("/settings", s.handleGetSettings)
	r.Put("/settings", s.handlePutSettings)
	r.Get("/export", s.handleExport)
	r.Get("/convert", s.handleConvert)

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Package api exposes the registries over HTTP.
package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/webarportal/portal/internal/analytics"
	"github.com/webarportal/portal/internal/assets"
	"github.com/webarportal/portal/internal/config"
	"github.com/webarportal/portal/internal/registry"
)

// multipartMemory is the part of a multipart body kept in memory before
// spilling to temporary files.
const multipartMemory = 8 << 20

// Dependencies holds everything the HTTP layer needs.
type Dependencies struct {
	Registry *registry.Registry
	Store    assets.Store
	Tracker  *analytics.Tracker
	// Analytics receives scene views and client errors. Defaults to Tracker.
	Analytics analytics.Sink
	Metrics   *Metrics
	Logger    zerolog.Logger
	Server    config.ServerConfig
	// AssetPrefix is the URL prefix of asset refs, served from Store.
	AssetPrefix string
	Clock       func() time.Time
}

// Server routes HTTP requests to the registries.
type Server struct {
	deps     Dependencies
	log      zerolog.Logger
	validate *validator.Validate
	handler  http.Handler
}

// New builds the router.
func New(deps Dependencies) (*Server, error) {
	if deps.Registry == nil || deps.Store == nil || deps.Tracker == nil {
		return nil, fmt.Errorf("api requires a registry, an asset store and a tracker")
	}
	if deps.Analytics == nil {
		deps.Analytics = deps.Tracker
	}
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics()
	}
	if deps.AssetPrefix == "" {
		deps.AssetPrefix = "/assets/"
	}
	if !strings.HasSuffix(deps.AssetPrefix, "/") {
		deps.AssetPrefix += "/"
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Server.MaxUploadBytes <= 0 {
		deps.Server.MaxUploadBytes = 10 << 20
	}

	s := &Server{
		deps:     deps,
		log:      deps.Logger.With().Str("component", "api").Logger(),
		validate: newValidator(),
	}
	s.handler = s.routes()
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(chimiddleware.Recoverer)
	r.Use(securityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.deps.Server.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(s.deps.Metrics.Middleware)

	r.Route("/api", func(r chi.Router) {
		if s.deps.Server.RateLimit > 0 {
			r.Use(httprate.LimitByIP(s.deps.Server.RateLimit, time.Minute))
		}

		r.Get("/markers", s.listMarkers)
		r.Get("/markers/{id}", s.getMarker)
		r.Delete("/markers/{id}", s.deleteMarker)
		r.Get("/markers/{id}/content", s.listContent)

		r.Post("/upload/marker", s.uploadMarker)
		r.Post("/upload/content", s.uploadContent)
		r.Delete("/content/{id}", s.deleteContent)

		r.Get("/ar-scene/{markerId}", s.scene)

		r.Post("/analytics/errors", s.reportError)
		r.Get("/analytics/stats", s.overallStats)
		r.Get("/analytics/markers/{id}", s.markerStats)

		r.Get("/status", s.status)
		r.NotFound(s.notFound)
	})

	r.Handle("/metrics", s.deps.Metrics.Handler())
	r.Get(s.deps.AssetPrefix+"{name}", s.asset)

	if dir := s.deps.Server.PublicDir; dir != "" {
		r.Handle("/*", http.FileServer(http.Dir(dir)))
	} else {
		r.NotFound(s.notFound)
	}

	return r
}

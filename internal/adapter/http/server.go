package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/wage-level-map/internal/adapter/mapbox"
	"github.com/couchcryptid/wage-level-map/internal/domain"
	"github.com/couchcryptid/wage-level-map/internal/observability"
	"github.com/couchcryptid/wage-level-map/internal/pipeline"
)

// StateReader exposes the orchestrator's state to the UI.
type StateReader interface {
	Snapshot() pipeline.State
	ClearError()
}

// Selector accepts user selection changes.
type Selector interface {
	SetOccupation(code string) error
	SetSalary(annual float64) error
	Selection() (string, float64)
}

// RenderedLayer is the surface the session renders into.
type RenderedLayer interface {
	Current() (domain.Layer, bool)
	Rule() (domain.StyleRule, bool)
	Lookup(stateFP, name string) (domain.CountyDetail, error)
}

// CountyLocator resolves a coordinate to a county identity.
type CountyLocator interface {
	LookupCounty(ctx context.Context, lat, lon float64) (mapbox.County, error)
}

// Deps are the components the API routes are served from. Locator is nil
// when Mapbox is disabled.
type Deps struct {
	Session  *pipeline.MapSession
	State    StateReader
	Selector Selector
	Layer    RenderedLayer
	Loader   pipeline.WageTableLoader
	Locator  CountyLocator
	Metrics  *observability.Metrics
}

// Server exposes health, readiness, metrics, and the map API.
type Server struct {
	httpServer *http.Server
	deps       Deps
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, and
// the /api/v1 routes.
func NewServer(addr string, deps Deps, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		deps:   deps,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(deps.Session))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/v1/levels/{code}", s.handleClassify)
	mux.HandleFunc("GET /api/v1/legend", s.handleLegend)

	mux.HandleFunc("GET /api/v1/session", s.handleState)
	mux.HandleFunc("PUT /api/v1/session/occupation", s.handleSetOccupation)
	mux.HandleFunc("PUT /api/v1/session/salary", s.handleSetSalary)
	mux.HandleFunc("DELETE /api/v1/session/error", s.handleClearError)
	mux.HandleFunc("GET /api/v1/session/layer", s.handleLayer)
	mux.HandleFunc("GET /api/v1/session/style", s.handleStyle)
	mux.HandleFunc("GET /api/v1/session/counties/{statefp}/{name}", s.handleCounty)
	mux.HandleFunc("GET /api/v1/session/click", s.handleClick)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// Package api wires the HTTP routes of the eclipse service.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/star/eclipse/internal/auth"
	"github.com/star/eclipse/internal/catalog"
	"github.com/star/eclipse/internal/health"
	"github.com/star/eclipse/internal/metrics"
	"github.com/star/eclipse/internal/pathcache"
	"github.com/star/eclipse/internal/stream"
)

// CatalogConfig controls remote catalog refreshes.
type CatalogConfig struct {
	EnableFetch bool
	SourceURL   string
	CacheDir    string
	MaxFiles    int
}

// Deps are the services behind the routes.
type Deps struct {
	Store   *catalog.Store
	Paths   *pathcache.Cache
	Stream  *stream.Handler
	Catalog CatalogConfig
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(addr string, logger *slog.Logger, authCfg auth.Config, deps Deps) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           NewHandler(logger, authCfg, deps),
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      60 * time.Second, // first path traces take seconds; streams clear it
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// NewHandler builds the routed handler with its middleware chain:
// metrics -> logging -> auth -> mux.
func NewHandler(logger *slog.Logger, authCfg auth.Config, deps Deps) http.Handler {
	mux := http.NewServeMux()
	logger = logger.With("component", "api")

	fetcher := catalog.NewFetcher(deps.Catalog.SourceURL, logger)
	var diskCache *catalog.Cache
	if deps.Catalog.CacheDir != "" {
		diskCache = catalog.NewCache(deps.Catalog.CacheDir, deps.Catalog.MaxFiles, logger)
	}

	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(func() error {
		if deps.Store.Get() == nil {
			return catalog.ErrNoCatalog
		}
		return nil
	}))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/v1/catalog/metadata", catalogMetadataHandler(deps.Store))
	mux.HandleFunc("POST /api/v1/catalog/fetch", catalogFetchHandler(logger, deps.Store, deps.Catalog, fetcher, diskCache))
	mux.HandleFunc("GET /api/v1/cache/stats", cacheStatsHandler(deps.Paths))

	mux.HandleFunc("GET /api/v1/eclipses", listEclipsesHandler(deps.Store))
	mux.HandleFunc("GET /api/v1/eclipses/{id}", eclipseHandler(deps.Paths))
	mux.HandleFunc("GET /api/v1/eclipses/{id}/circumstances", circumstancesHandler(deps.Paths))
	mux.HandleFunc("GET /api/v1/eclipses/{id}/paths", pathsHandler(deps.Paths))
	mux.HandleFunc("POST /api/v1/eclipses/{id}/select", selectHandler(deps.Paths))
	mux.HandleFunc("GET /api/v1/eclipses/{id}/shadow", shadowHandler(deps.Paths))
	if deps.Stream != nil {
		mux.HandleFunc("GET /api/v1/eclipses/{id}/shadow/stream", deps.Stream.HandleShadow)
	}

	var handler http.Handler = mux
	handler = auth.Middleware(authCfg)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = metrics.Middleware(handler)
	return handler
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

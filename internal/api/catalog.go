package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/star/eclipse/internal/catalog"
	"github.com/star/eclipse/internal/geo"
	"github.com/star/eclipse/internal/httputil"
)

type eclipseSummary struct {
	ID       string       `json:"id"`
	Date     string       `json:"date"`
	Type     string       `json:"type"`
	Central  bool         `json:"central"`
	Midpoint geo.Position `json:"midpoint"`
}

// listEclipsesHandler lists the loaded catalog.
// GET /api/v1/eclipses
func listEclipsesHandler(store *catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ds := store.Get()
		if ds == nil {
			httputil.WriteError(w, http.StatusServiceUnavailable, "catalog not loaded")
			return
		}
		out := make([]eclipseSummary, len(ds.Eclipses))
		for i, e := range ds.Eclipses {
			out[i] = eclipseSummary{
				ID:       e.ID,
				Date:     e.Date,
				Type:     e.Type,
				Central:  e.Central(),
				Midpoint: e.Midpoint,
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"eclipses": out})
	}
}

// catalogMetadataHandler describes the loaded catalog.
// GET /api/v1/catalog/metadata
func catalogMetadataHandler(store *catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ds := store.Get()
		if ds == nil {
			httputil.WriteError(w, http.StatusServiceUnavailable, "catalog not loaded")
			return
		}
		meta := map[string]any{
			"source":   ds.Source,
			"eclipses": len(ds.Eclipses),
		}
		if !ds.FetchedAt.IsZero() {
			meta["fetched_at"] = ds.FetchedAt.UTC().Format(time.RFC3339)
			meta["age_seconds"] = int(store.AgeSeconds())
		}
		httputil.WriteJSON(w, http.StatusOK, meta)
	}
}

// catalogFetchHandler refreshes the catalog from the configured source.
// POST /api/v1/catalog/fetch
func catalogFetchHandler(logger *slog.Logger, store *catalog.Store, cfg CatalogConfig, f *catalog.Fetcher, cache *catalog.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !cfg.EnableFetch || cfg.SourceURL == "" {
			httputil.WriteError(w, http.StatusForbidden, "catalog fetch disabled")
			return
		}

		ds, err := catalog.Refresh(r.Context(), f, cache, store, logger)
		if err != nil {
			logger.Warn("catalog fetch failed", "source", cfg.SourceURL, "error", err)
			httputil.WriteError(w, http.StatusBadGateway, err.Error())
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"source":     ds.Source,
			"eclipses":   len(ds.Eclipses),
			"fetched_at": ds.FetchedAt.Format(time.RFC3339),
		})
	}
}

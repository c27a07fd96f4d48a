package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/star/eclipse/internal/catalog"
	"github.com/star/eclipse/internal/eclipse"
	"github.com/star/eclipse/internal/geo"
	"github.com/star/eclipse/internal/httputil"
	"github.com/star/eclipse/internal/pathcache"
	"github.com/star/eclipse/internal/transform"
)

// engineFor resolves the {id} path value, writing the error response when
// the eclipse cannot be served.
func engineFor(w http.ResponseWriter, r *http.Request, cache *pathcache.Cache) (*eclipse.Engine, bool) {
	e, err := cache.Engine(r.PathValue("id"))
	if err != nil {
		writeLookupError(w, err)
		return nil, false
	}
	return e, true
}

func writeLookupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrUnknownEclipse):
		httputil.WriteError(w, http.StatusNotFound, "unknown eclipse")
	case errors.Is(err, catalog.ErrNoCatalog):
		httputil.WriteError(w, http.StatusServiceUnavailable, "catalog not loaded")
	default:
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
	}
}

type window struct {
	StartJD float64   `json:"start_jd"`
	EndJD   float64   `json:"end_jd"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

func shadowWindow(e *eclipse.Engine, penumbral bool) *window {
	start, end, ok := e.ShadowWindow(penumbral)
	if !ok {
		return nil
	}
	return &window{
		StartJD: start,
		EndJD:   end,
		Start:   transform.FromJulianDate(start).UTC(),
		End:     transform.FromJulianDate(end).UTC(),
	}
}

// eclipseHandler returns one catalog record with its shadow contact
// windows.
// GET /api/v1/eclipses/{id}
func eclipseHandler(cache *pathcache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, ok := engineFor(w, r, cache)
		if !ok {
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"eclipse":  e.Eclipse(),
			"penumbra": shadowWindow(e, true),
			"umbra":    shadowWindow(e, false),
		})
	}
}

// circumstancesHandler evaluates the eclipse at one location.
// GET /api/v1/eclipses/{id}/circumstances?lat=&lon=&alt=
func circumstancesHandler(cache *pathcache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lat, err := httputil.FloatParam(r, "lat", 0, -90, 90, true)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		lon, err := httputil.FloatParam(r, "lon", 0, -180, 180, true)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		alt, err := httputil.FloatParam(r, "alt", 0, -500, 10000, false)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		e, ok := engineFor(w, r, cache)
		if !ok {
			return
		}
		httputil.WriteJSON(w, http.StatusOK, e.EvaluateLocalCircumstances(lat, lon, alt))
	}
}

// pathsHandler returns every traced boundary curve as GeoJSON, tracing on
// first request.
// GET /api/v1/eclipses/{id}/paths
func pathsHandler(cache *pathcache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		set, err := cache.Paths(r.Context(), r.PathValue("id"))
		if err != nil {
			if r.Context().Err() != nil {
				return
			}
			writeLookupError(w, err)
			return
		}

		curves := set.Curves()
		features := make([]geo.Feature, len(curves))
		for i, c := range curves {
			features[i] = geo.CurveFeature(c)
		}
		httputil.WriteJSON(w, http.StatusOK, geo.NewFeatureCollection(features...))
	}
}

// selectHandler makes an eclipse the active one, cancelling the trace of
// the previously selected eclipse.
// POST /api/v1/eclipses/{id}/select
func selectHandler(cache *pathcache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := cache.Select(r.PathValue("id"))
		if err != nil {
			writeLookupError(w, err)
			return
		}
		status := "tracing"
		select {
		case <-job.Done():
			status = "ready"
		default:
		}
		httputil.WriteJSON(w, http.StatusAccepted, map[string]string{
			"eclipse": job.ID(),
			"status":  status,
		})
	}
}

// shadowHandler returns the penumbra (default) or umbra outline at one
// instant, given as a UT Julian Day (jd) or an RFC 3339 time (t). The
// eclipse is traced first when its paths are not cached. The collection is
// empty when the shadow is off the Earth.
// GET /api/v1/eclipses/{id}/shadow?jd=&umbra=
func shadowHandler(cache *pathcache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		umbra, err := httputil.BoolParam(r, "umbra", false)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		var jd float64
		if v := r.URL.Query().Get("t"); v != "" {
			ts, err := time.Parse(time.RFC3339, v)
			if err != nil {
				httputil.WriteError(w, http.StatusBadRequest, "invalid t parameter, must be RFC 3339")
				return
			}
			jd = transform.JulianDate(ts)
		} else {
			jd, err = httputil.FloatParam(r, "jd", 0, 0, 1e7, true)
			if err != nil {
				httputil.WriteError(w, http.StatusBadRequest, err.Error())
				return
			}
		}

		e, ok := engineFor(w, r, cache)
		if !ok {
			return
		}
		// The traced limits bound the grid scan; an unbounded umbra scan
		// costs far more than the trace.
		if _, err := cache.Paths(r.Context(), r.PathValue("id")); err != nil {
			if r.Context().Err() != nil {
				return
			}
			writeLookupError(w, err)
			return
		}
		poly, err := e.BuildShadowPolygon(r.Context(), jd, !umbra)
		if err != nil {
			if r.Context().Err() != nil {
				return
			}
			httputil.WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}

		fc := geo.NewFeatureCollection()
		if poly != nil {
			fc = geo.NewFeatureCollection(geo.PolygonFeature(poly))
		}
		httputil.WriteJSON(w, http.StatusOK, fc)
	}
}

// cacheStatsHandler reports path cache statistics.
// GET /api/v1/cache/stats
func cacheStatsHandler(cache *pathcache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, cache.Stats())
	}
}

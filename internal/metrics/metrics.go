// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eclipse_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eclipse_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	localEvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eclipse_local_evaluations_total",
			Help: "Local circumstance evaluations by resulting eclipse type.",
		},
		[]string{"type"},
	)

	traceDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eclipse_trace_duration_seconds",
			Help:    "Boundary curve tracing duration in seconds.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"curve"},
	)

	shadowBuildSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eclipse_shadow_build_duration_seconds",
			Help:    "Shadow polygon build duration in seconds.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"shadow"},
	)

	pathCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eclipse_path_cache_lookups_total",
			Help: "Path cache lookups by result.",
		},
		[]string{"result"},
	)

	pathCacheEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "eclipse_path_cache_entries",
		Help: "Number of traced path sets held in the cache.",
	})

	streamConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "eclipse_stream_connections",
		Help: "Open shadow stream connections.",
	})

	streamMessagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eclipse_stream_messages_total",
		Help: "Shadow stream events sent.",
	})

	streamBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eclipse_stream_bytes_total",
		Help: "Shadow stream payload bytes sent.",
	})

	catalogEclipses = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "eclipse_catalog_eclipses",
		Help: "Number of eclipses in the loaded catalog.",
	})

	catalogFetchedAt = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "eclipse_catalog_fetched_timestamp_seconds",
		Help: "Unix time the loaded catalog was fetched.",
	})
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		localEvaluationsTotal,
		traceDurationSeconds,
		shadowBuildSeconds,
		pathCacheLookups,
		pathCacheEntries,
		streamConnections,
		streamMessagesTotal,
		streamBytesTotal,
		catalogEclipses,
		catalogFetchedAt,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveLocal counts one local circumstance evaluation.
func ObserveLocal(eclipseType string) {
	localEvaluationsTotal.WithLabelValues(eclipseType).Inc()
}

// ObserveTrace records how long tracing one curve kind took.
func ObserveTrace(curve string, d time.Duration) {
	traceDurationSeconds.WithLabelValues(curve).Observe(d.Seconds())
}

// ObserveShadow records one shadow polygon build.
func ObserveShadow(penumbral bool, d time.Duration) {
	label := "umbra"
	if penumbral {
		label = "penumbra"
	}
	shadowBuildSeconds.WithLabelValues(label).Observe(d.Seconds())
}

// PathCacheHit and PathCacheMiss count path cache lookups.
func PathCacheHit()  { pathCacheLookups.WithLabelValues("hit").Inc() }
func PathCacheMiss() { pathCacheLookups.WithLabelValues("miss").Inc() }

// SetPathCacheEntries reports the path cache size.
func SetPathCacheEntries(n int) { pathCacheEntries.Set(float64(n)) }

// StreamOpened and StreamClosed track open stream connections.
func StreamOpened() { streamConnections.Inc() }
func StreamClosed() { streamConnections.Dec() }

// StreamSent counts one stream event of n bytes.
func StreamSent(n int) {
	streamMessagesTotal.Inc()
	streamBytesTotal.Add(float64(n))
}

// SetCatalog reports the loaded catalog size and fetch time.
func SetCatalog(eclipses int, fetchedAt time.Time) {
	catalogEclipses.Set(float64(eclipses))
	if !fetchedAt.IsZero() {
		catalogFetchedAt.Set(float64(fetchedAt.Unix()))
	}
}

var exactRoutes = map[string]bool{
	"/":                        true,
	"/healthz":                 true,
	"/readyz":                  true,
	"/metrics":                 true,
	"/api/v1/eclipses":         true,
	"/api/v1/catalog/fetch":    true,
	"/api/v1/catalog/metadata": true,
	"/api/v1/cache/stats":      true,
}

var eclipseSubroutes = map[string]bool{
	"":              true,
	"circumstances": true,
	"paths":         true,
	"shadow":        true,
	"select":        true,
	"shadow/stream": true,
}

// normalizeRoute maps a request path onto a bounded set of route labels so
// ids in the path do not explode label cardinality.
func normalizeRoute(path string) string {
	if exactRoutes[path] {
		return path
	}
	const prefix = "/api/v1/eclipses/"
	if rest, ok := strings.CutPrefix(path, prefix); ok {
		id, sub, _ := strings.Cut(rest, "/")
		if id != "" && eclipseSubroutes[sub] {
			if sub == "" {
				return prefix + "{id}"
			}
			return prefix + "{id}/" + sub
		}
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush lets streaming handlers flush through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the wrapped writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		route := normalizeRoute(r.URL.Path)
		httpRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(rw.statusCode)).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

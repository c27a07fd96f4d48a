// Package stream implements Server-Sent Events (SSE) streaming of eclipse
// shadow outlines. Clients connect via GET /api/v1/eclipses/{id}/shadow/stream
// and receive one frame per time step from first to last penumbral contact,
// paced in wall-clock time.
//
// SSE message format:
//
//	id: 3
//	data: {"type":"shadow","seq":3,"jd":2460409.2,"t":"2024-04-08T16:48:00Z","shadows":{...}}\n\n
//
// The shadows field is a GeoJSON feature collection holding the penumbra
// and, while it touches the Earth, the umbra. First message is always
// metadata:
//
//	data: {"type":"metadata","stream_id":"...","eclipse":"2024-04-08","p1_jd":...,"frames":40}\n\n
//
// The stream ends with {"type":"end"}. Keep-alive comments (:\n\n) are sent
// every KeepaliveInterval while frames are slow to build. Shadow frames
// carry their seq as the event id; a client reconnecting with
// Last-Event-ID resumes at the following frame.
package stream

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/star/eclipse/internal/catalog"
	"github.com/star/eclipse/internal/eclipse"
	"github.com/star/eclipse/internal/geo"
	"github.com/star/eclipse/internal/httputil"
	"github.com/star/eclipse/internal/metrics"
	"github.com/star/eclipse/internal/paths"
	"github.com/star/eclipse/internal/transform"
)

// Config holds streaming configuration loaded from environment variables.
type Config struct {
	MaxConcurrentPerIP int           // Max concurrent streams per IP (default: 10).
	KeepaliveInterval  time.Duration // Keep-alive ping interval (default: 30s).
	TrustProxy         bool          // Take the client IP from proxy headers.
}

// Source provides per-eclipse engines and their traced paths.
type Source interface {
	Engine(id string) (*eclipse.Engine, error)
	Paths(ctx context.Context, id string) (*paths.Set, error)
}

// Handler manages SSE streaming connections.
type Handler struct {
	source  Source
	store   *catalog.Store
	config  Config
	limiter *streamLimiter
	logger  *slog.Logger
}

// NewHandler creates a new streaming handler.
func NewHandler(source Source, store *catalog.Store, config Config, logger *slog.Logger) *Handler {
	if config.MaxConcurrentPerIP <= 0 {
		config.MaxConcurrentPerIP = 10
	}
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = 30 * time.Second
	}
	return &Handler{
		source:  source,
		store:   store,
		config:  config,
		limiter: newStreamLimiter(config.MaxConcurrentPerIP),
		logger:  logger,
	}
}

type params struct {
	step     int // minutes of eclipse time per frame
	interval time.Duration
	umbra    bool
}

func parseParams(r *http.Request) (params, error) {
	p := params{step: 5, interval: time.Second, umbra: true}
	q := r.URL.Query()

	if v := q.Get("step"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 60 {
			return p, errors.New("invalid step parameter, must be 1-60 minutes")
		}
		p.step = n
	}
	if v := q.Get("interval"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 50 || n > 10000 {
			return p, errors.New("invalid interval parameter, must be 50-10000 ms")
		}
		p.interval = time.Duration(n) * time.Millisecond
	}
	if v := q.Get("umbra"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return p, errors.New("invalid umbra parameter, must be a boolean")
		}
		p.umbra = b
	}
	return p, nil
}

// HandleShadow serves the SSE shadow stream.
// GET /api/v1/eclipses/{id}/shadow/stream?step=5&interval=1000&umbra=true
func (h *Handler) HandleShadow(w http.ResponseWriter, r *http.Request) {
	p, err := parseParams(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := r.PathValue("id")
	engine, err := h.source.Engine(id)
	switch {
	case errors.Is(err, catalog.ErrUnknownEclipse):
		httputil.WriteError(w, http.StatusNotFound, "unknown eclipse")
		return
	case err != nil:
		httputil.WriteError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	p1, p4, ok := engine.ShadowWindow(true)
	if !ok {
		httputil.WriteError(w, http.StatusUnprocessableEntity, "penumbra never touches the Earth")
		return
	}

	ip := httputil.ClientIP(r, h.config.TrustProxy)
	lease, err := h.limiter.admit(ip)
	if err != nil {
		status, retryAfter := http.StatusTooManyRequests, "30"
		if errors.Is(err, errServerFull) {
			status, retryAfter = http.StatusServiceUnavailable, "60"
		}
		h.logger.Warn("stream rejected",
			"remote_ip", ip,
			"open_streams", h.limiter.count(ip),
			"reason", err,
		)
		w.Header().Set("Retry-After", retryAfter)
		httputil.WriteError(w, status, err.Error())
		return
	}

	streamID := uuid.NewString()
	metrics.StreamOpened()
	startTime := time.Now()
	frames := frameTimes(p1, p4, p.step)
	first := resumeFrom(r, len(frames))
	h.logger.Info("stream connected",
		"stream_id", streamID,
		"eclipse", id,
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
		"step_minutes", p.step,
		"first_seq", first,
	)

	defer func() {
		lease.Release()
		metrics.StreamClosed()
		h.logger.Info("stream disconnected",
			"stream_id", streamID,
			"remote_ip", ip,
			"duration_seconds", int(time.Since(startTime).Seconds()),
		)
	}()

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Clear the server's WriteTimeout for this long-lived connection.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	ew := &eventWriter{
		w:       w,
		flusher: flusher,
		rc:      rc,
		logger:  h.logger,
	}

	// Jittered retry interval (3-7s) spreads reconnects after a restart.
	if err := ew.retry(time.Duration(3000+rand.Intn(4000)) * time.Millisecond); err != nil {
		return
	}

	meta := metadataMessage{
		Type:        "metadata",
		StreamID:    streamID,
		Eclipse:     id,
		EclipseType: engine.Eclipse().Type,
		Start:       p1,
		End:         p4,
		StepMinutes: p.step,
		Frames:      len(frames),
		FirstSeq:    first,
		CatalogAge:  -1,
	}
	if ds := h.store.Get(); ds != nil && !ds.FetchedAt.IsZero() {
		meta.CatalogAge = int(time.Since(ds.FetchedAt).Seconds())
	}
	if err := ew.event(-1, meta); err != nil {
		h.logger.Warn("stream send error (metadata)", "stream_id", streamID, "error", err)
		return
	}

	ctx := r.Context()
	// Traced paths bound the shadow scans; without them the whole globe is
	// scanned.
	if _, err := h.source.Paths(ctx, id); err != nil {
		if ctx.Err() != nil {
			return
		}
		h.logger.Warn("streaming without traced paths", "eclipse", id, "error", err)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	keepaliveTicker := time.NewTicker(h.config.KeepaliveInterval)
	defer keepaliveTicker.Stop()

	for seq := first; seq < len(frames); {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			msg, err := buildFrame(ctx, engine, seq, frames[seq], p.umbra)
			if err != nil {
				if ctx.Err() == nil {
					h.logger.Warn("stream frame failed", "stream_id", streamID, "seq", seq, "error", err)
				}
				return
			}
			if err := ew.event(seq, msg); err != nil {
				h.logger.Warn("stream send error", "stream_id", streamID, "error", err)
				return
			}
			seq++
			keepaliveTicker.Reset(h.config.KeepaliveInterval)

		case <-keepaliveTicker.C:
			if err := ew.keepalive(); err != nil {
				h.logger.Warn("stream keepalive error", "stream_id", streamID, "error", err)
				return
			}
		}
	}

	if err := ew.event(-1, endMessage{Type: "end", Frames: len(frames)}); err != nil {
		h.logger.Warn("stream send error (end)", "stream_id", streamID, "error", err)
	}
}

// resumeFrom returns the first frame to send. A reconnecting client
// reports the last frame it received in Last-Event-ID.
func resumeFrom(r *http.Request, frames int) int {
	n, err := strconv.Atoi(r.Header.Get("Last-Event-ID"))
	if err != nil || n < 0 {
		return 0
	}
	return min(n+1, frames)
}

// frameTimes returns Julian Days from start to end inclusive, stepMinutes
// apart. The last frame is always end.
func frameTimes(start, end float64, stepMinutes int) []float64 {
	step := float64(stepMinutes) / (24 * 60)
	n := int(math.Ceil((end - start) / step))
	out := make([]float64, 0, n+1)
	for i := 0; i < n; i++ {
		out = append(out, start+float64(i)*step)
	}
	return append(out, end)
}

// buildFrame builds the shadow outlines at jd.
func buildFrame(ctx context.Context, e *eclipse.Engine, seq int, jd float64, umbra bool) (shadowMessage, error) {
	msg := shadowMessage{
		Type: "shadow",
		Seq:  seq,
		JD:   jd,
		T:    transform.FromJulianDate(jd).UTC().Format(time.RFC3339),
	}

	var features []geo.Feature
	pen, err := e.BuildShadowPolygon(ctx, jd, true)
	if err != nil {
		return msg, err
	}
	if pen != nil {
		features = append(features, geo.PolygonFeature(pen))
	}
	if umbra {
		um, err := e.BuildShadowPolygon(ctx, jd, false)
		if err != nil {
			return msg, err
		}
		if um != nil {
			features = append(features, geo.PolygonFeature(um))
		}
	}
	msg.Shadows = geo.NewFeatureCollection(features...)
	return msg, nil
}

// SSE message payload types.

type metadataMessage struct {
	Type        string  `json:"type"`
	StreamID    string  `json:"stream_id"`
	Eclipse     string  `json:"eclipse"`
	EclipseType string  `json:"eclipse_type"`
	Start       float64 `json:"p1_jd"`
	End         float64 `json:"p4_jd"`
	StepMinutes int     `json:"step_minutes"`
	Frames      int     `json:"frames"`
	FirstSeq    int     `json:"first_seq"`
	CatalogAge  int     `json:"catalog_age_seconds"`
}

type shadowMessage struct {
	Type    string                `json:"type"`
	Seq     int                   `json:"seq"`
	JD      float64               `json:"jd"`
	T       string                `json:"t"`
	Shadows geo.FeatureCollection `json:"shadows"`
}

type endMessage struct {
	Type   string `json:"type"`
	Frames int    `json:"frames"`
}

package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/star/eclipse/internal/catalog"
	"github.com/star/eclipse/internal/config"
	"github.com/star/eclipse/internal/eclipse"
	"github.com/star/eclipse/internal/paths"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

// fakeSource serves engines built from the builtin catalog without
// traced paths, so shadow scans cover the whole globe on a coarse grid.
type fakeSource struct {
	engines  map[string]*eclipse.Engine
	engErr   error
	pathsErr error
}

func (f *fakeSource) Engine(id string) (*eclipse.Engine, error) {
	if f.engErr != nil {
		return nil, f.engErr
	}
	e, ok := f.engines[id]
	if !ok {
		return nil, catalog.ErrUnknownEclipse
	}
	return e, nil
}

func (f *fakeSource) Paths(ctx context.Context, id string) (*paths.Set, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, f.pathsErr
}

func testStore(t *testing.T) *catalog.Store {
	t.Helper()
	ds, err := catalog.Builtin(testLogger())
	if err != nil {
		t.Fatal(err)
	}
	store := catalog.NewStore()
	store.Set(catalog.NewDataset("test", time.Date(2026, 2, 6, 3, 45, 0, 0, time.UTC), ds.Eclipses))
	return store
}

func testSource(t *testing.T, store *catalog.Store) *fakeSource {
	t.Helper()
	cfg := config.Default()
	cfg.Shadow.GridStep = 10
	cfg.Shadow.UmbraGridStep = 10
	src := &fakeSource{engines: map[string]*eclipse.Engine{}}
	for _, e := range store.Get().Eclipses {
		src.engines[e.ID] = eclipse.New(e, cfg, testLogger())
	}
	return src
}

func testConfig() Config {
	return Config{
		MaxConcurrentPerIP: 10,
		KeepaliveInterval:  30 * time.Second,
	}
}

// serve routes the request through a mux so the {id} path value is set.
func serve(h *Handler, req *http.Request) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/eclipses/{id}/shadow/stream", h.HandleShadow)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func dataMessages(t *testing.T, body string) []map[string]any {
	t.Helper()
	var out []map[string]any
	scanner := bufio.NewScanner(strings.NewReader(body))
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<24)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var msg map[string]any
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &msg); err != nil {
			t.Errorf("invalid JSON in SSE data line: %v", err)
			continue
		}
		out = append(out, msg)
	}
	return out
}

// TestHandleShadow_FullStream runs a stream from P1 to P4 and checks the
// message sequence: metadata, one frame per step, end.
func TestHandleShadow_FullStream(t *testing.T) {
	store := testStore(t)
	h := NewHandler(testSource(t, store), store, testConfig(), testLogger())

	req := httptest.NewRequest("GET", "/api/v1/eclipses/2024-04-08/shadow/stream?step=60&interval=50&umbra=false", nil)
	req.RemoteAddr = "127.0.0.1:12345"
	w := serve(h, req)

	resp := w.Result()
	if resp.Header.Get("Content-Type") != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", resp.Header.Get("Content-Type"))
	}
	if resp.Header.Get("Cache-Control") != "no-cache" {
		t.Errorf("Cache-Control = %q, want no-cache", resp.Header.Get("Cache-Control"))
	}

	msgs := dataMessages(t, w.Body.String())
	if len(msgs) < 3 {
		t.Fatalf("got %d messages, want at least 3", len(msgs))
	}

	meta := msgs[0]
	if meta["type"] != "metadata" {
		t.Fatalf("first message type = %v, want metadata", meta["type"])
	}
	if meta["eclipse"] != "2024-04-08" || meta["eclipse_type"] != "Total" {
		t.Errorf("metadata eclipse = %v/%v", meta["eclipse"], meta["eclipse_type"])
	}
	if id, _ := meta["stream_id"].(string); len(id) != 36 {
		t.Errorf("stream_id = %q, want a UUID", id)
	}
	frames := int(meta["frames"].(float64))

	last := msgs[len(msgs)-1]
	if last["type"] != "end" {
		t.Errorf("last message type = %v, want end", last["type"])
	}
	shadows := msgs[1 : len(msgs)-1]
	if len(shadows) != frames {
		t.Fatalf("got %d frames, metadata announced %d", len(shadows), frames)
	}

	prevJD := 0.0
	withPenumbra := 0
	for i, m := range shadows {
		if m["type"] != "shadow" || int(m["seq"].(float64)) != i {
			t.Errorf("frame %d: type %v seq %v", i, m["type"], m["seq"])
		}
		jd := m["jd"].(float64)
		if jd <= prevJD {
			t.Errorf("frame %d: jd %v not after %v", i, jd, prevJD)
		}
		prevJD = jd
		fc := m["shadows"].(map[string]any)
		if n := len(fc["features"].([]any)); n > 0 {
			withPenumbra++
		}
	}
	if withPenumbra == 0 {
		t.Error("no frame carried a penumbra polygon")
	}

	// Lines are "id: ...", "data: ...", "retry: ...", ":" or blank.
	ids := 0
	for _, line := range strings.Split(w.Body.String(), "\n") {
		switch {
		case strings.HasPrefix(line, "id: "):
			ids++
		case line == "", line == ":", strings.HasPrefix(line, "data: "), strings.HasPrefix(line, "retry: "):
		default:
			t.Errorf("unexpected SSE line: %q", line)
		}
	}
	if ids != frames {
		t.Errorf("got %d event ids, want one per frame (%d)", ids, frames)
	}
	if n := h.limiter.active(); n != 0 {
		t.Errorf("limiter active = %d after stream end, want 0", n)
	}
}

// TestHandleShadow_Resume skips the frames a reconnecting client has
// already seen.
func TestHandleShadow_Resume(t *testing.T) {
	store := testStore(t)
	h := NewHandler(testSource(t, store), store, testConfig(), testLogger())

	req := httptest.NewRequest("GET", "/api/v1/eclipses/2024-04-08/shadow/stream?step=60&interval=50&umbra=false", nil)
	req.Header.Set("Last-Event-ID", "1")
	w := serve(h, req)

	msgs := dataMessages(t, w.Body.String())
	if len(msgs) < 3 {
		t.Fatalf("got %d messages, want at least 3", len(msgs))
	}
	meta := msgs[0]
	if got := int(meta["first_seq"].(float64)); got != 2 {
		t.Errorf("first_seq = %d, want 2", got)
	}
	frames := int(meta["frames"].(float64))
	if got := len(msgs) - 2; got != frames-2 {
		t.Errorf("got %d frames after resume, want %d", got, frames-2)
	}
	if seq := int(msgs[1]["seq"].(float64)); seq != 2 {
		t.Errorf("first resumed seq = %d, want 2", seq)
	}
	if !strings.Contains(w.Body.String(), "id: 2\ndata: ") {
		t.Error("resumed frame missing its event id")
	}
}

func TestResumeFrom(t *testing.T) {
	tests := []struct {
		header string
		want   int
	}{
		{"", 0},
		{"abc", 0},
		{"-3", 0},
		{"0", 1},
		{"4", 5},
		{"99", 10},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/", nil)
		if tt.header != "" {
			req.Header.Set("Last-Event-ID", tt.header)
		}
		if got := resumeFrom(req, 10); got != tt.want {
			t.Errorf("resumeFrom(%q) = %d, want %d", tt.header, got, tt.want)
		}
	}
}

// TestHandleShadow_ClientGone stops after metadata when the request context
// is already cancelled.
func TestHandleShadow_ClientGone(t *testing.T) {
	store := testStore(t)
	h := NewHandler(testSource(t, store), store, testConfig(), testLogger())

	req := httptest.NewRequest("GET", "/api/v1/eclipses/2017-08-21/shadow/stream", nil)
	ctx, cancel := context.WithCancel(req.Context())
	cancel()
	w := serve(h, req.WithContext(ctx))

	msgs := dataMessages(t, w.Body.String())
	if len(msgs) != 1 || msgs[0]["type"] != "metadata" {
		t.Errorf("expected metadata only, got %v", msgs)
	}
}

func TestHandleShadow_Errors(t *testing.T) {
	store := testStore(t)
	src := testSource(t, store)

	tests := []struct {
		name string
		path string
		src  Source
		want int
	}{
		{"unknown eclipse", "/api/v1/eclipses/1999-08-11/shadow/stream", src, http.StatusNotFound},
		{"bad step", "/api/v1/eclipses/2024-04-08/shadow/stream?step=0", src, http.StatusBadRequest},
		{"step too large", "/api/v1/eclipses/2024-04-08/shadow/stream?step=100", src, http.StatusBadRequest},
		{"step non-numeric", "/api/v1/eclipses/2024-04-08/shadow/stream?step=abc", src, http.StatusBadRequest},
		{"bad interval", "/api/v1/eclipses/2024-04-08/shadow/stream?interval=5", src, http.StatusBadRequest},
		{"bad umbra", "/api/v1/eclipses/2024-04-08/shadow/stream?umbra=maybe", src, http.StatusBadRequest},
		{"no catalog", "/api/v1/eclipses/2024-04-08/shadow/stream", &fakeSource{engErr: catalog.ErrNoCatalog}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(tt.src, store, testConfig(), testLogger())
			req := httptest.NewRequest("GET", tt.path, nil)
			w := serve(h, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}
		})
	}
}

// TestRateLimitHTTPResponse verifies 429 response when limit exceeded.
func TestRateLimitHTTPResponse(t *testing.T) {
	store := testStore(t)
	cfg := testConfig()
	cfg.MaxConcurrentPerIP = 1
	h := NewHandler(testSource(t, store), store, cfg, testLogger())

	// Hold the only slot for this IP.
	lease, err := h.limiter.admit("10.0.0.1")
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	defer lease.Release()

	req := httptest.NewRequest("GET", "/api/v1/eclipses/2024-04-08/shadow/stream", nil)
	req.RemoteAddr = "10.0.0.1:54321"
	w := serve(h, req)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if w.Header().Get("Retry-After") != "30" {
		t.Errorf("Retry-After = %q, want 30", w.Header().Get("Retry-After"))
	}
}

func TestServerFullHTTPResponse(t *testing.T) {
	store := testStore(t)
	h := NewHandler(testSource(t, store), store, testConfig(), testLogger())
	h.limiter.maxTotal = 1

	lease, err := h.limiter.admit("10.0.0.7")
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	defer lease.Release()

	req := httptest.NewRequest("GET", "/api/v1/eclipses/2024-04-08/shadow/stream", nil)
	req.RemoteAddr = "10.0.0.1:54321"
	w := serve(h, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
	if w.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q, want 60", w.Header().Get("Retry-After"))
	}
}

func TestTrustProxyLimitsForwardedIP(t *testing.T) {
	store := testStore(t)
	cfg := testConfig()
	cfg.MaxConcurrentPerIP = 1
	cfg.TrustProxy = true
	h := NewHandler(testSource(t, store), store, cfg, testLogger())
	lease, err := h.limiter.admit("1.2.3.4")
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	defer lease.Release()

	req := httptest.NewRequest("GET", "/api/v1/eclipses/2024-04-08/shadow/stream", nil)
	req.RemoteAddr = "10.0.0.9:1234"
	req.Header.Set("X-Forwarded-For", "1.2.3.4")
	if w := serve(h, req); w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
}

func TestFrameTimes(t *testing.T) {
	start := 2460409.0
	end := start + 1.0/24 // one hour
	got := frameTimes(start, end, 20)
	if len(got) != 4 {
		t.Fatalf("frames = %d, want 4", len(got))
	}
	if got[0] != start || got[3] != end {
		t.Errorf("frames %v should start at %v and end at %v", got, start, end)
	}

	// A step longer than the window still yields both ends.
	got = frameTimes(start, end, 90)
	if len(got) != 2 || got[0] != start || got[1] != end {
		t.Errorf("frames = %v", got)
	}
}

func TestNewHandlerDefaults(t *testing.T) {
	h := NewHandler(&fakeSource{}, catalog.NewStore(), Config{}, testLogger())
	if h.config.MaxConcurrentPerIP != 10 {
		t.Errorf("MaxConcurrentPerIP = %d, want 10", h.config.MaxConcurrentPerIP)
	}
	if h.config.KeepaliveInterval != 30*time.Second {
		t.Errorf("KeepaliveInterval = %v, want 30s", h.config.KeepaliveInterval)
	}
}

// TestRateLimiting verifies per-IP concurrent stream limits.
func TestRateLimiting(t *testing.T) {
	limiter := newStreamLimiter(3)

	var held []*lease
	for i := 0; i < 3; i++ {
		l, err := limiter.admit("10.0.0.1")
		if err != nil {
			t.Fatalf("admit %d: %v", i+1, err)
		}
		held = append(held, l)
	}
	if _, err := limiter.admit("10.0.0.1"); !errors.Is(err, errClientLimit) {
		t.Errorf("admit beyond limit: err = %v, want errClientLimit", err)
	}
	if _, err := limiter.admit("10.0.0.2"); err != nil {
		t.Errorf("different IP should not be rate limited: %v", err)
	}

	held[0].Release()
	if _, err := limiter.admit("10.0.0.1"); err != nil {
		t.Errorf("admit after release: %v", err)
	}
	if c := limiter.count("10.0.0.1"); c != 3 {
		t.Errorf("count = %d, want 3", c)
	}
	if c := limiter.active(); c != 4 {
		t.Errorf("active = %d, want 4", c)
	}

	// Dropping an unknown IP is a no-op.
	limiter.drop("10.0.0.9")
	if c := limiter.active(); c != 4 {
		t.Errorf("active after stray drop = %d, want 4", c)
	}
}

func TestLeaseReleaseOnce(t *testing.T) {
	limiter := newStreamLimiter(3)
	a, err := limiter.admit("10.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := limiter.admit("10.0.0.1"); err != nil {
		t.Fatal(err)
	}

	a.Release()
	a.Release()
	if c := limiter.count("10.0.0.1"); c != 1 {
		t.Errorf("count after double release = %d, want 1", c)
	}
}

func TestRateLimitingGlobalCap(t *testing.T) {
	limiter := newStreamLimiter(5)
	limiter.maxTotal = 2
	for _, ip := range []string{"a", "b"} {
		if _, err := limiter.admit(ip); err != nil {
			t.Fatalf("admit %s: %v", ip, err)
		}
	}
	if _, err := limiter.admit("c"); !errors.Is(err, errServerFull) {
		t.Errorf("admit beyond the global cap: err = %v, want errServerFull", err)
	}
}

// TestRateLimitingConcurrent verifies rate limiter thread safety.
func TestRateLimitingConcurrent(t *testing.T) {
	limiter := newStreamLimiter(100)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l, err := limiter.admit("10.0.0.1"); err == nil {
				defer l.Release()
				time.Sleep(10 * time.Millisecond)
			}
		}()
	}
	wg.Wait()

	if c := limiter.count("10.0.0.1"); c != 0 {
		t.Errorf("count after all released = %d, want 0", c)
	}
}

func TestMessagesJSON(t *testing.T) {
	data, err := json.Marshal(endMessage{Type: "end", Frames: 3})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"type":"end","frames":3}` {
		t.Errorf("end message = %s", data)
	}

	if _, err := parseParams(httptest.NewRequest("GET", "/?step=10&interval=200&umbra=0", nil)); err != nil {
		t.Errorf("valid params rejected: %v", err)
	}
	if _, err := parseParams(httptest.NewRequest("GET", "/?interval=x", nil)); err == nil {
		t.Error("non-numeric interval accepted")
	}
}

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h := Middleware(Config{Enabled: true, Token: "s3cret"})(next)

	tests := []struct {
		name   string
		method string
		path   string
		header string
		want   int
	}{
		{"probe is public", "GET", "/healthz", "", http.StatusNoContent},
		{"metrics is public", "GET", "/metrics", "", http.StatusNoContent},
		{"eclipse list is public", "GET", "/api/v1/eclipses", "", http.StatusNoContent},
		{"eclipse reads are public", "GET", "/api/v1/eclipses/2024-04-08/paths", "", http.StatusNoContent},
		{"head is a read", "HEAD", "/api/v1/eclipses/2024-04-08", "", http.StatusNoContent},
		{"select needs a token", "POST", "/api/v1/eclipses/2024-04-08/select", "", http.StatusUnauthorized},
		{"select with token", "POST", "/api/v1/eclipses/2024-04-08/select", "Bearer s3cret", http.StatusNoContent},
		{"fetch needs a token", "POST", "/api/v1/catalog/fetch", "", http.StatusUnauthorized},
		{"wrong token", "POST", "/api/v1/catalog/fetch", "Bearer nope", http.StatusUnauthorized},
		{"missing scheme", "POST", "/api/v1/catalog/fetch", "s3cret", http.StatusUnauthorized},
		{"empty bearer", "POST", "/api/v1/catalog/fetch", "Bearer ", http.StatusUnauthorized},
		{"valid token", "POST", "/api/v1/catalog/fetch", "Bearer s3cret", http.StatusNoContent},
		{"cache stats needs a token", "GET", "/api/v1/cache/stats", "", http.StatusUnauthorized},
		{"unknown paths need a token", "GET", "/debug/pprof", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if w.Code == http.StatusUnauthorized && w.Header().Get("WWW-Authenticate") == "" {
				t.Error("401 without WWW-Authenticate challenge")
			}
		})
	}
}

func TestMiddlewareDisabled(t *testing.T) {
	h := Middleware(Config{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("POST", "/api/v1/catalog/fetch", nil))
	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
}

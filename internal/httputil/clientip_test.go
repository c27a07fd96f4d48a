package httputil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientIPRemoteAddr(t *testing.T) {
	tests := []struct {
		remoteAddr string
		want       string
	}{
		{"192.168.1.1:12345", "192.168.1.1"},
		{"[::1]:12345", "::1"},
		{"[::ffff:10.1.2.3]:80", "10.1.2.3"},
		{"[fe80::1%eth0]:8080", "fe80::1"},
		{"192.168.1.1", "192.168.1.1"},
		{"pipe", "pipe"},
	}
	for _, tt := range tests {
		r := &http.Request{RemoteAddr: tt.remoteAddr}
		assert.Equal(t, tt.want, ClientIP(r, false), tt.remoteAddr)
	}
}

func TestClientIPTrustProxy(t *testing.T) {
	tests := []struct {
		name string
		xff  string
		xri  string
		want string
	}{
		{"forwarded single", "203.0.113.7", "", "203.0.113.7"},
		{"forwarded chain takes leftmost", "203.0.113.7, 10.0.0.1, 10.0.0.2", "", "203.0.113.7"},
		{"real ip when not forwarded", "", "198.51.100.4", "198.51.100.4"},
		{"forwarded beats real ip", "203.0.113.7", "198.51.100.4", "203.0.113.7"},
		{"garbage forwarded falls through", "unknown", "198.51.100.4", "198.51.100.4"},
		{"garbage everywhere uses peer", "unknown", "nope", "10.0.0.9"},
		{"no headers uses peer", "", "", "10.0.0.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = "10.0.0.9:4000"
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			assert.Equal(t, tt.want, ClientIP(r, true))
		})
	}
}

func TestClientIPIgnoresHeadersWhenNotTrusted(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.9:4000"
	r.Header.Set("X-Forwarded-For", "203.0.113.7")
	r.Header.Set("X-Real-IP", "198.51.100.4")

	assert.Equal(t, "10.0.0.9", ClientIP(r, false))
}

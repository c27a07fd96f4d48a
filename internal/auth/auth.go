// Package auth enforces Bearer token authentication. Reads of eclipse data
// and probes are public; every other request needs the token.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/star/eclipse/internal/httputil"
)

// Config holds authentication configuration.
type Config struct {
	Enabled bool
	Token   string
}

// publicReads are the paths any client may GET.
var publicReads = map[string]bool{
	"/healthz":                 true,
	"/readyz":                  true,
	"/metrics":                 true,
	"/api/v1/eclipses":         true,
	"/api/v1/catalog/metadata": true,
}

const eclipsePrefix = "/api/v1/eclipses/"

// Public reports whether r may be served without a token. Only GET and
// HEAD qualify; selecting an eclipse or refreshing the catalog changes
// server state and is always authenticated.
func Public(r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return false
	}
	return publicReads[r.URL.Path] || strings.HasPrefix(r.URL.Path, eclipsePrefix)
}

// Middleware returns an HTTP middleware that enforces Bearer token auth
// on non-public requests when auth is enabled.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	want := []byte(cfg.Token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || Public(r) {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" || subtle.ConstantTimeCompare([]byte(token), want) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="eclipse"`)
				httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

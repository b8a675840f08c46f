// Package api implements the notegraph read API using chi.
package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// tokenParam lets EventSource clients, which cannot set headers, authenticate.
const tokenParam = "access_token"

// AuthMiddleware enforces a shared token when enabled. The token is taken
// from "Authorization: Bearer <token>" or, failing that, the access_token
// query parameter.
func AuthMiddleware(enabled bool, token string) func(http.Handler) http.Handler {
	want := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}
			got := requestToken(r)
			if got == "" || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="notegraph"`)
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestToken(r *http.Request) string {
	if auth, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(auth)
	}
	return r.URL.Query().Get(tokenParam)
}

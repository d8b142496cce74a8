package server

import (
	"net/http"
	"strings"

	"mindgate/internal/core"
)

// AuthMiddleware checks the Bearer master key. An empty key or "1" allows all requests.
func AuthMiddleware(masterKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if masterKey == "" || masterKey == "1" {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, core.NewAuthenticationError("missing authorization header"))
				return
			}

			const prefix = "Bearer "
			if !strings.HasPrefix(authHeader, prefix) {
				writeError(w, core.NewAuthenticationError("invalid authorization header format, expected 'Bearer <token>'"))
				return
			}

			if strings.TrimPrefix(authHeader, prefix) != masterKey {
				writeError(w, core.NewAuthenticationError("invalid master key"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// CORSMiddleware opens every route to browsers and answers preflight requests
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

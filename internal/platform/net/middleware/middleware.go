// Package middleware bundles the chi and in-house middlewares the ops API mounts
package middleware

import (
	"compress/flate"
	"net/http"
	"time"

	pnet "tubesense/internal/platform/net"

	chimw "github.com/go-chi/chi/v5/middleware"
	chicors "github.com/go-chi/cors"
)

// RequestID attaches or propagates X-Request-ID and copies it onto the logger context
func RequestID(next http.Handler) http.Handler {
	return chimw.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := pnet.RequestID(r.Context())
		if id != "" {
			w.Header().Set("X-Request-ID", id)
		}
		next.ServeHTTP(w, r.WithContext(pnet.WithRequest(r.Context(), id)))
	}))
}

// Timeout cancels the request context after d
func Timeout(d time.Duration) func(http.Handler) http.Handler { return chimw.Timeout(d) }

// CORSOptions is a narrow surface over go-chi/cors
type CORSOptions struct {
	AllowedOrigins []string
	AllowedMethods []string
	MaxAge         int
}

// CORS wraps go-chi/cors; the API is read-mostly so only GET, POST and OPTIONS default in
func CORS(o CORSOptions) func(http.Handler) http.Handler {
	methods := o.AllowedMethods
	if len(methods) == 0 {
		methods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	}
	origins := o.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return chicors.Handler(chicors.Options{
		AllowedOrigins: origins,
		AllowedMethods: methods,
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         o.MaxAge,
	})
}

// Defaults is the stack every API router starts with
func Defaults(timeout time.Duration) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		chimw.RealIP,
		RequestID,
		RecoverJSON,
		AccessLog(AccessLogOptions{Slow: 500 * time.Millisecond}),
		Timeout(timeout),
		chimw.Compress(flate.DefaultCompression),
		chimw.NoCache,
	}
}

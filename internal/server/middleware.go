package server

import (
	"net/http"

	"github.com/charmbracelet/log"
)

// RequestLogger returns [Middleware] that logs each request served by the
// callback listener at debug level.
func RequestLogger(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.Debug("callback listener request", "method", r.Method, "path", r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}
}

// Package middleware provides HTTP middleware for the catalog API.
package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/ldxinsight/catalog/internal/logging"
)

// Logger logs one line per request with the chi request ID attached.
//
// Log fields:
//   - method, path, status
//   - bytes: response body size
//   - duration_ms: request processing time
//   - ip: client address after TrustedRealIP
//   - user_agent
//
// Server errors log at error level, client errors at warn and the rest at
// info.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(ww, r)

		level := slog.LevelInfo
		switch {
		case ww.status >= 500:
			level = slog.LevelError
		case ww.status >= 400:
			level = slog.LevelWarn
		}

		logging.FromContext(r.Context()).Log(r.Context(), level, "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.status,
			"bytes", ww.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", r.RemoteAddr,
			"user_agent", r.UserAgent(),
		)
	})
}

// responseWriter records the status code and body size.
type responseWriter struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.status = status
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

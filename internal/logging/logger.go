// Package logging configures log/slog for the service and the offline
// exporter, and ties log entries to chi request IDs.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
)

// Setup installs the default logger writing to stdout.
//
// Level is debug, info, warn or error (default info); format is text or
// json (default text).
func Setup(level, format string) *slog.Logger {
	logger := New(os.Stdout, level, format)
	slog.SetDefault(logger)
	return logger
}

// New builds a logger for w without installing it.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler).With("service", "ldx-catalog")
}

// ParseLevel maps a level name to slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// FromContext returns the default logger, tagged with the request ID when
// ctx carries one from chi's RequestID middleware.
//
//	logging.FromContext(r.Context()).Info("dataset created", "id", d.ID)
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		logger = logger.With("request_id", reqID)
	}
	return logger
}

// WithFields returns a request logger carrying extra fields for the length
// of one operation.
//
//	log := logging.WithFields(ctx, "dataset_id", id)
//	log.Debug("origin resolved", "origin", o)
func WithFields(ctx context.Context, args ...any) *slog.Logger {
	return FromContext(ctx).With(args...)
}

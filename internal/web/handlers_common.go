package web

// Shared helpers for the handlers in this package.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/ldxinsight/catalog/internal/export"
)

// maxBodySize caps dataset create and update bodies.
const maxBodySize = 1 << 20

// parseIntParam parses an integer query parameter, returning defaultVal when
// it is missing, malformed or below minVal.
func parseIntParam(r *http.Request, name string, defaultVal, minVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < minVal {
		return defaultVal
	}
	return i
}

// writeJSON encodes v as JSON with the given status.
// Encoding errors are only logged since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

// decodeJSON reads a bounded JSON body into v. Failures wrap errBadRequest.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodySize)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data after JSON value", errBadRequest)
	}
	return nil
}

// writeArtifact sends an export artifact as a download.
func writeArtifact(w http.ResponseWriter, a *export.Artifact) {
	h := w.Header()
	h.Set("Content-Type", a.MediaType)
	h.Set("Content-Disposition", contentDisposition(a.Disposition, a.Filename))
	if a.NoCache {
		h.Set("Cache-Control", "no-cache")
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(a.Body); err != nil {
		slog.Debug("artifact write failed", "filename", a.Filename, "error", err)
	}
}

// contentDisposition formats the header value; non-ASCII names are encoded
// as filename*=utf-8''... by mime.FormatMediaType.
func contentDisposition(disposition, filename string) string {
	if disposition == "" {
		disposition = "attachment"
	}
	if v := mime.FormatMediaType(disposition, map[string]string{"filename": filename}); v != "" {
		return v
	}
	return disposition
}

// baseURL is the externally visible scheme and host of the API.
func (s *Server) baseURL(r *http.Request) string {
	if u := strings.TrimRight(s.cfg.Server.PublicURL, "/"); u != "" {
		return u
	}
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

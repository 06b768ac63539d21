package web

// errors.go maps internal errors to the JSON (or CSV) bodies clients see.
//
// Every error response carries a support code:
//
//	DS001  dataset not found
//	DS002  invalid dataset input
//	DS003  dataset has no data source
//	DS004  data source unreachable or blocked
//	EXP001 too many concurrent exports
//	REQ001 request cancelled
//	REQ002 request timed out
//	REQ003 malformed request body
//	RATE001 rate limited
//	AUTH001 / AUTH002 missing / invalid API key
//	ERR000 anything else; the technical error is only in the logs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ldxinsight/catalog/internal/dataset"
	"github.com/ldxinsight/catalog/internal/export"
	"github.com/ldxinsight/catalog/internal/logging"
)

// UserMessage is the client-facing description of an error.
type UserMessage struct {
	Message string
	Action  string
	Code    string
}

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

var errBadRequest = errors.New("malformed request body")

var (
	msgNotFound    = UserMessage{"Dataset not found", "Check the dataset identifier", "DS001"}
	msgInvalid     = UserMessage{"Dataset is missing required fields", "Provide title, source and dataUrl", "DS002"}
	msgNoSource    = UserMessage{"Dataset has no data source", "The dataset metadata is still available", "DS003"}
	msgUnavailable = UserMessage{"Dataset content could not be retrieved", "Try again later or download the metadata", "DS004"}
	msgBusy        = UserMessage{"The server is busy with other downloads", "Please wait a moment and try again", "EXP001"}
	msgCancelled   = UserMessage{"Request was cancelled", "Please try again", "REQ001"}
	msgTimeout     = UserMessage{"Request timed out", "Please try again later", "REQ002"}
	msgBadRequest  = UserMessage{"Request body is not valid JSON", "Send a JSON object with the dataset fields", "REQ003"}
	msgRateLimited = UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001"}
	msgUnknown     = UserMessage{"An unexpected error occurred", "Please try again or contact support", "ERR000"}
)

// MapError converts an error to its user message. The more specific
// sentinels are checked first: an OriginNotFoundError also matches
// dataset.ErrNotFound.
func MapError(err error) UserMessage {
	var noSource *export.OriginNotFoundError
	switch {
	case err == nil:
		return UserMessage{}
	case errors.As(err, &noSource):
		return msgNoSource
	case errors.Is(err, dataset.ErrNotFound):
		return msgNotFound
	case errors.Is(err, dataset.ErrInvalid):
		return msgInvalid
	case errors.Is(err, export.ErrUnavailable), errors.Is(err, export.ErrBlockedContent):
		return msgUnavailable
	case errors.Is(err, export.ErrBusy):
		return msgBusy
	case errors.Is(err, errBadRequest):
		return msgBadRequest
	case errors.Is(err, context.Canceled):
		return msgCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return msgTimeout
	case strings.Contains(strings.ToLower(err.Error()), "rate limit"):
		return msgRateLimited
	}
	return msgUnknown
}

// statusFor picks the HTTP status for err.
func statusFor(err error) int {
	switch MapError(err).Code {
	case msgNotFound.Code, msgNoSource.Code, msgUnavailable.Code:
		return http.StatusNotFound
	case msgInvalid.Code, msgBadRequest.Code:
		return http.StatusBadRequest
	case msgBusy.Code:
		return http.StatusServiceUnavailable
	case msgTimeout.Code:
		return http.StatusGatewayTimeout
	case msgRateLimited.Code:
		return http.StatusTooManyRequests
	case msgCancelled.Code:
		// The client is gone; the status is for the access log only.
		return 499
	}
	return http.StatusInternalServerError
}

// respondError logs the technical error and writes the mapped message.
// Downloads of CSV (by path or Accept header) get a CSV error document so
// spreadsheet clients can show it.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := MapError(err)

	log := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", msg.Code,
		"error", err.Error(),
	}
	if status >= http.StatusInternalServerError {
		log.Error("request error", attrs...)
	} else {
		log.Warn("request error", attrs...)
	}

	if errors.Is(err, export.ErrBusy) {
		w.Header().Set("Retry-After", "5")
	}
	if wantsCSV(r) {
		respondErrorCSV(w, status, msg)
		return
	}
	respondErrorJSON(w, status, msg)
}

func respondErrorJSON(w http.ResponseWriter, status int, msg UserMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(status),
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

func respondErrorCSV(w http.ResponseWriter, status int, msg UserMessage) {
	w.Header().Set("Content-Type", export.CSVMediaType)
	w.WriteHeader(status)
	w.Write([]byte(export.CSVLine("error", "message") + export.CSVLine(msg.Code, msg.Message)))
}

// wantsCSV reports whether the client asked for a CSV document.
func wantsCSV(r *http.Request) bool {
	p := r.URL.Path
	return strings.HasSuffix(p, ".csv") || strings.HasSuffix(p, "/csv") ||
		strings.Contains(r.Header.Get("Accept"), "text/csv")
}

package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/ldxinsight/catalog/internal/config"
	"github.com/ldxinsight/catalog/internal/logging"
)

// APIKeyHeader carries the client's API key.
const APIKeyHeader = "X-API-Key"

// authError has the same shape as the API's other error bodies.
type authError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// APIKeyAuth guards catalog writes with the X-API-Key header.
// With RequireAPIKey off every request passes; with it on and no keys
// configured every request is rejected.
func APIKeyAuth(cfg *config.SecurityConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.RequireAPIKey {
				next.ServeHTTP(w, r)
				return
			}

			log := logging.FromContext(r.Context()).With(
				"path", r.URL.Path,
				"method", r.Method,
				"remote_addr", r.RemoteAddr,
			)

			key := r.Header.Get(APIKeyHeader)
			if key == "" {
				log.Warn("auth: missing API key")
				writeAuthError(w, http.StatusUnauthorized, authError{
					Message: "API key required",
					Action:  "Send your key in the X-API-Key header",
					Code:    "AUTH001",
				})
				return
			}
			if !isValidAPIKey(key, cfg.APIKeys) {
				log.Warn("auth: invalid API key")
				writeAuthError(w, http.StatusForbidden, authError{
					Message: "API key is not valid",
					Action:  "Check the key or ask an administrator for a new one",
					Code:    "AUTH002",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeAuthError(w http.ResponseWriter, status int, body authError) {
	body.Error = http.StatusText(status)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// isValidAPIKey compares key against every configured key in constant time,
// whichever key (if any) matches.
func isValidAPIKey(key string, validKeys []string) bool {
	valid := 0
	for _, validKey := range validKeys {
		valid |= subtle.ConstantTimeCompare([]byte(key), []byte(validKey))
	}
	return valid == 1
}

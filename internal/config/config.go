// Package config loads the catalog service configuration from environment
// variables. Every field has a tag-driven default, and Load validates the
// whole tree at startup so misconfiguration fails before the listener opens.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Export   ExportConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" default:"8080"`

	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"90s"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown, including draining exports.
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is applied by the router's timeout middleware.
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`

	// PublicURL is the externally visible base URL used in download links.
	// When empty, links are built from the request's Host header.
	PublicURL string `env:"SERVER_PUBLIC_URL"`
}

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DatabaseConfig selects and tunes the metadata store.
type DatabaseConfig struct {
	// Driver is postgres or sqlite.
	Driver string `env:"DATABASE_DRIVER" default:"postgres"`

	// URL is a PostgreSQL connection string, or a file path (or ":memory:")
	// for sqlite.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"20"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// ExportConfig tunes the export pipeline.
type ExportConfig struct {
	// DataDir is searched for <id>.json and <slug>.json when a dataset has
	// no stored data URL.
	DataDir string `env:"LDX_DATA_DIR" envAlt:"EXPORT_DATA_DIR" default:"/mnt/data"`

	// FetchTimeout bounds one remote request or file read.
	FetchTimeout time.Duration `env:"EXPORT_FETCH_TIMEOUT" default:"15s"`

	// MaxBytes is the largest payload accepted from an origin (default 50MiB).
	MaxBytes int64 `env:"EXPORT_MAX_BYTES" default:"52428800"`

	UserAgent string `env:"EXPORT_USER_AGENT" default:"Ldx-Insight/1.0 (+go)"`

	// MaxConcurrent and MaxWaitTime size the export limiter.
	MaxConcurrent int           `env:"EXPORT_MAX_CONCURRENT" default:"8"`
	MaxWaitTime   time.Duration `env:"EXPORT_MAX_WAIT_TIME" default:"10s"`
}

// RateLimitConfig holds per-IP request limits.
type RateLimitConfig struct {
	Enabled           bool `env:"RATE_LIMIT_ENABLED" default:"true"`
	RequestsPerMinute int  `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// ExportLimit is requests per minute for download endpoints.
	ExportLimit int `env:"RATE_LIMIT_EXPORT" default:"30"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of proxy CIDRs whose
	// X-Real-IP / X-Forwarded-For headers are believed.
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey guards catalog writes with the X-API-Key header.
	RequireAPIKey bool     `env:"REQUIRE_API_KEY" default:"false"`
	APIKeys       []string `env:"API_KEYS"`

	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is debug, info, warn or error.
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is text or json.
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

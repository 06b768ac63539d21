package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Load reads configuration from the process environment, applies defaults
// and validates the result.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom is Load with a custom variable lookup. Tests and the offline
// exporter use it to layer overrides on top of the environment.
func LoadFrom(getenv func(string) string) (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem(), getenv); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// loadStruct populates tagged fields, descending into nested sections.
func loadStruct(v reflect.Value, getenv func(string) string) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct {
			if err := loadStruct(fieldVal, getenv); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		if envName == "" {
			continue
		}

		value := getenv(envName)
		if value == "" {
			if alt := field.Tag.Get("envAlt"); alt != "" {
				value = getenv(alt)
			}
		}
		if value == "" {
			if field.Tag.Get("required") == "true" {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = field.Tag.Get("default")
		}
		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// setField parses value into the field's kind.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(strings.TrimSpace(value))

	case reflect.Int, reflect.Int64:
		if field.Type() == durationType {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.SetInt(int64(d))
			return nil
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(n)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		var items []string
		for _, p := range strings.Split(value, ",") {
			if p = strings.TrimSpace(p); p != "" {
				items = append(items, p)
			}
		}
		field.Set(reflect.ValueOf(items))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.MaxConns <= 0 {
			add("DB_MAX_CONNS must be positive")
		}
		if c.Database.MinConns < 0 {
			add("DB_MIN_CONNS must be non-negative")
		}
		if c.Database.MaxConns < c.Database.MinConns {
			add("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)", c.Database.MaxConns, c.Database.MinConns)
		}
	case DriverSQLite:
	default:
		add("DATABASE_DRIVER (%q) must be one of: %s, %s", c.Database.Driver, DriverPostgres, DriverSQLite)
	}
	if c.Database.URL == "" {
		add("DATABASE_URL is required")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		add("SERVER_PORT (%d) must be 1-65535", c.Server.Port)
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		add("SERVER_READ_TIMEOUT and SERVER_WRITE_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		add("SERVER_SHUTDOWN_TIMEOUT must be positive")
	}
	if c.Server.PublicURL != "" && !strings.HasPrefix(c.Server.PublicURL, "http") {
		add("SERVER_PUBLIC_URL (%q) must be an http(s) URL", c.Server.PublicURL)
	}

	if strings.TrimSpace(c.Export.DataDir) == "" {
		add("LDX_DATA_DIR must not be empty")
	}
	if c.Export.FetchTimeout <= 0 {
		add("EXPORT_FETCH_TIMEOUT must be positive")
	}
	if c.Export.MaxBytes <= 0 {
		add("EXPORT_MAX_BYTES must be positive")
	}
	if c.Export.MaxConcurrent <= 0 {
		add("EXPORT_MAX_CONCURRENT must be positive")
	}
	if c.Export.MaxWaitTime <= 0 {
		add("EXPORT_MAX_WAIT_TIME must be positive")
	}

	if c.Rate.Enabled && (c.Rate.RequestsPerMinute <= 0 || c.Rate.ExportLimit <= 0) {
		add("RATE_LIMIT_REQUESTS_PER_MINUTE and RATE_LIMIT_EXPORT must be positive when rate limiting is enabled")
	}

	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		add("REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		add("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format)
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// String renders the config for logs with the database URL masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Server: {Addr: %q}, Database: {Driver: %s, URL: [MASKED], MaxConns: %d}, "+
			"Export: {DataDir: %q, FetchTimeout: %s, MaxBytes: %d, MaxConcurrent: %d}, "+
			"Rate: {Enabled: %v, RequestsPerMinute: %d}, Logging: {Level: %q, Format: %q}}",
		c.Server.Addr(), c.Database.Driver, c.Database.MaxConns,
		c.Export.DataDir, c.Export.FetchTimeout, c.Export.MaxBytes, c.Export.MaxConcurrent,
		c.Rate.Enabled, c.Rate.RequestsPerMinute, c.Logging.Level, c.Logging.Format,
	)
}

// Package config provides centralized configuration for the validator binaries.
// Settings come from environment variables (optionally seeded from a .env file)
// with defaults, and are validated once at startup so a bad deployment fails fast.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
// It is built once in main and passed by reference; nothing reads the
// environment after Load returns.
type Config struct {
	Paths    PathsConfig
	Server   ServerConfig
	Database DatabaseConfig
	Engine   EngineConfig
	Schedule ScheduleConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// PathsConfig locates the schema, the staged input and every artifact the
// pipeline writes.
type PathsConfig struct {
	// SchemaPath is the declarative rule set (default: configs/ingestion_config.yml)
	SchemaPath string `env:"SCHEMA_PATH" default:"configs/ingestion_config.yml"`

	// StagedPath is where the ingest step places the CSV under validation
	StagedPath string `env:"STAGED_PATH" default:"data/staged.csv"`

	// ReportDir receives <input stem>_result.json reports
	ReportDir string `env:"REPORT_DIR" default:"validation_results"`

	// TransformsDir holds *.sql scripts run by the transform step
	TransformsDir string `env:"TRANSFORMS_DIR" default:"sql/transforms"`

	// SQLitePath is the local database the transform step writes
	SQLitePath string `env:"SQLITE_PATH" default:"data/loyalty.db"`

	// DDLPath is executed before a warehouse load, if it exists
	DDLPath string `env:"DDL_PATH" default:"sql/ddl/create_tables_postgres.sql"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"120s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout bounds a single request, validation included (default: 110s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"110s"`
}

// DatabaseConfig holds PostgreSQL settings for the warehouse loader and the
// run history. Both are optional; an empty URL disables them.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// WarehouseTable is the load target (default: raw_transactions)
	WarehouseTable string `env:"WAREHOUSE_TABLE" default:"raw_transactions"`
}

// Enabled reports whether a database has been configured.
func (c DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// EngineConfig tunes the validation engine.
type EngineConfig struct {
	// Parallel runs the rule classes concurrently (default: false)
	Parallel bool `env:"ENGINE_PARALLEL" default:"false"`

	// MaxConcurrentRuns bounds simultaneous validations in the server (default: 2)
	MaxConcurrentRuns int `env:"RUN_MAX_CONCURRENT" default:"2"`

	// MaxWaitTime is how long a request waits for a run slot (default: 30s)
	MaxWaitTime time.Duration `env:"RUN_MAX_WAIT_TIME" default:"30s"`

	// RunTimeout bounds a single validation run (default: 10m)
	RunTimeout time.Duration `env:"ENGINE_RUN_TIMEOUT" default:"10m"`
}

// ScheduleConfig drives unattended validation of the staged file.
type ScheduleConfig struct {
	// Cron is a standard 5-field cron expression; empty disables scheduling
	Cron string `env:"VALIDATE_CRON"`

	// WatchStaged re-validates whenever the staged file is written
	WatchStaged bool `env:"WATCH_STAGED" default:"false"`

	// Debounce collapses bursts of file events (default: 500ms)
	Debounce time.Duration `env:"WATCH_DEBOUNCE" default:"500ms"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey enables X-API-Key checking on the API routes
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

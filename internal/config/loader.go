package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// LookupFunc resolves an environment variable. os.Getenv satisfies it.
type LookupFunc func(string) string

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom is Load with an explicit variable source. Every malformed
// variable is reported, not just the first.
func LoadFrom(lookup LookupFunc) (*Config, error) {
	cfg := &Config{}

	var errs []error
	walkFields(reflect.ValueOf(cfg).Elem(), func(f reflect.StructField, v reflect.Value) {
		if err := applyEnv(f, v, lookup); err != nil {
			errs = append(errs, err)
		}
	})
	if len(errs) > 0 {
		return nil, fmt.Errorf("config load: %w", errors.Join(errs...))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// walkFields calls fn for every settable leaf field tagged with env,
// descending into nested section structs.
func walkFields(v reflect.Value, fn func(reflect.StructField, reflect.Value)) {
	t := v.Type()
	for i := range t.NumField() {
		f, fv := t.Field(i), v.Field(i)
		switch {
		case !fv.CanSet():
		case f.Type.Kind() == reflect.Struct:
			walkFields(fv, fn)
		case f.Tag.Get("env") != "":
			fn(f, fv)
		}
	}
}

// applyEnv resolves env, then envAlt, then default, and stores the result.
func applyEnv(f reflect.StructField, v reflect.Value, lookup LookupFunc) error {
	name := f.Tag.Get("env")
	raw := lookup(name)
	if raw == "" {
		if alt := f.Tag.Get("envAlt"); alt != "" {
			raw = lookup(alt)
		}
	}
	if raw == "" && f.Tag.Get("required") == "true" {
		return fmt.Errorf("%s is required", name)
	}
	if raw == "" {
		raw = f.Tag.Get("default")
	}
	if raw == "" {
		return nil
	}

	parse, ok := parsers[f.Type]
	if !ok {
		return fmt.Errorf("%s: unsupported field type %s", name, f.Type)
	}
	parsed, err := parse(raw)
	if err != nil {
		return fmt.Errorf("%s=%q: %w", name, raw, err)
	}
	v.Set(reflect.ValueOf(parsed).Convert(f.Type))
	return nil
}

// parsers convert variable text into field values, keyed by field type.
var parsers = map[reflect.Type]func(string) (any, error){
	reflect.TypeFor[string](): func(s string) (any, error) { return s, nil },
	reflect.TypeFor[int](): func(s string) (any, error) {
		return strconv.Atoi(strings.TrimSpace(s))
	},
	reflect.TypeFor[bool](): func(s string) (any, error) {
		return strconv.ParseBool(strings.TrimSpace(s))
	},
	reflect.TypeFor[time.Duration](): func(s string) (any, error) {
		return time.ParseDuration(strings.TrimSpace(s))
	},
	reflect.TypeFor[[]string](): func(s string) (any, error) {
		var out []string
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	},
}

// Validate checks cross-field rules that the loader cannot. All problems
// are returned together, one per line.
func (c *Config) Validate() error {
	var p problems

	p.check(strings.TrimSpace(c.Paths.SchemaPath) != "", "SCHEMA_PATH must not be empty")
	p.check(strings.TrimSpace(c.Paths.ReportDir) != "", "REPORT_DIR must not be empty")

	p.check(c.Server.Port > 0 && c.Server.Port <= 65535, "SERVER_PORT (%d) must be 1-65535", c.Server.Port)
	p.check(c.Server.ReadTimeout >= 0, "SERVER_READ_TIMEOUT must be non-negative")
	p.check(c.Server.ShutdownTimeout > 0, "SERVER_SHUTDOWN_TIMEOUT must be positive")

	if c.Database.Enabled() {
		p.check(c.Database.MaxConns > 0, "DB_MAX_CONNS must be positive")
		p.check(c.Database.MinConns >= 0, "DB_MIN_CONNS must be non-negative")
		p.check(c.Database.MaxConns >= c.Database.MinConns,
			"DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)", c.Database.MaxConns, c.Database.MinConns)
	}
	p.check(strings.TrimSpace(c.Database.WarehouseTable) != "", "WAREHOUSE_TABLE must not be empty")

	p.check(c.Engine.MaxConcurrentRuns > 0, "RUN_MAX_CONCURRENT must be positive")
	p.check(c.Engine.MaxWaitTime > 0, "RUN_MAX_WAIT_TIME must be positive")
	p.check(c.Engine.RunTimeout > 0, "ENGINE_RUN_TIMEOUT must be positive")

	if c.Schedule.Cron != "" {
		_, err := cron.ParseStandard(c.Schedule.Cron)
		p.check(err == nil, "VALIDATE_CRON (%q) is not a valid cron expression: %v", c.Schedule.Cron, err)
	}
	p.check(!c.Schedule.WatchStaged || c.Schedule.Debounce >= 0, "WATCH_DEBOUNCE must be non-negative")

	p.check(!c.Security.RequireAPIKey || len(c.Security.APIKeys) > 0,
		"REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		p.add("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		p.add("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format)
	}

	return p.err()
}

// problems accumulates validation failures.
type problems []string

func (p *problems) add(format string, args ...any) {
	*p = append(*p, fmt.Sprintf(format, args...))
}

func (p *problems) check(ok bool, format string, args ...any) {
	if !ok {
		p.add(format, args...)
	}
}

func (p problems) err() error {
	if len(p) == 0 {
		return nil
	}
	return fmt.Errorf("validation failed:\n  - %s", strings.Join(p, "\n  - "))
}

// String returns a safe string representation of the config for logging.
// The database URL and API keys are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Paths: {Schema: %q, Staged: %q, Reports: %q}, ",
		c.Paths.SchemaPath, c.Paths.StagedPath, c.Paths.ReportDir)
	fmt.Fprintf(&b, "Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port)
	if c.Database.Enabled() {
		fmt.Fprintf(&b, "Database: {URL: [MASKED], MaxConns: %d, Table: %q}, ",
			c.Database.MaxConns, c.Database.WarehouseTable)
	} else {
		b.WriteString("Database: {disabled}, ")
	}
	fmt.Fprintf(&b, "Engine: {Parallel: %v, MaxConcurrentRuns: %d, RunTimeout: %v}, ",
		c.Engine.Parallel, c.Engine.MaxConcurrentRuns, c.Engine.RunTimeout)
	fmt.Fprintf(&b, "Security: {RequireAPIKey: %v, APIKeys: %d}, ",
		c.Security.RequireAPIKey, len(c.Security.APIKeys))
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}

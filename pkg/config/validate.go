package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"mercator-hq/webdev/pkg/telemetry/logging"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Has reports whether field failed validation.
func (e ValidationError) Has(field string) bool {
	for _, err := range e.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	switch cfg.Mode {
	case ModeProduction, ModeDevelopment:
	default:
		errs = append(errs, FieldError{
			Field:   "mode",
			Message: fmt.Sprintf("unknown mode %q (valid: production, development)", cfg.Mode),
		})
	}

	errs = append(errs, validateServer(&cfg.Server)...)

	if cfg.Mode == ModeDevelopment {
		errs = append(errs, validateDevServer(&cfg.DevServer)...)
	} else {
		errs = append(errs, validateUpstream(&cfg.Upstream)...)
		errs = append(errs, validateBuild(&cfg.Build)...)
	}

	errs = append(errs, validateAssets(&cfg.Assets)...)
	errs = append(errs, validateWatch(&cfg.Watch)...)
	errs = append(errs, validateJanitor(&cfg.Janitor)...)
	errs = append(errs, validateHistory(&cfg.History)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

// validateServer validates listener configuration.
func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	} else if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("invalid listen address: %v", err),
		})
	}

	errs = append(errs, positive("server.read_timeout", cfg.ReadTimeout)...)
	errs = append(errs, nonNegative("server.write_timeout", cfg.WriteTimeout)...)
	errs = append(errs, positive("server.idle_timeout", cfg.IdleTimeout)...)
	errs = append(errs, positive("server.shutdown_timeout", cfg.ShutdownTimeout)...)
	errs = append(errs, nonNegative("server.request_timeout", cfg.RequestTimeout)...)

	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_header_bytes",
			Message: "max header bytes must be non-negative",
		})
	}
	if cfg.MaxHeaderBytes > 10*1024*1024 { // 10MB is excessive
		errs = append(errs, FieldError{
			Field:   "server.max_header_bytes",
			Message: "max header bytes exceeds reasonable limit (10MB)",
		})
	}

	if !strings.HasPrefix(cfg.AdminPrefix, "/") || cfg.AdminPrefix == "/" {
		errs = append(errs, FieldError{
			Field:   "server.admin_prefix",
			Message: "admin prefix must start with / and name a path",
		})
	}

	if cfg.CORS.MaxAge < 0 {
		errs = append(errs, FieldError{
			Field:   "server.cors.max_age",
			Message: "max age must be non-negative",
		})
	}
	if cfg.CORS.AllowCredentials {
		for _, origin := range cfg.CORS.AllowedOrigins {
			if origin == "*" {
				errs = append(errs, FieldError{
					Field:   "server.cors.allowed_origins",
					Message: "wildcard origin cannot be combined with allow_credentials",
				})
				break
			}
		}
	}
	if cfg.Compression.MinSize < 0 {
		errs = append(errs, FieldError{
			Field:   "server.compression.min_size",
			Message: "min size must be non-negative",
		})
	}

	return errs
}

// validateUpstream validates the upstream origin.
func validateUpstream(cfg *UpstreamConfig) []FieldError {
	var errs []FieldError

	if cfg.URL == "" {
		errs = append(errs, FieldError{
			Field:   "upstream.url",
			Message: "upstream URL is required",
		})
	} else if u, err := url.Parse(cfg.URL); err != nil {
		errs = append(errs, FieldError{
			Field:   "upstream.url",
			Message: fmt.Sprintf("invalid URL: %v", err),
		})
	} else if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, FieldError{
			Field:   "upstream.url",
			Message: "upstream URL must be an absolute http or https URL",
		})
	}

	errs = append(errs, nonNegative("upstream.response_header_timeout", cfg.ResponseHeaderTimeout)...)
	errs = append(errs, positive("upstream.dial_timeout", cfg.DialTimeout)...)
	errs = append(errs, nonNegative("upstream.idle_conn_timeout", cfg.IdleConnTimeout)...)

	if cfg.MaxIdleConns < 0 {
		errs = append(errs, FieldError{
			Field:   "upstream.max_idle_conns",
			Message: "max idle connections must be non-negative",
		})
	}
	if strings.ContainsAny(cfg.Via, " \t,;\"") {
		errs = append(errs, FieldError{
			Field:   "upstream.via",
			Message: "pseudonym must be a single token",
		})
	}

	return errs
}

// validateBuild validates the build runner settings.
func validateBuild(cfg *BuildConfig) []FieldError {
	var errs []FieldError

	if (cfg.OnDemand || cfg.OnStartup) && strings.TrimSpace(cfg.Command) == "" {
		errs = append(errs, FieldError{
			Field:   "build.command",
			Message: "build command is required when on_demand or on_startup is set",
		})
	}
	if cfg.OutputEnv == "" && cfg.OutputArg == "" {
		errs = append(errs, FieldError{
			Field:   "build.output_env",
			Message: "one of output_env or output_arg is required",
		})
	}

	errs = append(errs, positive("build.timeout", cfg.Timeout)...)

	if cfg.TailLines < 0 {
		errs = append(errs, FieldError{
			Field:   "build.tail_lines",
			Message: "tail lines must be non-negative",
		})
	}

	return errs
}

func validateAssets(cfg *AssetsConfig) []FieldError {
	var errs []FieldError

	if strings.TrimSpace(cfg.Root) == "" {
		errs = append(errs, FieldError{
			Field:   "assets.root",
			Message: "asset root is required",
		})
	}
	if strings.ContainsAny(cfg.Index, `/\`) {
		errs = append(errs, FieldError{
			Field:   "assets.index",
			Message: "index must be a file name",
		})
	}

	return errs
}

func validateDevServer(cfg *DevServerConfig) []FieldError {
	var errs []FieldError

	if strings.TrimSpace(cfg.Command) == "" {
		errs = append(errs, FieldError{
			Field:   "dev_server.command",
			Message: "dev server command is required in development mode",
		})
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		errs = append(errs, FieldError{
			Field:   "dev_server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		})
	}
	errs = append(errs, positive("dev_server.ready_timeout", cfg.ReadyTimeout)...)

	return errs
}

func validateWatch(cfg *WatchConfig) []FieldError {
	if !cfg.Enabled {
		return nil
	}

	var errs []FieldError
	if len(cfg.Paths) == 0 {
		errs = append(errs, FieldError{
			Field:   "watch.paths",
			Message: "at least one path is required when watching is enabled",
		})
	}
	errs = append(errs, positive("watch.debounce", cfg.Debounce)...)
	return errs
}

func validateJanitor(cfg *JanitorConfig) []FieldError {
	if !cfg.Enabled {
		return nil
	}

	var errs []FieldError
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		errs = append(errs, FieldError{
			Field:   "janitor.schedule",
			Message: fmt.Sprintf("invalid cron expression: %v", err),
		})
	}
	errs = append(errs, positive("janitor.max_age", cfg.MaxAge)...)
	return errs
}

func validateHistory(cfg *HistoryConfig) []FieldError {
	if !cfg.Enabled {
		return nil
	}

	var errs []FieldError
	switch cfg.Driver {
	case "sqlite", "sqlite3":
	default:
		errs = append(errs, FieldError{
			Field:   "history.driver",
			Message: fmt.Sprintf("unknown driver %q (valid: sqlite, sqlite3)", cfg.Driver),
		})
	}
	if cfg.Path == "" {
		errs = append(errs, FieldError{
			Field:   "history.path",
			Message: "database path is required",
		})
	}
	errs = append(errs, positive("history.busy_timeout", cfg.BusyTimeout)...)
	if cfg.Retain < 0 {
		errs = append(errs, FieldError{
			Field:   "history.retain",
			Message: "retain must be non-negative",
		})
	}
	return errs
}

// validateTelemetry validates logging, metrics, tracing and health settings.
func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	if _, err := logging.ParseLevel(cfg.Logging.Level); err != nil {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: err.Error(),
		})
	}
	if _, err := logging.ParseFormat(cfg.Logging.Format); err != nil {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: err.Error(),
		})
	}

	for i, b := range cfg.Metrics.RequestDurationBuckets {
		if b <= 0 || (i > 0 && b <= cfg.Metrics.RequestDurationBuckets[i-1]) {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.request_duration_buckets",
				Message: "buckets must be positive and strictly increasing",
			})
			break
		}
	}

	if cfg.Tracing.Enabled {
		switch cfg.Tracing.Sampler {
		case "always", "never", "ratio":
		default:
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sampler",
				Message: fmt.Sprintf("unknown sampler %q (valid: always, never, ratio)", cfg.Tracing.Sampler),
			})
		}
		if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sample_ratio",
				Message: "sample ratio must be between 0.0 and 1.0",
			})
		}
		if cfg.Tracing.Endpoint == "" {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.endpoint",
				Message: "collector endpoint is required when tracing is enabled",
			})
		}
	}

	errs = append(errs, positive("telemetry.health.check_timeout", cfg.Health.CheckTimeout)...)

	return errs
}

func positive(field string, d time.Duration) []FieldError {
	if d <= 0 {
		return []FieldError{{Field: field, Message: "must be positive"}}
	}
	return nil
}

func nonNegative(field string, d time.Duration) []FieldError {
	if d < 0 {
		return []FieldError{{Field: field, Message: "must be non-negative"}}
	}
	return nil
}

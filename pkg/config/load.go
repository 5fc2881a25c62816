package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// EnvPrefix starts every environment override.
const EnvPrefix = "WEBDEV_"

// LoadConfig loads configuration from a YAML or TOML file at the specified
// path. The decoder is chosen by extension: .yaml and .yml use YAML, .toml
// uses TOML. An empty path yields the defaults.
// It applies default values, validates the configuration, and returns any errors.
// The configuration is not modified by environment variables; use LoadConfigWithEnvOverrides
// for that functionality.
func LoadConfig(path string) (*Config, error) {
	cfg, err := decodeFile(path)
	if err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a file and applies
// environment variable overrides. Environment variables follow the naming
// convention WEBDEV_SECTION_FIELD (e.g., WEBDEV_SERVER_LISTEN_ADDRESS).
// Environment variables always take precedence over file-based configuration.
//
// The loading sequence is:
// 1. Start from DefaultConfig
// 2. Decode the file on top
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	return LoadConfigWithOverrides(path, nil)
}

// LoadConfigWithOverrides is LoadConfigWithEnvOverrides with a final
// override step, typically command-line flags, applied after the
// environment and before validation. override may be nil.
func LoadConfigWithOverrides(path string, override func(*Config)) (*Config, error) {
	cfg, err := decodeFile(path)
	if err != nil {
		return nil, err
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if override != nil {
		override(cfg)
	}
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Decode parses data in the given format ("yaml" or "toml") on top of the
// defaults.
func Decode(data []byte, format string) (*Config, error) {
	cfg := DefaultConfig()

	switch format {
	case "yaml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
	case "toml":
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown field %q", undecoded[0].String())
		}
	default:
		return nil, fmt.Errorf("unsupported configuration format %q", format)
	}

	ApplyDefaults(cfg)
	return cfg, nil
}

// FormatForPath maps a file extension to a decoder name.
func FormatForPath(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml", nil
	case ".toml":
		return "toml", nil
	default:
		return "", fmt.Errorf("unsupported configuration file extension %q (want .yaml, .yml or .toml)", filepath.Ext(path))
	}
}

func decodeFile(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Decode(data, format)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}
	return cfg, nil
}

// envSource reads overrides and remembers the first malformed value.
type envSource struct {
	err error
}

func (e *envSource) lookup(name string) (string, bool) {
	val, ok := os.LookupEnv(EnvPrefix + name)
	if !ok || val == "" {
		return "", false
	}
	return val, true
}

func (e *envSource) fail(name, val string, err error) {
	if e.err == nil {
		e.err = &FieldError{
			Field:   EnvPrefix + name,
			Message: fmt.Sprintf("invalid value %q: %v", val, err),
		}
	}
}

func (e *envSource) str(name string, dst *string) {
	if val, ok := e.lookup(name); ok {
		*dst = val
	}
}

func (e *envSource) list(name string, dst *[]string) {
	val, ok := e.lookup(name)
	if !ok {
		return
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

func (e *envSource) duration(name string, dst *time.Duration) {
	if val, ok := e.lookup(name); ok {
		d, err := time.ParseDuration(val)
		if err != nil {
			e.fail(name, val, err)
			return
		}
		*dst = d
	}
}

func (e *envSource) boolean(name string, dst *bool) {
	if val, ok := e.lookup(name); ok {
		b, err := strconv.ParseBool(val)
		if err != nil {
			e.fail(name, val, err)
			return
		}
		*dst = b
	}
}

func (e *envSource) integer(name string, dst *int) {
	if val, ok := e.lookup(name); ok {
		n, err := strconv.Atoi(val)
		if err != nil {
			e.fail(name, val, err)
			return
		}
		*dst = n
	}
}

func (e *envSource) float(name string, dst *float64) {
	if val, ok := e.lookup(name); ok {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			e.fail(name, val, err)
			return
		}
		*dst = f
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables use the format WEBDEV_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) error {
	env := &envSource{}

	env.str("MODE", &cfg.Mode)

	// Server overrides
	env.str("SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	env.duration("SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	env.duration("SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	env.duration("SERVER_IDLE_TIMEOUT", &cfg.Server.IdleTimeout)
	env.duration("SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	env.integer("SERVER_MAX_HEADER_BYTES", &cfg.Server.MaxHeaderBytes)
	env.duration("SERVER_REQUEST_TIMEOUT", &cfg.Server.RequestTimeout)
	env.str("SERVER_ADMIN_PREFIX", &cfg.Server.AdminPrefix)
	env.boolean("SERVER_CORS_ENABLED", &cfg.Server.CORS.Enabled)
	env.list("SERVER_CORS_ALLOWED_ORIGINS", &cfg.Server.CORS.AllowedOrigins)
	env.boolean("SERVER_COMPRESSION_ENABLED", &cfg.Server.Compression.Enabled)
	env.integer("SERVER_COMPRESSION_MIN_SIZE", &cfg.Server.Compression.MinSize)

	// Upstream overrides
	env.str("UPSTREAM_URL", &cfg.Upstream.URL)
	env.duration("UPSTREAM_RESPONSE_HEADER_TIMEOUT", &cfg.Upstream.ResponseHeaderTimeout)
	env.duration("UPSTREAM_DIAL_TIMEOUT", &cfg.Upstream.DialTimeout)
	env.integer("UPSTREAM_MAX_IDLE_CONNS", &cfg.Upstream.MaxIdleConns)
	env.duration("UPSTREAM_IDLE_CONN_TIMEOUT", &cfg.Upstream.IdleConnTimeout)
	env.boolean("UPSTREAM_INSECURE_SKIP_VERIFY", &cfg.Upstream.InsecureSkipVerify)
	env.str("UPSTREAM_VIA", &cfg.Upstream.Via)
	env.duration("UPSTREAM_FLUSH_INTERVAL", &cfg.Upstream.FlushInterval)

	// Build overrides
	env.boolean("BUILD_ON_DEMAND", &cfg.Build.OnDemand)
	env.boolean("BUILD_ON_STARTUP", &cfg.Build.OnStartup)
	env.str("BUILD_COMMAND", &cfg.Build.Command)
	env.str("BUILD_INSTALL_COMMAND", &cfg.Build.InstallCommand)
	env.str("BUILD_WORKING_DIR", &cfg.Build.WorkingDir)
	env.str("BUILD_OUTPUT_ENV", &cfg.Build.OutputEnv)
	env.str("BUILD_OUTPUT_ARG", &cfg.Build.OutputArg)
	env.str("BUILD_STAGING_DIR", &cfg.Build.StagingDir)
	env.duration("BUILD_TIMEOUT", &cfg.Build.Timeout)
	env.integer("BUILD_TAIL_LINES", &cfg.Build.TailLines)
	env.boolean("BUILD_STAMP_REVISION", &cfg.Build.StampRevision)

	// Assets overrides
	env.str("ASSETS_ROOT", &cfg.Assets.Root)
	env.str("ASSETS_INDEX", &cfg.Assets.Index)
	env.boolean("ASSETS_DIGEST", &cfg.Assets.Digest)

	// Dev server overrides
	env.str("DEV_SERVER_COMMAND", &cfg.DevServer.Command)
	env.integer("DEV_SERVER_PORT", &cfg.DevServer.Port)
	env.duration("DEV_SERVER_READY_TIMEOUT", &cfg.DevServer.ReadyTimeout)

	// Watch overrides
	env.boolean("WATCH_ENABLED", &cfg.Watch.Enabled)
	env.list("WATCH_PATHS", &cfg.Watch.Paths)
	env.list("WATCH_EXTENSIONS", &cfg.Watch.Extensions)
	env.duration("WATCH_DEBOUNCE", &cfg.Watch.Debounce)
	env.boolean("WATCH_REBUILD", &cfg.Watch.Rebuild)

	// Janitor overrides
	env.boolean("JANITOR_ENABLED", &cfg.Janitor.Enabled)
	env.str("JANITOR_SCHEDULE", &cfg.Janitor.Schedule)
	env.duration("JANITOR_MAX_AGE", &cfg.Janitor.MaxAge)

	// History overrides
	env.boolean("HISTORY_ENABLED", &cfg.History.Enabled)
	env.str("HISTORY_DRIVER", &cfg.History.Driver)
	env.str("HISTORY_PATH", &cfg.History.Path)
	env.duration("HISTORY_BUSY_TIMEOUT", &cfg.History.BusyTimeout)
	env.integer("HISTORY_RETAIN", &cfg.History.Retain)

	// Telemetry overrides
	env.str("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	env.str("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	env.boolean("TELEMETRY_LOGGING_ADD_SOURCE", &cfg.Telemetry.Logging.AddSource)
	env.boolean("TELEMETRY_LOGGING_REDACT", &cfg.Telemetry.Logging.Redact)
	env.boolean("TELEMETRY_LOGGING_NO_COLOR", &cfg.Telemetry.Logging.NoColor)
	env.boolean("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	env.str("TELEMETRY_METRICS_NAMESPACE", &cfg.Telemetry.Metrics.Namespace)
	env.boolean("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	env.str("TELEMETRY_TRACING_SAMPLER", &cfg.Telemetry.Tracing.Sampler)
	env.float("TELEMETRY_TRACING_SAMPLE_RATIO", &cfg.Telemetry.Tracing.SampleRatio)
	env.str("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	env.str("TELEMETRY_TRACING_SERVICE_NAME", &cfg.Telemetry.Tracing.ServiceName)
	env.boolean("TELEMETRY_TRACING_OTLP_INSECURE", &cfg.Telemetry.Tracing.OTLP.Insecure)
	env.duration("TELEMETRY_HEALTH_CHECK_TIMEOUT", &cfg.Telemetry.Health.CheckTimeout)

	if env.err != nil {
		return fmt.Errorf("invalid environment override: %w", env.err)
	}
	return nil
}

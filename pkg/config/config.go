package config

import (
	"fmt"
	"time"
)

// Mode selects how webdev serves the application.
const (
	// ModeProduction serves published build output and forwards misses to
	// the upstream application server.
	ModeProduction = "production"

	// ModeDevelopment supervises the framework's dev server and forwards
	// everything to it.
	ModeDevelopment = "development"
)

// Config is the root configuration structure for webdev.
// It contains all configuration sections for the server, upstream, build
// pipeline and telemetry.
type Config struct {
	// Mode is either "production" or "development".
	Mode string `yaml:"mode" toml:"mode"`

	// Server contains HTTP listener settings.
	Server ServerConfig `yaml:"server" toml:"server"`

	// Upstream describes the application server that receives forwarded requests.
	Upstream UpstreamConfig `yaml:"upstream" toml:"upstream"`

	// Build configures the frontend build command.
	Build BuildConfig `yaml:"build" toml:"build"`

	// Assets configures the published asset root.
	Assets AssetsConfig `yaml:"assets" toml:"assets"`

	// DevServer configures the supervised dev server (development mode).
	DevServer DevServerConfig `yaml:"dev_server" toml:"dev_server"`

	// Watch configures source file watching.
	Watch WatchConfig `yaml:"watch" toml:"watch"`

	// Janitor configures periodic cleanup of stale trees and history.
	Janitor JanitorConfig `yaml:"janitor" toml:"janitor"`

	// History configures the build history store.
	History HistoryConfig `yaml:"history" toml:"history"`

	// Telemetry contains logging, metrics, tracing and health settings.
	Telemetry TelemetryConfig `yaml:"telemetry" toml:"telemetry"`
}

// ServerConfig contains settings for the HTTP listener.
type ServerConfig struct {
	// ListenAddress is the address to listen on (e.g., "127.0.0.1:8080").
	ListenAddress string `yaml:"listen_address" toml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration `yaml:"read_timeout" toml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. Zero disables it so streamed responses are not cut off.
	WriteTimeout time.Duration `yaml:"write_timeout" toml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request.
	IdleTimeout time.Duration `yaml:"idle_timeout" toml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" toml:"shutdown_timeout"`

	// MaxHeaderBytes limits the size of request headers.
	MaxHeaderBytes int `yaml:"max_header_bytes" toml:"max_header_bytes"`

	// RequestTimeout attaches a deadline to every request. Zero disables it.
	RequestTimeout time.Duration `yaml:"request_timeout" toml:"request_timeout"`

	// AdminPrefix is where the health, metrics and build endpoints are mounted.
	AdminPrefix string `yaml:"admin_prefix" toml:"admin_prefix"`

	// CORS contains cross-origin settings.
	CORS CORSConfig `yaml:"cors" toml:"cors"`

	// Compression contains response compression settings.
	Compression CompressionConfig `yaml:"compression" toml:"compression"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	// Enabled determines if CORS headers should be added.
	Enabled bool `yaml:"enabled" toml:"enabled"`

	// AllowedOrigins is a list of allowed origins. Use ["*"] to allow all.
	AllowedOrigins []string `yaml:"allowed_origins" toml:"allowed_origins"`

	// AllowedMethods is a list of allowed HTTP methods.
	AllowedMethods []string `yaml:"allowed_methods" toml:"allowed_methods"`

	// AllowedHeaders is a list of allowed request headers.
	AllowedHeaders []string `yaml:"allowed_headers" toml:"allowed_headers"`

	// ExposedHeaders is a list of headers exposed to the client.
	ExposedHeaders []string `yaml:"exposed_headers" toml:"exposed_headers"`

	// MaxAge is how long (in seconds) preflight results can be cached.
	MaxAge int `yaml:"max_age" toml:"max_age"`

	// AllowCredentials indicates whether credentials are allowed.
	AllowCredentials bool `yaml:"allow_credentials" toml:"allow_credentials"`
}

// CompressionConfig contains response compression settings.
type CompressionConfig struct {
	Enabled bool `yaml:"enabled" toml:"enabled"`

	// MinSize is the smallest response body, in bytes, that is compressed.
	MinSize int `yaml:"min_size" toml:"min_size"`
}

// UpstreamConfig describes the application server.
type UpstreamConfig struct {
	// URL is the absolute http or https origin requests are forwarded to.
	URL string `yaml:"url" toml:"url"`

	// ResponseHeaderTimeout bounds the wait for response headers.
	ResponseHeaderTimeout time.Duration `yaml:"response_header_timeout" toml:"response_header_timeout"`

	// DialTimeout bounds connection establishment.
	DialTimeout time.Duration `yaml:"dial_timeout" toml:"dial_timeout"`

	// MaxIdleConns is the size of the idle connection pool.
	MaxIdleConns int `yaml:"max_idle_conns" toml:"max_idle_conns"`

	// IdleConnTimeout closes idle connections after this duration.
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout" toml:"idle_conn_timeout"`

	// InsecureSkipVerify disables certificate verification for https upstreams.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify" toml:"insecure_skip_verify"`

	// Via is the pseudonym added to Via and the Forwarded by= parameter.
	Via string `yaml:"via" toml:"via"`

	// FlushInterval controls response flushing. Negative flushes every write.
	FlushInterval time.Duration `yaml:"flush_interval" toml:"flush_interval"`
}

// BuildConfig configures the build runner.
type BuildConfig struct {
	// OnDemand runs a build on the first static miss of a session.
	OnDemand bool `yaml:"on_demand" toml:"on_demand"`

	// OnStartup runs a build in the background when the server starts.
	OnStartup bool `yaml:"on_startup" toml:"on_startup"`

	// Command is the build command line.
	Command string `yaml:"command" toml:"command"`

	// InstallCommand runs once before the first build.
	InstallCommand string `yaml:"install_command" toml:"install_command"`

	// WorkingDir is where build commands run.
	WorkingDir string `yaml:"working_dir" toml:"working_dir"`

	// OutputEnv names the environment variable holding the staging path.
	OutputEnv string `yaml:"output_env" toml:"output_env"`

	// OutputArg, when set, is appended to the command followed by the staging path.
	OutputArg string `yaml:"output_arg" toml:"output_arg"`

	// StagingDir is the parent directory for staging trees.
	StagingDir string `yaml:"staging_dir" toml:"staging_dir"`

	// Timeout bounds a single build.
	Timeout time.Duration `yaml:"timeout" toml:"timeout"`

	// TailLines is how many output lines a failed build keeps.
	TailLines int `yaml:"tail_lines" toml:"tail_lines"`

	// StampRevision records the Git revision of WorkingDir on each build.
	StampRevision bool `yaml:"stamp_revision" toml:"stamp_revision"`

	// Env is appended to the build environment.
	Env []string `yaml:"env" toml:"env"`
}

// AssetsConfig configures the published asset root.
type AssetsConfig struct {
	// Root is the directory the build output is published into.
	Root string `yaml:"root" toml:"root"`

	// Index is served for directory requests.
	Index string `yaml:"index" toml:"index"`

	// Digest skips publishing output identical to the current tree.
	Digest bool `yaml:"digest" toml:"digest"`
}

// DevServerConfig configures the supervised dev server.
type DevServerConfig struct {
	// Command starts the dev server.
	Command string `yaml:"command" toml:"command"`

	// Port is where the dev server listens on localhost.
	Port int `yaml:"port" toml:"port"`

	// ReadyTimeout bounds the wait for the port to accept connections.
	ReadyTimeout time.Duration `yaml:"ready_timeout" toml:"ready_timeout"`

	// Env is appended to the dev server environment.
	Env []string `yaml:"env" toml:"env"`
}

// WatchConfig configures source watching.
type WatchConfig struct {
	Enabled bool `yaml:"enabled" toml:"enabled"`

	// Paths are watched recursively, relative to build.working_dir.
	Paths []string `yaml:"paths" toml:"paths"`

	// Extensions filters events by file extension. Empty matches everything.
	Extensions []string `yaml:"extensions" toml:"extensions"`

	// Debounce coalesces bursts of events.
	Debounce time.Duration `yaml:"debounce" toml:"debounce"`

	// SkipHidden ignores dot-directories such as .git.
	SkipHidden bool `yaml:"skip_hidden" toml:"skip_hidden"`

	// Rebuild starts a build on change instead of waiting for the next miss.
	Rebuild bool `yaml:"rebuild" toml:"rebuild"`
}

// JanitorConfig configures periodic cleanup.
type JanitorConfig struct {
	Enabled bool `yaml:"enabled" toml:"enabled"`

	// Schedule is a standard five-field cron expression.
	Schedule string `yaml:"schedule" toml:"schedule"`

	// MaxAge is how old an orphaned tree must be before it is removed.
	MaxAge time.Duration `yaml:"max_age" toml:"max_age"`
}

// HistoryConfig configures the build history store.
type HistoryConfig struct {
	Enabled bool `yaml:"enabled" toml:"enabled"`

	// Driver is "sqlite" (pure Go) or "sqlite3" (cgo).
	Driver string `yaml:"driver" toml:"driver"`

	// Path is the database file.
	Path string `yaml:"path" toml:"path"`

	// BusyTimeout is how long writers wait on a locked database.
	BusyTimeout time.Duration `yaml:"busy_timeout" toml:"busy_timeout"`

	// Retain is how many records the janitor keeps.
	Retain int `yaml:"retain" toml:"retain"`
}

// TelemetryConfig contains observability settings.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
	Metrics MetricsConfig `yaml:"metrics" toml:"metrics"`
	Tracing TracingConfig `yaml:"tracing" toml:"tracing"`
	Health  HealthConfig  `yaml:"health" toml:"health"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" toml:"level"`

	// Format is one of json, text, console.
	Format string `yaml:"format" toml:"format"`

	// AddSource includes file and line in log records.
	AddSource bool `yaml:"add_source" toml:"add_source"`

	// Redact masks credentials in log attributes.
	Redact bool `yaml:"redact" toml:"redact"`

	// NoColor disables colors in the console format.
	NoColor bool `yaml:"no_color" toml:"no_color"`
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" toml:"enabled"`

	// Namespace prefixes every metric name.
	Namespace string `yaml:"namespace" toml:"namespace"`

	// Subsystem is placed between namespace and metric name.
	Subsystem string `yaml:"subsystem" toml:"subsystem"`

	// RequestDurationBuckets are histogram buckets in seconds.
	RequestDurationBuckets []float64 `yaml:"request_duration_buckets" toml:"request_duration_buckets"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	Enabled bool `yaml:"enabled" toml:"enabled"`

	// Sampler is one of always, never, ratio.
	Sampler string `yaml:"sampler" toml:"sampler"`

	// SampleRatio is used by the ratio sampler.
	SampleRatio float64 `yaml:"sample_ratio" toml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector address.
	Endpoint string `yaml:"endpoint" toml:"endpoint"`

	// ServiceName is reported as service.name.
	ServiceName string `yaml:"service_name" toml:"service_name"`

	OTLP OTLPConfig `yaml:"otlp" toml:"otlp"`
}

// OTLPConfig contains OTLP exporter settings.
type OTLPConfig struct {
	// Insecure disables TLS to the collector.
	Insecure bool `yaml:"insecure" toml:"insecure"`

	// Timeout bounds each export.
	Timeout time.Duration `yaml:"timeout" toml:"timeout"`
}

// HealthConfig contains health check settings.
type HealthConfig struct {
	// CheckTimeout bounds a single readiness check.
	CheckTimeout time.Duration `yaml:"check_timeout" toml:"check_timeout"`
}

// IsDevelopment reports whether the dev server is supervised.
func (c *Config) IsDevelopment() bool {
	return c.Mode == ModeDevelopment
}

// UpstreamURL returns the origin requests are forwarded to for the
// configured mode.
func (c *Config) UpstreamURL() string {
	if c.IsDevelopment() {
		return fmt.Sprintf("http://localhost:%d", c.DevServer.Port)
	}
	return c.Upstream.URL
}
